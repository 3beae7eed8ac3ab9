package dsig

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
	"github.com/sirosfoundation/go-xmldsig/pkg/c14n"
	"github.com/sirosfoundation/go-xmldsig/pkg/sigvalue"
)

// XML-DSig 1.1 namespace, home of ECKeyValue.
const dsig11Namespace = "http://www.w3.org/2009/xmldsig11#"

// Signer produces XML signatures in the enveloped, enveloping and
// detached topologies. Configure with the With* chain, then call one of
// the Sign* methods.
type Signer struct {
	key                 any // crypto.Signer, *dsa.PrivateKey, or []byte HMAC secret
	cert                *x509.Certificate
	sigMethod           string
	digestMethod        string
	c14nMethod          string
	prefixList          string
	includeKeyValue     bool
	includeIssuerSerial bool
	opts                *Options
}

// NewSigner creates a Signer for an asymmetric key. RSA, ECDSA and
// Ed25519 keys are accepted through the crypto.Signer interface.
// Defaults: a SHA-256 signature method matching the key type, SHA-256
// digests, Exclusive C14N without comments.
func NewSigner(key crypto.Signer) *Signer {
	return &Signer{key: key, c14nMethod: algorithm.ExcC14N}
}

// NewDSASigner creates a Signer for a DSA private key, which predates
// the crypto.Signer interface.
func NewDSASigner(key *dsa.PrivateKey) *Signer {
	return &Signer{key: key, c14nMethod: algorithm.ExcC14N}
}

// NewHMACSigner creates a Signer using a shared secret.
func NewHMACSigner(secret []byte) *Signer {
	return &Signer{key: append([]byte(nil), secret...), c14nMethod: algorithm.ExcC14N}
}

// WithCertificate attaches the certificate emitted in KeyInfo/X509Data.
func (s *Signer) WithCertificate(cert *x509.Certificate) *Signer {
	s.cert = cert
	return s
}

// WithSignatureMethod overrides the signature method URI.
func (s *Signer) WithSignatureMethod(uri string) *Signer {
	s.sigMethod = uri
	return s
}

// WithDigestMethod overrides the digest method URI used for references.
func (s *Signer) WithDigestMethod(uri string) *Signer {
	s.digestMethod = uri
	return s
}

// WithCanonicalization sets the canonicalization method and, for the
// exclusive variants, the InclusiveNamespaces PrefixList.
func (s *Signer) WithCanonicalization(uri, prefixList string) *Signer {
	s.c14nMethod = uri
	s.prefixList = prefixList
	return s
}

// WithIssuerSerial emits an X509IssuerSerial alongside the certificate,
// for receivers that look certificates up by issuer and serial number.
func (s *Signer) WithIssuerSerial() *Signer {
	s.includeIssuerSerial = true
	return s
}

// WithKeyValue emits the raw public key as a KeyValue element when no
// certificate is configured.
func (s *Signer) WithKeyValue() *Signer {
	s.includeKeyValue = true
	return s
}

// WithOptions sets document processing options (identifier attributes
// and signature namespaces).
func (s *Signer) WithOptions(opts *Options) *Signer {
	s.opts = opts
	return s
}

// SignEnveloped signs the whole document and inserts the Signature as
// the last child of the root element. The returned element is already
// attached; callers needing a different location use SignEnvelopedAt.
func (s *Signer) SignEnveloped(doc *etree.Document) (*etree.Element, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrMalformedStructure)
	}
	return s.SignEnvelopedAt(doc, root)
}

// SignEnvelopedAt signs the whole document and inserts the Signature as
// the last child of parent, which must belong to doc.
func (s *Signer) SignEnvelopedAt(doc *etree.Document, parent *etree.Element) (*etree.Element, error) {
	alg, digestURI, err := s.resolveMethods()
	if err != nil {
		return nil, err
	}

	ref := Reference{
		URI: "",
		Transforms: []Transform{
			{Algorithm: algorithm.TransformEnvelopedSignature},
			{Algorithm: s.c14nMethod, PrefixList: s.prefixList},
		},
		DigestMethod: digestURI,
	}

	sigEl, digestEls, err := s.buildSkeleton(alg, []Reference{ref})
	if err != nil {
		return nil, err
	}
	parent.AddChild(sigEl)

	computed, err := referenceDigest(doc, sigEl, ref, s.opts)
	if err != nil {
		return nil, err
	}
	digestEls[0].SetText(base64.StdEncoding.EncodeToString(computed))

	if err := s.finalize(sigEl, alg); err != nil {
		return nil, err
	}
	return sigEl, nil
}

// SignEnveloping wraps a copy of content in a ds:Object inside a new
// Signature document and signs it.
func (s *Signer) SignEnveloping(content *etree.Element) (*etree.Document, error) {
	alg, digestURI, err := s.resolveMethods()
	if err != nil {
		return nil, err
	}

	objectID := "obj-" + uuid.New().String()
	ref := Reference{
		URI: "#" + objectID,
		Transforms: []Transform{
			{Algorithm: s.c14nMethod, PrefixList: s.prefixList},
		},
		DigestMethod: digestURI,
	}

	sigEl, digestEls, err := s.buildSkeleton(alg, []Reference{ref})
	if err != nil {
		return nil, err
	}

	object := sigEl.CreateElement("ds:Object")
	object.CreateAttr("Id", objectID)
	object.AddChild(content.Copy())

	doc := etree.NewDocument()
	doc.AddChild(sigEl)

	computed, err := referenceDigest(doc, sigEl, ref, s.opts)
	if err != nil {
		return nil, err
	}
	digestEls[0].SetText(base64.StdEncoding.EncodeToString(computed))

	if err := s.finalize(sigEl, alg); err != nil {
		return nil, err
	}
	return doc, nil
}

// SignDetached signs externally supplied octets. The Reference carries
// the given URI; the data itself is digested directly and never
// embedded. The returned Signature element lives in its own document.
func (s *Signer) SignDetached(uri string, data []byte) (*etree.Element, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: detached reference needs a non-empty URI", ErrReferenceResolution)
	}
	alg, digestURI, err := s.resolveMethods()
	if err != nil {
		return nil, err
	}

	ref := Reference{URI: uri, DigestMethod: digestURI}
	sigEl, digestEls, err := s.buildSkeleton(alg, []Reference{ref})
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.AddChild(sigEl)

	hash, err := algorithm.Digest(digestURI)
	if err != nil {
		return nil, err
	}
	h := hash.New()
	h.Write(data)
	digestEls[0].SetText(base64.StdEncoding.EncodeToString(h.Sum(nil)))

	if err := s.finalize(sigEl, alg); err != nil {
		return nil, err
	}
	return sigEl, nil
}

// resolveMethods fills in algorithm defaults and checks key
// compatibility with the signature method.
func (s *Signer) resolveMethods() (algorithm.SignatureAlgorithm, string, error) {
	pub := s.publicKey()
	if pub == nil {
		return algorithm.SignatureAlgorithm{}, "", fmt.Errorf("%w: signer has no key", ErrMalformedStructure)
	}

	sigURI := s.sigMethod
	if sigURI == "" {
		if _, ok := s.key.([]byte); ok {
			sigURI = algorithm.HMACSHA256
		} else {
			var err error
			sigURI, err = algorithm.ForKey(pub, crypto.SHA256)
			if err != nil {
				return algorithm.SignatureAlgorithm{}, "", err
			}
		}
	}
	alg, err := algorithm.Signature(sigURI)
	if err != nil {
		return algorithm.SignatureAlgorithm{}, "", err
	}
	if err := alg.CheckKey(pub); err != nil {
		return algorithm.SignatureAlgorithm{}, "", err
	}

	digestURI := s.digestMethod
	if digestURI == "" {
		digestURI = algorithm.DigestSHA256
	}
	if _, err := algorithm.Digest(digestURI); err != nil {
		return algorithm.SignatureAlgorithm{}, "", err
	}
	if !algorithm.IsCanonicalization(s.c14nMethod) {
		return algorithm.SignatureAlgorithm{}, "", fmt.Errorf("%w: canonicalization method %q", algorithm.ErrUnknownAlgorithm, s.c14nMethod)
	}
	return alg, digestURI, nil
}

// buildSkeleton creates the Signature element with its SignedInfo and
// empty DigestValue/SignatureValue slots, in schema order.
func (s *Signer) buildSkeleton(alg algorithm.SignatureAlgorithm, refs []Reference) (*etree.Element, []*etree.Element, error) {
	sigEl := etree.NewElement("ds:Signature")
	sigEl.CreateAttr("xmlns:ds", Namespace)
	sigEl.CreateAttr("Id", "SIG-"+uuid.New().String())

	signedInfo := sigEl.CreateElement("ds:SignedInfo")

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", s.c14nMethod)
	if s.prefixList != "" {
		incl := c14nMethod.CreateElement("ec:InclusiveNamespaces")
		incl.CreateAttr("xmlns:ec", ExcC14NNamespace)
		incl.CreateAttr("PrefixList", s.prefixList)
	}

	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", alg.URI)

	digestEls := make([]*etree.Element, 0, len(refs))
	for _, ref := range refs {
		refEl := signedInfo.CreateElement("ds:Reference")
		refEl.CreateAttr("URI", ref.URI)
		if len(ref.Transforms) > 0 {
			transforms := refEl.CreateElement("ds:Transforms")
			for _, t := range ref.Transforms {
				tEl := transforms.CreateElement("ds:Transform")
				tEl.CreateAttr("Algorithm", t.Algorithm)
				if t.PrefixList != "" {
					incl := tEl.CreateElement("ec:InclusiveNamespaces")
					incl.CreateAttr("xmlns:ec", ExcC14NNamespace)
					incl.CreateAttr("PrefixList", t.PrefixList)
				}
			}
		}
		dm := refEl.CreateElement("ds:DigestMethod")
		dm.CreateAttr("Algorithm", ref.DigestMethod)
		digestEls = append(digestEls, refEl.CreateElement("ds:DigestValue"))
	}

	sigEl.CreateElement("ds:SignatureValue")
	if err := s.appendKeyInfo(sigEl); err != nil {
		return nil, nil, err
	}
	return sigEl, digestEls, nil
}

// finalize canonicalizes SignedInfo by its declared method, signs the
// canonical octets and fills in SignatureValue.
func (s *Signer) finalize(sigEl *etree.Element, alg algorithm.SignatureAlgorithm) error {
	signedInfo := childByTag(sigEl, "SignedInfo")

	canon, err := c14n.ForURI(s.c14nMethod, s.prefixList)
	if err != nil {
		return err
	}
	msg, err := canon.Canonicalize(signedInfo)
	if err != nil {
		return err
	}

	sigVal, err := s.signValue(alg, msg)
	if err != nil {
		return err
	}

	sigValueEl := childByTag(sigEl, "SignatureValue")
	sigValueEl.SetText(base64.StdEncoding.EncodeToString(sigVal))
	return nil
}

func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, ch := range el.ChildElements() {
		if ch.Tag == tag {
			return ch
		}
	}
	return nil
}

// signValue invokes the signing primitive and converts the result into
// the XML-DSig wire encoding.
func (s *Signer) signValue(alg algorithm.SignatureAlgorithm, msg []byte) ([]byte, error) {
	switch key := s.key.(type) {
	case *dsa.PrivateKey:
		width, err := alg.FieldWidth(&key.PublicKey)
		if err != nil {
			return nil, err
		}
		hashed := truncateToOrder(digest(alg.Hash, msg), width)
		r, sv, err := dsa.Sign(rand.Reader, key, hashed)
		if err != nil {
			return nil, fmt.Errorf("signing: %w", err)
		}
		return sigvalue.Join(r, sv, width)

	case []byte:
		mac := hmac.New(alg.Hash.New, key)
		mac.Write(msg)
		return mac.Sum(nil), nil

	case crypto.Signer:
		switch alg.Key {
		case algorithm.KeyRSA:
			hashed := digest(alg.Hash, msg)
			return key.Sign(rand.Reader, hashed, alg.Hash)
		case algorithm.KeyECDSA:
			hashed := digest(alg.Hash, msg)
			der, err := key.Sign(rand.Reader, hashed, alg.Hash)
			if err != nil {
				return nil, fmt.Errorf("signing: %w", err)
			}
			width, err := alg.FieldWidth(key.Public())
			if err != nil {
				return nil, err
			}
			return sigvalue.FromDER(der, width)
		case algorithm.KeyEd25519:
			// Pure EdDSA signs the message itself.
			return key.Sign(rand.Reader, msg, crypto.Hash(0))
		}
	}
	return nil, fmt.Errorf("%w: cannot sign with %T using %s", algorithm.ErrKeyMismatch, s.key, alg.URI)
}

func (s *Signer) publicKey() crypto.PublicKey {
	switch key := s.key.(type) {
	case *dsa.PrivateKey:
		return &key.PublicKey
	case []byte:
		return key
	case crypto.Signer:
		return key.Public()
	}
	return nil
}

// appendKeyInfo emits KeyInfo with the configured certificate, or the
// raw public key as KeyValue when requested.
func (s *Signer) appendKeyInfo(sigEl *etree.Element) error {
	if s.cert == nil && !s.includeKeyValue {
		return nil
	}
	keyInfo := sigEl.CreateElement("ds:KeyInfo")

	if s.cert != nil {
		x509Data := keyInfo.CreateElement("ds:X509Data")
		if s.includeIssuerSerial {
			is := x509Data.CreateElement("ds:X509IssuerSerial")
			is.CreateElement("ds:X509IssuerName").SetText(s.cert.Issuer.String())
			is.CreateElement("ds:X509SerialNumber").SetText(s.cert.SerialNumber.String())
		}
		certEl := x509Data.CreateElement("ds:X509Certificate")
		certEl.SetText(base64.StdEncoding.EncodeToString(s.cert.Raw))
		return nil
	}

	kv := keyInfo.CreateElement("ds:KeyValue")
	switch pub := s.publicKey().(type) {
	case *rsa.PublicKey:
		rsaKV := kv.CreateElement("ds:RSAKeyValue")
		mod := rsaKV.CreateElement("ds:Modulus")
		mod.SetText(base64.StdEncoding.EncodeToString(pub.N.Bytes()))
		exp := rsaKV.CreateElement("ds:Exponent")
		exp.SetText(base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()))
	case *dsa.PublicKey:
		dsaKV := kv.CreateElement("ds:DSAKeyValue")
		for _, v := range []struct {
			name string
			val  *big.Int
		}{{"P", pub.P}, {"Q", pub.Q}, {"G", pub.G}, {"Y", pub.Y}} {
			el := dsaKV.CreateElement("ds:" + v.name)
			el.SetText(base64.StdEncoding.EncodeToString(v.val.Bytes()))
		}
	case *ecdsa.PublicKey:
		ecKV := kv.CreateElement("dsig11:ECKeyValue")
		ecKV.CreateAttr("xmlns:dsig11", dsig11Namespace)
		curveURI, err := namedCurveURI(pub)
		if err != nil {
			return err
		}
		nc := ecKV.CreateElement("dsig11:NamedCurve")
		nc.CreateAttr("URI", curveURI)
		pk := ecKV.CreateElement("dsig11:PublicKey")
		pk.SetText(base64.StdEncoding.EncodeToString(uncompressedPoint(pub)))
	case ed25519.PublicKey:
		return fmt.Errorf("%w: Ed25519 has no KeyValue form, attach a certificate", ErrMalformedStructure)
	default:
		return fmt.Errorf("%w: no KeyValue form for %T", ErrMalformedStructure, pub)
	}
	return nil
}

func namedCurveURI(pub *ecdsa.PublicKey) (string, error) {
	switch pub.Curve.Params().Name {
	case "P-256":
		return "urn:oid:1.2.840.10045.3.1.7", nil
	case "P-384":
		return "urn:oid:1.3.132.0.34", nil
	case "P-521":
		return "urn:oid:1.3.132.0.35", nil
	}
	return "", fmt.Errorf("%w: unsupported curve %q", ErrMalformedStructure, pub.Curve.Params().Name)
}

func uncompressedPoint(pub *ecdsa.PublicKey) []byte {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*byteLen)
	out[0] = 4
	pub.X.FillBytes(out[1 : 1+byteLen])
	pub.Y.FillBytes(out[1+byteLen:])
	return out
}
