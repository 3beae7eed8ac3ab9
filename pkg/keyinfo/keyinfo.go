// Package keyinfo extracts verification keys from XML-DSig KeyInfo
// structures.
//
// KeyInfo is treated purely as a key-material carrier: X509Data is parsed
// for its embedded certificate, KeyValue for raw RSA/DSA/EC parameters,
// and KeyName is resolved through a caller-supplied callback. No trust
// decision of any kind is made here; certificate chain validation is the
// caller's concern.
package keyinfo

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrNoKey is returned when no usable key material is present
	ErrNoKey = errors.New("no key material in KeyInfo")
	// ErrMalformedKey is returned when key material cannot be decoded
	ErrMalformedKey = errors.New("malformed key material")
)

// Named curve URIs from XML-DSig 1.1 ECKeyValue.
const (
	curveP256 = "urn:oid:1.2.840.10045.3.1.7"
	curveP384 = "urn:oid:1.3.132.0.34"
	curveP521 = "urn:oid:1.3.132.0.35"
)

// Resolver extracts public keys from KeyInfo elements.
type Resolver struct {
	// KeyName resolves a ds:KeyName to a public key. Nil disables
	// KeyName resolution.
	KeyName func(name string) (crypto.PublicKey, error)
}

// PublicKey extracts a verification key using a default Resolver.
func PublicKey(el *etree.Element) (crypto.PublicKey, *x509.Certificate, error) {
	return (&Resolver{}).PublicKey(el)
}

// PublicKey extracts a verification key from el, which may be a KeyInfo
// element, an X509Data element, or a bare X509Certificate element emitted
// without the KeyInfo wrapper. The certificate is returned alongside the
// key when the key came from one.
func (r *Resolver) PublicKey(el *etree.Element) (crypto.PublicKey, *x509.Certificate, error) {
	if el == nil {
		return nil, nil, ErrNoKey
	}

	if cert := findCertificate(el); cert != nil {
		parsed, err := parseCertificate(cert.Text())
		if err != nil {
			return nil, nil, err
		}
		return parsed.PublicKey, parsed, nil
	}

	// KeyValue children may appear with or without the KeyValue wrapper;
	// the search is by local name either way.
	if key, err := keyValue(el); !errors.Is(err, ErrNoKey) {
		if err != nil {
			return nil, nil, err
		}
		return key, nil, nil
	}

	if kn := findLocal(el, "KeyName"); kn != nil && r.KeyName != nil {
		key, err := r.KeyName(strings.TrimSpace(kn.Text()))
		if err != nil {
			return nil, nil, fmt.Errorf("resolving KeyName: %w", err)
		}
		return key, nil, nil
	}

	return nil, nil, ErrNoKey
}

// findCertificate locates an X509Certificate element whether el is the
// certificate itself, an X509Data, or a full KeyInfo.
func findCertificate(el *etree.Element) *etree.Element {
	return findLocal(el, "X509Certificate")
}

// findLocal finds el itself or a descendant by local name, ignoring
// namespace prefixes. Producers disagree on prefixes here, so matching
// is deliberately loose.
func findLocal(el *etree.Element, name string) *etree.Element {
	if el.Tag == name {
		return el
	}
	for _, ch := range el.ChildElements() {
		if found := findLocal(ch, name); found != nil {
			return found
		}
	}
	return nil
}

func parseCertificate(b64 string) (*x509.Certificate, error) {
	der, err := decodeBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: X509Certificate: %v", ErrMalformedKey, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: X509Certificate: %v", ErrMalformedKey, err)
	}
	return cert, nil
}

func keyValue(el *etree.Element) (crypto.PublicKey, error) {
	if rsaKV := findLocal(el, "RSAKeyValue"); rsaKV != nil {
		return rsaKeyValue(rsaKV)
	}
	if dsaKV := findLocal(el, "DSAKeyValue"); dsaKV != nil {
		return dsaKeyValue(dsaKV)
	}
	if ecKV := findLocal(el, "ECKeyValue"); ecKV != nil {
		return ecKeyValue(ecKV)
	}
	return nil, ErrNoKey
}

func rsaKeyValue(el *etree.Element) (crypto.PublicKey, error) {
	n, err := childInt(el, "Modulus")
	if err != nil {
		return nil, err
	}
	e, err := childInt(el, "Exponent")
	if err != nil {
		return nil, err
	}
	if !e.IsInt64() || e.Int64() <= 0 || e.Int64() > int64(1)<<31 {
		return nil, fmt.Errorf("%w: RSA exponent out of range", ErrMalformedKey)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func dsaKeyValue(el *etree.Element) (crypto.PublicKey, error) {
	p, err := childInt(el, "P")
	if err != nil {
		return nil, err
	}
	q, err := childInt(el, "Q")
	if err != nil {
		return nil, err
	}
	g, err := childInt(el, "G")
	if err != nil {
		return nil, err
	}
	y, err := childInt(el, "Y")
	if err != nil {
		return nil, err
	}
	return &dsa.PublicKey{
		Parameters: dsa.Parameters{P: p, Q: q, G: g},
		Y:          y,
	}, nil
}

func ecKeyValue(el *etree.Element) (crypto.PublicKey, error) {
	nc := findLocal(el, "NamedCurve")
	if nc == nil {
		return nil, fmt.Errorf("%w: ECKeyValue missing NamedCurve", ErrMalformedKey)
	}
	var curve elliptic.Curve
	switch strings.TrimSpace(nc.SelectAttrValue("URI", "")) {
	case curveP256:
		curve = elliptic.P256()
	case curveP384:
		curve = elliptic.P384()
	case curveP521:
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("%w: unsupported curve %q", ErrMalformedKey, nc.SelectAttrValue("URI", ""))
	}

	pk := findLocal(el, "PublicKey")
	if pk == nil {
		return nil, fmt.Errorf("%w: ECKeyValue missing PublicKey", ErrMalformedKey)
	}
	point, err := decodeBase64(pk.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: EC point: %v", ErrMalformedKey, err)
	}
	byteLen := (curve.Params().BitSize + 7) / 8
	if len(point) != 1+2*byteLen || point[0] != 4 {
		return nil, fmt.Errorf("%w: EC point is not uncompressed", ErrMalformedKey)
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(point[1 : 1+byteLen]),
		Y:     new(big.Int).SetBytes(point[1+byteLen:]),
	}, nil
}

func childInt(el *etree.Element, name string) (*big.Int, error) {
	c := findLocal(el, name)
	if c == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedKey, name)
	}
	b, err := decodeBase64(c.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedKey, name, err)
	}
	return new(big.Int).SetBytes(b), nil
}

// decodeBase64 decodes XML base64 content, which may contain whitespace.
func decodeBase64(s string) ([]byte, error) {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteRune(r)
		}
	}
	return base64.StdEncoding.DecodeString(b.String())
}
