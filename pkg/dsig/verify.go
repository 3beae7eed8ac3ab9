package dsig

import (
	"bytes"
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rsa"
	"fmt"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
	"github.com/sirosfoundation/go-xmldsig/pkg/c14n"
	"github.com/sirosfoundation/go-xmldsig/pkg/keyinfo"
	"github.com/sirosfoundation/go-xmldsig/pkg/sigvalue"
)

// ReferenceResult is the verdict for a single reference.
type ReferenceResult struct {
	URI   string
	Valid bool
	// Err explains an invalid reference: ErrDigestMismatch for a
	// recomputed digest that differs, ErrReferenceResolution for an
	// unresolvable target, or the transform failure.
	Err error
}

// Result is the externally observable outcome of verifying one
// signature. Every reference is checked and reported; a single failure
// anywhere makes the overall verdict invalid.
type Result struct {
	SignatureValid bool
	References     []ReferenceResult
}

// Valid reports the overall verdict: the signature value verified and
// every reference digest matched.
func (r *Result) Valid() bool {
	if !r.SignatureValid {
		return false
	}
	for _, ref := range r.References {
		if !ref.Valid {
			return false
		}
	}
	return true
}

// Err explains an invalid result: ErrSignatureInvalid when the signature
// value failed, otherwise the first failed reference's error. A valid
// result returns nil.
func (r *Result) Err() error {
	if !r.SignatureValid {
		return ErrSignatureInvalid
	}
	for _, ref := range r.References {
		if !ref.Valid {
			return ref.Err
		}
	}
	return nil
}

// Validator verifies XML signatures. A Validator is stateless and safe
// for concurrent use.
type Validator struct {
	opts *Options
}

// NewValidator creates a Validator. opts may be nil for defaults.
func NewValidator(opts *Options) *Validator {
	return &Validator{opts: opts}
}

// Verify verifies the first Signature element located in the document.
// A nil key is resolved from the signature's KeyInfo.
//
// A returned error means the input could not be processed as a signature
// (missing structure, unknown algorithm, malformed signature value). A
// nil error with an invalid Result means a well-formed signature failed
// cryptographically.
func (v *Validator) Verify(doc *etree.Document, key crypto.PublicKey) (*Result, error) {
	sigs := LocateSignatures(doc, v.opts)
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no Signature element in document", ErrMalformedStructure)
	}
	return v.VerifySignature(doc, sigs[0], key)
}

// VerifyAll verifies every Signature element located in the document,
// in document order.
func (v *Validator) VerifyAll(doc *etree.Document, key crypto.PublicKey) ([]*Result, error) {
	sigs := LocateSignatures(doc, v.opts)
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no Signature element in document", ErrMalformedStructure)
	}
	results := make([]*Result, 0, len(sigs))
	for _, sigEl := range sigs {
		res, err := v.VerifySignature(doc, sigEl, key)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// VerifySignature verifies one specific Signature element. When several
// signatures nest, each one's enveloped-signature transform excises only
// itself: verifying an outer signature leaves inner signatures in place
// as signed content.
func (v *Validator) VerifySignature(doc *etree.Document, sigEl *etree.Element, key crypto.PublicKey) (*Result, error) {
	sig, err := parseSignature(sigEl)
	if err != nil {
		return nil, err
	}

	alg, err := algorithm.Signature(sig.SignedInfo.SignatureMethod)
	if err != nil {
		return nil, err
	}

	if key == nil {
		resolver := &keyinfo.Resolver{}
		if v.opts != nil {
			resolver.KeyName = v.opts.KeyNameResolver
		}
		key, _, err = resolver.PublicKey(sig.KeyInfo)
		if err != nil {
			return nil, fmt.Errorf("%w: no verification key: %v", ErrMalformedStructure, err)
		}
	}
	if err := alg.CheckKey(key); err != nil {
		return nil, err
	}

	canon, err := c14n.ForURI(sig.SignedInfo.CanonicalizationMethod, sig.SignedInfo.PrefixList)
	if err != nil {
		return nil, err
	}
	signedInfo, err := canon.Canonicalize(sig.SignedInfo.Element)
	if err != nil {
		return nil, err
	}

	sigValid, err := verifyValue(alg, key, signedInfo, sig.SignatureValue)
	if err != nil {
		return nil, err
	}

	// Every reference is checked; failures are collected, never
	// short-circuited, so the caller can tell which reference broke.
	result := &Result{SignatureValid: sigValid}
	for _, ref := range sig.SignedInfo.References {
		rr := ReferenceResult{URI: ref.URI}
		computed, err := referenceDigest(doc, sigEl, ref, v.opts)
		switch {
		case err != nil:
			rr.Err = err
		case !bytes.Equal(computed, ref.DigestValue):
			rr.Err = fmt.Errorf("%w: reference %q", ErrDigestMismatch, ref.URI)
		default:
			rr.Valid = true
		}
		result.References = append(result.References, rr)
	}
	return result, nil
}

// verifyValue checks the signature value over the canonical SignedInfo.
// The bool is the cryptographic verdict; the error reports structural
// problems (codec failures, unusable key material) only.
func verifyValue(alg algorithm.SignatureAlgorithm, key crypto.PublicKey, msg, sigVal []byte) (bool, error) {
	switch alg.Key {
	case algorithm.KeyRSA:
		pub := key.(*rsa.PublicKey)
		hashed := digest(alg.Hash, msg)
		return rsa.VerifyPKCS1v15(pub, alg.Hash, hashed, sigVal) == nil, nil

	case algorithm.KeyECDSA:
		pub := key.(*ecdsa.PublicKey)
		width, err := alg.FieldWidth(pub)
		if err != nil {
			return false, err
		}
		der, err := sigvalue.ToDER(sigVal, width)
		if err != nil {
			return false, err
		}
		hashed := digest(alg.Hash, msg)
		return ecdsa.VerifyASN1(pub, hashed, der), nil

	case algorithm.KeyDSA:
		pub := key.(*dsa.PublicKey)
		width, err := alg.FieldWidth(pub)
		if err != nil {
			return false, err
		}
		r, s, err := sigvalue.Split(sigVal, width)
		if err != nil {
			return false, err
		}
		hashed := truncateToOrder(digest(alg.Hash, msg), width)
		return dsa.Verify(pub, hashed, r, s), nil

	case algorithm.KeyEd25519:
		pub := key.(ed25519.PublicKey)
		// Pure EdDSA signs the canonical SignedInfo octets directly.
		return ed25519.Verify(pub, msg, sigVal), nil

	case algorithm.KeyHMAC:
		secret := key.([]byte)
		mac := hmac.New(alg.Hash.New, secret)
		mac.Write(msg)
		return hmac.Equal(mac.Sum(nil), sigVal), nil
	}
	return false, fmt.Errorf("%w: signature method %q", algorithm.ErrUnknownAlgorithm, alg.URI)
}

func digest(h crypto.Hash, msg []byte) []byte {
	hh := h.New()
	hh.Write(msg)
	return hh.Sum(nil)
}

// truncateToOrder applies the FIPS 186 hash truncation to the byte
// length of the DSA subgroup order, which crypto/dsa leaves to callers.
func truncateToOrder(hashed []byte, width int) []byte {
	if len(hashed) > width {
		return hashed[:width]
	}
	return hashed
}
