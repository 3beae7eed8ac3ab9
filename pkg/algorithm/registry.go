// Package algorithm maps XML-DSig algorithm URIs to their behaviors.
//
// The registry is a closed, immutable table initialized at package load.
// Every lookup of a URI outside the table fails with ErrUnknownAlgorithm;
// there is no fallback to a default algorithm.
package algorithm

import (
	"crypto"
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// Canonicalization algorithm URIs
const (
	C14N10              = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	C14N10WithComments  = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315#WithComments"
	ExcC14N             = "http://www.w3.org/2001/10/xml-exc-c14n#"
	ExcC14NWithComments = "http://www.w3.org/2001/10/xml-exc-c14n#WithComments"
)

// Digest algorithm URIs
const (
	DigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	DigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	DigestSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	DigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Signature algorithm URIs
const (
	RSASHA1     = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	RSASHA256   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	RSASHA384   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	RSASHA512   = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	DSASHA1     = "http://www.w3.org/2000/09/xmldsig#dsa-sha1"
	DSASHA256   = "http://www.w3.org/2009/xmldsig11#dsa-sha256"
	ECDSASHA1   = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha1"
	ECDSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"
	ECDSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384"
	ECDSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512"
	Ed25519Sig  = "http://www.w3.org/2021/04/xmldsig-more#eddsa-ed25519"
	HMACSHA1    = "http://www.w3.org/2000/09/xmldsig#hmac-sha1"
	HMACSHA256  = "http://www.w3.org/2001/04/xmldsig-more#hmac-sha256"
)

// Transform algorithm URIs
const (
	TransformEnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	TransformBase64             = "http://www.w3.org/2000/09/xmldsig#base64"
)

var (
	// ErrUnknownAlgorithm is returned when an algorithm URI is not in the registry
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	// ErrKeyMismatch is returned when a signature method requires a different key type
	ErrKeyMismatch = errors.New("algorithm/key type mismatch")
)

// Category classifies an algorithm URI
type Category int

const (
	CategoryDigest Category = iota
	CategorySignature
	CategoryCanonicalization
	CategoryTransform
)

// KeyType identifies the key family a signature method requires
type KeyType int

const (
	KeyRSA KeyType = iota
	KeyDSA
	KeyECDSA
	KeyEd25519
	KeyHMAC
)

func (k KeyType) String() string {
	switch k {
	case KeyRSA:
		return "RSA"
	case KeyDSA:
		return "DSA"
	case KeyECDSA:
		return "ECDSA"
	case KeyEd25519:
		return "Ed25519"
	case KeyHMAC:
		return "HMAC"
	}
	return "unknown"
}

// SignatureAlgorithm describes a signature method entry in the registry.
type SignatureAlgorithm struct {
	URI  string
	Key  KeyType
	Hash crypto.Hash // 0 for pure EdDSA, which signs the message directly
}

var digests = map[string]crypto.Hash{
	DigestSHA1:   crypto.SHA1,
	DigestSHA256: crypto.SHA256,
	DigestSHA384: crypto.SHA384,
	DigestSHA512: crypto.SHA512,
}

var signatures = map[string]SignatureAlgorithm{
	RSASHA1:     {URI: RSASHA1, Key: KeyRSA, Hash: crypto.SHA1},
	RSASHA256:   {URI: RSASHA256, Key: KeyRSA, Hash: crypto.SHA256},
	RSASHA384:   {URI: RSASHA384, Key: KeyRSA, Hash: crypto.SHA384},
	RSASHA512:   {URI: RSASHA512, Key: KeyRSA, Hash: crypto.SHA512},
	DSASHA1:     {URI: DSASHA1, Key: KeyDSA, Hash: crypto.SHA1},
	DSASHA256:   {URI: DSASHA256, Key: KeyDSA, Hash: crypto.SHA256},
	ECDSASHA1:   {URI: ECDSASHA1, Key: KeyECDSA, Hash: crypto.SHA1},
	ECDSASHA256: {URI: ECDSASHA256, Key: KeyECDSA, Hash: crypto.SHA256},
	ECDSASHA384: {URI: ECDSASHA384, Key: KeyECDSA, Hash: crypto.SHA384},
	ECDSASHA512: {URI: ECDSASHA512, Key: KeyECDSA, Hash: crypto.SHA512},
	Ed25519Sig:  {URI: Ed25519Sig, Key: KeyEd25519, Hash: 0},
	HMACSHA1:    {URI: HMACSHA1, Key: KeyHMAC, Hash: crypto.SHA1},
	HMACSHA256:  {URI: HMACSHA256, Key: KeyHMAC, Hash: crypto.SHA256},
}

var canonicalizations = map[string]bool{
	C14N10:              true,
	C14N10WithComments:  true,
	ExcC14N:             true,
	ExcC14NWithComments: true,
}

var transforms = map[string]bool{
	TransformEnvelopedSignature: true,
	TransformBase64:             true,
}

// Digest resolves a digest method URI to its hash function.
func Digest(uri string) (crypto.Hash, error) {
	h, ok := digests[uri]
	if !ok {
		return 0, fmt.Errorf("%w: digest method %q", ErrUnknownAlgorithm, uri)
	}
	return h, nil
}

// Signature resolves a signature method URI.
func Signature(uri string) (SignatureAlgorithm, error) {
	a, ok := signatures[uri]
	if !ok {
		return SignatureAlgorithm{}, fmt.Errorf("%w: signature method %q", ErrUnknownAlgorithm, uri)
	}
	return a, nil
}

// Lookup classifies a known algorithm URI.
func Lookup(uri string) (Category, error) {
	switch {
	case canonicalizations[uri]:
		return CategoryCanonicalization, nil
	case transforms[uri]:
		return CategoryTransform, nil
	}
	if _, ok := digests[uri]; ok {
		return CategoryDigest, nil
	}
	if _, ok := signatures[uri]; ok {
		return CategorySignature, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, uri)
}

// IsCanonicalization reports whether uri names a canonicalization method.
func IsCanonicalization(uri string) bool {
	return canonicalizations[uri]
}

// CheckKey verifies that a public key matches the algorithm's key family.
func (a SignatureAlgorithm) CheckKey(pub crypto.PublicKey) error {
	switch a.Key {
	case KeyRSA:
		if _, ok := pub.(*rsa.PublicKey); ok {
			return nil
		}
	case KeyDSA:
		if _, ok := pub.(*dsa.PublicKey); ok {
			return nil
		}
	case KeyECDSA:
		if _, ok := pub.(*ecdsa.PublicKey); ok {
			return nil
		}
	case KeyEd25519:
		if _, ok := pub.(ed25519.PublicKey); ok {
			return nil
		}
	case KeyHMAC:
		if _, ok := pub.([]byte); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires a %s key, got %T", ErrKeyMismatch, a.URI, a.Key, pub)
}

// FieldWidth returns the byte width of each integer in the fixed-width
// signature value encoding, or 0 when the algorithm needs no transcoding
// (RSA, EdDSA, HMAC).
func (a SignatureAlgorithm) FieldWidth(pub crypto.PublicKey) (int, error) {
	switch a.Key {
	case KeyDSA:
		k, ok := pub.(*dsa.PublicKey)
		if !ok {
			return 0, fmt.Errorf("%w: %s requires a DSA key, got %T", ErrKeyMismatch, a.URI, pub)
		}
		if k.Q == nil {
			return 0, fmt.Errorf("%w: DSA key has no subgroup order", ErrKeyMismatch)
		}
		return (k.Q.BitLen() + 7) / 8, nil
	case KeyECDSA:
		k, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return 0, fmt.Errorf("%w: %s requires an ECDSA key, got %T", ErrKeyMismatch, a.URI, pub)
		}
		return (k.Curve.Params().BitSize + 7) / 8, nil
	}
	return 0, nil
}

// DigestURI returns the digest method URI for a hash function.
func DigestURI(hash crypto.Hash) (string, error) {
	switch hash {
	case crypto.SHA1:
		return DigestSHA1, nil
	case crypto.SHA256:
		return DigestSHA256, nil
	case crypto.SHA384:
		return DigestSHA384, nil
	case crypto.SHA512:
		return DigestSHA512, nil
	}
	return "", fmt.Errorf("%w: no digest method for hash %v", ErrUnknownAlgorithm, hash)
}

// ForKey returns the conventional signature method URI for a key and hash.
// Used to pick signer defaults; verification always honors the declared URI.
func ForKey(pub crypto.PublicKey, hash crypto.Hash) (string, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		switch hash {
		case crypto.SHA1:
			return RSASHA1, nil
		case crypto.SHA256:
			return RSASHA256, nil
		case crypto.SHA384:
			return RSASHA384, nil
		case crypto.SHA512:
			return RSASHA512, nil
		}
	case *dsa.PublicKey:
		switch hash {
		case crypto.SHA1:
			return DSASHA1, nil
		case crypto.SHA256:
			return DSASHA256, nil
		}
	case *ecdsa.PublicKey:
		switch hash {
		case crypto.SHA1:
			return ECDSASHA1, nil
		case crypto.SHA256:
			return ECDSASHA256, nil
		case crypto.SHA384:
			return ECDSASHA384, nil
		case crypto.SHA512:
			return ECDSASHA512, nil
		}
	case ed25519.PublicKey:
		return Ed25519Sig, nil
	}
	return "", fmt.Errorf("%w: no signature method for key %T with hash %v", ErrUnknownAlgorithm, pub, hash)
}
