package dsig

import "errors"

// Structural errors mean the input could not be interpreted as a
// signature; cryptographic mismatch errors mean a well-formed signature
// failed verification. Callers can tell the two apart with errors.Is.
var (
	// ErrMalformedStructure is returned when a required element is missing
	// or has the wrong cardinality
	ErrMalformedStructure = errors.New("malformed signature structure")
	// ErrDigestMismatch is returned when a reference digest does not match
	// its recomputed value
	ErrDigestMismatch = errors.New("reference digest mismatch")
	// ErrSignatureInvalid is returned when the signature value does not
	// verify against the canonical SignedInfo
	ErrSignatureInvalid = errors.New("signature verification failed")
	// ErrReferenceResolution is returned when a reference target cannot
	// be located
	ErrReferenceResolution = errors.New("reference target not resolvable")
)
