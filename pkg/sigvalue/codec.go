// Package sigvalue converts DSA/ECDSA signature values between the ASN.1
// DER SEQUENCE form used by crypto primitives and the fixed-width r||s
// concatenation mandated by XML-DSig.
//
// RSA and EdDSA signature values need no transcoding and never pass
// through this package.
package sigvalue

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// ErrCodec is returned for any DER or fixed-width transcoding failure.
var ErrCodec = errors.New("signature value codec")

type derSignature struct {
	R, S *big.Int
}

// FromDER converts a DER SEQUENCE { INTEGER r, INTEGER s } into the
// fixed-width wire form: r and s as unsigned big-endian integers, each
// left-padded with zeros to width bytes.
func FromDER(der []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: invalid field width %d", ErrCodec, width)
	}
	var sig derSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after DER sequence", ErrCodec, len(rest))
	}
	if sig.R.Sign() < 0 || sig.S.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer in signature", ErrCodec)
	}
	if (sig.R.BitLen()+7)/8 > width || (sig.S.BitLen()+7)/8 > width {
		return nil, fmt.Errorf("%w: integer exceeds field width %d", ErrCodec, width)
	}
	out := make([]byte, 2*width)
	sig.R.FillBytes(out[:width])
	sig.S.FillBytes(out[width:])
	return out, nil
}

// ToDER converts the fixed-width r||s wire form back into a DER SEQUENCE.
// The wire value must be exactly twice the field width; each half is
// reinterpreted as an unsigned big-endian integer and re-encoded as a
// minimal DER INTEGER.
func ToDER(raw []byte, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: invalid field width %d", ErrCodec, width)
	}
	if len(raw) != 2*width {
		return nil, fmt.Errorf("%w: wire length %d, want %d", ErrCodec, len(raw), 2*width)
	}
	sig := derSignature{
		R: new(big.Int).SetBytes(raw[:width]),
		S: new(big.Int).SetBytes(raw[width:]),
	}
	der, err := asn1.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return der, nil
}

// Split parses the fixed-width wire form into its two integers.
func Split(raw []byte, width int) (r, s *big.Int, err error) {
	if width <= 0 || len(raw) != 2*width {
		return nil, nil, fmt.Errorf("%w: wire length %d, want %d", ErrCodec, len(raw), 2*width)
	}
	return new(big.Int).SetBytes(raw[:width]), new(big.Int).SetBytes(raw[width:]), nil
}

// Join encodes two integers into the fixed-width wire form.
func Join(r, s *big.Int, width int) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: invalid field width %d", ErrCodec, width)
	}
	if r.Sign() < 0 || s.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative integer in signature", ErrCodec)
	}
	if (r.BitLen()+7)/8 > width || (s.BitLen()+7)/8 > width {
		return nil, fmt.Errorf("%w: integer exceeds field width %d", ErrCodec, width)
	}
	out := make([]byte, 2*width)
	r.FillBytes(out[:width])
	s.FillBytes(out[width:])
	return out, nil
}
