package dsig

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/c14n"
)

// Signature is the parsed view of a ds:Signature element. The underlying
// etree nodes stay attached to their document; parsing never mutates or
// detaches them.
type Signature struct {
	Element        *etree.Element
	SignedInfo     SignedInfo
	SignatureValue []byte
	KeyInfo        *etree.Element
}

// SignedInfo carries the canonicalization method, signature method and
// ordered references. Its own canonical form is the exact input to the
// signature primitive; the raw Signature element never is.
type SignedInfo struct {
	Element                *etree.Element
	CanonicalizationMethod string
	PrefixList             string
	SignatureMethod        string
	References             []Reference
}

// Reference points at one piece of signed content: a target URI, an
// ordered transform chain, and the expected digest.
type Reference struct {
	Element      *etree.Element
	URI          string
	Transforms   []Transform
	DigestMethod string
	DigestValue  []byte
}

// Transform is one step of a reference's transform chain.
type Transform struct {
	Algorithm  string
	PrefixList string
}

// parseSignature builds the typed view of a Signature element, enforcing
// XML-DSig cardinality. All failures wrap ErrMalformedStructure.
func parseSignature(sigEl *etree.Element) (*Signature, error) {
	ns := c14n.NamespaceOf(sigEl)

	signedInfoEl := childNS(sigEl, ns, "SignedInfo")
	if signedInfoEl == nil {
		return nil, fmt.Errorf("%w: Signature has no SignedInfo", ErrMalformedStructure)
	}

	si := SignedInfo{Element: signedInfoEl}

	c14nEl := childNS(signedInfoEl, ns, "CanonicalizationMethod")
	if c14nEl == nil {
		return nil, fmt.Errorf("%w: SignedInfo has no CanonicalizationMethod", ErrMalformedStructure)
	}
	si.CanonicalizationMethod = c14nEl.SelectAttrValue("Algorithm", "")
	if si.CanonicalizationMethod == "" {
		return nil, fmt.Errorf("%w: CanonicalizationMethod has no Algorithm", ErrMalformedStructure)
	}
	si.PrefixList = prefixList(c14nEl)

	sigMethodEl := childNS(signedInfoEl, ns, "SignatureMethod")
	if sigMethodEl == nil {
		return nil, fmt.Errorf("%w: SignedInfo has no SignatureMethod", ErrMalformedStructure)
	}
	si.SignatureMethod = sigMethodEl.SelectAttrValue("Algorithm", "")
	if si.SignatureMethod == "" {
		return nil, fmt.Errorf("%w: SignatureMethod has no Algorithm", ErrMalformedStructure)
	}

	for _, refEl := range childrenNS(signedInfoEl, ns, "Reference") {
		ref, err := parseReference(refEl, ns)
		if err != nil {
			return nil, err
		}
		si.References = append(si.References, ref)
	}
	if len(si.References) == 0 {
		return nil, fmt.Errorf("%w: SignedInfo has no Reference", ErrMalformedStructure)
	}

	sigValueEl := childNS(sigEl, ns, "SignatureValue")
	if sigValueEl == nil {
		return nil, fmt.Errorf("%w: Signature has no SignatureValue", ErrMalformedStructure)
	}
	sigValue, err := decodeBase64(sigValueEl.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: SignatureValue is not base64: %v", ErrMalformedStructure, err)
	}

	return &Signature{
		Element:        sigEl,
		SignedInfo:     si,
		SignatureValue: sigValue,
		KeyInfo:        childNS(sigEl, ns, "KeyInfo"),
	}, nil
}

func parseReference(refEl *etree.Element, ns string) (Reference, error) {
	ref := Reference{
		Element: refEl,
		URI:     refEl.SelectAttrValue("URI", ""),
	}

	if transformsEl := childNS(refEl, ns, "Transforms"); transformsEl != nil {
		for _, tEl := range childrenNS(transformsEl, ns, "Transform") {
			alg := tEl.SelectAttrValue("Algorithm", "")
			if alg == "" {
				return ref, fmt.Errorf("%w: Transform has no Algorithm", ErrMalformedStructure)
			}
			ref.Transforms = append(ref.Transforms, Transform{
				Algorithm:  alg,
				PrefixList: prefixList(tEl),
			})
		}
	}

	digestMethodEl := childNS(refEl, ns, "DigestMethod")
	if digestMethodEl == nil {
		return ref, fmt.Errorf("%w: Reference has no DigestMethod", ErrMalformedStructure)
	}
	ref.DigestMethod = digestMethodEl.SelectAttrValue("Algorithm", "")
	if ref.DigestMethod == "" {
		return ref, fmt.Errorf("%w: DigestMethod has no Algorithm", ErrMalformedStructure)
	}

	digestValueEl := childNS(refEl, ns, "DigestValue")
	if digestValueEl == nil {
		return ref, fmt.Errorf("%w: Reference has no DigestValue", ErrMalformedStructure)
	}
	dv, err := decodeBase64(digestValueEl.Text())
	if err != nil {
		return ref, fmt.Errorf("%w: DigestValue is not base64: %v", ErrMalformedStructure, err)
	}
	if len(dv) == 0 {
		return ref, fmt.Errorf("%w: DigestValue is empty", ErrMalformedStructure)
	}
	ref.DigestValue = dv

	return ref, nil
}

// prefixList extracts the InclusiveNamespaces PrefixList parameter of a
// canonicalization method or transform, if present.
func prefixList(el *etree.Element) string {
	for _, ch := range el.ChildElements() {
		if ch.Tag == "InclusiveNamespaces" {
			return ch.SelectAttrValue("PrefixList", "")
		}
	}
	return ""
}

// childNS returns the first child element with the given local name and
// namespace, or nil.
func childNS(el *etree.Element, ns, name string) *etree.Element {
	for _, ch := range el.ChildElements() {
		if ch.Tag == name && c14n.NamespaceOf(ch) == ns {
			return ch
		}
	}
	return nil
}

func childrenNS(el *etree.Element, ns, name string) []*etree.Element {
	var out []*etree.Element
	for _, ch := range el.ChildElements() {
		if ch.Tag == name && c14n.NamespaceOf(ch) == ns {
			out = append(out, ch)
		}
	}
	return out
}

// decodeBase64 decodes XML base64 content, tolerating the whitespace
// producers wrap long values with.
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
