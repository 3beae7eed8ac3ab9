package dsig

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
	"github.com/sirosfoundation/go-xmldsig/pkg/c14n"
)

// refData is the value flowing through a reference's transform chain:
// either a node-set over the original document or an octet stream once a
// canonicalization or decoding transform has run.
type refData struct {
	doc      *etree.Document
	node     *etree.Element // nil while still representing the whole document
	excluded c14n.ExcludeSet
	octets   []byte
	isOctets bool
}

func (d *refData) canonicalize(canon c14n.Canonicalizer) error {
	if d.isOctets {
		// Canonicalizing an octet stream reparses it first.
		reparsed := etree.NewDocument()
		if err := reparsed.ReadFromBytes(d.octets); err != nil {
			return fmt.Errorf("%w: reparsing transform output: %v", ErrMalformedStructure, err)
		}
		out, err := canon.CanonicalizeDocument(reparsed, nil)
		if err != nil {
			return err
		}
		d.octets = out
		return nil
	}
	var out []byte
	var err error
	if d.node == nil {
		out, err = canon.CanonicalizeDocument(d.doc, d.excluded)
	} else {
		out, err = canon.CanonicalizeExcluding(d.node, d.excluded)
	}
	if err != nil {
		return err
	}
	d.octets = out
	d.isOctets = true
	return nil
}

// resolveReference locates the reference target. sig is the Signature
// element the reference belongs to; it determines "self" for the
// enveloped signature transform.
func resolveReference(doc *etree.Document, ref Reference, opts *Options) (*refData, error) {
	switch {
	case ref.URI == "":
		return &refData{doc: doc, excluded: c14n.ExcludeSet{}}, nil
	case strings.HasPrefix(ref.URI, "#"):
		id := ref.URI[1:]
		target := findByID(doc.Root(), id, opts.idAttributes())
		if target == nil {
			return nil, fmt.Errorf("%w: no element with identifier %q", ErrReferenceResolution, id)
		}
		return &refData{doc: doc, node: target, excluded: c14n.ExcludeSet{}}, nil
	default:
		if octets, ok := opts.detached(ref.URI); ok {
			return &refData{octets: octets, isOctets: true}, nil
		}
		return nil, fmt.Errorf("%w: no detached data supplied for %q", ErrReferenceResolution, ref.URI)
	}
}

// referenceDigest resolves a reference's target, applies its transform
// chain in declared order and returns the digest over the final output.
func referenceDigest(doc *etree.Document, sig *etree.Element, ref Reference, opts *Options) ([]byte, error) {
	hash, err := algorithm.Digest(ref.DigestMethod)
	if err != nil {
		return nil, err
	}

	data, err := resolveReference(doc, ref, opts)
	if err != nil {
		return nil, err
	}

	for _, t := range ref.Transforms {
		switch {
		case t.Algorithm == algorithm.TransformEnvelopedSignature:
			if data.isOctets {
				return nil, fmt.Errorf("%w: enveloped-signature transform over octets", ErrMalformedStructure)
			}
			for el := range exciseSelf(sig) {
				data.excluded[el] = true
			}
		case algorithm.IsCanonicalization(t.Algorithm):
			canon, err := c14n.ForURI(t.Algorithm, t.PrefixList)
			if err != nil {
				return nil, err
			}
			if err := data.canonicalize(canon); err != nil {
				return nil, err
			}
		case t.Algorithm == algorithm.TransformBase64:
			if err := base64Transform(data); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: transform %q", algorithm.ErrUnknownAlgorithm, t.Algorithm)
		}
	}

	// A chain ending in a node-set is digested over its Canonical XML
	// form, the XML-DSig default.
	if !data.isOctets {
		if err := data.canonicalize(c14n.NewCanonical10(false)); err != nil {
			return nil, err
		}
	}

	h := hash.New()
	h.Write(data.octets)
	return h.Sum(nil), nil
}

// base64Transform decodes the text content of the current data. For a
// node-set input the transform takes the concatenated text of the target
// node's descendants.
func base64Transform(data *refData) error {
	var text string
	if data.isOctets {
		text = string(data.octets)
	} else {
		if data.node == nil {
			if data.doc.Root() == nil {
				return fmt.Errorf("%w: base64 transform on empty document", ErrMalformedStructure)
			}
			text = collectText(data.doc.Root())
		} else {
			text = collectText(data.node)
		}
	}
	decoded, err := decodeBase64(text)
	if err != nil {
		return fmt.Errorf("%w: base64 transform: %v", ErrMalformedStructure, err)
	}
	data.octets = decoded
	data.isOctets = true
	data.node = nil
	return nil
}

func collectText(el *etree.Element) string {
	var b strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return b.String()
}
