// Package c14n implements Canonical XML 1.0 and Exclusive XML
// Canonicalization over etree documents.
//
// Canonicalization is a pure function of the input subtree and the
// algorithm parameters: the input tree is never mutated and repeated calls
// yield byte-identical output. The enveloped-signature transform is
// supported through an exclusion set, so a Signature element can be
// removed from the canonical view without rewriting the document.
package c14n

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
)

// ExcludeSet marks elements (and their subtrees) to omit from the
// canonical output. Membership is by node identity, not by value.
type ExcludeSet map[*etree.Element]bool

// Canonicalizer serializes an XML subtree into its canonical byte form.
type Canonicalizer interface {
	// Algorithm returns the canonicalization method URI.
	Algorithm() string

	// Canonicalize serializes the subtree rooted at el.
	Canonicalize(el *etree.Element) ([]byte, error)

	// CanonicalizeExcluding serializes the subtree rooted at el, skipping
	// every element in excluded.
	CanonicalizeExcluding(el *etree.Element, excluded ExcludeSet) ([]byte, error)

	// CanonicalizeDocument serializes the whole document, including
	// top-level processing instructions (and comments, for the
	// WithComments variants) outside the root element.
	CanonicalizeDocument(doc *etree.Document, excluded ExcludeSet) ([]byte, error)
}

// ForURI returns the canonicalizer for a canonicalization method URI.
// prefixList carries the InclusiveNamespaces PrefixList for the exclusive
// variants and is ignored by the inclusive ones.
func ForURI(uri, prefixList string) (Canonicalizer, error) {
	switch uri {
	case algorithm.C14N10:
		return NewCanonical10(false), nil
	case algorithm.C14N10WithComments:
		return NewCanonical10(true), nil
	case algorithm.ExcC14N:
		return NewExclusive(prefixList, false), nil
	case algorithm.ExcC14NWithComments:
		return NewExclusive(prefixList, true), nil
	}
	return nil, fmt.Errorf("%w: canonicalization method %q", algorithm.ErrUnknownAlgorithm, uri)
}

// NewCanonical10 returns a Canonical XML 1.0 canonicalizer.
func NewCanonical10(withComments bool) Canonicalizer {
	uri := algorithm.C14N10
	if withComments {
		uri = algorithm.C14N10WithComments
	}
	return &serializer{uri: uri, comments: withComments}
}

// NewExclusive returns an Exclusive XML Canonicalization canonicalizer.
// prefixList is the space-separated InclusiveNamespaces PrefixList; the
// token #default stands for the default namespace.
func NewExclusive(prefixList string, withComments bool) Canonicalizer {
	uri := algorithm.ExcC14N
	if withComments {
		uri = algorithm.ExcC14NWithComments
	}
	s := &serializer{uri: uri, exclusive: true, comments: withComments}
	if prefixList != "" {
		s.inclusive = make(map[string]bool)
		for _, p := range strings.Fields(prefixList) {
			if p == "#default" {
				p = ""
			}
			s.inclusive[p] = true
		}
	}
	return s
}

type serializer struct {
	uri       string
	exclusive bool
	comments  bool
	inclusive map[string]bool
}

func (s *serializer) Algorithm() string { return s.uri }

func (s *serializer) Canonicalize(el *etree.Element) ([]byte, error) {
	return s.CanonicalizeExcluding(el, nil)
}

func (s *serializer) CanonicalizeExcluding(el *etree.Element, excluded ExcludeSet) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("c14n: nil element")
	}
	var buf bytes.Buffer
	s.element(&buf, el, nil, excluded, true)
	return buf.Bytes(), nil
}

func (s *serializer) CanonicalizeDocument(doc *etree.Document, excluded ExcludeSet) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("c14n: document has no root element")
	}
	root := doc.Root()
	var buf bytes.Buffer
	afterRoot := false
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if t != root {
				continue
			}
			s.element(&buf, t, nil, excluded, true)
			afterRoot = true
		case *etree.ProcInst:
			// The XML declaration is not part of the data model.
			if t.Target == "xml" {
				continue
			}
			if afterRoot {
				buf.WriteByte('\n')
			}
			writeProcInst(&buf, t)
			if !afterRoot {
				buf.WriteByte('\n')
			}
		case *etree.Comment:
			if !s.comments {
				continue
			}
			if afterRoot {
				buf.WriteByte('\n')
			}
			writeComment(&buf, t)
			if !afterRoot {
				buf.WriteByte('\n')
			}
		}
	}
	return buf.Bytes(), nil
}

// nsStack tracks the namespace declarations rendered so far along the
// current output path. One map per open element.
type nsStack []map[string]string

func (s nsStack) rendered(prefix string) (string, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if v, ok := s[i][prefix]; ok {
			return v, true
		}
	}
	return "", false
}

func (s *serializer) element(buf *bytes.Buffer, el *etree.Element, stack nsStack, excluded ExcludeSet, apex bool) {
	if excluded[el] {
		return
	}

	emit := s.namespaceDecls(el, stack, apex)

	buf.WriteByte('<')
	writeName(buf, el)

	prefixes := make([]string, 0, len(emit))
	for p := range emit {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		if p == "" {
			buf.WriteString(` xmlns="`)
		} else {
			buf.WriteString(` xmlns:`)
			buf.WriteString(p)
			buf.WriteString(`="`)
		}
		writeAttrValue(buf, emit[p])
		buf.WriteByte('"')
	}

	for _, a := range s.attributes(el, apex) {
		buf.WriteByte(' ')
		if a.Space != "" {
			buf.WriteString(a.Space)
			buf.WriteByte(':')
		}
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		writeAttrValue(buf, a.Value)
		buf.WriteByte('"')
	}
	buf.WriteByte('>')

	stack = append(stack, emit)
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			s.element(buf, t, stack, excluded, false)
		case *etree.CharData:
			writeText(buf, t.Data)
		case *etree.Comment:
			if s.comments {
				writeComment(buf, t)
			}
		case *etree.ProcInst:
			writeProcInst(buf, t)
		}
	}

	buf.WriteString("</")
	writeName(buf, el)
	buf.WriteByte('>')
}

// namespaceDecls computes the namespace declarations to render on el.
func (s *serializer) namespaceDecls(el *etree.Element, stack nsStack, apex bool) map[string]string {
	emit := make(map[string]string)

	if s.exclusive {
		// Only visibly utilized prefixes are considered: the element's own
		// prefix, every attribute prefix, and the InclusiveNamespaces
		// PrefixList (which follows inclusive-mode rules).
		used := map[string]bool{el.Space: true}
		for _, a := range el.Attr {
			if a.Space != "" && a.Space != "xmlns" {
				used[a.Space] = true
			}
		}
		for p := range s.inclusive {
			used[p] = true
		}
		for p := range used {
			if p == "xml" {
				continue
			}
			uri, ok := scopeValue(el, p)
			if !ok {
				continue
			}
			rv, rok := stack.rendered(p)
			if rok && rv == uri {
				continue
			}
			if p == "" && uri == "" && (!rok || rv == "") {
				continue
			}
			emit[p] = uri
		}
		return emit
	}

	var candidates map[string]string
	if apex {
		candidates = InScope(el)
	} else {
		candidates = declarations(el)
	}
	for p, uri := range candidates {
		if p == "xml" && uri == XMLNamespace {
			continue
		}
		rv, rok := stack.rendered(p)
		if rok && rv == uri {
			continue
		}
		if p == "" && uri == "" && (!rok || rv == "") {
			continue
		}
		emit[p] = uri
	}
	return emit
}

// attributes returns el's non-namespace attributes in canonical order:
// primary key the attribute's namespace URI, secondary key its local name.
// At the apex of an inclusive canonicalization, the simple inheritable
// xml:* attributes of ancestors are pulled in.
func (s *serializer) attributes(el *etree.Element, apex bool) []etree.Attr {
	var attrs []etree.Attr
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		attrs = append(attrs, a)
	}
	if apex && !s.exclusive {
		attrs = append(attrs, inheritedXMLAttrs(el)...)
	}
	sort.SliceStable(attrs, func(i, j int) bool {
		ni, nj := attrNamespace(el, attrs[i]), attrNamespace(el, attrs[j])
		if ni != nj {
			return ni < nj
		}
		return attrs[i].Key < attrs[j].Key
	})
	return attrs
}

// inheritedXMLAttrs collects xml:* attributes declared on ancestors and
// not overridden on el, nearest ancestor winning.
func inheritedXMLAttrs(el *etree.Element) []etree.Attr {
	inherited := make(map[string]etree.Attr)
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space != "xml" {
				continue
			}
			if _, ok := inherited[a.Key]; !ok {
				inherited[a.Key] = a
			}
		}
	}
	for _, a := range el.Attr {
		if a.Space == "xml" {
			delete(inherited, a.Key)
		}
	}
	out := make([]etree.Attr, 0, len(inherited))
	for _, a := range inherited {
		out = append(out, a)
	}
	return out
}

func writeName(buf *bytes.Buffer, el *etree.Element) {
	if el.Space != "" {
		buf.WriteString(el.Space)
		buf.WriteByte(':')
	}
	buf.WriteString(el.Tag)
}

// writeText emits character data with the markup delimiters escaped.
// Carriage returns survive parsing only as character references, so they
// are re-escaped rather than emitted literally.
func writeText(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '\r':
			buf.WriteString("&#xD;")
		default:
			buf.WriteRune(r)
		}
	}
}

func writeAttrValue(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '"':
			buf.WriteString("&quot;")
		case '\t':
			buf.WriteString("&#x9;")
		case '\n':
			buf.WriteString("&#xA;")
		case '\r':
			buf.WriteString("&#xD;")
		default:
			buf.WriteRune(r)
		}
	}
}

func writeComment(buf *bytes.Buffer, c *etree.Comment) {
	buf.WriteString("<!--")
	buf.WriteString(c.Data)
	buf.WriteString("-->")
}

func writeProcInst(buf *bytes.Buffer, p *etree.ProcInst) {
	buf.WriteString("<?")
	buf.WriteString(p.Target)
	if p.Inst != "" {
		buf.WriteByte(' ')
		buf.WriteString(p.Inst)
	}
	buf.WriteString("?>")
}
