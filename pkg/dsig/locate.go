package dsig

import (
	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/c14n"
)

// LocateSignatures finds every Signature element in the document, at any
// depth, in document order. Nested signatures (a Signature inside content
// signed by another) are all reported; which one is "self" for a given
// operation is decided by the caller.
func LocateSignatures(doc *etree.Document, opts *Options) []*etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	accepted := opts.signatureNamespaces()
	var found []*etree.Element
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if el.Tag == "Signature" && contains(accepted, c14n.NamespaceOf(el)) {
			found = append(found, el)
		}
		// keep walking: signatures may nest inside signed content,
		// including inside another Signature's Object
		for _, ch := range el.ChildElements() {
			walk(ch)
		}
	}
	walk(root)
	return found
}

// findByID resolves a same-document fragment identifier. An entry in
// idAttrs containing a colon matches the qualified attribute name
// exactly; a bare name matches the attribute's local name under any
// prefix, which covers deployments using wsu:Id and similar.
func findByID(root *etree.Element, id string, idAttrs []string) *etree.Element {
	var match func(el *etree.Element) *etree.Element
	match = func(el *etree.Element) *etree.Element {
		for _, a := range el.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				continue
			}
			for _, name := range idAttrs {
				if qualified(name) {
					if a.Space+":"+a.Key == name && a.Value == id {
						return el
					}
				} else if a.Key == name && a.Value == id {
					return el
				}
			}
		}
		for _, ch := range el.ChildElements() {
			if found := match(ch); found != nil {
				return found
			}
		}
		return nil
	}
	return match(root)
}

// exciseSelf produces the canonicalization view for the enveloped
// signature transform: the document with exactly this Signature element
// removed. The view is an exclusion set over the original tree, so no
// node is mutated and namespace declarations visible to the remaining
// nodes are untouched. Nested signatures other than self stay in place.
func exciseSelf(sig *etree.Element) c14n.ExcludeSet {
	return c14n.ExcludeSet{sig: true}
}

func qualified(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
