package c14n

import (
	"github.com/beevik/etree"
)

// Reserved XML namespace names. The xml prefix is implicitly declared on
// every document and is never re-emitted by canonicalization.
const (
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
)

// declarations returns the namespace declarations made directly on el,
// keyed by prefix. The default namespace uses the empty prefix. An
// explicit xmlns="" undeclaration is represented as an empty URI.
func declarations(el *etree.Element) map[string]string {
	var decls map[string]string
	for _, a := range el.Attr {
		var prefix string
		switch {
		case a.Space == "" && a.Key == "xmlns":
			prefix = ""
		case a.Space == "xmlns":
			prefix = a.Key
		default:
			continue
		}
		if decls == nil {
			decls = make(map[string]string)
		}
		decls[prefix] = a.Value
	}
	return decls
}

// InScope returns every namespace declaration visible at el. The walk runs
// from el toward the document root; the innermost declaration of a prefix
// wins. A prefix undeclared via xmlns="" maps to the empty URI.
func InScope(el *etree.Element) map[string]string {
	scope := make(map[string]string)
	for e := el; e != nil; e = e.Parent() {
		for prefix, uri := range declarations(e) {
			if _, ok := scope[prefix]; !ok {
				scope[prefix] = uri
			}
		}
	}
	return scope
}

// scopeValue resolves a single prefix at el, innermost declaration first.
func scopeValue(el *etree.Element, prefix string) (string, bool) {
	if prefix == "xml" {
		return XMLNamespace, true
	}
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if prefix == "" {
				if a.Space == "" && a.Key == "xmlns" {
					return a.Value, true
				}
			} else if a.Space == "xmlns" && a.Key == prefix {
				return a.Value, true
			}
		}
	}
	return "", false
}

// NamespaceOf resolves el's own namespace URI from its prefix, or the
// in-scope default namespace for unprefixed elements.
func NamespaceOf(el *etree.Element) string {
	uri, _ := scopeValue(el, el.Space)
	return uri
}

// attrNamespace resolves an attribute's namespace URI at el. Unprefixed
// attributes are in no namespace regardless of the default declaration.
func attrNamespace(el *etree.Element, a etree.Attr) string {
	if a.Space == "" {
		return ""
	}
	if a.Space == "xml" {
		return XMLNamespace
	}
	uri, _ := scopeValue(el, a.Space)
	return uri
}
