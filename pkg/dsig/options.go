package dsig

import "crypto"

// Namespace is the standard XML Digital Signature namespace.
const Namespace = "http://www.w3.org/2000/09/xmldsig#"

// ExcC14NNamespace is the Exclusive Canonicalization namespace, used by
// the InclusiveNamespaces parameter element.
const ExcC14NNamespace = "http://www.w3.org/2001/10/xml-exc-c14n#"

// DefaultIDAttributes are the attribute names recognized as
// same-document fragment identifiers when no override is configured.
var DefaultIDAttributes = []string{"ID", "Id", "id"}

// Options configures signature processing. The zero value uses the
// standard XML-DSig namespace and the default identifier attributes.
type Options struct {
	// IDAttributes lists the attribute names matched when resolving a
	// same-document #fragment reference. Matching is by name, not by
	// schema ID typing; deployments using wsu:Id or similar add their
	// name here.
	IDAttributes []string

	// SignatureNamespaces lists the namespace URIs accepted for the
	// Signature element and its children. The standard namespace is
	// always implied; alternates exist for interoperability with
	// non-conformant producers.
	SignatureNamespaces []string

	// DetachedData supplies the octets for detached references, keyed by
	// the exact Reference URI. External URI retrieval is the caller's
	// concern; the engine never performs I/O.
	DetachedData map[string][]byte

	// KeyNameResolver maps a ds:KeyName to a verification key.
	KeyNameResolver func(name string) (crypto.PublicKey, error)
}

func (o *Options) idAttributes() []string {
	if o == nil || len(o.IDAttributes) == 0 {
		return DefaultIDAttributes
	}
	return o.IDAttributes
}

func (o *Options) signatureNamespaces() []string {
	if o == nil || len(o.SignatureNamespaces) == 0 {
		return []string{Namespace}
	}
	for _, ns := range o.SignatureNamespaces {
		if ns == Namespace {
			return o.SignatureNamespaces
		}
	}
	return append([]string{Namespace}, o.SignatureNamespaces...)
}

func (o *Options) detached(uri string) ([]byte, bool) {
	if o == nil || o.DetachedData == nil {
		return nil, false
	}
	b, ok := o.DetachedData[uri]
	return b, ok
}
