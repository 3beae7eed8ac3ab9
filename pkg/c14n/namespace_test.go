package c14n

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInScope(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<root xmlns="urn:d" xmlns:a="urn:a"><mid xmlns:a="urn:a2"><leaf xmlns=""/></mid></root>`))

	leaf := doc.Root().SelectElement("mid").SelectElement("leaf")
	require.NotNil(t, leaf)

	scope := InScope(leaf)
	assert.Equal(t, "", scope[""], "innermost default declaration wins")
	assert.Equal(t, "urn:a2", scope["a"], "innermost prefixed declaration wins")
}

func TestNamespaceOf(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<root xmlns="urn:d" xmlns:a="urn:a"><a:x/><y/></root>`))

	root := doc.Root()
	assert.Equal(t, "urn:d", NamespaceOf(root))
	assert.Equal(t, "urn:a", NamespaceOf(root.SelectElement("x")))
	assert.Equal(t, "urn:d", NamespaceOf(root.SelectElement("y")))
}

func TestNamespaceOf_XMLPrefix(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<root/>`))

	// The xml prefix is bound without any declaration.
	uri, ok := scopeValue(doc.Root(), "xml")
	assert.True(t, ok)
	assert.Equal(t, XMLNamespace, uri)
}

func TestAttrNamespace(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(
		`<root xmlns="urn:d" xmlns:a="urn:a"><x plain="1" a:qual="2"/></root>`))

	x := doc.Root().SelectElement("x")
	require.NotNil(t, x)

	for _, a := range x.Attr {
		switch a.Key {
		case "plain":
			// Unprefixed attributes are in no namespace, even under a
			// default namespace declaration.
			assert.Equal(t, "", attrNamespace(x, a))
		case "qual":
			assert.Equal(t, "urn:a", attrNamespace(x, a))
		}
	}
}
