package dsig

import (
	"crypto"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
)

func TestVerify_NoSignature(t *testing.T) {
	doc := parseTestDoc(t, `<root/>`)
	_, err := NewValidator(nil).Verify(doc, nil)
	assert.ErrorIs(t, err, ErrMalformedStructure)
}

func TestVerify_MalformedStructure(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{
			"no SignedInfo",
			`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
				<ds:SignatureValue>AA==</ds:SignatureValue>
			</ds:Signature>`,
		},
		{
			"no CanonicalizationMethod",
			`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
				<ds:SignedInfo>
					<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
				</ds:SignedInfo>
				<ds:SignatureValue>AA==</ds:SignatureValue>
			</ds:Signature>`,
		},
		{
			"no Reference",
			`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
				<ds:SignedInfo>
					<ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
					<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
				</ds:SignedInfo>
				<ds:SignatureValue>AA==</ds:SignatureValue>
			</ds:Signature>`,
		},
		{
			"no SignatureValue",
			`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
				<ds:SignedInfo>
					<ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
					<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
					<ds:Reference URI="">
						<ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
						<ds:DigestValue>AA==</ds:DigestValue>
					</ds:Reference>
				</ds:SignedInfo>
			</ds:Signature>`,
		},
		{
			"SignatureValue not base64",
			`<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
				<ds:SignedInfo>
					<ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
					<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
					<ds:Reference URI="">
						<ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
						<ds:DigestValue>AA==</ds:DigestValue>
					</ds:Reference>
				</ds:SignedInfo>
				<ds:SignatureValue>!!not-base64!!</ds:SignatureValue>
			</ds:Signature>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseTestDoc(t, tt.xml)
			key := rsaTestKey(t)
			_, err := NewValidator(nil).Verify(doc, key.Public())
			assert.ErrorIs(t, err, ErrMalformedStructure)
		})
	}
}

func TestVerify_UnknownCanonicalization(t *testing.T) {
	doc := parseTestDoc(t, `<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
		<ds:SignedInfo>
			<ds:CanonicalizationMethod Algorithm="http://example.com/c14n-custom"/>
			<ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"/>
			<ds:Reference URI="">
				<ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
				<ds:DigestValue>AA==</ds:DigestValue>
			</ds:Reference>
		</ds:SignedInfo>
		<ds:SignatureValue>AA==</ds:SignatureValue>
	</ds:Signature>`)

	key := rsaTestKey(t)
	_, err := NewValidator(nil).Verify(doc, key.Public())
	assert.ErrorIs(t, err, algorithm.ErrUnknownAlgorithm)
}

func TestVerify_UnknownSignatureMethod(t *testing.T) {
	doc := parseTestDoc(t, `<ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
		<ds:SignedInfo>
			<ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
			<ds:SignatureMethod Algorithm="http://example.com/rsa-md5"/>
			<ds:Reference URI="">
				<ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
				<ds:DigestValue>AA==</ds:DigestValue>
			</ds:Reference>
		</ds:SignedInfo>
		<ds:SignatureValue>AA==</ds:SignatureValue>
	</ds:Signature>`)

	key := rsaTestKey(t)
	_, err := NewValidator(nil).Verify(doc, key.Public())
	assert.ErrorIs(t, err, algorithm.ErrUnknownAlgorithm)
}

func TestVerify_KeyMismatch(t *testing.T) {
	// The declared method is honored even when it disagrees with the
	// supplied key; there is no renegotiation.
	key := rsaTestKey(t)
	doc := parseTestDoc(t, orderXML)
	_, err := NewSigner(key).SignEnveloped(doc)
	require.NoError(t, err)

	_, err = NewValidator(nil).Verify(doc, []byte("hmac-secret"))
	assert.ErrorIs(t, err, algorithm.ErrKeyMismatch)
}

func TestVerify_NoUsableKey(t *testing.T) {
	// No certificate, no KeyValue, no key argument: nothing to verify
	// with.
	key := rsaTestKey(t)
	doc := parseTestDoc(t, orderXML)
	_, err := NewSigner(key).SignEnveloped(doc)
	require.NoError(t, err)

	_, err = NewValidator(nil).Verify(roundTrip(t, doc), nil)
	assert.ErrorIs(t, err, ErrMalformedStructure)
}

func TestVerify_KeyNameResolver(t *testing.T) {
	key := rsaTestKey(t)
	doc := parseTestDoc(t, orderXML)
	sigEl, err := NewSigner(key).SignEnveloped(doc)
	require.NoError(t, err)

	// Splice in a KeyName, the way a deployment with out-of-band key
	// distribution would emit it.
	keyInfo := sigEl.CreateElement("ds:KeyInfo")
	keyInfo.CreateElement("ds:KeyName").SetText("signer-1")

	validator := NewValidator(&Options{
		KeyNameResolver: func(name string) (crypto.PublicKey, error) {
			if name == "signer-1" {
				return key.Public(), nil
			}
			return nil, assert.AnError
		},
	})
	result, err := validator.Verify(doc, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid())
}

func TestVerifyAll_ExcisionIsPerSignature(t *testing.T) {
	key := rsaTestKey(t)

	doc := parseTestDoc(t, `<Envelope><Header/><Body><Data>x</Data></Body></Envelope>`)
	header := doc.Root().SelectElement("Header")
	body := doc.Root().SelectElement("Body")

	// Two enveloped signatures over the same document. The first is
	// computed while the second does not exist yet, so once the second
	// is attached the first one's digest can no longer match: excision
	// removes only the signature being verified, never all signatures.
	_, err := NewSigner(key).WithKeyValue().SignEnvelopedAt(doc, header)
	require.NoError(t, err)
	_, err = NewSigner(key).WithKeyValue().SignEnvelopedAt(doc, body)
	require.NoError(t, err)

	results, err := NewValidator(nil).VerifyAll(roundTrip(t, doc), nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first, second := results[0], results[1]
	assert.True(t, first.SignatureValid)
	assert.False(t, first.Valid(), "earlier signature does not cover the later one")
	assert.ErrorIs(t, first.References[0].Err, ErrDigestMismatch)
	assert.True(t, second.Valid(), "later signature covers everything including the first")
}

func TestVerify_CustomIDAttribute(t *testing.T) {
	// Same-document references resolve through a non-standard identifier
	// attribute, as WS-Security deployments use wsu:Id.
	doc := parseTestDoc(t, `<Envelope xmlns:wsu="urn:wsu"><Body wsu:Id="the-body"><V>1</V></Body></Envelope>`)
	opts := &Options{IDAttributes: []string{"wsu:Id"}}

	ref := Reference{URI: "#the-body", DigestMethod: algorithm.DigestSHA256}
	digest, err := referenceDigest(doc, nil, ref, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, digest)

	// Default options do not know wsu:Id.
	_, err = referenceDigest(doc, nil, ref, nil)
	assert.ErrorIs(t, err, ErrReferenceResolution)
}

func TestVerifySignature_IndependentReferences(t *testing.T) {
	// A signature with one good and one unresolvable reference: both are
	// reported, the good one is not masked by the bad one.
	secret := []byte("secret")
	signer := NewHMACSigner(secret)
	alg, digestURI, err := signer.resolveMethods()
	require.NoError(t, err)

	doc := parseTestDoc(t, `<root><part Id="good">x</part></root>`)
	refs := []Reference{
		{URI: "#good", DigestMethod: digestURI},
		{URI: "#missing", DigestMethod: digestURI},
	}
	sigEl, digestEls, err := signer.buildSkeleton(alg, refs)
	require.NoError(t, err)
	doc.Root().AddChild(sigEl)

	computed, err := referenceDigest(doc, sigEl, refs[0], nil)
	require.NoError(t, err)
	digestEls[0].SetText(base64.StdEncoding.EncodeToString(computed))
	digestEls[1].SetText(base64.StdEncoding.EncodeToString(make([]byte, 32)))
	require.NoError(t, signer.finalize(sigEl, alg))

	result, err := NewValidator(nil).VerifySignature(doc, sigEl, secret)
	require.NoError(t, err)
	assert.True(t, result.SignatureValid)
	require.Len(t, result.References, 2)
	assert.True(t, result.References[0].Valid)
	assert.False(t, result.References[1].Valid)
	assert.ErrorIs(t, result.References[1].Err, ErrReferenceResolution)
	assert.False(t, result.Valid())
}

func TestVerify_AlternateSignatureNamespace(t *testing.T) {
	// A Signature in a non-standard namespace is invisible by default
	// and located once the namespace is configured.
	doc := parseTestDoc(t, `<root xmlns:alt="urn:alt-dsig"><alt:Signature/></root>`)

	_, err := NewValidator(nil).Verify(doc, nil)
	assert.ErrorIs(t, err, ErrMalformedStructure)

	opts := &Options{SignatureNamespaces: []string{"urn:alt-dsig"}}
	_, err = NewValidator(opts).Verify(doc, nil)
	// Located this time, then rejected as structurally incomplete.
	assert.ErrorIs(t, err, ErrMalformedStructure)
	assert.Contains(t, err.Error(), "SignedInfo")
}

func TestResult_Valid(t *testing.T) {
	r := &Result{SignatureValid: true, References: []ReferenceResult{{Valid: true}, {Valid: true}}}
	assert.True(t, r.Valid())
	assert.NoError(t, r.Err())

	r.References[1].Valid = false
	r.References[1].Err = ErrDigestMismatch
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Err(), ErrDigestMismatch)

	r = &Result{SignatureValid: false, References: []ReferenceResult{{Valid: true}}}
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Err(), ErrSignatureInvalid)
}
