package keyinfo

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseElement(t *testing.T, xml string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc.Root()
}

func selfSignedCert(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	return der
}

func TestPublicKey_X509Certificate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := selfSignedCert(t, key)

	// Base64 content may be wrapped; whitespace must be tolerated.
	b64 := base64.StdEncoding.EncodeToString(der)
	wrapped := b64[:40] + "\n " + b64[40:]

	xml := fmt.Sprintf(`<ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
		<ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data>
	</ds:KeyInfo>`, wrapped)

	pub, cert, err := PublicKey(parseElement(t, xml))
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Equal(t, "test signer", cert.Subject.CommonName)
	assert.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))
}

func TestPublicKey_BareX509Certificate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der := selfSignedCert(t, key)

	// Some producers emit X509Certificate without the KeyInfo wrapper.
	xml := fmt.Sprintf(`<X509Certificate>%s</X509Certificate>`,
		base64.StdEncoding.EncodeToString(der))

	pub, cert, err := PublicKey(parseElement(t, xml))
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))
}

func TestPublicKey_RSAKeyValue(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	xml := fmt.Sprintf(`<ds:KeyInfo xmlns:ds="http://www.w3.org/2000/09/xmldsig#">
		<ds:KeyValue><ds:RSAKeyValue>
			<ds:Modulus>%s</ds:Modulus>
			<ds:Exponent>%s</ds:Exponent>
		</ds:RSAKeyValue></ds:KeyValue>
	</ds:KeyInfo>`,
		base64.StdEncoding.EncodeToString(key.N.Bytes()),
		base64.StdEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()))

	pub, cert, err := PublicKey(parseElement(t, xml))
	require.NoError(t, err)
	assert.Nil(t, cert)
	assert.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))
}

func TestPublicKey_ECKeyValue(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	byteLen := 32
	point := make([]byte, 1+2*byteLen)
	point[0] = 4
	key.X.FillBytes(point[1 : 1+byteLen])
	key.Y.FillBytes(point[1+byteLen:])

	xml := fmt.Sprintf(`<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
		<KeyValue><ECKeyValue xmlns="http://www.w3.org/2009/xmldsig11#">
			<NamedCurve URI="urn:oid:1.2.840.10045.3.1.7"/>
			<PublicKey>%s</PublicKey>
		</ECKeyValue></KeyValue>
	</KeyInfo>`, base64.StdEncoding.EncodeToString(point))

	pub, _, err := PublicKey(parseElement(t, xml))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub.(*ecdsa.PublicKey)))
}

func TestPublicKey_ECKeyValue_BadPoint(t *testing.T) {
	xml := `<ECKeyValue>
		<NamedCurve URI="urn:oid:1.2.840.10045.3.1.7"/>
		<PublicKey>AAEC</PublicKey>
	</ECKeyValue>`
	_, _, err := PublicKey(parseElement(t, xml))
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestPublicKey_ECKeyValue_UnknownCurve(t *testing.T) {
	xml := `<ECKeyValue>
		<NamedCurve URI="urn:oid:1.2.3.4"/>
		<PublicKey>BAEC</PublicKey>
	</ECKeyValue>`
	_, _, err := PublicKey(parseElement(t, xml))
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestPublicKey_KeyName(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	resolver := &Resolver{
		KeyName: func(name string) (crypto.PublicKey, error) {
			if name == "signer-1" {
				return key.Public(), nil
			}
			return nil, fmt.Errorf("unknown key %q", name)
		},
	}

	xml := `<KeyInfo xmlns="http://www.w3.org/2000/09/xmldsig#">
		<KeyName> signer-1 </KeyName>
	</KeyInfo>`
	pub, _, err := resolver.PublicKey(parseElement(t, xml))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub.(*rsa.PublicKey)))

	xml = `<KeyInfo><KeyName>other</KeyName></KeyInfo>`
	_, _, err = resolver.PublicKey(parseElement(t, xml))
	assert.Error(t, err)
}

func TestPublicKey_KeyNameWithoutResolver(t *testing.T) {
	xml := `<KeyInfo><KeyName>signer-1</KeyName></KeyInfo>`
	_, _, err := PublicKey(parseElement(t, xml))
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestPublicKey_Empty(t *testing.T) {
	_, _, err := PublicKey(parseElement(t, `<KeyInfo/>`))
	assert.ErrorIs(t, err, ErrNoKey)

	_, _, err = PublicKey(nil)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestPublicKey_MalformedCertificate(t *testing.T) {
	xml := `<KeyInfo><X509Data><X509Certificate>not base64!</X509Certificate></X509Data></KeyInfo>`
	_, _, err := PublicKey(parseElement(t, xml))
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestPublicKey_RSAExponentBounds(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 64)
	xml := fmt.Sprintf(`<RSAKeyValue>
		<Modulus>%s</Modulus>
		<Exponent>%s</Exponent>
	</RSAKeyValue>`,
		base64.StdEncoding.EncodeToString(big.NewInt(12345).Bytes()),
		base64.StdEncoding.EncodeToString(huge.Bytes()))
	_, _, err := PublicKey(parseElement(t, xml))
	assert.ErrorIs(t, err, ErrMalformedKey)
}
