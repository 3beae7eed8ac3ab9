package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "material.pem")
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}))
	require.NoError(t, out.Close())
	return path
}

func TestLoadSigner_PKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	signer, err := LoadSigner(writePEM(t, "PRIVATE KEY", der))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public().(*rsa.PublicKey)))
}

func TestLoadSigner_PKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer, err := LoadSigner(writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public().(*rsa.PublicKey)))
}

func TestLoadSigner_SEC1(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	signer, err := LoadSigner(writePEM(t, "EC PRIVATE KEY", der))
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public().(*ecdsa.PublicKey)))
}

func TestLoadSigner_Errors(t *testing.T) {
	_, err := LoadSigner(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)

	notPEM := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(notPEM, []byte("not a pem file"), 0o600))
	_, err = LoadSigner(notPEM)
	assert.Error(t, err)

	_, err = LoadSigner(writePEM(t, "CERTIFICATE REQUEST", []byte{0x30, 0x00}))
	assert.Error(t, err)
}

func TestLoadCertificate(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "keystore test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)

	cert, err := LoadCertificate(writePEM(t, "CERTIFICATE", der))
	require.NoError(t, err)
	assert.Equal(t, "keystore test", cert.Subject.CommonName)
}

func TestLoadCertificate_WrongBlock(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = LoadCertificate(writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)))
	assert.Error(t, err)
}
