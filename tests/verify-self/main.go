// Command verify-self verifies every signature in a signed XML file
// against its embedded KeyInfo, or against a certificate when one is
// given. Useful for checking documents produced by generate-signed or
// by other XML-DSig implementations.
package main

import (
	"crypto"
	"fmt"
	"log"
	"os"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/internal/keystore"
	"github.com/sirosfoundation/go-xmldsig/pkg/dsig"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go <signed-xml-file> [cert.pem]")
		os.Exit(1)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(os.Args[1]); err != nil {
		log.Fatalf("Failed to read signed XML: %v", err)
	}

	var key crypto.PublicKey
	if len(os.Args) > 2 {
		cert, err := keystore.LoadCertificate(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to load certificate: %v", err)
		}
		key = cert.PublicKey
		log.Printf("Verifying against certificate %s", cert.Subject.CommonName)
	} else {
		log.Println("Verifying against embedded KeyInfo")
	}

	results, err := dsig.NewValidator(nil).VerifyAll(doc, key)
	if err != nil {
		log.Fatalf("Verification error: %v", err)
	}

	failed := false
	for i, res := range results {
		if res.Valid() {
			log.Printf("✓ Signature %d PASSED", i+1)
			continue
		}
		failed = true
		log.Printf("✗ Signature %d FAILED (signature value valid: %v)", i+1, res.SignatureValid)
		for _, ref := range res.References {
			if !ref.Valid {
				log.Printf("  reference %q: %v", ref.URI, ref.Err)
			}
		}
	}
	if failed {
		os.Exit(1)
	}
}
