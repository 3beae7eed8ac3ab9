// Command generate-signed produces a signed sample document for manual
// inspection and for feeding other XML-DSig implementations.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log"
	"os"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-xmldsig/pkg/dsig"
)

const sampleXML = `<Invoice xmlns="http://example.com/invoicing">
	<InvoiceID>INV-2024-0042</InvoiceID>
	<Supplier>Example Supplier Ltd</Supplier>
	<Total currency="EUR">1280.50</Total>
</Invoice>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go <output-file>")
		os.Exit(1)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(sampleXML); err != nil {
		log.Fatalf("Failed to parse sample: %v", err)
	}

	signer := dsig.NewSigner(key).WithKeyValue()
	sigEl, err := signer.SignEnveloped(doc)
	if err != nil {
		log.Fatalf("Failed to sign: %v", err)
	}
	log.Printf("Signed sample document (signature %s)", sigEl.SelectAttrValue("Id", ""))

	if err := doc.WriteToFile(os.Args[1]); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	log.Printf("Wrote %s", os.Args[1])
}
