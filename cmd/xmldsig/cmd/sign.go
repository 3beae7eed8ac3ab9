package cmd

import (
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-xmldsig/internal/keystore"
	"github.com/sirosfoundation/go-xmldsig/pkg/dsig"
)

var (
	keyFile         string
	certFile        string
	outputFile      string
	signatureMethod string
	digestMethod    string
	c14nMethod      string
	signPrefixList  string
	includeKeyValue bool
	enveloping      bool
	detachedURI     string
)

var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Sign an XML document",
	Long: `Sign an XML document with an XML Digital Signature.

By default the signature is enveloped: it is inserted as the last child
of the document root and covers the whole document. With --enveloping
the signed content is wrapped in a ds:Object inside a new Signature
document instead. With --detached-uri the file's raw bytes are digested
and referenced by the given URI without being embedded.

Examples:
  # Enveloped signature, written to stdout
  xmldsig sign --key signer.pem --cert signer.crt document.xml

  # Enveloping signature with an embedded public key
  xmldsig sign --key signer.pem --key-value --enveloping document.xml

  # Detached signature over arbitrary bytes
  xmldsig sign --key signer.pem --detached-uri https://example.com/doc data.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&keyFile, "key", "k", "", "PEM private key file")
	signCmd.Flags().StringVar(&certFile, "cert", "", "PEM certificate emitted in KeyInfo")
	signCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	signCmd.Flags().StringVar(&signatureMethod, "signature-method", "", "Signature method URI (default chosen from the key type)")
	signCmd.Flags().StringVar(&digestMethod, "digest-method", "", "Digest method URI")
	signCmd.Flags().StringVar(&c14nMethod, "c14n", "", "Canonicalization method URI")
	signCmd.Flags().StringVar(&signPrefixList, "prefix-list", "", "InclusiveNamespaces PrefixList for exclusive canonicalization")
	signCmd.Flags().BoolVar(&includeKeyValue, "key-value", false, "Emit the raw public key as KeyValue when no certificate is given")
	signCmd.Flags().BoolVar(&enveloping, "enveloping", false, "Produce an enveloping signature")
	signCmd.Flags().StringVar(&detachedURI, "detached-uri", "", "Produce a detached signature referencing this URI")
}

func runSign(cmd *cobra.Command, args []string) error {
	signer, err := buildSigner()
	if err != nil {
		return err
	}

	if detachedURI != "" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		sigEl, err := signer.SignDetached(detachedURI, data)
		if err != nil {
			return err
		}
		doc := etree.NewDocument()
		doc.AddChild(sigEl)
		return writeDocument(doc)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(args[0]); err != nil {
		return fmt.Errorf("parsing input: %w", err)
	}
	if doc.Root() == nil {
		return fmt.Errorf("input has no root element")
	}

	if enveloping {
		signed, err := signer.SignEnveloping(doc.Root())
		if err != nil {
			return err
		}
		return writeDocument(signed)
	}

	printVerbose("Signing: %s\n", args[0])
	if _, err := signer.SignEnveloped(doc); err != nil {
		return err
	}
	return writeDocument(doc)
}

// buildSigner assembles a dsig.Signer from flags, falling back to the
// configuration file for anything not given on the command line.
func buildSigner() (*dsig.Signer, error) {
	kf := keyFile
	if kf == "" {
		kf = cfg.Keys.KeyFile
	}
	if kf == "" {
		return nil, fmt.Errorf("no signing key: use --key or set keys.keyFile")
	}
	key, err := keystore.LoadSigner(kf)
	if err != nil {
		return nil, err
	}
	signer := dsig.NewSigner(key)

	cf := certFile
	if cf == "" {
		cf = cfg.Keys.CertFile
	}
	if cf != "" {
		cert, err := keystore.LoadCertificate(cf)
		if err != nil {
			return nil, err
		}
		signer.WithCertificate(cert)
	}

	if m := firstOf(signatureMethod, cfg.Signature.SignatureMethod); m != "" {
		signer.WithSignatureMethod(m)
	}
	if m := firstOf(digestMethod, cfg.Signature.DigestMethod); m != "" {
		signer.WithDigestMethod(m)
	}
	if m := firstOf(c14nMethod, cfg.Signature.Canonicalization); m != "" {
		signer.WithCanonicalization(m, firstOf(signPrefixList, cfg.Signature.PrefixList))
	}
	if includeKeyValue {
		signer.WithKeyValue()
	}
	signer.WithOptions(documentOptions())
	return signer, nil
}

func documentOptions() *dsig.Options {
	return &dsig.Options{
		IDAttributes:        cfg.Document.IDAttributes,
		SignatureNamespaces: cfg.Document.SignatureNamespaces,
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeDocument(doc *etree.Document) error {
	if outputFile == "" {
		_, err := doc.WriteTo(os.Stdout)
		return err
	}
	return doc.WriteToFile(outputFile)
}
