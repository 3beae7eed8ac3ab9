package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-xmldsig/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose    bool
	configFile string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "xmldsig",
	Short: "Sign, verify and canonicalize XML documents",
	Long: `xmldsig creates and verifies XML Digital Signatures.

Supports:
  - Enveloped, enveloping and detached signatures
  - RSA, DSA, ECDSA, Ed25519 and HMAC signature methods
  - Canonical XML 1.0 and Exclusive C14N, with or without comments

Examples:
  # Sign a document with an RSA key
  xmldsig sign --key signer.pem --cert signer.crt document.xml

  # Verify every signature in a document
  xmldsig verify signed.xml

  # Canonicalize a document
  xmldsig c14n --method http://www.w3.org/2001/10/xml-exc-c14n# document.xml`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (env: XMLDSIG_CONFIG)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configFile == "" {
		configFile = os.Getenv("XMLDSIG_CONFIG")
	}
	if configFile == "" {
		cfg = &config.Config{}
		return
	}
	loaded, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
