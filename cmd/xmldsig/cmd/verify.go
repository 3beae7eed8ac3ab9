package cmd

import (
	"crypto"
	"encoding/json"
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-xmldsig/internal/keystore"
	"github.com/sirosfoundation/go-xmldsig/pkg/dsig"
)

var (
	verifyCertFile string
	jsonOutput     bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify XML signatures",
	Long: `Verify every XML Digital Signature in the given documents.

The verification key is taken from --cert when given, otherwise from
each signature's own KeyInfo (embedded certificate or KeyValue). Every
reference of every signature is checked and reported individually.

No certificate chain or revocation checking is performed; the KeyInfo
material is used as-is.

Examples:
  # Verify against the embedded KeyInfo
  xmldsig verify signed.xml

  # Verify against a known certificate
  xmldsig verify --cert signer.crt signed.xml

  # JSON output
  xmldsig verify --json signed.xml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyCertFile, "cert", "", "PEM certificate holding the verification key")
	verifyCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit results as JSON")
}

// FileResult holds the verification outcome for one file
type FileResult struct {
	File       string            `json:"file"`
	Valid      bool              `json:"valid"`
	Signatures []SignatureResult `json:"signatures,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SignatureResult holds the outcome for one signature in a file
type SignatureResult struct {
	Valid          bool              `json:"valid"`
	SignatureValid bool              `json:"signature_valid"`
	References     []ReferenceResult `json:"references"`
}

// ReferenceResult holds the outcome for one reference of a signature
type ReferenceResult struct {
	URI   string `json:"uri"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	var key crypto.PublicKey
	if verifyCertFile != "" {
		cert, err := keystore.LoadCertificate(verifyCertFile)
		if err != nil {
			return err
		}
		key = cert.PublicKey
	}

	validator := dsig.NewValidator(documentOptions())

	results := make([]*FileResult, 0, len(args))
	allValid := true
	for _, file := range args {
		printVerbose("Verifying: %s\n", file)
		result := verifyFile(validator, file, key)
		results = append(results, result)
		if !result.Valid {
			allValid = false
		}
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		printResults(results)
	}

	if !allValid {
		return fmt.Errorf("verification failed for some files")
	}
	return nil
}

func verifyFile(validator *dsig.Validator, file string, key crypto.PublicKey) *FileResult {
	result := &FileResult{File: file}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(file); err != nil {
		result.Error = fmt.Sprintf("parsing input: %v", err)
		return result
	}

	verdicts, err := validator.VerifyAll(doc, key)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Valid = true
	for _, v := range verdicts {
		sr := SignatureResult{
			Valid:          v.Valid(),
			SignatureValid: v.SignatureValid,
		}
		for _, ref := range v.References {
			rr := ReferenceResult{URI: ref.URI, Valid: ref.Valid}
			if ref.Err != nil {
				rr.Error = ref.Err.Error()
			}
			sr.References = append(sr.References, rr)
		}
		if !sr.Valid {
			result.Valid = false
		}
		result.Signatures = append(result.Signatures, sr)
	}
	return result
}

func printResults(results []*FileResult) {
	for _, r := range results {
		statusIcon := "✓"
		statusText := "VALID"
		if !r.Valid {
			statusIcon = "✗"
			statusText = "INVALID"
		}
		fmt.Printf("%s %s: %s\n", statusIcon, r.File, statusText)

		if r.Error != "" {
			fmt.Printf("  ✗ %s\n", r.Error)
			continue
		}

		for i, s := range r.Signatures {
			sigStatus := "✓"
			if !s.SignatureValid {
				sigStatus = "✗"
			}
			fmt.Printf("  Signature %d: %s\n", i+1, sigStatus)
			for _, ref := range s.References {
				refStatus := "✓"
				if !ref.Valid {
					refStatus = "✗"
				}
				uri := ref.URI
				if uri == "" {
					uri = "(whole document)"
				}
				fmt.Printf("    Reference %s: %s\n", uri, refStatus)
				if ref.Error != "" {
					fmt.Printf("      %s\n", ref.Error)
				}
			}
		}
	}
}
