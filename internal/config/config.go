// Package config handles configuration loading for the xmldsig CLI.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so key paths and secrets
// can be injected at runtime.
//
// # Example Configuration
//
//	keys:
//	  keyFile: ${XMLDSIG_KEY}
//	  certFile: /etc/ssl/signer.crt
//
//	signature:
//	  signatureMethod: http://www.w3.org/2001/04/xmldsig-more#rsa-sha256
//	  digestMethod: http://www.w3.org/2001/04/xmlenc#sha256
//	  canonicalization: http://www.w3.org/2001/10/xml-exc-c14n#
//	  prefixList: ""
//
//	document:
//	  idAttributes: [ID, Id, id, wsu:Id]
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-xmldsig/pkg/algorithm"
)

// Config is the root configuration structure
type Config struct {
	Keys      KeysConfig      `yaml:"keys"`
	Signature SignatureConfig `yaml:"signature"`
	Document  DocumentConfig  `yaml:"document"`
}

// KeysConfig holds PEM key material locations
type KeysConfig struct {
	// KeyFile is the PEM private key used for signing
	KeyFile string `yaml:"keyFile"`
	// CertFile is the PEM certificate emitted in KeyInfo and used as
	// the default verification key
	CertFile string `yaml:"certFile"`
}

// SignatureConfig holds the algorithm selection for signing
type SignatureConfig struct {
	SignatureMethod  string `yaml:"signatureMethod"`
	DigestMethod     string `yaml:"digestMethod"`
	Canonicalization string `yaml:"canonicalization"`
	// PrefixList is the InclusiveNamespaces PrefixList for the
	// exclusive canonicalization variants
	PrefixList string `yaml:"prefixList"`
}

// DocumentConfig holds document processing settings
type DocumentConfig struct {
	// IDAttributes are the attribute names resolved as same-document
	// fragment identifiers
	IDAttributes []string `yaml:"idAttributes"`
	// SignatureNamespaces lists alternate namespaces accepted for the
	// Signature element, for interoperability with non-conformant
	// producers
	SignatureNamespaces []string `yaml:"signatureNamespaces"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Signature.DigestMethod == "" {
		c.Signature.DigestMethod = algorithm.DigestSHA256
	}
	if c.Signature.Canonicalization == "" {
		c.Signature.Canonicalization = algorithm.ExcC14N
	}
}

func (c *Config) validate() error {
	if !algorithm.IsCanonicalization(c.Signature.Canonicalization) {
		return fmt.Errorf("signature.canonicalization: unknown method %q", c.Signature.Canonicalization)
	}
	if _, err := algorithm.Digest(c.Signature.DigestMethod); err != nil {
		return fmt.Errorf("signature.digestMethod: %w", err)
	}
	if c.Signature.SignatureMethod != "" {
		if _, err := algorithm.Signature(c.Signature.SignatureMethod); err != nil {
			return fmt.Errorf("signature.signatureMethod: %w", err)
		}
	}
	return nil
}
