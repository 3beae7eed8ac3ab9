// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goxmldsig implements XML Digital Signatures (XML-DSig) for
signing and verifying XML documents.

# Overview

go-xmldsig is a Go implementation of the W3C XML Signature Syntax and
Processing specification over an explicit XML tree model. It produces
and verifies enveloped, enveloping and detached signatures, and carries
its own implementations of Canonical XML 1.0 and Exclusive XML
Canonicalization, which the signature semantics depend on.

# Specifications Implemented

This library implements the following specifications:

  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - Canonical XML Version 1.0: https://www.w3.org/TR/xml-c14n
  - Exclusive XML Canonicalization Version 1.0: https://www.w3.org/TR/xml-exc-c14n/

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-xmldsig/pkg/dsig      - Signing and verification API
	github.com/sirosfoundation/go-xmldsig/pkg/c14n      - Canonical XML 1.0 and Exclusive C14N
	github.com/sirosfoundation/go-xmldsig/pkg/algorithm - Algorithm URI registry
	github.com/sirosfoundation/go-xmldsig/pkg/keyinfo   - KeyInfo key extraction
	github.com/sirosfoundation/go-xmldsig/pkg/sigvalue  - DSA/ECDSA signature value encoding

# Quick Start

To sign and verify a document:

	import (
	    "github.com/beevik/etree"
	    "github.com/sirosfoundation/go-xmldsig/pkg/dsig"
	)

	// Sign: Signature is appended to the root and covers the document
	doc := etree.NewDocument()
	doc.ReadFromFile("order.xml")
	signer := dsig.NewSigner(privateKey).WithCertificate(cert)
	sigEl, err := signer.SignEnveloped(doc)

	// Verify: key taken from the signature's KeyInfo
	validator := dsig.NewValidator(nil)
	result, err := validator.Verify(doc, nil)
	if result.Valid() {
	    // every reference digest matched and the signature value verified
	}

# Security Features

## Signature Methods

  - RSA PKCS#1 v1.5 with SHA-1/256/384/512
  - ECDSA with SHA-1/256/384/512 (P-256, P-384, P-521)
  - DSA with SHA-1/SHA-256
  - Ed25519 (pure EdDSA)
  - HMAC with SHA-1/SHA-256

## Canonicalization

  - Canonical XML 1.0, with and without comments
  - Exclusive C14N, with and without comments, honoring the
    InclusiveNamespaces PrefixList

## Scope

KeyInfo is treated as a key-material carrier only. Certificate chain
building, trust policy and revocation checking are out of scope;
callers wanting them validate the certificate returned from KeyInfo
themselves.

# Interoperability

Signatures are produced in schema order with exclusive
canonicalization by default, the profile expected by WS-Security,
SAML and ebMS/AS4 processors.

# License

BSD-2-Clause License
*/
package goxmldsig
