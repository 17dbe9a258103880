// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xarsign implements the RSA PKCS#1 v1.5 signer/verifier used to
// protect a XAR table of contents (spec.md §4.6, §6.2, §9).
//
// The source this spec was distilled from dispatches signing over distinct
// key types; spec.md §9 re-architects that as a single Signer
// implementation parameterized by a hash-algorithm data field rather than
// a family of types, since the hash choice (SHA-1 or SHA-256) is runtime
// data, not a structural difference in behavior.
package xarsign

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarhash"
)

// Signer signs the compressed TOC bytes and supplies the certificate chain
// embedded in the resulting <signature> element (spec.md §4.5 step 6).
type Signer interface {
	// Sign returns the PKCS#1 v1.5 signature over data, hashed with the
	// Signer's configured algorithm.
	Sign(data []byte) ([]byte, error)
	// Style is always "RSA" for this implementation (spec.md §3.2).
	Style() string
	// Len returns the signature length in bytes (the RSA modulus size).
	Len() int
	// CertificatesBase64DER returns the chain, leaf first, base64-encoded
	// DER, for embedding in <KeyInfo><X509Data> (spec.md §4.4).
	CertificatesBase64DER() []string
	// Algorithm is the hash algorithm the TOC checksum must also use
	// (SPEC_FULL.md §7: "signature hash selection mirrors the TOC
	// checksum algorithm").
	Algorithm() xarhash.Algorithm
}

// rsaSigner is the sole Signer implementation: an RSA private key, a hash
// algorithm (SHA-1 or SHA-256 only, per spec.md §6.2), and the certificate
// chain to embed.
type rsaSigner struct {
	key   *rsa.PrivateKey
	alg   xarhash.Algorithm
	chain []*x509.Certificate
}

// NewSigner builds a Signer from an RSA private key, the chain it should
// embed (leaf first, root last), and the hash algorithm to sign with. Only
// SHA1 and SHA256 are accepted (spec.md §6.2).
func NewSigner(key *rsa.PrivateKey, chain []*x509.Certificate, alg xarhash.Algorithm) (Signer, error) {
	switch alg {
	case xarhash.SHA1, xarhash.SHA256:
	default:
		return nil, errors.Reason("signing hash algorithm must be sha1 or sha256, got %(alg)s").
			D("alg", alg).Err()
	}
	if len(chain) == 0 {
		return nil, errors.New("signer requires a non-empty certificate chain")
	}
	return &rsaSigner{key: key, alg: alg, chain: chain}, nil
}

func (s *rsaSigner) Sign(data []byte) ([]byte, error) {
	digest, cryptoHash := hashFor(s.alg, data)
	return rsa.SignPKCS1v15(rand.Reader, s.key, cryptoHash, digest)
}

func (s *rsaSigner) Style() string { return "RSA" }

func (s *rsaSigner) Len() int { return s.key.Size() }

func (s *rsaSigner) Algorithm() xarhash.Algorithm { return s.alg }

func (s *rsaSigner) CertificatesBase64DER() []string {
	out := make([]string, len(s.chain))
	for i, c := range s.chain {
		out[i] = base64.StdEncoding.EncodeToString(c.Raw)
	}
	return out
}

func hashFor(alg xarhash.Algorithm, data []byte) ([]byte, crypto.Hash) {
	switch alg {
	case xarhash.SHA1:
		sum := sha1.Sum(data)
		return sum[:], crypto.SHA1
	case xarhash.SHA256:
		sum := sha256.Sum256(data)
		return sum[:], crypto.SHA256
	default:
		panic("xarsign: unreachable hash algorithm")
	}
}

// Verify checks an RSA PKCS#1 v1.5 signature over data using pub, hashed
// with alg. alg must be SHA1 or SHA256 (spec.md §4.6 step 4b/4c).
func Verify(pub *rsa.PublicKey, data, signature []byte, alg xarhash.Algorithm) error {
	digest, cryptoHash := hashFor(alg, data)
	if err := rsa.VerifyPKCS1v15(pub, cryptoHash, digest, signature); err != nil {
		return errors.Annotate(err).Reason("RSA PKCS#1v1.5 signature verification failed").Err()
	}
	return nil
}

// AlgorithmForOID maps a certificate's signature algorithm OID to a
// xarhash.Algorithm, per spec.md §4.6 step 4b.
func AlgorithmForOID(alg x509.SignatureAlgorithm) (xarhash.Algorithm, error) {
	switch alg {
	case x509.SHA1WithRSA:
		return xarhash.SHA1, nil
	case x509.SHA256WithRSA:
		return xarhash.SHA256, nil
	default:
		return xarhash.None, errors.Reason("unsupported certificate signature algorithm %(alg)s").
			D("alg", alg).Err()
	}
}
