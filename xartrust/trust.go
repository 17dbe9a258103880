// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xartrust implements the pluggable root-certificate trust policy
// that Archive.Open delegates to when verifying a XAR signature chain
// (spec.md §4.6 step 4f, design note in spec.md §9).
package xartrust

import (
	"bytes"
	"crypto/x509"
)

// Verifier decides whether the self-signed root certificate terminating an
// archive's signature chain should be trusted. Archive.Open accepts any
// implementation (spec.md §9's design note).
type Verifier interface {
	Trusted(root *x509.Certificate) bool
}

// TrustAny accepts every self-signed root. Useful for inspecting archives
// without caring who signed them.
type TrustAny struct{}

func (TrustAny) Trusted(*x509.Certificate) bool { return true }

// TrustList accepts a root iff its public key matches one of an explicit
// list of certificates, compared by public-key bit string (spec.md §4.6
// step 4f: "by default compares public-key bit strings").
type TrustList struct {
	Certs []*x509.Certificate
}

// NewTrustList builds a TrustList verifier from an explicit certificate set
// (e.g. the CLI's repeatable --trust flag, SPEC_FULL.md §6.3).
func NewTrustList(certs ...*x509.Certificate) TrustList {
	return TrustList{Certs: certs}
}

func (t TrustList) Trusted(root *x509.Certificate) bool {
	for _, c := range t.Certs {
		if samePublicKey(c, root) {
			return true
		}
	}
	return false
}

func samePublicKey(a, b *x509.Certificate) bool {
	return bytes.Equal(a.RawSubjectPublicKeyInfo, b.RawSubjectPublicKeyInfo)
}

// TrustApple accepts only a caller-supplied set of Apple XAR root
// certificates, compared by public key (spec.md §9's "trust Apple" stock
// variant). Unlike TrustAny/TrustList, this package does not embed Apple's
// actual root certificate: real deployments bake in their own
// certs/apple.der (the way the original implementation's build.rs reads
// one at compile time) via NewTrustAppleFromDER, typically backed by a
// //go:embed'd file in the importing program.
type TrustApple struct {
	roots []*x509.Certificate
}

// NewTrustAppleFromDER builds the Apple root-trust verifier from one or
// more DER-encoded root certificates.
func NewTrustAppleFromDER(rootsDER ...[]byte) (TrustApple, error) {
	roots := make([]*x509.Certificate, 0, len(rootsDER))
	for _, der := range rootsDER {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return TrustApple{}, err
		}
		roots = append(roots, cert)
	}
	return TrustApple{roots: roots}, nil
}

func (t TrustApple) Trusted(root *x509.Certificate) bool {
	for _, c := range t.roots {
		if samePublicKey(c, root) {
			return true
		}
	}
	return false
}
