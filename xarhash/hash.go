// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xarhash implements the hash algorithms used to protect a XAR
// table of contents and its per-file payloads: parsing, hex formatting,
// computation, and algorithm-tagged comparison.
package xarhash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	"github.com/luci/luci-go/common/errors"
)

// Algorithm identifies a hash function recognized by the XAR format. The
// numeric values match the header's hash_algorithm field (spec.md §4.1/§6.1).
type Algorithm uint32

// Recognized algorithms, in header-code order.
const (
	None Algorithm = iota
	SHA1
	MD5
	SHA256
	SHA512
)

// Valid returns nil iff a is a recognized algorithm code.
func (a Algorithm) Valid() error {
	switch a {
	case None, SHA1, MD5, SHA256, SHA512:
		return nil
	}
	return errors.Reason("unknown hash algorithm code %(a)d").D("a", uint32(a)).Err()
}

// String returns the lowercase name used in CLI flags and error messages.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case SHA1:
		return "sha1"
	case MD5:
		return "md5"
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	}
	return "unknown"
}

// Len returns the digest length in bytes for the given algorithm.
func (a Algorithm) Len() int {
	switch a {
	case None:
		return 0
	case SHA1:
		return sha1.Size
	case MD5:
		return md5.Size
	case SHA256:
		return sha256.Size
	case SHA512:
		return sha512.Size
	}
	panic(a.Valid())
}

// New returns a fresh hash.Hash for the algorithm, or nil for None.
func (a Algorithm) New() hash.Hash {
	switch a {
	case None:
		return nil
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	}
	panic(a.Valid())
}

// Hash is a digest value tagged with the algorithm that produced it. Two
// Hashes with different algorithms are never equal, even if their digest
// bytes happen to coincide.
type Hash struct {
	Algorithm Algorithm
	Digest    []byte
}

// New builds a Hash from raw digest bytes, validating that len(digest)
// matches what the algorithm requires.
func New(algorithm Algorithm, digest []byte) (Hash, error) {
	if err := algorithm.Valid(); err != nil {
		return Hash{}, err
	}
	if len(digest) != algorithm.Len() {
		return Hash{}, errors.
			Reason("invalid digest length for %(alg)s: got %(got)d want %(want)d").
			D("alg", algorithm).D("got", len(digest)).D("want", algorithm.Len()).Err()
	}
	return Hash{Algorithm: algorithm, Digest: append([]byte(nil), digest...)}, nil
}

// Compute hashes data with the given algorithm. Computing with None always
// yields an empty Hash.
func Compute(algorithm Algorithm, data []byte) (Hash, error) {
	if algorithm == None {
		return Hash{Algorithm: None}, nil
	}
	h := algorithm.New()
	if h == nil {
		return Hash{}, algorithm.Valid()
	}
	h.Write(data)
	return Hash{Algorithm: algorithm, Digest: h.Sum(nil)}, nil
}

// ParseHex parses a lowercase hex digest string. An empty string parses as
// the None algorithm; any other length must exactly match a known
// algorithm's digest length.
func ParseHex(s string) (Hash, error) {
	if s == "" {
		return Hash{Algorithm: None}, nil
	}
	digest, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.Annotate(err).Reason("decoding hex digest").Err()
	}
	alg, err := algorithmForLen(len(digest))
	if err != nil {
		return Hash{}, err
	}
	return Hash{Algorithm: alg, Digest: digest}, nil
}

// ParseHexWithAlgorithm parses a hex digest known in advance to belong to
// algorithm (used when the algorithm is carried out-of-band, e.g. a TOC
// <archived-checksum style="..."> attribute, rather than inferred from
// digest length).
func ParseHexWithAlgorithm(algorithm Algorithm, s string) (Hash, error) {
	digest, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, errors.Annotate(err).Reason("decoding hex digest").Err()
	}
	return New(algorithm, digest)
}

func algorithmForLen(n int) (Algorithm, error) {
	switch n {
	case 0:
		return None, nil
	case sha1.Size:
		return SHA1, nil
	case md5.Size:
		return MD5, nil
	case sha256.Size:
		return SHA256, nil
	case sha512.Size:
		return SHA512, nil
	}
	return None, errors.Reason("digest length %(n)d does not match any known algorithm").
		D("n", n).Err()
}

// String returns the lowercase hex encoding of the digest.
func (h Hash) String() string {
	return hex.EncodeToString(h.Digest)
}

// Equal reports whether h and o have the same algorithm and digest bytes.
func (h Hash) Equal(o Hash) bool {
	if h.Algorithm != o.Algorithm {
		return false
	}
	if len(h.Digest) != len(o.Digest) {
		return false
	}
	for i := range h.Digest {
		if h.Digest[i] != o.Digest[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether h carries no algorithm (the None case).
func (h Hash) IsZero() bool {
	return h.Algorithm == None && len(h.Digest) == 0
}
