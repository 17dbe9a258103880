// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package zar implements the XAR (eXtensible ARchive) container format:
// fixed-layout header, zlib-compressed XML table of contents, hash and
// signature trailer, and a heap of per-file compressed payloads
// (spec.md §1-§4).
package zar

import (
	"bytes"
	"compress/zlib"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"io"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarcomp"
	"github.com/igankevich/zar/xarhash"
	"github.com/igankevich/zar/xarsign"
	"github.com/igankevich/zar/xartoc"
	"github.com/igankevich/zar/xartrust"
)

// readSeeker is the minimal stream contract Open requires: the reader
// re-seeks for every entry and for signature/hash trailer access (spec.md
// §5's sharing rule).
type readSeeker interface {
	io.Reader
	io.Seeker
}

// openOptionData holds Archive.Open configuration assembled by OpenOption
// functional options, mirroring the teacher's openOptionData shape in
// sar/open.go.
type openOptionData struct {
	checkTOC   bool
	checkFiles bool
	verify     bool
	verifier   xartrust.Verifier
}

// OpenOption configures Open.
type OpenOption func(*openOptionData)

// WithCheckTOC toggles TOC hash verification (spec.md §4.6 step 3).
// Default true.
func WithCheckTOC(v bool) OpenOption {
	return func(o *openOptionData) { o.checkTOC = v }
}

// WithCheckFiles toggles per-file archived-hash verification during
// Entry.Reader (spec.md §4.6's Entry.reader). Default true.
func WithCheckFiles(v bool) OpenOption {
	return func(o *openOptionData) { o.checkFiles = v }
}

// WithVerify toggles signature-chain verification (spec.md §4.6 step 4)
// against verifier. Default false (no verifier configured).
func WithVerify(verifier xartrust.Verifier) OpenOption {
	return func(o *openOptionData) {
		o.verify = true
		o.verifier = verifier
	}
}

// Archive is an opened, TOC-verified XAR file (spec.md §4.6).
type Archive struct {
	r      readSeeker
	header Header
	toc    *toc
	opts   openOptionData

	heapOffset int64 // absolute stream offset where heap offset 0 lives
	entries    []treeEntry
}

// Open reads and validates the header and TOC of r, per spec.md §4.6 steps
// 1-5. Entry readers are obtained lazily via Archive.Reader.
func Open(r readSeeker, options ...OpenOption) (*Archive, error) {
	opts := openOptionData{checkTOC: true, checkFiles: true}
	for _, o := range options {
		o(&opts)
	}

	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	compressedTOC := make([]byte, header.TOCLenCompressed)
	if _, err := io.ReadFull(r, compressedTOC); err != nil {
		return nil, errors.Annotate(err).Reason("reading compressed TOC").Err()
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressedTOC))
	if err != nil {
		return nil, errors.Annotate(err).Reason("decompressing TOC").Err()
	}
	xmlBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Annotate(err).Reason("reading decompressed TOC").Err()
	}

	t, err := xartoc.Unmarshal[xartoc.RawExtra](xmlBytes)
	if err != nil {
		return nil, errors.Annotate(err).Reason("unmarshaling TOC").Err()
	}

	heapOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Annotate(err).Reason("locating heap offset").Err()
	}

	a := &Archive{r: r, header: header, toc: t, opts: opts, heapOffset: heapOffset}

	if opts.checkTOC && header.HashAlgorithm != xarhash.None {
		if err := a.checkTOCHash(compressedTOC); err != nil {
			return nil, err
		}
	}
	if opts.verify {
		if err := a.verifySignature(compressedTOC); err != nil {
			return nil, err
		}
	}

	a.entries = flattenWithPaths(t.Files)
	if err := a.checkOffsetMonotonicity(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Archive) checkTOCHash(compressedTOC []byte) error {
	declared := make([]byte, a.toc.Checksum.Size)
	if _, err := a.r.Seek(a.heapOffset+int64(a.toc.Checksum.Offset), io.SeekStart); err != nil {
		return errors.Annotate(err).Reason("seeking to TOC hash").Err()
	}
	if _, err := io.ReadFull(a.r, declared); err != nil {
		return errors.Annotate(err).Reason("reading TOC hash").Err()
	}

	computed, err := xarhash.Compute(a.header.HashAlgorithm, compressedTOC)
	if err != nil {
		return err
	}
	if !bytes.Equal(declared, computed.Digest) {
		return errChecksumMismatch("TOC")
	}
	return nil
}

// verifySignature implements spec.md §4.6 step 4: leaf signs the
// compressed TOC bytes, each subsequent certificate signs the previous
// one, and the root must be self-signed and trusted.
func (a *Archive) verifySignature(compressedTOC []byte) error {
	sig := a.toc.Signature
	if sig == nil {
		return errors.New("archive has no signature to verify")
	}

	sigBytes := make([]byte, sig.Size)
	if _, err := a.r.Seek(a.heapOffset+int64(sig.Offset), io.SeekStart); err != nil {
		return errors.Annotate(err).Reason("seeking to signature").Err()
	}
	if _, err := io.ReadFull(a.r, sigBytes); err != nil {
		return errors.Annotate(err).Reason("reading signature").Err()
	}

	certsB64 := sig.KeyInfo.X509Data.Certificates
	if len(certsB64) == 0 {
		return errors.New("signature certificate chain is empty")
	}
	certs := make([]*x509.Certificate, len(certsB64))
	for i, b64 := range certsB64 {
		der, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return errors.Annotate(err).Reason("decoding certificate %(i)d").D("i", i).Err()
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return errors.Annotate(err).Reason("parsing certificate %(i)d").D("i", i).Err()
		}
		certs[i] = cert
	}

	leaf := certs[0]
	leafKey, ok := leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return errSignatureInvalid{errors.New("leaf certificate is not an RSA key")}
	}
	if err := xarsign.Verify(leafKey, compressedTOC, sigBytes, a.header.HashAlgorithm); err != nil {
		return errSignatureInvalid{err}
	}

	for i := 1; i < len(certs); i++ {
		if err := certs[i-1].CheckSignatureFrom(certs[i]); err != nil {
			return errSignatureInvalid{err}
		}
	}

	root := certs[len(certs)-1]
	if err := root.CheckSignatureFrom(root); err != nil {
		return errSignatureInvalid{err}
	}

	if a.opts.verifier == nil || !a.opts.verifier.Trusted(root) {
		return errSignatureInvalid{errors.New("root certificate is not trusted")}
	}

	return nil
}

func (a *Archive) checkOffsetMonotonicity() error {
	hashLen := uint64(a.header.HashAlgorithm.Len())
	sigLen := uint64(0)
	if a.toc.Signature != nil {
		sigLen = a.toc.Signature.Size
	}
	want := hashLen + sigLen
	for _, e := range a.entries {
		if e.File.Data == nil {
			continue
		}
		if e.File.Data.Offset != want {
			return errors.Reason(
				"invalid heap offset for %(rel)q: got %(got)d want %(want)d").
				D("rel", e.RelPath).D("got", e.File.Data.Offset).D("want", want).Err()
		}
		want += e.File.Data.Length
	}
	return nil
}

// NumEntries returns the number of flattened file-tree entries.
func (a *Archive) NumEntries() int { return len(a.entries) }

// Entry returns the i'th flattened entry, in the traversal order of
// spec.md §4.6 step 5.
func (a *Archive) Entry(i int) (*xartoc.File[xartoc.RawExtra], string) {
	e := a.entries[i]
	return e.File, e.RelPath
}

// TOC returns the parsed table of contents.
func (a *Archive) TOC() *xartoc.Toc[xartoc.RawExtra] { return a.toc }

// Reader returns a streaming decoder for a regular file's payload, per
// spec.md §4.6's Entry::reader. Returns nil for directories, symlinks,
// non-original hard links, and every other non-regular kind; returns an
// empty reader for a regular file or hard-link original without a FileData.
func (a *Archive) Reader(i int) (io.ReadCloser, error) {
	f, rel := a.Entry(i)
	regular := f.Kind.Tag == xartoc.KindFile ||
		(f.Kind.Tag == xartoc.KindHardLink && f.Kind.HardLink.Original)
	if !regular {
		return nil, nil
	}
	if f.Data == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	if _, err := a.r.Seek(a.heapOffset+int64(f.Data.Offset), io.SeekStart); err != nil {
		return nil, errors.Annotate(err).Reason("seeking to %(rel)q payload").D("rel", rel).Err()
	}
	compressed := make([]byte, f.Data.Length)
	if _, err := io.ReadFull(a.r, compressed); err != nil {
		return nil, errors.Annotate(err).Reason("reading %(rel)q payload").D("rel", rel).Err()
	}

	if a.opts.checkFiles {
		hash, err := f.Data.ArchivedChecksum.ToHash()
		if err != nil {
			return nil, err
		}
		if !hash.IsZero() {
			computed, err := xarhash.Compute(hash.Algorithm, compressed)
			if err != nil {
				return nil, err
			}
			if !computed.Equal(hash) {
				return nil, errChecksumMismatch(rel)
			}
		}
	}

	codec := xarcomp.ForMIME(f.Data.Encoding.Style)
	return xarcomp.NewReader(bytes.NewReader(compressed), codec)
}

type errChecksumMismatch string

func (e errChecksumMismatch) Error() string {
	return "zar: checksum mismatch for " + string(e)
}

type errSignatureInvalid struct{ cause error }

func (e errSignatureInvalid) Error() string {
	return "zar: signature invalid: " + e.cause.Error()
}

func (e errSignatureInvalid) Unwrap() error { return e.cause }
