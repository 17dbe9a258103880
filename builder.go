// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarcomp"
	"github.com/igankevich/zar/xarhash"
	"github.com/igankevich/zar/xarsign"
	"github.com/igankevich/zar/xartoc"
	"github.com/igankevich/zar/xarwalk"
)

// createOptionData holds Builder configuration assembled by CreateOption
// functional options (mirroring the teacher's createOptionData/
// CreateOption shape in sar/create.go).
type createOptionData struct {
	compression  xarcomp.Codec
	tocChecksum  xarhash.Algorithm
	fileChecksum xarhash.Algorithm
	signer       xarsign.Signer
	walker       xarwalk.Walker
}

// CreateOption configures CreateFromPath.
type CreateOption func(*createOptionData)

// WithCompression selects the per-file compression codec (spec.md §4.5
// step 2). Defaults to xarcomp.Zlib.
func WithCompression(c xarcomp.Codec) CreateOption {
	return func(o *createOptionData) { o.compression = c }
}

// WithTOCChecksum selects the TOC hash algorithm (spec.md §3.2's
// Toc.checksum.algorithm). Defaults to xarhash.SHA1.
func WithTOCChecksum(alg xarhash.Algorithm) CreateOption {
	return func(o *createOptionData) { o.tocChecksum = alg }
}

// WithFileChecksum selects the per-file archived/extracted checksum
// algorithm. Defaults to xarhash.SHA1.
func WithFileChecksum(alg xarhash.Algorithm) CreateOption {
	return func(o *createOptionData) { o.fileChecksum = alg }
}

// WithSigner configures RSA signing of the finished TOC (spec.md §4.5 step
// 6). The signer's Algorithm() must equal the TOC checksum algorithm in
// effect (SPEC_FULL.md §7: "signature hash selection mirrors the TOC
// checksum algorithm").
func WithSigner(s xarsign.Signer) CreateOption {
	return func(o *createOptionData) { o.signer = s }
}

// WithWalker overrides the directory walker (default xarwalk.Default{}).
func WithWalker(w xarwalk.Walker) CreateOption {
	return func(o *createOptionData) { o.walker = w }
}

// CreateFromPath builds a XAR archive from the filesystem subtree rooted
// at root and writes it to out, per spec.md §4.5's Builder contract.
func CreateFromPath(out io.Writer, root string, options ...CreateOption) error {
	opts := createOptionData{
		compression:  xarcomp.Zlib,
		tocChecksum:  xarhash.SHA1,
		fileChecksum: xarhash.SHA1,
		walker:       xarwalk.Default{},
	}
	for _, o := range options {
		o(&opts)
	}
	if opts.signer != nil && opts.signer.Algorithm() != opts.tocChecksum {
		return errors.Reason(
			"signer algorithm %(sig)s must match the TOC checksum algorithm %(toc)s").
			D("sig", opts.signer.Algorithm()).D("toc", opts.tocChecksum).Err()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return errors.Annotate(err).Reason("resolving absolute root").Err()
	}

	walked, err := opts.walker.Walk(root)
	if err != nil {
		return errors.Annotate(err).Reason("walking %(root)q").D("root", root).Err()
	}

	b := &builder{opts: opts, root: root, byHardLink: map[[2]uint64]*file{}}
	for _, entry := range walked {
		if err := b.addEntry(entry); err != nil {
			return errors.Annotate(err).Reason("adding %(rel)q").D("rel", entry.RelPath).Err()
		}
	}

	return b.finish(out)
}

// builder accumulates the in-progress File tree and compressed payloads
// before finish() emits the archive in one pass (spec.md §5: payloads are
// buffered in memory because the header must declare the TOC length
// before any payload can be written).
type builder struct {
	opts    createOptionData
	root    string
	nextID  uint64
	roots   []*file
	byPath  map[string]*file // archive-relative dir path -> directory File
	payload [][]byte         // accumulated compressed payloads, emission order

	byHardLink map[[2]uint64]*file // (deviceno, inode) -> first File seen
}

func (b *builder) allocID() uint64 {
	b.nextID++
	return b.nextID
}

func (b *builder) addEntry(entry xarwalk.Entry) error {
	info := entry.Info
	rawMode, atime, mtime, ctime, uid, gid, err := statTimesOwner(info)
	if err != nil {
		return err
	}

	f := &file{
		ID:       b.allocID(),
		Name:     filepath.Base(entry.RelPath),
		Inode:    entry.Ino,
		DeviceNo: entry.Dev,
		Mode:     xartoc.NewMode(rawMode),
		UID:      uid,
		GID:      gid,
		ATime:    xartoc.NewTime(atime),
		MTime:    xartoc.NewTime(mtime),
		CTime:    xartoc.NewTime(ctime),
	}

	// Hard-link detection (spec.md §3.3, §4.5 step 4): directories are
	// never hard-linked on POSIX, so only non-directory kinds enter the
	// (deviceno, inode) map. This runs before payload attachment so a
	// non-canonical hard-link member never gets its own independently
	// compressed copy of content it shares with the original (spec.md:19:
	// hard-link recognition is the only dedup this format does).
	var original *file
	if !info.IsDir() {
		key := [2]uint64{entry.Dev, entry.Ino}
		if first, ok := b.byHardLink[key]; ok {
			original = first
		} else {
			b.byHardLink[key] = f
		}
	}

	switch {
	case info.IsDir():
		f.Kind = xartoc.Directory()
	case info.Mode()&os.ModeSymlink != 0:
		f.Kind = xartoc.Symlink()
		link, err := b.readSymlink(entry.RelPath)
		if err != nil {
			return err
		}
		f.Link = &link
	case info.Mode()&os.ModeNamedPipe != 0:
		f.Kind = xartoc.Fifo()
	case info.Mode()&os.ModeSocket != 0:
		f.Kind = xartoc.Socket()
	case info.Mode()&os.ModeDevice != 0:
		major, minor, err := rdevMajorMinor(info)
		if err != nil {
			return err
		}
		f.Device = &xartoc.Device{Major: major, Minor: minor}
		if info.Mode()&os.ModeCharDevice != 0 {
			f.Kind = xartoc.CharacterSpecial()
		} else {
			f.Kind = xartoc.BlockSpecial()
		}
	default:
		f.Kind = xartoc.File()
		if original == nil {
			if err := b.attachPayload(f, entry); err != nil {
				return err
			}
		}
	}

	if original != nil {
		f.Kind = xartoc.HardLinkTo(original.ID)
		if original.Kind.Tag != xartoc.KindHardLink {
			original.Kind = xartoc.HardLinkOriginal()
		}
	}

	b.attach(entry.RelPath, f)
	return nil
}

func (b *builder) attach(relPath string, f *file) {
	parent := filepath.Dir(relPath)
	if parent == "." {
		b.roots = append(b.roots, f)
		if f.Kind.Tag == xartoc.KindDirectory {
			b.indexDir(relPath, f)
		}
		return
	}
	if dir, ok := b.byPath[filepath.ToSlash(parent)]; ok {
		dir.Children = append(dir.Children, f)
	} else {
		// xarwalk guarantees parents precede children; this would be a
		// walker contract violation.
		b.roots = append(b.roots, f)
	}
	if f.Kind.Tag == xartoc.KindDirectory {
		b.indexDir(relPath, f)
	}
}

func (b *builder) indexDir(relPath string, f *file) {
	if b.byPath == nil {
		b.byPath = map[string]*file{}
	}
	b.byPath[filepath.ToSlash(relPath)] = f
}

// readSymlink reads a symlink's raw target and strips the walk-root prefix
// if present, marking dangling targets "broken" (spec.md §4.5 step 2, §8 S4).
func (b *builder) readSymlink(relPath string) (xartoc.Link, error) {
	abs := filepath.Join(b.root, relPath)
	target, err := os.Readlink(abs)
	if err != nil {
		return xartoc.Link{}, errors.Annotate(err).Reason("reading symlink %(rel)q").
			D("rel", relPath).Err()
	}

	stripped := target
	if filepath.IsAbs(target) {
		if rel, err := filepath.Rel(b.root, target); err == nil && !strings.HasPrefix(rel, "..") {
			stripped = rel
		}
	}

	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(abs), resolved)
	}
	kind := ""
	if _, err := os.Stat(resolved); err != nil {
		kind = "broken"
	}

	return xartoc.Link{Kind: kind, Target: filepath.ToSlash(stripped)}, nil
}

// attachPayload compresses a regular file's content and records its
// FileData (spec.md §4.5 steps 2-3). Empty files omit Data entirely
// (spec.md §3.3).
func (b *builder) attachPayload(f *file, entry xarwalk.Entry) error {
	abs := filepath.Join(b.root, entry.RelPath)
	raw, err := os.ReadFile(abs)
	if err != nil {
		return errors.Annotate(err).Reason("reading %(rel)q").D("rel", entry.RelPath).Err()
	}
	if len(raw) == 0 {
		return nil
	}

	var compressed bytes.Buffer
	w, err := xarcomp.NewWriter(&compressed, b.opts.compression)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return errors.Annotate(err).Reason("compressing %(rel)q").D("rel", entry.RelPath).Err()
	}
	if err := w.Close(); err != nil {
		return errors.Annotate(err).Reason("finishing compression of %(rel)q").
			D("rel", entry.RelPath).Err()
	}

	archivedHash, err := xarhash.Compute(b.opts.fileChecksum, compressed.Bytes())
	if err != nil {
		return err
	}
	extractedHash, err := xarhash.Compute(b.opts.fileChecksum, raw)
	if err != nil {
		return err
	}

	b.payload = append(b.payload, compressed.Bytes())
	f.Data = &xartoc.FileData{
		ArchivedChecksum:  xartoc.ChecksumFromHash(archivedHash),
		ExtractedChecksum: xartoc.ChecksumFromHash(extractedHash),
		Encoding:          xartoc.Encoding{Style: b.opts.compression.MIME()},
		Size:              uint64(len(raw)),
		Length:            uint64(compressed.Len()),
	}
	return nil
}

// finish assembles the Toc, computes offsets, signs if configured, and
// emits the complete archive (spec.md §4.5 step 6, §3.3's offset bookkeeping).
func (b *builder) finish(out io.Writer) error {
	hashLen := uint64(b.opts.tocChecksum.Len())
	sigLen := uint64(0)
	if b.opts.signer != nil {
		sigLen = uint64(b.opts.signer.Len())
	}

	t := &toc{
		Checksum: xartoc.TocChecksum{
			Style:  xartoc.StyleForAlgorithm(b.opts.tocChecksum),
			Offset: 0,
			Size:   hashLen,
		},
		CreationTime: xartoc.NewTime(time.Now()),
		Files:        b.roots,
	}
	if b.opts.signer != nil {
		sig := xartoc.NewSignature(hashLen, sigLen, b.opts.signer.CertificatesBase64DER())
		t.Signature = &sig
	}

	// Recompute offsets in flatten order, which matches payload emission
	// order because tree assembly preserves walk discovery order.
	offset := hashLen + sigLen
	payloadIdx := 0
	for _, entry := range flattenWithPaths(b.roots) {
		f := entry.File
		if f.Data == nil {
			continue
		}
		f.Data.Offset = offset
		offset += f.Data.Length
		payloadIdx++
	}
	if payloadIdx != len(b.payload) {
		return errors.New("internal error: payload count does not match FileData count")
	}

	xmlBytes, err := xartoc.Marshal(t)
	if err != nil {
		return errors.Annotate(err).Reason("marshaling TOC").Err()
	}

	var compressedTOC bytes.Buffer
	zw := zlib.NewWriter(&compressedTOC)
	if _, err := zw.Write(xmlBytes); err != nil {
		return errors.Annotate(err).Reason("compressing TOC").Err()
	}
	if err := zw.Close(); err != nil {
		return errors.Annotate(err).Reason("finishing TOC compression").Err()
	}

	header := NewHeader(b.opts.tocChecksum)
	header.TOCLenCompressed = uint64(compressedTOC.Len())
	header.TOCLenUncompressed = uint64(len(xmlBytes))

	if err := WriteHeader(out, header); err != nil {
		return err
	}
	if _, err := out.Write(compressedTOC.Bytes()); err != nil {
		return errors.Annotate(err).Reason("writing compressed TOC").Err()
	}

	if hashLen > 0 {
		tocHash, err := xarhash.Compute(b.opts.tocChecksum, compressedTOC.Bytes())
		if err != nil {
			return err
		}
		if _, err := out.Write(tocHash.Digest); err != nil {
			return errors.Annotate(err).Reason("writing TOC hash").Err()
		}
	}

	if b.opts.signer != nil {
		sig, err := b.opts.signer.Sign(compressedTOC.Bytes())
		if err != nil {
			return errors.Annotate(err).Reason("signing TOC").Err()
		}
		if _, err := out.Write(sig); err != nil {
			return errors.Annotate(err).Reason("writing signature").Err()
		}
	}

	for _, p := range b.payload {
		if _, err := out.Write(p); err != nil {
			return errors.Annotate(err).Reason("writing payload").Err()
		}
	}

	return nil
}
