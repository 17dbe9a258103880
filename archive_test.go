// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/xarcomp"
	"github.com/igankevich/zar/xarhash"
)

// buildTestTree creates a small fixture directory: a regular file, an
// empty file (spec.md §8's S2 scenario), a subdirectory, and a symlink.
func buildTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	So(os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, xar!"), 0o644), ShouldBeNil)
	So(os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o644), ShouldBeNil)
	So(os.Mkdir(filepath.Join(root, "sub"), 0o755), ShouldBeNil)
	So(os.WriteFile(filepath.Join(root, "sub", "nested.txt"), []byte("nested content"), 0o644), ShouldBeNil)
	So(os.Symlink("nested.txt", filepath.Join(root, "sub", "link")), ShouldBeNil)
	return root
}

func TestCreateAndOpen(t *testing.T) {
	t.Parallel()

	Convey("CreateFromPath/Open", t, func() {
		root := buildTestTree(t)

		Convey("round-trips a tree through create and open, independent of codec", func() {
			for _, codec := range []xarcomp.Codec{xarcomp.None, xarcomp.Zlib, xarcomp.Bzip2, xarcomp.XZ} {
				var buf bytes.Buffer
				err := CreateFromPath(&buf, root, WithCompression(codec))
				So(err, ShouldBeNil)

				a, err := Open(bytes.NewReader(buf.Bytes()))
				So(err, ShouldBeNil)
				So(a.NumEntries(), ShouldBeGreaterThan, 0)

				found := map[string]bool{}
				for i := 0; i < a.NumEntries(); i++ {
					_, rel := a.Entry(i)
					found[rel] = true
				}
				So(found["hello.txt"], ShouldBeTrue)
				So(found["sub/nested.txt"], ShouldBeTrue)
				So(found["sub/link"], ShouldBeTrue)
			}
		})

		Convey("entry content survives compression and decompression", func() {
			var buf bytes.Buffer
			So(CreateFromPath(&buf, root, WithCompression(xarcomp.Zlib)), ShouldBeNil)

			a, err := Open(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)

			for i := 0; i < a.NumEntries(); i++ {
				f, rel := a.Entry(i)
				if rel != "hello.txt" {
					continue
				}
				r, err := a.Reader(i)
				So(err, ShouldBeNil)
				content, err := io.ReadAll(r)
				So(err, ShouldBeNil)
				So(string(content), ShouldEqual, "hello, xar!")
				So(f.Data.Size, ShouldEqual, uint64(len("hello, xar!")))
				r.Close()
			}
		})

		Convey("empty files have no <data> element and read back empty", func() {
			var buf bytes.Buffer
			So(CreateFromPath(&buf, root, WithCompression(xarcomp.Zlib)), ShouldBeNil)
			a, err := Open(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)

			for i := 0; i < a.NumEntries(); i++ {
				f, rel := a.Entry(i)
				if rel != "empty.txt" {
					continue
				}
				So(f.Data, ShouldBeNil)
				r, err := a.Reader(i)
				So(err, ShouldBeNil)
				content, err := io.ReadAll(r)
				So(err, ShouldBeNil)
				So(content, ShouldBeEmpty)
			}
		})

		Convey("tampering with the TOC hash trailer is detected on open", func() {
			var buf bytes.Buffer
			So(CreateFromPath(&buf, root, WithTOCChecksum(xarhash.SHA256)), ShouldBeNil)

			raw := buf.Bytes()
			h, err := ReadHeader(bytes.NewReader(raw))
			So(err, ShouldBeNil)
			hashStart := int(h.HeaderSize) + int(h.TOCLenCompressed)
			raw[hashStart] ^= 0xff

			_, err = Open(bytes.NewReader(raw))
			So(err, ShouldErrLike, "checksum mismatch")
		})

		Convey("WithCheckTOC(false) skips TOC verification", func() {
			var buf bytes.Buffer
			So(CreateFromPath(&buf, root, WithTOCChecksum(xarhash.SHA256)), ShouldBeNil)

			raw := buf.Bytes()
			h, err := ReadHeader(bytes.NewReader(raw))
			So(err, ShouldBeNil)
			hashStart := int(h.HeaderSize) + int(h.TOCLenCompressed)
			raw[hashStart] ^= 0xff

			_, err = Open(bytes.NewReader(raw), WithCheckTOC(false))
			So(err, ShouldBeNil)
		})

		Convey("a tampered file payload fails its archived checksum on read", func() {
			var buf bytes.Buffer
			So(CreateFromPath(&buf, root, WithCompression(xarcomp.None)), ShouldBeNil)

			a, err := Open(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)

			var idx = -1
			for i := 0; i < a.NumEntries(); i++ {
				_, rel := a.Entry(i)
				if rel == "hello.txt" {
					idx = i
				}
			}
			So(idx, ShouldBeGreaterThanOrEqualTo, 0)

			raw := buf.Bytes()
			f, _ := a.Entry(idx)
			raw[int(a.heapOffset)+int(f.Data.Offset)] ^= 0xff

			a2, err := Open(bytes.NewReader(raw))
			So(err, ShouldBeNil)
			_, err = a2.Reader(idx)
			So(err, ShouldErrLike, "checksum mismatch")
		})
	})
}
