// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/xarhash"
	"github.com/igankevich/zar/xartoc"
)

func TestCreateFromPath(t *testing.T) {
	t.Parallel()

	Convey("CreateFromPath", t, func() {
		Convey("marks a dangling symlink broken", func() {
			root := t.TempDir()
			So(os.Symlink("does-not-exist", filepath.Join(root, "dangling")), ShouldBeNil)

			var buf bytes.Buffer
			So(CreateFromPath(&buf, root), ShouldBeNil)

			a, err := Open(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)

			for i := 0; i < a.NumEntries(); i++ {
				f, rel := a.Entry(i)
				if rel != "dangling" {
					continue
				}
				So(f.Kind.Tag, ShouldEqual, xartoc.KindSymlink)
				So(f.Link.Kind, ShouldEqual, "broken")
			}
		})

		Convey("hard-linked entries produce one HardLinkOriginal and linked copies", func() {
			root := t.TempDir()
			So(os.WriteFile(filepath.Join(root, "a.txt"), []byte("shared"), 0o644), ShouldBeNil)
			So(os.Link(filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")), ShouldBeNil)
			So(os.Link(filepath.Join(root, "a.txt"), filepath.Join(root, "c.txt")), ShouldBeNil)

			var buf bytes.Buffer
			So(CreateFromPath(&buf, root), ShouldBeNil)

			a, err := Open(bytes.NewReader(buf.Bytes()))
			So(err, ShouldBeNil)

			var originals, links int
			for i := 0; i < a.NumEntries(); i++ {
				f, _ := a.Entry(i)
				if f.Kind.Tag != xartoc.KindHardLink {
					continue
				}
				if f.Kind.HardLink.Original {
					originals++
				} else {
					links++
				}
			}
			So(originals, ShouldEqual, 1)
			So(links, ShouldEqual, 2)
		})

		Convey("rejects a signer whose algorithm does not match the TOC checksum", func() {
			root := t.TempDir()
			So(os.WriteFile(filepath.Join(root, "f.txt"), []byte("x"), 0o644), ShouldBeNil)

			var buf bytes.Buffer
			err := CreateFromPath(&buf, root, WithTOCChecksum(xarhash.SHA256), WithSigner(mismatchedSigner{}))
			So(err, ShouldErrLike, "must match")
		})

		Convey("refuses to walk a nonexistent root", func() {
			var buf bytes.Buffer
			err := CreateFromPath(&buf, filepath.Join(t.TempDir(), "missing"))
			So(err, ShouldNotBeNil)
		})
	})
}

// mismatchedSigner is a minimal xarsign.Signer stub whose declared
// algorithm (SHA1) differs from the SHA256 TOC checksum the test selects,
// exercising
// CreateFromPath's algorithm-agreement check without a real RSA key.
type mismatchedSigner struct{}

func (mismatchedSigner) Algorithm() xarhash.Algorithm     { return xarhash.SHA1 }
func (mismatchedSigner) Sign(data []byte) ([]byte, error) { return nil, nil }
func (mismatchedSigner) Style() string                    { return "RSA" }
func (mismatchedSigner) Len() int                         { return 0 }
func (mismatchedSigner) CertificatesBase64DER() []string  { return nil }
