// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"bytes"
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/xarhash"
)

func TestHeader(t *testing.T) {
	t.Parallel()

	Convey("Header", t, func() {
		Convey("round-trips through Write/Read", func() {
			for _, alg := range []xarhash.Algorithm{xarhash.None, xarhash.SHA1, xarhash.MD5, xarhash.SHA256, xarhash.SHA512} {
				h := NewHeader(alg)
				h.TOCLenCompressed = 123
				h.TOCLenUncompressed = 456

				var buf bytes.Buffer
				So(WriteHeader(&buf, h), ShouldBeNil)

				got, err := ReadHeader(&buf)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, h)
			}
		})

		Convey("rejects a bad magic", func() {
			var buf bytes.Buffer
			buf.WriteString("xxxx")
			buf.Write(make([]byte, 24))
			_, err := ReadHeader(&buf)
			So(err, ShouldErrLike, "magic")
		})

		Convey("rejects zero TOC length", func() {
			h := NewHeader(xarhash.SHA1)
			h.TOCLenCompressed = 0
			var buf bytes.Buffer
			So(WriteHeader(&buf, h), ShouldBeNil)
			_, err := ReadHeader(&buf)
			So(err, ShouldErrLike, "toc")
		})

		Convey("rejects an unsupported hash algorithm code", func() {
			h := NewHeader(xarhash.SHA1)
			h.TOCLenCompressed = 1
			var buf bytes.Buffer
			So(WriteHeader(&buf, h), ShouldBeNil)
			raw := buf.Bytes()
			raw[27] = 99 // hash_algorithm is the last of the 28 fixed bytes
			_, err := ReadHeader(bytes.NewReader(raw))
			So(err, ShouldErrLike, "hash algorithm")
		})

		Convey("header_size controls the optional algorithm-name extension", func() {
			h := NewHeader(xarhash.SHA256)
			h.TOCLenCompressed = 1
			h.HeaderSize = fixedHeaderSize + pad4(len("my-custom-alg")+1)
			h.AlgorithmName = "my-custom-alg"

			var buf bytes.Buffer
			So(WriteHeader(&buf, h), ShouldBeNil)
			So(buf.Len(), ShouldEqual, h.HeaderSize)

			got, err := ReadHeader(&buf)
			So(err, ShouldBeNil)
			So(got.AlgorithmName, ShouldEqual, "my-custom-alg")
		})

		Convey("pad4 rounds up to a 4-byte boundary", func() {
			So(pad4(0), ShouldEqual, 0)
			So(pad4(1), ShouldEqual, 4)
			So(pad4(4), ShouldEqual, 4)
			So(pad4(5), ShouldEqual, 8)
		})
	})
}
