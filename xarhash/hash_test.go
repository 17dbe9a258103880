// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xarhash

import (
	"testing"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHash(t *testing.T) {
	t.Parallel()

	Convey("Hash", t, func() {
		Convey("Compute/ParseHex round-trip", func() {
			for _, alg := range []Algorithm{None, SHA1, MD5, SHA256, SHA512} {
				h, err := Compute(alg, []byte("hello world!"))
				So(err, ShouldBeNil)
				So(h.Algorithm, ShouldEqual, alg)
				So(len(h.Digest), ShouldEqual, alg.Len())

				parsed, err := ParseHex(h.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldResemble, h)

				rebuilt, err := New(h.Algorithm, h.Digest)
				So(err, ShouldBeNil)
				So(rebuilt, ShouldResemble, h)
			}
		})

		Convey("different algorithms never equal even with same bytes", func() {
			a := Hash{Algorithm: SHA256, Digest: make([]byte, SHA256.Len())}
			b := Hash{Algorithm: SHA512, Digest: make([]byte, SHA256.Len())}
			So(a.Equal(b), ShouldBeFalse)
		})

		Convey("New rejects mismatched digest length", func() {
			_, err := New(SHA256, make([]byte, 4))
			So(err, ShouldErrLike, "invalid digest length")
		})

		Convey("ParseHex of empty string is None", func() {
			h, err := ParseHex("")
			So(err, ShouldBeNil)
			So(h.Algorithm, ShouldEqual, None)
			So(h.IsZero(), ShouldBeTrue)
		})

		Convey("ParseHex rejects a length matching no algorithm", func() {
			_, err := ParseHex("aabb")
			So(err, ShouldErrLike, "does not match any known algorithm")
		})

		Convey("algorithm codes match the XAR header encoding", func() {
			So(uint32(None), ShouldEqual, 0)
			So(uint32(SHA1), ShouldEqual, 1)
			So(uint32(MD5), ShouldEqual, 2)
			So(uint32(SHA256), ShouldEqual, 3)
			So(uint32(SHA512), ShouldEqual, 4)
		})
	})
}
