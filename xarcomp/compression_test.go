// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xarcomp

import (
	"bytes"
	"io"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCompression(t *testing.T) {
	t.Parallel()

	Convey("Compression", t, func() {
		payload := bytes.Repeat([]byte("hello xar world!"), 200)

		for _, c := range []Codec{None, Zlib, Bzip2, XZ} {
			c := c
			Convey(c.MIME(), func() {
				buf := &bytes.Buffer{}
				w, err := NewWriter(buf, c)
				So(err, ShouldBeNil)
				_, err = w.Write(payload)
				So(err, ShouldBeNil)
				So(w.Close(), ShouldBeNil)

				r, err := NewReader(bytes.NewReader(buf.Bytes()), c)
				So(err, ShouldBeNil)
				got, err := io.ReadAll(r)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, payload)
			})
		}

		Convey("ForMIME maps unknown strings to None", func() {
			So(ForMIME("application/x-unknown-codec"), ShouldEqual, None)
			So(ForMIME(""), ShouldEqual, None)
		})

		Convey("ForMIME round-trips known MIME strings", func() {
			for _, c := range []Codec{Zlib, Bzip2, XZ} {
				So(ForMIME(c.MIME()), ShouldEqual, c)
			}
		})

		Convey("application/zlib is a synonym for the Zlib codec", func() {
			So(ForMIME("application/zlib"), ShouldEqual, Zlib)
		})
	})
}
