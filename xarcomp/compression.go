// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xarcomp identifies XAR's per-entry compression codecs by their
// MIME-string encoding and produces streaming encoders/decoders for them.
package xarcomp

import (
	"compress/bzip2"
	"compress/zlib"
	"io"

	bz2 "github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Codec identifies a compression scheme recognized in a TOC <encoding>
// element's @style attribute.
type Codec int

// Recognized codecs. Unknown MIME strings decode as None (spec.md §4.2).
const (
	None Codec = iota
	Zlib
	Bzip2
	XZ
)

// MIME returns the @style string written into <encoding> elements for this
// codec.
func (c Codec) MIME() string {
	switch c {
	case Zlib:
		return "application/x-gzip"
	case Bzip2:
		return "application/x-bzip2"
	case XZ:
		return "application/x-xz"
	default:
		return "application/octet-stream"
	}
}

// ForMIME maps an <encoding style="..."> value to a Codec. Unrecognized
// values map to None, per spec.md §4.2.
func ForMIME(mime string) Codec {
	switch mime {
	case "application/x-gzip", "application/zlib":
		return Zlib
	case "application/x-bzip2":
		return Bzip2
	case "application/x-xz":
		return XZ
	default:
		return None
	}
}

// nopWriteCloser adapts a plain io.Writer into an io.WriteCloser whose
// Close is a no-op, for the None codec.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a streaming compressor for the codec. The returned
// writer must be finalized with Close before the compressed bytes it wrote
// to w are complete.
func NewWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case Zlib:
		return zlib.NewWriter(w), nil
	case Bzip2:
		return bz2.NewWriter(w, nil)
	case XZ:
		return xz.NewWriter(w)
	default:
		return nil, errUnsupportedCodec(c)
	}
}

// NewReader returns a streaming decompressor reading codec-compressed bytes
// from r. The caller is expected to bound r (e.g. with io.LimitReader) to
// the declared compressed length before passing it in.
func NewReader(r io.Reader, c Codec) (io.ReadCloser, error) {
	switch c {
	case None:
		return io.NopCloser(r), nil
	case Zlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	default:
		return nil, errUnsupportedCodec(c)
	}
}

type errUnsupportedCodec Codec

func (e errUnsupportedCodec) Error() string {
	return "xarcomp: unsupported codec"
}
