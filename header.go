// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/luci/luci-go/common/errors"

	"github.com/igankevich/zar/xarhash"
)

const (
	magic           = "xar!"
	fixedHeaderSize = 28
	formatVersion   = 1
)

// Header is the fixed-layout XAR header: magic, its own size, the format
// version, the compressed/uncompressed TOC lengths, and the hash algorithm
// used to protect the TOC (spec.md §3.2, §6.1).
type Header struct {
	// HeaderSize is the total header length on disk, including any
	// trailing algorithm name (>=28, a multiple of 4).
	HeaderSize uint16
	// Version is always formatVersion for archives this package writes.
	Version uint16
	// TOCLenCompressed is the length, in bytes, of the zlib-compressed
	// TOC that immediately follows the header.
	TOCLenCompressed uint64
	// TOCLenUncompressed is the length of the TOC XML before compression.
	TOCLenUncompressed uint64
	// HashAlgorithm is the algorithm used for the TOC hash (and, for
	// signed archives, the signature's hash).
	HashAlgorithm xarhash.Algorithm
	// AlgorithmName carries a custom algorithm name for the legacy
	// "extended other" variant (spec.md §4.3, §6.1): present only when
	// HeaderSize > 28.
	AlgorithmName string
}

// NewHeader builds a Header for a fresh archive. Callers fill in the TOC
// lengths once the compressed TOC has been produced.
func NewHeader(alg xarhash.Algorithm) Header {
	return Header{
		HeaderSize:    fixedHeaderSize,
		Version:       formatVersion,
		HashAlgorithm: alg,
	}
}

func pad4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// WriteHeader writes h to w in the wire format of spec.md §6.1.
func WriteHeader(w io.Writer, h Header) error {
	if err := h.HashAlgorithm.Valid(); err != nil {
		return err
	}

	var nameField []byte
	headerSize := fixedHeaderSize
	if h.AlgorithmName != "" {
		raw := append([]byte(h.AlgorithmName), 0)
		padded := pad4(len(raw))
		nameField = make([]byte, padded)
		copy(nameField, raw)
		headerSize = fixedHeaderSize + padded
	}
	if headerSize%4 != 0 || headerSize < fixedHeaderSize {
		return errors.Reason("invalid computed header size %(size)d").D("size", headerSize).Err()
	}

	buf := make([]byte, fixedHeaderSize)
	copy(buf[0:4], magic)
	binary.BigEndian.PutUint16(buf[4:6], uint16(headerSize))
	binary.BigEndian.PutUint16(buf[6:8], h.Version)
	binary.BigEndian.PutUint64(buf[8:16], h.TOCLenCompressed)
	binary.BigEndian.PutUint64(buf[16:24], h.TOCLenUncompressed)
	binary.BigEndian.PutUint32(buf[24:28], uint32(h.HashAlgorithm))

	if _, err := w.Write(buf); err != nil {
		return errors.Annotate(err).Reason("writing fixed header").Err()
	}
	if len(nameField) > 0 {
		if _, err := w.Write(nameField); err != nil {
			return errors.Annotate(err).Reason("writing algorithm name field").Err()
		}
	}
	return nil
}

// ReadHeader reads and validates a Header from r, per spec.md §4.3/§6.1.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Annotate(err).Reason("reading fixed header").Err()
	}
	if !bytes.Equal(buf[0:4], []byte(magic)) {
		return Header{}, errors.Reason("bad magic %(magic)q").D("magic", string(buf[0:4])).Err()
	}

	headerSize := binary.BigEndian.Uint16(buf[4:6])
	version := binary.BigEndian.Uint16(buf[6:8])
	tocCompLen := binary.BigEndian.Uint64(buf[8:16])
	tocUncompLen := binary.BigEndian.Uint64(buf[16:24])
	algCode := binary.BigEndian.Uint32(buf[24:28])

	if headerSize < fixedHeaderSize || headerSize%4 != 0 {
		return Header{}, errors.
			Reason("invalid header_size %(size)d: must be >= 28 and a multiple of 4").
			D("size", headerSize).Err()
	}
	if version != formatVersion {
		return Header{}, errors.Reason("unsupported header version %(v)d").D("v", version).Err()
	}
	if tocCompLen == 0 {
		return Header{}, errors.New("toc_len_compressed must be > 0")
	}

	alg := xarhash.Algorithm(algCode)
	if err := alg.Valid(); err != nil {
		return Header{}, errors.Annotate(err).Reason("parsing hash_algorithm").Err()
	}

	h := Header{
		HeaderSize:         headerSize,
		Version:            version,
		TOCLenCompressed:   tocCompLen,
		TOCLenUncompressed: tocUncompLen,
		HashAlgorithm:      alg,
	}

	if extra := int(headerSize) - fixedHeaderSize; extra > 0 {
		nameBuf := make([]byte, extra)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return Header{}, errors.Annotate(err).Reason("reading algorithm name field").Err()
		}
		if nul := bytes.IndexByte(nameBuf, 0); nul >= 0 {
			h.AlgorithmName = string(nameBuf[:nul])
		} else {
			h.AlgorithmName = string(nameBuf)
		}
	}

	return h, nil
}
