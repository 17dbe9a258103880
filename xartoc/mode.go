// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xartoc

import (
	"encoding/xml"
	"strconv"
)

// Mode is the 12 low permission bits of a file (setuid/setgid/sticky +
// rwxrwxrwx). File-type bits are never stored here; Kind carries them
// (spec.md §3.3).
type Mode uint32

const modeMask = 07777

// NewMode masks m down to its 12 low bits.
func NewMode(m uint32) Mode { return Mode(m & modeMask) }

func (m Mode) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(strconv.FormatUint(uint64(m&modeMask), 8), start)
}

func (m *Mode) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return err
	}
	*m = Mode(v & modeMask)
	return nil
}
