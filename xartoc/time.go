// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xartoc

import (
	"encoding/xml"
	"time"
)

// Time wraps time.Time with the RFC-3339 UTC seconds-precision encoding
// spec.md §4.4 requires for <atime>/<mtime>/<ctime>/<creation-time>.
type Time struct {
	time.Time
}

// NewTime truncates t to second precision and normalizes it to UTC.
func NewTime(t time.Time) Time {
	return Time{t.UTC().Truncate(time.Second)}
}

func (t Time) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(t.UTC().Truncate(time.Second).Format(time.RFC3339), start)
}

func (t *Time) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}
