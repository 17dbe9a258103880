// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xartoc

import (
	"encoding/xml"
	"strconv"

	"github.com/luci/luci-go/common/errors"
)

// KindTag identifies the polymorphic kind of a File node (spec.md §3.2).
type KindTag int

// Recognized kinds. Whiteout is parsed but never produced by the builder and
// is unsupported on extract (spec.md §9, SPEC_FULL.md §7).
const (
	KindFile KindTag = iota
	KindHardLink
	KindDirectory
	KindSymlink
	KindFifo
	KindCharacterSpecial
	KindBlockSpecial
	KindSocket
	KindWhiteout
)

var kindText = map[KindTag]string{
	KindFile:             "file",
	KindHardLink:          "hardlink",
	KindDirectory:         "directory",
	KindSymlink:           "symlink",
	KindFifo:              "fifo",
	KindCharacterSpecial:  "character special",
	KindBlockSpecial:      "block special",
	KindSocket:            "socket",
	KindWhiteout:          "whiteout",
}

var textKind = func() map[string]KindTag {
	m := make(map[string]KindTag, len(kindText))
	for k, v := range kindText {
		m[v] = k
	}
	return m
}()

func (t KindTag) String() string {
	if s, ok := kindText[t]; ok {
		return s
	}
	return "unknown"
}

func parseKindTag(s string) (KindTag, error) {
	if t, ok := textKind[s]; ok {
		return t, nil
	}
	return 0, errors.Reason("unknown file-type element %(s)q").D("s", s).Err()
}

// HardLink carries the designator for a Kind of KindHardLink: either this
// entry is the canonical "original" for its inode, or it points at the
// original by File.ID.
type HardLink struct {
	Original bool
	ID       uint64
}

// Kind is the polymorphic <type> element: a tag plus, for hard links, the
// @link designator (spec.md §3.2).
type Kind struct {
	Tag      KindTag
	HardLink HardLink
}

// File constructs a plain regular-file Kind.
func File() Kind { return Kind{Tag: KindFile} }

// Directory constructs a directory Kind.
func Directory() Kind { return Kind{Tag: KindDirectory} }

// Symlink constructs a symlink Kind.
func Symlink() Kind { return Kind{Tag: KindSymlink} }

// Fifo constructs a named-pipe Kind.
func Fifo() Kind { return Kind{Tag: KindFifo} }

// CharacterSpecial constructs a character-device Kind.
func CharacterSpecial() Kind { return Kind{Tag: KindCharacterSpecial} }

// BlockSpecial constructs a block-device Kind.
func BlockSpecial() Kind { return Kind{Tag: KindBlockSpecial} }

// Socket constructs a UNIX-domain-socket Kind.
func Socket() Kind { return Kind{Tag: KindSocket} }

// Whiteout constructs a whiteout Kind. The builder never produces one;
// extraction refuses to act on one if it finds it in a TOC (spec.md §9,
// SPEC_FULL.md §7).
func Whiteout() Kind { return Kind{Tag: KindWhiteout} }

// HardLinkOriginal constructs the Kind for the canonical entry of an inode.
func HardLinkOriginal() Kind {
	return Kind{Tag: KindHardLink, HardLink: HardLink{Original: true}}
}

// HardLinkTo constructs the Kind for a non-canonical hard-link entry
// pointing at the File.ID of its original.
func HardLinkTo(id uint64) Kind {
	return Kind{Tag: KindHardLink, HardLink: HardLink{ID: id}}
}

func (k Kind) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Attr = start.Attr[:0]
	if k.Tag == KindHardLink {
		designator := strconv.FormatUint(k.HardLink.ID, 10)
		if k.HardLink.Original {
			designator = "original"
		}
		start.Attr = append(start.Attr, xml.Attr{
			Name:  xml.Name{Local: "link"},
			Value: designator,
		})
	}
	return e.EncodeElement(k.Tag.String(), start)
}

func (k *Kind) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var link string
	for _, a := range start.Attr {
		if a.Name.Local == "link" {
			link = a.Value
		}
	}

	var text string
	if err := d.DecodeElement(&text, &start); err != nil {
		return err
	}

	tag, err := parseKindTag(text)
	if err != nil {
		return err
	}
	k.Tag = tag

	if tag == KindHardLink {
		if link == "" {
			return errors.New("hardlink <type> missing @link designator")
		}
		if link == "original" {
			k.HardLink = HardLink{Original: true}
			return nil
		}
		id, err := strconv.ParseUint(link, 10, 64)
		if err != nil {
			return errors.Annotate(err).Reason("parsing hardlink @link id %(link)q").
				D("link", link).Err()
		}
		k.HardLink = HardLink{ID: id}
	}
	return nil
}
