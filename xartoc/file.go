// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xartoc implements the XAR table-of-contents data model and its
// XML codec: the file tree, per-entry metadata, per-file checksums, and
// the signature element, per spec.md §3 and §4.4.
package xartoc

import (
	"encoding/xml"

	"github.com/igankevich/zar/xarhash"
)

// Checksum is a hex-encoded digest tagged with its algorithm, as it
// appears in <archived-checksum>/<extracted-checksum>.
type Checksum struct {
	Style string `xml:"style,attr"`
	Value string `xml:",chardata"`
}

// ToHash decodes c into a xarhash.Hash.
func (c Checksum) ToHash() (xarhash.Hash, error) {
	alg, err := algorithmForStyle(c.Style)
	if err != nil {
		return xarhash.Hash{}, err
	}
	if alg == xarhash.None {
		return xarhash.Hash{Algorithm: xarhash.None}, nil
	}
	return xarhash.ParseHexWithAlgorithm(alg, c.Value)
}

// ChecksumFromHash encodes h as a Checksum element value.
func ChecksumFromHash(h xarhash.Hash) Checksum {
	return Checksum{Style: styleForAlgorithm(h.Algorithm), Value: h.String()}
}

// StyleForAlgorithm returns the @style attribute value a Toc.Checksum or
// File checksum element uses for the given algorithm.
func StyleForAlgorithm(a xarhash.Algorithm) string {
	return styleForAlgorithm(a)
}

func styleForAlgorithm(a xarhash.Algorithm) string {
	switch a {
	case xarhash.SHA1:
		return "sha1"
	case xarhash.MD5:
		return "md5"
	case xarhash.SHA256:
		return "sha256"
	case xarhash.SHA512:
		return "sha512"
	default:
		return "none"
	}
}

func algorithmForStyle(style string) (xarhash.Algorithm, error) {
	switch style {
	case "sha1", "SHA1":
		return xarhash.SHA1, nil
	case "md5", "MD5":
		return xarhash.MD5, nil
	case "sha256", "SHA256":
		return xarhash.SHA256, nil
	case "sha512", "SHA512":
		return xarhash.SHA512, nil
	case "", "none", "None":
		return xarhash.None, nil
	default:
		return xarhash.None, errUnknownChecksumStyle(style)
	}
}

type errUnknownChecksumStyle string

func (e errUnknownChecksumStyle) Error() string {
	return "xartoc: unknown checksum style " + string(e)
}

// TocChecksum is the Toc-level <checksum> element: it declares where the
// TOC hash lives in the heap, not the digest itself (the digest is binary,
// stored at that offset).
type TocChecksum struct {
	Style  string `xml:"style,attr"`
	Offset uint64 `xml:"offset"`
	Size   uint64 `xml:"size"`
}

// Encoding is the <encoding style="..."/> element declaring a file's
// per-entry compression MIME string.
type Encoding struct {
	Style string `xml:"style,attr"`
}

// FileData describes a regular file's compressed payload location and its
// archived/extracted checksums (spec.md §3.2).
type FileData struct {
	ArchivedChecksum  Checksum `xml:"archived-checksum"`
	ExtractedChecksum Checksum `xml:"extracted-checksum"`
	Encoding          Encoding `xml:"encoding"`
	Offset            uint64   `xml:"offset"`
	Size              uint64   `xml:"size"`
	Length            uint64   `xml:"length"`
}

// Link is a symlink's target, with "broken" marking a dangling target
// (spec.md §3.2, §4.7 S4).
type Link struct {
	Kind   string `xml:"type,attr,omitempty"`
	Target string `xml:",chardata"`
}

// Device carries a character/block special file's major/minor numbers.
type Device struct {
	Major uint32 `xml:"major"`
	Minor uint32 `xml:"minor"`
}

// Signature is the TOC's optional RSA signature element: style, heap
// location, and the certificate chain (leaf first), base64 DER-encoded.
type Signature struct {
	Style        string   `xml:"style,attr"`
	Offset       uint64   `xml:"offset"`
	Size         uint64   `xml:"size"`
	KeyInfo      KeyInfo  `xml:"KeyInfo"`
}

// KeyInfo embeds the XML-DSig namespace certificate chain.
type KeyInfo struct {
	XMLNS    string   `xml:"xmlns,attr"`
	X509Data X509Data `xml:"X509Data"`
}

// X509Data holds the base64 DER certificates, leaf first, root last.
type X509Data struct {
	Certificates []string `xml:"X509Certificate"`
}

const xmldsigNS = "http://www.w3.org/2000/09/xmldsig#"

// NewSignature builds a Signature element from base64 DER certificates.
func NewSignature(offset, size uint64, certsBase64DER []string) Signature {
	return Signature{
		Style:  "RSA",
		Offset: offset,
		Size:   size,
		KeyInfo: KeyInfo{
			XMLNS:    xmldsigNS,
			X509Data: X509Data{Certificates: certsBase64DER},
		},
	}
}

// RawElement captures one unrecognized XML child element verbatim, for
// SPEC_FULL.md §7's "extra round-trips unknown elements" supplement.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",innerxml"`
}

// RawExtra is the default auxiliary payload type for File: it keeps the
// child elements of a file's <extra-data> element, so they survive a
// read/write round-trip unexamined. Other unrecognized elements directly
// under <file> are dropped on read.
type RawExtra struct {
	Elements []RawElement `xml:",any"`
}

// File is one node of the XAR file tree (spec.md §3.2). X is the
// auxiliary per-entry payload type, encoded as <extra-data>; RawExtra is
// the default. The archive builder has no per-entry extra callback and
// never sets Extra, so archives it writes carry an empty <extra-data>.
type File[X any] struct {
	ID       uint64     `xml:"id,attr"`
	Name     string     `xml:"name"`
	Kind     Kind       `xml:"type"`
	Inode    uint64     `xml:"inode,omitempty"`
	DeviceNo uint64     `xml:"deviceno,omitempty"`
	Mode     Mode       `xml:"mode"`
	UID      uint32     `xml:"uid"`
	GID      uint32     `xml:"gid"`
	User     string     `xml:"user,omitempty"`
	Group    string     `xml:"group,omitempty"`
	ATime    Time       `xml:"atime"`
	MTime    Time       `xml:"mtime"`
	CTime    Time       `xml:"ctime"`
	Data     *FileData  `xml:"data,omitempty"`
	Link     *Link      `xml:"link,omitempty"`
	Device   *Device    `xml:"device,omitempty"`
	Children []*File[X] `xml:"file,omitempty"`
	Extra    X          `xml:"extra-data,omitempty"`
}

// Toc is the root table-of-contents document (spec.md §3.2).
type Toc[X any] struct {
	Checksum     TocChecksum `xml:"checksum"`
	CreationTime Time        `xml:"creation-time"`
	Files        []*File[X]  `xml:"file"`
	Signature    *Signature  `xml:"signature,omitempty"`
}

// document is the <xar><toc>...</toc></xar> envelope (spec.md §4.4).
type document[X any] struct {
	XMLName xml.Name `xml:"xar"`
	Toc     Toc[X]   `xml:"toc"`
}

// Marshal serializes t as the declaration + <xar><toc>...</toc></xar>
// document described in spec.md §4.4. It does not compress the result;
// callers zlib-compress the returned bytes themselves (spec.md §4.4, the
// TOC is "serialized, then zlib-compressed, then written").
func Marshal[X any](t *Toc[X]) ([]byte, error) {
	body, err := xml.Marshal(&document[X]{Toc: *t})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body))
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	return out, nil
}

// Unmarshal parses the <xar><toc>...</toc></xar> document produced by
// Marshal.
func Unmarshal[X any](data []byte) (*Toc[X], error) {
	var doc document[X]
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc.Toc, nil
}

// Flatten performs a breadth-first traversal of the tree (parents always
// precede their children) and returns every File in that order, matching
// the order the builder emits heap payloads in (spec.md §4.5/§4.6).
func Flatten[X any](files []*File[X]) []*File[X] {
	var out []*File[X]
	queue := append([]*File[X](nil), files...)
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		out = append(out, f)
		queue = append(queue, f.Children...)
	}
	return out
}
