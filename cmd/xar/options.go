// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/luci/luci-go/common/errors"
	"github.com/spf13/pflag"

	"github.com/igankevich/zar/xarcomp"
	"github.com/igankevich/zar/xarhash"
	"github.com/igankevich/zar/xarsign"
	"github.com/igankevich/zar/xartrust"
)

// mode identifies the mutually-exclusive top-level command (spec.md §6.3).
type mode int

const (
	modeNone mode = iota
	modeCreate
	modeExtract
	modeList
)

// config holds the fully-parsed CLI invocation (spec.md §6.3 / SPEC_FULL.md
// §10). options.go is a thin flag-parsing layer over the xar library; it
// contains no archive-format logic of its own.
type config struct {
	mode mode

	archivePath string
	verbose     bool
	destDir     string

	compression string // "gzip" (default), "bzip2", "xz", "none"

	tocChecksum  string
	fileChecksum string

	signKeyPath string
	certPaths   []string
	trustPaths  []string

	preserveMtime bool
	preserveOwner bool
	checkTOC      bool
	checkFiles    bool

	paths []string // trailing positional paths
}

func parseArgs(args []string) (*config, error) {
	fs := pflag.NewFlagSet("xar", pflag.ContinueOnError)

	create := fs.BoolP("create", "c", false, "create an archive")
	extract := fs.BoolP("extract", "x", false, "extract an archive")
	list := fs.BoolP("list", "t", false, "list an archive's contents")

	archivePath := fs.StringP("file", "f", "", "archive path (required)")
	verbose := fs.BoolP("verbose", "v", false, "verbose output")
	destDir := fs.StringP("directory", "C", ".", "extraction directory")

	gzipFlag := fs.BoolP("gzip", "z", false, "use gzip (zlib) compression (default)")
	bzip2Flag := fs.BoolP("bzip2", "j", false, "use bzip2 compression")
	xzFlag := fs.BoolP("xz", "a", false, "use xz (lzma) compression")
	compression := fs.String("compression", "", "compression codec: none, gzip, bzip2, xz")

	tocChecksum := fs.String("toc-cksum", "sha1", "TOC checksum algorithm: none, md5, sha1, sha256, sha512")
	fileChecksum := fs.String("file-cksum", "sha1", "file checksum algorithm: none, md5, sha1, sha256, sha512")

	signKeyPath := fs.String("sign", "", "RSA private key (PEM or DER) to sign the TOC with")
	certPaths := fs.StringArray("cert", nil, "X.509 certificate to embed in the signature chain (repeatable)")
	trustPaths := fs.StringArray("trust", nil, "X.509 root certificate to trust on extract (repeatable)")

	preserveMtime := fs.Bool("preserve-mtime", true, "restore file modification times on extract")
	preserveOwner := fs.Bool("preserve-owner", false, "restore file ownership on extract")
	checkTOC := fs.Bool("check-toc", true, "verify the TOC checksum on open")
	checkFiles := fs.Bool("check-files", true, "verify per-file checksums on extract")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := &config{
		archivePath:   *archivePath,
		verbose:       *verbose,
		destDir:       *destDir,
		tocChecksum:   *tocChecksum,
		fileChecksum:  *fileChecksum,
		signKeyPath:   *signKeyPath,
		certPaths:     *certPaths,
		trustPaths:    *trustPaths,
		preserveMtime: *preserveMtime,
		preserveOwner: *preserveOwner,
		checkTOC:      *checkTOC,
		checkFiles:    *checkFiles,
		paths:         fs.Args(),
	}

	nmodes := 0
	if *create {
		c.mode = modeCreate
		nmodes++
	}
	if *extract {
		c.mode = modeExtract
		nmodes++
	}
	if *list {
		c.mode = modeList
		nmodes++
	}
	if nmodes != 1 {
		return nil, errors.New("exactly one of -c, -x, -t is required")
	}
	if c.archivePath == "" {
		return nil, errors.New("-f <archive> is required")
	}

	nshort := 0
	if *gzipFlag {
		c.compression = "gzip"
		nshort++
	}
	if *bzip2Flag {
		c.compression = "bzip2"
		nshort++
	}
	if *xzFlag {
		c.compression = "xz"
		nshort++
	}
	if *compression != "" {
		if nshort > 0 {
			return nil, errors.New("--compression conflicts with -z/-j/-a")
		}
		c.compression = *compression
	}
	if nshort > 1 {
		return nil, errors.New("only one of -z, -j, -a may be given")
	}
	if c.compression == "" {
		c.compression = "gzip"
	}

	return c, nil
}

func (c *config) codec() (xarcomp.Codec, error) {
	switch c.compression {
	case "none":
		return xarcomp.None, nil
	case "gzip", "zlib":
		return xarcomp.Zlib, nil
	case "bzip2":
		return xarcomp.Bzip2, nil
	case "xz", "lzma":
		return xarcomp.XZ, nil
	default:
		return xarcomp.None, errors.Reason("unknown --compression %(c)q").D("c", c.compression).Err()
	}
}

func algorithmByName(name string) (xarhash.Algorithm, error) {
	switch name {
	case "none", "":
		return xarhash.None, nil
	case "md5":
		return xarhash.MD5, nil
	case "sha1":
		return xarhash.SHA1, nil
	case "sha256":
		return xarhash.SHA256, nil
	case "sha512":
		return xarhash.SHA512, nil
	default:
		return xarhash.None, errors.Reason("unknown checksum algorithm %(name)q").D("name", name).Err()
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err).Reason("reading certificate %(path)q").D("path", path).Err()
	}
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.Annotate(err).Reason("parsing certificate %(path)q").D("path", path).Err()
	}
	return cert, nil
}

func loadRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err).Reason("reading key %(path)q").D("path", path).Err()
	}
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errors.Annotate(err).Reason("parsing RSA key %(path)q").D("path", path).Err()
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Reason("key %(path)q is not an RSA key").D("path", path).Err()
	}
	return rsaKey, nil
}

func buildSigner(c *config, alg xarhash.Algorithm) (xarsign.Signer, error) {
	if c.signKeyPath == "" {
		return nil, nil
	}
	key, err := loadRSAKey(c.signKeyPath)
	if err != nil {
		return nil, err
	}
	if len(c.certPaths) == 0 {
		return nil, errors.New("--sign requires at least one --cert")
	}
	chain := make([]*x509.Certificate, len(c.certPaths))
	for i, p := range c.certPaths {
		cert, err := loadCertificate(p)
		if err != nil {
			return nil, err
		}
		chain[i] = cert
	}
	return xarsign.NewSigner(key, chain, alg)
}

func buildTrust(c *config) (xartrust.Verifier, error) {
	if len(c.trustPaths) == 0 {
		return xartrust.TrustAny{}, nil
	}
	certs := make([]*x509.Certificate, len(c.trustPaths))
	for i, p := range c.trustPaths {
		cert, err := loadCertificate(p)
		if err != nil {
			return nil, err
		}
		certs[i] = cert
	}
	return xartrust.NewTrustList(certs...), nil
}
