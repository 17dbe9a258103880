// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command xar is a thin CLI front end over the xar library: it parses
// flags, collects file paths, and dispatches into xar.CreateFromPath,
// xar.Open, and Archive.Extract. It contains no archive-format logic of
// its own (spec.md §1's "external collaborator" framing, SPEC_FULL.md §10).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/luci/luci-go/common/errors"

	xar "github.com/igankevich/zar"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "xar:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	c, err := parseArgs(args)
	if err != nil {
		return err
	}

	switch c.mode {
	case modeCreate:
		return runCreate(c)
	case modeExtract:
		return runExtract(c)
	case modeList:
		return runList(c)
	default:
		return errors.New("unreachable: no mode selected")
	}
}

func runCreate(c *config) error {
	if len(c.paths) != 1 {
		return errors.New("-c requires exactly one directory argument")
	}

	codec, err := c.codec()
	if err != nil {
		return err
	}
	tocAlg, err := algorithmByName(c.tocChecksum)
	if err != nil {
		return err
	}
	fileAlg, err := algorithmByName(c.fileChecksum)
	if err != nil {
		return err
	}
	signer, err := buildSigner(c, tocAlg)
	if err != nil {
		return err
	}

	out, err := os.Create(c.archivePath)
	if err != nil {
		return errors.Annotate(err).Reason("creating archive %(path)q").D("path", c.archivePath).Err()
	}
	defer out.Close()

	opts := []xar.CreateOption{
		xar.WithCompression(codec),
		xar.WithTOCChecksum(tocAlg),
		xar.WithFileChecksum(fileAlg),
	}
	if signer != nil {
		opts = append(opts, xar.WithSigner(signer))
	}

	if err := xar.CreateFromPath(out, c.paths[0], opts...); err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(os.Stdout, "created %s from %s\n", c.archivePath, c.paths[0])
	}
	return nil
}

func openArchive(c *config) (*xar.Archive, *os.File, error) {
	f, err := os.Open(c.archivePath)
	if err != nil {
		return nil, nil, errors.Annotate(err).Reason("opening archive %(path)q").D("path", c.archivePath).Err()
	}

	opts := []xar.OpenOption{
		xar.WithCheckTOC(c.checkTOC),
		xar.WithCheckFiles(c.checkFiles),
	}
	if len(c.trustPaths) > 0 {
		verifier, err := buildTrust(c)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		opts = append(opts, xar.WithVerify(verifier))
	}

	a, err := xar.Open(f, opts...)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return a, f, nil
}

func runExtract(c *config) error {
	a, f, err := openArchive(c)
	if err != nil {
		return err
	}
	defer f.Close()

	extractOpts := []xar.ExtractOption{
		xar.WithPreserveMtime(c.preserveMtime),
		xar.WithPreserveOwner(c.preserveOwner),
	}
	if err := a.Extract(context.Background(), c.destDir, extractOpts...); err != nil {
		return err
	}
	if c.verbose {
		fmt.Fprintf(os.Stdout, "extracted %s to %s\n", c.archivePath, c.destDir)
	}
	return nil
}

func runList(c *config) error {
	a, f, err := openArchive(c)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := 0; i < a.NumEntries(); i++ {
		entryFile, rel := a.Entry(i)
		if c.verbose {
			fmt.Fprintf(os.Stdout, "%04o\t%s\t%s\n", uint32(entryFile.Mode), entryFile.Kind.Tag.String(), rel)
		} else {
			fmt.Fprintln(os.Stdout, rel)
		}
	}
	return nil
}
