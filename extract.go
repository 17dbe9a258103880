// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/safearchive/sanitizer"
	"github.com/luci/luci-go/common/errors"
	"github.com/luci/luci-go/common/logging"

	"github.com/igankevich/zar/xartoc"
)

// extractOptionData holds Archive.Extract configuration.
type extractOptionData struct {
	preserveMtime bool
	preserveOwner bool
}

// ExtractOption configures Archive.Extract.
type ExtractOption func(*extractOptionData)

// WithPreserveMtime toggles restoring each entry's mtime. Default true.
func WithPreserveMtime(v bool) ExtractOption {
	return func(o *extractOptionData) { o.preserveMtime = v }
}

// WithPreserveOwner toggles restoring each entry's uid/gid via lchown.
// Default false (usually requires elevated privilege).
func WithPreserveOwner(v bool) ExtractOption {
	return func(o *extractOptionData) { o.preserveOwner = v }
}

// errUnsupportedKind reports an entry kind extraction cannot recreate
// (spec.md §7's Unsupported error class).
type errUnsupportedKind xartoc.KindTag

func (e errUnsupportedKind) Error() string {
	return "zar: unsupported file kind on extract: " + xartoc.KindTag(e).String()
}

// Extract reconstructs the archive's file tree under destDir, per spec.md
// §4.7's two-pass algorithm: a creation pass in enumeration order, then a
// fix-up pass for deferred hard links and reverse-order directory mode
// restoration. Failures abort; no rollback is attempted. A failure is also
// logged through ctx, as sar/unpack.go does for extraction-time errors.
func (a *Archive) Extract(ctx context.Context, destDir string, options ...ExtractOption) (err error) {
	defer func() {
		if err != nil {
			logging.Errorf(ctx, "extracting to %q: %s", destDir, err)
		}
	}()

	opts := extractOptionData{preserveMtime: true}
	for _, o := range options {
		o(&opts)
	}

	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return errors.Annotate(err).Reason("resolving destination").Err()
	}
	if err := os.MkdirAll(destDir, 0o777); err != nil {
		return errors.Annotate(err).Reason("creating destination %(dest)q").D("dest", destDir).Err()
	}

	pathByID := map[uint64]string{}
	type deferredLink struct {
		originalID uint64
		destPath   string
	}
	type dirMeta struct {
		path  string
		mode  uint32
		atime xartoc.Time
		mtime xartoc.Time
		uid   uint32
		gid   uint32
	}
	var deferredLinks []deferredLink
	var dirs []dirMeta

	for i := range a.entries {
		e := a.entries[i]
		rel := sanitizer.SanitizePath(e.RelPath)
		abs := filepath.Join(destDir, rel)
		f := e.File

		pathByID[f.ID] = abs

		switch f.Kind.Tag {
		case xartoc.KindDirectory:
			// Created permissively now; mode and mtime are restored in
			// the fix-up pass, deepest first, so that neither a
			// restrictive mode nor a descendant's later creation (which
			// bumps the directory's mtime) corrupts the final state
			// (spec.md §4.7 step 2).
			if err := os.MkdirAll(abs, 0o700); err != nil {
				return errors.Annotate(err).Reason("creating directory %(rel)q").D("rel", rel).Err()
			}
			dirs = append(dirs, dirMeta{
				path: abs, mode: uint32(f.Mode),
				atime: f.ATime, mtime: f.MTime,
				uid: f.UID, gid: f.GID,
			})

		case xartoc.KindSymlink:
			if err := a.extractSymlink(abs, rel, f, opts); err != nil {
				return err
			}

		case xartoc.KindFifo:
			if err := mkfifoAt(abs, uint32(f.Mode)); err != nil {
				return err
			}
			if err := a.restoreMetadata(abs, rel, f, opts); err != nil {
				return err
			}

		case xartoc.KindCharacterSpecial, xartoc.KindBlockSpecial:
			if f.Device == nil {
				return errors.Reason("device entry %(rel)q missing <device>").D("rel", rel).Err()
			}
			typeBit := uint32(typeBitBlock)
			if f.Kind.Tag == xartoc.KindCharacterSpecial {
				typeBit = typeBitChar
			}
			if err := mknodAt(abs, uint32(f.Mode), typeBit, f.Device.Major, f.Device.Minor); err != nil {
				return err
			}
			if err := a.restoreMetadata(abs, rel, f, opts); err != nil {
				return err
			}

		case xartoc.KindSocket:
			if err := bindSocket(abs); err != nil {
				return err
			}

		case xartoc.KindWhiteout:
			return errUnsupportedKind(xartoc.KindWhiteout)

		case xartoc.KindHardLink:
			if f.Kind.HardLink.Original {
				if err := a.extractRegularFile(i, abs, rel, f, opts); err != nil {
					return err
				}
			} else {
				deferredLinks = append(deferredLinks, deferredLink{
					originalID: f.Kind.HardLink.ID,
					destPath:   abs,
				})
			}

		default: // xartoc.KindFile
			if err := a.extractRegularFile(i, abs, rel, f, opts); err != nil {
				return err
			}
		}
	}

	// Fix-up pass, step 1: create deferred hard links.
	for _, dl := range deferredLinks {
		original, ok := pathByID[dl.originalID]
		if !ok {
			return errors.Reason("hard link refers to unknown original id %(id)d").
				D("id", dl.originalID).Err()
		}
		if err := os.Link(original, dl.destPath); err != nil {
			return errors.Annotate(err).Reason("creating hard link %(dest)q").
				D("dest", dl.destPath).Err()
		}
	}

	// Fix-up pass, step 2: restore directory modes and mtimes deepest
	// first, so a restrictive ancestor mode never blocks creating its
	// descendants and a descendant's creation never clobbers an
	// ancestor's restored mtime (spec.md §4.7 step 2).
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i].path, string(os.PathSeparator)) >
			strings.Count(dirs[j].path, string(os.PathSeparator))
	})
	for _, d := range dirs {
		if err := chmodPath(d.path, d.mode); err != nil {
			return err
		}
		if opts.preserveMtime {
			if err := os.Chtimes(d.path, d.atime.Time, d.mtime.Time); err != nil {
				return errors.Annotate(err).Reason("setting mtime on directory %(path)q").
					D("path", d.path).Err()
			}
		}
		if opts.preserveOwner {
			if err := lchownPath(d.path, d.uid, d.gid); err != nil {
				return err
			}
		}
	}

	return nil
}

func (a *Archive) extractRegularFile(i int, abs, rel string, f *file, opts extractOptionData) error {
	r, err := a.Reader(i)
	if err != nil {
		return errors.Annotate(err).Reason("opening reader for %(rel)q").D("rel", rel).Err()
	}
	defer r.Close()

	out, err := os.Create(abs)
	if err != nil {
		return errors.Annotate(err).Reason("creating %(rel)q").D("rel", rel).Err()
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errors.Annotate(err).Reason("writing %(rel)q").D("rel", rel).Err()
	}
	if err := out.Close(); err != nil {
		return errors.Annotate(err).Reason("closing %(rel)q").D("rel", rel).Err()
	}
	if err := chmodPath(abs, uint32(f.Mode)); err != nil {
		return err
	}
	return a.restoreMetadata(abs, rel, f, opts)
}

func (a *Archive) extractSymlink(abs, rel string, f *file, opts extractOptionData) error {
	if f.Link == nil {
		return errors.Reason("symlink entry %(rel)q missing <link>").D("rel", rel).Err()
	}
	target := sanitizer.SanitizePath(f.Link.Target)
	if err := os.Symlink(target, abs); err != nil {
		return errors.Annotate(err).Reason("creating symlink %(rel)q").D("rel", rel).Err()
	}
	if opts.preserveMtime {
		if err := lutimesPath(abs, f.ATime.Time, f.MTime.Time); err != nil {
			return err
		}
	}
	if opts.preserveOwner {
		if err := lchownPath(abs, f.UID, f.GID); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) restoreMetadata(abs, rel string, f *file, opts extractOptionData) error {
	if opts.preserveMtime {
		if err := os.Chtimes(abs, f.ATime.Time, f.MTime.Time); err != nil {
			return errors.Annotate(err).Reason("setting mtime on %(rel)q").D("rel", rel).Err()
		}
	}
	if opts.preserveOwner {
		if err := lchownPath(abs, f.UID, f.GID); err != nil {
			return err
		}
	}
	return nil
}
