// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package xarwalk externalizes directory traversal as a small interface
// (spec.md §9's "directory walker" design note): a breadth-first iterator
// over (path, os.FileInfo) pairs that excludes the walk root itself, does
// not cross device boundaries, and does not follow symlinks. The archive
// Builder depends only on this contract.
package xarwalk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/luci/luci-go/common/errors"
)

// Entry is one node yielded by a Walker: its path relative to the walk
// root, its lstat info (symlinks are never followed), and its device and
// inode numbers (used by the Builder to detect hard links; Default.Walk
// also uses the device number to skip entries on other mount points).
type Entry struct {
	RelPath string
	Info    fs.FileInfo
	Dev     uint64
	Ino     uint64
}

// Walker yields every filesystem entry under a root, breadth-first,
// excluding the root itself.
type Walker interface {
	Walk(root string) ([]Entry, error)
}

// Default is the standard Walker: breadth-first, single-device, symlinks
// unfollowed.
type Default struct{}

// Walk implements Walker. It lists each directory level fully before
// descending, so parents are always yielded before their children and
// siblings at the same depth are grouped together (spec.md §4.5 step 1).
func (Default) Walk(root string) ([]Entry, error) {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		return nil, errors.Annotate(err).Reason("statting walk root %(root)q").D("root", root).Err()
	}
	rootDev, _, err := devIno(rootInfo)
	if err != nil {
		return nil, err
	}

	var out []Entry
	queue := []string{""}
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]

		absDir := filepath.Join(root, rel)
		names, err := readDirNames(absDir)
		if err != nil {
			return nil, errors.Annotate(err).Reason("reading directory %(dir)q").D("dir", absDir).Err()
		}

		for _, name := range names {
			childRel := filepath.Join(rel, name)
			childAbs := filepath.Join(root, childRel)

			info, err := os.Lstat(childAbs)
			if err != nil {
				return nil, errors.Annotate(err).Reason("statting %(path)q").D("path", childAbs).Err()
			}
			dev, ino, err := devIno(info)
			if err != nil {
				return nil, err
			}
			if dev != rootDev {
				// Cross-device traversal is disabled by default (spec.md §4.5 step 1).
				continue
			}

			out = append(out, Entry{RelPath: childRel, Info: info, Dev: dev, Ino: ino})

			if info.IsDir() {
				queue = append(queue, childRel)
			}
		}
	}
	return out, nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

