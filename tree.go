// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zar

import (
	"path"

	"github.com/igankevich/zar/xartoc"
)

// file is this package's concrete instantiation of the generic
// xartoc.File[X]: the library commits to RawExtra for the auxiliary
// payload, round-tripping the elements inside <extra-data> without
// interpreting them (SPEC_FULL.md §7).
type file = xartoc.File[xartoc.RawExtra]

// toc is this package's concrete instantiation of xartoc.Toc[X].
type toc = xartoc.Toc[xartoc.RawExtra]

// treeEntry pairs a File with the slash-separated archive path built by
// joining names from the tree root down to it.
type treeEntry struct {
	File    *file
	RelPath string
}

// flattenWithPaths performs the same breadth-first traversal as
// xartoc.Flatten (spec.md §4.4/§4.6 step 5) but also threads through each
// entry's archive-relative path, which both the reader (for hard-link
// path bookkeeping) and the extractor need.
func flattenWithPaths(files []*file) []treeEntry {
	var out []treeEntry
	type queued struct {
		f   *file
		rel string
	}
	queue := make([]queued, 0, len(files))
	for _, f := range files {
		queue = append(queue, queued{f: f, rel: f.Name})
	}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		out = append(out, treeEntry{File: q.f, RelPath: q.rel})
		for _, child := range q.f.Children {
			queue = append(queue, queued{f: child, rel: path.Join(q.rel, child.Name)})
		}
	}
	return out
}

// byID indexes a flattened entry list by File.ID for hard-link resolution.
func byID(entries []treeEntry) map[uint64]*treeEntry {
	out := make(map[uint64]*treeEntry, len(entries))
	for i := range entries {
		out[entries[i].File.ID] = &entries[i]
	}
	return out
}
