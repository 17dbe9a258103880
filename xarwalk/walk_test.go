// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package xarwalk

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultWalk(t *testing.T) {
	t.Parallel()

	Convey("Default.Walk", t, func() {
		root := t.TempDir()
		So(os.MkdirAll(filepath.Join(root, "a", "b"), 0o755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "top.txt"), []byte("x"), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "a", "nested.txt"), []byte("y"), 0o644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), []byte("z"), 0o644), ShouldBeNil)

		entries, err := Default{}.Walk(root)
		So(err, ShouldBeNil)

		So(len(entries), ShouldEqual, 5)

		indexOf := func(rel string) int {
			for i, e := range entries {
				if e.RelPath == rel {
					return i
				}
			}
			return -1
		}

		So(indexOf("a"), ShouldBeLessThan, indexOf("a/nested.txt"))
		So(indexOf("a"), ShouldBeLessThan, indexOf("a/b"))
		So(indexOf("a/b"), ShouldBeLessThan, indexOf("a/b/deep.txt"))
	})

	Convey("Default.Walk detects matching inode for hard links", t, func() {
		root := t.TempDir()
		So(os.WriteFile(filepath.Join(root, "one.txt"), []byte("same"), 0o644), ShouldBeNil)
		So(os.Link(filepath.Join(root, "one.txt"), filepath.Join(root, "two.txt")), ShouldBeNil)

		entries, err := Default{}.Walk(root)
		So(err, ShouldBeNil)
		So(len(entries), ShouldEqual, 2)
		So(entries[0].Ino, ShouldEqual, entries[1].Ino)
		So(entries[0].Dev, ShouldEqual, entries[1].Dev)
	})
}
