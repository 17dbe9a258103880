// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package zar

import (
	"io/fs"
	"time"
)

// statTimesOwner has no POSIX uid/gid/ctime/setuid/setgid/sticky bits on
// Windows; mtime is the only timestamp os.FileInfo reliably carries there,
// so it is used for all three, ownership is reported as 0/0 (root's
// convention, matching the teacher's own Windows carve-out in
// attrs_windows.go), and rawMode carries only the low 9 permission bits
// info.Mode().Perm() can see.
func statTimesOwner(info fs.FileInfo) (rawMode uint32, atime, mtime, ctime time.Time, uid, gid uint32, err error) {
	rawMode = uint32(info.Mode().Perm())
	mtime = info.ModTime()
	atime = mtime
	ctime = mtime
	return
}
