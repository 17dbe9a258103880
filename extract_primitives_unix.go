// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

// Platform-specific OS primitives extraction invokes but does not
// reimplement (spec.md §1): mkfifo, mknod, lchown, a symlink-safe
// nanosecond mtime set, and binding a UNIX datagram socket. Grounded on
// `rclone/backend/local/lchtimes_unix.go` and `metadata_linux.go`'s use of
// `golang.org/x/sys/unix` for the same symlink-safe operations a plain
// `os.Chtimes`/`os.Chown` can't reach.
package zar

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/luci/luci-go/common/errors"
)

func mkfifoAt(path string, mode uint32) error {
	return errors.Annotate(unix.Mkfifo(path, mode)).
		Reason("mkfifo %(path)q").D("path", path).Err()
}

func mknodAt(path string, mode uint32, typeBit uint32, major, minor uint32) error {
	err := unix.Mknod(path, mode|typeBit, int(makedev(major, minor)))
	return errors.Annotate(err).Reason("mknod %(path)q").D("path", path).Err()
}

func lchownPath(path string, uid, gid uint32) error {
	return errors.Annotate(unix.Lchown(path, int(uid), int(gid))).
		Reason("lchown %(path)q").D("path", path).Err()
}

// chmodPath applies the raw 12-bit mode (including setuid/setgid/sticky)
// via unix.Chmod, since os.Chmod's os.FileMode encodes those special bits
// at different positions than the raw 04000/02000/01000 values xartoc.Mode
// stores (spec.md §3.2, §8 S-mode).
func chmodPath(path string, mode uint32) error {
	return errors.Annotate(unix.Chmod(path, mode)).
		Reason("chmod %(path)q").D("path", path).Err()
}

// lutimesPath sets mtime without following a trailing symlink, via
// utimensat(AT_SYMLINK_NOFOLLOW) (spec.md §4.7's symlink metadata step).
func lutimesPath(path string, atime, mtime time.Time) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	err := unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW)
	return errors.Annotate(err).Reason("setting mtime on %(path)q").D("path", path).Err()
}

// bindSocket recreates a UNIX-domain socket at path. The archive stores
// only the path, never any buffered datagrams (spec.md §4.7 step 1).
func bindSocket(path string) error {
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return errors.Annotate(err).Reason("binding socket %(path)q").D("path", path).Err()
	}
	conn.SetUnlinkOnClose(false)
	return conn.Close()
}
