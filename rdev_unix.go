// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package zar

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/luci/luci-go/common/errors"
)

// rdevMajorMinor extracts a character/block special file's device numbers
// (spec.md §3.2's Device.{Major,Minor}) from its raw device number.
func rdevMajorMinor(info fs.FileInfo) (major, minor uint32, err error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.Reason("unable to read rdev for %(name)q").D("name", info.Name()).Err()
	}
	dev := uint64(st.Rdev)
	return unix.Major(dev), unix.Minor(dev), nil
}

// makedev composes a raw device number from major/minor, for mknod.
func makedev(major, minor uint32) uint64 {
	return unix.Mkdev(major, minor)
}

// Mode type bits mknodAt ORs into the permission bits (spec.md §4.7's
// "mknod(path, mode | type_bits, ...)").
const (
	typeBitChar  = unix.S_IFCHR
	typeBitBlock = unix.S_IFBLK
)
