// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package zar

import (
	"io/fs"
	"syscall"
	"time"

	"github.com/luci/luci-go/common/errors"
)

// statTimesOwner extracts the raw permission bits (including setuid/setgid/
// sticky), atime/mtime/ctime, and uid/gid from a file's raw stat_t, the
// metadata an os.FileInfo doesn't expose on its own (spec.md §3.2's
// File.{mode,atime,mtime,ctime,uid,gid}).
func statTimesOwner(info fs.FileInfo) (rawMode uint32, atime, mtime, ctime time.Time, uid, gid uint32, err error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		err = errors.Reason("unable to read stat_t for %(name)q").D("name", info.Name()).Err()
		return
	}
	rawMode = uint32(st.Mode)
	atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	mtime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	uid = st.Uid
	gid = st.Gid
	return
}
