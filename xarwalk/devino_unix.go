// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package xarwalk

import (
	"io/fs"
	"syscall"

	"github.com/luci/luci-go/common/errors"
)

func devIno(info fs.FileInfo) (dev, ino uint64, err error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.Reason("unable to read device/inode for %(name)q").
			D("name", info.Name()).Err()
	}
	return uint64(st.Dev), uint64(st.Ino), nil
}
