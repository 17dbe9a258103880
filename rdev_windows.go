// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package zar

import (
	"io/fs"

	"github.com/luci/luci-go/common/errors"
)

// rdevMajorMinor has no Windows equivalent; character/block devices are
// POSIX-only node kinds (spec.md §4.7), so building an archive that
// encounters one on Windows is an error rather than a silent skip.
func rdevMajorMinor(info fs.FileInfo) (major, minor uint32, err error) {
	return 0, 0, errors.Reason("device nodes are not supported on this platform: %(name)q").
		D("name", info.Name()).Err()
}

func makedev(major, minor uint32) uint64 {
	return 0
}

const (
	typeBitChar  = 0
	typeBitBlock = 0
)
