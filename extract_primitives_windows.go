// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package zar

import (
	"os"
	"time"

	"github.com/luci/luci-go/common/errors"
)

func mkfifoAt(path string, mode uint32) error {
	return errors.Reason("fifo nodes are not supported on this platform: %(path)q").D("path", path).Err()
}

func mknodAt(path string, mode uint32, typeBit uint32, major, minor uint32) error {
	return errors.Reason("device nodes are not supported on this platform: %(path)q").D("path", path).Err()
}

func lchownPath(path string, uid, gid uint32) error {
	return nil
}

// chmodPath has no setuid/setgid/sticky concept on Windows, so it applies
// only the low 9 permission bits via os.Chmod, best-effort.
func chmodPath(path string, mode uint32) error {
	return errors.Annotate(os.Chmod(path, os.FileMode(mode).Perm())).
		Reason("chmod %(path)q").D("path", path).Err()
}

func lutimesPath(path string, atime, mtime time.Time) error {
	return nil
}

func bindSocket(path string) error {
	return errors.Reason("UNIX sockets are not supported on this platform: %(path)q").D("path", path).Err()
}
