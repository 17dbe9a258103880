// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package xarwalk

import "io/fs"

// devIno has no faithful Windows equivalent of a POSIX (device, inode)
// pair; every entry gets a distinct synthetic value so hard-link detection
// in the Builder simply never fires on Windows, which matches the original
// xar tool's own POSIX-only hard-link support.
func devIno(info fs.FileInfo) (dev, ino uint64, err error) {
	nextSynthetic++
	return 0, nextSynthetic, nil
}

var nextSynthetic uint64
