// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package fs

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

func rename(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	if dstfi, err := os.Stat(dst); fi.IsDir() && err == nil && dstfi.IsDir() {
		return errors.Errorf("cannot rename directory %s to existing dst %s", src, dst)
	}

	return os.Rename(src, dst)
}

func renameFallback(err error, src, dst string) error {
	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	if terr.Err != syscall.EXDEV {
		// In windows it can drop down to an operating system call that
		// returns an operating system error with a different number and
		// message. Checking for that as a fall back.
		noerr, ok := terr.Err.(syscall.Errno)

		// 0x11 (ERROR_NOT_SAME_DEVICE) is the windows error.
		// See https://msdn.microsoft.com/en-us/library/cc231199.aspx
		if ok && noerr != 0x11 {
			return errors.Wrapf(terr, "link error: cannot rename %s to %s", src, dst)
		}
	}

	return renameByCopy(src, dst)
}
