// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package diskio implements typed-address access to the backing
// archive file.  The archive is strictly read-only; there is no
// write path.
package diskio

import (
	"io"
)

type File[A ~int64] interface {
	Name() string
	Size() A
	Close() error
	ReadAt(p []byte, off A) (n int, err error)
}

type assertAddr int64

var _ io.ReaderAt = File[int64](nil)
