// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package diskio

import (
	"bytes"
)

// MemFile is a File backed by an in-memory byte slice; it exists for
// synthetic archives in tests and for archives that have already
// been slurped into memory.
type MemFile[A ~int64] struct {
	FileName string
	Dat      []byte
}

var _ File[assertAddr] = (*MemFile[assertAddr])(nil)

func (f *MemFile[A]) Name() string { return f.FileName }
func (f *MemFile[A]) Size() A      { return A(len(f.Dat)) }
func (f *MemFile[A]) Close() error { return nil }

func (f *MemFile[A]) ReadAt(dat []byte, off A) (int, error) {
	return bytes.NewReader(f.Dat).ReadAt(dat, int64(off))
}
