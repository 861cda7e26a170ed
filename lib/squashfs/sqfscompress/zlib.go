// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfscompress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

type zlibDecompressor struct{}

var _ Decompressor = zlibDecompressor{}

func (zlibDecompressor) Name() string { return "gzip" }

func (zlibDecompressor) Decompress(dst, src []byte) (int, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = zr.Close()
	}()
	return readInto(dst, zr)
}

// readInto reads r to EOF into dst, erroring if r produces more than
// len(dst) bytes.
func readInto(dst []byte, r io.Reader) (int, error) {
	n := 0
	for {
		if n == len(dst) {
			var tmp [1]byte
			if m, _ := r.Read(tmp[:]); m > 0 {
				return n, fmt.Errorf("decompressed data overflows %v-byte block", len(dst))
			}
			return n, nil
		}
		m, err := r.Read(dst[n:])
		n += m
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}
