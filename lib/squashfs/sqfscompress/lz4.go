// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfscompress

import (
	"github.com/pierrec/lz4/v4"
)

// squashfs lz4 blocks use the raw lz4 block format, not the framed
// format.
type lz4Decompressor struct{}

var _ Decompressor = lz4Decompressor{}

func (lz4Decompressor) Name() string { return "lz4" }

func (lz4Decompressor) Decompress(dst, src []byte) (int, error) {
	return lz4.UncompressBlock(src, dst)
}
