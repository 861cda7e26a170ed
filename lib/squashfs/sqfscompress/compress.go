// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqfscompress implements the block decompressors used by
// squashfs metadata and data blocks.  Compression is per-block and
// stateless; the superblock names a single codec for the whole
// archive.
package sqfscompress

import (
	"fmt"
)

// Codec is the compression-codec ID from the superblock.
type Codec uint16

const (
	GZIP Codec = 1 // zlib streams, despite the name
	LZMA Codec = 2
	LZO  Codec = 3
	XZ   Codec = 4
	LZ4  Codec = 5
	ZSTD Codec = 6
)

var codecNames = map[Codec]string{
	GZIP: "gzip",
	LZMA: "lzma",
	LZO:  "lzo",
	XZ:   "xz",
	LZ4:  "lz4",
	ZSTD: "zstd",
}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("codec(%d)", uint16(c))
}

// Decompressor decompresses a single block.
//
// Decompress fills dst from the compressed bytes in src and returns
// the number of bytes produced; dst is sized to the maximum
// decompressed size of the block (the metadata block size, or the
// archive's data block size), and it is an error for the compressed
// data to expand past it.  Implementations are safe for concurrent
// use.
type Decompressor interface {
	Name() string
	Decompress(dst, src []byte) (int, error)
}

// New returns the Decompressor for the given superblock codec ID.
// LZMA, LZO, and XZ archives exist in the wild but are not
// supported.
func New(c Codec) (Decompressor, error) {
	switch c {
	case GZIP:
		return zlibDecompressor{}, nil
	case LZ4:
		return lz4Decompressor{}, nil
	case ZSTD:
		return newZstdDecompressor()
	case LZMA, LZO, XZ:
		return nil, fmt.Errorf("sqfscompress: unsupported compression codec: %v", c)
	default:
		return nil, fmt.Errorf("sqfscompress: unrecognized compression codec: %v", c)
	}
}
