// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfscompress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type zstdDecompressor struct {
	dec *zstd.Decoder
}

var _ Decompressor = (*zstdDecompressor)(nil)

func newZstdDecompressor() (*zstdDecompressor, error) {
	// A nil-reader Decoder is a stateless handle that is only
	// used through DecodeAll, which is safe for concurrent use.
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true))
	if err != nil {
		return nil, err
	}
	return &zstdDecompressor{dec: dec}, nil
}

func (*zstdDecompressor) Name() string { return "zstd" }

func (d *zstdDecompressor) Decompress(dst, src []byte) (int, error) {
	buf, err := d.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, err
	}
	if len(buf) > len(dst) {
		return len(dst), fmt.Errorf("decompressed data overflows %v-byte block", len(dst))
	}
	// DecodeAll only reallocates if the output outgrows dst; if it
	// did not, buf aliases dst and the copy is a no-op.
	return copy(dst, buf), nil
}
