// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqfsmeta implements reading the compressed metadata
// stream.
//
// Inode records, directory listings, and the lookup tables are
// packed into metadata blocks of up to 8KiB (decompressed), each
// stored as a 2-byte little-endian header followed by the block
// data; the header's low 15 bits are the stored byte length, and bit
// 15 being set means the data is stored uncompressed.  Records are
// not aligned to block boundaries, so a read that starts near the
// end of one block continues into the block that physically follows
// it.
package sqfsmeta

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/squashfs-progs-ng/lib/containers"
	"git.lukeshu.com/squashfs-progs-ng/lib/diskio"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfscompress"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

const (
	// BlockSize is the maximum decompressed size of a metadata
	// block.
	BlockSize = 8192

	headerSize      = 2
	uncompressedBit = 0x8000
)

// ErrExhausted is returned (wrapped) when a read runs past the end
// of the metadata stream; a short read is never returned.
var ErrExhausted = errors.New("ran past the end of the metadata stream")

type block struct {
	dat  []byte
	next sqfsprim.Addr
}

// Reader decodes the metadata stream of one archive.  It is safe for
// concurrent use; the block cache is internally synchronized, and
// cursors are owned by the caller.
type Reader struct {
	file diskio.File[sqfsprim.Addr]
	dec  sqfscompress.Decompressor

	cache *containers.LRUCache[sqfsprim.Addr, *block]
}

func NewReader(file diskio.File[sqfsprim.Addr], dec sqfscompress.Decompressor, cacheSize int) *Reader {
	return &Reader{
		file:  file,
		dec:   dec,
		cache: containers.NewLRUCache[sqfsprim.Addr, *block](cacheSize),
	}
}

// ReadMetadata reads exactly len(dat) bytes of decompressed metadata
// starting at cur and returns the cursor positioned just past them.
// If the stream ends before len(dat) bytes are available, it returns
// an error wrapping ErrExhausted and dat's contents are unspecified.
func (r *Reader) ReadMetadata(ctx context.Context, cur sqfsprim.MetaCursor, dat []byte) (sqfsprim.MetaCursor, error) {
	done := 0
	for done < len(dat) {
		blk, err := r.readBlock(ctx, cur.Block)
		if err != nil {
			return cur, err
		}
		if int(cur.Offset) > len(blk.dat) {
			return cur, fmt.Errorf("sqfsmeta: read at %v: offset is past the %v-byte block: %w",
				cur, len(blk.dat), ErrExhausted)
		}
		n := copy(dat[done:], blk.dat[cur.Offset:])
		done += n
		cur.Offset += uint32(n)
		if done < len(dat) {
			// Spill into the physically-next block.
			cur = sqfsprim.MetaCursor{Block: blk.next, Offset: 0}
		}
	}
	return cur, nil
}

func (r *Reader) readBlock(ctx context.Context, addr sqfsprim.Addr) (*block, error) {
	if blk, ok := r.cache.Load(addr); ok {
		return blk, nil
	}

	var hdr [headerSize]byte
	if _, err := r.file.ReadAt(hdr[:], addr); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: %v", ErrExhausted, err)
		}
		return nil, fmt.Errorf("sqfsmeta: block header at %#x: %w", int64(addr), err)
	}
	header := binary.LittleEndian.Uint16(hdr[:])
	storedLen := int(header &^ uncompressedBit)
	compressed := header&uncompressedBit == 0
	if storedLen == 0 || storedLen > BlockSize {
		return nil, fmt.Errorf("sqfsmeta: block at %#x: invalid stored length %v",
			int64(addr), storedLen)
	}

	stored := make([]byte, storedLen)
	if _, err := r.file.ReadAt(stored, addr+headerSize); err != nil {
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: %v", ErrExhausted, err)
		}
		return nil, fmt.Errorf("sqfsmeta: block data at %#x: %w", int64(addr), err)
	}

	blk := &block{
		next: addr + headerSize + sqfsprim.Addr(storedLen),
	}
	if compressed {
		buf := make([]byte, BlockSize)
		n, err := r.dec.Decompress(buf, stored)
		if err != nil {
			return nil, fmt.Errorf("sqfsmeta: block at %#x: %v: %w",
				int64(addr), r.dec.Name(), err)
		}
		blk.dat = buf[:n]
	} else {
		blk.dat = stored
	}
	dlog.Tracef(ctx, "sqfsmeta: block at %#x: stored=%v decompressed=%v",
		int64(addr), storedLen, len(blk.dat))

	r.cache.Store(addr, blk)
	return blk, nil
}
