// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package squashfs

import (
	"context"
	"fmt"
	"io"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/slices"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// File reads the data of one regular-file inode.  It is safe for
// concurrent use.
type File struct {
	fs   *FS
	ino  *sqfsinode.Inode
	body sqfsinode.FileBody

	// blockList[i] is the stored size of the file's i'th block; a
	// zero entry is a sparse block, read as zeroes.  blockAddr[i]
	// is where that block's stored bytes begin on disk; blocks
	// are laid out back to back starting at body.StartBlock, with
	// sparse blocks occupying no space.
	blockList []sqfsprim.DataSize
	blockAddr []sqfsprim.Addr
}

// OpenFile prepares a regular-file inode for data reads, reading its
// block list from the metadata stream.
func (fs *FS) OpenFile(ctx context.Context, ino *sqfsinode.Inode) (*File, error) {
	body, ok := ino.Body.(sqfsinode.FileBody)
	if !ok {
		return nil, fmt.Errorf("inode %v: not a regular file", ino.Inum)
	}

	// A trailing fragment takes the place of the final partial
	// block, so the block list has an entry only for each full
	// block; otherwise the partial block has a list entry too.
	var listLen int64
	if body.Fragment.Valid() {
		listLen = ino.Size / int64(fs.sb.BlockSize)
	} else if ino.Size > 0 {
		listLen = (ino.Size-1)/int64(fs.sb.BlockSize) + 1
	}

	f := &File{
		fs:   fs,
		ino:  ino,
		body: body,

		blockList: make([]sqfsprim.DataSize, listLen),
		blockAddr: make([]sqfsprim.Addr, listLen),
	}

	entSize := binstruct.StaticSize(sqfsprim.DataSize(0))
	buf := make([]byte, entSize)
	cur := body.BlockListStart
	addr := body.StartBlock
	for i := range f.blockList {
		var err error
		cur, err = fs.meta.ReadMetadata(ctx, cur, buf)
		if err != nil {
			return nil, fmt.Errorf("inode %v: block list: %w", ino.Inum, err)
		}
		if _, err := binstruct.Unmarshal(buf, &f.blockList[i]); err != nil {
			return nil, fmt.Errorf("inode %v: block list: %w", ino.Inum, err)
		}
		if f.blockList[i].Bytes() > fs.sb.BlockSize {
			return nil, fmt.Errorf("inode %v: block %v: stored size %v exceeds block size %v",
				ino.Inum, i, f.blockList[i].Bytes(), fs.sb.BlockSize)
		}
		f.blockAddr[i] = addr
		addr = addr.Add(int64(f.blockList[i].Bytes()))
	}
	return f, nil
}

func (f *File) Size() int64 { return f.ino.Size }

// ReadAt reads len(dat) bytes of file content starting at byte
// offset off, in the io.ReaderAt contract (short reads only at
// end-of-file, with io.EOF).
func (f *File) ReadAt(ctx context.Context, dat []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("inode %v: negative read offset", f.ino.Inum)
	}
	done := 0
	for done < len(dat) && off+int64(done) < f.ino.Size {
		n, err := f.readChunk(ctx, dat[done:], off+int64(done))
		done += n
		if err != nil {
			return done, err
		}
	}
	if done < len(dat) {
		return done, io.EOF
	}
	return done, nil
}

// readChunk reads as much of dat as can be served from the single
// data block (or fragment) containing file offset off.
func (f *File) readChunk(ctx context.Context, dat []byte, off int64) (int, error) {
	blockSize := int64(f.fs.sb.BlockSize)
	idx := off / blockSize
	blockOff := off % blockSize

	// How much of the file lives in this block.
	blockLen := blockSize
	if remain := f.ino.Size - idx*blockSize; remain < blockLen {
		blockLen = remain
	}
	want := dat[:slices.Min(int64(len(dat)), blockLen-blockOff)]

	if idx >= int64(len(f.blockList)) {
		// The tail fragment.
		if !f.body.Fragment.Valid() {
			return 0, fmt.Errorf("inode %v: offset %v is past the block list and there is no fragment",
				f.ino.Inum, off)
		}
		frag, err := f.fs.readDataBlock(ctx, f.body.Fragment.Block, f.body.Fragment.Size)
		if err != nil {
			return 0, fmt.Errorf("inode %v: fragment: %w", f.ino.Inum, err)
		}
		start := int64(f.body.Fragment.Offset) + blockOff
		if start+int64(len(want)) > int64(len(frag)) {
			return 0, fmt.Errorf("inode %v: fragment too short: need %v bytes at offset %v of %v",
				f.ino.Inum, len(want), start, len(frag))
		}
		return copy(want, frag[start:]), nil
	}

	if f.blockList[idx].Bytes() == 0 {
		// Sparse block.
		for i := range want {
			want[i] = 0
		}
		return len(want), nil
	}

	blk, err := f.fs.readDataBlock(ctx, f.blockAddr[idx], f.blockList[idx])
	if err != nil {
		return 0, fmt.Errorf("inode %v: block %v: %w", f.ino.Inum, idx, err)
	}
	if blockOff+int64(len(want)) > int64(len(blk)) {
		return 0, fmt.Errorf("inode %v: block %v decompressed to %v bytes, need %v",
			f.ino.Inum, idx, len(blk), blockOff+int64(len(want)))
	}
	return copy(want, blk[blockOff:]), nil
}

// readDataBlock reads and (if needed) decompresses the data block or
// fragment block stored at addr, through the data-block cache.
func (fs *FS) readDataBlock(ctx context.Context, addr sqfsprim.Addr, size sqfsprim.DataSize) ([]byte, error) {
	if blk, ok := fs.dataCache.Load(addr); ok {
		return blk, nil
	}

	stored := make([]byte, size.Bytes())
	if _, err := fs.dev.ReadAt(stored, addr); err != nil {
		return nil, fmt.Errorf("data block at %#x: %w", int64(addr), err)
	}

	blk := stored
	if size.Compressed() {
		buf := make([]byte, fs.sb.BlockSize)
		n, err := fs.dec.Decompress(buf, stored)
		if err != nil {
			return nil, fmt.Errorf("data block at %#x: %v: %w", int64(addr), fs.dec.Name(), err)
		}
		blk = buf[:n]
	}

	fs.dataCache.Store(addr, blk)
	return blk, nil
}
