// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package squashfs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsmeta"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

var (
	// ErrIDOutOfRange is returned (wrapped) by ResolveID for an
	// index past the end of the id table.
	ErrIDOutOfRange = errors.New("id index out of range")
	// ErrFragOutOfRange is returned (wrapped) by ResolveFragment
	// for an index past the end of the fragment table.
	ErrFragOutOfRange = errors.New("fragment index out of range")
)

// readTable reads the count entries of an indexed lookup table.
// Tables are stored as metadata blocks, each holding as many whole
// entries as fit in a block; the table's start address points at a
// raw (not metadata-encoded) array of absolute u64 addresses of
// those blocks.  The whole table is read at mount and kept in
// memory.
func readTable[T any](ctx context.Context, fs *FS, start sqfsprim.Addr, count int) ([]T, error) {
	if count == 0 {
		return nil, nil
	}

	entrySize := binstruct.StaticSize(*new(T))
	entriesPerBlock := sqfsmeta.BlockSize / entrySize
	blockCount := (count + entriesPerBlock - 1) / entriesPerBlock

	index := make([]byte, 8*blockCount)
	if _, err := fs.dev.ReadAt(index, start); err != nil {
		return nil, fmt.Errorf("table index at %#x: %w", int64(start), err)
	}

	ret := make([]T, 0, count)
	buf := make([]byte, entrySize)
	for i := 0; i < blockCount; i++ {
		cur := sqfsprim.MetaCursor{
			Block: sqfsprim.Addr(binary.LittleEndian.Uint64(index[8*i:])),
		}
		n := entriesPerBlock
		if remain := count - len(ret); n > remain {
			n = remain
		}
		for j := 0; j < n; j++ {
			var err error
			cur, err = fs.meta.ReadMetadata(ctx, cur, buf)
			if err != nil {
				return nil, err
			}
			var entry T
			if _, err := binstruct.Unmarshal(buf, &entry); err != nil {
				return nil, err
			}
			ret = append(ret, entry)
		}
	}
	return ret, nil
}

// idTable resolves the compact uid/gid indexes stored in inode
// records.  Immutable after mount.
type idTable struct {
	ids []uint32
}

func (fs *FS) readIDTable(ctx context.Context) (*idTable, error) {
	ids, err := readTable[uint32](ctx, fs, fs.sb.IDTableStart, int(fs.sb.IDCount))
	if err != nil {
		return nil, err
	}
	return &idTable{ids: ids}, nil
}

func (tbl *idTable) ResolveID(_ context.Context, idx uint16) (uint32, error) {
	if int(idx) >= len(tbl.ids) {
		return 0, fmt.Errorf("%w: %v (table has %v)", ErrIDOutOfRange, idx, len(tbl.ids))
	}
	return tbl.ids[idx], nil
}

// FragmentEntry is the on-disk fragment-table entry.
type FragmentEntry struct {
	StartBlock    uint64            `bin:"off=0x0, siz=0x8"`
	Size          sqfsprim.DataSize `bin:"off=0x8, siz=0x4"`
	Unused        uint32            `bin:"off=0xc, siz=0x4"`
	binstruct.End `bin:"off=0x10"`
}

// fragTable resolves fragment indexes to fragment-block locations.
// Immutable after mount.
type fragTable struct {
	frags []FragmentEntry
}

func (fs *FS) readFragTable(ctx context.Context) (*fragTable, error) {
	frags, err := readTable[FragmentEntry](ctx, fs, fs.sb.FragmentTableStart, int(fs.sb.FragmentCount))
	if err != nil {
		return nil, err
	}
	return &fragTable{frags: frags}, nil
}

// ResolveFragment returns where the fragment block for idx lives.
// The returned FragmentRef's Offset is zero; the caller knows the
// within-block offset from the inode record.
func (tbl *fragTable) ResolveFragment(_ context.Context, idx uint32) (sqfsprim.FragmentRef, error) {
	if int(idx) >= len(tbl.frags) {
		return sqfsprim.FragmentRef{}, fmt.Errorf("%w: %v (table has %v)",
			ErrFragOutOfRange, idx, len(tbl.frags))
	}
	entry := tbl.frags[idx]
	return sqfsprim.FragmentRef{
		Block: sqfsprim.Addr(entry.StartBlock),
		Size:  entry.Size,
	}, nil
}
