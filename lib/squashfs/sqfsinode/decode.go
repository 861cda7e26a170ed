// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsinode

import (
	"context"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/linux"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// MetaReader reads exactly len(dat) bytes of decompressed metadata
// at cur, returning the advanced cursor.  It must fail outright on a
// truncated stream, never short-read.
type MetaReader interface {
	ReadMetadata(ctx context.Context, cur sqfsprim.MetaCursor, dat []byte) (sqfsprim.MetaCursor, error)
}

// IDResolver resolves a compact uid/gid index from a record into a
// real id.
type IDResolver interface {
	ResolveID(ctx context.Context, idx uint16) (uint32, error)
}

// FragmentResolver resolves a fragment index into the location and
// size of the fragment block holding it.  It is never called with
// sqfsprim.InvalidFrag.
type FragmentResolver interface {
	ResolveFragment(ctx context.Context, idx uint32) (sqfsprim.FragmentRef, error)
}

// Decoder decodes inode records.  It holds no per-decode state;
// concurrent Decode calls are safe as long as the collaborators are
// safe for concurrent reads.
type Decoder struct {
	Meta  MetaReader
	IDs   IDResolver
	Frags FragmentResolver

	// BlockSize is the filesystem data-block size, used for
	// block-count accounting.
	BlockSize uint32
}

// Decode reads the inode record at cur (a locator already
// absolutized against the inode-table start) and returns its decoded
// descriptor.
//
// Collaborator errors are returned unchanged; the only error
// originating here is *UnknownTypeError.  On error the returned
// Inode is nil; there is no partially decoded result.
func (d *Decoder) Decode(ctx context.Context, cur sqfsprim.MetaCursor) (*Inode, error) {
	// Read just the shared prefix to learn the type tag, then
	// rewind and read the full record.  The full read
	// re-consumes the prefix; decoding the two views separately
	// keeps them from aliasing.
	var base Base
	if err := d.readRecord(ctx, cur, &base); err != nil {
		return nil, err
	}

	uid, err := d.IDs.ResolveID(ctx, base.UID)
	if err != nil {
		return nil, err
	}
	gid, err := d.IDs.ResolveID(ctx, base.GID)
	if err != nil {
		return nil, err
	}

	ret := &Inode{
		Inum:  base.Inum,
		Mode:  linux.StatMode(base.Mode),
		UID:   uid,
		GID:   gid,
		MTime: base.MTime,
	}

	switch base.Type {
	case FILE_TYPE:
		var rec Reg
		after, err := d.readRecordAt(ctx, cur, &rec)
		if err != nil {
			return nil, err
		}
		frag := sqfsprim.InvalidFragmentRef
		if rec.Fragment != sqfsprim.InvalidFrag {
			frag, err = d.Frags.ResolveFragment(ctx, rec.Fragment)
			if err != nil {
				return nil, err
			}
			frag.Offset = rec.FragOffset
		}
		ret.Mode |= linux.ModeFmtRegular
		ret.NLink = 1 // compact regular files are never hardlinked
		ret.Size = int64(rec.FileSize)
		ret.Body = FileBody{
			StartBlock:     sqfsprim.Addr(rec.StartBlock),
			Fragment:       frag,
			BlockListStart: after,
			BlockCount:     blockCount(int64(rec.FileSize), 0, d.BlockSize),
		}
	case LREG_TYPE:
		var rec LReg
		after, err := d.readRecordAt(ctx, cur, &rec)
		if err != nil {
			return nil, err
		}
		frag := sqfsprim.InvalidFragmentRef
		if rec.Fragment != sqfsprim.InvalidFrag {
			frag, err = d.Frags.ResolveFragment(ctx, rec.Fragment)
			if err != nil {
				return nil, err
			}
			frag.Offset = rec.FragOffset
		}
		ret.Mode |= linux.ModeFmtRegular
		ret.NLink = rec.NLink
		ret.Size = int64(rec.FileSize)
		ret.Body = FileBody{
			StartBlock:     sqfsprim.Addr(rec.StartBlock),
			Fragment:       frag,
			BlockListStart: after,
			BlockCount:     blockCount(int64(rec.FileSize), int64(rec.Sparse), d.BlockSize),
		}
	case DIR_TYPE:
		var rec Dir
		if _, err := d.readRecordAt(ctx, cur, &rec); err != nil {
			return nil, err
		}
		ret.Mode |= linux.ModeFmtDir
		ret.NLink = rec.NLink
		ret.Size = int64(rec.FileSize)
		ret.Body = DirBody{
			EntriesStart: sqfsprim.MetaCursor{
				Block:  sqfsprim.Addr(rec.StartBlock),
				Offset: uint32(rec.Offset),
			},
			EntriesSize: entriesSize(uint32(rec.FileSize)),
			Parent:      rec.Parent,
		}
	case LDIR_TYPE:
		var rec LDir
		after, err := d.readRecordAt(ctx, cur, &rec)
		if err != nil {
			return nil, err
		}
		ret.Mode |= linux.ModeFmtDir
		ret.NLink = rec.NLink
		ret.Size = int64(rec.FileSize)
		ret.Body = DirBody{
			EntriesStart: sqfsprim.MetaCursor{
				Block:  sqfsprim.Addr(rec.StartBlock),
				Offset: uint32(rec.Offset),
			},
			EntriesSize: entriesSize(rec.FileSize),
			Parent:      rec.Parent,
			IndexStart:  after,
			IndexCount:  rec.IndexCount,
		}
	case SYMLINK_TYPE:
		var rec Symlink
		after, err := d.readRecordAt(ctx, cur, &rec)
		if err != nil {
			return nil, err
		}
		ret.Mode |= linux.ModeFmtSymlink
		ret.NLink = rec.NLink
		ret.Size = int64(rec.TargetSize)
		ret.Body = SymlinkBody{
			TargetStart: after,
			TargetSize:  rec.TargetSize,
		}
	case BLKDEV_TYPE, CHRDEV_TYPE:
		var rec Dev
		if _, err := d.readRecordAt(ctx, cur, &rec); err != nil {
			return nil, err
		}
		if base.Type == CHRDEV_TYPE {
			ret.Mode |= linux.ModeFmtCharDevice
		} else {
			ret.Mode |= linux.ModeFmtBlockDevice
		}
		ret.NLink = rec.NLink
		ret.Body = DevBody{
			RDev: linux.DeviceID(rec.RDev),
		}
	case FIFO_TYPE, SOCKET_TYPE:
		var rec IPC
		if _, err := d.readRecordAt(ctx, cur, &rec); err != nil {
			return nil, err
		}
		if base.Type == FIFO_TYPE {
			ret.Mode |= linux.ModeFmtNamedPipe
		} else {
			ret.Mode |= linux.ModeFmtSocket
		}
		ret.NLink = rec.NLink
		ret.Body = IPCBody{}
	default:
		return nil, &UnknownTypeError{Type: base.Type}
	}

	return ret, nil
}

// readRecordAt reads the record at cur into dstPtr and returns the
// cursor just past it.
func (d *Decoder) readRecordAt(ctx context.Context, cur sqfsprim.MetaCursor, dstPtr any) (sqfsprim.MetaCursor, error) {
	dat := make([]byte, binstruct.StaticSize(dstPtr))
	after, err := d.Meta.ReadMetadata(ctx, cur, dat)
	if err != nil {
		return after, err
	}
	if _, err := binstruct.Unmarshal(dat, dstPtr); err != nil {
		return after, err
	}
	return after, nil
}

func (d *Decoder) readRecord(ctx context.Context, cur sqfsprim.MetaCursor, dstPtr any) error {
	_, err := d.readRecordAt(ctx, cur, dstPtr)
	return err
}

// entriesSize strips the 3-byte bias that directory sizes carry for
// the never-stored "." and ".." entries.
func entriesSize(fileSize uint32) uint32 {
	if fileSize < 3 {
		return 0
	}
	return fileSize - 3
}

// blockCount returns how many block-size units a file of the given
// size spans, not counting sparse bytes.  An entirely sparse file
// (size == sparse) spans zero.
func blockCount(size, sparse int64, blockSize uint32) int64 {
	if size <= sparse {
		return 0
	}
	return (size-sparse-1)/int64(blockSize) + 1
}
