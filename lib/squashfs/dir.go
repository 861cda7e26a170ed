// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package squashfs

import (
	"context"
	"fmt"
	"path"
	"strings"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// DirHeader prefixes each run of directory entries whose inode
// records share a metadata block.  Count is stored off-by-one (a
// header is never followed by zero entries).
type DirHeader struct {
	Count         uint32        `bin:"off=0x0, siz=0x4"`
	Start         uint32        `bin:"off=0x4, siz=0x4"`
	Inum          sqfsprim.Inum `bin:"off=0x8, siz=0x4"`
	binstruct.End `bin:"off=0xc"`
}

// dirEntryRaw is the fixed-width part of an on-disk directory entry;
// NameSize+1 bytes of name follow it.
type dirEntryRaw struct {
	Offset        uint16 `bin:"off=0x0, siz=0x2"`
	InumOffset    int16  `bin:"off=0x2, siz=0x2"`
	Type          uint16 `bin:"off=0x4, siz=0x2"`
	NameSize      uint16 `bin:"off=0x6, siz=0x2"`
	binstruct.End `bin:"off=0x8"`
}

// maxEntriesPerHeader is the most entries mksquashfs puts under one
// header.
const maxEntriesPerHeader = 256

// DirEntry is one decoded directory entry.  Type is the entry's
// logical type as recorded in the listing (always a compact tag,
// even when the inode record itself uses an extended encoding).
type DirEntry struct {
	Name string
	Inum sqfsprim.Inum
	Ref  sqfsprim.InodeRef
	Type sqfsinode.Type
}

// ReadDir returns the entries of a directory inode, in their on-disk
// (name-sorted) order.  "." and ".." are not stored and not
// returned.
func (fs *FS) ReadDir(ctx context.Context, ino *sqfsinode.Inode) ([]DirEntry, error) {
	body, ok := ino.Body.(sqfsinode.DirBody)
	if !ok {
		return nil, fmt.Errorf("inode %v: not a directory", ino.Inum)
	}

	cur := sqfsprim.MetaCursor{
		Block:  fs.sb.DirectoryTableStart + body.EntriesStart.Block,
		Offset: body.EntriesStart.Offset,
	}

	var ret []DirEntry
	hdrSize := binstruct.StaticSize(DirHeader{})
	entSize := binstruct.StaticSize(dirEntryRaw{})
	buf := make([]byte, hdrSize)
	remain := int(body.EntriesSize)
	for remain > 0 {
		var err error
		cur, err = fs.meta.ReadMetadata(ctx, cur, buf[:hdrSize])
		if err != nil {
			return nil, fmt.Errorf("inode %v: dir header: %w", ino.Inum, err)
		}
		remain -= hdrSize
		var hdr DirHeader
		if _, err := binstruct.Unmarshal(buf[:hdrSize], &hdr); err != nil {
			return nil, fmt.Errorf("inode %v: dir header: %w", ino.Inum, err)
		}
		// Count is stored off-by-one, so compare before adding:
		// a corrupt all-ones Count must not wrap to 0 and pass.
		if hdr.Count >= maxEntriesPerHeader {
			return nil, fmt.Errorf("inode %v: dir header claims %v entries",
				ino.Inum, uint64(hdr.Count)+1)
		}

		for i := uint32(0); i <= hdr.Count; i++ {
			cur, err = fs.meta.ReadMetadata(ctx, cur, buf[:entSize])
			if err != nil {
				return nil, fmt.Errorf("inode %v: dir entry: %w", ino.Inum, err)
			}
			var raw dirEntryRaw
			if _, err := binstruct.Unmarshal(buf[:entSize], &raw); err != nil {
				return nil, fmt.Errorf("inode %v: dir entry: %w", ino.Inum, err)
			}
			name := make([]byte, int(raw.NameSize)+1)
			cur, err = fs.meta.ReadMetadata(ctx, cur, name)
			if err != nil {
				return nil, fmt.Errorf("inode %v: dir entry name: %w", ino.Inum, err)
			}
			remain -= entSize + len(name)

			ret = append(ret, DirEntry{
				Name: string(name),
				Inum: sqfsprim.Inum(int64(hdr.Inum) + int64(raw.InumOffset)),
				Ref:  sqfsprim.NewInodeRef(sqfsprim.Addr(hdr.Start), uint32(raw.Offset)),
				Type: sqfsinode.Type(raw.Type),
			})
		}
	}
	if remain < 0 {
		return nil, fmt.Errorf("inode %v: dir entries overran the %v-byte listing by %v bytes",
			ino.Inum, body.EntriesSize, -remain)
	}
	return ret, nil
}

// Lookup finds the named entry in a directory inode.
func (fs *FS) Lookup(ctx context.Context, dir *sqfsinode.Inode, name string) (DirEntry, error) {
	ents, err := fs.ReadDir(ctx, dir)
	if err != nil {
		return DirEntry{}, err
	}
	for _, ent := range ents {
		if ent.Name == name {
			return ent, nil
		}
	}
	return DirEntry{}, fmt.Errorf("inode %v: no entry named %q", dir.Inum, name)
}

// LookupPath walks a slash-separated path from the root directory to
// an inode.  Symlinks are not followed.
func (fs *FS) LookupPath(ctx context.Context, fullpath string) (*sqfsinode.Inode, sqfsprim.InodeRef, error) {
	ref := fs.sb.RootInode
	ino, err := fs.ReadInode(ctx, ref)
	if err != nil {
		return nil, 0, err
	}
	for _, part := range strings.Split(path.Clean("/"+fullpath), "/") {
		if part == "" {
			continue
		}
		ent, err := fs.Lookup(ctx, ino, part)
		if err != nil {
			return nil, 0, fmt.Errorf("path %q: %w", fullpath, err)
		}
		ref = ent.Ref
		ino, err = fs.ReadInode(ctx, ref)
		if err != nil {
			return nil, 0, fmt.Errorf("path %q: %w", fullpath, err)
		}
	}
	return ino, ref, nil
}
