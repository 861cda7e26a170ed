// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsinode

import (
	"fmt"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// Type is the on-disk inode type tag, stored in the first 2 bytes of
// every record.  The "L" variants are the extended encodings of the
// same logical file type; mksquashfs emits whichever is the smallest
// that can represent the inode.
type Type uint16

const (
	DIR_TYPE Type = 1 + iota
	FILE_TYPE
	SYMLINK_TYPE
	BLKDEV_TYPE
	CHRDEV_TYPE
	FIFO_TYPE
	SOCKET_TYPE
	LDIR_TYPE
	LREG_TYPE
)

func (t Type) String() string {
	names := map[Type]string{
		DIR_TYPE:     "DIR",
		FILE_TYPE:    "FILE",
		SYMLINK_TYPE: "SYMLINK",
		BLKDEV_TYPE:  "BLKDEV",
		CHRDEV_TYPE:  "CHRDEV",
		FIFO_TYPE:    "FIFO",
		SOCKET_TYPE:  "SOCKET",
		LDIR_TYPE:    "LDIR",
		LREG_TYPE:    "LREG",
	}
	if name, ok := names[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

// Base is the 16-byte prefix shared by every inode record.  UID and
// GID are compact indexes into the archive's id table, not raw ids.
type Base struct {
	Type          Type          `bin:"off=0x0, siz=0x2"`
	Mode          uint16        `bin:"off=0x2, siz=0x2"` // permission bits only, no format bits
	UID           uint16        `bin:"off=0x4, siz=0x2"`
	GID           uint16        `bin:"off=0x6, siz=0x2"`
	MTime         sqfsprim.Time `bin:"off=0x8, siz=0x4"`
	Inum          sqfsprim.Inum `bin:"off=0xc, siz=0x4"`
	binstruct.End `bin:"off=0x10"`
}

// Reg is the compact regular-file record.  The block list (one
// DataSize per block) follows it in the metadata stream.
type Reg struct {
	Base          Base   `bin:"off=0x0, siz=0x10"`
	StartBlock    uint32 `bin:"off=0x10, siz=0x4"`
	Fragment      uint32 `bin:"off=0x14, siz=0x4"` // sqfsprim.InvalidFrag if no tail fragment
	FragOffset    uint32 `bin:"off=0x18, siz=0x4"`
	FileSize      uint32 `bin:"off=0x1c, siz=0x4"`
	binstruct.End `bin:"off=0x20"`
}

// LReg is the extended regular-file record: 64-bit sizes, sparse
// accounting, and an explicit link count.
type LReg struct {
	Base          Base   `bin:"off=0x0, siz=0x10"`
	StartBlock    uint64 `bin:"off=0x10, siz=0x8"`
	FileSize      uint64 `bin:"off=0x18, siz=0x8"`
	Sparse        uint64 `bin:"off=0x20, siz=0x8"` // bytes of the file covered by holes, not stored
	NLink         uint32 `bin:"off=0x28, siz=0x4"`
	Fragment      uint32 `bin:"off=0x2c, siz=0x4"`
	FragOffset    uint32 `bin:"off=0x30, siz=0x4"`
	binstruct.End `bin:"off=0x34"`
}

// Dir is the compact directory record.  StartBlock/Offset locate the
// entry listing relative to the directory table, and FileSize is the
// listing's byte length plus 3.
type Dir struct {
	Base          Base          `bin:"off=0x0, siz=0x10"`
	StartBlock    uint32        `bin:"off=0x10, siz=0x4"`
	NLink         uint32        `bin:"off=0x14, siz=0x4"`
	FileSize      uint16        `bin:"off=0x18, siz=0x2"`
	Offset        uint16        `bin:"off=0x1a, siz=0x2"`
	Parent        sqfsprim.Inum `bin:"off=0x1c, siz=0x4"`
	binstruct.End `bin:"off=0x20"`
}

// LDir is the extended directory record; IndexCount entries of a
// lookup index follow it in the metadata stream.
type LDir struct {
	Base          Base          `bin:"off=0x0, siz=0x10"`
	StartBlock    uint32        `bin:"off=0x10, siz=0x4"`
	NLink         uint32        `bin:"off=0x14, siz=0x4"`
	FileSize      uint32        `bin:"off=0x18, siz=0x4"`
	Offset        uint16        `bin:"off=0x1c, siz=0x2"`
	Parent        sqfsprim.Inum `bin:"off=0x1e, siz=0x4"`
	IndexCount    uint16        `bin:"off=0x22, siz=0x2"`
	binstruct.End `bin:"off=0x24"`
}

// Symlink is the symbolic-link record; TargetSize bytes of target
// path (no NUL terminator) follow it in the metadata stream.
type Symlink struct {
	Base          Base   `bin:"off=0x0, siz=0x10"`
	NLink         uint32 `bin:"off=0x10, siz=0x4"`
	TargetSize    uint32 `bin:"off=0x14, siz=0x4"`
	binstruct.End `bin:"off=0x18"`
}

// Dev is the block/character device record.
type Dev struct {
	Base          Base   `bin:"off=0x0, siz=0x10"`
	NLink         uint32 `bin:"off=0x10, siz=0x4"`
	RDev          uint32 `bin:"off=0x14, siz=0x4"`
	binstruct.End `bin:"off=0x18"`
}

// IPC is the FIFO/socket record; the type tag is the only thing that
// distinguishes the two.
type IPC struct {
	Base          Base   `bin:"off=0x0, siz=0x10"`
	NLink         uint32 `bin:"off=0x10, siz=0x4"`
	binstruct.End `bin:"off=0x14"`
}
