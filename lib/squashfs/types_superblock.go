// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package squashfs

import (
	"fmt"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfscompress"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

const (
	// Magic is the superblock magic number, "hsqs" read
	// little-endian.
	Magic uint32 = 0x73717368

	// SuperblockAddr is where the superblock lives in the
	// archive.
	SuperblockAddr sqfsprim.Addr = 0
)

// Superblock is the 96-byte header at the start of every archive.
type Superblock struct {
	Magic         uint32        `bin:"off=0x0, siz=0x4"`
	InodeCount    uint32        `bin:"off=0x4, siz=0x4"`
	MkfsTime      sqfsprim.Time `bin:"off=0x8, siz=0x4"`
	BlockSize     uint32        `bin:"off=0xc, siz=0x4"`
	FragmentCount uint32        `bin:"off=0x10, siz=0x4"`

	Compression  sqfscompress.Codec `bin:"off=0x14, siz=0x2"`
	BlockLog     uint16             `bin:"off=0x16, siz=0x2"`
	Flags        uint16             `bin:"off=0x18, siz=0x2"`
	IDCount      uint16             `bin:"off=0x1a, siz=0x2"`
	VersionMajor uint16             `bin:"off=0x1c, siz=0x2"`
	VersionMinor uint16             `bin:"off=0x1e, siz=0x2"`

	RootInode sqfsprim.InodeRef `bin:"off=0x20, siz=0x8"`
	BytesUsed uint64            `bin:"off=0x28, siz=0x8"`

	IDTableStart        sqfsprim.Addr `bin:"off=0x30, siz=0x8"`
	XattrIDTableStart   sqfsprim.Addr `bin:"off=0x38, siz=0x8"`
	InodeTableStart     sqfsprim.Addr `bin:"off=0x40, siz=0x8"`
	DirectoryTableStart sqfsprim.Addr `bin:"off=0x48, siz=0x8"`
	FragmentTableStart  sqfsprim.Addr `bin:"off=0x50, siz=0x8"`
	ExportTableStart    sqfsprim.Addr `bin:"off=0x58, siz=0x8"`

	binstruct.End `bin:"off=0x60"`
}

// ValidateFormat checks the fields that reading anything at all
// depends on; it does not attempt deep layout validation.
func (sb *Superblock) ValidateFormat() error {
	if sb.Magic != Magic {
		return fmt.Errorf("superblock: bad magic %#08x (expected %#08x)", sb.Magic, Magic)
	}
	if sb.VersionMajor != 4 || sb.VersionMinor != 0 {
		return fmt.Errorf("superblock: unsupported format version %d.%d (expected 4.0)",
			sb.VersionMajor, sb.VersionMinor)
	}
	if sb.BlockLog > 31 || sb.BlockSize != 1<<sb.BlockLog {
		return fmt.Errorf("superblock: block_size %v does not match block_log %v",
			sb.BlockSize, sb.BlockLog)
	}
	return nil
}
