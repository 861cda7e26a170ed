// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsprim

import (
	"fmt"
)

// InodeRef is the 48-bit locator that identifies an inode record:
// the upper 32 bits (of the used 48) are the byte offset of the
// record's metadata block relative to the start of the inode table,
// and the low 16 bits are the byte offset of the record within that
// block's decompressed contents.  Directory entries and the
// superblock's root-inode field store inode references, not inode
// numbers.
type InodeRef uint64

func NewInodeRef(block Addr, offset uint32) InodeRef {
	return InodeRef(uint64(block)<<16 | uint64(offset&0xffff))
}

// Block returns the inode-table-relative address of the metadata
// block holding the record; add the superblock's inode-table start
// to absolutize it.
func (r InodeRef) Block() Addr {
	return Addr(r >> 16)
}

// Offset returns the byte offset of the record within its block.
func (r InodeRef) Offset() uint32 {
	return uint32(r & 0xffff)
}

func (r InodeRef) String() string {
	return fmt.Sprintf("{block:%#x offset:%#x}", int64(r.Block()), r.Offset())
}
