// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsprim

import (
	"fmt"
)

// Addr is a byte address within the archive file.  Metadata blocks,
// data blocks, fragment blocks, and table indexes all live in this
// one address space.  On-disk references to metadata blocks are
// usually relative to the start of the table that owns them (inode
// table, directory table, ...); the table owner adds the table's
// start address before handing an Addr to the metadata reader, and
// anything called a "start_block" in a record is such a relative
// value.
type Addr int64

// InvalidAddr marks "no such block"; a regular file whose last block
// is stored whole has a fragment reference with this address.
const InvalidAddr Addr = -1

func (a Addr) Add(off int64) Addr { return a + Addr(off) }

// MetaCursor addresses a single byte inside the decompressed
// metadata stream: the metadata block starting at Block, and the
// byte offset of the position within that block's decompressed
// contents.  Reads through the metadata reader advance the cursor,
// spilling into the following block as needed.
type MetaCursor struct {
	Block  Addr
	Offset uint32
}

func (c MetaCursor) String() string {
	return fmt.Sprintf("(%#x,%#x)", int64(c.Block), c.Offset)
}
