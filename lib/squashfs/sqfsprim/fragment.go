// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsprim

// InvalidFrag is the fragment-index value that means "this file has
// no trailing fragment"; its last block is stored whole.
const InvalidFrag uint32 = 0xffff_ffff

// DataSize is the on-disk representation of a data-block or
// fragment-block byte size: the low 24 bits are the stored size, and
// bit 24 being *set* means the block is stored uncompressed.  A
// block-list entry of zero denotes a sparse block (a block-size run
// of zeroes that is not stored at all).
type DataSize uint32

const dataUncompressedBit DataSize = 1 << 24

func (sz DataSize) Bytes() uint32 {
	return uint32(sz &^ dataUncompressedBit)
}

func (sz DataSize) Compressed() bool {
	return sz&dataUncompressedBit == 0
}

// FragmentRef locates a file's tail data inside a shared fragment
// block.  The fields are jointly valid or jointly invalid: either
// Block is a real address and Size is non-zero, or Block is
// InvalidAddr and Offset and Size are both zero.
type FragmentRef struct {
	Block  Addr
	Offset uint32
	Size   DataSize
}

// InvalidFragmentRef is the FragmentRef of a file with no trailing
// fragment.
var InvalidFragmentRef = FragmentRef{
	Block:  InvalidAddr,
	Offset: 0,
	Size:   0,
}

func (f FragmentRef) Valid() bool {
	return f.Block != InvalidAddr
}
