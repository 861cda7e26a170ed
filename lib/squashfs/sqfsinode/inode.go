// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqfsinode decodes inode records from the metadata stream
// into generic in-memory descriptors.
package sqfsinode

import (
	"git.lukeshu.com/squashfs-progs-ng/lib/linux"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// Inode is the decoded, type-erased view of an inode record.  The
// compact/extended distinction of the on-disk encodings does not
// survive decoding; both encodings of a logical type produce the
// same Body.
type Inode struct {
	Inum  sqfsprim.Inum
	Mode  linux.StatMode // permission bits with the format bits OR'd in
	UID   uint32
	GID   uint32
	NLink uint32
	Size  int64 // stays 0 for devices, FIFOs, and sockets
	MTime sqfsprim.Time

	Body Body
}

// Body is the type-specific payload of a decoded inode; it is one of
// FileBody, DirBody, SymlinkBody, DevBody, or IPCBody.
type Body interface {
	isInodeBody()
}

// FileBody is the payload of a regular file.
type FileBody struct {
	// StartBlock is the absolute archive address of the file's
	// first data block.
	StartBlock sqfsprim.Addr
	// Fragment locates the file's tail data, or is
	// sqfsprim.InvalidFragmentRef if the last block is stored
	// whole.
	Fragment sqfsprim.FragmentRef
	// BlockListStart is where the file's block list (one
	// sqfsprim.DataSize per block) begins: the cursor position
	// just past the inode record, in the same address space the
	// record's locator was given in.
	BlockListStart sqfsprim.MetaCursor
	// BlockCount is the number of block-size units the file's
	// data spans (sparse bytes excluded).  When Fragment is
	// valid, the final unit lives in the fragment block and the
	// block list has one fewer entry than this.
	BlockCount int64
}

// DirBody is the payload of a directory.
type DirBody struct {
	// EntriesStart is where the entry listing begins, relative
	// to the directory table.
	EntriesStart sqfsprim.MetaCursor
	// EntriesSize is the byte length of the entry listing.  The
	// on-disk size field is this plus 3; the bias covers the "."
	// and ".." entries that are never stored.
	EntriesSize uint32
	Parent      sqfsprim.Inum

	// IndexStart/IndexCount describe the lookup index of an
	// extended directory; IndexCount is 0 for compact ones.
	IndexStart sqfsprim.MetaCursor
	IndexCount uint16
}

// SymlinkBody is the payload of a symbolic link.
type SymlinkBody struct {
	// TargetStart is where the TargetSize bytes of target path
	// begin: the cursor position just past the inode record.
	TargetStart sqfsprim.MetaCursor
	TargetSize  uint32
}

// DevBody is the payload of a block or character device.
type DevBody struct {
	RDev linux.DeviceID
}

// IPCBody is the (empty) payload of a FIFO or socket.
type IPCBody struct{}

func (FileBody) isInodeBody()    {}
func (DirBody) isInodeBody()     {}
func (SymlinkBody) isInodeBody() {}
func (DevBody) isInodeBody()     {}
func (IPCBody) isInodeBody()     {}
