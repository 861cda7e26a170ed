// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package squashfs implements read-only access to squashfs 4.0
// archives.
package squashfs

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/containers"
	"git.lukeshu.com/squashfs-progs-ng/lib/diskio"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfscompress"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsmeta"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
	"git.lukeshu.com/squashfs-progs-ng/lib/textui"
)

var (
	inodeCacheSize = textui.Tunable(1024)
	metaCacheSize  = textui.Tunable(128)
	dataCacheSize  = textui.Tunable(64)
)

// FS is an opened archive.  All methods are safe for concurrent use.
type FS struct {
	dev diskio.File[sqfsprim.Addr]
	sb  Superblock

	meta    *sqfsmeta.Reader
	dec     sqfscompress.Decompressor
	ids     *idTable
	frags   *fragTable
	decoder sqfsinode.Decoder

	inodeCache *containers.LRUCache[sqfsprim.InodeRef, *sqfsinode.Inode]
	dataCache  *containers.LRUCache[sqfsprim.Addr, []byte]
}

// Open opens the archive in the named file.
func Open(ctx context.Context, filename string) (*FS, error) {
	fh, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("squashfs.Open: %w", err)
	}
	fs, err := New(ctx, &diskio.OSFile[sqfsprim.Addr]{File: fh})
	if err != nil {
		_ = fh.Close()
		return nil, fmt.Errorf("squashfs.Open: file %q: %w", filename, err)
	}
	return fs, nil
}

// New opens the archive in an already-opened file.  The FS takes
// ownership of the file; closing the FS closes it.
func New(ctx context.Context, dev diskio.File[sqfsprim.Addr]) (*FS, error) {
	fs := &FS{
		dev: dev,

		inodeCache: containers.NewLRUCache[sqfsprim.InodeRef, *sqfsinode.Inode](inodeCacheSize),
		dataCache:  containers.NewLRUCache[sqfsprim.Addr, []byte](dataCacheSize),
	}

	sbDat := make([]byte, binstruct.StaticSize(Superblock{}))
	if _, err := dev.ReadAt(sbDat, SuperblockAddr); err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	if _, err := binstruct.Unmarshal(sbDat, &fs.sb); err != nil {
		return nil, fmt.Errorf("superblock: %w", err)
	}
	if err := fs.sb.ValidateFormat(); err != nil {
		return nil, err
	}

	var err error
	fs.dec, err = sqfscompress.New(fs.sb.Compression)
	if err != nil {
		return nil, err
	}
	fs.meta = sqfsmeta.NewReader(dev, fs.dec, metaCacheSize)

	fs.ids, err = fs.readIDTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("id table: %w", err)
	}
	fs.frags, err = fs.readFragTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("fragment table: %w", err)
	}

	fs.decoder = sqfsinode.Decoder{
		Meta:      fs.meta,
		IDs:       fs.ids,
		Frags:     fs.frags,
		BlockSize: fs.sb.BlockSize,
	}

	dlog.Debugf(ctx, "opened %q: %v inodes, %v ids, %v fragments, %v compression, blocksize=%v",
		dev.Name(), fs.sb.InodeCount, fs.sb.IDCount, fs.sb.FragmentCount,
		fs.sb.Compression, fs.sb.BlockSize)
	return fs, nil
}

func (fs *FS) Close() error {
	return fs.dev.Close()
}

func (fs *FS) Name() string { return fs.dev.Name() }

// Superblock returns the archive's superblock.  The returned pointer
// aliases FS-internal state; treat it as read-only.
func (fs *FS) Superblock() *Superblock { return &fs.sb }

// ReadInode decodes the inode record that ref points at.  Successful
// decodes are cached and shared; callers must treat the returned
// Inode as immutable.  Failed decodes are not cached.
func (fs *FS) ReadInode(ctx context.Context, ref sqfsprim.InodeRef) (*sqfsinode.Inode, error) {
	if ino, ok := fs.inodeCache.Load(ref); ok {
		return ino, nil
	}
	ino, err := fs.decoder.Decode(ctx, sqfsprim.MetaCursor{
		Block:  fs.sb.InodeTableStart + ref.Block(),
		Offset: ref.Offset(),
	})
	if err != nil {
		return nil, fmt.Errorf("inode %v: %w", ref, err)
	}
	fs.inodeCache.Store(ref, ino)
	return ino, nil
}

// RootInode decodes the root directory's inode.
func (fs *FS) RootInode(ctx context.Context) (*sqfsinode.Inode, error) {
	return fs.ReadInode(ctx, fs.sb.RootInode)
}

// ReadSymlink returns the target of a symlink inode.
func (fs *FS) ReadSymlink(ctx context.Context, ino *sqfsinode.Inode) (string, error) {
	body, ok := ino.Body.(sqfsinode.SymlinkBody)
	if !ok {
		return "", fmt.Errorf("inode %v: not a symlink", ino.Inum)
	}
	dat := make([]byte, body.TargetSize)
	if _, err := fs.meta.ReadMetadata(ctx, body.TargetStart, dat); err != nil {
		return "", fmt.Errorf("inode %v: symlink target: %w", ino.Inum, err)
	}
	return string(dat), nil
}
