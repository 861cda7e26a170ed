// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mount is the guts of the `sqfs-rec inspect mount` command,
// which mounts the archive read-only using FUSE; useful on systems
// where the in-kernel squashfs driver is unavailable or distrusted.
package mount

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"git.lukeshu.com/go/typedsync"
	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"git.lukeshu.com/squashfs-progs-ng/lib/slices"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

func MountRO(ctx context.Context, fs *squashfs.FS, mountpoint string) error {
	deviceName := fs.Name()
	if abs, err := filepath.Abs(deviceName); err == nil {
		deviceName = abs
	}

	adapter := &archive{
		FS:         fs,
		DeviceName: deviceName,
		Mountpoint: mountpoint,
	}
	return adapter.Run(ctx)
}

func fuseMount(ctx context.Context, mountpoint string, server fuse.Server, cfg *fuse.MountConfig) error {
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		// Allow mountHandle.Join() returning to cause the
		// "unmount" goroutine to quit.
		ShutdownOnNonError: true,
	})
	mounted := uint32(1)
	grp.Go("unmount", func(ctx context.Context) error {
		<-ctx.Done()
		var err error
		var gotNil bool
		// Keep retrying, because the FS might be busy.
		for atomic.LoadUint32(&mounted) != 0 {
			if _err := fuse.Unmount(mountpoint); _err == nil {
				gotNil = true
			} else if !gotNil {
				err = _err
			}
		}
		if gotNil {
			return nil
		}
		return err
	})
	grp.Go("mount", func(ctx context.Context) error {
		defer atomic.StoreUint32(&mounted, 0)

		cfg.OpContext = ctx
		cfg.ErrorLogger = dlog.StdLogger(ctx, dlog.LogLevelError)
		cfg.DebugLogger = dlog.StdLogger(ctx, dlog.LogLevelDebug)

		mountHandle, err := fuse.Mount(mountpoint, server, cfg)
		if err != nil {
			return err
		}
		dlog.Infof(ctx, "mounted %q", mountpoint)
		return mountHandle.Join(dcontext.HardContext(ctx))
	})
	return grp.Wait()
}

type dirState struct {
	Ents []squashfs.DirEntry
}

type fileState struct {
	File *squashfs.File
}

type archive struct {
	FS         *squashfs.FS
	DeviceName string
	Mountpoint string

	fuseutil.NotImplementedFileSystem
	lastHandle  uint64
	dirHandles  typedsync.Map[fuseops.HandleID, *dirState]
	fileHandles typedsync.Map[fuseops.HandleID, *fileState]

	// FUSE addresses inodes by their archive-assigned numbers;
	// this maps those numbers back to the records they came
	// from, filled in as lookups and readdirs discover entries.
	inodeRefs typedsync.Map[fuseops.InodeID, sqfsprim.InodeRef]
}

func (a *archive) Run(ctx context.Context) error {
	cfg := &fuse.MountConfig{
		FSName:  a.DeviceName,
		Subtype: "squashfs",

		ReadOnly: true,

		Options: map[string]string{
			"allow_other": "",
		},
	}
	return fuseMount(ctx, a.Mountpoint, fuseutil.NewFileSystemServer(a), cfg)
}

func (a *archive) newHandle() fuseops.HandleID {
	return fuseops.HandleID(atomic.AddUint64(&a.lastHandle, 1))
}

func inodeToFUSE(ino *sqfsinode.Inode) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(ino.Size),
		Nlink: ino.NLink,
		Mode:  uint32(ino.Mode),
		// RDev: ino.Body.(DevBody).RDev, // jacobsa/fuse doesn't expose rdev
		// The archive stores a single timestamp per inode.
		Atime: ino.MTime.ToStd(),
		Mtime: ino.MTime.ToStd(),
		Ctime: ino.MTime.ToStd(),
		Uid:   ino.UID,
		Gid:   ino.GID,
	}
}

// loadInode resolves a FUSE inode id to a decoded inode.
func (a *archive) loadInode(ctx context.Context, id fuseops.InodeID) (*sqfsinode.Inode, error) {
	if id == fuseops.RootInodeID {
		return a.FS.RootInode(ctx)
	}
	ref, ok := a.inodeRefs.Load(id)
	if !ok {
		// The kernel never asks about an inode it hasn't
		// looked up, unless the mount went stale.
		return nil, syscall.ESTALE
	}
	return a.FS.ReadInode(ctx, ref)
}

func (a *archive) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	// See linux.git/fs/squashfs/super.c:squashfs_statfs()
	sb := a.FS.Superblock()

	op.IoSize = sb.BlockSize
	op.BlockSize = sb.BlockSize
	op.Blocks = (sb.BytesUsed + uint64(sb.BlockSize) - 1) / uint64(sb.BlockSize)

	op.Inodes = uint64(sb.InodeCount)
	op.InodesFree = 0

	// jacobsa/fuse doesn't expose namelen, instead hard-coding it
	// to 255.  Which is fine by us, because that's what it is for
	// squashfs.

	return nil
}

func (a *archive) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parent, err := a.loadInode(ctx, op.Parent)
	if err != nil {
		return err
	}

	ent, err := a.FS.Lookup(ctx, parent, op.Name)
	if err != nil {
		return syscall.ENOENT
	}
	child, err := a.FS.ReadInode(ctx, ent.Ref)
	if err != nil {
		return err
	}
	a.inodeRefs.Store(fuseops.InodeID(child.Inum), ent.Ref)

	op.Entry = fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(child.Inum),
		Attributes: inodeToFUSE(child),
	}
	return nil
}

func (a *archive) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	ino, err := a.loadInode(ctx, op.Inode)
	if err != nil {
		return err
	}
	op.Attributes = inodeToFUSE(ino)
	return nil
}

func (a *archive) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	ino, err := a.loadInode(ctx, op.Inode)
	if err != nil {
		return err
	}
	ents, err := a.FS.ReadDir(ctx, ino)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		a.inodeRefs.Store(fuseops.InodeID(ent.Inum), ent.Ref)
	}
	handle := a.newHandle()
	a.dirHandles.Store(handle, &dirState{
		Ents: ents,
	})
	op.Handle = handle
	return nil
}

func (a *archive) ReadDir(_ context.Context, op *fuseops.ReadDirOp) error {
	state, ok := a.dirHandles.Load(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	for i := int(op.Offset); i < len(state.Ents); i++ {
		ent := state.Ents[i]
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(ent.Inum),
			Name:   ent.Name,
			Type: map[sqfsinode.Type]fuseutil.DirentType{
				sqfsinode.FILE_TYPE:    fuseutil.DT_File,
				sqfsinode.DIR_TYPE:     fuseutil.DT_Directory,
				sqfsinode.SYMLINK_TYPE: fuseutil.DT_Link,
				sqfsinode.BLKDEV_TYPE:  fuseutil.DT_Block,
				sqfsinode.CHRDEV_TYPE:  fuseutil.DT_Char,
				sqfsinode.FIFO_TYPE:    fuseutil.DT_FIFO,
				sqfsinode.SOCKET_TYPE:  fuseutil.DT_Socket,
			}[ent.Type],
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (a *archive) ReleaseDirHandle(_ context.Context, op *fuseops.ReleaseDirHandleOp) error {
	_, ok := a.dirHandles.LoadAndDelete(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return nil
}

func (a *archive) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	ino, err := a.loadInode(ctx, op.Inode)
	if err != nil {
		return err
	}
	file, err := a.FS.OpenFile(ctx, ino)
	if err != nil {
		return err
	}
	handle := a.newHandle()
	a.fileHandles.Store(handle, &fileState{
		File: file,
	})
	op.Handle = handle
	op.KeepPageCache = true
	return nil
}

func (a *archive) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	state, ok := a.fileHandles.Load(op.Handle)
	if !ok {
		return syscall.EBADF
	}

	var dat []byte
	if op.Dst != nil {
		size := slices.Min(int64(len(op.Dst)), op.Size)
		dat = op.Dst[:size]
	} else {
		dat = make([]byte, op.Size)
		op.Data = [][]byte{dat}
	}

	var err error
	op.BytesRead, err = state.File.ReadAt(ctx, dat, op.Offset)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return err
}

func (a *archive) ReleaseFileHandle(_ context.Context, op *fuseops.ReleaseFileHandleOp) error {
	_, ok := a.fileHandles.LoadAndDelete(op.Handle)
	if !ok {
		return syscall.EBADF
	}
	return nil
}

func (a *archive) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	ino, err := a.loadInode(ctx, op.Inode)
	if err != nil {
		return err
	}
	op.Target, err = a.FS.ReadSymlink(ctx, ino)
	return err
}

func (*archive) Destroy() {}
