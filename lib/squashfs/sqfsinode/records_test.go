// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsinode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

func TestRecordSizes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0x10, binstruct.StaticSize(sqfsinode.Base{}))
	assert.Equal(t, 0x20, binstruct.StaticSize(sqfsinode.Reg{}))
	assert.Equal(t, 0x34, binstruct.StaticSize(sqfsinode.LReg{}))
	assert.Equal(t, 0x20, binstruct.StaticSize(sqfsinode.Dir{}))
	assert.Equal(t, 0x24, binstruct.StaticSize(sqfsinode.LDir{}))
	assert.Equal(t, 0x18, binstruct.StaticSize(sqfsinode.Symlink{}))
	assert.Equal(t, 0x18, binstruct.StaticSize(sqfsinode.Dev{}))
	assert.Equal(t, 0x14, binstruct.StaticSize(sqfsinode.IPC{}))
}

func roundTrip[T any](t *testing.T, in T) {
	t.Helper()
	dat, err := binstruct.Marshal(in)
	require.NoError(t, err)
	require.Equal(t, binstruct.StaticSize(in), len(dat))
	var out T
	n, err := binstruct.Unmarshal(dat, &out)
	require.NoError(t, err)
	assert.Equal(t, len(dat), n)
	assert.Equal(t, in, out)
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()
	base := sqfsinode.Base{
		Type:  sqfsinode.FILE_TYPE,
		Mode:  0o644,
		UID:   3,
		GID:   4,
		MTime: 1700000000,
		Inum:  42,
	}
	roundTrip(t, base)
	roundTrip(t, sqfsinode.Reg{
		Base:       base,
		StartBlock: 4096,
		Fragment:   7,
		FragOffset: 100,
		FileSize:   131072,
	})
	roundTrip(t, sqfsinode.LReg{
		Base:       base,
		StartBlock: 1 << 33,
		FileSize:   1 << 34,
		Sparse:     1 << 20,
		NLink:      2,
		Fragment:   sqfsprim.InvalidFrag,
		FragOffset: 0,
	})
	base.Type = sqfsinode.DIR_TYPE
	roundTrip(t, sqfsinode.Dir{
		Base:       base,
		StartBlock: 8192,
		NLink:      3,
		FileSize:   27,
		Offset:     0x123,
		Parent:     1,
	})
	roundTrip(t, sqfsinode.LDir{
		Base:       base,
		StartBlock: 8192,
		NLink:      30,
		FileSize:   70000,
		Offset:     0x456,
		Parent:     1,
		IndexCount: 3,
	})
	base.Type = sqfsinode.SYMLINK_TYPE
	roundTrip(t, sqfsinode.Symlink{
		Base:       base,
		NLink:      1,
		TargetSize: 11,
	})
	base.Type = sqfsinode.CHRDEV_TYPE
	roundTrip(t, sqfsinode.Dev{
		Base:  base,
		NLink: 1,
		RDev:  0x0103,
	})
	base.Type = sqfsinode.SOCKET_TYPE
	roundTrip(t, sqfsinode.IPC{
		Base:  base,
		NLink: 1,
	})
}

func FuzzRecordRoundTrip(f *testing.F) {
	baseSize := binstruct.StaticSize(sqfsinode.Base{})

	f.Add(make([]byte, 0x34))

	f.Fuzz(func(t *testing.T, inDat []byte) {
		if len(inDat) < baseSize {
			t.Skip()
		}

		var base sqfsinode.Base
		n, err := binstruct.Unmarshal(inDat, &base)
		require.NoError(t, err, "binstruct.Unmarshal(dat, &base)")
		require.Equal(t, baseSize, n, "binstruct.Unmarshal(dat, &base)")

		baseOutDat, err := binstruct.Marshal(base)
		require.NoError(t, err, "binstruct.Marshal(base)")
		require.Equal(t, inDat[:baseSize], baseOutDat, "binstruct.Marshal(base)")

		var recPtr any
		switch base.Type {
		case sqfsinode.FILE_TYPE:
			recPtr = new(sqfsinode.Reg)
		case sqfsinode.LREG_TYPE:
			recPtr = new(sqfsinode.LReg)
		case sqfsinode.DIR_TYPE:
			recPtr = new(sqfsinode.Dir)
		case sqfsinode.LDIR_TYPE:
			recPtr = new(sqfsinode.LDir)
		case sqfsinode.SYMLINK_TYPE:
			recPtr = new(sqfsinode.Symlink)
		case sqfsinode.BLKDEV_TYPE, sqfsinode.CHRDEV_TYPE:
			recPtr = new(sqfsinode.Dev)
		case sqfsinode.FIFO_TYPE, sqfsinode.SOCKET_TYPE:
			recPtr = new(sqfsinode.IPC)
		default:
			t.Skip()
		}
		recSize := binstruct.StaticSize(recPtr)
		if len(inDat) < recSize {
			t.Skip()
		}

		t.Logf("type=%v dat=%q", base.Type, inDat[:recSize])

		n, err = binstruct.Unmarshal(inDat, recPtr)
		require.NoError(t, err, "binstruct.Unmarshal(dat, &rec)")
		require.Equal(t, recSize, n, "binstruct.Unmarshal(dat, &rec)")

		recOutDat, err := binstruct.Marshal(recPtr)
		require.NoError(t, err, "binstruct.Marshal(rec)")
		require.Equal(t, inDat[:recSize], recOutDat, "binstruct.Marshal(rec)")
	})
}

func TestTypeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "DIR", sqfsinode.DIR_TYPE.String())
	assert.Equal(t, "LREG", sqfsinode.LREG_TYPE.String())
	assert.Equal(t, "Type(99)", sqfsinode.Type(99).String())
}
