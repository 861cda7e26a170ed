// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsinode_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.lukeshu.com/squashfs-progs-ng/lib/binstruct"
	"git.lukeshu.com/squashfs-progs-ng/lib/linux"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsinode"
	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

// memMeta serves metadata reads from a flat byte slice; cursor Block
// is an offset into the slice.
type memMeta struct {
	dat []byte
}

var errMetaExhausted = errors.New("metadata stream exhausted")

func (m memMeta) ReadMetadata(_ context.Context, cur sqfsprim.MetaCursor, dat []byte) (sqfsprim.MetaCursor, error) {
	start := int(cur.Block) + int(cur.Offset)
	if start+len(dat) > len(m.dat) {
		return cur, errMetaExhausted
	}
	copy(dat, m.dat[start:])
	cur.Offset += uint32(len(dat))
	return cur, nil
}

type memIDs struct {
	ids []uint32
}

var errIDOutOfRange = errors.New("id index out of range")

func (m memIDs) ResolveID(_ context.Context, idx uint16) (uint32, error) {
	if int(idx) >= len(m.ids) {
		return 0, fmt.Errorf("%w: %v", errIDOutOfRange, idx)
	}
	return m.ids[idx], nil
}

type memFrags struct {
	frags []sqfsprim.FragmentRef
}

var errFragOutOfRange = errors.New("fragment index out of range")

func (m memFrags) ResolveFragment(_ context.Context, idx uint32) (sqfsprim.FragmentRef, error) {
	if int(idx) >= len(m.frags) {
		return sqfsprim.FragmentRef{}, fmt.Errorf("%w: %v", errFragOutOfRange, idx)
	}
	return m.frags[idx], nil
}

// rawRecord builds an on-disk record byte-by-byte, without going
// through binstruct.
type rawRecord []byte

func (r rawRecord) u16(v uint16) rawRecord {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(r, buf[:]...)
}

func (r rawRecord) u32(v uint32) rawRecord {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(r, buf[:]...)
}

func (r rawRecord) u64(v uint64) rawRecord {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(r, buf[:]...)
}

func newTestDecoder(dat []byte) *sqfsinode.Decoder {
	return &sqfsinode.Decoder{
		Meta: memMeta{dat: dat},
		IDs:  memIDs{ids: []uint32{1000, 1001, 0}},
		Frags: memFrags{frags: []sqfsprim.FragmentRef{
			{Block: 0x9000, Offset: 0, Size: 5000},
		}},
		BlockSize: 131072,
	}
}

func mustMarshal(t *testing.T, obj any) []byte {
	t.Helper()
	dat, err := binstruct.Marshal(obj)
	require.NoError(t, err)
	return dat
}

func testBase(typ sqfsinode.Type) sqfsinode.Base {
	return sqfsinode.Base{
		Type:  typ,
		Mode:  0o644,
		UID:   0,
		GID:   1,
		MTime: 1700000000,
		Inum:  7,
	}
}

func checkBase(t *testing.T, ino *sqfsinode.Inode) {
	t.Helper()
	assert.Equal(t, sqfsprim.Inum(7), ino.Inum)
	assert.EqualValues(t, 0o644, ino.Mode&^linux.ModeFmt)
	assert.Equal(t, uint32(1000), ino.UID)
	assert.Equal(t, uint32(1001), ino.GID)
	assert.Equal(t, sqfsprim.Time(1700000000), ino.MTime)
}

func TestDecodeRegular(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	// The concrete numbers here are chosen so that the file is
	// exactly one block with no tail fragment.
	rec := sqfsinode.Reg{
		Base:       testBase(sqfsinode.FILE_TYPE),
		StartBlock: 4096,
		Fragment:   sqfsprim.InvalidFrag,
		FragOffset: 0,
		FileSize:   131072,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	checkBase(t, ino)
	assert.True(t, ino.Mode.IsRegular())
	assert.Equal(t, uint32(1), ino.NLink)
	assert.Equal(t, int64(131072), ino.Size)

	body, ok := ino.Body.(sqfsinode.FileBody)
	require.True(t, ok)
	assert.Equal(t, sqfsprim.Addr(4096), body.StartBlock)
	assert.Equal(t, int64(1), body.BlockCount)
	assert.False(t, body.Fragment.Valid())
	assert.Zero(t, body.Fragment.Offset)
	assert.Zero(t, body.Fragment.Size)
	// The block list follows the record immediately.
	assert.Equal(t, sqfsprim.MetaCursor{Block: 0, Offset: 0x20}, body.BlockListStart)
}

func TestDecodeRegularWithFragment(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.Reg{
		Base:       testBase(sqfsinode.FILE_TYPE),
		StartBlock: 4096,
		Fragment:   0,
		FragOffset: 100,
		FileSize:   131072 + 5000,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)

	body, ok := ino.Body.(sqfsinode.FileBody)
	require.True(t, ok)
	require.True(t, body.Fragment.Valid())
	assert.Equal(t, sqfsprim.Addr(0x9000), body.Fragment.Block)
	assert.Equal(t, uint32(100), body.Fragment.Offset)
	assert.EqualValues(t, 5000, body.Fragment.Size.Bytes())
	assert.Equal(t, int64(2), body.BlockCount)
}

func TestDecodeLargeRegular(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.LReg{
		Base:       testBase(sqfsinode.LREG_TYPE),
		StartBlock: 1 << 33,
		FileSize:   3 * 131072,
		Sparse:     131072,
		NLink:      4,
		Fragment:   sqfsprim.InvalidFrag,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	assert.True(t, ino.Mode.IsRegular())
	assert.Equal(t, uint32(4), ino.NLink)
	assert.Equal(t, int64(3*131072), ino.Size)

	body, ok := ino.Body.(sqfsinode.FileBody)
	require.True(t, ok)
	assert.Equal(t, sqfsprim.Addr(1<<33), body.StartBlock)
	assert.Equal(t, int64(2), body.BlockCount) // sparse bytes don't count
	assert.Equal(t, sqfsprim.MetaCursor{Block: 0, Offset: 0x34}, body.BlockListStart)
}

func TestDecodeEntirelySparseFile(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.LReg{
		Base:     testBase(sqfsinode.LREG_TYPE),
		FileSize: 131072,
		Sparse:   131072,
		NLink:    1,
		Fragment: sqfsprim.InvalidFrag,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	body, ok := ino.Body.(sqfsinode.FileBody)
	require.True(t, ok)
	assert.Equal(t, int64(0), body.BlockCount)
}

func TestDecodeDir(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.Dir{
		Base:       testBase(sqfsinode.DIR_TYPE),
		StartBlock: 8192,
		NLink:      3,
		FileSize:   27,
		Offset:     0x123,
		Parent:     1,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	checkBase(t, ino)
	assert.True(t, ino.Mode.IsDir())
	assert.Equal(t, uint32(3), ino.NLink)
	assert.Equal(t, int64(27), ino.Size)

	body, ok := ino.Body.(sqfsinode.DirBody)
	require.True(t, ok)
	assert.Equal(t, sqfsprim.MetaCursor{Block: 8192, Offset: 0x123}, body.EntriesStart)
	assert.Equal(t, uint32(24), body.EntriesSize)
	assert.Equal(t, sqfsprim.Inum(1), body.Parent)
	assert.Zero(t, body.IndexCount)
}

func TestDecodeLargeDir(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.LDir{
		Base:       testBase(sqfsinode.LDIR_TYPE),
		StartBlock: 8192,
		NLink:      30,
		FileSize:   70000,
		Offset:     0x456,
		Parent:     1,
		IndexCount: 3,
	}
	dec := newTestDecoder(mustMarshal(t, rec))

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	assert.True(t, ino.Mode.IsDir())

	body, ok := ino.Body.(sqfsinode.DirBody)
	require.True(t, ok)
	assert.Equal(t, sqfsprim.MetaCursor{Block: 8192, Offset: 0x456}, body.EntriesStart)
	assert.Equal(t, uint32(70000-3), body.EntriesSize)
	assert.Equal(t, uint16(3), body.IndexCount)
	// The lookup index starts right after the fixed-width record.
	assert.Equal(t, sqfsprim.MetaCursor{Block: 0, Offset: 0x24}, body.IndexStart)
}

func TestDecodeSymlink(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	rec := sqfsinode.Symlink{
		Base:       testBase(sqfsinode.SYMLINK_TYPE),
		NLink:      1,
		TargetSize: 11,
	}
	dat := append(mustMarshal(t, rec), []byte("/etc/passwd")...)
	dec := newTestDecoder(dat)

	ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
	require.NoError(t, err)
	assert.True(t, ino.Mode.IsSymlink())
	assert.Equal(t, int64(11), ino.Size)

	body, ok := ino.Body.(sqfsinode.SymlinkBody)
	require.True(t, ok)
	assert.Equal(t, uint32(11), body.TargetSize)
	// The target bytes follow the record; they are not read here.
	assert.Equal(t, sqfsprim.MetaCursor{Block: 0, Offset: 0x18}, body.TargetStart)
}

func TestDecodeDevices(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	for _, typ := range []sqfsinode.Type{sqfsinode.CHRDEV_TYPE, sqfsinode.BLKDEV_TYPE} {
		typ := typ
		t.Run(typ.String(), func(t *testing.T) {
			t.Parallel()
			rec := sqfsinode.Dev{
				Base:  testBase(typ),
				NLink: 1,
				RDev:  uint32(linux.MkDeviceID(1, 3)),
			}
			dec := newTestDecoder(mustMarshal(t, rec))

			ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
			require.NoError(t, err)
			if typ == sqfsinode.CHRDEV_TYPE {
				assert.Equal(t, linux.ModeFmtCharDevice, ino.Mode&linux.ModeFmt)
			} else {
				assert.Equal(t, linux.ModeFmtBlockDevice, ino.Mode&linux.ModeFmt)
			}
			assert.Zero(t, ino.Size)

			body, ok := ino.Body.(sqfsinode.DevBody)
			require.True(t, ok)
			assert.Equal(t, uint32(1), body.RDev.Major())
			assert.Equal(t, uint32(3), body.RDev.Minor())
		})
	}
}

func TestDecodeIPC(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	for _, typ := range []sqfsinode.Type{sqfsinode.FIFO_TYPE, sqfsinode.SOCKET_TYPE} {
		typ := typ
		t.Run(typ.String(), func(t *testing.T) {
			t.Parallel()
			rec := sqfsinode.IPC{
				Base:  testBase(typ),
				NLink: 2,
			}
			dec := newTestDecoder(mustMarshal(t, rec))

			ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
			require.NoError(t, err)
			if typ == sqfsinode.FIFO_TYPE {
				assert.Equal(t, linux.ModeFmtNamedPipe, ino.Mode&linux.ModeFmt)
			} else {
				assert.Equal(t, linux.ModeFmtSocket, ino.Mode&linux.ModeFmt)
			}
			assert.Equal(t, uint32(2), ino.NLink)
			assert.Zero(t, ino.Size)
			assert.Equal(t, sqfsinode.IPCBody{}, ino.Body)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	for _, tag := range []sqfsinode.Type{0, 99} {
		rec := sqfsinode.IPC{
			Base:  testBase(tag),
			NLink: 1,
		}
		dec := newTestDecoder(mustMarshal(t, rec))

		ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
		require.Error(t, err)
		assert.Nil(t, ino)
		var terr *sqfsinode.UnknownTypeError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, tag, terr.Type)
	}
}

func TestDecodeParallel(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	// The records are encoded by hand rather than with
	// binstruct.Marshal, so that each record type's codec is first
	// exercised inside the parallel section below.
	base := func(typ sqfsinode.Type) rawRecord {
		return rawRecord(nil).
			u16(uint16(typ)).u16(0o644).u16(0).u16(1).u32(1700000000).u32(7)
	}
	streams := map[string]rawRecord{
		"FILE":    base(sqfsinode.FILE_TYPE).u32(4096).u32(sqfsprim.InvalidFrag).u32(0).u32(100),
		"LREG":    base(sqfsinode.LREG_TYPE).u64(4096).u64(100).u64(0).u32(1).u32(sqfsprim.InvalidFrag).u32(0),
		"DIR":     base(sqfsinode.DIR_TYPE).u32(0).u32(2).u16(3).u16(0).u32(1),
		"LDIR":    base(sqfsinode.LDIR_TYPE).u32(0).u32(2).u32(3).u16(0).u32(1).u16(0),
		"SYMLINK": append(base(sqfsinode.SYMLINK_TYPE).u32(1).u32(1), 'x'),
		"CHRDEV":  base(sqfsinode.CHRDEV_TYPE).u32(1).u32(0x0103),
		"FIFO":    base(sqfsinode.FIFO_TYPE).u32(1),
	}

	// Release all decodes at once, so that every record type's
	// first decode runs concurrently with the others'.
	start := make(chan struct{})
	errCh := make(chan error, len(streams))
	var wg sync.WaitGroup
	for name, stream := range streams {
		name, stream := name, stream
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ino, err := newTestDecoder(stream).Decode(ctx, sqfsprim.MetaCursor{})
			if err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				return
			}
			if ino == nil {
				errCh <- fmt.Errorf("%s: nil inode", name)
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		assert.NoError(t, err)
	}
}

func TestDecodePropagatesCollaboratorErrors(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, false)

	t.Run("IDOutOfRange", func(t *testing.T) {
		t.Parallel()
		base := testBase(sqfsinode.FILE_TYPE)
		base.UID = 500
		rec := sqfsinode.Reg{Base: base, Fragment: sqfsprim.InvalidFrag}
		dec := newTestDecoder(mustMarshal(t, rec))

		ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
		assert.Nil(t, ino)
		assert.ErrorIs(t, err, errIDOutOfRange)
	})

	t.Run("FragmentOutOfRange", func(t *testing.T) {
		t.Parallel()
		rec := sqfsinode.Reg{
			Base:     testBase(sqfsinode.FILE_TYPE),
			Fragment: 12,
			FileSize: 100,
		}
		dec := newTestDecoder(mustMarshal(t, rec))

		ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
		assert.Nil(t, ino)
		assert.ErrorIs(t, err, errFragOutOfRange)
	})

	t.Run("StreamExhausted", func(t *testing.T) {
		t.Parallel()
		rec := sqfsinode.Reg{
			Base:     testBase(sqfsinode.FILE_TYPE),
			Fragment: sqfsprim.InvalidFrag,
		}
		// Truncate mid-record: the base read succeeds, the
		// full-width read does not.
		dec := newTestDecoder(mustMarshal(t, rec)[:0x18])

		ino, err := dec.Decode(ctx, sqfsprim.MetaCursor{})
		assert.Nil(t, ino)
		assert.ErrorIs(t, err, errMetaExhausted)
	})
}
