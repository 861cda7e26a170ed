// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsprim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.lukeshu.com/squashfs-progs-ng/lib/squashfs/sqfsprim"
)

func TestInodeRefPacking(t *testing.T) {
	t.Parallel()
	ref := sqfsprim.NewInodeRef(0x12345678, 0x9abc)
	assert.Equal(t, sqfsprim.Addr(0x12345678), ref.Block())
	assert.Equal(t, uint32(0x9abc), ref.Offset())
	assert.Equal(t, sqfsprim.InodeRef(0x123456789abc), ref)

	// The offset field is 16 bits; the high bits of a wider value
	// must not bleed into the block field.
	ref = sqfsprim.NewInodeRef(1, 0x1_0002)
	assert.Equal(t, sqfsprim.Addr(1), ref.Block())
	assert.Equal(t, uint32(2), ref.Offset())
}

func TestDataSize(t *testing.T) {
	t.Parallel()
	sz := sqfsprim.DataSize(5000 | 1<<24)
	assert.EqualValues(t, 5000, sz.Bytes())
	assert.False(t, sz.Compressed())

	sz = sqfsprim.DataSize(5000)
	assert.EqualValues(t, 5000, sz.Bytes())
	assert.True(t, sz.Compressed())

	assert.False(t, sqfsprim.InvalidFragmentRef.Valid())
}
