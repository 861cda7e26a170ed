// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqfsprim contains the primitive types that the squashfs
// on-disk format is built out of.
package sqfsprim

import (
	"time"
)

// Inum is an archive-assigned inode number; unique per archive,
// starting at 1.
type Inum uint32

// Time is an on-disk timestamp: unsigned seconds since
// 1970-01-01T00:00:00Z.  squashfs stores a single modification time
// per inode; there are no separate access/change times.
type Time uint32

func (t Time) ToStd() time.Time {
	return time.Unix(int64(t), 0)
}
