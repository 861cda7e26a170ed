// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package binstruct implements simple declarative marshaling and
// unmarshaling of fixed-layout on-disk structures.
//
// Every multi-byte integer in squashfs is little-endian, so unlike a
// general-purpose codec there are no byte-order annotations; a
// struct declares its layout with `bin:"off=0xN, siz=0xM"` tags on
// each field, and a trailing anonymous binstruct.End member whose
// `off` is the total size of the record.  The off/siz values are
// redundant with the field types; binstruct checks them against the
// types and panics at first use if they disagree, so a typo'd layout
// fails loudly rather than decoding garbage.
package binstruct

import (
	"fmt"
)

// End marks the end of a struct's declared layout; the offset in its
// tag is cross-checked against the sum of the field sizes.
type End struct{}

func NeedNBytes(dat []byte, n int) error {
	if len(dat) < n {
		return fmt.Errorf("need at least %v bytes, only have %v", n, len(dat))
	}
	return nil
}
