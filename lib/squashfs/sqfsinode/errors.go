// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package sqfsinode

import (
	"fmt"
)

// UnknownTypeError is returned by Decode when a record's type tag is
// not one of the known values.  It indicates archive corruption, not
// a recoverable condition.
type UnknownTypeError struct {
	Type Type
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown inode type tag: %d", uint16(e.Type))
}
