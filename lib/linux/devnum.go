// Copyright (C) 2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package linux

import (
	"fmt"
)

// DeviceID is a device number in the packed 32-bit encoding that the
// kernel uses on disk and in stat results (see
// linux.git/include/linux/kdev_t.h:new_decode_dev()).
type DeviceID uint32

func MkDeviceID(major, minor uint32) DeviceID {
	return DeviceID((minor & 0xff) | (major << 8) | ((minor &^ 0xff) << 12))
}

func (dev DeviceID) Major() uint32 {
	return (uint32(dev) & 0xfff00) >> 8
}

func (dev DeviceID) Minor() uint32 {
	return (uint32(dev) & 0xff) | ((uint32(dev) >> 12) & 0xfff00)
}

func (dev DeviceID) String() string {
	return fmt.Sprintf("%d:%d", dev.Major(), dev.Minor())
}
