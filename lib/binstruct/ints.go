// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package binstruct

import (
	"encoding/binary"
	"reflect"
)

// Little-endian integer types that implement Marshaler, Unmarshaler,
// and StaticSizer.  Plain Go integer kinds in struct fields are
// converted through these.

type U8 uint8

func (U8) BinaryStaticSize() int            { return 1 }
func (x U8) MarshalBinary() ([]byte, error) { return []byte{byte(x)}, nil }
func (x *U8) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 1); err != nil {
		return 0, err
	}
	*x = U8(dat[0])
	return 1, nil
}

type I8 int8

func (I8) BinaryStaticSize() int            { return 1 }
func (x I8) MarshalBinary() ([]byte, error) { return []byte{byte(x)}, nil }
func (x *I8) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 1); err != nil {
		return 0, err
	}
	*x = I8(dat[0])
	return 1, nil
}

type U16 uint16

func (U16) BinaryStaticSize() int { return 2 }
func (x U16) MarshalBinary() ([]byte, error) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(x))
	return buf[:], nil
}

func (x *U16) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 2); err != nil {
		return 0, err
	}
	*x = U16(binary.LittleEndian.Uint16(dat))
	return 2, nil
}

type I16 int16

func (I16) BinaryStaticSize() int { return 2 }
func (x I16) MarshalBinary() ([]byte, error) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(x))
	return buf[:], nil
}

func (x *I16) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 2); err != nil {
		return 0, err
	}
	*x = I16(binary.LittleEndian.Uint16(dat))
	return 2, nil
}

type U32 uint32

func (U32) BinaryStaticSize() int { return 4 }
func (x U32) MarshalBinary() ([]byte, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(x))
	return buf[:], nil
}

func (x *U32) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*x = U32(binary.LittleEndian.Uint32(dat))
	return 4, nil
}

type I32 int32

func (I32) BinaryStaticSize() int { return 4 }
func (x I32) MarshalBinary() ([]byte, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(x))
	return buf[:], nil
}

func (x *I32) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 4); err != nil {
		return 0, err
	}
	*x = I32(binary.LittleEndian.Uint32(dat))
	return 4, nil
}

type U64 uint64

func (U64) BinaryStaticSize() int { return 8 }
func (x U64) MarshalBinary() ([]byte, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(x))
	return buf[:], nil
}

func (x *U64) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*x = U64(binary.LittleEndian.Uint64(dat))
	return 8, nil
}

type I64 int64

func (I64) BinaryStaticSize() int { return 8 }
func (x I64) MarshalBinary() ([]byte, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(x))
	return buf[:], nil
}

func (x *I64) UnmarshalBinary(dat []byte) (int, error) {
	if err := NeedNBytes(dat, 8); err != nil {
		return 0, err
	}
	*x = I64(binary.LittleEndian.Uint64(dat))
	return 8, nil
}

var intKind2Type = map[reflect.Kind]reflect.Type{
	reflect.Uint8:  reflect.TypeOf(U8(0)),
	reflect.Int8:   reflect.TypeOf(I8(0)),
	reflect.Uint16: reflect.TypeOf(U16(0)),
	reflect.Int16:  reflect.TypeOf(I16(0)),
	reflect.Uint32: reflect.TypeOf(U32(0)),
	reflect.Int32:  reflect.TypeOf(I32(0)),
	reflect.Uint64: reflect.TypeOf(U64(0)),
	reflect.Int64:  reflect.TypeOf(I64(0)),
}
