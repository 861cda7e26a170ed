// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package containers implements generic containers.
package containers

import (
	lru "github.com/hashicorp/golang-lru"
)

type Map[K comparable, V any] interface {
	Store(K, V)
	Load(K) (V, bool)
	Has(K) bool
	Delete(K)
	Len() int
}

// LRUCache is a least-recently-used(ish) cache.  A zero LRUCache is
// not usable; it must be initialized with NewLRUCache.
//
// LRUCache is safe for concurrent use.
type LRUCache[K comparable, V any] struct {
	inner *lru.ARCCache
}

var _ Map[int, string] = (*LRUCache[int, string])(nil)

func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	c := new(LRUCache[K, V])
	c.inner, _ = lru.NewARC(size)
	return c
}

func (c *LRUCache[K, V]) Store(key K, value V) {
	c.inner.Add(key, value)
}

func (c *LRUCache[K, V]) Load(key K) (value V, ok bool) {
	_value, ok := c.inner.Get(key)
	if ok {
		//nolint:forcetypeassert // Typed wrapper around untyped lib.
		value = _value.(V)
	}
	return value, ok
}

func (c *LRUCache[K, V]) Has(key K) bool {
	return c.inner.Contains(key)
}

func (c *LRUCache[K, V]) Delete(key K) {
	c.inner.Remove(key)
}

func (c *LRUCache[K, V]) Len() int {
	return c.inner.Len()
}
