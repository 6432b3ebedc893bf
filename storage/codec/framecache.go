// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// FrameKey names one frame of one block-encoded array.
type FrameKey struct {
	Owner uint64
	Frame int
}

// FrameCache is an LRU cache of decompressed frames bounded in bytes.
type FrameCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[FrameKey]*list.Element
	lru      *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type frameEntry struct {
	key  FrameKey
	data []byte
}

// DefaultFrameCacheSize is the capacity of the shared cache (16 MB).
const DefaultFrameCacheSize = 16 << 20

var sharedCache = NewFrameCache(DefaultFrameCacheSize)

// SharedFrameCache returns the process-wide cache used by block arrays that
// are not given their own.
func SharedFrameCache() *FrameCache { return sharedCache }

func NewFrameCache(capacityBytes int64) *FrameCache {
	return &FrameCache{
		capacity: capacityBytes,
		items:    make(map[FrameKey]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a cached frame. Callers must not modify it.
func (c *FrameCache) Get(key FrameKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*frameEntry).data, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put caches a frame, evicting least recently used frames as needed. Frames
// larger than the capacity are not cached.
func (c *FrameCache) Put(key FrameKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(data))
	if n > c.capacity {
		return
	}
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*frameEntry)
		c.size += n - int64(len(entry.data))
		entry.data = data
		c.lru.MoveToFront(elem)
		c.evict()
		return
	}
	c.size += n
	c.items[key] = c.lru.PushFront(&frameEntry{key: key, data: data})
	c.evict()
}

// GetOrLoad returns the cached frame or loads, caches and returns it.
func (c *FrameCache) GetOrLoad(key FrameKey, load func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}
	data, err := load()
	if err != nil {
		return nil, err
	}
	c.Put(key, data)
	return data, nil
}

// evict must be called with the lock held.
func (c *FrameCache) evict() {
	for c.size > c.capacity && c.lru.Len() > 1 {
		elem := c.lru.Back()
		entry := elem.Value.(*frameEntry)
		delete(c.items, entry.key)
		c.lru.Remove(elem)
		c.size -= int64(len(entry.data))
	}
}

// RemoveOwner drops every frame of owner.
func (c *FrameCache) RemoveOwner(owner uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.items {
		if key.Owner == owner {
			c.size -= int64(len(elem.Value.(*frameEntry).data))
			c.lru.Remove(elem)
			delete(c.items, key)
		}
	}
}

func (c *FrameCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[FrameKey]*list.Element)
	c.lru = list.New()
	c.size = 0
}

// FrameCacheStats is a snapshot of cache occupancy and hit counts.
type FrameCacheStats struct {
	Frames   int
	Size     int64
	Capacity int64
	Hits     int64
	Misses   int64
}

func (c *FrameCache) Stats() FrameCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return FrameCacheStats{
		Frames:   len(c.items),
		Size:     c.size,
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}
