// Copyright 2024 Vego Authors
// Licensed under the Apache License, Version 2.0

package codec

import (
	"errors"
	"sync"
	"testing"
)

func key(owner uint64, frame int) FrameKey { return FrameKey{Owner: owner, Frame: frame} }

// TestFrameCache_Basic tests basic put/get operations
func TestFrameCache_Basic(t *testing.T) {
	cache := NewFrameCache(1024)

	if data, ok := cache.Get(key(1, 0)); ok {
		t.Errorf("Get on empty cache should return false, got %v", data)
	}

	data := []byte("frame data")
	cache.Put(key(1, 0), data)

	got, ok := cache.Get(key(1, 0))
	if !ok {
		t.Fatal("Get should find the frame")
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	if _, ok := cache.Get(key(1, 1)); ok {
		t.Error("Get should not find a different frame")
	}
	if _, ok := cache.Get(key(2, 0)); ok {
		t.Error("Get should not find a different owner")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 3 {
		t.Errorf("hits/misses = %d/%d, want 1/3", stats.Hits, stats.Misses)
	}
}

// TestFrameCache_Update tests replacing a cached frame
func TestFrameCache_Update(t *testing.T) {
	cache := NewFrameCache(1024)
	cache.Put(key(1, 0), []byte("v1"))
	cache.Put(key(1, 0), []byte("value2"))

	got, ok := cache.Get(key(1, 0))
	if !ok || string(got) != "value2" {
		t.Fatalf("Get = %q, %v; want value2", got, ok)
	}
	if stats := cache.Stats(); stats.Frames != 1 || stats.Size != 6 {
		t.Errorf("frames/size = %d/%d, want 1/6", stats.Frames, stats.Size)
	}
}

// TestFrameCache_Eviction tests LRU eviction order
func TestFrameCache_Eviction(t *testing.T) {
	cache := NewFrameCache(30)
	for i := 0; i < 3; i++ {
		cache.Put(key(1, i), make([]byte, 10))
	}
	// touch frame 0 so frame 1 becomes the oldest
	cache.Get(key(1, 0))
	cache.Put(key(1, 3), make([]byte, 10))

	if _, ok := cache.Get(key(1, 1)); ok {
		t.Error("frame 1 should have been evicted")
	}
	for _, f := range []int{0, 2, 3} {
		if _, ok := cache.Get(key(1, f)); !ok {
			t.Errorf("frame %d should still be cached", f)
		}
	}
	if size := cache.Stats().Size; size != 30 {
		t.Errorf("Size = %d, want 30", size)
	}
}

// TestFrameCache_TooLarge tests that oversized frames are skipped
func TestFrameCache_TooLarge(t *testing.T) {
	cache := NewFrameCache(8)
	cache.Put(key(1, 0), make([]byte, 9))
	if cache.Stats().Frames != 0 {
		t.Error("oversized frame should not be cached")
	}
}

func TestFrameCache_RemoveOwnerAndClear(t *testing.T) {
	cache := NewFrameCache(1024)
	cache.Put(key(1, 0), []byte("a"))
	cache.Put(key(1, 1), []byte("b"))
	cache.Put(key(2, 0), []byte("c"))

	cache.RemoveOwner(1)
	if stats := cache.Stats(); stats.Frames != 1 || stats.Size != 1 {
		t.Errorf("frames/size = %d/%d, want 1/1", stats.Frames, stats.Size)
	}
	cache.Clear()
	if cache.Stats().Frames != 0 {
		t.Error("Clear should empty the cache")
	}
}

func TestFrameCache_GetOrLoad(t *testing.T) {
	cache := NewFrameCache(1024)
	loads := 0
	load := func() ([]byte, error) {
		loads++
		return []byte("loaded"), nil
	}
	for i := 0; i < 3; i++ {
		got, err := cache.GetOrLoad(key(7, 0), load)
		if err != nil || string(got) != "loaded" {
			t.Fatalf("GetOrLoad = %q, %v", got, err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}

	boom := errors.New("boom")
	if _, err := cache.GetOrLoad(key(7, 1), func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("GetOrLoad error = %v, want boom", err)
	}
}

// TestFrameCache_Concurrent tests concurrent access
func TestFrameCache_Concurrent(t *testing.T) {
	cache := NewFrameCache(4096)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := key(uint64(g), i%16)
				cache.Put(k, make([]byte, 32))
				cache.Get(k)
			}
		}(g)
	}
	wg.Wait()
	if size := cache.Stats().Size; size > 4096 {
		t.Errorf("Size = %d exceeds capacity", size)
	}
}
