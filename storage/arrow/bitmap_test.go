package arrow

import "testing"

func TestNewBitmap(t *testing.T) {
	bm := NewBitmap(100)
	if bm.Len() != 100 {
		t.Errorf("expected length 100, got %d", bm.Len())
	}

	// All bits should be 0 initially
	if bm.CountSet() != 0 {
		t.Errorf("expected 0 set bits, got %d", bm.CountSet())
	}
}

func TestBitmapSetClear(t *testing.T) {
	bm := NewBitmap(10)

	// Set bit 5
	bm.Set(5)
	if !bm.IsSet(5) {
		t.Error("bit 5 should be set")
	}
	if bm.CountSet() != 1 {
		t.Errorf("expected 1 set bit, got %d", bm.CountSet())
	}

	// Clear bit 5
	bm.Clear(5)
	if bm.IsSet(5) {
		t.Error("bit 5 should be clear")
	}
	if bm.CountSet() != 0 {
		t.Errorf("expected 0 set bits, got %d", bm.CountSet())
	}
}

func TestBitmapMultipleBits(t *testing.T) {
	bm := NewBitmap(16)

	// Set multiple bits
	bm.Set(0)
	bm.Set(3)
	bm.Set(7)
	bm.Set(15)

	if bm.CountSet() != 4 {
		t.Errorf("expected 4 set bits, got %d", bm.CountSet())
	}

	// Verify specific bits
	if !bm.IsSet(0) || !bm.IsSet(3) || !bm.IsSet(7) || !bm.IsSet(15) {
		t.Error("expected bits not set")
	}

	// Verify unset bits
	if bm.IsSet(1) || bm.IsSet(2) || bm.IsSet(8) {
		t.Error("unexpected bits set")
	}
}

func TestBitmapSetAll(t *testing.T) {
	bm := NewBitmap(10)
	bm.SetAll()

	if bm.CountSet() != 10 {
		t.Errorf("expected 10 set bits, got %d", bm.CountSet())
	}

	for i := 0; i < 10; i++ {
		if !bm.IsSet(i) {
			t.Errorf("bit %d should be set", i)
		}
	}
}

func TestBitmapClearAll(t *testing.T) {
	bm := NewBitmap(10)
	bm.SetAll()
	bm.ClearAll()

	if bm.CountSet() != 0 {
		t.Errorf("expected 0 set bits, got %d", bm.CountSet())
	}
}

func TestBitmapResize(t *testing.T) {
	bm := NewBitmap(5)
	bm.Set(0)
	bm.Set(4)

	// Resize to larger
	bm.Resize(10)
	if bm.Len() != 10 {
		t.Errorf("expected length 10, got %d", bm.Len())
	}

	// Original bits should be preserved
	if !bm.IsSet(0) || !bm.IsSet(4) {
		t.Error("original bits should be preserved")
	}

	// New bits should be unset
	if bm.IsSet(9) {
		t.Error("new bit should be unset")
	}

	// Resize to smaller
	bm.Resize(3)
	if bm.Len() != 3 {
		t.Errorf("expected length 3, got %d", bm.Len())
	}
}

func TestBitmapResizeNoOp(t *testing.T) {
	bm := NewBitmap(10)
	bm.Set(5)

	bm.Resize(10) // Same size

	if bm.Len() != 10 {
		t.Errorf("expected length 10, got %d", bm.Len())
	}
	if !bm.IsSet(5) {
		t.Error("bit should be preserved")
	}
}

func TestBitmapBoundaryPanic(t *testing.T) {
	bm := NewBitmap(10)

	// Test Set panic
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for out of bounds Set")
		}
	}()
	bm.Set(10) // Out of bounds
}

func TestBitmapNegativeIndexPanic(t *testing.T) {
	bm := NewBitmap(10)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for negative index")
		}
	}()
	bm.Set(-1)
}

func TestNewBitmapAllSet(t *testing.T) {
	bm := NewBitmapAllSet(8)
	if bm.CountSet() != 8 {
		t.Errorf("expected 8 set bits, got %d", bm.CountSet())
	}
}

func TestBitmapAcrossByteBoundary(t *testing.T) {
	bm := NewBitmap(20)

	// Set bits across byte boundaries
	bm.Set(7)  // Last bit of first byte
	bm.Set(8)  // First bit of second byte
	bm.Set(15) // Last bit of second byte
	bm.Set(16) // First bit of third byte

	if bm.CountSet() != 4 {
		t.Errorf("expected 4 set bits, got %d", bm.CountSet())
	}
}

func TestBitmapSliceIsView(t *testing.T) {
	bm := NewBitmap(20)
	for _, i := range []int{2, 9, 10, 17} {
		bm.Set(i)
	}

	s := bm.Slice(9, 18)
	if s.Len() != 9 {
		t.Fatalf("expected length 9, got %d", s.Len())
	}
	if s.Offset() != 1 {
		t.Errorf("expected bit offset 1, got %d", s.Offset())
	}
	if !s.IsSet(0) || !s.IsSet(1) || !s.IsSet(8) || s.IsSet(2) {
		t.Error("slice bits do not match parent")
	}
	if s.CountSet() != 3 {
		t.Errorf("expected 3 set bits, got %d", s.CountSet())
	}

	// nested slices keep the absolute position
	ss := s.Slice(1, 9)
	if !ss.IsSet(0) || !ss.IsSet(7) || ss.CountSet() != 2 {
		t.Error("nested slice bits do not match parent")
	}
}

func TestBitmapCloneCompacts(t *testing.T) {
	bm := NewBitmapFromBools([]bool{true, false, true, true, false, false, true, false, true, true})
	c := bm.Slice(3, 10).Clone()
	if c.Offset() != 0 {
		t.Errorf("clone should have zero offset, got %d", c.Offset())
	}
	want := []bool{true, false, false, true, false, true, true}
	for i, w := range want {
		if c.IsSet(i) != w {
			t.Errorf("bit %d: expected %v", i, w)
		}
	}
}

func TestBitmapAndNot(t *testing.T) {
	a := NewBitmapFromBools([]bool{true, true, false, false})
	b := NewBitmapFromBools([]bool{true, false, true, false})

	and := a.And(b)
	if !and.IsSet(0) || and.CountSet() != 1 {
		t.Error("unexpected And result")
	}
	not := a.Not()
	if not.IsSet(0) || not.IsSet(1) || !not.IsSet(2) || !not.IsSet(3) {
		t.Error("unexpected Not result")
	}
}

func TestBitmapAppend(t *testing.T) {
	bm := NewBitmap(0)
	for i := 0; i < 19; i++ {
		bm.Append(i%3 == 0)
	}
	if bm.Len() != 19 {
		t.Fatalf("expected length 19, got %d", bm.Len())
	}
	if bm.CountSet() != 7 {
		t.Errorf("expected 7 set bits, got %d", bm.CountSet())
	}
	idx := bm.SetIndices()
	if len(idx) != 7 || idx[6] != 18 {
		t.Errorf("unexpected set indices %v", idx)
	}
}

// Benchmark CountSet performance
func BenchmarkBitmapCountSet(b *testing.B) {
	bm := NewBitmap(10000)
	// Set every other bit
	for i := 0; i < 10000; i += 2 {
		bm.Set(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bm.CountSet()
	}
}
