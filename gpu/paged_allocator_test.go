package gpu

import "testing"

func TestPagedAllocatorAllocAssignsIncreasingGenerationOneOnFirstUse(t *testing.T) {
	a := newPagedAllocator(4)
	idx, gen := a.alloc()
	if idx != 0 {
		t.Fatalf("first alloc index = %d, want 0", idx)
	}
	if gen != 1 {
		t.Fatalf("first alloc generation = %d, want 1", gen)
	}
}

func TestPagedAllocatorSpansMultiplePages(t *testing.T) {
	a := newPagedAllocator(2)
	var indices []uint32
	for i := 0; i < 5; i++ {
		idx, _ := a.alloc()
		indices = append(indices, idx)
	}
	if len(a.pages) != 3 {
		t.Fatalf("pages = %d, want 3 for pageSize=2 and 5 allocations", len(a.pages))
	}
	seen := make(map[uint32]bool)
	for _, idx := range indices {
		if seen[idx] {
			t.Fatalf("duplicate index %d across pages", idx)
		}
		seen[idx] = true
	}
}

func TestPagedAllocatorFreeRecyclesIndexAndBumpsGeneration(t *testing.T) {
	a := newPagedAllocator(4)
	idx, gen := a.alloc()
	a.free(idx)

	idx2, gen2 := a.alloc()
	if idx2 != idx {
		t.Fatalf("recycled index = %d, want %d", idx2, idx)
	}
	if gen2 != gen+1 {
		t.Fatalf("recycled generation = %d, want %d", gen2, gen+1)
	}
}

func TestPagedAllocatorLookupRejectsZeroValueHandle(t *testing.T) {
	a := newPagedAllocator(4)
	if _, err := a.lookup(handle{}); err == nil {
		t.Fatal("lookup(zero handle) succeeded, want error")
	}
}

func TestPagedAllocatorLookupRejectsStaleHandleAfterFree(t *testing.T) {
	a := newPagedAllocator(4)
	idx, gen := a.alloc()
	stale := handle{index: idx, generation: gen}

	a.free(idx)
	a.alloc() // reoccupy the freed slot with a new generation

	if _, err := a.lookup(stale); err == nil {
		t.Fatal("lookup(stale handle) succeeded, want error")
	}
}

func TestPagedAllocatorLookupRejectsOutOfRangeIndex(t *testing.T) {
	a := newPagedAllocator(4)
	a.alloc()
	if _, err := a.lookup(handle{index: 9999, generation: 1}); err == nil {
		t.Fatal("lookup(out-of-range index) succeeded, want error")
	}
}

func TestPagedAllocatorLookupSucceedsForLiveHandle(t *testing.T) {
	a := newPagedAllocator(4)
	idx, gen := a.alloc()
	c, err := a.lookup(handle{index: idx, generation: gen})
	if err != nil {
		t.Fatalf("lookup(live handle) failed: %v", err)
	}
	if c.generation != gen {
		t.Fatalf("looked-up cell generation = %d, want %d", c.generation, gen)
	}
}

func TestPagedAllocatorFreeClearsPayload(t *testing.T) {
	a := newPagedAllocator(4)
	idx, gen := a.alloc()
	c := a.cellAt(idx)
	c.kind = kindBuffer
	c.buffer = &bufferData{size: 128}

	a.free(idx)

	c = a.cellAt(idx)
	if c.kind != kindFree || c.buffer != nil {
		t.Fatalf("cell payload not cleared after free: kind=%v buffer=%v", c.kind, c.buffer)
	}
	if c.generation != gen+1 {
		t.Fatalf("cell generation after free = %d, want %d", c.generation, gen+1)
	}
}
