package gpu

import "testing"

func shapeWith(t DescriptorType, n uint16) ShapeKey {
	var k ShapeKey
	k[t] = n
	return k
}

func TestDescriptorPoolAllocatorReusesPoolUnderCapacity(t *testing.T) {
	a := NewDescriptorPoolAllocator(4, 0)
	shape := shapeWith(DescriptorUniformBuffer, 1)

	ref1, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	ref2, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ref1 != ref2 {
		t.Fatalf("second allocation under capacity got a different pool: %d != %d", ref1, ref2)
	}
	if got := a.LiveCount(shape); got != 2 {
		t.Fatalf("LiveCount = %d, want 2", got)
	}
}

func TestDescriptorPoolAllocatorCreatesNewPoolWhenFull(t *testing.T) {
	a := NewDescriptorPoolAllocator(1, 0)
	shape := shapeWith(DescriptorSampler, 1)

	ref1, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	ref2, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if ref1 == ref2 {
		t.Fatal("allocation past pool capacity reused the same pool")
	}
	if got := a.LiveCount(shape); got != 2 {
		t.Fatalf("LiveCount = %d, want 2", got)
	}
}

func TestDescriptorPoolAllocatorRejectsCountExceedingMaxSetsPerType(t *testing.T) {
	a := NewDescriptorPoolAllocator(0, 4)
	shape := shapeWith(DescriptorStorageBuffer, 5)
	if _, err := a.Allocate(shape); err == nil {
		t.Fatal("Allocate with count exceeding maxSetsPerType succeeded, want error")
	}
}

func TestDescriptorPoolAllocatorFreeErasesEmptyBucket(t *testing.T) {
	a := NewDescriptorPoolAllocator(4, 0)
	shape := shapeWith(DescriptorTexture, 1)

	ref, err := a.Allocate(shape)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got := a.BucketCount(); got != 1 {
		t.Fatalf("BucketCount after allocate = %d, want 1", got)
	}

	if err := a.Free(shape, ref); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if got := a.BucketCount(); got != 0 {
		t.Fatalf("BucketCount after last free = %d, want 0", got)
	}
	if got := a.LiveCount(shape); got != 0 {
		t.Fatalf("LiveCount after last free = %d, want 0", got)
	}
}

func TestDescriptorPoolAllocatorFreeUnknownPoolReturnsError(t *testing.T) {
	a := NewDescriptorPoolAllocator(4, 0)
	shape := shapeWith(DescriptorTexture, 1)
	if err := a.Free(shape, 999); err == nil {
		t.Fatal("Free of unknown pool reference succeeded, want error")
	}
}

func TestShapeKeyDistinguishesDifferentCounterVectors(t *testing.T) {
	a := NewDescriptorPoolAllocator(4, 0)
	s1 := shapeWith(DescriptorUniformBuffer, 1)
	s2 := shapeWith(DescriptorUniformBuffer, 2)

	if _, err := a.Allocate(s1); err != nil {
		t.Fatalf("Allocate(s1): %v", err)
	}
	if _, err := a.Allocate(s2); err != nil {
		t.Fatalf("Allocate(s2): %v", err)
	}
	if got := a.BucketCount(); got != 2 {
		t.Fatalf("BucketCount = %d, want 2 distinct shape buckets", got)
	}
}

func TestShapeKeyLessIsAStrictTotalOrder(t *testing.T) {
	a := shapeWith(DescriptorSampler, 1)
	b := shapeWith(DescriptorSampler, 2)

	if !a.less(b) {
		t.Fatal("a.less(b) = false, want true for a < b on the first differing element")
	}
	if b.less(a) == a.less(b) {
		t.Fatal("less is not antisymmetric")
	}
	if a.less(a) {
		t.Fatal("a.less(a) = true, want false (irreflexive)")
	}
}
