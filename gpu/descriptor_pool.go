package gpu

import (
	"fmt"
	"sync"
)

// DescriptorType enumerates the binding kinds a uniform set's shape key counts, per
// §4.3's fixed vector of {sampler, sampler+texture, texture, storage-image,
// uniform-buffer, storage-buffer, input-attachment}.
type DescriptorType int

const (
	DescriptorSampler DescriptorType = iota
	DescriptorSamplerTexture
	DescriptorTexture
	DescriptorStorageImage
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorInputAttachment
	descriptorTypeCount
)

// ShapeKey is the fixed-length counter vector used to bucket descriptor pool
// allocations. Two sets share a bucket iff their vectors are element-wise equal
// (§4.3; §9 design note: compare by byte equality, never hash floats or strings).
type ShapeKey [descriptorTypeCount]uint16

// less implements a total order over shape keys (any consistent order works; §4.3
// says "no stability is required across runs"). The bucket map itself is a Go map
// keyed by value and does not use it.
func (k ShapeKey) less(o ShapeKey) bool {
	for i := range k {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return false
}

const (
	// DefaultMaxDescriptorsPerPool bounds how many sets of one shape a single pool
	// holds before a new pool is created for that shape (§4.3).
	DefaultMaxDescriptorsPerPool = 10
	// DefaultMaxSetsPerTypeInPool bounds the descriptor count of one type that a
	// single shape key may request; Allocate rejects a larger count (§4.3).
	DefaultMaxSetsPerTypeInPool = 65535
)

// descriptorPool is one underlying driver bind-group-layout bucket sized for exactly
// MaxDescriptorsPerPool sets of a given shape. WebGPU has no VkDescriptorPool
// equivalent with a fixed descriptor budget — bind groups are created individually
// against a layout with no pool object in between. This allocator still tracks pools
// as a bookkeeping concept (liveCount, the shape-bucket map) so the refcounting
// invariant in §3/§8 property 2 holds exactly as specified; "destroying a pool" here
// means dropping the bookkeeping entry, since there is no underlying driver object to
// release.
type descriptorPool struct {
	id        uint64
	liveCount int
}

// DescriptorPoolAllocator implements §4.3: bucket uniform-set allocations by shape,
// reference-count pools for safe reuse, and maintain the invariant that for every
// shape key the sum of live counts across its pools equals the number of live
// UniformSets with that shape.
type DescriptorPoolAllocator struct {
	mu               sync.Mutex
	buckets          map[ShapeKey][]*descriptorPool
	maxPerPool        int
	maxSetsPerType    int
	nextPoolID       uint64
}

// NewDescriptorPoolAllocator constructs an allocator with the given caps. Passing 0
// for either selects the package defaults.
func NewDescriptorPoolAllocator(maxDescriptorsPerPool, maxSetsPerTypeInPool int) *DescriptorPoolAllocator {
	if maxDescriptorsPerPool <= 0 {
		maxDescriptorsPerPool = DefaultMaxDescriptorsPerPool
	}
	if maxSetsPerTypeInPool <= 0 {
		maxSetsPerTypeInPool = DefaultMaxSetsPerTypeInPool
	}
	return &DescriptorPoolAllocator{
		buckets:        make(map[ShapeKey][]*descriptorPool),
		maxPerPool:     maxDescriptorsPerPool,
		maxSetsPerType: maxSetsPerTypeInPool,
	}
}

// Allocate finds or creates a pool for the given shape with spare capacity,
// increments its live count, and returns an opaque pool reference the caller stores
// alongside the UniformSet for later Free. Mirrors
// descriptor_set_pool_find_or_create in the original engine's vk_descriptors.cpp.
func (a *DescriptorPoolAllocator) Allocate(shape ShapeKey) (poolRef uint64, err error) {
	for t, count := range shape {
		if int(count) > a.maxSetsPerType {
			return 0, fmt.Errorf("descriptor type %d count %d exceeds per-pool cap %d: %w", t, count, a.maxSetsPerType, ErrCapacityExceeded)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pools := a.buckets[shape]
	for _, p := range pools {
		if p.liveCount < a.maxPerPool {
			p.liveCount++
			return p.id, nil
		}
	}

	a.nextPoolID++
	p := &descriptorPool{id: a.nextPoolID, liveCount: 1}
	a.buckets[shape] = append(pools, p)
	return p.id, nil
}

// Free decrements the given pool's live count; at zero the pool's bookkeeping entry
// is removed, and if its shape bucket becomes empty the bucket itself is erased.
// Mirrors descriptor_set_pool_unreference.
func (a *DescriptorPoolAllocator) Free(shape ShapeKey, poolRef uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pools := a.buckets[shape]
	for i, p := range pools {
		if p.id != poolRef {
			continue
		}
		p.liveCount--
		if p.liveCount <= 0 {
			pools = append(pools[:i], pools[i+1:]...)
			if len(pools) == 0 {
				delete(a.buckets, shape)
			} else {
				a.buckets[shape] = pools
			}
		}
		return nil
	}
	return fmt.Errorf("pool %d not found for shape %v: %w", poolRef, shape, ErrInvalidArgument)
}

// LiveCount returns the total number of live sets across all pools under shape, the
// quantity property 2 (§8) requires to equal the number of live UniformSets of that
// shape.
func (a *DescriptorPoolAllocator) LiveCount(shape ShapeKey) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, p := range a.buckets[shape] {
		total += p.liveCount
	}
	return total
}

// BucketCount returns the number of distinct shape buckets currently tracked, used by
// tests asserting bucket erasure (S2).
func (a *DescriptorPoolAllocator) BucketCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buckets)
}
