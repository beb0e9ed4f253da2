package gpu

import "fmt"

// resourceKind tags which variant a cell currently holds. Validated on free so a
// caller cannot free a buffer handle into a cell that actually holds an image.
type resourceKind uint8

const (
	kindFree resourceKind = iota
	kindBuffer
	kindImage
	kindSampler
	kindShader
	kindPipeline
	kindUniformSet
	kindFence
	kindSemaphore
	kindCommandPool
	kindCommandBuffer
	kindSwapchain
)

// cell is the tagged union (variant cell, per the spec's design note) stored in the
// paged allocator. Exactly one of the *Data fields is meaningful, selected by kind.
// Real Vulkan-style engines size one cell to the max of all resource struct sizes and
// reinterpret the bytes; Go has no portable reinterpret-cast, so the equivalent here is
// a cell wide enough to hold any one concrete resource struct by pointer, which keeps
// the "one pool, one free list" property the design note asks for without unsafe code.
type cell struct {
	kind       resourceKind
	generation uint32

	buffer     *bufferData
	image      *imageData
	sampler    *samplerData
	shader     *shaderData
	pipeline   *pipelineData
	uniformSet *uniformSetData
	fence      *fenceData
	semaphore  *semaphoreData
	cmdPool    *commandPoolData
	cmdBuffer  *commandBufferData
	swapchain  *swapchainData
}

// pagedAllocator hands out cells from fixed-size pages and recycles freed cells via a
// free list, so handle indices stay stable across churn and compaction never has to
// happen. One allocator backs every resource kind in the manager (§4.1: "memory for the
// bookkeeping structs comes from a paged allocator of variant cells").
type pagedAllocator struct {
	pageSize int
	pages    [][]cell
	freeList []uint32
}

func newPagedAllocator(pageSize int) *pagedAllocator {
	if pageSize <= 0 {
		pageSize = 256
	}
	return &pagedAllocator{pageSize: pageSize}
}

// alloc reserves a cell and returns its index and generation. free already bumped the
// generation of any recycled cell, so a fresh handle for a reused slot never collides
// with one issued before the free.
func (a *pagedAllocator) alloc() (index uint32, generation uint32) {
	if len(a.freeList) > 0 {
		index = a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		c := a.cellAt(index)
		return index, c.generation
	}

	page := len(a.pages)
	if page == 0 || len(a.pages[page-1]) == a.pageSize {
		a.pages = append(a.pages, make([]cell, 0, a.pageSize))
		page = len(a.pages)
	}
	last := page - 1
	a.pages[last] = append(a.pages[last], cell{generation: 1})
	index = uint32(last*a.pageSize + len(a.pages[last]) - 1)
	return index, 1
}

// free returns a cell to the free list after clearing its payload and bumping its
// generation, so any handle issued before this free (including one looked up in the
// window before the slot is reallocated) fails lookup's generation check immediately.
func (a *pagedAllocator) free(index uint32) {
	c := a.cellAt(index)
	*c = cell{generation: c.generation + 1}
	a.freeList = append(a.freeList, index)
}

func (a *pagedAllocator) cellAt(index uint32) *cell {
	page := int(index) / a.pageSize
	slot := int(index) % a.pageSize
	return &a.pages[page][slot]
}

// lookup validates a handle against the live cell and returns it, or an error if the
// handle is stale (freed) or out of range.
func (a *pagedAllocator) lookup(h handle) (*cell, error) {
	if !h.valid() {
		return nil, fmt.Errorf("gpu: zero-value handle: %w", ErrHandleFreed)
	}
	page := int(h.index) / a.pageSize
	if page < 0 || page >= len(a.pages) {
		return nil, fmt.Errorf("gpu: handle index %d out of range: %w", h.index, ErrHandleFreed)
	}
	slot := int(h.index) % a.pageSize
	if slot >= len(a.pages[page]) {
		return nil, fmt.Errorf("gpu: handle index %d out of range: %w", h.index, ErrHandleFreed)
	}
	c := &a.pages[page][slot]
	if c.generation != h.generation {
		return nil, fmt.Errorf("gpu: stale handle (slot reused): %w", ErrHandleFreed)
	}
	return c, nil
}
