package gpu

// Opaque typed handles. Each handle kind wraps an index into the resource manager's
// paged allocator (see paged_allocator.go) plus a generation counter so a stale handle
// from a freed slot cannot be mistaken for the slot's new occupant. Handles are created
// exclusively by the backend and freed by a matching Free call; using a handle after
// free is undefined per the data model invariants.

// handle is the common shape shared by every typed handle. index selects a slot in the
// resource manager's paged allocator; generation is bumped on every free so reused slots
// invalidate old handles.
type handle struct {
	index      uint32
	generation uint32
}

func (h handle) valid() bool { return h.generation != 0 }

// Buffer references a GPU buffer resource: size, usage flags, and allocation policy.
type Buffer struct{ h handle }

// Image references a GPU image resource: format, extent, mips, samples, usage flags.
type Image struct{ h handle }

// Sampler references a GPU sampler configuration.
type Sampler struct{ h handle }

// Shader references a shader module created from one or more WGSL/SPIR-V-equivalent
// sources, along with its reflected pipeline layout.
type Shader struct{ h handle }

// Pipeline references a graphics or compute pipeline plus its on-disk cache.
type Pipeline struct{ h handle }

// UniformSet references a descriptor set allocated from a shape-bucketed pool.
type UniformSet struct{ h handle }

// Fence is a CPU-observable GPU completion flag. Created signaled.
type Fence struct{ h handle }

// Semaphore orders GPU-side submission steps (acquire -> render -> present).
type Semaphore struct{ h handle }

// CommandPool is bound to a queue family; buffers allocated from it are primary.
type CommandPool struct{ h handle }

// CommandBuffer is a primary command buffer allocated from a CommandPool.
type CommandBuffer struct{ h handle }

// Swapchain references a platform surface-backed image chain.
type Swapchain struct{ h handle }

// RenderPass is kept for API-shape fidelity with drivers that prefer classical
// render passes. This backend never populates it; dynamic rendering is used
// exclusively (see gpu/commands.go).
type RenderPass struct{ h handle }

// FrameBuffer is kept for API-shape fidelity alongside RenderPass. Unused by this
// backend for the same reason.
type FrameBuffer struct{ h handle }

// IsValid reports whether the handle carries a non-zero generation, i.e. was produced
// by a successful create call. A zero-value handle (e.g. a struct literal) is never
// valid. It does not consult the allocator, so a handle that has since been freed
// still reports true; the owning manager's lookup rejects such a handle.
func (b Buffer) IsValid() bool        { return b.h.valid() }
func (i Image) IsValid() bool         { return i.h.valid() }
func (s Sampler) IsValid() bool       { return s.h.valid() }
func (s Shader) IsValid() bool        { return s.h.valid() }
func (p Pipeline) IsValid() bool      { return p.h.valid() }
func (u UniformSet) IsValid() bool    { return u.h.valid() }
func (f Fence) IsValid() bool         { return f.h.valid() }
func (s Semaphore) IsValid() bool     { return s.h.valid() }
func (c CommandPool) IsValid() bool   { return c.h.valid() }
func (c CommandBuffer) IsValid() bool { return c.h.valid() }
func (s Swapchain) IsValid() bool     { return s.h.valid() }
