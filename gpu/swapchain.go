package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// fenceData backs a CPU-observable completion flag. wgpu-native has no portable
// fence object exposed through this binding; §0.3 resolves this by making Fence a
// CPU-side wrapper whose signaled state is driven by Device.Poll completing the
// submission that owns it. Nothing outside this file observes a Fence as anything
// but an opaque handle with Wait/Reset/Status operations.
type fenceData struct {
	mu       sync.Mutex
	signaled bool
}

// semaphoreData backs the binary (non-timeline) GPU-side wait/signal primitive from
// §3. wgpu-native schedules submissions in queue order with implicit dependency
// tracking, so semaphores here are modeled as monotonic tokens: signal bumps a
// counter, wait blocks (via the owning device's Poll loop) until a signal it hasn't
// yet consumed is pending, then consumes exactly one.
type semaphoreData struct {
	token    uint64
	consumed uint64
}

type commandPoolData struct {
	recorder *Recorder
}

// swapchainData wraps a configured wgpu.Surface plus the bookkeeping §4.7 specifies:
// current extent, present mode, and the out-of-date flag a failed acquire sets.
type swapchainData struct {
	device      *Device
	width       int
	height      int
	presentMode wgpu.PresentMode
	outOfDate   bool
	current     *wgpu.Texture
}

// Synchronization implements §3's Fence and Semaphore entities plus §5's CommandPool
// grouping, all allocated from the same paged allocator as every other resource kind.
type Synchronization struct {
	device *Device
	alloc  *pagedAllocator
}

func NewSynchronization(device *Device) *Synchronization {
	return &Synchronization{device: device, alloc: newPagedAllocator(32)}
}

// CreateFence allocates a fence, optionally pre-signaled.
func (s *Synchronization) CreateFence(signaled bool) (Fence, error) {
	idx, gen := s.alloc.alloc()
	c := s.alloc.cellAt(idx)
	c.kind = kindFence
	c.fence = &fenceData{signaled: signaled}
	return Fence{h: handle{index: idx, generation: gen}}, nil
}

// SignalFence marks a fence signaled; called once the submission it tracks has been
// observed complete via the device's Poll loop.
func (s *Synchronization) SignalFence(f Fence) error {
	c, err := s.alloc.lookup(f.h)
	if err != nil {
		return err
	}
	if c.kind != kindFence {
		return fmt.Errorf("handle does not reference a fence: %w", ErrInvalidArgument)
	}
	c.fence.mu.Lock()
	c.fence.signaled = true
	c.fence.mu.Unlock()
	return nil
}

// ResetFence clears a fence's signaled state for reuse next frame.
func (s *Synchronization) ResetFence(f Fence) error {
	c, err := s.alloc.lookup(f.h)
	if err != nil {
		return err
	}
	if c.kind != kindFence {
		return fmt.Errorf("handle does not reference a fence: %w", ErrInvalidArgument)
	}
	c.fence.mu.Lock()
	c.fence.signaled = false
	c.fence.mu.Unlock()
	return nil
}

// WaitFence blocks, polling the device, until the fence is signaled or timeoutPolls
// polls have elapsed without progress.
func (s *Synchronization) WaitFence(f Fence, timeoutPolls int) error {
	c, err := s.alloc.lookup(f.h)
	if err != nil {
		return err
	}
	if c.kind != kindFence {
		return fmt.Errorf("handle does not reference a fence: %w", ErrInvalidArgument)
	}
	for i := 0; i < timeoutPolls || timeoutPolls <= 0; i++ {
		c.fence.mu.Lock()
		done := c.fence.signaled
		c.fence.mu.Unlock()
		if done {
			return nil
		}
		s.device.Device.Poll(true, nil)
	}
	return fmt.Errorf("fence wait timed out: %w", ErrFatal)
}

// FenceStatus reports whether a fence is currently signaled without blocking.
func (s *Synchronization) FenceStatus(f Fence) (bool, error) {
	c, err := s.alloc.lookup(f.h)
	if err != nil {
		return false, err
	}
	if c.kind != kindFence {
		return false, fmt.Errorf("handle does not reference a fence: %w", ErrInvalidArgument)
	}
	c.fence.mu.Lock()
	defer c.fence.mu.Unlock()
	return c.fence.signaled, nil
}

// CreateSemaphore allocates a binary semaphore, initially unsignaled (token 0).
func (s *Synchronization) CreateSemaphore() (Semaphore, error) {
	idx, gen := s.alloc.alloc()
	c := s.alloc.cellAt(idx)
	c.kind = kindSemaphore
	c.semaphore = &semaphoreData{}
	return Semaphore{h: handle{index: idx, generation: gen}}, nil
}

// SignalSemaphore bumps a semaphore's token, the GPU-side equivalent of a binary
// semaphore signal; each signal makes exactly one subsequent wait proceed, matching
// §3's "binary (non-timeline)" contract.
func (s *Synchronization) SignalSemaphore(sem Semaphore) error {
	c, err := s.alloc.lookup(sem.h)
	if err != nil {
		return err
	}
	if c.kind != kindSemaphore {
		return fmt.Errorf("handle does not reference a semaphore: %w", ErrInvalidArgument)
	}
	atomic.AddUint64(&c.semaphore.token, 1)
	return nil
}

// WaitSemaphore blocks, polling the device, until a signal past what this semaphore
// has already consumed is pending, then consumes exactly one — matching §3's binary
// "signaled by X, waited by Y" contract (one signal satisfies exactly one wait).
func (s *Synchronization) WaitSemaphore(sem Semaphore, timeoutPolls int) error {
	c, err := s.alloc.lookup(sem.h)
	if err != nil {
		return err
	}
	if c.kind != kindSemaphore {
		return fmt.Errorf("handle does not reference a semaphore: %w", ErrInvalidArgument)
	}
	for i := 0; i < timeoutPolls || timeoutPolls <= 0; i++ {
		if atomic.LoadUint64(&c.semaphore.token) > atomic.LoadUint64(&c.semaphore.consumed) {
			atomic.AddUint64(&c.semaphore.consumed, 1)
			return nil
		}
		s.device.Device.Poll(true, nil)
	}
	return fmt.Errorf("semaphore wait timed out: %w", ErrFatal)
}

// FreeFence and FreeSemaphore invalidate their handles.
func (s *Synchronization) FreeFence(f Fence) error {
	c, err := s.alloc.lookup(f.h)
	if err != nil {
		return err
	}
	if c.kind != kindFence {
		return fmt.Errorf("handle does not reference a fence: %w", ErrInvalidArgument)
	}
	s.alloc.free(f.h.index)
	return nil
}

func (s *Synchronization) FreeSemaphore(sem Semaphore) error {
	c, err := s.alloc.lookup(sem.h)
	if err != nil {
		return err
	}
	if c.kind != kindSemaphore {
		return fmt.Errorf("handle does not reference a semaphore: %w", ErrInvalidArgument)
	}
	s.alloc.free(sem.h.index)
	return nil
}

// SwapchainManager owns the surface-backed presentation cycle described in §4.7:
// create/resize/acquire/present, with the out-of-date condition recovered by a
// reconfigure-and-retry rather than propagated as a fatal error.
type SwapchainManager struct {
	device *Device
	alloc  *pagedAllocator
}

func NewSwapchainManager(device *Device) *SwapchainManager {
	return &SwapchainManager{device: device, alloc: newPagedAllocator(4)}
}

// CreateSwapchain configures the device's surface at the given extent and present
// mode and returns a Swapchain handle tracking that configuration.
func (m *SwapchainManager) CreateSwapchain(width, height int, presentMode wgpu.PresentMode) (Swapchain, error) {
	if err := m.device.ConfigureSurface(width, height, presentMode); err != nil {
		return Swapchain{}, err
	}
	idx, gen := m.alloc.alloc()
	c := m.alloc.cellAt(idx)
	c.kind = kindSwapchain
	c.swapchain = &swapchainData{device: m.device, width: width, height: height, presentMode: presentMode}
	return Swapchain{h: handle{index: idx, generation: gen}}, nil
}

func (m *SwapchainManager) swapchainInfo(sc Swapchain) (*swapchainData, error) {
	c, err := m.alloc.lookup(sc.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindSwapchain {
		return nil, fmt.Errorf("handle does not reference a swapchain: %w", ErrInvalidArgument)
	}
	return c.swapchain, nil
}

// Resize reconfigures the swapchain's surface at a new extent, used both for an
// explicit window-resize event and for out-of-date recovery.
func (m *SwapchainManager) Resize(sc Swapchain, width, height int) error {
	sd, err := m.swapchainInfo(sc)
	if err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("swapchain resize requires positive extent: %w", ErrInvalidArgument)
	}
	if err := m.device.ConfigureSurface(width, height, sd.presentMode); err != nil {
		return err
	}
	sd.width, sd.height = width, height
	sd.outOfDate = false
	return nil
}

// Acquire obtains the next presentable surface texture and view. On an out-of-date or
// lost surface, it marks the swapchain out of date and returns ErrOutOfDate; per
// §4.7, the caller is expected to Resize (even to the same extent) and retry rather
// than treat this as fatal.
func (m *SwapchainManager) Acquire(sc Swapchain) (*wgpu.TextureView, error) {
	sd, err := m.swapchainInfo(sc)
	if err != nil {
		return nil, err
	}
	if sd.outOfDate {
		return nil, fmt.Errorf("swapchain out of date: %w", ErrOutOfDate)
	}

	texture, err := m.device.Surface.GetCurrentTexture()
	if err != nil {
		sd.outOfDate = true
		return nil, fmt.Errorf("acquire surface texture: %w: %v", ErrOutOfDate, err)
	}

	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("create swapchain view: %w", ErrFatal)
	}
	sd.current = texture
	return view, nil
}

// Present schedules the currently acquired surface texture for display.
func (m *SwapchainManager) Present(sc Swapchain) error {
	sd, err := m.swapchainInfo(sc)
	if err != nil {
		return err
	}
	if sd.current == nil {
		return fmt.Errorf("present called with no acquired texture: %w", ErrInvalidArgument)
	}
	m.device.Surface.Present()
	sd.current.Release()
	sd.current = nil
	return nil
}

// Extent returns the swapchain's current configured width/height.
func (m *SwapchainManager) Extent(sc Swapchain) (int, int, error) {
	sd, err := m.swapchainInfo(sc)
	if err != nil {
		return 0, 0, err
	}
	return sd.width, sd.height, nil
}

// FreeSwapchain invalidates a swapchain handle. The underlying surface configuration
// is left to the device's own lifetime.
func (m *SwapchainManager) FreeSwapchain(sc Swapchain) error {
	_, err := m.swapchainInfo(sc)
	if err != nil {
		return err
	}
	m.alloc.free(sc.h.index)
	return nil
}

// CommandPools groups command buffer recorders the way §5 groups command pools: one
// pool per queue-kind/thread, each able to mint Recorders that share the same
// underlying device.
type CommandPools struct {
	device *Device
	alloc  *pagedAllocator
}

func NewCommandPools(device *Device) *CommandPools {
	return &CommandPools{device: device, alloc: newPagedAllocator(8)}
}

// CreatePool allocates a command pool and its single backing recorder.
func (p *CommandPools) CreatePool() (CommandPool, *Recorder, error) {
	recorder := NewRecorder(p.device)
	idx, gen := p.alloc.alloc()
	c := p.alloc.cellAt(idx)
	c.kind = kindCommandPool
	c.cmdPool = &commandPoolData{recorder: recorder}
	return CommandPool{h: handle{index: idx, generation: gen}}, recorder, nil
}

// FreePool invalidates a command pool handle.
func (p *CommandPools) FreePool(pool CommandPool) error {
	c, err := p.alloc.lookup(pool.h)
	if err != nil {
		return err
	}
	if c.kind != kindCommandPool {
		return fmt.Errorf("handle does not reference a command pool: %w", ErrInvalidArgument)
	}
	p.alloc.free(pool.h.index)
	return nil
}
