package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BufferUsage mirrors the usage bit subset named in §3: transfer src/dst, uniform,
// storage, index, vertex, indirect, and shader-device-address. It is a distinct type
// from wgpu.BufferUsage so callers never need to import wgpu directly to create a
// buffer, matching the "opaque handle" contract.
type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageIndirect
	BufferUsageShaderDeviceAddress
)

func (u BufferUsage) wgpu() wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&BufferUsageTransferSrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&BufferUsageTransferDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&BufferUsageUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&BufferUsageStorage != 0 {
		out |= wgpu.BufferUsageStorage
	}
	if u&BufferUsageIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&BufferUsageVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&BufferUsageIndirect != 0 {
		out |= wgpu.BufferUsageIndirect
	}
	// BufferUsageShaderDeviceAddress has no wgpu equivalent; it only gates whether
	// allocDeviceAddress is allowed to hand out a token for this buffer.
	return out
}

// AllocationPolicy selects whether a buffer's memory is CPU-visible and mapped, or
// GPU-only.
type AllocationPolicy int

const (
	// AllocationGPUOnly places the buffer in device-local memory; Map fails.
	AllocationGPUOnly AllocationPolicy = iota
	// AllocationCPUVisible creates a host-mappable buffer; Map returns a writable
	// region.
	AllocationCPUVisible
)

type bufferData struct {
	native        *wgpu.Buffer
	size          uint64
	usage         BufferUsage
	policy        AllocationPolicy
	deviceAddress uint64
	hasAddress    bool
	mapped        bool
}

type imageData struct {
	native       *wgpu.Texture
	view         *wgpu.TextureView
	format       wgpu.TextureFormat
	width        uint32
	height       uint32
	mipLevels    uint32
	sampleCount  uint32
	usage        wgpu.TextureUsage
	mipmapped    bool
}

type samplerData struct {
	native *wgpu.Sampler
}

// ResourceManager implements the device-agnostic resource manager described in §4.1:
// typed opaque handles for buffers, images, and samplers, backed by a paged allocator
// of variant cells. Every Create returns a handle; every Free takes ownership and
// invalidates it. Operations on different handles are safe to call concurrently;
// operations on the same handle are not (§4.1 contract).
type ResourceManager struct {
	device *Device
	alloc  *pagedAllocator
}

// NewResourceManager constructs a resource manager bound to the given device.
func NewResourceManager(device *Device) *ResourceManager {
	return &ResourceManager{device: device, alloc: newPagedAllocator(256)}
}

// CreateBuffer allocates size bytes of GPU memory with the given usage and allocation
// policy. Zero-size creation fails with ErrInvalidArgument (§8 boundary behavior).
func (rm *ResourceManager) CreateBuffer(size uint64, usage BufferUsage, policy AllocationPolicy) (Buffer, error) {
	if size == 0 {
		return Buffer{}, fmt.Errorf("buffer size must be non-zero: %w", ErrInvalidArgument)
	}

	wu := usage.wgpu()
	if policy == AllocationCPUVisible {
		wu |= wgpu.BufferUsageMapWrite | wgpu.BufferUsageMapRead
	}

	native, err := rm.device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "buffer",
		Size:             size,
		Usage:            wu,
		MappedAtCreation: false,
	})
	if err != nil {
		return Buffer{}, fmt.Errorf("create buffer: %w", ErrAllocationFailed)
	}

	bd := &bufferData{native: native, size: size, usage: usage, policy: policy}
	if usage&BufferUsageShaderDeviceAddress != 0 {
		bd.deviceAddress = rm.device.allocDeviceAddress()
		bd.hasAddress = true
	}

	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindBuffer
	c.buffer = bd
	return Buffer{h: handle{index: idx, generation: gen}}, nil
}

// FreeBuffer releases a buffer's GPU memory and invalidates the handle. The caller
// must ensure no in-flight command references the buffer (§3 invariant).
func (rm *ResourceManager) FreeBuffer(b Buffer) error {
	c, err := rm.alloc.lookup(b.h)
	if err != nil {
		return err
	}
	if c.kind != kindBuffer {
		return fmt.Errorf("handle does not reference a buffer: %w", ErrInvalidArgument)
	}
	c.buffer.native.Release()
	rm.alloc.free(b.h.index)
	return nil
}

// BufferGetDeviceAddress returns the opaque device-address token for a buffer created
// with BufferUsageShaderDeviceAddress. Fails for buffers created without that bit.
func (rm *ResourceManager) BufferGetDeviceAddress(b Buffer) (uint64, error) {
	c, err := rm.alloc.lookup(b.h)
	if err != nil {
		return 0, err
	}
	if c.kind != kindBuffer {
		return 0, fmt.Errorf("handle does not reference a buffer: %w", ErrInvalidArgument)
	}
	if !c.buffer.hasAddress {
		return 0, fmt.Errorf("buffer was not created with device-address usage: %w", ErrInvalidArgument)
	}
	return c.buffer.deviceAddress, nil
}

// MapBuffer returns a writable region for a CPU-visible buffer. GPU-only buffers
// return an error, matching §3's "GPU-only buffers fail to map."
func (rm *ResourceManager) MapBuffer(b Buffer) ([]byte, error) {
	c, err := rm.alloc.lookup(b.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindBuffer {
		return nil, fmt.Errorf("handle does not reference a buffer: %w", ErrInvalidArgument)
	}
	if c.buffer.policy != AllocationCPUVisible {
		return nil, fmt.Errorf("buffer is GPU-only: %w", ErrInvalidArgument)
	}
	if err := c.buffer.native.MapAsync(wgpu.MapModeWrite|wgpu.MapModeRead, 0, c.buffer.size, func(wgpu.BufferMapAsyncStatus) {}); err != nil {
		return nil, fmt.Errorf("map buffer: %w", ErrAllocationFailed)
	}
	rm.device.Device.Poll(true, nil)
	region := c.buffer.native.GetMappedRange(0, uint(c.buffer.size))
	c.buffer.mapped = true
	return region, nil
}

// UnmapBuffer releases a region previously returned by MapBuffer.
func (rm *ResourceManager) UnmapBuffer(b Buffer) error {
	c, err := rm.alloc.lookup(b.h)
	if err != nil {
		return err
	}
	if c.kind != kindBuffer || !c.buffer.mapped {
		return fmt.Errorf("buffer is not mapped: %w", ErrInvalidArgument)
	}
	c.buffer.native.Unmap()
	c.buffer.mapped = false
	return nil
}

// ImageUsage mirrors §3's image usage flag subset.
type ImageUsage uint32

const (
	ImageUsageTransferSrc ImageUsage = 1 << iota
	ImageUsageTransferDst
	ImageUsageSampled
	ImageUsageStorage
	ImageUsageColorAttachment
	ImageUsageDepthStencilAttachment
)

func (u ImageUsage) wgpu() wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&ImageUsageTransferSrc != 0 {
		out |= wgpu.TextureUsageCopySrc
	}
	if u&ImageUsageTransferDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&ImageUsageSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&ImageUsageStorage != 0 {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u&ImageUsageColorAttachment != 0 || u&ImageUsageDepthStencilAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

// ImageCreateInfo describes a 2D image to create. When Data is non-nil, CreateImage
// additionally stages and immediate-submits the upload (and mipmap generation, if
// Mipmapped is set) per §4.1's dual contract.
type ImageCreateInfo struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	SampleCount uint32
	Usage       ImageUsage
	Mipmapped   bool
	Data        []byte
}

func mipLevelsFor(width, height uint32) uint32 {
	levels := uint32(1)
	for width > 1 || height > 1 {
		width = max32(1, width/2)
		height = max32(1, height/2)
		levels++
	}
	return levels
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// CreateImage allocates an image per ImageCreateInfo. With Data == nil it allocates an
// empty image; with Data present it also stages, uploads, (optionally) generates
// mipmaps, and leaves the image in shader-read-only layout, exactly as §4.1 specifies.
// The immediate-submit step is performed by the caller-supplied Uploader, since image
// creation itself has no dependency on the immediate-submit channel's internals.
func (rm *ResourceManager) CreateImage(info ImageCreateInfo, uploader Uploader) (Image, error) {
	if info.Width == 0 || info.Height == 0 {
		return Image{}, fmt.Errorf("image extent must be non-zero: %w", ErrInvalidArgument)
	}
	sampleCount := info.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	mipLevels := uint32(1)
	if info.Mipmapped {
		mipLevels = mipLevelsFor(info.Width, info.Height)
	}

	usage := info.Usage.wgpu()
	if info.Data != nil {
		usage |= wgpu.TextureUsageCopyDst | wgpu.TextureUsageTextureBinding
	}

	native, err := rm.device.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "image",
		Size: wgpu.Extent3D{
			Width:              info.Width,
			Height:             info.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: mipLevels,
		SampleCount:   sampleCount,
		Dimension:     wgpu.TextureDimension2D,
		Format:        info.Format,
		Usage:         usage,
	})
	if err != nil {
		return Image{}, fmt.Errorf("create image: %w", ErrAllocationFailed)
	}
	view, err := native.CreateView(nil)
	if err != nil {
		native.Release()
		return Image{}, fmt.Errorf("create image view: %w", ErrAllocationFailed)
	}

	id := &imageData{
		native:      native,
		view:        view,
		format:      info.Format,
		width:       info.Width,
		height:      info.Height,
		mipLevels:   mipLevels,
		sampleCount: sampleCount,
		usage:       usage,
		mipmapped:   info.Mipmapped,
	}

	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindImage
	c.image = id
	img := Image{h: handle{index: idx, generation: gen}}

	if info.Data != nil && uploader != nil {
		if err := uploader.UploadImage(rm, img, info.Data); err != nil {
			if freeErr := rm.FreeImage(img); freeErr != nil {
				return Image{}, fmt.Errorf("%v (cleanup also failed: %w)", err, freeErr)
			}
			return Image{}, err
		}
	}

	return img, nil
}

// FreeImage releases an image's GPU memory and invalidates the handle.
func (rm *ResourceManager) FreeImage(i Image) error {
	c, err := rm.alloc.lookup(i.h)
	if err != nil {
		return err
	}
	if c.kind != kindImage {
		return fmt.Errorf("handle does not reference an image: %w", ErrInvalidArgument)
	}
	c.image.view.Release()
	c.image.native.Release()
	rm.alloc.free(i.h.index)
	return nil
}

// imageInfo exposes internal image bookkeeping to other gpu/ files (commands,
// texture helpers) without widening the public API surface.
func (rm *ResourceManager) imageInfo(i Image) (*imageData, error) {
	c, err := rm.alloc.lookup(i.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindImage {
		return nil, fmt.Errorf("handle does not reference an image: %w", ErrInvalidArgument)
	}
	return c.image, nil
}

func (rm *ResourceManager) bufferInfo(b Buffer) (*bufferData, error) {
	c, err := rm.alloc.lookup(b.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindBuffer {
		return nil, fmt.Errorf("handle does not reference a buffer: %w", ErrInvalidArgument)
	}
	return c.buffer, nil
}

// SamplerCreateInfo mirrors §3's sampler description: filtering, wrap modes per axis,
// and an optional mip range.
type SamplerCreateInfo struct {
	MinFilter, MagFilter wgpu.FilterMode
	MipmapFilter         wgpu.MipmapFilterMode
	AddressModeU         wgpu.AddressMode
	AddressModeV         wgpu.AddressMode
	AddressModeW         wgpu.AddressMode
	LodMinClamp          float32
	LodMaxClamp          float32
}

// CreateSampler allocates a sampler from the given configuration.
func (rm *ResourceManager) CreateSampler(info SamplerCreateInfo) (Sampler, error) {
	native, err := rm.device.Device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  info.AddressModeU,
		AddressModeV:  info.AddressModeV,
		AddressModeW:  info.AddressModeW,
		MagFilter:     info.MagFilter,
		MinFilter:     info.MinFilter,
		MipmapFilter:  info.MipmapFilter,
		LodMinClamp:   info.LodMinClamp,
		LodMaxClamp:   info.LodMaxClamp,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return Sampler{}, fmt.Errorf("create sampler: %w", ErrAllocationFailed)
	}
	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindSampler
	c.sampler = &samplerData{native: native}
	return Sampler{h: handle{index: idx, generation: gen}}, nil
}

// FreeSampler releases a sampler and invalidates the handle.
func (rm *ResourceManager) FreeSampler(s Sampler) error {
	c, err := rm.alloc.lookup(s.h)
	if err != nil {
		return err
	}
	if c.kind != kindSampler {
		return fmt.Errorf("handle does not reference a sampler: %w", ErrInvalidArgument)
	}
	c.sampler.native.Release()
	rm.alloc.free(s.h.index)
	return nil
}

func (rm *ResourceManager) samplerInfo(s Sampler) (*samplerData, error) {
	c, err := rm.alloc.lookup(s.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindSampler {
		return nil, fmt.Errorf("handle does not reference a sampler: %w", ErrInvalidArgument)
	}
	return c.sampler, nil
}

// Uploader performs the staging-buffer + immediate-submit sequence CreateImage needs
// when called with initial CPU data. Implemented by *ImmediateChannel (see
// immediate.go) to avoid an import cycle between resources.go and immediate.go.
type Uploader interface {
	UploadImage(rm *ResourceManager, img Image, data []byte) error
}
