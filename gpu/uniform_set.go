package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// UniformType tags a single ShaderUniform entry with the descriptor kind it binds,
// per the table in §4.4.
type UniformType int

const (
	UniformSampler UniformType = iota
	UniformSamplerTexture
	UniformTexture
	UniformStorageImage
	UniformUniformBuffer
	UniformStorageBuffer
	UniformInputAttachment
)

func (t UniformType) descriptorType() DescriptorType { return DescriptorType(t) }

// ShaderUniform is one binding entry supplied to CreateUniformSet: a type tag plus
// the resource handles it binds, per the table in §4.4 (e.g. sampler+texture expects
// paired [sampler, image] handles). Dynamic marks a UniformUniformBuffer/
// UniformStorageBuffer entry as bound with a per-bind dynamic offset (§4.5's
// bind_uniform_sets dynamic-offset form), letting one buffer serve many draws at
// different byte offsets instead of requiring one bind group per draw.
type ShaderUniform struct {
	Type     UniformType
	Samplers []Sampler
	Images   []Image
	Buffers  []Buffer
	Dynamic  bool
	// Size overrides the bound range for a Dynamic buffer entry (the per-bind
	// window a dynamic offset slides over); ignored for non-dynamic entries, which
	// always bind the buffer's full size.
	Size uint64
}

type uniformSetData struct {
	shape     ShapeKey
	poolRef   uint64
	bindGroup *wgpu.BindGroup
	layout    *wgpu.BindGroupLayout
	setIndex  int
}

// shapeKeyOf computes the fixed-length shape vector for a list of uniforms by
// counting how many entries fall under each descriptor type.
func shapeKeyOf(uniforms []ShaderUniform) ShapeKey {
	var shape ShapeKey
	for _, u := range uniforms {
		n := len(u.Samplers)
		if len(u.Images) > n {
			n = len(u.Images)
		}
		if len(u.Buffers) > n {
			n = len(u.Buffers)
		}
		if n == 0 {
			n = 1
		}
		shape[u.Type.descriptorType()] += uint16(n)
	}
	return shape
}

// UniformSetFactory creates and frees UniformSets against the descriptor pool
// allocator and resource manager, implementing §4.4's creation algorithm.
type UniformSetFactory struct {
	device *Device
	rm     *ResourceManager
	pools  *DescriptorPoolAllocator
	alloc  *pagedAllocator
}

// NewUniformSetFactory constructs a factory bound to the given device, resource
// manager, and descriptor pool allocator.
func NewUniformSetFactory(device *Device, rm *ResourceManager, pools *DescriptorPoolAllocator) *UniformSetFactory {
	return &UniformSetFactory{device: device, rm: rm, pools: pools, alloc: newPagedAllocator(64)}
}

// CreateUniformSet computes the shape key from uniforms, allocates from the
// descriptor pool allocator, builds one write-descriptor (wgpu BindGroupEntry) per
// entry, and creates the set in one driver call, exactly per §4.4's steps. setIndex
// identifies which shader set index this uniform set corresponds to, for bind
// ordering only; it does not affect the shape key.
func (f *UniformSetFactory) CreateUniformSet(setIndex int, uniforms []ShaderUniform, stages wgpu.ShaderStage) (UniformSet, error) {
	shape := shapeKeyOf(uniforms)

	poolRef, err := f.pools.Allocate(shape)
	if err != nil {
		return UniformSet{}, err
	}

	layout, err := f.device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "uniform set layout",
		Entries: layoutEntriesForUniforms(uniforms, stages),
	})
	if err != nil {
		if rollbackErr := f.pools.Free(shape, poolRef); rollbackErr != nil {
			return UniformSet{}, fmt.Errorf("%v (rollback also failed: %w)", err, rollbackErr)
		}
		return UniformSet{}, fmt.Errorf("create bind group layout: %w", ErrAllocationFailed)
	}

	entries, err := f.buildEntries(uniforms)
	if err != nil {
		_ = f.pools.Free(shape, poolRef)
		return UniformSet{}, err
	}

	bindGroup, err := f.device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "uniform set",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		if rollbackErr := f.pools.Free(shape, poolRef); rollbackErr != nil {
			return UniformSet{}, fmt.Errorf("%v (rollback also failed: %w)", err, rollbackErr)
		}
		return UniformSet{}, fmt.Errorf("create bind group: %w", ErrAllocationFailed)
	}

	usd := &uniformSetData{shape: shape, poolRef: poolRef, bindGroup: bindGroup, layout: layout, setIndex: setIndex}
	idx, gen := f.alloc.alloc()
	c := f.alloc.cellAt(idx)
	c.kind = kindUniformSet
	c.uniformSet = usd
	return UniformSet{h: handle{index: idx, generation: gen}}, nil
}

// layoutEntriesForUniforms builds the bind group layout in exactly the binding order
// buildEntries assigns resources in, so the two can never diverge (§4.4). A
// UniformSamplerTexture uniform consumes two consecutive bindings — texture then
// sampler, matching the declaration order material definitions' WGSL sources use for
// a texture slot — since, unlike Vulkan's combined image sampler, WebGPU has no
// single binding that carries both a sampler and a texture view.
func layoutEntriesForUniforms(uniforms []ShaderUniform, stages wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(uniforms))
	binding := uint32(0)
	for _, u := range uniforms {
		switch u.Type {
		case UniformUniformBuffer:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding: binding, Visibility: stages,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, HasDynamicOffset: u.Dynamic},
			})
			binding++
		case UniformStorageBuffer:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding: binding, Visibility: stages,
				Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage, HasDynamicOffset: u.Dynamic},
			})
			binding++
		case UniformSampler:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding: binding, Visibility: stages,
				Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			})
			binding++
		case UniformSamplerTexture:
			entries = append(entries,
				wgpu.BindGroupLayoutEntry{
					Binding: binding, Visibility: stages,
					Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D},
				},
				wgpu.BindGroupLayoutEntry{
					Binding: binding + 1, Visibility: stages,
					Sampler: wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
				},
			)
			binding += 2
		case UniformTexture, UniformInputAttachment:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding: binding, Visibility: stages,
				Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D},
			})
			binding++
		case UniformStorageImage:
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding: binding, Visibility: stages,
				StorageTexture: wgpu.StorageTextureBindingLayout{Access: wgpu.StorageTextureAccessWriteOnly, ViewDimension: wgpu.TextureViewDimension2D},
			})
			binding++
		}
	}
	return entries
}

func (f *UniformSetFactory) buildEntries(uniforms []ShaderUniform) ([]wgpu.BindGroupEntry, error) {
	entries := make([]wgpu.BindGroupEntry, 0, len(uniforms))
	binding := uint32(0)
	for _, u := range uniforms {
		switch u.Type {
		case UniformUniformBuffer, UniformStorageBuffer:
			if len(u.Buffers) == 0 {
				return nil, fmt.Errorf("uniform entry missing buffer handle: %w", ErrInvalidArgument)
			}
			bd, err := f.rm.bufferInfo(u.Buffers[0])
			if err != nil {
				return nil, err
			}
			size := bd.size
			if u.Dynamic && u.Size > 0 {
				size = u.Size
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Buffer: bd.native, Size: size})
			binding++
		case UniformSampler:
			if len(u.Samplers) == 0 {
				return nil, fmt.Errorf("uniform entry missing sampler handle: %w", ErrInvalidArgument)
			}
			sd, err := f.rm.samplerInfo(u.Samplers[0])
			if err != nil {
				return nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Sampler: sd.native})
			binding++
		case UniformSamplerTexture:
			if len(u.Images) == 0 || len(u.Samplers) == 0 {
				return nil, fmt.Errorf("sampler+texture entry missing handles: %w", ErrInvalidArgument)
			}
			sd, err := f.rm.samplerInfo(u.Samplers[0])
			if err != nil {
				return nil, err
			}
			id, err := f.rm.imageInfo(u.Images[0])
			if err != nil {
				return nil, err
			}
			entries = append(entries,
				wgpu.BindGroupEntry{Binding: binding, TextureView: id.view},
				wgpu.BindGroupEntry{Binding: binding + 1, Sampler: sd.native},
			)
			binding += 2
		case UniformTexture, UniformStorageImage, UniformInputAttachment:
			if len(u.Images) == 0 {
				return nil, fmt.Errorf("image uniform entry missing handle: %w", ErrInvalidArgument)
			}
			id, err := f.rm.imageInfo(u.Images[0])
			if err != nil {
				return nil, err
			}
			entries = append(entries, wgpu.BindGroupEntry{Binding: binding, TextureView: id.view})
			binding++
		}
	}
	return entries, nil
}

// FreeUniformSet decrements the owning pool's refcount and invalidates the handle.
func (f *UniformSetFactory) FreeUniformSet(set UniformSet) error {
	c, err := f.alloc.lookup(set.h)
	if err != nil {
		return err
	}
	if c.kind != kindUniformSet {
		return fmt.Errorf("handle does not reference a uniform set: %w", ErrInvalidArgument)
	}
	if err := f.pools.Free(c.uniformSet.shape, c.uniformSet.poolRef); err != nil {
		return err
	}
	c.uniformSet.bindGroup.Release()
	c.uniformSet.layout.Release()
	f.alloc.free(set.h.index)
	return nil
}

// Rebuild recreates the bind group for an existing set with new uniforms, used to
// update texture bindings after initial creation. wgpu bind groups are immutable
// once built, so this frees and reallocates against the same shape key rather than
// patching bindings in place (SPEC_FULL.md §0.7), preserving the pool-refcount
// invariant across the swap.
func (f *UniformSetFactory) Rebuild(set UniformSet, uniforms []ShaderUniform, stages wgpu.ShaderStage) (UniformSet, error) {
	c, err := f.alloc.lookup(set.h)
	if err != nil {
		return UniformSet{}, err
	}
	setIndex := c.uniformSet.setIndex
	if err := f.FreeUniformSet(set); err != nil {
		return UniformSet{}, err
	}
	return f.CreateUniformSet(setIndex, uniforms, stages)
}

func (f *UniformSetFactory) uniformSetInfo(set UniformSet) (*uniformSetData, error) {
	c, err := f.alloc.lookup(set.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindUniformSet {
		return nil, fmt.Errorf("handle does not reference a uniform set: %w", ErrInvalidArgument)
	}
	return c.uniformSet, nil
}
