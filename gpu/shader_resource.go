package gpu

import (
	"fmt"

	gshader "github.com/gl1tchs/glitch/gpu/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// shaderData is the §3 Shader entity: a module created from one or more sources,
// owning the reflected descriptor-set layouts (one per set index appearing in the
// source), the pipeline layout built from them, the vertex input list, the
// push-constant stage mask, and the content hash used to name pipeline caches.
type shaderData struct {
	modules map[gshader.Stage]*wgpu.ShaderModule
	entries map[gshader.Stage]string

	reflection *gshader.Reflection
	setLayouts map[int]*wgpu.BindGroupLayout
	layout     *wgpu.PipelineLayout
}

// CreateShader reflects sources (§4.2 step 1-5), creates one wgpu.ShaderModule per
// distinct stage, builds one descriptor-set layout per set index found during
// reflection (bindings sorted by binding index), and synthesizes the pipeline layout
// from all set layouts. Returns ErrInvalidArgument if sources is empty, and
// ErrShaderReflection if reflection fails.
func (rm *ResourceManager) CreateShader(sources []gshader.Source) (Shader, error) {
	if len(sources) == 0 {
		return Shader{}, fmt.Errorf("shader requires at least one source: %w", ErrInvalidArgument)
	}

	reflection, err := gshader.Reflect(sources)
	if err != nil {
		return Shader{}, fmt.Errorf("reflect shader: %w: %v", ErrShaderReflection, err)
	}

	sd := &shaderData{
		modules: make(map[gshader.Stage]*wgpu.ShaderModule),
		entries: make(map[gshader.Stage]string),
		reflection: reflection,
		setLayouts: make(map[int]*wgpu.BindGroupLayout),
	}

	for _, src := range sources {
		module, err := rm.device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          "shader",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.Code},
		})
		if err != nil {
			return Shader{}, fmt.Errorf("create shader module: %w", ErrShaderReflection)
		}
		sd.modules[src.Stage] = module
		entry := src.Entry
		if entry == "" {
			entry = defaultEntry(src.Stage)
		}
		sd.entries[src.Stage] = entry
	}

	for set, bindings := range reflection.Bindings {
		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
		for _, b := range bindings {
			entries = append(entries, layoutEntryFor(b, stageMaskToWGPU(b.Stages)))
		}
		layout, err := rm.device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   "shader set layout",
			Entries: entries,
		})
		if err != nil {
			return Shader{}, fmt.Errorf("create set %d layout: %w", set, ErrPipelineCreation)
		}
		sd.setLayouts[set] = layout
	}

	orderedLayouts := orderedSetLayouts(sd.setLayouts)
	pipelineLayout, err := rm.device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "shader pipeline layout",
		BindGroupLayouts: orderedLayouts,
	})
	if err != nil {
		return Shader{}, fmt.Errorf("create pipeline layout: %w", ErrPipelineCreation)
	}
	sd.layout = pipelineLayout

	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindShader
	c.shader = sd
	return Shader{h: handle{index: idx, generation: gen}}, nil
}

// FreeShader releases a shader's modules and layouts. Per §3, freeing a shader
// invalidates every UniformSet and Pipeline derived from it; this backend relies on
// callers respecting that invariant rather than tracking back-references.
func (rm *ResourceManager) FreeShader(s Shader) error {
	c, err := rm.alloc.lookup(s.h)
	if err != nil {
		return err
	}
	if c.kind != kindShader {
		return fmt.Errorf("handle does not reference a shader: %w", ErrInvalidArgument)
	}
	for _, m := range c.shader.modules {
		m.Release()
	}
	for _, l := range c.shader.setLayouts {
		l.Release()
	}
	c.shader.layout.Release()
	rm.alloc.free(s.h.index)
	return nil
}

func (rm *ResourceManager) shaderInfo(s Shader) (*shaderData, error) {
	c, err := rm.alloc.lookup(s.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindShader {
		return nil, fmt.Errorf("handle does not reference a shader: %w", ErrInvalidArgument)
	}
	return c.shader, nil
}

func defaultEntry(stage gshader.Stage) string {
	switch stage {
	case gshader.StageVertex:
		return "vs_main"
	case gshader.StageFragment:
		return "fs_main"
	default:
		return "cs_main"
	}
}

func stageMaskToWGPU(m gshader.StageMask) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if m&gshader.StageMaskVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if m&gshader.StageMaskFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if m&gshader.StageMaskCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

// layoutEntryFor converts one reflected binding into its wgpu layout entry, picking
// the Buffer/Sampler/Texture/StorageTexture field the binding's type actually needs
// (the reflector already separates samplers from textures, since WGSL declares them
// as distinct `var`s — unlike Vulkan's combined image sampler — so no binding here
// ever needs more than one wgpu layout field populated).
func layoutEntryFor(b gshader.Binding, stages wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: uint32(b.Binding), Visibility: stages}
	switch b.Type {
	case gshader.BindingStorageBuffer:
		entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}
	case gshader.BindingSampler:
		entry.Sampler = wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering}
	case gshader.BindingTexture:
		entry.Texture = wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D}
	case gshader.BindingStorageTexture:
		entry.StorageTexture = wgpu.StorageTextureBindingLayout{Access: wgpu.StorageTextureAccessWriteOnly, ViewDimension: wgpu.TextureViewDimension2D}
	default:
		entry.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
	}
	return entry
}

// orderedSetLayouts returns set layouts ordered by set index (0, 1, 2, ...) with gaps
// filled by an empty layout, since wgpu's pipeline layout is a dense array indexed by
// position, not a sparse set-index map like a Vulkan descriptor-set layout array.
func orderedSetLayouts(layouts map[int]*wgpu.BindGroupLayout) []*wgpu.BindGroupLayout {
	maxSet := -1
	for set := range layouts {
		if set > maxSet {
			maxSet = set
		}
	}
	if maxSet < 0 {
		return nil
	}
	ordered := make([]*wgpu.BindGroupLayout, maxSet+1)
	for set, l := range layouts {
		ordered[set] = l
	}
	return ordered
}
