// Package material implements the definition/instance split from §4.10: a
// MaterialDefinition loads and reflects shader sources once and synthesizes a
// pipeline plus the parameter schema; each MaterialInstance allocates its own
// packed uniform buffer and uniform set against that schema. Grounded on the
// teacher's flat Material interface (surface properties fixed at load time,
// GPU resource references mutable after construction) generalized into two
// types so a single shader program can back many differently-parameterized
// instances.
package material

import (
	"fmt"
	"math"

	"github.com/gl1tchs/glitch/gpu"
	gshader "github.com/gl1tchs/glitch/gpu/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// ParamType identifies a scalar or vector parameter packed into an instance's
// uniform buffer.
type ParamType int

const (
	ParamFloat ParamType = iota
	ParamVec2
	ParamVec3
	ParamVec4
)

// size returns the parameter's byte size.
func (t ParamType) size() uint32 {
	switch t {
	case ParamFloat:
		return 4
	case ParamVec2:
		return 8
	case ParamVec3:
		return 12
	case ParamVec4:
		return 16
	default:
		return 4
	}
}

// align returns the offset alignment a parameter of this type requires. vec3
// is treated as 16-byte aligned to match typical shader uniform layouts, per
// §4.10's alignment rule.
func (t ParamType) align() uint32 {
	if t == ParamVec3 {
		return 16
	}
	return t.size()
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) / a * a
}

// ParamSpec declares one named scalar/vector parameter a definition's
// instances carry.
type ParamSpec struct {
	Name string
	Type ParamType
}

// TextureSlot declares one named texture binding a definition's instances
// carry within uniform set 1. Binding is not read: slots are bound in
// declaration order as texture/sampler pairs at bindings 1-2, 3-4, and so on.
type TextureSlot struct {
	Name    string
	Binding int
}

// Options mirrors §4.10's per-definition pipeline options.
type Options struct {
	DepthTest   bool
	DepthWrite  bool
	CompareFunc wgpu.CompareFunction
	Blend       bool
	Topology    wgpu.PrimitiveTopology
	SampleCount uint32
}

type paramLayout struct {
	offset uint32
	typ    ParamType
}

// Definition is a loaded, reflected, pipeline-backed shader program plus the
// packed parameter layout every instance allocates against.
type Definition struct {
	rm       *gpu.ResourceManager
	uniforms *gpu.UniformSetFactory

	shader   gpu.Shader
	pipeline gpu.Pipeline

	paramOrder []ParamSpec
	layout     map[string]paramLayout
	bufSize    uint32
	textures   []TextureSlot
}

// CreateDefinition loads and reflects sources, synthesizes a graphics
// pipeline against colorFormats/depthFormat, and computes the packed
// parameter layout in declaration order, matching §4.10's
// MaterialDefinition::create.
func CreateDefinition(
	rm *gpu.ResourceManager,
	uniforms *gpu.UniformSetFactory,
	colorFormats []wgpu.TextureFormat,
	depthFormat *wgpu.TextureFormat,
	vertexStride uint64,
	sources []gshader.Source,
	params []ParamSpec,
	textures []TextureSlot,
	cacheDir string,
	identity gpu.DriverIdentity,
	opts Options,
) (*Definition, error) {
	shaderHandle, err := rm.CreateShader(sources)
	if err != nil {
		return nil, err
	}

	sampleCount := opts.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	pipeline, err := rm.CreateGraphicsPipeline(shaderHandle, gpu.GraphicsPipelineCreateInfo{
		ColorFormats: colorFormats,
		DepthFormat:  depthFormat,
		Depth: gpu.DepthConfig{
			TestEnabled:  opts.DepthTest,
			WriteEnabled: opts.DepthWrite,
			CompareFunc:  opts.CompareFunc,
		},
		Blend:        gpu.BlendConfig{Enabled: opts.Blend},
		SampleCount:  sampleCount,
		Topology:     opts.Topology,
		CullMode:     wgpu.CullModeBack,
		FrontFace:    wgpu.FrontFaceCCW,
		VertexStride: vertexStride,
		CacheDir:     cacheDir,
		Identity:     identity,
	})
	if err != nil {
		_ = rm.FreeShader(shaderHandle)
		return nil, err
	}

	layout, bufSize := packParams(params)

	return &Definition{
		rm:         rm,
		uniforms:   uniforms,
		shader:     shaderHandle,
		pipeline:   pipeline,
		paramOrder: params,
		layout:     layout,
		bufSize:    bufSize,
		textures:   textures,
	}, nil
}

// packParams computes each parameter's offset in declaration order and the
// uniform buffer size (a multiple of 16, at least 16).
func packParams(params []ParamSpec) (map[string]paramLayout, uint32) {
	var offset uint32
	layout := make(map[string]paramLayout, len(params))
	for _, p := range params {
		offset = alignUp(offset, p.Type.align())
		layout[p.Name] = paramLayout{offset: offset, typ: p.Type}
		offset += p.Type.size()
	}
	bufSize := alignUp(offset, 16)
	if bufSize == 0 {
		bufSize = 16
	}
	return layout, bufSize
}

// Pipeline returns the definition's synthesized pipeline, used by mesh pass to
// decide whether a pipeline rebind is needed between consecutive draws.
func (d *Definition) Pipeline() gpu.Pipeline { return d.pipeline }

// Free releases the definition's pipeline and shader. Every instance created
// against this definition must be freed first.
func (d *Definition) Free() error {
	if err := d.rm.FreePipeline(d.pipeline); err != nil {
		return err
	}
	return d.rm.FreeShader(d.shader)
}

type paramValue struct {
	typ ParamType
	v   [4]float32
}

// Instance is one parameterized use of a Definition: its own uniform buffer,
// packed per §4.10's alignment rule, and its own uniform set (set index 1)
// binding the parameter buffer at binding 0 and each texture slot, in
// declaration order, as a texture/sampler pair starting at binding 1.
type Instance struct {
	def *Definition

	buffer gpu.Buffer
	set    gpu.UniformSet

	params   map[string]paramValue
	textures map[string]gpu.Image
	sampler  gpu.Sampler

	dirtyParams   bool
	dirtyTextures bool
}

// CreateInstance allocates an instance against def, binding defaultTexture to
// every declared texture slot until SetTexture overrides it, matching §4.10's
// MaterialInstance::create.
func CreateInstance(def *Definition, defaultSampler gpu.Sampler, defaultTexture gpu.Image) (*Instance, error) {
	buf, err := def.rm.CreateBuffer(uint64(def.bufSize), gpu.BufferUsageUniform|gpu.BufferUsageTransferDst, gpu.AllocationCPUVisible)
	if err != nil {
		return nil, err
	}

	textures := make(map[string]gpu.Image, len(def.textures))
	for _, t := range def.textures {
		textures[t.Name] = defaultTexture
	}

	inst := &Instance{
		def:      def,
		buffer:   buf,
		params:   make(map[string]paramValue),
		textures: textures,
		sampler:  defaultSampler,
	}

	set, err := inst.buildUniformSet(1)
	if err != nil {
		_ = def.rm.FreeBuffer(buf)
		return nil, err
	}
	inst.set = set
	return inst, nil
}

func (i *Instance) buildUniformSet(setIndex int) (gpu.UniformSet, error) {
	uniforms := []gpu.ShaderUniform{
		{Type: gpu.UniformUniformBuffer, Buffers: []gpu.Buffer{i.buffer}},
	}
	for _, t := range i.def.textures {
		uniforms = append(uniforms, gpu.ShaderUniform{
			Type:     gpu.UniformSamplerTexture,
			Images:   []gpu.Image{i.textures[t.Name]},
			Samplers: []gpu.Sampler{i.sampler},
		})
	}
	return i.def.uniforms.CreateUniformSet(setIndex, uniforms, wgpu.ShaderStageFragment)
}

// SetParam stores a scalar/vector value under name and marks the instance
// dirty; the value is written on the next Upload.
func (i *Instance) SetParam(name string, v [4]float32) error {
	pl, ok := i.def.layout[name]
	if !ok {
		return fmt.Errorf("unknown material parameter %q: %w", name, gpu.ErrInvalidArgument)
	}
	i.params[name] = paramValue{typ: pl.typ, v: v}
	i.dirtyParams = true
	return nil
}

// SetTexture rebinds a named texture slot and marks the instance's uniform
// set dirty for rebuild on the next Upload.
func (i *Instance) SetTexture(name string, img gpu.Image) error {
	if _, ok := i.textures[name]; !ok {
		return fmt.Errorf("unknown texture slot %q: %w", name, gpu.ErrInvalidArgument)
	}
	i.textures[name] = img
	i.dirtyTextures = true
	return nil
}

// UniformSet returns the instance's current uniform set, valid until the next
// Upload call that rebuilds it.
func (i *Instance) UniformSet() gpu.UniformSet { return i.set }

// Pipeline returns the instance's definition's pipeline.
func (i *Instance) Pipeline() gpu.Pipeline { return i.def.Pipeline() }

// Upload writes packed scalar/vector fields into the mapped uniform buffer
// and rebuilds the uniform set if any texture binding changed, exactly when
// dirty, matching §4.10's "called automatically at render time if dirty".
func (i *Instance) Upload() error {
	if i.dirtyTextures {
		set, err := i.buildUniformSet(1)
		if err != nil {
			return err
		}
		if err := i.def.uniforms.FreeUniformSet(i.set); err != nil {
			return err
		}
		i.set = set
		i.dirtyTextures = false
		i.dirtyParams = true // buffer contents must be rewritten after a fresh set
	}

	if !i.dirtyParams {
		return nil
	}

	data := make([]byte, i.def.bufSize)
	for name, pv := range i.params {
		pl := i.def.layout[name]
		n := int(pv.typ.size() / 4)
		for c := 0; c < n; c++ {
			writeFloat32(data, int(pl.offset)+c*4, pv.v[c])
		}
	}

	region, err := i.def.rm.MapBuffer(i.buffer)
	if err != nil {
		return err
	}
	copy(region, data)
	if err := i.def.rm.UnmapBuffer(i.buffer); err != nil {
		return err
	}
	i.dirtyParams = false
	return nil
}

// Free releases the instance's uniform buffer and set.
func (i *Instance) Free() error {
	if err := i.def.uniforms.FreeUniformSet(i.set); err != nil {
		return err
	}
	return i.def.rm.FreeBuffer(i.buffer)
}

func writeFloat32(dst []byte, offset int, f float32) {
	bits := math.Float32bits(f)
	dst[offset] = byte(bits)
	dst[offset+1] = byte(bits >> 8)
	dst[offset+2] = byte(bits >> 16)
	dst[offset+3] = byte(bits >> 24)
}
