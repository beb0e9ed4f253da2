package gpu

import (
	"fmt"
	"path/filepath"

	gshader "github.com/gl1tchs/glitch/gpu/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType distinguishes a graphics pipeline from a compute pipeline.
type PipelineType int

const (
	PipelineGraphics PipelineType = iota
	PipelineCompute
)

// DepthConfig configures depth test/write/compare for a graphics pipeline.
type DepthConfig struct {
	TestEnabled  bool
	WriteEnabled bool
	CompareFunc  wgpu.CompareFunction
}

// BlendConfig selects whether a graphics pipeline's color attachments (every entry of
// ColorFormats) blend as standard "src over dst" alpha or have blending disabled, per §4.2.
type BlendConfig struct {
	Enabled bool
}

// GraphicsPipelineCreateInfo is everything §4.2 says a graphics pipeline build needs:
// dynamic-rendering color attachment formats, an optional depth format, depth/blend
// state, MSAA sample count, sample-shading min fraction, topology, vertex stride, and
// the cache directory/driver identity used for the on-disk cache.
type GraphicsPipelineCreateInfo struct {
	ColorFormats        []wgpu.TextureFormat
	DepthFormat         *wgpu.TextureFormat
	Depth               DepthConfig
	Blend               BlendConfig
	SampleCount         uint32
	SampleShadingMinFrac float32
	Topology            wgpu.PrimitiveTopology
	CullMode            wgpu.CullMode
	FrontFace           wgpu.FrontFace
	VertexStride        uint64
	CacheDir            string
	Identity            DriverIdentity
}

type pipelineData struct {
	pipelineType PipelineType
	shader       Shader
	render       *wgpu.RenderPipeline
	compute      *wgpu.ComputePipeline
	cachePath    string
	identity     DriverIdentity
}

// CreateGraphicsPipeline builds a dynamic-rendering graphics pipeline from a shader's
// reflected vertex inputs and pipeline layout. Color attachment formats and the
// optional depth format are supplied here rather than via a classical render pass
// object, matching §4.2 ("Pipeline creation uses dynamic rendering ... provided at
// build time"). Dynamic state always includes viewport and scissor (wgpu's render
// pass encoder accepts SetViewport/SetScissorRect per draw regardless of pipeline
// state, so no explicit dynamic-state descriptor is needed here).
func (rm *ResourceManager) CreateGraphicsPipeline(shaderHandle Shader, info GraphicsPipelineCreateInfo) (Pipeline, error) {
	sd, err := rm.shaderInfo(shaderHandle)
	if err != nil {
		return Pipeline{}, err
	}
	if len(info.ColorFormats) == 0 {
		return Pipeline{}, fmt.Errorf("at least one color attachment format required: %w", ErrInvalidArgument)
	}

	vsModule, ok := sd.modules[gshader.StageVertex]
	if !ok {
		return Pipeline{}, fmt.Errorf("shader has no vertex stage: %w", ErrShaderReflection)
	}
	fsModule := sd.modules[gshader.StageFragment]

	vertexAttrs := make([]wgpu.VertexAttribute, 0, len(sd.reflection.VertexInputs))
	for _, in := range sd.reflection.VertexInputs {
		vertexAttrs = append(vertexAttrs, wgpu.VertexAttribute{
			Format:         vertexFormatToWGPU(in.Format),
			Offset:         in.Offset,
			ShaderLocation: uint32(in.Location),
		})
	}

	sampleCount := info.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	colorTargets := make([]wgpu.ColorTargetState, 0, len(info.ColorFormats))
	for _, f := range info.ColorFormats {
		target := wgpu.ColorTargetState{Format: f, WriteMask: wgpu.ColorWriteMaskAll}
		if info.Blend.Enabled {
			target.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
				Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			}
		}
		colorTargets = append(colorTargets, target)
	}

	descriptor := &wgpu.RenderPipelineDescriptor{
		Label:  "graphics pipeline",
		Layout: sd.layout,
		Vertex: wgpu.VertexState{
			Module:     vsModule,
			EntryPoint: sd.entries[gshader.StageVertex],
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: info.VertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  vertexAttrs,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  info.Topology,
			CullMode:  info.CullMode,
			FrontFace: info.FrontFace,
		},
		Multisample: wgpu.MultisampleState{
			Count:                  sampleCount,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: info.SampleShadingMinFrac > 0,
		},
	}
	if fsModule != nil {
		descriptor.Fragment = &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: sd.entries[gshader.StageFragment],
			Targets:    colorTargets,
		}
	}
	if info.DepthFormat != nil {
		descriptor.DepthStencil = &wgpu.DepthStencilState{
			Format:            *info.DepthFormat,
			DepthWriteEnabled: info.Depth.WriteEnabled,
			DepthCompare:      depthCompareOrDefault(info.Depth),
		}
	}

	pipeline, err := rm.device.Device.CreateRenderPipeline(descriptor)
	if err != nil {
		return Pipeline{}, fmt.Errorf("create render pipeline: %w", ErrPipelineCreation)
	}

	pd := &pipelineData{
		pipelineType: PipelineGraphics,
		shader:       shaderHandle,
		render:       pipeline,
		identity:     info.Identity,
	}
	if info.CacheDir != "" {
		pd.cachePath = filepath.Join(info.CacheDir, fmt.Sprintf("%x.cache", sd.reflection.ShaderHash))
	}

	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindPipeline
	c.pipeline = pd
	return Pipeline{h: handle{index: idx, generation: gen}}, nil
}

// CreateComputePipeline builds a compute pipeline from a shader's compute stage.
func (rm *ResourceManager) CreateComputePipeline(shaderHandle Shader) (Pipeline, error) {
	sd, err := rm.shaderInfo(shaderHandle)
	if err != nil {
		return Pipeline{}, err
	}
	module, ok := sd.modules[gshader.StageCompute]
	if !ok {
		return Pipeline{}, fmt.Errorf("shader has no compute stage: %w", ErrShaderReflection)
	}

	pipeline, err := rm.device.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "compute pipeline",
		Layout: sd.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: sd.entries[gshader.StageCompute],
		},
	})
	if err != nil {
		return Pipeline{}, fmt.Errorf("create compute pipeline: %w", ErrPipelineCreation)
	}

	pd := &pipelineData{pipelineType: PipelineCompute, shader: shaderHandle, compute: pipeline}
	idx, gen := rm.alloc.alloc()
	c := rm.alloc.cellAt(idx)
	c.kind = kindPipeline
	c.pipeline = pd
	return Pipeline{h: handle{index: idx, generation: gen}}, nil
}

// FreePipeline writes the pipeline's cache back to disk (§5: written only on free)
// and releases the native pipeline, invalidating the handle.
func (rm *ResourceManager) FreePipeline(p Pipeline) error {
	c, err := rm.alloc.lookup(p.h)
	if err != nil {
		return err
	}
	if c.kind != kindPipeline {
		return fmt.Errorf("handle does not reference a pipeline: %w", ErrInvalidArgument)
	}

	if c.pipeline.cachePath != "" {
		// The wgpu-native binding used here does not expose a portable
		// driver-blob getter for arbitrary pipelines, so the payload stored is a
		// fixed 8-byte marker (the bytes 0 through 7) rather than an opaque
		// driver blob. This still exercises the exact header format and
		// mismatch-discards-payload behavior §4.2/S4 require; only the payload
		// contents are a stand-in for a real driver cache blob.
		payload := make([]byte, 8)
		for i := range payload {
			payload[i] = byte(i)
		}
		if err := WritePipelineCache(c.pipeline.cachePath, c.pipeline.identity, payload); err != nil {
			return err
		}
	}

	if c.pipeline.render != nil {
		c.pipeline.render.Release()
	}
	if c.pipeline.compute != nil {
		c.pipeline.compute.Release()
	}
	rm.alloc.free(p.h.index)
	return nil
}

func (rm *ResourceManager) pipelineInfo(p Pipeline) (*pipelineData, error) {
	c, err := rm.alloc.lookup(p.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindPipeline {
		return nil, fmt.Errorf("handle does not reference a pipeline: %w", ErrInvalidArgument)
	}
	return c.pipeline, nil
}

func depthCompareOrDefault(d DepthConfig) wgpu.CompareFunction {
	if !d.TestEnabled {
		return wgpu.CompareFunctionAlways
	}
	if d.CompareFunc == 0 {
		return wgpu.CompareFunctionLess
	}
	return d.CompareFunc
}

func vertexFormatToWGPU(f gshader.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gshader.FormatFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gshader.FormatFloat32x3:
		return wgpu.VertexFormatFloat32x3
	case gshader.FormatFloat32x4:
		return wgpu.VertexFormatFloat32x4
	case gshader.FormatUint32:
		return wgpu.VertexFormatUint32
	case gshader.FormatSint32:
		return wgpu.VertexFormatSint32
	default:
		return wgpu.VertexFormatFloat32
	}
}
