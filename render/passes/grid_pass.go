package passes

import (
	"github.com/gl1tchs/glitch/gpu"
	"github.com/gl1tchs/glitch/render"
	"github.com/gl1tchs/glitch/render/material"

	"github.com/cogentcore/webgpu/wgpu"
)

// GridPass is the user-extensible example named in §4.9: it reuses
// geo_albedo and geo_depth at priority -5 (after Clear, before Mesh) to draw
// a ground-plane reference grid. The grid geometry itself is supplied by the
// caller as a single indexed primitive drawn with the unlit definition,
// keeping this pass a thin example of attachment reuse rather than a new
// rendering feature.
type GridPass struct {
	uniforms    *gpu.UniformSetFactory
	instance    *material.Instance
	indexBuffer gpu.Buffer
	indexCount  uint32
}

// NewGridPass constructs a grid pass drawing indexCount indices from
// indexBuffer with the given material instance.
func NewGridPass(uniforms *gpu.UniformSetFactory, instance *material.Instance, indexBuffer gpu.Buffer, indexCount uint32) *GridPass {
	return &GridPass{uniforms: uniforms, instance: instance, indexBuffer: indexBuffer, indexCount: indexCount}
}

func (p *GridPass) Name() string  { return "grid" }
func (p *GridPass) Priority() int { return -5 }

func (p *GridPass) Setup(r *render.Renderer) error { return nil }

func (p *GridPass) Execute(cmd gpu.CommandBuffer, r *render.Renderer) error {
	if p.instance == nil {
		return nil
	}
	recorder := r.Recorder()
	color := r.ColorAttachment(false, wgpu.Color{})
	depth := r.DepthAttachment(false, 1.0)
	if err := recorder.BeginRendering(cmd, []gpu.ColorAttachment{color}, &depth); err != nil {
		return err
	}

	if err := p.instance.Upload(); err != nil {
		return err
	}
	if err := recorder.BindPipeline(cmd, r.ResourceManager(), p.instance.Pipeline()); err != nil {
		return err
	}
	if err := recorder.BindUniformSets(cmd, p.uniforms, 1, []gpu.UniformSet{p.instance.UniformSet()}); err != nil {
		return err
	}
	if err := recorder.BindIndexBuffer(cmd, r.ResourceManager(), p.indexBuffer, wgpu.IndexFormatUint32); err != nil {
		return err
	}
	if err := recorder.DrawIndexed(cmd, p.indexCount, 1); err != nil {
		return err
	}

	return recorder.EndRendering(cmd)
}
