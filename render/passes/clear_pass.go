// Package passes implements the three built-in Pass types named in §4.9:
// ClearPass, MeshPass, and an example GridPass, grounded on the scene
// preprocessing the teacher's Scene.DrawCalls performs (frustum build,
// per-object culling) generalized to the ECS-lite scene registry.
package passes

import (
	"github.com/gl1tchs/glitch/gpu"
	"github.com/gl1tchs/glitch/render"

	"github.com/cogentcore/webgpu/wgpu"
)

// ClearPass runs first every frame (priority -10), clearing geo_albedo and
// geo_depth. Every later pass in the frame loads rather than clears these
// attachments, per §4.9.
type ClearPass struct {
	Color wgpu.Color
}

func NewClearPass(color wgpu.Color) *ClearPass {
	return &ClearPass{Color: color}
}

func (p *ClearPass) Name() string  { return "clear" }
func (p *ClearPass) Priority() int { return -10 }

// Setup is a no-op: the renderer always provisions geo_albedo/geo_depth
// before any pass runs.
func (p *ClearPass) Setup(r *render.Renderer) error { return nil }

func (p *ClearPass) Execute(cmd gpu.CommandBuffer, r *render.Renderer) error {
	recorder := r.Recorder()
	color := r.ColorAttachment(true, p.Color)
	depth := r.DepthAttachment(true, 1.0)
	if err := recorder.BeginRendering(cmd, []gpu.ColorAttachment{color}, &depth); err != nil {
		return err
	}
	return recorder.EndRendering(cmd)
}
