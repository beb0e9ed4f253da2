package passes

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/gl1tchs/glitch/common"
	"github.com/gl1tchs/glitch/gpu"
	"github.com/gl1tchs/glitch/render"
	"github.com/gl1tchs/glitch/scene"

	"github.com/cogentcore/webgpu/wgpu"
)

// sceneUniforms is the set-0 payload every material shader expects at
// binding 0: the camera's view-projection matrix plus its world position,
// matching the `{view_proj, camera_pos_w, ...}` push-constant struct named
// in §4.9, here delivered through a per-frame uniform buffer instead of a
// literal push-constant range (SPEC_FULL.md §0.2).
type sceneUniforms struct {
	viewProj  [16]float32
	cameraPos [4]float32
}

func (s sceneUniforms) bytes() []byte {
	return common.StructToBytes(&s)
}

// pushConstantSlotStride is the per-draw dynamic-offset window size for the
// push-constant-equivalent uniform buffer, rounded up to 256 bytes — the
// minUniformBufferOffsetAlignment every wgpu backend enforces for dynamic uniform
// buffer offsets. maxDrawsPerFrame bounds how many primitives one mesh pass can draw
// in a single frame before it runs out of slots in that buffer.
const (
	pushConstantSlotStride = 256
	maxDrawsPerFrame       = 4096
)

// drawConstants is the per-draw push-constant-equivalent payload: the
// drawn primitive's vertex-buffer device address and the scene uniform
// buffer's own device address, letting the vertex shader fetch both via
// bindless buffer pulling rather than a bound vertex buffer (§0.2/§4.9).
type drawConstants struct {
	vertexBufferAddress uint64
	sceneBufferAddress  uint64
}

func (d drawConstants) bytes() []byte {
	return common.StructToBytes(&d)
}

// MeshPass iterates the scene's mesh entities (priority 0), frustum-culls
// against the active camera, and draws every surviving primitive, rebinding
// set-0 only when the bound pipeline changes between consecutive draws, per
// §4.9. CPU-side culling fans out across a worker pool the same way the
// teacher's Scene fans out per-animator prep work, with a WaitGroup as the
// per-frame barrier.
type MeshPass struct {
	registry *scene.Registry
	uniforms *gpu.UniformSetFactory
	workers  worker.DynamicWorkerPool

	rm          *gpu.ResourceManager
	sceneBuffer gpu.Buffer
	sceneSet    gpu.UniformSet
	sceneAddr   uint64

	pushBuffer gpu.Buffer
	pushSet    gpu.UniformSet
}

// NewMeshPass constructs a mesh pass over registry, using workerCount
// goroutines for parallel per-entity culling.
func NewMeshPass(registry *scene.Registry, uniforms *gpu.UniformSetFactory, workerCount int) *MeshPass {
	if workerCount <= 0 {
		workerCount = 4
	}
	return &MeshPass{
		registry: registry,
		uniforms: uniforms,
		workers:  worker.NewDynamicWorkerPool(workerCount, 256, time.Second),
	}
}

func (p *MeshPass) Name() string  { return "mesh" }
func (p *MeshPass) Priority() int { return 0 }

func (p *MeshPass) Setup(r *render.Renderer) error {
	p.rm = r.ResourceManager()

	sceneBuf, err := p.rm.CreateBuffer(uint64(len(sceneUniforms{}.bytes())), gpu.BufferUsageUniform|gpu.BufferUsageTransferDst|gpu.BufferUsageShaderDeviceAddress, gpu.AllocationCPUVisible)
	if err != nil {
		return err
	}
	p.sceneBuffer = sceneBuf
	addr, err := p.rm.BufferGetDeviceAddress(sceneBuf)
	if err != nil {
		return err
	}
	p.sceneAddr = addr

	sceneSet, err := p.uniforms.CreateUniformSet(0, []gpu.ShaderUniform{
		{Type: gpu.UniformUniformBuffer, Buffers: []gpu.Buffer{sceneBuf}},
	}, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	if err != nil {
		return err
	}
	p.sceneSet = sceneSet

	pushBuf, err := p.rm.CreateBuffer(pushConstantSlotStride*maxDrawsPerFrame, gpu.BufferUsageUniform|gpu.BufferUsageTransferDst, gpu.AllocationCPUVisible)
	if err != nil {
		return err
	}
	p.pushBuffer = pushBuf

	pushSet, err := p.uniforms.CreateUniformSet(2, []gpu.ShaderUniform{
		{
			Type:    gpu.UniformUniformBuffer,
			Buffers: []gpu.Buffer{pushBuf},
			Dynamic: true,
			Size:    uint64(len(drawConstants{}.bytes())),
		},
	}, wgpu.ShaderStageVertex)
	if err != nil {
		return err
	}
	p.pushSet = pushSet

	return nil
}

func (p *MeshPass) Execute(cmd gpu.CommandBuffer, r *render.Renderer) error {
	_, cam, camTransform, ok := p.registry.ActiveCamera()
	if !ok {
		return p.emptyPass(cmd, r)
	}

	w, h := r.Extent()
	if h != 0 {
		cam.Aspect = float32(w) / float32(h)
	}
	viewProj := cam.ViewProj(camTransform)
	frustum := common.ExtractFrustumFromMatrix(viewProj[:])

	su := sceneUniforms{viewProj: viewProj, cameraPos: [4]float32{camTransform.Position[0], camTransform.Position[1], camTransform.Position[2], 1}}
	recorder := r.Recorder()
	if err := recorder.PushConstants(p.rm, p.sceneBuffer, 0, su.bytes()); err != nil {
		return err
	}

	entities := p.registry.ViewMeshes()
	visible := p.cullParallel(entities, frustum)

	color := r.ColorAttachment(false, wgpu.Color{})
	depth := r.DepthAttachment(false, 1.0)
	if err := recorder.BeginRendering(cmd, []gpu.ColorAttachment{color}, &depth); err != nil {
		return err
	}

	var lastPipeline gpu.Pipeline
	firstDraw := true
	drawIndex := 0
	for i, e := range entities {
		if !visible[i] {
			continue
		}
		mr, _ := p.registry.Mesh(e)
		for _, prim := range mr.Primitives {
			if prim.MaterialInstance == nil {
				continue
			}
			if err := prim.MaterialInstance.Upload(); err != nil {
				return err
			}
			pipeline := prim.MaterialInstance.Pipeline()
			if firstDraw || pipeline != lastPipeline {
				if err := recorder.BindPipeline(cmd, p.rm, pipeline); err != nil {
					return err
				}
				if err := recorder.BindUniformSets(cmd, p.uniforms, 0, []gpu.UniformSet{p.sceneSet}); err != nil {
					return err
				}
				lastPipeline = pipeline
				firstDraw = false
			}
			if err := recorder.BindUniformSets(cmd, p.uniforms, 1, []gpu.UniformSet{prim.MaterialInstance.UniformSet()}); err != nil {
				return err
			}

			if drawIndex >= maxDrawsPerFrame {
				return fmt.Errorf("mesh pass exceeded %d draws in one frame", maxDrawsPerFrame)
			}
			offset := uint32(drawIndex) * pushConstantSlotStride
			dc := drawConstants{vertexBufferAddress: prim.VertexBufferAddress, sceneBufferAddress: p.sceneAddr}
			if err := recorder.PushConstants(p.rm, p.pushBuffer, uint64(offset), dc.bytes()); err != nil {
				return err
			}
			if err := recorder.BindUniformSetDynamic(cmd, p.uniforms, 2, p.pushSet, []uint32{offset}); err != nil {
				return err
			}
			drawIndex++

			if err := recorder.BindIndexBuffer(cmd, p.rm, prim.IndexBuffer, wgpu.IndexFormatUint32); err != nil {
				return err
			}
			if err := recorder.DrawIndexed(cmd, prim.IndexCount, 1); err != nil {
				return err
			}
		}
	}

	return recorder.EndRendering(cmd)
}

// emptyPass begins and ends an empty render when no enabled camera exists,
// so geo_albedo/geo_depth still transition correctly for the passes after
// this one.
func (p *MeshPass) emptyPass(cmd gpu.CommandBuffer, r *render.Renderer) error {
	recorder := r.Recorder()
	color := r.ColorAttachment(false, wgpu.Color{})
	depth := r.DepthAttachment(false, 1.0)
	if err := recorder.BeginRendering(cmd, []gpu.ColorAttachment{color}, &depth); err != nil {
		return err
	}
	return recorder.EndRendering(cmd)
}

// cullParallel tests every entity's primitives against frustum, fanning the
// work out across the worker pool the way the teacher's Scene fans out
// per-animator prep: a task per entity, a WaitGroup barrier since the pool's
// own Wait() only returns once workers idle-exit, which is unsuitable for a
// frame-rate cadence.
func (p *MeshPass) cullParallel(entities []scene.Entity, frustum common.Frustum) []bool {
	visible := make([]bool, len(entities))
	var wg sync.WaitGroup
	taskID := 0
	for i, e := range entities {
		t, ok := p.registry.Transform(e)
		if !ok {
			continue
		}
		mr, ok := p.registry.Mesh(e)
		if !ok || !mr.Visible {
			continue
		}

		wg.Add(1)
		idx, transform, primitives := i, *t, mr.Primitives
		id := taskID
		taskID++
		p.workers.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				visible[idx] = anyPrimitiveVisible(frustum, transform, primitives)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return visible
}

func anyPrimitiveVisible(frustum common.Frustum, t scene.Transform, primitives []scene.MeshPrimitive) bool {
	for _, prim := range primitives {
		if frustum.IntersectsAABB(transformAABB(prim.LocalBounds, t)) {
			return true
		}
	}
	return false
}

// transformAABB conservatively re-bounds a local-space AABB by transforming
// all eight corners and taking their min/max, valid under any rotation.
func transformAABB(box common.AABB, t scene.Transform) common.AABB {
	m := t.Matrix()
	var out common.AABB
	first := true
	for _, corner := range [8][3]float32{
		{box.Min[0], box.Min[1], box.Min[2]}, {box.Max[0], box.Min[1], box.Min[2]},
		{box.Min[0], box.Max[1], box.Min[2]}, {box.Max[0], box.Max[1], box.Min[2]},
		{box.Min[0], box.Min[1], box.Max[2]}, {box.Max[0], box.Min[1], box.Max[2]},
		{box.Min[0], box.Max[1], box.Max[2]}, {box.Max[0], box.Max[1], box.Max[2]},
	} {
		x := m[0]*corner[0] + m[4]*corner[1] + m[8]*corner[2] + m[12]
		y := m[1]*corner[0] + m[5]*corner[1] + m[9]*corner[2] + m[13]
		z := m[2]*corner[0] + m[6]*corner[1] + m[10]*corner[2] + m[14]
		if first {
			out.Min = [3]float32{x, y, z}
			out.Max = [3]float32{x, y, z}
			first = false
			continue
		}
		if x < out.Min[0] {
			out.Min[0] = x
		}
		if y < out.Min[1] {
			out.Min[1] = y
		}
		if z < out.Min[2] {
			out.Min[2] = z
		}
		if x > out.Max[0] {
			out.Max[0] = x
		}
		if y > out.Max[1] {
			out.Max[1] = y
		}
		if z > out.Max[2] {
			out.Max[2] = z
		}
	}
	return out
}
