package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// CommandBufferState is the three-state lifecycle a command buffer observes, per
// §4.5. Begin creates a buffer already in the recording state, End moves it to
// executable, and Reset moves it back to recording.
type CommandBufferState int

const (
	CommandBufferInitial CommandBufferState = iota
	CommandBufferRecording
	CommandBufferExecutable
)

type commandBufferData struct {
	state       CommandBufferState
	encoder     *wgpu.CommandEncoder
	pass        *wgpu.RenderPassEncoder
	computePass *wgpu.ComputePassEncoder
	finished    *wgpu.CommandBuffer
}

// Recorder implements §4.5's command recording API: a command buffer is in one of
// three observable states (initial, recording, executable), and every recording call
// is otherwise stateless, taking the buffer plus whatever parameters it needs. No
// hidden current-pipeline or current-pass state is kept here beyond the active
// wgpu.RenderPassEncoder a begin_rendering/end_rendering pair brackets.
type Recorder struct {
	device *Device
	alloc  *pagedAllocator
}

// NewRecorder constructs a command recorder bound to the given device.
func NewRecorder(device *Device) *Recorder {
	return &Recorder{device: device, alloc: newPagedAllocator(16)}
}

// Begin creates a fresh command encoder and returns a CommandBuffer handle in the
// recording state.
func (r *Recorder) Begin() (CommandBuffer, error) {
	encoder, err := r.device.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame"})
	if err != nil {
		return CommandBuffer{}, fmt.Errorf("create command encoder: %w", ErrAllocationFailed)
	}
	idx, gen := r.alloc.alloc()
	c := r.alloc.cellAt(idx)
	c.kind = kindCommandBuffer
	c.cmdBuffer = &commandBufferData{state: CommandBufferRecording, encoder: encoder}
	return CommandBuffer{h: handle{index: idx, generation: gen}}, nil
}

func (r *Recorder) cmdInfo(cmd CommandBuffer) (*commandBufferData, error) {
	c, err := r.alloc.lookup(cmd.h)
	if err != nil {
		return nil, err
	}
	if c.kind != kindCommandBuffer {
		return nil, fmt.Errorf("handle does not reference a command buffer: %w", ErrInvalidArgument)
	}
	return c.cmdBuffer, nil
}

// ColorAttachment mirrors §4.5's begin_rendering color attachment description: the
// image view, whether to clear (otherwise load) with ClearColor, and an optional
// resolve target for MSAA. There is no layout field, and the store op is always store.
type ColorAttachment struct {
	View        *wgpu.TextureView
	LoadClear   bool
	ClearColor  wgpu.Color
	ResolveView *wgpu.TextureView
}

// DepthAttachment mirrors §4.5's optional depth attachment.
type DepthAttachment struct {
	View      *wgpu.TextureView
	LoadClear bool
	ClearValue float32
}

// BeginRendering starts dynamic rendering over the given attachments; EndRendering
// closes it. The pair maps onto wgpu's native model (§0.1): a BeginRenderPass/End
// pair already is "dynamic rendering."
func (r *Recorder) BeginRendering(cmd CommandBuffer, color []ColorAttachment, depth *DepthAttachment) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.state != CommandBufferRecording {
		return fmt.Errorf("command buffer not in recording state: %w", ErrInvalidArgument)
	}

	colorAttachments := make([]wgpu.RenderPassColorAttachment, 0, len(color))
	for _, c := range color {
		loadOp := wgpu.LoadOpLoad
		if c.LoadClear {
			loadOp = wgpu.LoadOpClear
		}
		colorAttachments = append(colorAttachments, wgpu.RenderPassColorAttachment{
			View:          c.View,
			ResolveTarget: c.ResolveView,
			LoadOp:        loadOp,
			StoreOp:       wgpu.StoreOpStore,
			ClearValue:    c.ClearColor,
		})
	}

	descriptor := &wgpu.RenderPassDescriptor{ColorAttachments: colorAttachments}
	if depth != nil {
		loadOp := wgpu.LoadOpLoad
		if depth.LoadClear {
			loadOp = wgpu.LoadOpClear
		}
		descriptor.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            depth.View,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: depth.ClearValue,
		}
	}

	pass := info.encoder.BeginRenderPass(descriptor)
	info.pass = pass
	return nil
}

// EndRendering closes the active dynamic-rendering pass.
func (r *Recorder) EndRendering(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	info.pass.End()
	info.pass = nil
	return nil
}

// SetViewportScissor sets dynamic viewport and scissor state, always present per
// §4.2/§4.5.
func (r *Recorder) SetViewportScissor(cmd CommandBuffer, width, height float32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	info.pass.SetViewport(0, 0, width, height, 0, 1)
	info.pass.SetScissorRect(0, 0, uint32(width), uint32(height))
	return nil
}

// BindUniformSets binds sets starting at firstSet to the shader's pipeline layout, per
// §4.5's bind_uniform_sets. Valid against either an active render pass or an active
// compute pass, matching whichever begin_rendering/dispatch bracket is currently open.
func (r *Recorder) BindUniformSets(cmd CommandBuffer, factory *UniformSetFactory, firstSet uint32, sets []UniformSet) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil && info.computePass == nil {
		return fmt.Errorf("no active render or compute pass: %w", ErrInvalidArgument)
	}
	for i, set := range sets {
		usd, err := factory.uniformSetInfo(set)
		if err != nil {
			return err
		}
		if info.pass != nil {
			info.pass.SetBindGroup(firstSet+uint32(i), usd.bindGroup, nil)
		} else {
			info.computePass.SetBindGroup(firstSet+uint32(i), usd.bindGroup, nil)
		}
	}
	return nil
}

// BindUniformSetDynamic binds a single uniform set at setIndex with explicit dynamic
// offsets, for a set created with one or more ShaderUniform.Dynamic buffer entries
// (§4.5's bind_uniform_sets dynamic-offset form). Order and count of offsets must
// match the dynamic entries in the set's creation order.
func (r *Recorder) BindUniformSetDynamic(cmd CommandBuffer, factory *UniformSetFactory, setIndex uint32, set UniformSet, offsets []uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil && info.computePass == nil {
		return fmt.Errorf("no active render or compute pass: %w", ErrInvalidArgument)
	}
	usd, err := factory.uniformSetInfo(set)
	if err != nil {
		return err
	}
	if info.pass != nil {
		info.pass.SetBindGroup(setIndex, usd.bindGroup, offsets)
	} else {
		info.computePass.SetBindGroup(setIndex, usd.bindGroup, offsets)
	}
	return nil
}

// BindPipeline binds a graphics or compute pipeline to whichever pass is currently
// open, per §4.5's bind_pipeline. Every Draw/DrawIndexed/DrawIndexedIndirect/Dispatch
// call requires a pipeline to have been bound first; recording one without a prior
// BindPipeline is invalid per WebGPU's validation rules (SetPipeline is mandatory
// before any draw or dispatch).
func (r *Recorder) BindPipeline(cmd CommandBuffer, rm *ResourceManager, pipeline Pipeline) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	pd, err := rm.pipelineInfo(pipeline)
	if err != nil {
		return err
	}
	switch pd.pipelineType {
	case PipelineGraphics:
		if info.pass == nil {
			return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
		}
		info.pass.SetPipeline(pd.render)
	case PipelineCompute:
		if info.computePass == nil {
			return fmt.Errorf("no active compute pass: %w", ErrInvalidArgument)
		}
		info.computePass.SetPipeline(pd.compute)
	default:
		return fmt.Errorf("unknown pipeline type: %w", ErrInvalidArgument)
	}
	return nil
}

// Draw records a non-indexed draw.
func (r *Recorder) Draw(cmd CommandBuffer, vertexCount, instanceCount uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	info.pass.Draw(vertexCount, instanceCount, 0, 0)
	return nil
}

// DrawIndexed records an indexed draw over the index buffer the caller bound with
// BindIndexBuffer.
func (r *Recorder) DrawIndexed(cmd CommandBuffer, indexCount, instanceCount uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	info.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
	return nil
}

// DrawIndexedIndirect records an indexed draw whose parameters are read from
// indirectBuffer at indirectOffset, matching §4.5's draw_indexed_indirect. The buffer
// must have been created with BufferUsageIndirect.
func (r *Recorder) DrawIndexedIndirect(cmd CommandBuffer, rm *ResourceManager, indirectBuffer Buffer, indirectOffset uint64) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	bd, err := rm.bufferInfo(indirectBuffer)
	if err != nil {
		return err
	}
	info.pass.DrawIndexedIndirect(bd.native, indirectOffset)
	return nil
}

// BeginCompute opens a compute pass, the dispatch-side counterpart of BeginRendering.
// Must be closed with EndCompute before the command buffer's End call.
func (r *Recorder) BeginCompute(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.state != CommandBufferRecording {
		return fmt.Errorf("command buffer not in recording state: %w", ErrInvalidArgument)
	}
	pass := info.encoder.BeginComputePass(nil)
	info.computePass = pass
	return nil
}

// EndCompute closes the active compute pass opened by BeginCompute.
func (r *Recorder) EndCompute(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.computePass == nil {
		return fmt.Errorf("no active compute pass: %w", ErrInvalidArgument)
	}
	info.computePass.End()
	info.computePass = nil
	return nil
}

// Dispatch records a compute dispatch over the given workgroup counts, matching §4.5's
// dispatch. Requires an active compute pass (BeginCompute) with a pipeline and any
// uniform sets already bound.
func (r *Recorder) Dispatch(cmd CommandBuffer, groupsX, groupsY, groupsZ uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.computePass == nil {
		return fmt.Errorf("no active compute pass: %w", ErrInvalidArgument)
	}
	info.computePass.DispatchWorkgroups(groupsX, groupsY, groupsZ)
	return nil
}

// BindVertexBuffer binds a vertex buffer at the given slot for the active pass.
func (r *Recorder) BindVertexBuffer(cmd CommandBuffer, rm *ResourceManager, slot uint32, buf Buffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	bd, err := rm.bufferInfo(buf)
	if err != nil {
		return err
	}
	info.pass.SetVertexBuffer(slot, bd.native, 0, bd.size)
	return nil
}

// BindIndexBuffer binds an index buffer for the active pass.
func (r *Recorder) BindIndexBuffer(cmd CommandBuffer, rm *ResourceManager, buf Buffer, format wgpu.IndexFormat) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.pass == nil {
		return fmt.Errorf("no active render pass: %w", ErrInvalidArgument)
	}
	bd, err := rm.bufferInfo(buf)
	if err != nil {
		return err
	}
	info.pass.SetIndexBuffer(bd.native, format, 0, bd.size)
	return nil
}

// PushConstants writes push-constant-equivalent bytes at offset into buf. wgpu-native
// has no native push-constant block outside an optional extension; this backend
// instead routes push-constant data through a uniform buffer bound at a reserved
// set/binding, via an immediate Queue.WriteBuffer. Because WriteBuffer is not ordered
// against a command buffer's eventual Submit, callers that write per-draw values into
// a buffer shared across multiple draws in the same command buffer MUST give each
// draw its own offset (e.g. via a dynamic-offset uniform set, per
// render/passes/mesh_pass.go) — writing every draw's data to the same offset leaves
// every draw reading whatever the last WriteBuffer call wrote, since all writes
// complete before the command buffer's recorded draws ever execute.
func (r *Recorder) PushConstants(rm *ResourceManager, buf Buffer, offset uint64, data []byte) error {
	bd, err := rm.bufferInfo(buf)
	if err != nil {
		return err
	}
	rm.device.Queue.WriteBuffer(bd.native, offset, data)
	return nil
}

// CopyBuffer copies a byte range from one buffer to another, matching §4.5's
// copy_buffer. Both buffers must have been created with the matching
// BufferUsageTransferSrc/BufferUsageTransferDst bits.
func (r *Recorder) CopyBuffer(cmd CommandBuffer, rm *ResourceManager, src, dst Buffer, srcOffset, dstOffset, size uint64) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	srcInfo, err := rm.bufferInfo(src)
	if err != nil {
		return err
	}
	dstInfo, err := rm.bufferInfo(dst)
	if err != nil {
		return err
	}
	info.encoder.CopyBufferToBuffer(srcInfo.native, srcOffset, dstInfo.native, dstOffset, size)
	return nil
}

// ClearColor clears an image's view to a solid color outside of any begin_rendering
// bracket, matching §4.5's standalone clear_color primitive (as distinct from
// begin_rendering's per-attachment LoadClear flag, which clears only as part of an
// existing draw pass). Implemented as a render pass with no draws recorded into it,
// the only way wgpu's command-recording surface clears a texture.
func (r *Recorder) ClearColor(cmd CommandBuffer, rm *ResourceManager, img Image, color wgpu.Color) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.state != CommandBufferRecording {
		return fmt.Errorf("command buffer not in recording state: %w", ErrInvalidArgument)
	}
	id, err := rm.imageInfo(img)
	if err != nil {
		return err
	}
	pass := info.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       id.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: color,
		}},
	})
	pass.End()
	return nil
}

// TransitionImage is the adaptation-decision-8 no-op named in SPEC_FULL.md §0: wgpu-native
// tracks and inserts every resource transition/barrier automatically as part of command
// submission, so there is no explicit layout-transition call on its command-recording
// surface to wrap. This method exists so call sites can still name the operation and get
// handle validation (an unknown or freed image is rejected here, exactly as a real
// transition would fail against a destroyed resource); it performs no GPU-visible work.
func (r *Recorder) TransitionImage(cmd CommandBuffer, rm *ResourceManager, img Image, usage ImageUsage) error {
	if _, err := r.cmdInfo(cmd); err != nil {
		return err
	}
	if _, err := rm.imageInfo(img); err != nil {
		return err
	}
	return nil
}

// CopyBufferToImage copies a region of a CPU-visible or GPU buffer into an image.
func (r *Recorder) CopyBufferToImage(cmd CommandBuffer, rm *ResourceManager, src Buffer, dst Image, width, height uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	bd, err := rm.bufferInfo(src)
	if err != nil {
		return err
	}
	id, err := rm.imageInfo(dst)
	if err != nil {
		return err
	}
	info.encoder.CopyBufferToTexture(
		&wgpu.ImageCopyBuffer{Layout: wgpu.TextureDataLayout{BytesPerRow: width * 4, RowsPerImage: height}, Buffer: bd.native},
		&wgpu.ImageCopyTexture{Texture: id.native},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	return nil
}

// CopyImageToImage performs a same-extent copy between images (the wgpu-native
// equivalent of a linear blit when extents match; mipmap generation, which needs a
// scaling blit, is instead handled by the immediate-submit channel's CPU downsample,
// see immediate.go).
func (r *Recorder) CopyImageToImage(cmd CommandBuffer, rm *ResourceManager, src, dst Image, width, height uint32) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	srcInfo, err := rm.imageInfo(src)
	if err != nil {
		return err
	}
	dstInfo, err := rm.imageInfo(dst)
	if err != nil {
		return err
	}
	info.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: srcInfo.native},
		&wgpu.ImageCopyTexture{Texture: dstInfo.native},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	return nil
}

// End finishes recording and transitions the buffer to the executable state.
func (r *Recorder) End(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.state != CommandBufferRecording {
		return fmt.Errorf("command buffer not in recording state: %w", ErrInvalidArgument)
	}
	finished, err := info.encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish command buffer: %w", ErrFatal)
	}
	info.finished = finished
	info.state = CommandBufferExecutable
	return nil
}

// Submit submits an executable command buffer to the device queue.
func (r *Recorder) Submit(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	if info.state != CommandBufferExecutable {
		return fmt.Errorf("command buffer not executable: %w", ErrInvalidArgument)
	}
	r.device.Queue.Submit(info.finished)
	return nil
}

// Reset returns a command buffer to the recording state for reuse, per §3's
// per-frame reset policy ("Per-frame command buffers reset at the top of each
// frame"): it hands back a fresh wgpu.CommandEncoder under the same handle instead
// of allocating a new paged-allocator cell the way Begin does, so a caller that
// reuses one CommandBuffer handle per frames-in-flight slot never grows the
// allocator's backing pages without bound. The caller must have waited on the
// frame's fence first.
func (r *Recorder) Reset(cmd CommandBuffer) error {
	info, err := r.cmdInfo(cmd)
	if err != nil {
		return err
	}
	encoder, err := r.device.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", ErrAllocationFailed)
	}
	info.state = CommandBufferRecording
	info.encoder = encoder
	info.pass = nil
	info.computePass = nil
	info.finished = nil
	return nil
}

// Free releases a command buffer handle back to the allocator. Callers that
// reuse a per-frame-slot handle via Reset never need this; it exists for
// one-shot command buffers (e.g. immediate-submit uploads) that are never reused.
func (r *Recorder) Free(cmd CommandBuffer) error {
	if _, err := r.cmdInfo(cmd); err != nil {
		return err
	}
	r.alloc.free(cmd.h.index)
	return nil
}
