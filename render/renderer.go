// Package render implements §4.8's frame loop, §4.9's pass pipeline, and
// wires the material system (render/material) into the named render-image
// map every pass draws against. Grounded on the teacher's renderer.go for
// the overall builder/options shape, adapted to the per-frame
// wait-acquire-record-submit-present state machine §4.8 specifies instead of
// the teacher's direct-to-surface draw loop.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gl1tchs/glitch/gpu"

	"github.com/cogentcore/webgpu/wgpu"
)

const framesInFlight = 2

// Config is the renderer configuration table from §6: MSAA sample count and
// offscreen resolution scale.
type Config struct {
	MSAA            uint32
	ResolutionScale float32
	PresentMode     wgpu.PresentMode
}

func validMSAA(n uint32) bool {
	switch n {
	case 1, 2, 4, 8, 16, 32:
		return true
	default:
		return false
	}
}

type frameData struct {
	pool           gpu.CommandPool
	recorder       *gpu.Recorder
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
	renderFence    gpu.Fence
	cmd            gpu.CommandBuffer
}

// namedImage is one entry in the renderer's named render-image map (§4.9's
// create_render_image/get_render_image).
type namedImage struct {
	image  gpu.Image
	view   *wgpu.TextureView
	format wgpu.TextureFormat
	depth  bool
}

// Renderer owns the per-frame double-buffered resources, the offscreen
// color/depth targets, the named render-image map, and the ordered pass
// list, implementing §4.8's frame loop exactly.
type Renderer struct {
	device     *gpu.Device
	rm         *gpu.ResourceManager
	sync       *gpu.Synchronization
	pools      *gpu.CommandPools
	swapchains *gpu.SwapchainManager
	swapchain  gpu.Swapchain
	log        *slog.Logger

	frames      [framesInFlight]frameData
	frameNumber uint64

	windowWidth, windowHeight int
	scaledWidth, scaledHeight uint32
	resolutionScale           float32
	msaa                      uint32
	colorFormat               wgpu.TextureFormat
	depthFormat               wgpu.TextureFormat

	renderImages map[string]*namedImage
	sampler      gpu.Sampler

	passes []Pass

	currentFrame      *frameData
	currentSwapView   *wgpu.TextureView
	currentColorView  *wgpu.TextureView // MSAA target view, or == currentSwapView when msaa==1

	pendingResize bool
}

const (
	// ColorAttachmentName is the fixed name of the color render target every
	// built-in pass writes to, matching §4.9's geo_albedo.
	ColorAttachmentName = "geo_albedo"
	// DepthAttachmentName is the fixed name of the depth render target every
	// built-in pass writes to, matching §4.9's geo_depth.
	DepthAttachmentName = "geo_depth"
)

// NewRenderer brings up the per-frame synchronization primitives, command
// pools, swapchain, and offscreen render targets for a window of the given
// pixel size. Invalid MSAA values snap to 1 with an error logged, per §6's
// configuration table.
func NewRenderer(device *gpu.Device, rm *gpu.ResourceManager, windowWidth, windowHeight int, cfg Config, log *slog.Logger) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}
	msaa := cfg.MSAA
	if msaa == 0 {
		msaa = 1
	}
	if !validMSAA(msaa) {
		log.Error("invalid msaa sample count, snapping to 1", "requested", msaa)
		msaa = 1
	}
	scale := cfg.ResolutionScale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	presentMode := cfg.PresentMode
	if presentMode == 0 {
		presentMode = wgpu.PresentModeFifo
	}

	swapchains := gpu.NewSwapchainManager(device)
	sc, err := swapchains.CreateSwapchain(windowWidth, windowHeight, presentMode)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		device:          device,
		rm:              rm,
		sync:            gpu.NewSynchronization(device),
		pools:           gpu.NewCommandPools(device),
		swapchains:      swapchains,
		swapchain:       sc,
		log:             log,
		windowWidth:     windowWidth,
		windowHeight:    windowHeight,
		resolutionScale: scale,
		msaa:            msaa,
		colorFormat:     device.SurfaceFormat(),
		depthFormat:     wgpu.TextureFormatDepth32Float,
		renderImages:    make(map[string]*namedImage),
	}

	for i := range r.frames {
		pool, recorder, err := r.pools.CreatePool()
		if err != nil {
			return nil, err
		}
		imageAvail, err := r.sync.CreateSemaphore()
		if err != nil {
			return nil, err
		}
		renderFinished, err := r.sync.CreateSemaphore()
		if err != nil {
			return nil, err
		}
		fence, err := r.sync.CreateFence(true)
		if err != nil {
			return nil, err
		}
		r.frames[i] = frameData{pool: pool, recorder: recorder, imageAvailable: imageAvail, renderFinished: renderFinished, renderFence: fence}
	}

	sampler, err := rm.CreateSampler(gpu.SamplerCreateInfo{MinFilter: wgpu.FilterModeLinear, MagFilter: wgpu.FilterModeLinear, MipmapFilter: wgpu.MipmapFilterModeLinear, LodMaxClamp: 32})
	if err != nil {
		return nil, err
	}
	r.sampler = sampler

	if err := r.allocateOffscreenTargets(); err != nil {
		return nil, err
	}

	return r, nil
}

func scaledExtent(w, h int, scale float32) (uint32, uint32) {
	sw := uint32(math.Max(1, math.Floor(float64(w)*float64(scale))))
	sh := uint32(math.Max(1, math.Floor(float64(h)*float64(scale))))
	return sw, sh
}

// allocateOffscreenTargets (re)creates the depth target, and the MSAA color
// target when msaa > 1. It does not allocate geo_albedo itself when msaa==1
// since that name resolves directly to the per-frame swapchain view.
func (r *Renderer) allocateOffscreenTargets() error {
	r.scaledWidth, r.scaledHeight = scaledExtent(r.windowWidth, r.windowHeight, r.resolutionScale)

	depthImg, err := r.rm.CreateRenderTarget(gpu.RenderTargetInfo{
		Format: r.depthFormat, Width: r.scaledWidth, Height: r.scaledHeight, SampleCount: r.msaa, Depth: true,
	})
	if err != nil {
		return err
	}
	depthView, err := r.rm.ImageView(depthImg)
	if err != nil {
		return err
	}
	r.renderImages[DepthAttachmentName] = &namedImage{image: depthImg, view: depthView, format: r.depthFormat, depth: true}

	if r.msaa > 1 {
		colorImg, err := r.rm.CreateRenderTarget(gpu.RenderTargetInfo{
			Format: r.colorFormat, Width: r.scaledWidth, Height: r.scaledHeight, SampleCount: r.msaa, Depth: false,
		})
		if err != nil {
			return err
		}
		colorView, err := r.rm.ImageView(colorImg)
		if err != nil {
			return err
		}
		r.renderImages[ColorAttachmentName] = &namedImage{image: colorImg, view: colorView, format: r.colorFormat, depth: false}
	} else {
		delete(r.renderImages, ColorAttachmentName)
	}
	return nil
}

// CreateRenderImage registers a custom named render target (§4.9's
// create_render_image), sized to the renderer's current scaled resolution.
// Built-in names geo_albedo/geo_depth are reserved.
func (r *Renderer) CreateRenderImage(name string, format wgpu.TextureFormat, depth bool) error {
	if name == ColorAttachmentName || name == DepthAttachmentName {
		return fmt.Errorf("render image name %q is reserved: %w", name, gpu.ErrInvalidArgument)
	}
	img, err := r.rm.CreateRenderTarget(gpu.RenderTargetInfo{Format: format, Width: r.scaledWidth, Height: r.scaledHeight, Depth: depth})
	if err != nil {
		return err
	}
	view, err := r.rm.ImageView(img)
	if err != nil {
		return err
	}
	if existing, ok := r.renderImages[name]; ok {
		_ = r.rm.FreeImage(existing.image)
	}
	r.renderImages[name] = &namedImage{image: img, view: view, format: format, depth: depth}
	return nil
}

// customRenderImageSpec captures enough of a caller-registered render image to
// recreate it after Resize/SetResolutionScale free and reallocate every offscreen
// target.
type customRenderImageSpec struct {
	name   string
	format wgpu.TextureFormat
	depth  bool
}

// customRenderImages snapshots every currently registered render image outside the
// reserved geo_albedo/geo_depth names.
func (r *Renderer) customRenderImages() []customRenderImageSpec {
	var specs []customRenderImageSpec
	for name, ni := range r.renderImages {
		if name == ColorAttachmentName || name == DepthAttachmentName {
			continue
		}
		specs = append(specs, customRenderImageSpec{name: name, format: ni.format, depth: ni.depth})
	}
	return specs
}

// recreateCustomRenderImages recreates every snapshot taken by
// customRenderImages, at the renderer's current scaled resolution.
func (r *Renderer) recreateCustomRenderImages(specs []customRenderImageSpec) error {
	for _, s := range specs {
		if err := r.CreateRenderImage(s.name, s.format, s.depth); err != nil {
			return err
		}
	}
	return nil
}

// GetRenderImage looks up a named render target (§4.9's get_render_image).
func (r *Renderer) GetRenderImage(name string) (gpu.Image, bool) {
	ni, ok := r.renderImages[name]
	if !ok {
		return gpu.Image{}, false
	}
	return ni.image, true
}

// AddPass registers a pass, runs its one-time Setup, and inserts it into the
// priority-ordered execution list.
func (r *Renderer) AddPass(p Pass) error {
	if err := p.Setup(r); err != nil {
		return fmt.Errorf("setup pass %s: %w", p.Name(), err)
	}
	r.passes = insertByPriority(r.passes, p)
	return nil
}

// ColorFormat returns the offscreen/swapchain color format every material
// pipeline must target.
func (r *Renderer) ColorFormat() wgpu.TextureFormat { return r.colorFormat }

// DepthFormat returns the depth format every material pipeline with a depth
// test must target.
func (r *Renderer) DepthFormat() wgpu.TextureFormat { return r.depthFormat }

// Extent returns the current scaled offscreen render resolution.
func (r *Renderer) Extent() (uint32, uint32) { return r.scaledWidth, r.scaledHeight }

// Sampler returns the renderer's default linear sampler, used by textures
// that don't need a custom one.
func (r *Renderer) Sampler() gpu.Sampler { return r.sampler }

// ResourceManager exposes the resource manager backing this renderer, for
// passes that need to create scratch resources.
func (r *Renderer) ResourceManager() *gpu.ResourceManager { return r.rm }

// Recorder returns the command recorder backing the currently in-flight
// frame. Valid only between Frame's Begin and End, i.e. during pass
// execution.
func (r *Renderer) Recorder() *gpu.Recorder { return r.currentFrame.recorder }

// ColorAttachment builds the color attachment descriptor for the current
// frame's geo_albedo target, wiring the MSAA resolve target to the swapchain
// view automatically when msaa > 1.
func (r *Renderer) ColorAttachment(loadClear bool, clear wgpu.Color) gpu.ColorAttachment {
	if r.msaa > 1 {
		return gpu.ColorAttachment{View: r.renderImages[ColorAttachmentName].view, LoadClear: loadClear, ClearColor: clear, ResolveView: r.currentSwapView}
	}
	return gpu.ColorAttachment{View: r.currentSwapView, LoadClear: loadClear, ClearColor: clear}
}

// DepthAttachment builds the depth attachment descriptor for the current
// frame's geo_depth target.
func (r *Renderer) DepthAttachment(loadClear bool, clearValue float32) gpu.DepthAttachment {
	return gpu.DepthAttachment{View: r.renderImages[DepthAttachmentName].view, LoadClear: loadClear, ClearValue: clearValue}
}

// Resize reconfigures the swapchain and reallocates offscreen targets at the
// new scaled resolution. Callers must not be mid-frame.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	r.device.Device.Poll(true, nil)
	if err := r.swapchains.Resize(r.swapchain, width, height); err != nil {
		return err
	}
	r.windowWidth, r.windowHeight = width, height

	custom := r.customRenderImages()
	for _, ni := range r.renderImages {
		_ = r.rm.FreeImage(ni.image)
	}
	if err := r.allocateOffscreenTargets(); err != nil {
		return err
	}
	return r.recreateCustomRenderImages(custom)
}

// SetResolutionScale updates the offscreen resolution fraction and
// reallocates render targets at the new size, per §6's resolution_scale.
func (r *Renderer) SetResolutionScale(scale float32) error {
	if scale <= 0 || scale > 1 {
		return fmt.Errorf("resolution_scale must be in (0, 1]: %w", gpu.ErrInvalidArgument)
	}
	r.device.Device.Poll(true, nil)
	r.resolutionScale = scale
	custom := r.customRenderImages()
	for _, ni := range r.renderImages {
		_ = r.rm.FreeImage(ni.image)
	}
	if err := r.allocateOffscreenTargets(); err != nil {
		return err
	}
	return r.recreateCustomRenderImages(custom)
}

// FrameNumber returns the monotonically increasing frame counter, bumped at
// the end of every completed Frame call.
func (r *Renderer) FrameNumber() uint64 { return r.frameNumber }

// Frame executes exactly one iteration of §4.8's per-frame loop: acquire the
// next swapchain image, wait the in-flight fence, record every pass in
// priority order into a freshly begun command buffer, then submit and
// present. Per §4.7/§7/seed scenario S3, an out-of-date acquire is recovered
// by scheduling a resize and dropping the frame, not by resizing and
// retrying inline; the resize is actually performed at the top of the next
// Frame call, before that call's acquire.
func (r *Renderer) Frame() error {
	if r.pendingResize {
		r.pendingResize = false
		if err := r.Resize(r.windowWidth, r.windowHeight); err != nil {
			return err
		}
	}

	// Acquire before touching this slot's fence: a dropped frame must leave the
	// fence exactly as the previous completed frame left it, so the frame that
	// eventually reuses this slot still waits on real in-flight work instead of
	// blocking forever on a fence this dropped frame reset but never signaled.
	view, err := r.swapchains.Acquire(r.swapchain)
	if err != nil {
		if errors.Is(err, gpu.ErrOutOfDate) {
			r.pendingResize = true
			return nil
		}
		return err
	}

	fd := &r.frames[r.frameNumber%framesInFlight]
	r.currentFrame = fd

	if err := r.sync.WaitFence(fd.renderFence, 0); err != nil {
		return fmt.Errorf("wait frame fence: %w", err)
	}
	if err := r.sync.ResetFence(fd.renderFence); err != nil {
		return err
	}

	// Acquire signals imageAvailable; submit waits it, per §3's "signaled by
	// acquire, waited by submit" contract.
	if err := r.sync.SignalSemaphore(fd.imageAvailable); err != nil {
		return err
	}

	r.currentSwapView = view
	if r.msaa == 1 {
		r.currentColorView = view
	} else {
		r.currentColorView = r.renderImages[ColorAttachmentName].view
	}

	var cmd gpu.CommandBuffer
	if fd.cmd.IsValid() {
		if err := fd.recorder.Reset(fd.cmd); err != nil {
			return err
		}
		cmd = fd.cmd
	} else {
		cmd, err = fd.recorder.Begin()
		if err != nil {
			return err
		}
		fd.cmd = cmd
	}
	if err := fd.recorder.SetViewportScissor(cmd, float32(r.scaledWidth), float32(r.scaledHeight)); err != nil {
		return err
	}

	for _, pass := range r.passes {
		if err := pass.Execute(cmd, r); err != nil {
			return fmt.Errorf("execute pass %s: %w", pass.Name(), err)
		}
	}

	if err := fd.recorder.End(cmd); err != nil {
		return err
	}
	if err := r.sync.WaitSemaphore(fd.imageAvailable, 0); err != nil {
		return err
	}
	if err := fd.recorder.Submit(cmd); err != nil {
		return err
	}
	if err := r.sync.SignalSemaphore(fd.renderFinished); err != nil {
		return err
	}
	if err := r.sync.SignalFence(fd.renderFence); err != nil {
		return err
	}
	if err := r.sync.WaitSemaphore(fd.renderFinished, 0); err != nil {
		return err
	}
	if err := r.swapchains.Present(r.swapchain); err != nil {
		return err
	}

	r.frameNumber++
	return nil
}
