package gpu

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceProvider is the minimal window-layer contract the device needs to create a
// presentable surface; window.Window satisfies it.
type SurfaceProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// Device owns instance/adapter/device/queue bring-up (C1). It is the foundation
// every other gpu/ component is built on.
type Device struct {
	mu *sync.Mutex

	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat

	log *slog.Logger

	nextDeviceAddress uint64
}

// NewDevice brings up a WebGPU instance/adapter/device/queue against the given
// surface provider. forceFallbackAdapter mirrors Vulkan's software-rasterizer
// fallback selection. Returns ErrDeviceUnavailable if a compatible adapter or device
// cannot be obtained.
func NewDevice(surfaceProvider SurfaceProvider, forceFallbackAdapter bool, log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.Default()
	}
	runtime.LockOSThread()

	d := &Device{
		mu:       &sync.Mutex{},
		Instance: wgpu.CreateInstance(nil),
		log:      log,
	}
	d.Surface = d.Instance.CreateSurface(surfaceProvider.SurfaceDescriptor())

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    d.Surface,
	})
	if err != nil {
		log.Error("adapter request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	d.Adapter = adapter

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "glitch device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		log.Error("device request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	d.Device = device
	d.Queue = device.GetQueue()

	return d, nil
}

// ConfigureSurface (re)configures the presentation surface for the given pixel size
// and stores the chosen format for swapchain and pipeline color-attachment use.
func (d *Device) ConfigureSurface(width, height int, presentMode wgpu.PresentMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := d.Surface.GetCapabilities(d.Adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no supported formats", ErrDeviceUnavailable)
	}
	d.surfaceFormat = caps.Formats[0]

	d.Surface.Configure(d.Adapter, d.Device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})
	return nil
}

// SurfaceFormat returns the format chosen by the last ConfigureSurface call.
func (d *Device) SurfaceFormat() wgpu.TextureFormat { return d.surfaceFormat }

// allocDeviceAddress hands out the next opaque device-address token. See SPEC_FULL.md
// §0.2: wgpu-native exposes no raw GPU pointer, so buffer device addresses are modeled
// as monotonically increasing indices into a bindless storage-buffer-array binding.
func (d *Device) allocDeviceAddress() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextDeviceAddress++
	return d.nextDeviceAddress
}

