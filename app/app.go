// Package app implements the entrypoint scaffold named in spec §6: the core
// owns main's start -> update-loop -> destroy sequence and exposes exactly
// one extension hook, create_application(argc, argv), through which a
// calling program supplies its own setup. Grounded on the teacher's
// engine.Engine (tick/render goroutines, quit channel, window resize wiring)
// collapsed onto the simpler single render-thread frame loop this port's
// Renderer already owns internally.
package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gl1tchs/glitch/gpu"
	"github.com/gl1tchs/glitch/render"
	"github.com/gl1tchs/glitch/scene"
	"github.com/gl1tchs/glitch/window"
)

// Args is the (argc, argv) pair spec §6's create_application hook receives.
// Go's os.Args already merges argv[0] with the rest, so Args.Argv is the
// full slice including the program name, matching C's argv layout exactly.
type Args struct {
	Argv []string
}

// Hook is the single extension point spec §6 names: create_application.
// It receives the constructed window and renderer (already sized and
// surfaced) and the scene registry to populate, and returns the per-tick
// update callback the core will drive at the configured tick rate.
type Hook func(w window.Window, r *render.Renderer, reg *scene.Registry, args Args) (onTick func(dt float32), err error)

// Config configures the core-owned application loop.
type Config struct {
	WindowOptions []window.BuilderOption
	TickRateHz    float64 // defaults to 60
	Log           *slog.Logger
}

// Application owns the window, renderer, and scene registry for the
// lifetime of one run, and drives start -> update-loop -> destroy. It
// replaces the teacher's three-goroutine (tick/render/quit) engine with a
// single thread, since the WebGPU surface must be driven from the thread
// that created the window (GLFW/wgpu-native's single-threaded UI
// requirement), and the renderer's own Frame() call already includes the
// GPU-side work the teacher split into a separate render goroutine.
type Application struct {
	cfg Config
	log *slog.Logger

	win      window.Window
	renderer *render.Renderer
	registry *scene.Registry

	tickRate time.Duration
	onTick   func(dt float32)

	quit     chan struct{}
	quitOnce sync.Once
}

// Run constructs the window and renderer, invokes hook to let the caller
// finish setup, then blocks running the update-loop until the window
// closes or Quit is called. This is the core's main: spec §6 says the core
// owns it, so this is the only function a caller needs.
func Run(cfg Config, rendererCfg render.Config, hook Hook, args Args) error {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	win := window.NewWindow(cfg.WindowOptions...)

	device, err := gpu.NewDevice(win, false, log)
	if err != nil {
		return err
	}
	rm := gpu.NewResourceManager(device)

	r, err := render.NewRenderer(device, rm, win.Width(), win.Height(), rendererCfg, log)
	if err != nil {
		return err
	}

	reg := scene.NewRegistry()

	a := &Application{
		cfg:      cfg,
		log:      log,
		win:      win,
		renderer: r,
		registry: reg,
		quit:     make(chan struct{}),
	}
	a.setTickRate(cfg.TickRateHz)

	onTick, err := hook(win, r, reg, args)
	if err != nil {
		return err
	}
	a.onTick = onTick

	win.SetResizeCallback(func(width, height int) {
		if err := r.Resize(width, height); err != nil {
			log.Error("resize failed", "error", err)
		}
	})

	a.run()
	return nil
}

func (a *Application) setTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	a.tickRate = time.Duration(float64(time.Second) / fps)
}

// Quit signals the update-loop to stop after the current iteration and
// requests the window close so ProcessMessages' own loop exits too (it
// otherwise keeps polling independent of the quit channel). Safe to call
// multiple times.
func (a *Application) Quit() {
	a.quitOnce.Do(func() {
		close(a.quit)
		a.win.RequestClose()
	})
}

// run drives start -> update-loop -> destroy on the calling goroutine: GLFW
// window/event handling and the WebGPU surface must stay on the thread that
// created them, so tick and render both run from PollEvents' caller instead
// of the teacher's separate tick/render goroutines. Render runs uncapped,
// once per poll iteration; tick runs at the configured rate via
// accumulated elapsed time, the single-threaded analogue of the teacher's
// independent engine ticker.
func (a *Application) run() {
	lastTick := time.Now()
	var tickAccum time.Duration

	a.win.SetUpdateCallback(func() {
		select {
		case <-a.quit:
			return
		default:
		}

		now := time.Now()
		tickAccum += now.Sub(lastTick)
		lastTick = now
		for tickAccum >= a.tickRate {
			if a.onTick != nil {
				a.onTick(float32(a.tickRate.Seconds()))
			}
			tickAccum -= a.tickRate
		}

		if err := a.renderer.Frame(); err != nil {
			a.log.Error("frame failed", "error", err)
		}
	})

	a.win.ProcessMessages()
	a.destroy()
}

func (a *Application) destroy() {
	if err := a.win.Close(); err != nil {
		a.log.Warn("window close failed", "error", err)
	}
}

// Window returns the application's window.
func (a *Application) Window() window.Window { return a.win }

// Renderer returns the application's renderer.
func (a *Application) Renderer() *render.Renderer { return a.renderer }

// Registry returns the application's scene registry.
func (a *Application) Registry() *scene.Registry { return a.registry }
