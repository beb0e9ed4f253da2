// Package window implements the window collaborator contract named in spec
// §6: a platform window handle for surface creation, event polling, pixel
// size, aspect ratio, a cursor-mode setter, and key/mouse/scroll/resize/close
// event streams. Adapted from the teacher's GLFW-backed engine/window
// package, generalized to multiplex every input callback onto one ordered
// Events() channel in addition to the teacher's per-kind callback setters.
package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// EventKind discriminates the variant payload carried by an Event.
type EventKind int

const (
	EventKeyDown EventKind = iota
	EventKeyUp
	EventMouseMove
	EventMiddleMouseDown
	EventMiddleMouseUp
	EventScroll
	EventResize
	EventClose
)

// Event is one entry in a Window's event stream. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	KeyCode uint32
	X, Y    int32
	Delta   float32
	Width   int
	Height  int
}

// CursorMode selects how the window captures and displays the cursor.
type CursorMode int

const (
	CursorNormal CursorMode = iota
	CursorHidden
	CursorDisabled
)

// Window provides platform windowing, surface creation, and input event
// handling. Wraps platform-specific window implementations behind a common
// interface, per spec §6's window collaborator contract.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the window is resized,
	// in pixels.
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press events.
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMiddleMouseDownCallback sets the callback for middle mouse button press.
	SetMiddleMouseDownCallback(callback func(x, y int32))

	// SetMiddleMouseUpCallback sets the callback for middle mouse button release.
	SetMiddleMouseUpCallback(callback func(x, y int32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	SetMouseMoveCallback(callback func(x, y int32))

	// Events returns a channel carrying every input/window event in arrival
	// order, for callers that prefer a single stream over per-kind callbacks.
	// The channel is closed when the window closes.
	Events() <-chan Event

	// SetCursorMode sets how the cursor is captured and displayed.
	SetCursorMode(mode CursorMode)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating
	// a WebGPU surface, platform-appropriate and bridged via wgpuglfw.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// RequestClose marks the window to stop running, the same way a user
	// clicking the close button or pressing Escape does: ProcessMessages'
	// loop exits on its next iteration, but platform resources are released
	// only once Close is called afterward.
	RequestClose()

	// Close closes the window and releases platform resources.
	Close() error

	// PollEvents processes one iteration of the platform event loop without
	// blocking, invoking registered callbacks and publishing to Events().
	// Returns false once the window should close.
	PollEvents() bool

	// ProcessMessages runs the window message loop until closed, calling the
	// update callback (if set) once per iteration.
	ProcessMessages()

	// Width returns the current window client area width in pixels.
	Width() int

	// Height returns the current window client area height in pixels.
	Height() int

	// AspectRatio returns Width()/Height(), or 1 if Height() is 0.
	AspectRatio() float32
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title                                     string
	maxWidth, maxHeight, minWidth, minHeight   int
	width, height                              int
	internalWindow                             any
	events                                     chan Event

	onUpdate          func()
	onResize          func(width, height int)
	onScroll          func(delta float32)
	onKeyDown         func(keyCode uint32)
	onKeyUp           func(keyCode uint32)
	onMiddleMouseDown func(x, y int32)
	onMiddleMouseUp   func(x, y int32)
	onMouseMove       func(x, y int32)
}

var _ Window = &engineWindow{}

// NewWindow creates a new Window with the specified options, applying
// defaults first and then each option in order.
func NewWindow(options ...BuilderOption) Window {
	w := &engineWindow{
		title:     "glitch",
		maxWidth:  1600,
		maxHeight: 1200,
		minWidth:  600,
		minHeight: 200,
		width:     1280,
		height:    720,
		events:    make(chan Event, 256),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) publish(e Event) {
	select {
	case w.events <- e:
	default:
		// Drop rather than block the platform event thread; Events() is a
		// best-effort secondary surface, the per-kind callbacks are primary.
	}
}

func (w *engineWindow) SetUpdateCallback(callback func()) { w.onUpdate = callback }

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) { w.onScroll = callback }

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) { w.onKeyDown = callback }

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) { w.onKeyUp = callback }

func (w *engineWindow) SetMiddleMouseDownCallback(callback func(x, y int32)) {
	w.onMiddleMouseDown = callback
}

func (w *engineWindow) SetMiddleMouseUpCallback(callback func(x, y int32)) {
	w.onMiddleMouseUp = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) { w.onMouseMove = callback }

func (w *engineWindow) Events() <-chan Event { return w.events }

func (w *engineWindow) SetCursorMode(mode CursorMode) { platformSetCursorMode(w, mode) }

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool { return platformIsRunningCheck(w) }

func (w *engineWindow) RequestClose() { platformRequestClose(w) }

func (w *engineWindow) Close() error {
	close(w.events)
	return platformCloseWindow(w)
}

func (w *engineWindow) PollEvents() bool { return platformProcessMessages(w) }

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !w.PollEvents() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int  { return w.width }
func (w *engineWindow) Height() int { return w.height }

func (w *engineWindow) AspectRatio() float32 {
	if w.height == 0 {
		return 1
	}
	return float32(w.width) / float32(w.height)
}
