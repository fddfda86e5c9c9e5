// Package window drives a GLFW window without a client API. Frames are presented through a wgpu
// surface created from SurfaceDescriptor.
package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// InputHandler receives input events. Nil fields are skipped.
type InputHandler struct {
	// OnKey receives a GLFW key code with true on press and repeat, false on release.
	OnKey func(keyCode uint32, pressed bool)

	// OnScroll receives the vertical scroll delta. Positive scrolls up.
	OnScroll func(delta float32)

	// OnDrag receives the cursor movement in pixels while the middle mouse button is held.
	OnDrag func(dx, dy float32)
}

// Window provides platform windowing and input event handling.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetInputHandler replaces the input callbacks.
	SetInputHandler(handler InputHandler)

	// SurfaceDescriptor returns a platform-appropriate descriptor for creating a wgpu surface, built by
	// the wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true until the window is closed.
	IsRunning() bool

	// Close destroys the window and terminates GLFW.
	//
	// Returns:
	//   - error: if the window was never initialized
	Close() error

	// ProcessMessages polls events and calls the update callback until the window is closed.
	ProcessMessages()

	// Extent returns the framebuffer size in pixels. It is zero while the window is minimized.
	Extent() common.Extent

	// Title returns the window title.
	Title() string
}

type engineWindow struct {
	title string

	minWidth, minHeight int
	maxWidth, maxHeight int
	width, height       int

	internalWindow any

	onUpdate func()
	onResize func(width, height int)
	input    InputHandler
	drag     dragTracker
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. It panics if GLFW cannot create one.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
func NewWindow(options ...WindowBuilderOption) Window {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:     "oxy-xr",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  320,
		minHeight: 240,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = max(w.minWidth, min(w.width, w.maxWidth))
	w.height = max(w.minHeight, min(w.height, w.maxHeight))
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetInputHandler(handler InputHandler) {
	w.input = handler
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Extent() common.Extent {
	if w.width <= 0 || w.height <= 0 {
		return common.Extent{}
	}
	return common.NewExtent(uint32(w.width), uint32(w.height))
}

func (w *engineWindow) Title() string {
	return w.title
}

// resized records the framebuffer size and forwards it.
func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) key(keyCode uint32, pressed bool) {
	if w.input.OnKey != nil {
		w.input.OnKey(keyCode, pressed)
	}
}

func (w *engineWindow) scroll(delta float32) {
	if w.input.OnScroll != nil {
		w.input.OnScroll(delta)
	}
}

func (w *engineWindow) cursorMoved(x, y float64) {
	dx, dy, ok := w.drag.move(x, y)
	if ok && w.input.OnDrag != nil {
		w.input.OnDrag(dx, dy)
	}
}

// dragTracker turns absolute cursor positions into deltas while a button is held.
type dragTracker struct {
	active bool
	x, y   float64
}

func (d *dragTracker) press(x, y float64) {
	d.active = true
	d.x, d.y = x, y
}

func (d *dragTracker) release() {
	d.active = false
}

func (d *dragTracker) move(x, y float64) (float32, float32, bool) {
	if !d.active {
		return 0, 0, false
	}
	dx, dy := float32(x-d.x), float32(y-d.y)
	d.x, d.y = x, y
	return dx, dy, dx != 0 || dy != 0
}
