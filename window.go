package meshview

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// LayoutFunc positions a viewer within the window. It is called once at
// attach time and again on every framebuffer resize.
type LayoutFunc func(width, height int) ViewportRect

// FullWindow lays a viewer over the whole framebuffer.
func FullWindow(width, height int) ViewportRect {
	return ViewportRect{Left: 0, Bottom: 0, Width: width, Height: height}
}

type attachedViewer struct {
	viewer *Viewer
	layout LayoutFunc
}

// Window hosts one or more viewers in a glfw window backed by a webgpu
// surface. It owns the render loop and routes pointer events to viewers by
// viewport hit testing.
//
// All methods must be called from the main goroutine; NewWindow locks the
// OS thread.
type Window struct {
	log Logger

	win     *glfw.Window
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	gpu     *WgpuDevice
	config  wgpu.SurfaceConfiguration

	viewers []attachedViewer
	grabbed *Viewer
	lastPos mgl32.Vec2 // window coords, y up
	buttons int

	clear wgpu.Color
}

func NewWindow(width, height int, title string, log Logger) (*Window, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("request device: %w", err)
	}

	w := &Window{
		log:     orNopLogger(log),
		win:     win,
		surface: surface,
		adapter: adapter,
		device:  device,
		clear:   wgpu.Color{R: 0.12, G: 0.12, B: 0.13, A: 1},
	}

	fbW, fbH := win.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	w.config = wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(fbW),
		Height:      uint32(fbH),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &w.config)

	w.gpu, err = NewWgpuDevice(device, w.config.Format, w.log)
	if err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, err
	}
	if err := w.gpu.ConfigureSize(fbW, fbH); err != nil {
		win.Destroy()
		glfw.Terminate()
		return nil, err
	}

	w.installCallbacks()
	return w, nil
}

// Device exposes the GPU device so callers can bind viewers created with it.
func (w *Window) Device() Device { return w.gpu }

// SetClearColor sets the background for the whole surface.
func (w *Window) SetClearColor(c wgpu.Color) { w.clear = c }

// Attach registers a viewer and lays it out against the current framebuffer.
// The viewer must have been created with this window's Device.
func (w *Window) Attach(v *Viewer, layout LayoutFunc) ViewportRect {
	w.viewers = append(w.viewers, attachedViewer{viewer: v, layout: layout})
	fbW, fbH := w.win.GetFramebufferSize()
	rect := layout(fbW, fbH)
	v.OnViewportResize(rect)
	return rect
}

func (w *Window) installCallbacks() {
	w.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		w.config.Width = uint32(width)
		w.config.Height = uint32(height)
		w.surface.Configure(w.adapter, w.device, &w.config)
		if err := w.gpu.ConfigureSize(width, height); err != nil {
			w.log.Errorf("resize %dx%d: %v", width, height, err)
			return
		}
		for _, av := range w.viewers {
			av.viewer.OnViewportResize(av.layout(width, height))
		}
	})

	w.win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		p := w.cursorPos()
		switch action {
		case glfw.Press:
			w.buttons++
			if w.grabbed == nil {
				if v := w.viewerAt(p); v != nil {
					w.grabbed = v
					v.OnPointerDown(w.toLocal(v, p), toMouseButton(button), toModifiers(mods))
				}
			}
		case glfw.Release:
			if w.buttons > 0 {
				w.buttons--
			}
			if w.buttons == 0 {
				w.grabbed = nil
			}
		}
		w.lastPos = p
	})

	w.win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		p := w.windowPoint(xpos, ypos)
		if w.grabbed != nil {
			delta := p.Sub(w.lastPos)
			w.grabbed.OnPointerDrag(w.toLocal(w.grabbed, p), delta)
		}
		w.lastPos = p
	})

	w.win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		v := w.grabbed
		if v == nil {
			v = w.viewerAt(w.cursorPos())
		}
		if v != nil {
			v.OnScroll(float32(yoff))
		}
	})
}

// cursorPos returns the cursor in framebuffer pixels with y up.
func (w *Window) cursorPos() mgl32.Vec2 {
	x, y := w.win.GetCursorPos()
	return w.windowPoint(x, y)
}

func (w *Window) windowPoint(x, y float64) mgl32.Vec2 {
	fbW, fbH := w.win.GetFramebufferSize()
	winW, winH := w.win.GetSize()
	return framebufferPoint(x, y, winW, winH, fbW, fbH)
}

// framebufferPoint converts a cursor position from glfw window coordinates
// into framebuffer pixels with y up. Viewport rects are laid out in
// framebuffer pixels, and on scaled displays the two spaces differ by the
// content scale, so the cursor must be scaled before hit testing.
func framebufferPoint(x, y float64, winW, winH, fbW, fbH int) mgl32.Vec2 {
	if winW > 0 && winW != fbW {
		x *= float64(fbW) / float64(winW)
	}
	if winH > 0 && winH != fbH {
		y *= float64(fbH) / float64(winH)
	}
	return mgl32.Vec2{float32(x), float32(fbH) - float32(y)}
}

func (w *Window) viewerAt(p mgl32.Vec2) *Viewer {
	// Later-attached viewers win, matching draw order.
	for i := len(w.viewers) - 1; i >= 0; i-- {
		v := w.viewers[i].viewer
		if v.Rect().ContainsWindow(p.X(), p.Y()) {
			return v
		}
	}
	return nil
}

func (w *Window) toLocal(v *Viewer, p mgl32.Vec2) mgl32.Vec2 {
	r := v.Rect()
	return mgl32.Vec2{p.X() - float32(r.Left), p.Y() - float32(r.Bottom)}
}

func toMouseButton(b glfw.MouseButton) MouseButton {
	switch b {
	case glfw.MouseButtonRight:
		return MouseRight
	case glfw.MouseButtonMiddle:
		return MouseMiddle
	default:
		return MouseLeft
	}
}

func toModifiers(m glfw.ModifierKey) ModifierKey {
	var mods ModifierKey
	if m&glfw.ModShift != 0 {
		mods |= ModShift
	}
	if m&glfw.ModControl != 0 {
		mods |= ModControl
	}
	if m&glfw.ModAlt != 0 {
		mods |= ModAlt
	}
	return mods
}

// Run drives the render loop until the window closes or frame returns an
// error. frame, when non-nil, runs once per frame before drawing.
func (w *Window) Run(frame func() error) error {
	for !w.win.ShouldClose() {
		glfw.PollEvents()

		if frame != nil {
			if err := frame(); err != nil {
				return err
			}
		}
		if err := w.renderFrame(); err != nil {
			w.log.Errorf("frame: %v", err)
		}
	}
	return nil
}

func (w *Window) renderFrame() error {
	nextTexture, err := w.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("surface texture: %w", err)
	}
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("surface view: %w", err)
	}
	defer view.Release()

	encoder, err := w.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	pass := NewWgpuPass(w.gpu)
	for _, av := range w.viewers {
		if err := av.viewer.Draw(pass); err != nil {
			w.log.Errorf("viewer draw: %v", err)
		}
	}
	if err := pass.Encode(encoder, view, w.clear); err != nil {
		return err
	}

	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	defer cmdBuffer.Release()

	w.gpu.queue.Submit(cmdBuffer)
	w.surface.Present()
	return nil
}

// Destroy tears down the window and GPU resources. Attached viewers should
// be unbound first.
func (w *Window) Destroy() {
	w.win.Destroy()
	glfw.Terminate()
}
