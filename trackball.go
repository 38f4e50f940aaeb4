package meshview

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DragMode selects how pointer motion is interpreted. The mode is fixed at
// gesture start and holds until the next Begin.
type DragMode int

const (
	DragRotate DragMode = iota
	DragPan
)

// zoomPerScroll is the fraction of the scene extent travelled per scroll
// unit, so zoom speed scales with the scene being viewed.
const zoomPerScroll = 0.1

// NavState bundles the navigation state of one viewport: an orientation,
// pan and zoom accumulators, and the fixed pivot/extent of the bound scene.
// It is a plain value; ViewTransform derives the view matrix from it.
type NavState struct {
	Rotation mgl32.Quat
	Pan      mgl32.Vec3 // camera-frame offset, in units of the scene extent
	Zoom     float32    // camera-frame Z translation, world units
	Pivot    mgl32.Vec3 // rotation centre, typically the scene centroid
	Scale    float32    // scene extent
}

func NewNavState(pivot mgl32.Vec3, scale float32) NavState {
	if scale <= 0 {
		scale = 1
	}
	return NavState{
		Rotation: mgl32.QuatIdent(),
		Pivot:    pivot,
		Scale:    scale,
	}
}

// ViewTransform composes the view matrix for a navigation state. The
// rotation happens about the pivot no matter how much pan/zoom has
// accumulated: the translation column is pivot - R*pivot plus the
// camera-frame pan (scaled by the scene extent) and zoom offsets.
//
// The function is pure; equal states yield bitwise-equal matrices.
func ViewTransform(s NavState) mgl32.Mat4 {
	m := s.Rotation.Mat4()
	t := s.Pivot.Sub(s.Rotation.Rotate(s.Pivot)).
		Add(s.Pan.Mul(s.Scale)).
		Add(mgl32.Vec3{0, 0, s.Zoom})
	m.SetCol(3, t.Vec4(1))
	return m
}

// Trackball converts pointer gestures into a NavState. Pointer positions
// are viewport-local pixels with y up. One instance belongs to exactly one
// viewport.
type Trackball struct {
	state  NavState
	anchor NavState   // state snapshot taken at gesture start
	down   mgl32.Vec2 // pointer position at gesture start
	mode   DragMode
	width  float32
	height float32
}

func NewTrackball(width, height int, pivot mgl32.Vec3, scale float32) *Trackball {
	t := &Trackball{state: NewNavState(pivot, scale)}
	t.Resize(width, height)
	return t
}

// Resize records the new viewport dimensions. Orientation, pan and zoom are
// untouched; only the pixel-to-sphere and pixel-to-pan mappings change.
func (t *Trackball) Resize(width, height int) {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	t.width = float32(width)
	t.height = float32(height)
}

// Begin starts a gesture at p. Calling Begin again before any Drag simply
// re-records the start point.
func (t *Trackball) Begin(p mgl32.Vec2, mode DragMode) {
	t.down = p
	t.anchor = t.state
	t.mode = mode
}

// Restart re-anchors the running gesture at p, keeping its mode. Used when
// a drag re-enters the viewport from outside so the jump across the border
// does not turn into a rotation.
func (t *Trackball) Restart(p mgl32.Vec2) {
	t.Begin(p, t.mode)
}

// Drag updates the state from the current pointer position. The update is
// always computed against the gesture's start point and anchor state, so
// dragging back to the start restores the anchor exactly.
func (t *Trackball) Drag(p mgl32.Vec2) {
	switch t.mode {
	case DragRotate:
		dq := arcRotation(t.down, p, t.width, t.height)
		t.state.Rotation = dq.Mul(t.anchor.Rotation).Normalize()
	case DragPan:
		d := p.Sub(t.down)
		t.state.Pan = t.anchor.Pan.Add(mgl32.Vec3{
			d.X() / t.width,
			d.Y() / t.height,
			0,
		})
	}
}

// Scroll zooms by a fixed fraction of the scene extent per scroll unit.
// Positive delta zooms in.
func (t *Trackball) Scroll(delta float32) {
	t.state.Zoom += delta * zoomPerScroll * t.state.Scale
}

func (t *Trackball) State() NavState { return t.state }

// Pose returns the view matrix for the current state.
func (t *Trackball) Pose() mgl32.Mat4 { return ViewTransform(t.state) }

// arcRotation maps both pointer positions onto the unit hemisphere over the
// viewport and returns the rotation carrying the first to the second
// (axis = cross product, angle = arc between the two vectors). A degenerate
// arc yields the identity rather than a rotation about a garbage axis.
func arcRotation(from, to mgl32.Vec2, width, height float32) mgl32.Quat {
	v0 := hemispherePoint(from, width, height)
	v1 := hemispherePoint(to, width, height)

	axis := v0.Cross(v1)
	if axis.Len() < 1e-7 {
		return mgl32.QuatIdent()
	}

	dot := v0.Dot(v1)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angle := float32(math.Acos(float64(dot)))
	return mgl32.QuatRotate(angle, axis.Normalize())
}

// hemispherePoint projects a viewport-local pixel position onto a unit
// hemisphere centred on the viewport, z toward the viewer. Points outside
// the sphere radius clamp to the equator.
func hemispherePoint(p mgl32.Vec2, width, height float32) mgl32.Vec3 {
	r := width
	if height < width {
		r = height
	}
	r /= 2

	x := (p.X() - width/2) / r
	y := (p.Y() - height/2) / r
	d := x*x + y*y
	if d > 1 {
		inv := 1 / float32(math.Sqrt(float64(d)))
		return mgl32.Vec3{x * inv, y * inv, 0}
	}
	return mgl32.Vec3{x, y, float32(math.Sqrt(float64(1 - d)))}
}
