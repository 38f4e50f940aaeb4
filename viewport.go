package meshview

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ViewportRect is the pixel rectangle assigned to a viewer inside its host
// window, with the origin at the bottom-left (y up).
type ViewportRect struct {
	Left   int
	Bottom int
	Width  int
	Height int
}

// Contains reports whether a viewport-local point lies inside the rectangle.
// The point is relative to (Left, Bottom).
func (r ViewportRect) Contains(p mgl32.Vec2) bool {
	return p.X() >= 0 && p.X() <= float32(r.Width) &&
		p.Y() >= 0 && p.Y() <= float32(r.Height)
}

// ContainsWindow reports whether a window-space point (same origin as the
// rect) lies inside the rectangle.
func (r ViewportRect) ContainsWindow(x, y float32) bool {
	return x >= float32(r.Left) && x <= float32(r.Left+r.Width) &&
		y >= float32(r.Bottom) && y <= float32(r.Bottom+r.Height)
}

func (r ViewportRect) Aspect() float32 {
	if r.Height <= 0 {
		return 1
	}
	return float32(r.Width) / float32(r.Height)
}

// Projection holds the perspective parameters of a scene group.
type Projection struct {
	FovY float32 // vertical field of view, degrees
	Near float32
	Far  float32
}

// DefaultProjection matches the fixed frustum the viewer uses when the scene
// does not specify a camera.
func DefaultProjection() Projection {
	return Projection{FovY: 60, Near: 0.01, Far: 1000}
}

func (p Projection) Matrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(p.FovY), aspect, p.Near, p.Far)
}
