package meshview

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Procedural geometry for demos and tests: an axis marker, a box and an
// annulus. Colors ride in the vertex stream so the default material needs
// no texture.

var white = [4]uint8{255, 255, 255, 255}

// NewBoxGeometry builds an axis-aligned box centred at the origin.
func NewBoxGeometry(sizeX, sizeY, sizeZ float32, color [4]uint8) *Geometry {
	g := &Geometry{}
	appendBox(g, mgl32.Vec3{}, mgl32.Vec3{sizeX / 2, sizeY / 2, sizeZ / 2}, color)
	return g
}

// NewAxisGeometry builds an RGB axis marker: a white cube at the origin and
// a red/green/blue bar along +X/+Y/+Z. size is the bar length.
func NewAxisGeometry(size float32) *Geometry {
	g := &Geometry{}
	t := size * 0.1 // bar thickness

	appendBox(g, mgl32.Vec3{}, mgl32.Vec3{t, t, t}.Mul(1.5), white)
	appendBox(g, mgl32.Vec3{size / 2, 0, 0}, mgl32.Vec3{size / 2, t / 2, t / 2}, [4]uint8{230, 40, 40, 255})
	appendBox(g, mgl32.Vec3{0, size / 2, 0}, mgl32.Vec3{t / 2, size / 2, t / 2}, [4]uint8{40, 200, 40, 255})
	appendBox(g, mgl32.Vec3{0, 0, size / 2}, mgl32.Vec3{t / 2, t / 2, size / 2}, [4]uint8{40, 90, 230, 255})
	return g
}

// NewAnnulusGeometry builds a flat ring between innerRadius and outerRadius
// with the given height along Z, walls and caps included.
func NewAnnulusGeometry(innerRadius, outerRadius, height float32, segments int) *Geometry {
	if segments < 3 {
		segments = 32
	}
	g := &Geometry{}
	zTop, zBot := height/2, -height/2

	ring := func(radius float32) []mgl32.Vec2 {
		pts := make([]mgl32.Vec2, segments+1)
		for i := 0; i <= segments; i++ {
			a := 2 * math.Pi * float64(i) / float64(segments)
			pts[i] = mgl32.Vec2{
				radius * float32(math.Cos(a)),
				radius * float32(math.Sin(a)),
			}
		}
		return pts
	}
	inner, outer := ring(innerRadius), ring(outerRadius)

	// quad emits two triangles for the strip segment a0..a1 / b0..b1 with a
	// shared normal per corner.
	quad := func(a0, a1, b0, b1 mgl32.Vec3, n0, n1, n2, n3 mgl32.Vec3, u0, u1 float32) {
		base := uint32(len(g.Vertices))
		g.Vertices = append(g.Vertices,
			Vertex{Position: a0, Normal: n0, UV: mgl32.Vec2{u0, 0}, Color: white},
			Vertex{Position: a1, Normal: n1, UV: mgl32.Vec2{u1, 0}, Color: white},
			Vertex{Position: b0, Normal: n2, UV: mgl32.Vec2{u0, 1}, Color: white},
			Vertex{Position: b1, Normal: n3, UV: mgl32.Vec2{u1, 1}, Color: white},
		)
		g.Indices = append(g.Indices,
			base, base+1, base+2,
			base+2, base+1, base+3,
		)
	}

	up := mgl32.Vec3{0, 0, 1}
	down := mgl32.Vec3{0, 0, -1}
	for i := 0; i < segments; i++ {
		u0 := float32(i) / float32(segments)
		u1 := float32(i+1) / float32(segments)

		outN0 := mgl32.Vec3{outer[i].X(), outer[i].Y(), 0}.Normalize()
		outN1 := mgl32.Vec3{outer[i+1].X(), outer[i+1].Y(), 0}.Normalize()
		inN0 := mgl32.Vec3{-inner[i].X(), -inner[i].Y(), 0}.Normalize()
		inN1 := mgl32.Vec3{-inner[i+1].X(), -inner[i+1].Y(), 0}.Normalize()

		at := func(p mgl32.Vec2, z float32) mgl32.Vec3 { return mgl32.Vec3{p.X(), p.Y(), z} }

		// outer wall
		quad(at(outer[i], zBot), at(outer[i+1], zBot), at(outer[i], zTop), at(outer[i+1], zTop),
			outN0, outN1, outN0, outN1, u0, u1)
		// inner wall, wound the other way
		quad(at(inner[i+1], zBot), at(inner[i], zBot), at(inner[i+1], zTop), at(inner[i], zTop),
			inN1, inN0, inN1, inN0, u1, u0)
		// top cap
		quad(at(inner[i], zTop), at(inner[i+1], zTop), at(outer[i], zTop), at(outer[i+1], zTop),
			up, up, up, up, u0, u1)
		// bottom cap, wound the other way
		quad(at(inner[i+1], zBot), at(inner[i], zBot), at(outer[i+1], zBot), at(outer[i], zBot),
			down, down, down, down, u1, u0)
	}
	return g
}

// boxFaces: normal plus the two in-plane axes of each face, scaled by the
// half extents in appendBox.
var boxFaces = [6]struct {
	n, u, v mgl32.Vec3
}{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}},
}

func appendBox(g *Geometry, center, half mgl32.Vec3, color [4]uint8) {
	scaled := func(v mgl32.Vec3) mgl32.Vec3 {
		return mgl32.Vec3{v.X() * half.X(), v.Y() * half.Y(), v.Z() * half.Z()}
	}
	for _, f := range boxFaces {
		base := uint32(len(g.Vertices))
		n := scaled(f.n)
		u := scaled(f.u)
		v := scaled(f.v)
		corners := [4]mgl32.Vec3{
			center.Add(n).Sub(u).Sub(v),
			center.Add(n).Add(u).Sub(v),
			center.Add(n).Sub(u).Add(v),
			center.Add(n).Add(u).Add(v),
		}
		uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
		for i, c := range corners {
			g.Vertices = append(g.Vertices, Vertex{
				Position: c,
				Normal:   f.n,
				UV:       uvs[i],
				Color:    color,
			})
		}
		g.Indices = append(g.Indices,
			base, base+1, base+2,
			base+2, base+1, base+3,
		)
	}
}
