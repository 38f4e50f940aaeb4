package meshview

import (
	"image"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeshSceneBounds(t *testing.T) {
	s := NewMeshScene()
	s.Add(NewBoxGeometry(2, 2, 2, white), mgl32.Translate3D(-1, 0, 0), nil)
	s.Add(NewBoxGeometry(2, 2, 2, white), mgl32.Translate3D(3, 0, 0), nil)

	c := s.Centroid()
	assert.InDelta(t, 1, c.X(), 1e-5)
	assert.InDelta(t, 0, c.Y(), 1e-5)
	assert.InDelta(t, 0, c.Z(), 1e-5)

	// Bounds span (-2,-1,-1)..(4,1,1); extent is the diagonal length.
	want := float32(math.Sqrt(6*6 + 2*2 + 2*2))
	assert.InDelta(t, want, s.Extent(), 1e-4)
}

func TestMeshSceneTransformGrowsBounds(t *testing.T) {
	s := NewMeshScene()
	s.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Scale3D(4, 1, 1), nil)
	assert.Greater(t, s.Extent(), float32(4))
}

func TestEmptySceneDefaults(t *testing.T) {
	s := NewMeshScene()
	assert.Equal(t, mgl32.Vec3{}, s.Centroid())
	assert.Equal(t, float32(1), s.Extent())
}

func TestAddAssignsUniqueIDs(t *testing.T) {
	s := NewMeshScene()
	a := s.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), nil)
	b := s.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), nil)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestAddNodeKeepsCallerID(t *testing.T) {
	s := NewMeshScene()
	s.AddNode(GeometryNode{
		ID:        "stable",
		Geometry:  NewBoxGeometry(1, 1, 1, white),
		Transform: mgl32.Ident4(),
	})
	require.Len(t, s.Nodes(), 1)
	assert.Equal(t, GeometryID("stable"), s.Nodes()[0].ID)
}

func TestViewportRectContains(t *testing.T) {
	r := ViewportRect{Left: 100, Bottom: 50, Width: 200, Height: 100}

	assert.True(t, r.Contains(mgl32.Vec2{0, 0}))
	assert.True(t, r.Contains(mgl32.Vec2{200, 100}))
	assert.False(t, r.Contains(mgl32.Vec2{-1, 10}))
	assert.False(t, r.Contains(mgl32.Vec2{10, 101}))

	assert.True(t, r.ContainsWindow(150, 100))
	assert.False(t, r.ContainsWindow(50, 100))
	assert.False(t, r.ContainsWindow(150, 10))
}

func TestViewportAspect(t *testing.T) {
	assert.InDelta(t, 2, ViewportRect{Width: 200, Height: 100}.Aspect(), 1e-6)
	assert.Equal(t, float32(1), ViewportRect{Width: 200}.Aspect())
}

func TestDragModeFor(t *testing.T) {
	assert.Equal(t, DragRotate, DragModeFor(MouseLeft, 0))
	assert.Equal(t, DragRotate, DragModeFor(MouseRight, ModControl))
	assert.Equal(t, DragPan, DragModeFor(MouseMiddle, 0))
	assert.Equal(t, DragPan, DragModeFor(MouseLeft, ModShift))
	assert.Equal(t, DragPan, DragModeFor(MouseLeft, ModShift|ModAlt))
}

func TestMaterialTexelsPassThrough(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	out, err := materialTexels(&Material{Image: src}, 64)
	require.NoError(t, err)
	assert.Equal(t, 8, out.Bounds().Dx())
	assert.Equal(t, 4, out.Bounds().Dy())
}

func TestMaterialTexelsDownscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 40))
	out, err := materialTexels(&Material{Image: src}, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy(), "aspect ratio must survive the downscale")
}

func TestMaterialTexelsRejectsMissingImage(t *testing.T) {
	_, err := materialTexels(nil, 64)
	assert.ErrorIs(t, err, errNoMaterialImage)
	_, err = materialTexels(&Material{}, 64)
	assert.ErrorIs(t, err, errNoMaterialImage)
}

func TestBoxGeometryShape(t *testing.T) {
	g := NewBoxGeometry(2, 4, 6, white)
	assert.Len(t, g.Vertices, 24)
	assert.Len(t, g.Indices, 36)

	var max mgl32.Vec3
	for _, v := range g.Vertices {
		for i := 0; i < 3; i++ {
			if v.Position[i] > max[i] {
				max[i] = v.Position[i]
			}
		}
	}
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, max)
}

func TestAxisGeometryShape(t *testing.T) {
	g := NewAxisGeometry(1)
	// origin cube plus three bars
	assert.Len(t, g.Vertices, 4*24)
	assert.Len(t, g.Indices, 4*36)
}

func TestAnnulusGeometryShape(t *testing.T) {
	g := NewAnnulusGeometry(1, 2, 0.5, 16)
	// four quads per segment
	assert.Len(t, g.Vertices, 16*4*4)
	assert.Len(t, g.Indices, 16*4*6)

	for _, v := range g.Vertices {
		r := mgl32.Vec2{v.Position.X(), v.Position.Y()}.Len()
		assert.GreaterOrEqual(t, r, float32(1)-1e-4)
		assert.LessOrEqual(t, r, float32(2)+1e-4)
	}
}

func TestIndexBoundsValid(t *testing.T) {
	for name, g := range map[string]*Geometry{
		"box":     NewBoxGeometry(1, 1, 1, white),
		"axis":    NewAxisGeometry(1),
		"annulus": NewAnnulusGeometry(0.5, 1, 0.2, 12),
	} {
		for _, idx := range g.Indices {
			require.Less(t, int(idx), len(g.Vertices), "%s index out of range", name)
		}
	}
}
