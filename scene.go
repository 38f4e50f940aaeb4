package meshview

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// GeometryID is the stable identity of one piece of geometry inside a bound
// scene. The renderable cache keys GPU resources on it.
type GeometryID string

func makeGeometryID() GeometryID {
	return GeometryID(uuid.NewString())
}

// Vertex is the interleaved vertex layout every geometry uses. The tags
// drive the reflective wgpu vertex buffer layout.
type Vertex struct {
	Position mgl32.Vec3 `meshview:"layout" format:"float32x3" location:"0"`
	Normal   mgl32.Vec3 `meshview:"layout" format:"float32x3" location:"1"`
	UV       mgl32.Vec2 `meshview:"layout" format:"float32x2" location:"2"`
	Color    [4]uint8   `meshview:"layout" format:"unorm8x4" location:"3"`
}

// Geometry is CPU-side mesh data. It is read-only once handed to a scene.
type Geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// Material describes the appearance of a geometry node. When Image is set
// the cache uploads it as the node's texture; nodes whose material cannot
// be converted draw untextured.
type Material struct {
	Image image.Image
}

// GeometryNode is one entry of the logical scene graph: an identity, a
// local transform, and references to geometry and an optional material.
type GeometryNode struct {
	ID        GeometryID
	Transform mgl32.Mat4
	Geometry  *Geometry
	Material  *Material
}

// Scene is the contract the viewer consumes from the scene-graph
// collaborator: node enumeration plus the bounding data the trackball is
// seeded with at bind time.
type Scene interface {
	Nodes() []GeometryNode
	Centroid() mgl32.Vec3
	Extent() float32
	CameraFovY() float32
}

// MeshScene is a concrete Scene: a flat container of geometry nodes that
// tracks its own bounding box.
type MeshScene struct {
	nodes     []GeometryNode
	boundsMin mgl32.Vec3
	boundsMax mgl32.Vec3
	hasBounds bool
	fovY      float32
}

func NewMeshScene() *MeshScene {
	return &MeshScene{fovY: 60}
}

// SetCameraFovY overrides the vertical field of view, in degrees.
func (s *MeshScene) SetCameraFovY(deg float32) {
	if deg > 0 {
		s.fovY = deg
	}
}

// Add inserts a geometry under a fresh identity and returns it. The
// material may be nil.
func (s *MeshScene) Add(geom *Geometry, transform mgl32.Mat4, mat *Material) GeometryID {
	id := makeGeometryID()
	s.AddNode(GeometryNode{
		ID:        id,
		Transform: transform,
		Geometry:  geom,
		Material:  mat,
	})
	return id
}

// AddNode inserts a node as-is; callers that need stable identities across
// scenes supply their own ID.
func (s *MeshScene) AddNode(node GeometryNode) {
	if node.ID == "" {
		node.ID = makeGeometryID()
	}
	s.nodes = append(s.nodes, node)
	s.growBounds(node)
}

func (s *MeshScene) growBounds(node GeometryNode) {
	if node.Geometry == nil {
		return
	}
	for _, v := range node.Geometry.Vertices {
		p := node.Transform.Mul4x1(v.Position.Vec4(1)).Vec3()
		if !s.hasBounds {
			s.boundsMin, s.boundsMax = p, p
			s.hasBounds = true
			continue
		}
		for i := 0; i < 3; i++ {
			if p[i] < s.boundsMin[i] {
				s.boundsMin[i] = p[i]
			}
			if p[i] > s.boundsMax[i] {
				s.boundsMax[i] = p[i]
			}
		}
	}
}

func (s *MeshScene) Nodes() []GeometryNode { return s.nodes }

// Centroid returns the centre of the scene's bounding box.
func (s *MeshScene) Centroid() mgl32.Vec3 {
	if !s.hasBounds {
		return mgl32.Vec3{}
	}
	return s.boundsMin.Add(s.boundsMax).Mul(0.5)
}

// Extent returns the bounding box diagonal, the scale navigation speeds are
// relative to. An empty scene reports 1 so navigation stays usable.
func (s *MeshScene) Extent() float32 {
	if !s.hasBounds {
		return 1
	}
	e := s.boundsMax.Sub(s.boundsMin).Len()
	if e <= 0 {
		return 1
	}
	return e
}

func (s *MeshScene) CameraFovY() float32 { return s.fovY }
