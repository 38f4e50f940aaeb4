package meshview

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Renderable is the GPU-resident representation of one geometry node: its
// buffers and texture, plus the mesh group it currently draws under.
type Renderable struct {
	ID        GeometryID
	Mesh      MeshBuffers
	Texture   Texture
	Group     GroupID
	Transform mgl32.Mat4
}

// RenderableCache maps scene geometry to GPU resources exactly once per
// bound scene, keyed by geometry identity. Layout changes re-parent cached
// entries to a new scene group; they never rebuild buffers.
type RenderableCache struct {
	device  Device
	log     Logger
	entries map[GeometryID]*Renderable
	order   []GeometryID // insertion order, for deterministic draws
	builds  int
}

func NewRenderableCache(device Device, log Logger) *RenderableCache {
	return &RenderableCache{
		device:  device,
		log:     orNopLogger(log),
		entries: make(map[GeometryID]*Renderable),
	}
}

// Sync builds a renderable for every scene node not yet cached, parenting
// it under the given scene group. Nodes already cached are left untouched,
// so calling Sync repeatedly on an unchanged scene builds nothing.
//
// Per-node failures are isolated: a node whose buffers cannot be created is
// logged and skipped, and a node whose material cannot become a texture is
// cached untextured.
func (c *RenderableCache) Sync(scene Scene, tree *GroupTree, parent GroupID) {
	if scene == nil {
		return
	}
	for _, node := range scene.Nodes() {
		if node.ID == "" || node.Geometry == nil || len(node.Geometry.Vertices) == 0 {
			c.log.Warnf("skipping malformed scene node %q", node.ID)
			continue
		}
		if _, ok := c.entries[node.ID]; ok {
			continue
		}

		mesh, err := c.device.CreateMesh(node.Geometry)
		if err != nil {
			c.log.Errorf("mesh buffers for %s: %v", node.ID, err)
			continue
		}

		var tex Texture
		if node.Material != nil && node.Material.Image != nil {
			tex, err = c.device.CreateTexture(node.Material.Image)
			if err != nil {
				c.log.Warnf("texture for %s: %v; drawing untextured", node.ID, err)
				tex = nil
			}
		}

		c.entries[node.ID] = &Renderable{
			ID:        node.ID,
			Mesh:      mesh,
			Texture:   tex,
			Group:     tree.AddMeshGroup(parent, node.Transform, tex),
			Transform: node.Transform,
		}
		c.order = append(c.order, node.ID)
		c.builds++
	}
}

// Reparent reassigns every cached renderable to a fresh mesh group under
// the new scene group. GPU buffers and textures are not touched; the set of
// cached identities does not change.
func (c *RenderableCache) Reparent(tree *GroupTree, parent GroupID) {
	for _, id := range c.order {
		r := c.entries[id]
		r.Group = tree.AddMeshGroup(parent, r.Transform, r.Texture)
	}
}

// Release destroys all cached GPU resources. Safe to call when nothing is
// cached.
func (c *RenderableCache) Release() {
	for _, id := range c.order {
		r := c.entries[id]
		if r.Mesh != nil {
			r.Mesh.Destroy()
		}
		if r.Texture != nil {
			r.Texture.Destroy()
		}
	}
	c.entries = make(map[GeometryID]*Renderable)
	c.order = nil
}

// Renderables returns the cached entries in insertion order.
func (c *RenderableCache) Renderables() []*Renderable {
	out := make([]*Renderable, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

func (c *RenderableCache) Len() int { return len(c.entries) }

// Builds reports how many renderables have been built since the cache was
// created, across Release cycles.
func (c *RenderableCache) Builds() int { return c.builds }
