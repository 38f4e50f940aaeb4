package meshview

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// GroupID is an index handle into a GroupTree. The zero value means "no
// group"; valid handles start at 1.
type GroupID int

const NoGroup GroupID = 0

type groupKind int

const (
	groupScene groupKind = iota + 1
	groupMesh
)

// RenderGroup is one node of the render state tree. A scene group carries
// the state applied once per viewport (clip rectangle, projection, view
// matrix); a mesh group carries per-object state (model transform, optional
// texture). Parents are referenced by handle, never owned.
type RenderGroup struct {
	parent GroupID
	kind   groupKind

	// scene group state
	rect ViewportRect
	proj Projection
	view mgl32.Mat4

	// mesh group state
	model   mgl32.Mat4
	texture Texture
}

// GroupTree is arena storage for render groups. Index 0 is reserved so the
// zero GroupID stays invalid.
type GroupTree struct {
	groups []RenderGroup
}

func NewGroupTree() *GroupTree {
	return &GroupTree{groups: make([]RenderGroup, 1)}
}

// Reset discards every group. Handles issued before a Reset are dead; the
// viewer re-issues them on the next regroup.
func (t *GroupTree) Reset() {
	t.groups = t.groups[:1]
}

// AddSceneGroup appends a scene group and returns its handle. parent is
// NoGroup for a viewport root.
func (t *GroupTree) AddSceneGroup(parent GroupID, rect ViewportRect, proj Projection, view mgl32.Mat4) GroupID {
	t.groups = append(t.groups, RenderGroup{
		parent: parent,
		kind:   groupScene,
		rect:   rect,
		proj:   proj,
		view:   view,
	})
	return GroupID(len(t.groups) - 1)
}

// AddMeshGroup appends a mesh group under parent. texture may be nil.
func (t *GroupTree) AddMeshGroup(parent GroupID, model mgl32.Mat4, texture Texture) GroupID {
	t.groups = append(t.groups, RenderGroup{
		parent:  parent,
		kind:    groupMesh,
		model:   model,
		texture: texture,
	})
	return GroupID(len(t.groups) - 1)
}

// SetView replaces the view matrix of a scene group. Navigation events go
// through here; nothing else about the group changes.
func (t *GroupTree) SetView(id GroupID, view mgl32.Mat4) {
	g := t.group(id)
	if g.kind != groupScene {
		panic(fmt.Sprintf("meshview: SetView on non-scene group %d", id))
	}
	g.view = view
}

func (t *GroupTree) Len() int { return len(t.groups) - 1 }

func (t *GroupTree) group(id GroupID) *RenderGroup {
	if id <= NoGroup || int(id) >= len(t.groups) {
		panic(fmt.Sprintf("meshview: invalid group handle %d", id))
	}
	return &t.groups[id]
}
