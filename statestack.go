package meshview

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// StateStack applies render groups to a Pass under a strict nesting
// discipline: scene state (clip, projection, view) outermost, mesh
// transforms innermost. Every enter has exactly one matching exit on every
// code path; Scoped guarantees that with a defer. A mismatched or
// out-of-order exit means the shared render state is corrupted and cannot
// be continued from, so it panics instead of being tolerated.
type StateStack struct {
	tree   *GroupTree
	pass   Pass
	frames []stackFrame
}

// stackFrame is the composed state at one nesting level. Entering a group
// copies the parent frame and folds the group's deltas in, so exiting is
// just dropping the frame.
type stackFrame struct {
	id       GroupID
	viewProj mgl32.Mat4
	model    mgl32.Mat4
	texture  Texture
	clipped  bool
}

func NewStateStack(tree *GroupTree, pass Pass) *StateStack {
	return &StateStack{tree: tree, pass: pass}
}

// Depth returns the number of open groups.
func (s *StateStack) Depth() int { return len(s.frames) }

// Scoped enters the group, runs fn, and always exits, including when fn
// returns an error or panics.
func (s *StateStack) Scoped(id GroupID, fn func() error) error {
	s.enter(id)
	defer s.exit(id)
	return fn()
}

// DrawMesh issues a draw for mesh under the currently open state. A mesh
// group must be open.
func (s *StateStack) DrawMesh(mesh MeshBuffers) error {
	top := s.top()
	if top == nil || s.tree.group(top.id).kind != groupMesh {
		panic("meshview: DrawMesh outside a mesh group")
	}
	mvp := top.viewProj.Mul4(top.model)
	return s.pass.Draw(mesh, top.texture, mvp, top.model)
}

func (s *StateStack) enter(id GroupID) {
	g := s.tree.group(id)

	var frame stackFrame
	if top := s.top(); top != nil {
		frame = *top
	} else {
		frame.model = mgl32.Ident4()
	}

	switch g.kind {
	case groupScene:
		if frame.clipped {
			// Scene state nests only under other scene state; a scene
			// group inside a mesh group breaks the fixed order.
			if s.tree.group(frame.id).kind == groupMesh {
				panic(fmt.Sprintf("meshview: scene group %d entered inside mesh group %d", id, frame.id))
			}
		}
		s.pass.PushClip(g.rect)
		frame.clipped = true
		frame.viewProj = g.proj.Matrix(g.rect.Aspect()).Mul4(g.view)
		frame.model = mgl32.Ident4()
		frame.texture = nil
	case groupMesh:
		if !frame.clipped {
			panic(fmt.Sprintf("meshview: mesh group %d entered with no scene group open", id))
		}
		frame.model = frame.model.Mul4(g.model)
		frame.texture = g.texture
	}

	frame.id = id
	s.frames = append(s.frames, frame)
}

func (s *StateStack) exit(id GroupID) {
	if len(s.frames) == 0 {
		panic(fmt.Sprintf("meshview: exit of group %d with empty render state stack", id))
	}
	top := s.frames[len(s.frames)-1]
	if top.id != id {
		panic(fmt.Sprintf("meshview: out-of-order render state exit: group %d open, group %d popped", top.id, id))
	}
	if s.tree.group(id).kind == groupScene {
		s.pass.PopClip()
	}
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *StateStack) top() *stackFrame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}
