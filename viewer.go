package meshview

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Phase is the viewer's synchronization state.
type Phase int

const (
	// Unbound: no scene or viewport associated.
	Unbound Phase = iota
	// BoundEmpty: scene assigned, cache not yet populated.
	BoundEmpty
	// BoundSynced: cache populated; draws reuse cached resources.
	BoundSynced
)

var errNilScene = errors.New("bind with nil scene")

// Viewer owns the navigation and GPU state of one viewport: a trackball, a
// renderable cache, and the render group tree tying them together. It is
// the single entry point the hosting window drives: pointer events, layout
// changes, and draw requests all come through here.
//
// All methods must be called from the thread owning the graphics context.
type Viewer struct {
	device Device
	log    Logger

	phase      Phase
	scene      Scene
	rect       ViewportRect
	proj       Projection
	trackball  *Trackball
	cache      *RenderableCache
	tree       *GroupTree
	sceneGroup GroupID
}

func NewViewer(device Device, log Logger) *Viewer {
	log = orNopLogger(log)
	return &Viewer{
		device: device,
		log:    log,
		cache:  NewRenderableCache(device, log),
	}
}

func (v *Viewer) Phase() Phase { return v.phase }

// Bind associates a scene and viewport rectangle with the viewer and seeds
// the trackball from the scene's bounding data. Rebinding while a scene is
// bound releases the prior scene's resources first, so at most one scene's
// worth of GPU resources exists at any time.
func (v *Viewer) Bind(scene Scene, rect ViewportRect) error {
	if scene == nil {
		return errNilScene
	}
	if v.phase != Unbound {
		v.Unbind()
	}

	v.scene = scene
	v.rect = rect
	v.proj = DefaultProjection()
	if fov := scene.CameraFovY(); fov > 0 {
		v.proj.FovY = fov
	}
	v.trackball = NewTrackball(rect.Width, rect.Height, scene.Centroid(), scene.Extent())
	v.tree = NewGroupTree()
	v.sceneGroup = NoGroup
	v.phase = BoundEmpty
	return nil
}

// Unbind releases all cached GPU resources and returns to Unbound. Valid
// from any state.
func (v *Viewer) Unbind() {
	if v.phase == Unbound {
		return
	}
	v.cache.Release()
	v.scene = nil
	v.trackball = nil
	v.tree = nil
	v.sceneGroup = NoGroup
	v.phase = Unbound
}

// Draw renders the bound scene into pass. The first draw after a bind
// populates the renderable cache; every later draw is a pure re-render of
// cached resources. Drawing while unbound is a no-op.
//
// A failing node is logged and skipped so the rest of the scene still
// draws; the first such error is returned after all nodes were attempted.
func (v *Viewer) Draw(pass Pass) error {
	if v.phase == Unbound {
		return nil
	}
	if v.phase == BoundEmpty {
		v.regroup()
		v.cache.Sync(v.scene, v.tree, v.sceneGroup)
		v.phase = BoundSynced
		v.log.Debugf("scene synced: %d renderables", v.cache.Len())
	}
	if v.cache.Len() == 0 {
		// Empty or fully malformed scene: nothing to draw, not an error.
		return nil
	}

	stack := NewStateStack(v.tree, pass)
	var firstErr error
	err := stack.Scoped(v.sceneGroup, func() error {
		for _, r := range v.cache.Renderables() {
			mesh := r.Mesh
			drawErr := stack.Scoped(r.Group, func() error {
				return stack.DrawMesh(mesh)
			})
			if drawErr != nil {
				v.log.Errorf("draw %s: %v", r.ID, drawErr)
				if firstErr == nil {
					firstErr = drawErr
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return firstErr
}

// OnPointerDown starts a gesture. The drag mode is fixed from the button
// and modifier state for the whole gesture. p is viewport-local, y up.
func (v *Viewer) OnPointerDown(p mgl32.Vec2, button MouseButton, mods ModifierKey) {
	if v.phase == Unbound {
		return
	}
	v.trackball.Begin(p, DragModeFor(button, mods))
	v.updateView()
}

// OnPointerDrag continues the running gesture. delta is the motion since
// the previous event; when the previous position lies outside the viewport
// the gesture re-anchors at p instead of rotating across the jump.
func (v *Viewer) OnPointerDrag(p, delta mgl32.Vec2) {
	if v.phase == Unbound {
		return
	}
	if prev := p.Sub(delta); !v.rect.Contains(prev) {
		v.trackball.Restart(p)
	}
	v.trackball.Drag(p)
	v.updateView()
}

// OnScroll zooms about the pivot.
func (v *Viewer) OnScroll(delta float32) {
	if v.phase == Unbound {
		return
	}
	v.trackball.Scroll(delta)
	v.updateView()
}

// OnViewportResize installs the new rectangle. Rotation, pan, zoom and
// pivot are untouched; cached renderables are re-parented under a scene
// group with the new clip and projection parameters, never rebuilt.
func (v *Viewer) OnViewportResize(rect ViewportRect) {
	v.rect = rect
	if v.phase == Unbound {
		return
	}
	v.trackball.Resize(rect.Width, rect.Height)
	if v.phase == BoundSynced {
		v.regroup()
		v.cache.Reparent(v.tree, v.sceneGroup)
	}
}

// Rect returns the viewport rectangle last installed by Bind or resize.
func (v *Viewer) Rect() ViewportRect { return v.rect }

// NavState returns the current navigation state, or the zero state while
// unbound.
func (v *Viewer) NavState() NavState {
	if v.trackball == nil {
		return NavState{}
	}
	return v.trackball.State()
}

// regroup rebuilds the group tree with a scene group for the current rect,
// projection and view transform.
func (v *Viewer) regroup() {
	v.tree.Reset()
	v.sceneGroup = v.tree.AddSceneGroup(NoGroup, v.rect, v.proj, v.trackball.Pose())
}

func (v *Viewer) updateView() {
	if v.sceneGroup != NoGroup {
		v.tree.SetView(v.sceneGroup, v.trackball.Pose())
	}
}
