package meshview

import (
	"errors"
	"image"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice counts buffer builds and destroys without touching a GPU.
type fakeDevice struct {
	meshes    int
	textures  int
	destroyed int

	failMesh    error
	failMeshFor map[int]error // fail the n-th CreateMesh call (1-based)
	failTexture error
}

func (d *fakeDevice) CreateMesh(g *Geometry) (MeshBuffers, error) {
	d.meshes++
	if err, ok := d.failMeshFor[d.meshes]; ok {
		return nil, err
	}
	if d.failMesh != nil {
		return nil, d.failMesh
	}
	return &fakeMesh{device: d, indices: uint32(len(g.Indices))}, nil
}

func (d *fakeDevice) CreateTexture(img image.Image) (Texture, error) {
	if d.failTexture != nil {
		return nil, d.failTexture
	}
	d.textures++
	return &fakeTexture{device: d}, nil
}

type fakeMesh struct {
	device  *fakeDevice
	indices uint32
}

func (m *fakeMesh) IndexCount() uint32 { return m.indices }
func (m *fakeMesh) Destroy() {
	if m.device != nil {
		m.device.destroyed++
	}
}

type fakeTexture struct {
	device *fakeDevice
}

func (t *fakeTexture) Destroy() {
	if t.device != nil {
		t.device.destroyed++
	}
}

func twoBoxScene() *MeshScene {
	s := NewMeshScene()
	s.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), nil)
	s.Add(NewBoxGeometry(2, 1, 1, white), mgl32.Translate3D(3, 0, 0), nil)
	return s
}

func TestSyncBuildsOncePerIdentity(t *testing.T) {
	dev := &fakeDevice{}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := twoBoxScene()
	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())

	cache.Sync(scene, tree, parent)
	require.Equal(t, 2, cache.Len())
	require.Equal(t, 2, cache.Builds())

	// Repeated syncs of the same scene are free.
	for i := 0; i < 5; i++ {
		cache.Sync(scene, tree, parent)
	}
	assert.Equal(t, 2, cache.Builds())
	assert.Equal(t, 2, dev.meshes)
}

func TestSyncPicksUpAddedNodes(t *testing.T) {
	dev := &fakeDevice{}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := twoBoxScene()
	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())

	cache.Sync(scene, tree, parent)
	scene.Add(NewBoxGeometry(1, 2, 1, white), mgl32.Ident4(), nil)
	cache.Sync(scene, tree, parent)

	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 3, cache.Builds(), "only the new node builds")
}

func TestReparentKeepsIdentitiesAndResources(t *testing.T) {
	dev := &fakeDevice{}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := twoBoxScene()
	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())
	cache.Sync(scene, tree, parent)

	var before []GeometryID
	for _, r := range cache.Renderables() {
		before = append(before, r.ID)
	}

	tree.Reset()
	parent = tree.AddSceneGroup(NoGroup, ViewportRect{Width: 50, Height: 50}, DefaultProjection(), mgl32.Ident4())
	cache.Reparent(tree, parent)

	var after []GeometryID
	for _, r := range cache.Renderables() {
		after = append(after, r.ID)
		assert.Equal(t, parent, tree.group(r.Group).parent)
	}
	assert.Equal(t, before, after)
	assert.Equal(t, 2, dev.meshes, "reparenting must not rebuild buffers")
	assert.Zero(t, dev.destroyed)
}

func TestReleaseDestroysEverything(t *testing.T) {
	dev := &fakeDevice{}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := NewMeshScene()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	scene.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), &Material{Image: img})
	scene.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), nil)

	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())
	cache.Sync(scene, tree, parent)
	require.Equal(t, 2, cache.Len())
	require.Equal(t, 1, dev.textures)

	cache.Release()
	assert.Zero(t, cache.Len())
	assert.Empty(t, cache.Renderables())
	// two meshes plus one texture
	assert.Equal(t, 3, dev.destroyed)

	// Release of an empty cache is a no-op.
	cache.Release()
	assert.Equal(t, 3, dev.destroyed)
}

func TestSyncSkipsFailedBuildsAndRecoversLater(t *testing.T) {
	dev := &fakeDevice{failMeshFor: map[int]error{2: errors.New("out of memory")}}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := twoBoxScene()
	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())

	cache.Sync(scene, tree, parent)
	assert.Equal(t, 1, cache.Len(), "the failing node is skipped, the rest still caches")

	// The next sync retries the failed node.
	cache.Sync(scene, tree, parent)
	assert.Equal(t, 2, cache.Len())
}

func TestSyncFallsBackToUntextured(t *testing.T) {
	dev := &fakeDevice{failTexture: errors.New("image too large")}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := NewMeshScene()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	scene.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), &Material{Image: img})

	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())
	cache.Sync(scene, tree, parent)

	require.Equal(t, 1, cache.Len())
	assert.Nil(t, cache.Renderables()[0].Texture)
	assert.NotNil(t, cache.Renderables()[0].Mesh)
}

func TestSyncSkipsMalformedNodes(t *testing.T) {
	dev := &fakeDevice{}
	cache := NewRenderableCache(dev, NewNopLogger())
	scene := NewMeshScene()
	scene.AddNode(GeometryNode{ID: "empty", Geometry: &Geometry{}, Transform: mgl32.Ident4()})
	scene.AddNode(GeometryNode{Transform: mgl32.Ident4()})
	scene.Add(NewBoxGeometry(1, 1, 1, white), mgl32.Ident4(), nil)

	tree := NewGroupTree()
	parent := tree.AddSceneGroup(NoGroup, testRect(), DefaultProjection(), mgl32.Ident4())
	cache.Sync(scene, tree, parent)
	assert.Equal(t, 1, cache.Len())
}

func TestSyncNilSceneIsNoOp(t *testing.T) {
	cache := NewRenderableCache(&fakeDevice{}, NewNopLogger())
	tree := NewGroupTree()
	cache.Sync(nil, tree, NoGroup)
	assert.Zero(t, cache.Len())
}
