package meshview

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshBuffers are the GPU-resident vertex/index buffers of one geometry,
// built once per bound scene and reused across redraws.
type MeshBuffers interface {
	IndexCount() uint32
	Destroy()
}

// Texture is a GPU-resident texture. A nil Texture means untextured.
type Texture interface {
	Destroy()
}

// Device is the resource-lifecycle subset of the graphics backend: the
// renderable cache goes through it and nothing else allocates GPU memory.
type Device interface {
	CreateMesh(g *Geometry) (MeshBuffers, error)
	CreateTexture(img image.Image) (Texture, error)
}

// Pass is the draw-time subset of the graphics backend. PushClip/PopClip
// bracket a clip rectangle plus viewport; between them Draw issues one
// geometry with its composed model-view-projection and optional texture.
// Calls are strictly nested and are only ever made by the state stack.
type Pass interface {
	PushClip(r ViewportRect)
	PopClip()
	Draw(mesh MeshBuffers, texture Texture, mvp mgl32.Mat4, model mgl32.Mat4) error
}
