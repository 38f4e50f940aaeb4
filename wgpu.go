package meshview

import (
	"fmt"
	"image"
	"reflect"
	"strconv"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// maxTextureDim is the largest texture edge we upload; material images
// beyond it are downscaled on the CPU first.
const maxTextureDim = 8192

// drawUniformStride is the dynamic-offset stride between per-draw uniform
// slots. 256 is the minimum uniform buffer offset alignment wgpu requires.
const drawUniformStride = 256

const meshShaderWGSL = `
struct DrawUniform {
    mvp: mat4x4<f32>,
    model: mat4x4<f32>,
};

@group(0) @binding(0) var<uniform> draw: DrawUniform;
@group(1) @binding(0) var base_texture: texture_2d<f32>;
@group(1) @binding(1) var base_sampler: sampler;

struct VsOut {
    @builtin(position) position: vec4<f32>,
    @location(0) normal: vec3<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) color: vec4<f32>,
};

@vertex
fn vs_main(
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
    @location(3) color: vec4<f32>,
) -> VsOut {
    var out: VsOut;
    out.position = draw.mvp * vec4<f32>(position, 1.0);
    out.normal = (draw.model * vec4<f32>(normal, 0.0)).xyz;
    out.uv = uv;
    out.color = color;
    return out;
}

@fragment
fn fs_main(in: VsOut) -> @location(0) vec4<f32> {
    let light_dir = normalize(vec3<f32>(0.3, 0.5, 0.8));
    let lit = 0.35 + 0.65 * max(dot(normalize(in.normal), light_dir), 0.0);
    let base = textureSample(base_texture, base_sampler, in.uv) * in.color;
    return vec4<f32>(base.rgb * lit, base.a);
}
`

// WgpuDevice implements Device on a webgpu device, and owns the single
// pipeline every viewer draws with: one per-draw uniform slot at group 0
// (dynamic offset) and a texture/sampler pair at group 1.
type WgpuDevice struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    Logger

	pipeline     *wgpu.RenderPipeline
	uniformBGL   *wgpu.BindGroupLayout
	textureBGL   *wgpu.BindGroupLayout
	sampler      *wgpu.Sampler
	whiteTexture *wgpuTexture

	// per-draw uniforms, grown as needed
	uniformBuf       *wgpu.Buffer
	uniformBindGroup *wgpu.BindGroup
	uniformCap       int // capacity in draw slots

	// depth buffer matching the surface size
	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView
	width        uint32
	height       uint32
}

// NewWgpuDevice builds the pipeline and shared resources against the given
// surface format. The caller keeps ownership of the wgpu device.
func NewWgpuDevice(device *wgpu.Device, surfaceFormat wgpu.TextureFormat, log Logger) (*WgpuDevice, error) {
	d := &WgpuDevice{
		device: device,
		queue:  device.GetQueue(),
		log:    orNopLogger(log),
	}

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "meshview shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: meshShaderWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("shader module: %w", err)
	}
	defer shader.Release()

	d.uniformBGL, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "meshview draw uniforms",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("uniform bind group layout: %w", err)
	}

	d.textureBGL, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "meshview material",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("texture bind group layout: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "meshview pipeline layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.uniformBGL, d.textureBGL},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	d.pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "meshview pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexBufferLayout(Vertex{})},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render pipeline: %w", err)
	}

	d.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}

	// 1x1 white fallback so untextured draws use the same pipeline.
	whiteImg := image.NewRGBA(image.Rect(0, 0, 1, 1))
	whiteImg.Pix[0], whiteImg.Pix[1], whiteImg.Pix[2], whiteImg.Pix[3] = 255, 255, 255, 255
	white, err := d.createTextureRGBA(whiteImg)
	if err != nil {
		return nil, fmt.Errorf("fallback texture: %w", err)
	}
	d.whiteTexture = white

	return d, nil
}

// ConfigureSize resizes the depth buffer to match the surface. Call once
// after creation and again on every surface reconfiguration.
func (d *WgpuDevice) ConfigureSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if d.depthView != nil {
		d.depthView.Release()
		d.depthTexture.Release()
	}
	var err error
	d.depthTexture, err = d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "meshview depth",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	d.depthView, err = d.depthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("depth view: %w", err)
	}
	d.width, d.height = uint32(width), uint32(height)
	return nil
}

// CreateMesh uploads vertex and index buffers for one geometry.
func (d *WgpuDevice) CreateMesh(g *Geometry) (MeshBuffers, error) {
	if g == nil || len(g.Vertices) == 0 || len(g.Indices) == 0 {
		return nil, fmt.Errorf("empty geometry")
	}
	vertexBuf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "meshview vertices",
		Contents: wgpu.ToBytes(g.Vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex buffer: %w", err)
	}
	indexBuf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "meshview indices",
		Contents: wgpu.ToBytes(g.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vertexBuf.Release()
		return nil, fmt.Errorf("index buffer: %w", err)
	}
	return &wgpuMesh{
		vertexBuf:  vertexBuf,
		indexBuf:   indexBuf,
		indexCount: uint32(len(g.Indices)),
	}, nil
}

// CreateTexture uploads a material image, downscaling to the device limit.
func (d *WgpuDevice) CreateTexture(img image.Image) (Texture, error) {
	rgba, err := materialTexels(&Material{Image: img}, maxTextureDim)
	if err != nil {
		return nil, err
	}
	return d.createTextureRGBA(rgba)
}

func (d *WgpuDevice) createTextureRGBA(rgba *image.RGBA) (*wgpuTexture, error) {
	w := uint32(rgba.Bounds().Dx())
	h := uint32(rgba.Bounds().Dy())
	extent := wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	texture, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "meshview material texture",
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("texture view: %w", err)
	}
	err = d.queue.WriteTexture(
		texture.AsImageCopy(),
		rgba.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  4 * w,
			RowsPerImage: h,
		},
		&extent,
	)
	if err != nil {
		view.Release()
		texture.Release()
		return nil, fmt.Errorf("texture upload: %w", err)
	}

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "meshview material bind group",
		Layout: d.textureBGL,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view, Size: wgpu.WholeSize},
			{Binding: 1, Sampler: d.sampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		view.Release()
		texture.Release()
		return nil, fmt.Errorf("material bind group: %w", err)
	}

	return &wgpuTexture{texture: texture, view: view, bindGroup: bindGroup}, nil
}

// ensureUniformCapacity grows the per-draw uniform buffer to hold at least
// n draw slots, recreating its bind group when it moves.
func (d *WgpuDevice) ensureUniformCapacity(n int) error {
	if n <= d.uniformCap {
		return nil
	}
	capSlots := d.uniformCap * 2
	if capSlots < 64 {
		capSlots = 64
	}
	for capSlots < n {
		capSlots *= 2
	}
	if d.uniformBindGroup != nil {
		d.uniformBindGroup.Release()
	}
	if d.uniformBuf != nil {
		d.uniformBuf.Release()
	}
	var err error
	d.uniformBuf, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "meshview draw uniforms",
		Size:  uint64(capSlots) * drawUniformStride,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("uniform buffer: %w", err)
	}
	d.uniformBindGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "meshview draw uniform bind group",
		Layout: d.uniformBGL,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  d.uniformBuf,
			Size:    drawUniformStride,
		}},
	})
	if err != nil {
		return fmt.Errorf("uniform bind group: %w", err)
	}
	d.uniformCap = capSlots
	return nil
}

type wgpuMesh struct {
	vertexBuf  *wgpu.Buffer
	indexBuf   *wgpu.Buffer
	indexCount uint32
}

func (m *wgpuMesh) IndexCount() uint32 { return m.indexCount }

func (m *wgpuMesh) Destroy() {
	m.indexBuf.Release()
	m.vertexBuf.Release()
}

type wgpuTexture struct {
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
}

func (t *wgpuTexture) Destroy() {
	t.bindGroup.Release()
	t.view.Release()
	t.texture.Release()
}

// vertexBufferLayout derives the wgpu vertex layout reflectively from the
// struct tags on the vertex type.
func vertexBufferLayout(vertexType any) wgpu.VertexBufferLayout {
	t := reflect.TypeOf(vertexType)
	if t.Kind() != reflect.Struct {
		panic("meshview: vertex must be a struct")
	}

	var attributes []wgpu.VertexAttribute
	var offset uint64

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("meshview") == "layout" {
			location, err := strconv.Atoi(field.Tag.Get("location"))
			if err != nil {
				panic(fmt.Sprintf("meshview: bad vertex location tag on %s: %v", field.Name, err))
			}
			attributes = append(attributes, wgpu.VertexAttribute{
				ShaderLocation: uint32(location),
				Offset:         offset,
				Format:         parseVertexFormat(field.Tag.Get("format")),
			})
		}
		offset += uint64(field.Type.Size())
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}
}

func parseVertexFormat(format string) wgpu.VertexFormat {
	switch format {
	case "float32x2":
		return wgpu.VertexFormatFloat32x2
	case "float32x3":
		return wgpu.VertexFormatFloat32x3
	case "float32x4":
		return wgpu.VertexFormatFloat32x4
	case "unorm8x4":
		return wgpu.VertexFormatUnorm8x4
	default:
		panic(fmt.Sprintf("meshview: unsupported vertex format %q", format))
	}
}

// WgpuPass records clip and draw operations during viewer traversal and
// encodes them as one render pass. Recording keeps the strict state-stack
// discipline on the CPU; the GPU sees a flat, ordered command list.
type WgpuPass struct {
	device *WgpuDevice
	clips  []ViewportRect
	ops    []passOp
}

type passOp struct {
	isDraw  bool
	rect    ViewportRect // scissor/viewport for non-draw ops
	clipped bool         // false restores the full surface
	mesh    *wgpuMesh
	texGrp  *wgpu.BindGroup
	uniform drawUniform
}

type drawUniform struct {
	MVP   mgl32.Mat4
	Model mgl32.Mat4
}

func NewWgpuPass(device *WgpuDevice) *WgpuPass {
	return &WgpuPass{device: device}
}

func (p *WgpuPass) PushClip(r ViewportRect) {
	p.clips = append(p.clips, r)
	p.ops = append(p.ops, passOp{rect: r, clipped: true})
}

func (p *WgpuPass) PopClip() {
	if len(p.clips) == 0 {
		panic("meshview: PopClip with no clip pushed")
	}
	p.clips = p.clips[:len(p.clips)-1]
	if len(p.clips) == 0 {
		p.ops = append(p.ops, passOp{})
	} else {
		p.ops = append(p.ops, passOp{rect: p.clips[len(p.clips)-1], clipped: true})
	}
}

func (p *WgpuPass) Draw(mesh MeshBuffers, texture Texture, mvp mgl32.Mat4, model mgl32.Mat4) error {
	wm, ok := mesh.(*wgpuMesh)
	if !ok {
		return fmt.Errorf("mesh %T was not created by this device", mesh)
	}
	texGrp := p.device.whiteTexture.bindGroup
	if texture != nil {
		wt, ok := texture.(*wgpuTexture)
		if !ok {
			return fmt.Errorf("texture %T was not created by this device", texture)
		}
		texGrp = wt.bindGroup
	}
	p.ops = append(p.ops, passOp{
		isDraw:  true,
		mesh:    wm,
		texGrp:  texGrp,
		uniform: drawUniform{MVP: mvp, Model: model},
	})
	return nil
}

// Encode writes the recorded draw uniforms and encodes the render pass into
// encoder, targeting view. The clear color applies to the whole surface.
func (p *WgpuPass) Encode(encoder *wgpu.CommandEncoder, view *wgpu.TextureView, clear wgpu.Color) error {
	if len(p.clips) != 0 {
		panic(fmt.Sprintf("meshview: %d clips still pushed at encode time", len(p.clips)))
	}

	d := p.device
	draws := 0
	for _, op := range p.ops {
		if op.isDraw {
			draws++
		}
	}
	if draws > 0 {
		if err := d.ensureUniformCapacity(draws); err != nil {
			return err
		}
		buf := make([]byte, draws*drawUniformStride)
		slot := 0
		for _, op := range p.ops {
			if !op.isDraw {
				continue
			}
			writeUniform(buf[slot*drawUniformStride:], op.uniform)
			slot++
		}
		if err := d.queue.WriteBuffer(d.uniformBuf, 0, buf); err != nil {
			return fmt.Errorf("uniform upload: %w", err)
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clear,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(d.pipeline)

	slot := 0
	for _, op := range p.ops {
		if !op.isDraw {
			p.applyClip(pass, op)
			continue
		}
		pass.SetBindGroup(0, d.uniformBindGroup, []uint32{uint32(slot * drawUniformStride)})
		pass.SetBindGroup(1, op.texGrp, nil)
		pass.SetVertexBuffer(0, op.mesh.vertexBuf, 0, op.mesh.vertexBuf.GetSize())
		pass.SetIndexBuffer(op.mesh.indexBuf, wgpu.IndexFormatUint32, 0, op.mesh.indexBuf.GetSize())
		pass.DrawIndexed(op.mesh.indexCount, 1, 0, 0, 0)
		slot++
	}

	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass: %w", err)
	}
	p.ops = p.ops[:0]
	return nil
}

// applyClip converts a bottom-left-origin rect into wgpu's top-left scissor
// and viewport coordinates, clamped to the surface.
func (p *WgpuPass) applyClip(pass *wgpu.RenderPassEncoder, op passOp) {
	d := p.device
	if !op.clipped {
		pass.SetScissorRect(0, 0, d.width, d.height)
		pass.SetViewport(0, 0, float32(d.width), float32(d.height), 0, 1)
		return
	}
	r := op.rect
	x := clampU32(r.Left, int(d.width))
	w := clampU32(r.Width, int(d.width)-int(x))
	top := int(d.height) - (r.Bottom + r.Height)
	y := clampU32(top, int(d.height))
	h := clampU32(r.Height, int(d.height)-int(y))
	if w == 0 || h == 0 {
		// Degenerate clip; keep the scissor valid and let depth reject all.
		w, h = 1, 1
	}
	pass.SetScissorRect(x, y, w, h)
	pass.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
}

func clampU32(v, max int) uint32 {
	if v < 0 {
		return 0
	}
	if v > max {
		v = max
	}
	return uint32(v)
}

func writeUniform(dst []byte, u drawUniform) {
	writeMat4(dst[0:], u.MVP)
	writeMat4(dst[64:], u.Model)
}

func writeMat4(dst []byte, m mgl32.Mat4) {
	copy(dst, wgpu.ToBytes(m[:]))
}
