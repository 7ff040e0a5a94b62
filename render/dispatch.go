package render

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"

	spinegpu "github.com/gekko3d/spinegpu"
	"github.com/gekko3d/spinegpu/spine"
)

// Buffers holds the GPU-side copies of one baked skeleton. Immutable after
// creation; any number of concurrent render passes may draw from them.
type Buffers struct {
	Baked     *Baked
	VertexBuf *wgpu.Buffer
	IndexBuf  *wgpu.Buffer
}

func (b *Buffers) Release() {
	if b.IndexBuf != nil {
		b.IndexBuf.Release()
	}
	if b.VertexBuf != nil {
		b.VertexBuf.Release()
	}
}

// Renderer issues the per-slot draws for baked skeletons. It owns the
// pipeline cache, the texture cache and the uniform buffer; per-frame working
// state lives entirely in the FrameUniforms value the caller passes in.
type Renderer struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	pipes    *Pipelines
	Textures *TextureCache

	uniformBuf *wgpu.Buffer
	uniformBG  *wgpu.BindGroup

	log spinegpu.Logger
}

// NewRenderer creates the pipelines, the shared uniform buffer and its bind
// group. uploader may be nil if textures are published externally.
func NewRenderer(device *wgpu.Device, queue *wgpu.Queue, surfaceFormat wgpu.TextureFormat, uploader Uploader, log spinegpu.Logger) (*Renderer, error) {
	pipes, err := NewPipelines(device, surfaceFormat)
	if err != nil {
		return nil, fmt.Errorf("create pipelines: %w", err)
	}

	uniformBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "FrameUniforms",
		Size:  uint64(unsafe.Sizeof(FrameUniforms{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}

	uniformBG, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "FrameUniformsBG",
		Layout: pipes.UniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  uniformBuf,
				Size:    uint64(unsafe.Sizeof(FrameUniforms{})),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform bind group: %w", err)
	}

	return &Renderer{
		device:     device,
		queue:      queue,
		pipes:      pipes,
		Textures:   NewTextureCache(uploader, log),
		uniformBuf: uniformBuf,
		uniformBG:  uniformBG,
		log:        log,
	}, nil
}

// UploadBuffers copies a bake result into immutable GPU buffers.
func (r *Renderer) UploadBuffers(baked *Baked) (*Buffers, error) {
	vertexBuf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SkeletonVertices",
		Contents: wgpu.ToBytes(baked.Vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	indexBuf, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "SkeletonIndices",
		Contents: wgpu.ToBytes(baked.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vertexBuf.Release()
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	return &Buffers{Baked: baked, VertexBuf: vertexBuf, IndexBuf: indexBuf}, nil
}

// BeginFrame drains the texture delete queue. Call once per frame, before
// any render pass binds anything.
func (r *Renderer) BeginFrame() {
	r.Textures.DrainDeleteQueue()
}

// WriteUniforms uploads the extracted frame uniforms. Call once per view
// before DrawFrame; multiple views of the same pose each write their own
// world/view matrices into u first.
func (r *Renderer) WriteUniforms(u *FrameUniforms) error {
	return r.queue.WriteBuffer(r.uniformBuf, 0, u.Bytes())
}

// DrawFrame walks the skeleton's draw order and issues one indexed draw per
// visible attachment. Slots are skipped, never failed, when their bone is
// inactive, they have nothing bound, the attachment was not baked (clipping),
// or the page texture is not resolvable yet. No heap allocation per draw.
func (r *Renderer) DrawFrame(pass *wgpu.RenderPassEncoder, sk *spine.Skeleton, bufs *Buffers, u *FrameUniforms) {
	pass.SetVertexBuffer(0, bufs.VertexBuf, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(bufs.IndexBuf, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	pass.SetBindGroup(0, r.uniformBG, nil)

	for _, slot := range sk.DrawOrder {
		meta := slotMeta(slot, bufs.Baked)
		if meta == nil {
			continue
		}

		pipeline, err := r.pipes.Get(slot.Data.Blend, sk.PremultipliedAlpha)
		if err != nil {
			r.log.Errorf("pipeline for blend %v: %v", slot.Data.Blend, err)
			continue
		}

		tex := r.Textures.Resolve(meta.Page)
		if tex == nil {
			// Still pending or failed; skip this slot for this frame instead
			// of stalling the render loop.
			continue
		}
		if tex.BindGroup == nil {
			tex.BindGroup = r.textureBindGroup(tex)
			if tex.BindGroup == nil {
				continue
			}
		}

		pass.SetPipeline(pipeline)
		pass.SetBindGroup(1, tex.BindGroup, nil)
		pass.DrawIndexed(meta.IndexCount, 1, meta.IndexStart, 0, 0)
	}
}

// slotMeta decides whether a slot draws this frame: its bone must be active,
// it must have a non-clipping attachment bound, and that attachment must have
// been baked. Slot and attachment indices beyond the uniform table capacities
// are skipped too — Extract never wrote their bindings, so drawing them would
// resolve through a clamped table read into another slot's bone and deform
// data. Returns the metadata range to draw, or nil to skip.
func slotMeta(slot *spine.Slot, baked *Baked) *AttachmentMeta {
	if !slot.Bone.Active || slot.Data.Index >= MaxSlots {
		return nil
	}
	attachment := slot.Attachment()
	if attachment == nil || attachment.Type() == spine.AttachmentClipping {
		return nil
	}
	meta := baked.MetaFor(slot.Data.Index, attachment.Name())
	if meta == nil || meta.AttachmentIndex >= MaxAttachments {
		return nil
	}
	return meta
}

func (r *Renderer) textureBindGroup(tex *PageTexture) *wgpu.BindGroup {
	bg, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "PageTextureBG",
		Layout: r.pipes.TextureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: tex.View},
			{Binding: 1, Sampler: tex.Sampler},
		},
	})
	if err != nil {
		r.log.Errorf("create texture bind group: %v", err)
		return nil
	}
	return bg
}

// Release frees everything the renderer owns, draining any queued texture
// deletions first.
func (r *Renderer) Release() {
	r.Textures.DrainDeleteQueue()
	r.uniformBG.Release()
	r.uniformBuf.Release()
	r.pipes.Release()
}
