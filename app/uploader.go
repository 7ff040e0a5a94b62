package app

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/draw"

	"github.com/gekko3d/spinegpu/render"
	"github.com/gekko3d/spinegpu/spine"
)

// wgpuUploader decodes atlas page images and uploads them as RGBA8 textures.
// It implements render.Uploader; the renderer calls it lazily the first time
// a draw pass touches a page.
type wgpuUploader struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

func filterMode(f spine.AtlasFilter) wgpu.FilterMode {
	if f == spine.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func addressMode(w spine.AtlasWrap) wgpu.AddressMode {
	switch w {
	case spine.WrapRepeat:
		return wgpu.AddressModeRepeat
	case spine.WrapMirroredRepeat:
		return wgpu.AddressModeMirrorRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func (u *wgpuUploader) Upload(pending render.PendingTexture) (*render.PageTexture, error) {
	f, err := os.Open(pending.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	// All page formats upload as RGBA8; RGB888 pages simply carry opaque
	// alpha. draw.Draw handles the pixel format conversion.
	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())
	extent := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}

	texture, err := u.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         pending.Path,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	err = u.queue.WriteTexture(
		texture.AsImageCopy(),
		rgba.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&extent,
	)
	if err != nil {
		texture.Release()
		return nil, err
	}

	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, err
	}

	sampler, err := u.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         pending.Path,
		AddressModeU:  addressMode(pending.UWrap),
		AddressModeV:  addressMode(pending.VWrap),
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     filterMode(pending.MinFilter),
		MagFilter:     filterMode(pending.MagFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		texture.Release()
		return nil, err
	}

	return &render.PageTexture{Texture: texture, View: view, Sampler: sampler}, nil
}
