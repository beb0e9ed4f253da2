package gpu

import (
	"fmt"

	"github.com/gl1tchs/glitch/common"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureLoader builds gpu Images from decoded CPU image data, wiring the resource
// manager's CreateImage to the asset-level common.ImportedTexture shape (decoded with
// common.ImportedTexture.Decode, grounded on the teacher's GLTF texture import path).
type TextureLoader struct {
	rm       *ResourceManager
	uploader Uploader
}

func NewTextureLoader(rm *ResourceManager, uploader Uploader) *TextureLoader {
	return &TextureLoader{rm: rm, uploader: uploader}
}

// LoadTexture decodes an ImportedTexture and uploads it as an RGBA8 sampled image,
// mip-mapped by default since materials always sample through a full mip chain
// (§4.10).
func (l *TextureLoader) LoadTexture(tex *common.ImportedTexture) (Image, error) {
	pixels, width, height, err := tex.Decode()
	if err != nil {
		return Image{}, fmt.Errorf("decode texture %s: %w", tex.Name, err)
	}
	return l.rm.CreateImage(ImageCreateInfo{
		Format:    wgpu.TextureFormatRGBA8UnormSrgb,
		Width:     width,
		Height:    height,
		Usage:     ImageUsageSampled | ImageUsageTransferDst,
		Mipmapped: true,
		Data:      pixels,
	}, l.uploader)
}

// LoadSolidColor creates a 1x1 image filled with a single RGBA color, used for the
// default-white/default-normal placeholder textures a MaterialInstance falls back to
// when a slot has no bound texture (§4.10).
func (l *TextureLoader) LoadSolidColor(r, g, b, a byte) (Image, error) {
	return l.rm.CreateImage(ImageCreateInfo{
		Format: wgpu.TextureFormatRGBA8UnormSrgb,
		Width:  1,
		Height: 1,
		Usage:  ImageUsageSampled | ImageUsageTransferDst,
		Data:   []byte{r, g, b, a},
	}, l.uploader)
}

// RenderTargetInfo describes an offscreen attachment image the renderer creates for
// its named render-image map (§4.8): color, MSAA resolve target, or depth.
type RenderTargetInfo struct {
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	SampleCount uint32
	Depth       bool
}

// CreateRenderTarget allocates an empty attachment-usage image sized for the current
// frame resolution. Render targets are never mip-mapped and never carry initial data;
// they only receive writes via render passes.
func (rm *ResourceManager) CreateRenderTarget(info RenderTargetInfo) (Image, error) {
	usage := ImageUsageSampled | ImageUsageTransferSrc
	if info.Depth {
		usage |= ImageUsageDepthStencilAttachment
	} else {
		usage |= ImageUsageColorAttachment
	}
	return rm.CreateImage(ImageCreateInfo{
		Format:      info.Format,
		Width:       info.Width,
		Height:      info.Height,
		SampleCount: info.SampleCount,
		Usage:       usage,
	}, nil)
}

// ImageView exposes the underlying wgpu texture view for a gpu/ internal caller
// (renderer attachment wiring) without widening the public handle API.
func (rm *ResourceManager) ImageView(i Image) (*wgpu.TextureView, error) {
	id, err := rm.imageInfo(i)
	if err != nil {
		return nil, err
	}
	return id.view, nil
}

// ImageExtent returns an image's width/height in pixels.
func (rm *ResourceManager) ImageExtent(i Image) (uint32, uint32, error) {
	id, err := rm.imageInfo(i)
	if err != nil {
		return 0, 0, err
	}
	return id.width, id.height, nil
}

// ImageFormat returns an image's texel format.
func (rm *ResourceManager) ImageFormat(i Image) (wgpu.TextureFormat, error) {
	id, err := rm.imageInfo(i)
	if err != nil {
		return 0, err
	}
	return id.format, nil
}
