package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// QueueKind selects which serialized immediate-submit channel a caller wants. The
// backend holds one of each (§4.6): transfer for uploads, graphics for anything that
// also needs render-capable commands (e.g. mipmap blits).
type QueueKind int

const (
	QueueKindTransfer QueueKind = iota
	QueueKindGraphics
)

// immediateLane is the per-queue-kind state described in §4.6: one mutex, the device,
// and the encoder of the submission in progress. Submit creates a fresh encoder each
// time and waits for completion with Device.Poll; there is no fence object, command
// pool, or pre-allocated command buffer.
type immediateLane struct {
	mu      sync.Mutex
	device  *Device
	encoder *wgpu.CommandEncoder
}

// ImmediateChannel implements immediate_submit (§4.6): a single serial channel per
// queue kind used for uploads, mipmap generation, initial layout transitions, and any
// ad-hoc GPU work needed outside the main frame loop. Parallel producers serialize on
// the lane's mutex.
type ImmediateChannel struct {
	device *Device
	lanes  [2]*immediateLane
}

// NewImmediateChannel constructs the transfer and graphics immediate-submit lanes for
// a device.
func NewImmediateChannel(device *Device) *ImmediateChannel {
	ic := &ImmediateChannel{device: device}
	ic.lanes[QueueKindTransfer] = &immediateLane{device: device}
	ic.lanes[QueueKindGraphics] = &immediateLane{device: device}
	return ic
}

// Submit acquires the named queue's mutex, records fn into a fresh command encoder,
// submits it, and blocks until the GPU has completed the work before returning. This
// is the exact five-step contract in §4.6: acquire mutex, reset, begin/record/end,
// submit+wait, release mutex.
func (ic *ImmediateChannel) Submit(kind QueueKind, fn func(encoder *wgpu.CommandEncoder)) error {
	lane := ic.lanes[kind]
	lane.mu.Lock()
	defer lane.mu.Unlock()

	encoder, err := ic.device.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "immediate submit"})
	if err != nil {
		return fmt.Errorf("create immediate command encoder: %w", ErrAllocationFailed)
	}
	lane.encoder = encoder

	fn(encoder)

	cmdBuf, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish immediate command buffer: %w", ErrFatal)
	}
	ic.device.Queue.Submit(cmdBuf)
	ic.device.Device.Poll(true, nil)
	lane.encoder = nil
	return nil
}

// UploadImage stages data into a scratch CPU-visible buffer and immediate-submits a
// copy-to-image (plus mipmap generation, if the image was created with Mipmapped) on
// the transfer lane, leaving the image shader-read-only. Satisfies the
// Uploader interface consumed by ResourceManager.CreateImage.
func (ic *ImmediateChannel) UploadImage(rm *ResourceManager, img Image, data []byte) error {
	info, err := rm.imageInfo(img)
	if err != nil {
		return err
	}

	bytesPerPixel := uint32(4)
	expected := info.width * info.height * bytesPerPixel
	if uint32(len(data)) != expected {
		return fmt.Errorf("image data size %d does not match tightly packed extent %d: %w", len(data), expected, ErrInvalidArgument)
	}

	staging, err := ic.device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "image staging",
		Size:             uint64(expected),
		Usage:            wgpu.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", ErrAllocationFailed)
	}
	region := staging.GetMappedRange(0, uint(expected))
	copy(region, data)
	staging.Unmap()
	defer staging.Release()

	err = ic.Submit(QueueKindTransfer, func(encoder *wgpu.CommandEncoder) {
		encoder.CopyBufferToTexture(
			&wgpu.ImageCopyBuffer{
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  info.width * bytesPerPixel,
					RowsPerImage: info.height,
				},
				Buffer: staging,
			},
			&wgpu.ImageCopyTexture{Texture: info.native, MipLevel: 0},
			&wgpu.Extent3D{Width: info.width, Height: info.height, DepthOrArrayLayers: 1},
		)
	})
	if err != nil {
		return err
	}

	if info.mipmapped && info.mipLevels > 1 {
		return ic.generateMipmaps(info, data)
	}
	return nil
}

// generateMipmaps builds level i from level i-1 with halved extent each step,
// starting at level 1, per §4.1's mipmap generation policy. wgpu-native's
// texture-to-texture copy requires matching extents on both sides (no implicit
// scaling, unlike vkCmdBlitImage), so each level is box-filtered on the CPU from the
// previous level's pixels and immediate-submitted the same way as the base level.
func (ic *ImmediateChannel) generateMipmaps(info *imageData, baseData []byte) error {
	srcWidth, srcHeight := info.width, info.height
	src := baseData
	for level := uint32(1); level < info.mipLevels; level++ {
		dstWidth := max32(1, srcWidth/2)
		dstHeight := max32(1, srcHeight/2)
		dst := boxFilterDownsample(src, srcWidth, srcHeight, dstWidth, dstHeight)

		staging, err := ic.device.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            "mip staging",
			Size:             uint64(len(dst)),
			Usage:            wgpu.BufferUsageCopySrc,
			MappedAtCreation: true,
		})
		if err != nil {
			return fmt.Errorf("create mip staging buffer: %w", ErrAllocationFailed)
		}
		region := staging.GetMappedRange(0, uint(len(dst)))
		copy(region, dst)
		staging.Unmap()

		mipLevel := level
		err = ic.Submit(QueueKindTransfer, func(encoder *wgpu.CommandEncoder) {
			encoder.CopyBufferToTexture(
				&wgpu.ImageCopyBuffer{
					Layout: wgpu.TextureDataLayout{
						Offset:       0,
						BytesPerRow:  dstWidth * 4,
						RowsPerImage: dstHeight,
					},
					Buffer: staging,
				},
				&wgpu.ImageCopyTexture{Texture: info.native, MipLevel: mipLevel},
				&wgpu.Extent3D{Width: dstWidth, Height: dstHeight, DepthOrArrayLayers: 1},
			)
		})
		staging.Release()
		if err != nil {
			return err
		}

		src, srcWidth, srcHeight = dst, dstWidth, dstHeight
	}
	return nil
}

// boxFilterDownsample averages 2x2 (or edge-clamped) blocks of src (RGBA8, row-major)
// into a dstWidth x dstHeight image.
func boxFilterDownsample(src []byte, srcWidth, srcHeight, dstWidth, dstHeight uint32) []byte {
	dst := make([]byte, dstWidth*dstHeight*4)
	for y := uint32(0); y < dstHeight; y++ {
		sy0 := min32(y*2, srcHeight-1)
		sy1 := min32(y*2+1, srcHeight-1)
		for x := uint32(0); x < dstWidth; x++ {
			sx0 := min32(x*2, srcWidth-1)
			sx1 := min32(x*2+1, srcWidth-1)

			for c := 0; c < 4; c++ {
				sum := uint32(src[(sy0*srcWidth+sx0)*4+uint32(c)]) +
					uint32(src[(sy0*srcWidth+sx1)*4+uint32(c)]) +
					uint32(src[(sy1*srcWidth+sx0)*4+uint32(c)]) +
					uint32(src[(sy1*srcWidth+sx1)*4+uint32(c)])
				dst[(y*dstWidth+x)*4+uint32(c)] = byte(sum / 4)
			}
		}
	}
	return dst
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

var _ Uploader = (*ImmediateChannel)(nil)
