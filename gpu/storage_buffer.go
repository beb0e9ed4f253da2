package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// StorageBuffers wraps the resource manager with typed-upload/readback convenience
// over GPU-only storage buffers, the pattern MeshPass and the material system use for
// per-instance and per-draw data (§4.9's instance buffer, §4.10's parameter blocks).
type StorageBuffers struct {
	rm        *ResourceManager
	immediate *ImmediateChannel
}

func NewStorageBuffers(rm *ResourceManager, immediate *ImmediateChannel) *StorageBuffers {
	return &StorageBuffers{rm: rm, immediate: immediate}
}

// CreateWithData allocates a GPU-only storage buffer sized to len(data) and uploads
// data via a staging buffer over the transfer lane, mirroring the image upload path
// in immediate.go but for raw buffer contents rather than texel data.
func (s *StorageBuffers) CreateWithData(data []byte, extraUsage BufferUsage) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, fmt.Errorf("storage buffer upload requires non-empty data: %w", ErrInvalidArgument)
	}

	buf, err := s.rm.CreateBuffer(uint64(len(data)), BufferUsageStorage|BufferUsageTransferDst|extraUsage, AllocationGPUOnly)
	if err != nil {
		return Buffer{}, err
	}

	staging, err := s.rm.CreateBuffer(uint64(len(data)), BufferUsageTransferSrc, AllocationCPUVisible)
	if err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}
	defer s.rm.FreeBuffer(staging)

	region, err := s.rm.MapBuffer(staging)
	if err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}
	copy(region, data)
	if err := s.rm.UnmapBuffer(staging); err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}

	dstInfo, err := s.rm.bufferInfo(buf)
	if err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}
	srcInfo, err := s.rm.bufferInfo(staging)
	if err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}

	err = s.immediate.Submit(QueueKindTransfer, func(encoder *wgpu.CommandEncoder) {
		encoder.CopyBufferToBuffer(srcInfo.native, 0, dstInfo.native, 0, uint64(len(data)))
	})
	if err != nil {
		_ = s.rm.FreeBuffer(buf)
		return Buffer{}, err
	}

	return buf, nil
}

// Update overwrites a live range of a storage buffer directly via queue write,
// used for per-frame instance data that changes every frame and does not warrant a
// fresh staging buffer (the teacher's renderer backend writes uniform data the same
// way via Queue.WriteBuffer).
func (s *StorageBuffers) Update(buf Buffer, offset uint64, data []byte) error {
	bd, err := s.rm.bufferInfo(buf)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > bd.size {
		return fmt.Errorf("update range exceeds buffer size: %w", ErrInvalidArgument)
	}
	s.rm.device.Queue.WriteBuffer(bd.native, offset, data)
	return nil
}

// Readback copies size bytes starting at offset from a GPU-only storage buffer into a
// freshly allocated CPU-visible staging buffer and returns its contents, used by
// tests and tooling to verify GPU-side compute results.
func (s *StorageBuffers) Readback(buf Buffer, offset, size uint64) ([]byte, error) {
	srcInfo, err := s.rm.bufferInfo(buf)
	if err != nil {
		return nil, err
	}
	if offset+size > srcInfo.size {
		return nil, fmt.Errorf("readback range exceeds buffer size: %w", ErrInvalidArgument)
	}

	staging, err := s.rm.CreateBuffer(size, BufferUsageTransferDst, AllocationCPUVisible)
	if err != nil {
		return nil, err
	}
	defer s.rm.FreeBuffer(staging)

	dstInfo, err := s.rm.bufferInfo(staging)
	if err != nil {
		return nil, err
	}

	err = s.immediate.Submit(QueueKindTransfer, func(encoder *wgpu.CommandEncoder) {
		encoder.CopyBufferToBuffer(srcInfo.native, offset, dstInfo.native, 0, size)
	})
	if err != nil {
		return nil, err
	}

	region, err := s.rm.MapBuffer(staging)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, region)
	if err := s.rm.UnmapBuffer(staging); err != nil {
		return nil, err
	}
	return out, nil
}
