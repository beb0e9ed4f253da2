package gpu

import (
	"encoding/binary"
	"fmt"
	"os"
)

// pipelineCacheMagic is the file-format magic number from §4.2, kept exactly as
// specified for interop testing (the same value the original engine's
// PIPELINE_CACHE_MAGIC_NUMBER uses).
const pipelineCacheMagic uint32 = 0xBBA786CF

const pipelineCacheHeaderSize = 40 // 4 + 8 + 4 + 4 + 4 + 16

// DriverIdentity identifies the GPU/driver combination a cache payload was written
// against. On load, a mismatch in any field discards the payload (§4.2).
type DriverIdentity struct {
	VendorID      uint32
	DeviceID      uint32
	DriverVersion uint32
	DriverUUID    [16]byte
}

// PipelineCacheHeader is the on-disk header preceding the driver-opaque cache blob,
// laid out exactly per §4.2:
//
//	offset 0    u32 magic         = 0xBBA786CF
//	offset 4    u64 payload_size
//	offset 12   u32 vendor_id
//	offset 16   u32 device_id
//	offset 20   u32 driver_version
//	offset 24   u8[16] driver_uuid
//	offset 40   u8[payload_size]  driver blob
type PipelineCacheHeader struct {
	Magic       uint32
	PayloadSize uint64
	Identity    DriverIdentity
}

// WritePipelineCache writes header+payload to path. Called only when a pipeline is
// freed (§5: "Pipeline cache files on disk are written only on free").
func WritePipelineCache(path string, identity DriverIdentity, payload []byte) error {
	buf := make([]byte, pipelineCacheHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], pipelineCacheMagic)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(len(payload)))
	binary.LittleEndian.PutUint32(buf[12:16], identity.VendorID)
	binary.LittleEndian.PutUint32(buf[16:20], identity.DeviceID)
	binary.LittleEndian.PutUint32(buf[20:24], identity.DriverVersion)
	copy(buf[24:40], identity.DriverUUID[:])
	copy(buf[40:], payload)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write pipeline cache %s: %w", path, ErrFile)
	}
	return nil
}

// ReadPipelineCache reads and validates the header at path against identity. Any
// field mismatch discards the payload and returns (nil, false, nil) rather than an
// error — a cache miss is an expected, recoverable event, not a failure.
func ReadPipelineCache(path string, identity DriverIdentity) (payload []byte, hit bool, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read pipeline cache %s: %w", path, ErrFile)
	}
	if len(raw) < pipelineCacheHeaderSize {
		return nil, false, nil
	}

	var h PipelineCacheHeader
	h.Magic = binary.LittleEndian.Uint32(raw[0:4])
	h.PayloadSize = binary.LittleEndian.Uint64(raw[4:12])
	h.Identity.VendorID = binary.LittleEndian.Uint32(raw[12:16])
	h.Identity.DeviceID = binary.LittleEndian.Uint32(raw[16:20])
	h.Identity.DriverVersion = binary.LittleEndian.Uint32(raw[20:24])
	copy(h.Identity.DriverUUID[:], raw[24:40])

	if h.Magic != pipelineCacheMagic {
		return nil, false, nil
	}
	if h.Identity != identity {
		return nil, false, nil
	}
	if uint64(len(raw)-pipelineCacheHeaderSize) != h.PayloadSize {
		return nil, false, nil
	}

	return raw[pipelineCacheHeaderSize:], true, nil
}
