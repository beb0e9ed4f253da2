package gpu

import (
	"os"
	"path/filepath"
	"testing"
)

func testIdentity() DriverIdentity {
	return DriverIdentity{
		VendorID:      0x10DE,
		DeviceID:      0x2684,
		DriverVersion: 42,
		DriverUUID:    [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
}

func TestPipelineCacheRoundTripsOnMatchingIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	identity := testIdentity()
	payload := []byte("opaque driver blob")

	if err := WritePipelineCache(path, identity, payload); err != nil {
		t.Fatalf("WritePipelineCache: %v", err)
	}

	got, hit, err := ReadPipelineCache(path, identity)
	if err != nil {
		t.Fatalf("ReadPipelineCache: %v", err)
	}
	if !hit {
		t.Fatal("hit = false, want true for matching identity")
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q, want %q", got, payload)
	}
}

func TestPipelineCacheMissesOnIdentityMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	identity := testIdentity()
	if err := WritePipelineCache(path, identity, []byte("blob")); err != nil {
		t.Fatalf("WritePipelineCache: %v", err)
	}

	other := identity
	other.DeviceID++
	_, hit, err := ReadPipelineCache(path, other)
	if err != nil {
		t.Fatalf("ReadPipelineCache: %v", err)
	}
	if hit {
		t.Fatal("hit = true, want false for mismatched device id")
	}
}

func TestPipelineCacheMissesOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.bin")
	_, hit, err := ReadPipelineCache(path, testIdentity())
	if err != nil {
		t.Fatalf("ReadPipelineCache on missing file returned error: %v", err)
	}
	if hit {
		t.Fatal("hit = true for a nonexistent cache file")
	}
}

func TestPipelineCacheMissesOnTruncatedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	_, hit, err := ReadPipelineCache(path, testIdentity())
	if err != nil {
		t.Fatalf("ReadPipelineCache on truncated file returned error: %v", err)
	}
	if hit {
		t.Fatal("hit = true for a file shorter than the header")
	}
}

func TestPipelineCacheMissesOnBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	identity := testIdentity()
	if err := WritePipelineCache(path, identity, []byte("blob")); err != nil {
		t.Fatalf("WritePipelineCache: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("os.ReadFile: %v", err)
	}
	raw[0] ^= 0xFF // corrupt the magic number's first byte
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	_, hit, err := ReadPipelineCache(path, identity)
	if err != nil {
		t.Fatalf("ReadPipelineCache: %v", err)
	}
	if hit {
		t.Fatal("hit = true for a corrupted magic number")
	}
}
