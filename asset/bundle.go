package asset

import (
	"fmt"

	gshader "github.com/gl1tchs/glitch/gpu/shader"
)

// BundleEntry locates one logical asset inside a packed byte blob, matching
// the `{path, start_offset, size_in_bytes}` table spec §6 names for
// compile-time-packed SPIR-V/WGSL bundles.
type BundleEntry struct {
	Path        string
	StartOffset uint64
	SizeInBytes uint64
}

// Bundle is a compile-time-packed set of shader blobs accessible by logical
// path (spec §6's "Bundled SPIR-V"). Data is the single backing byte array
// (named BUNDLE_DATA in spec §6); Entries is a linear lookup table over it.
// A Bundle is typically built from a //go:embed byte slice plus a
// generated/hand-written Entries table, mirroring how the original links a
// compile-time byte array with an offset table rather than shipping loose
// files.
type Bundle struct {
	Data    []byte
	Entries []BundleEntry
}

// NewBundle wraps data and entries into a Bundle without copying data.
func NewBundle(data []byte, entries []BundleEntry) *Bundle {
	return &Bundle{Data: data, Entries: entries}
}

// Lookup finds path by linear string-equality scan over Entries, matching
// spec §6's "lookup is linear by string equality" — bundles are expected to
// be small enough (shader sources) that this is not worth indexing.
func (b *Bundle) Lookup(path string) ([]byte, error) {
	for _, e := range b.Entries {
		if e.Path != path {
			continue
		}
		end := e.StartOffset + e.SizeInBytes
		if end > uint64(len(b.Data)) {
			return nil, fmt.Errorf("asset: bundle entry %q out of range (%d..%d of %d bytes)", path, e.StartOffset, end, len(b.Data))
		}
		return b.Data[e.StartOffset:end], nil
	}
	return nil, fmt.Errorf("asset: %q not found in bundle: %w", path, ErrUnknownHandle)
}

// Has reports whether path is present in the bundle without allocating a
// slice.
func (b *Bundle) Has(path string) bool {
	for _, e := range b.Entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// LoadSource looks up path and wraps it as a gpu/shader.Source tagged with
// stage, the shape MaterialDefinition construction needs directly.
func (b *Bundle) LoadSource(path string, stage gshader.Stage, entry string) (gshader.Source, error) {
	code, err := b.Lookup(path)
	if err != nil {
		return gshader.Source{}, err
	}
	return gshader.Source{Stage: stage, Code: string(code), Entry: entry}, nil
}
