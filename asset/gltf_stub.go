package asset

import "github.com/gl1tchs/glitch/gpu"

// MeshData is the minimal GPU-ready shape a content loader hands back per
// mesh primitive: vertex bytes ready for upload, an index buffer's raw
// bytes, and the local-space bounds the scene package's culling needs.
type MeshData struct {
	VertexData []byte
	IndexData  []byte
	BoundsMin  [3]float32
	BoundsMax  [3]float32
}

// ContentLoader is the collaborator interface spec §6 places outside the
// core for GLTF (and any other mesh-format) content: `load<T>(path, args…)`
// generalized to a fixed mesh-loading shape. spec.md's Non-goals list GLTF
// as out of scope for the core itself ("GLTF: out of scope"), so no
// implementation lives in this module — an application supplies one backed
// by whatever parser it chooses and feeds the result into scene.Registry
// via scene.MeshPrimitive, using rm to create the GPU-resident buffers.
type ContentLoader interface {
	// Load resolves path (via AbsolutePath) and parses it into zero or more
	// mesh primitives, without creating any GPU resources itself.
	Load(path string) ([]MeshData, error)

	// Upload creates GPU-resident vertex/index buffers for one parsed mesh
	// using rm, returning the device address and buffer handle MeshPrimitive
	// needs.
	Upload(rm *gpu.ResourceManager, mesh MeshData) (vertexBufferAddress uint64, indexBuffer gpu.Buffer, indexCount uint32, err error)
}
