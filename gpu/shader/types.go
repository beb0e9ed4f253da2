// Package shader reflects WGSL shader sources into the binding, vertex-input, and
// push-constant metadata the pipeline factory (gpu.Pipeline) needs. spec.md (§4.2)
// describes SPIR-V reflection; this backend compiles WGSL directly (there is no SPIR-V
// step in the WebGPU pipeline), so reflection here walks the WGSL source text the way
// the original engine's wgsl_parser.go does, producing the same shape of output:
// merged descriptor-set bindings, a sorted vertex-input list, and a push-constant
// stage mask.
package shader

// Stage identifies which shader stage a module is used for.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
)

// Source is one WGSL module tagged with the stage(s) it is used for, mirroring the
// "SPIR-V blob tagged with a stage" input described in §4.2.
type Source struct {
	Stage Stage
	Code  string
	Entry string
}

// BindingType identifies the kind of resource a reflected binding refers to.
type BindingType int

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingSampler
	BindingTexture
	BindingStorageTexture
)

// Binding is one reflected `@group(set) @binding(binding)` declaration, merged across
// every stage that declares it (§4.2 step 2: "merge bindings by (set, binding) across
// entry points, OR-ing stage flags").
type Binding struct {
	Set     int
	Binding int
	Type    BindingType
	Count   int // descriptor count; always 1, array dimensions are not parsed
	Stages  StageMask
}

// StageMask is the OR of every Stage a binding or push-constant range is visible from.
type StageMask uint8

const (
	StageMaskVertex StageMask = 1 << iota
	StageMaskFragment
	StageMaskCompute
)

func maskFor(s Stage) StageMask {
	switch s {
	case StageVertex:
		return StageMaskVertex
	case StageFragment:
		return StageMaskFragment
	default:
		return StageMaskCompute
	}
}

// VertexInput is one reflected vertex-shader input, ordered by SPIR-V/WGSL
// `@location` per §4.2's vertex input order policy.
type VertexInput struct {
	Location int
	Name     string
	Format   VertexFormat
	Offset   uint64 // assigned by summing preceding formats' sizes (tightly packed)
}

// VertexFormat is a minimal WGSL scalar/vector type the reflector recognizes for
// vertex attributes.
type VertexFormat int

const (
	FormatFloat32 VertexFormat = iota
	FormatFloat32x2
	FormatFloat32x3
	FormatFloat32x4
	FormatUint32
	FormatSint32
)

// Size returns the byte size of the format, used to assign tightly-packed offsets.
func (f VertexFormat) Size() uint64 {
	switch f {
	case FormatFloat32, FormatUint32, FormatSint32:
		return 4
	case FormatFloat32x2:
		return 8
	case FormatFloat32x3:
		return 12
	case FormatFloat32x4:
		return 16
	default:
		return 4
	}
}

// Reflection is the full output of reflecting one or more Sources: merged bindings
// grouped by set, the sorted vertex-input list (vertex stage only), the push-constant
// stage mask, and a content hash naming the pipeline cache file on disk.
type Reflection struct {
	Bindings      map[int][]Binding // set -> bindings, sorted by binding index
	VertexInputs  []VertexInput
	PushConstant  struct {
		Size   uint32
		Stages StageMask
	}
	ShaderHash uint64
}
