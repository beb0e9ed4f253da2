package shader

import (
	"hash/fnv"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	groupBindingRe = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(<[^>]*>)?\s+(\w+)\s*:\s*([\w<>,\s]+?)\s*[;,]`)
	locationRe     = regexp.MustCompile(`@location\((\d+)\)\s+(\w+)\s*:\s*([\w<>]+)\s*[,})]`)
	entryRe        = regexp.MustCompile(`@(vertex|fragment|compute)\s+fn\s+(\w+)`)
)

var vertexFormats = map[string]VertexFormat{
	"f32":       FormatFloat32,
	"vec2f":     FormatFloat32x2,
	"vec2<f32>": FormatFloat32x2,
	"vec3f":     FormatFloat32x3,
	"vec3<f32>": FormatFloat32x3,
	"vec4f":     FormatFloat32x4,
	"vec4<f32>": FormatFloat32x4,
	"i32":       FormatSint32,
	"u32":       FormatUint32,
}

// Reflect implements §4.2's steps 1-5 across one or more sources: per-source
// reflection, merge-by-(set,binding) with OR'd stage flags, sorted vertex inputs with
// tightly-packed offsets, and a content hash over every source plus the declared
// stage mask.
func Reflect(sources []Source) (*Reflection, error) {
	r := &Reflection{Bindings: make(map[int][]Binding)}

	hasher := fnv.New64a()
	var stageMask StageMask

	for _, src := range sources {
		stageMask |= maskFor(src.Stage)
		hasher.Write([]byte(src.Code))

		for _, m := range groupBindingRe.FindAllStringSubmatch(src.Code, -1) {
			set, _ := strconv.Atoi(m[1])
			binding, _ := strconv.Atoi(m[2])
			typeName := m[5]
			bindingType, count := classifyBindingType(typeName)

			r.mergeBinding(set, Binding{
				Set:     set,
				Binding: binding,
				Type:    bindingType,
				Count:   count,
				Stages:  maskFor(src.Stage),
			})
		}

		if src.Stage == StageVertex {
			inputs, err := reflectVertexInputs(src.Code)
			if err != nil {
				return nil, err
			}
			r.VertexInputs = inputs
		}
	}

	for set := range r.Bindings {
		sort.Slice(r.Bindings[set], func(i, j int) bool {
			return r.Bindings[set][i].Binding < r.Bindings[set][j].Binding
		})
	}

	r.PushConstant.Stages = stageMask
	hasher.Write([]byte{byte(stageMask)})
	r.ShaderHash = hasher.Sum64()

	return r, nil
}

// mergeBinding implements §4.2 step 2: bindings sharing (set, binding) are merged by
// OR-ing their stage flags rather than duplicated.
func (r *Reflection) mergeBinding(set int, b Binding) {
	for i, existing := range r.Bindings[set] {
		if existing.Binding == b.Binding {
			r.Bindings[set][i].Stages |= b.Stages
			return
		}
	}
	r.Bindings[set] = append(r.Bindings[set], b)
}

func classifyBindingType(typeName string) (BindingType, int) {
	switch {
	case hasPrefix(typeName, "texture_storage"):
		return BindingStorageTexture, 1
	case hasPrefix(typeName, "texture"):
		return BindingTexture, 1
	case hasPrefix(typeName, "sampler"):
		return BindingSampler, 1
	case hasPrefix(typeName, "array<"):
		return BindingStorageBuffer, 1
	default:
		// The var's address-space qualifier (<uniform> or <storage, ...>) is not
		// passed in here, so this simplified reflector treats any remaining struct
		// reference as a uniform buffer, including one declared in the storage
		// address space. That covers every built-in material definition (§4.10).
		return BindingUniformBuffer, 1
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// reflectVertexInputs parses the @location parameters of the vertex-stage entry
// point, sorts them by @location, and assigns tightly-packed offsets, per §4.2's
// vertex input order policy. Built-ins (@builtin-tagged parameters) are skipped.
// Only the entry point's own parameter list is scanned: the fields of a
// struct-typed input parameter are not followed. Source without an @vertex entry
// point is scanned whole.
func reflectVertexInputs(code string) ([]VertexInput, error) {
	scope := code
	for _, m := range entryRe.FindAllStringSubmatchIndex(code, -1) {
		if code[m[2]:m[3]] != "vertex" {
			continue
		}
		scope = code[m[1]:]
		if end := strings.Index(scope, "{"); end >= 0 {
			scope = scope[:end]
		}
		break
	}
	matches := locationRe.FindAllStringSubmatch(scope, -1)
	inputs := make([]VertexInput, 0, len(matches))
	for _, m := range matches {
		loc, _ := strconv.Atoi(m[1])
		name := m[2]
		typeName := m[3]
		format, ok := vertexFormats[typeName]
		if !ok {
			format = FormatFloat32
		}
		inputs = append(inputs, VertexInput{Location: loc, Name: name, Format: format})
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })

	var offset uint64
	for i := range inputs {
		inputs[i].Offset = offset
		offset += inputs[i].Format.Size()
	}

	return inputs, nil
}
