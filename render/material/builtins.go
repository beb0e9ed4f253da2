package material

import (
	"github.com/gl1tchs/glitch/gpu"
	gshader "github.com/gl1tchs/glitch/gpu/shader"

	"github.com/cogentcore/webgpu/wgpu"
)

// unlitWGSL is the built-in unlit definition's shader: a diffuse texture
// modulated by a base-color parameter, no lighting term. Kept minimal
// deliberately; it exists to exercise the definition/instance machinery with
// a shader that has exactly one texture slot and one vec4 parameter.
const unlitWGSL = `
struct SceneUniforms {
	view_proj: mat4x4<f32>,
};
struct MaterialUniforms {
	base_color: vec4<f32>,
};

@group(0) @binding(0) var<uniform> scene: SceneUniforms;
@group(1) @binding(0) var<uniform> mat: MaterialUniforms;
@group(1) @binding(1) var diffuse_tex: texture_2d<f32>;
@group(1) @binding(2) var diffuse_sampler: sampler;

struct VertexOut {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(
	@location(0) position: vec3<f32>,
	@location(1) uv: vec2<f32>,
) -> VertexOut {
	var out: VertexOut;
	out.position = scene.view_proj * vec4<f32>(position, 1.0);
	out.uv = uv;
	return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
	let sampled = textureSample(diffuse_tex, diffuse_sampler, in.uv);
	return sampled * mat.base_color;
}
`

// pbrWGSL is the built-in PBR standard definition's shader: base_color and
// metallic_roughness (one vec4) parameters plus diffuse/normal/metallic-roughness/
// ambient-occlusion texture slots, matching §4.10's two built-in
// definitions. The lighting model itself is a minimal placeholder (no BRDF
// evaluation against scene lights) since the scene package's lighting
// contract is outside this port's core scope; MeshPass still exercises the
// full parameter/texture layout this shader declares.
const pbrWGSL = `
struct SceneUniforms {
	view_proj: mat4x4<f32>,
	camera_pos_w: vec4<f32>,
};
struct MaterialUniforms {
	base_color: vec4<f32>,
	metallic_roughness: vec4<f32>,
};

@group(0) @binding(0) var<uniform> scene: SceneUniforms;
@group(1) @binding(0) var<uniform> mat: MaterialUniforms;
@group(1) @binding(1) var diffuse_tex: texture_2d<f32>;
@group(1) @binding(2) var diffuse_sampler: sampler;
@group(1) @binding(3) var normal_tex: texture_2d<f32>;
@group(1) @binding(4) var normal_sampler: sampler;
@group(1) @binding(5) var mr_tex: texture_2d<f32>;
@group(1) @binding(6) var mr_sampler: sampler;
@group(1) @binding(7) var ao_tex: texture_2d<f32>;
@group(1) @binding(8) var ao_sampler: sampler;

struct VertexOut {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
	@location(1) normal_w: vec3<f32>,
};

@vertex
fn vs_main(
	@location(0) position: vec3<f32>,
	@location(1) normal: vec3<f32>,
	@location(2) uv: vec2<f32>,
) -> VertexOut {
	var out: VertexOut;
	out.position = scene.view_proj * vec4<f32>(position, 1.0);
	out.uv = uv;
	out.normal_w = normal;
	return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
	let albedo = textureSample(diffuse_tex, diffuse_sampler, in.uv) * mat.base_color;
	let ao = textureSample(ao_tex, ao_sampler, in.uv).r;
	let ndotl = clamp(dot(normalize(in.normal_w), vec3<f32>(0.408, 0.816, 0.408)), 0.0, 1.0);
	return vec4<f32>(albedo.rgb * ao * (0.2 + 0.8 * ndotl), albedo.a);
}
`

// NewUnlitDefinition creates the built-in unlit material definition: a single
// vec4 base_color parameter and a single diffuse texture slot, per §4.10.
func NewUnlitDefinition(
	rm *gpu.ResourceManager,
	uniforms *gpu.UniformSetFactory,
	colorFormats []wgpu.TextureFormat,
	depthFormat *wgpu.TextureFormat,
	cacheDir string,
	identity gpu.DriverIdentity,
) (*Definition, error) {
	sources := []gshader.Source{
		{Stage: gshader.StageVertex, Code: unlitWGSL},
		{Stage: gshader.StageFragment, Code: unlitWGSL},
	}
	params := []ParamSpec{{Name: "base_color", Type: ParamVec4}}
	textures := []TextureSlot{{Name: "diffuse", Binding: 1}}
	vertexStride := uint64(5 * 4) // position (vec3) + uv (vec2)

	return CreateDefinition(rm, uniforms, colorFormats, depthFormat, vertexStride, sources, params, textures, cacheDir, identity, Options{
		DepthTest:   true,
		DepthWrite:  true,
		CompareFunc: wgpu.CompareFunctionLess,
		Topology:    wgpu.PrimitiveTopologyTriangleList,
	})
}

// NewPBRStandardDefinition creates the built-in PBR standard material
// definition: base_color and metallic_roughness (vec4) parameters and four texture
// slots (diffuse, normal, metallic-roughness, ambient-occlusion), per §4.10.
func NewPBRStandardDefinition(
	rm *gpu.ResourceManager,
	uniforms *gpu.UniformSetFactory,
	colorFormats []wgpu.TextureFormat,
	depthFormat *wgpu.TextureFormat,
	cacheDir string,
	identity gpu.DriverIdentity,
) (*Definition, error) {
	sources := []gshader.Source{
		{Stage: gshader.StageVertex, Code: pbrWGSL},
		{Stage: gshader.StageFragment, Code: pbrWGSL},
	}
	params := []ParamSpec{
		{Name: "base_color", Type: ParamVec4},
		{Name: "metallic_roughness", Type: ParamVec4},
	}
	textures := []TextureSlot{
		{Name: "diffuse", Binding: 1},
		{Name: "normal", Binding: 3},
		{Name: "metallic_roughness", Binding: 5},
		{Name: "occlusion", Binding: 7},
	}
	vertexStride := uint64(8 * 4) // position (vec3) + normal (vec3) + uv (vec2)

	return CreateDefinition(rm, uniforms, colorFormats, depthFormat, vertexStride, sources, params, textures, cacheDir, identity, Options{
		DepthTest:   true,
		DepthWrite:  true,
		CompareFunc: wgpu.CompareFunctionLess,
		Topology:    wgpu.PrimitiveTopologyTriangleList,
	})
}
