// Package scene implements a minimal entity/component registry: entities are
// opaque IDs, components are plain structs stored in per-type maps, and
// ViewCameras/ViewMeshes/ViewLights give mesh pass exactly the iteration it needs (transform, mesh,
// camera, light) without the graph of attached animators and lights the
// teacher's GameObject carries.
package scene

import (
	"sort"
	"sync/atomic"

	"github.com/gl1tchs/glitch/common"
	"github.com/gl1tchs/glitch/gpu"
	"github.com/gl1tchs/glitch/render/material"
)

// Entity is an opaque handle to a row in the scene registry.
type Entity uint64

// Transform is the position/rotation/scale component every renderable or
// camera entity carries. Rotation is Euler angles in radians, matching
// common.BuildModelMatrix's Y*X*Z order.
type Transform struct {
	Position [3]float32
	Rotation [3]float32
	Scale    [3]float32
}

// Matrix builds this transform's model matrix.
func (t Transform) Matrix() [16]float32 {
	var out [16]float32
	common.BuildModelMatrix(out[:],
		t.Position[0], t.Position[1], t.Position[2],
		t.Rotation[0], t.Rotation[1], t.Rotation[2],
		t.Scale[0], t.Scale[1], t.Scale[2])
	return out
}

// Camera is the component MeshPass looks for to find the active view.
// Only one enabled Camera is honored per frame; the first found by entity
// order wins, matching §4.9's "finds the first enabled camera".
type Camera struct {
	Enabled bool
	FovY    float32
	Aspect  float32
	Near    float32
	Far     float32
}

// ViewProj computes this camera's view-projection matrix from the transform
// of the entity it is attached to.
func (c Camera) ViewProj(t Transform) [16]float32 {
	eye := t.Position
	forward := rotateForward(t.Rotation)
	target := [3]float32{eye[0] + forward[0], eye[1] + forward[1], eye[2] + forward[2]}

	var view, proj, out [16]float32
	common.LookAt(view[:], eye[0], eye[1], eye[2], target[0], target[1], target[2], 0, 1, 0)
	common.Perspective(proj[:], c.FovY, c.Aspect, c.Near, c.Far)
	common.Mul4(out[:], proj[:], view[:])
	return out
}

func rotateForward(rot [3]float32) [3]float32 {
	var m [16]float32
	common.BuildModelMatrix(m[:], 0, 0, 0, rot[0], rot[1], rot[2], 1, 1, 1)
	// forward is -Z transformed by rotation only (no translation, unit scale).
	return [3]float32{-m[8], -m[9], -m[10]}
}

// MeshPrimitive describes a single drawable GPU-resident mesh assigned to a
// material pipeline, grounded on the shape MeshPass needs per §4.9: a vertex
// buffer device address, an index buffer handle, index count, and a
// local-space bounding box for culling.
type MeshPrimitive struct {
	VertexBufferAddress uint64
	IndexBuffer         gpu.Buffer
	IndexCount          uint32
	LocalBounds         common.AABB
	MaterialInstance    *material.Instance
}

// MeshRenderer is the component attached to entities MeshPass draws.
type MeshRenderer struct {
	Primitives []MeshPrimitive
	Visible    bool
}

// LightKind distinguishes the handful of light shapes a scene can host.
type LightKind int

const (
	LightPoint LightKind = iota
	LightDirectional
)

// Light is the component attached to entities that emit light. Position and
// direction derive from the entity's Transform.
type Light struct {
	Kind      LightKind
	Color     [3]float32
	Intensity float32
}

var nextEntity uint64

// NewEntity mints a fresh, never-reused entity ID.
func NewEntity() Entity {
	return Entity(atomic.AddUint64(&nextEntity, 1))
}

// Registry owns every entity and component table in a scene. It is not
// safe for concurrent writes; per §5, scene mutation happens from the single
// render/update thread only.
type Registry struct {
	entities   map[Entity]struct{}
	transforms map[Entity]*Transform
	cameras    map[Entity]*Camera
	meshes     map[Entity]*MeshRenderer
	lights     map[Entity]*Light
}

// NewRegistry constructs an empty scene registry.
func NewRegistry() *Registry {
	return &Registry{
		entities:   make(map[Entity]struct{}),
		transforms: make(map[Entity]*Transform),
		cameras:    make(map[Entity]*Camera),
		meshes:     make(map[Entity]*MeshRenderer),
		lights:     make(map[Entity]*Light),
	}
}

// Spawn creates a new entity and returns its ID. The entity carries no
// components until one of AddTransform/AddCamera/AddMesh/AddLight is called.
func (r *Registry) Spawn() Entity {
	e := NewEntity()
	r.entities[e] = struct{}{}
	return e
}

// Despawn removes an entity and every component attached to it.
func (r *Registry) Despawn(e Entity) {
	delete(r.entities, e)
	delete(r.transforms, e)
	delete(r.cameras, e)
	delete(r.meshes, e)
	delete(r.lights, e)
}

func (r *Registry) AddTransform(e Entity, t Transform) { r.transforms[e] = &t }
func (r *Registry) AddCamera(e Entity, c Camera)       { r.cameras[e] = &c }
func (r *Registry) AddMesh(e Entity, m MeshRenderer)   { r.meshes[e] = &m }
func (r *Registry) AddLight(e Entity, l Light)         { r.lights[e] = &l }

func (r *Registry) Transform(e Entity) (*Transform, bool) { t, ok := r.transforms[e]; return t, ok }
func (r *Registry) Camera(e Entity) (*Camera, bool)       { c, ok := r.cameras[e]; return c, ok }
func (r *Registry) Mesh(e Entity) (*MeshRenderer, bool)   { m, ok := r.meshes[e]; return m, ok }
func (r *Registry) Light(e Entity) (*Light, bool)         { l, ok := r.lights[e]; return l, ok }

// ViewCameras returns every entity with a Camera component, ordered by
// entity ID so frame-to-frame iteration is deterministic.
func (r *Registry) ViewCameras() []Entity {
	return sortedKeysC(r.cameras)
}

// ViewMeshes returns every entity with both a Transform and a MeshRenderer,
// the pair MeshPass needs to cull and draw — the `view<Components...>()`
// contract named in spec §6.
func (r *Registry) ViewMeshes() []Entity {
	out := make([]Entity, 0, len(r.meshes))
	for e := range r.meshes {
		if _, ok := r.transforms[e]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ViewLights returns every entity with both a Transform and a Light.
func (r *Registry) ViewLights() []Entity {
	out := make([]Entity, 0, len(r.lights))
	for e := range r.lights {
		if _, ok := r.transforms[e]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysC(m map[Entity]*Camera) []Entity {
	out := make([]Entity, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActiveCamera returns the first enabled camera in entity order, along with
// its transform, matching §4.9's "finds the first enabled camera".
func (r *Registry) ActiveCamera() (Entity, Camera, Transform, bool) {
	for _, e := range r.ViewCameras() {
		c := r.cameras[e]
		if !c.Enabled {
			continue
		}
		t, ok := r.transforms[e]
		if !ok {
			continue
		}
		return e, *c, *t, true
	}
	return 0, Camera{}, Transform{}, false
}
