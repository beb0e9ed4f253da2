package scene

import (
	"math"
	"testing"

	"github.com/gl1tchs/glitch/common"
)

func TestSpawnReturnsDistinctEntities(t *testing.T) {
	r := NewRegistry()
	a := r.Spawn()
	b := r.Spawn()
	if a == b {
		t.Fatal("two Spawn calls returned the same entity")
	}
}

func TestDespawnRemovesEveryComponent(t *testing.T) {
	r := NewRegistry()
	e := r.Spawn()
	r.AddTransform(e, Transform{Scale: [3]float32{1, 1, 1}})
	r.AddMesh(e, MeshRenderer{Visible: true})

	r.Despawn(e)

	if _, ok := r.Transform(e); ok {
		t.Fatal("Transform survived Despawn")
	}
	if _, ok := r.Mesh(e); ok {
		t.Fatal("MeshRenderer survived Despawn")
	}
}

func TestViewMeshesRequiresBothTransformAndMesh(t *testing.T) {
	r := NewRegistry()
	withBoth := r.Spawn()
	r.AddTransform(withBoth, Transform{})
	r.AddMesh(withBoth, MeshRenderer{})

	meshOnly := r.Spawn()
	r.AddMesh(meshOnly, MeshRenderer{})

	got := r.ViewMeshes()
	if len(got) != 1 || got[0] != withBoth {
		t.Fatalf("ViewMeshes = %v, want exactly [%v]", got, withBoth)
	}
}

func TestViewMeshesIsOrderedByEntityID(t *testing.T) {
	r := NewRegistry()
	var entities []Entity
	for i := 0; i < 5; i++ {
		e := r.Spawn()
		r.AddTransform(e, Transform{})
		r.AddMesh(e, MeshRenderer{})
		entities = append(entities, e)
	}

	got := r.ViewMeshes()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("ViewMeshes not ascending at index %d: %v", i, got)
		}
	}
}

func TestActiveCameraSkipsDisabledCameras(t *testing.T) {
	r := NewRegistry()
	disabled := r.Spawn()
	r.AddTransform(disabled, Transform{})
	r.AddCamera(disabled, Camera{Enabled: false})

	enabled := r.Spawn()
	r.AddTransform(enabled, Transform{Position: [3]float32{1, 2, 3}})
	r.AddCamera(enabled, Camera{Enabled: true, FovY: 1, Aspect: 1, Near: 0.1, Far: 100})

	e, cam, transform, ok := r.ActiveCamera()
	if !ok {
		t.Fatal("ActiveCamera found none, want the enabled camera")
	}
	if e != enabled {
		t.Fatalf("ActiveCamera returned entity %v, want %v", e, enabled)
	}
	if !cam.Enabled {
		t.Fatal("ActiveCamera returned a disabled camera")
	}
	if transform.Position != [3]float32{1, 2, 3} {
		t.Fatalf("ActiveCamera transform = %v, want {1,2,3}", transform.Position)
	}
}

func TestActiveCameraReturnsFalseWhenNoneEnabled(t *testing.T) {
	r := NewRegistry()
	e := r.Spawn()
	r.AddTransform(e, Transform{})
	r.AddCamera(e, Camera{Enabled: false})

	if _, _, _, ok := r.ActiveCamera(); ok {
		t.Fatal("ActiveCamera found a camera, want none (all disabled)")
	}
}

func TestTransformMatrixAppliesTranslation(t *testing.T) {
	tr := Transform{Position: [3]float32{1, 2, 3}, Scale: [3]float32{1, 1, 1}}
	m := tr.Matrix()
	if m[12] != 1 || m[13] != 2 || m[14] != 3 {
		t.Fatalf("Matrix translation column = (%v, %v, %v), want (1, 2, 3)", m[12], m[13], m[14])
	}
}

func TestCameraViewProjProducesFiniteMatrix(t *testing.T) {
	cam := Camera{Enabled: true, FovY: float32(math.Pi) / 3, Aspect: 16.0 / 9.0, Near: 0.1, Far: 1000}
	tr := Transform{Position: [3]float32{0, 0, 5}, Scale: [3]float32{1, 1, 1}}

	vp := cam.ViewProj(tr)
	for i, v := range vp {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("ViewProj[%d] = %v, want a finite value", i, v)
		}
	}
}

func TestCameraViewProjFeedsFrustumExtraction(t *testing.T) {
	cam := Camera{Enabled: true, FovY: 1.2, Aspect: 1, Near: 0.1, Far: 100}
	tr := Transform{Scale: [3]float32{1, 1, 1}}
	vp := cam.ViewProj(tr)

	f := common.ExtractFrustumFromMatrix(vp[:])
	if !f.IntersectsAABB(common.AABB{Min: [3]float32{-1, -1, -6}, Max: [3]float32{1, 1, -5}}) {
		t.Fatal("a small box directly ahead of the default-forward camera was culled")
	}
}
