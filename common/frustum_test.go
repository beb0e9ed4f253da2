package common

import "testing"

func identityFrustum() Frustum {
	var proj, view, vp [16]float32
	Perspective(proj[:], 1.0, 1.0, 0.1, 100)
	LookAt(view[:], 0, 0, 0, 0, 0, -1, 0, 1, 0)
	Mul4(vp[:], proj[:], view[:])
	return ExtractFrustumFromMatrix(vp[:])
}

func TestIntersectsAABBAcceptsBoxAtOrigin(t *testing.T) {
	f := identityFrustum()
	box := AABB{Min: [3]float32{-1, -1, -5}, Max: [3]float32{1, 1, -4}}
	if !f.IntersectsAABB(box) {
		t.Fatal("box directly in front of the camera reported as not visible")
	}
}

func TestIntersectsAABBRejectsBoxBehindCamera(t *testing.T) {
	f := identityFrustum()
	box := AABB{Min: [3]float32{-1, -1, 4}, Max: [3]float32{1, 1, 5}}
	if f.IntersectsAABB(box) {
		t.Fatal("box entirely behind the camera reported as visible")
	}
}

func TestIntersectsAABBRejectsBoxFarOutsideNearFrustum(t *testing.T) {
	f := identityFrustum()
	box := AABB{Min: [3]float32{100, 100, -5}, Max: [3]float32{101, 101, -4}}
	if f.IntersectsAABB(box) {
		t.Fatal("box far to the side of a narrow frustum reported as visible")
	}
}

func TestIntersectsAABBAcceptsBoxStraddlingAPlane(t *testing.T) {
	f := identityFrustum()
	// A huge box straddling the whole frustum must always be considered visible,
	// even though its center may sit outside any single plane's half-space.
	box := AABB{Min: [3]float32{-1000, -1000, -1000}, Max: [3]float32{1000, 1000, 1000}}
	if !f.IntersectsAABB(box) {
		t.Fatal("box enclosing the entire frustum reported as not visible")
	}
}

func TestExtractFrustumFromMatrixNormalizesPlaneNormals(t *testing.T) {
	f := identityFrustum()
	for i, p := range f.Planes {
		lenSq := p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2]
		if !approxEqual(lenSq, 1) {
			t.Fatalf("plane %d normal length^2 = %v, want ~1", i, lenSq)
		}
	}
}
