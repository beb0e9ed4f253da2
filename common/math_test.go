package common

import "testing"

const epsilon = 1e-4

func approxEqual(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < epsilon
}

func TestIdentityProducesIdentityMatrix(t *testing.T) {
	var m [16]float32
	Identity(m[:])
	for i := 0; i < 16; i++ {
		want := float32(0)
		if i == 0 || i == 5 || i == 10 || i == 15 {
			want = 1
		}
		if !approxEqual(m[i], want) {
			t.Fatalf("m[%d] = %v, want %v", i, m[i], want)
		}
	}
}

func TestMul4WithIdentityIsNoOp(t *testing.T) {
	var id, a, out [16]float32
	Identity(id[:])
	BuildModelMatrix(a[:], 1, 2, 3, 0, 0, 0, 1, 1, 1)

	Mul4(out[:], id[:], a[:])
	for i := range a {
		if !approxEqual(out[i], a[i]) {
			t.Fatalf("Mul4(identity, a)[%d] = %v, want %v", i, out[i], a[i])
		}
	}
}

func TestBuildModelMatrixAppliesTranslation(t *testing.T) {
	var m [16]float32
	BuildModelMatrix(m[:], 5, -2, 10, 0, 0, 0, 1, 1, 1)
	if !approxEqual(m[12], 5) || !approxEqual(m[13], -2) || !approxEqual(m[14], 10) {
		t.Fatalf("translation column = (%v, %v, %v), want (5, -2, 10)", m[12], m[13], m[14])
	}
}

func TestInvert4RoundTripsThroughMul4(t *testing.T) {
	var m, inv, out, id [16]float32
	BuildModelMatrix(m[:], 3, -1, 2, 0.4, 0.9, -0.2, 2, 1, 0.5)

	if ok := Invert4(inv[:], m[:]); !ok {
		t.Fatal("Invert4 reported singular for a well-formed model matrix")
	}
	Mul4(out[:], m[:], inv[:])
	Identity(id[:])
	for i := range out {
		if !approxEqual(out[i], id[i]) {
			t.Fatalf("m * inverse(m) [%d] = %v, want %v", i, out[i], id[i])
		}
	}
}

func TestInvert4ReportsSingularForZeroMatrix(t *testing.T) {
	var zero, out [16]float32
	if ok := Invert4(out[:], zero[:]); ok {
		t.Fatal("Invert4 reported success for a singular (all-zero) matrix")
	}
}

func TestLookAtPlacesEyeAtOrigin(t *testing.T) {
	var view [16]float32
	LookAt(view[:], 0, 0, 5, 0, 0, 0, 0, 1, 0)

	// Transforming the eye position by the view matrix must land at the origin.
	x := view[0]*0 + view[4]*0 + view[8]*5 + view[12]
	y := view[1]*0 + view[5]*0 + view[9]*5 + view[13]
	z := view[2]*0 + view[6]*0 + view[10]*5 + view[14]
	if !approxEqual(x, 0) || !approxEqual(y, 0) || !approxEqual(z, 0) {
		t.Fatalf("eye mapped to (%v, %v, %v), want (0, 0, 0)", x, y, z)
	}
}

type sample struct {
	A int32
	B float32
}

func TestStructToBytesLengthMatchesStructSize(t *testing.T) {
	s := sample{A: 7, B: 1.5}
	b := StructToBytes(&s)
	if len(b) != 8 {
		t.Fatalf("len(bytes) = %d, want 8 for an int32+float32 struct", len(b))
	}
}

func TestSliceToBytesEmptyInputReturnsNil(t *testing.T) {
	var empty []sample
	if b := SliceToBytes(empty); b != nil {
		t.Fatalf("SliceToBytes(nil slice) = %v, want nil", b)
	}
}

func TestSliceToBytesLengthMatchesElementCount(t *testing.T) {
	data := []sample{{A: 1, B: 2}, {A: 3, B: 4}}
	b := SliceToBytes(data)
	if len(b) != 16 {
		t.Fatalf("len(bytes) = %d, want 16 for two 8-byte structs", len(b))
	}
}
