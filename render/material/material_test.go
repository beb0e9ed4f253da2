package material

import "testing"

func TestParamTypeSize(t *testing.T) {
	cases := map[ParamType]uint32{
		ParamFloat: 4,
		ParamVec2:  8,
		ParamVec3:  12,
		ParamVec4:  16,
	}
	for typ, want := range cases {
		if got := typ.size(); got != want {
			t.Errorf("ParamType(%d).size() = %d, want %d", typ, got, want)
		}
	}
}

func TestParamTypeAlignTreatsVec3As16ByteAligned(t *testing.T) {
	if got := ParamVec3.align(); got != 16 {
		t.Fatalf("ParamVec3.align() = %d, want 16", got)
	}
}

func TestParamTypeAlignMatchesSizeForNonVec3(t *testing.T) {
	cases := []ParamType{ParamFloat, ParamVec2, ParamVec4}
	for _, typ := range cases {
		if got, want := typ.align(), typ.size(); got != want {
			t.Errorf("ParamType(%d).align() = %d, want %d (= size)", typ, got, want)
		}
	}
}

func TestAlignUpRoundsToNextMultiple(t *testing.T) {
	cases := []struct{ v, a, want uint32 }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{4, 8, 8},
	}
	for _, c := range cases {
		if got := alignUp(c.v, c.a); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.v, c.a, got, c.want)
		}
	}
}

func TestCreateDefinitionPacksParamsInDeclarationOrderWithAlignment(t *testing.T) {
	params := []ParamSpec{
		{Name: "opacity", Type: ParamFloat}, // offset 0, size 4
		{Name: "tint", Type: ParamVec3},     // aligned up to 16, size 12
		{Name: "scale", Type: ParamVec2},     // aligned up to 32, size 8
	}

	layout, bufSize := packParams(params)

	if layout["opacity"].offset != 0 {
		t.Errorf("opacity offset = %d, want 0", layout["opacity"].offset)
	}
	if layout["tint"].offset != 16 {
		t.Errorf("tint offset = %d, want 16", layout["tint"].offset)
	}
	if layout["scale"].offset != 32 {
		t.Errorf("scale offset = %d, want 32", layout["scale"].offset)
	}
	if bufSize != 48 {
		t.Errorf("bufSize = %d, want 48", bufSize)
	}
}

func TestWriteFloat32PacksLittleEndianAtOffset(t *testing.T) {
	dst := make([]byte, 12)
	writeFloat32(dst, 4, 1.0)

	want := []byte{0, 0, 0x80, 0x3f} // IEEE-754 little-endian encoding of 1.0
	for i, b := range want {
		if dst[4+i] != b {
			t.Fatalf("dst[%d] = %#x, want %#x", 4+i, dst[4+i], b)
		}
	}
	for _, i := range []int{0, 1, 2, 3, 8, 9, 10, 11} {
		if dst[i] != 0 {
			t.Fatalf("writeFloat32 touched byte %d outside its 4-byte window", i)
		}
	}
}
