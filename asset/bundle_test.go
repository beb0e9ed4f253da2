package asset

import (
	"testing"

	gshader "github.com/gl1tchs/glitch/gpu/shader"
)

func testBundle() *Bundle {
	data := []byte("VERTEX_SOURCEFRAGMENT_SOURCE")
	return NewBundle(data, []BundleEntry{
		{Path: "unlit.vert.wgsl", StartOffset: 0, SizeInBytes: 13},
		{Path: "unlit.frag.wgsl", StartOffset: 13, SizeInBytes: 15},
	})
}

func TestBundleLookupFindsEntryByPath(t *testing.T) {
	b := testBundle()
	got, err := b.Lookup("unlit.frag.wgsl")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if string(got) != "FRAGMENT_SOURCE" {
		t.Fatalf("Lookup = %q, want %q", got, "FRAGMENT_SOURCE")
	}
}

func TestBundleLookupMissingPathReturnsError(t *testing.T) {
	b := testBundle()
	if _, err := b.Lookup("missing.wgsl"); err == nil {
		t.Fatal("Lookup(missing path) succeeded, want error")
	}
}

func TestBundleLookupOutOfRangeEntryReturnsError(t *testing.T) {
	b := NewBundle([]byte("short"), []BundleEntry{
		{Path: "bad.wgsl", StartOffset: 0, SizeInBytes: 1000},
	})
	if _, err := b.Lookup("bad.wgsl"); err == nil {
		t.Fatal("Lookup(out-of-range entry) succeeded, want error")
	}
}

func TestBundleHasReflectsPresence(t *testing.T) {
	b := testBundle()
	if !b.Has("unlit.vert.wgsl") {
		t.Fatal("Has(present path) = false, want true")
	}
	if b.Has("nope.wgsl") {
		t.Fatal("Has(absent path) = true, want false")
	}
}

func TestBundleLoadSourceWrapsCodeAndStage(t *testing.T) {
	b := testBundle()
	src, err := b.LoadSource("unlit.vert.wgsl", gshader.StageVertex, "vs_main")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if src.Stage != gshader.StageVertex {
		t.Fatalf("Stage = %v, want StageVertex", src.Stage)
	}
	if src.Entry != "vs_main" {
		t.Fatalf("Entry = %q, want %q", src.Entry, "vs_main")
	}
	if src.Code != "VERTEX_SOURCE" {
		t.Fatalf("Code = %q, want %q", src.Code, "VERTEX_SOURCE")
	}
}
