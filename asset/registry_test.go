package asset

import (
	"encoding/json"
	"testing"
)

func TestRegistryRegisterAndGetRoundTrips(t *testing.T) {
	r := NewRegistry[string]("Texture")
	h := r.Register("brick.png", "res://textures/brick.png")

	got, ok := r.Get(h)
	if !ok {
		t.Fatal("Get after Register = false, want true")
	}
	if got != "brick.png" {
		t.Fatalf("Get = %q, want %q", got, "brick.png")
	}
}

func TestRegistryGetUnknownHandleReturnsFalse(t *testing.T) {
	r := NewRegistry[string]("Texture")
	if _, ok := r.Get(Handle(999)); ok {
		t.Fatal("Get(unknown handle) = true, want false")
	}
}

func TestRegistryEraseRemovesRegardlessOfRefcount(t *testing.T) {
	r := NewRegistry[string]("Texture")
	h := r.Register("a", "")
	r.Get(h) // bump refcount to 2

	if !r.Erase(h) {
		t.Fatal("Erase(live handle) = false, want true")
	}
	if _, ok := r.Get(h); ok {
		t.Fatal("Get after Erase succeeded, want false")
	}
}

func TestRegistryCollectGarbageOnlyRemovesZeroRefEntries(t *testing.T) {
	r := NewRegistry[string]("Texture")
	kept := r.Register("kept", "res://kept.png")
	r.Get(kept) // refs = 2, stays alive

	collected := r.Register("collected", "res://collected.png")
	r.Release(collected) // refs = 0, eligible for collection

	removed := r.CollectGarbage()
	if removed != 1 {
		t.Fatalf("CollectGarbage removed %d entries, want 1", removed)
	}
	if _, ok := r.Get(kept); !ok {
		t.Fatal("CollectGarbage removed an entry with outstanding references")
	}
	if _, ok := r.Get(collected); ok {
		t.Fatal("CollectGarbage left a zero-reference entry in place")
	}
}

func TestRegistryMarshalJSONOmitsMemoryAssets(t *testing.T) {
	r := NewRegistry[string]("Texture")
	r.Register("from-disk", "res://a.png")
	r.Register("in-memory", "")

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	var decoded map[string][]serializedEntry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	entries, ok := decoded["Texture"]
	if !ok {
		t.Fatal("serialized JSON missing the registry's type tag key")
	}
	if len(entries) != 1 {
		t.Fatalf("serialized %d entries, want 1 (memory asset should be omitted)", len(entries))
	}
	if entries[0].Path != "res://a.png" {
		t.Fatalf("serialized entry path = %q, want %q", entries[0].Path, "res://a.png")
	}
}

func TestSystemCollectGarbageSweepsAllTrackedRegistries(t *testing.T) {
	sys := NewSystem()
	r1 := NewRegistry[string]("Texture")
	r2 := NewRegistry[int]("Mesh")
	Track(sys, r1)
	Track(sys, r2)

	h1 := r1.Register("a", "")
	r1.Release(h1)
	h2 := r2.Register(1, "")
	r2.Release(h2)

	sys.CollectGarbage()

	if r1.Len() != 0 {
		t.Fatalf("r1.Len() = %d after System.CollectGarbage, want 0", r1.Len())
	}
	if r2.Len() != 0 {
		t.Fatalf("r2.Len() = %d after System.CollectGarbage, want 0", r2.Len())
	}
}
