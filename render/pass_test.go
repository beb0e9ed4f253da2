package render

import (
	"testing"

	"github.com/gl1tchs/glitch/gpu"
)

type fakePass struct {
	name     string
	priority int
}

func (f *fakePass) Name() string     { return f.name }
func (f *fakePass) Priority() int    { return f.priority }
func (f *fakePass) Setup(*Renderer) error { return nil }
func (f *fakePass) Execute(gpu.CommandBuffer, *Renderer) error { return nil }

func names(passes []Pass) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name()
	}
	return out
}

func TestInsertByPriorityOrdersAscending(t *testing.T) {
	var passes []Pass
	passes = insertByPriority(passes, &fakePass{name: "mesh", priority: 0})
	passes = insertByPriority(passes, &fakePass{name: "clear", priority: -10})
	passes = insertByPriority(passes, &fakePass{name: "grid", priority: -5})

	got := names(passes)
	want := []string{"clear", "grid", "mesh"}
	if len(got) != len(want) {
		t.Fatalf("insertByPriority produced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("insertByPriority = %v, want %v", got, want)
		}
	}
}

func TestInsertByPriorityBreaksTiesByInsertionOrder(t *testing.T) {
	var passes []Pass
	passes = insertByPriority(passes, &fakePass{name: "first", priority: 0})
	passes = insertByPriority(passes, &fakePass{name: "second", priority: 0})

	got := names(passes)
	want := []string{"first", "second"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("insertByPriority with equal priority = %v, want stable order %v", got, want)
		}
	}
}

func TestInsertByPriorityHandlesEmptySlice(t *testing.T) {
	var passes []Pass
	passes = insertByPriority(passes, &fakePass{name: "only", priority: 5})
	if len(passes) != 1 || passes[0].Name() != "only" {
		t.Fatalf("insertByPriority on empty slice = %v, want [only]", names(passes))
	}
}

func TestInsertByPriorityInsertsAtFront(t *testing.T) {
	var passes []Pass
	passes = insertByPriority(passes, &fakePass{name: "mesh", priority: 0})
	passes = insertByPriority(passes, &fakePass{name: "clear", priority: -10})

	if passes[0].Name() != "clear" {
		t.Fatalf("insertByPriority did not place lower-priority pass first: %v", names(passes))
	}
}
