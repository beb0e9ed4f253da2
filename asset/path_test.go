package asset

import (
	"path/filepath"
	"testing"
)

func TestAbsolutePathRejectsEmptyPath(t *testing.T) {
	if _, err := AbsolutePath(""); err != ErrEmptyPath {
		t.Fatalf("AbsolutePath(\"\") error = %v, want ErrEmptyPath", err)
	}
}

func TestAbsolutePathPassesThroughBarePath(t *testing.T) {
	got, err := AbsolutePath("shaders/unlit.wgsl")
	if err != nil {
		t.Fatalf("AbsolutePath: %v", err)
	}
	if got != "shaders/unlit.wgsl" {
		t.Fatalf("AbsolutePath(bare) = %q, want unchanged", got)
	}
}

func TestAbsolutePathRejectsUnknownScheme(t *testing.T) {
	if _, err := AbsolutePath("http://example.com/x"); err != ErrInvalidIdentifier {
		t.Fatalf("AbsolutePath(unknown scheme) error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestAbsolutePathRequiresWorkingDirForResScheme(t *testing.T) {
	t.Setenv(WorkingDirEnv, "")
	if _, err := AbsolutePath("res://shaders/unlit.wgsl"); err != ErrUndefinedWorkingDir {
		t.Fatalf("AbsolutePath(res://) with no working dir error = %v, want ErrUndefinedWorkingDir", err)
	}
}

func TestAbsolutePathJoinsWorkingDirForResScheme(t *testing.T) {
	t.Setenv(WorkingDirEnv, "/project")
	got, err := AbsolutePath("res://shaders/unlit.wgsl")
	if err != nil {
		t.Fatalf("AbsolutePath: %v", err)
	}
	want := filepath.Join("/project", "shaders/unlit.wgsl")
	if got != want {
		t.Fatalf("AbsolutePath(res://) = %q, want %q", got, want)
	}
}

func TestIsMemoryPathRecognizesEmptyAndMemScheme(t *testing.T) {
	cases := map[string]bool{
		"":                true,
		"mem://anything":  true,
		"res://a.wgsl":    false,
		"plain/path.wgsl": false,
	}
	for path, want := range cases {
		if got := IsMemoryPath(path); got != want {
			t.Errorf("IsMemoryPath(%q) = %v, want %v", path, got, want)
		}
	}
}
