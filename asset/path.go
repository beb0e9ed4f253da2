package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathError enumerates the path-resolution failures named in
// AssetSystem::get_absolute_path.
type PathError int

const (
	ErrEmptyPath PathError = iota
	ErrInvalidIdentifier
	ErrUndefinedWorkingDir
)

func (e PathError) Error() string {
	switch e {
	case ErrEmptyPath:
		return "asset: empty path"
	case ErrInvalidIdentifier:
		return "asset: unrecognized path scheme"
	case ErrUndefinedWorkingDir:
		return "asset: GL_WORKING_DIR not set"
	default:
		return "asset: path error"
	}
}

// WorkingDirEnv is the environment variable consulted to expand res://
// paths, the only environment variable the core honors per spec §6's CLI
// surface note.
const WorkingDirEnv = "GL_WORKING_DIR"

// IsMemoryPath reports whether path names an in-memory asset: empty, or
// using the mem:// scheme, matching AssetMetadata::is_memory_asset.
func IsMemoryPath(path string) bool {
	return path == "" || strings.HasPrefix(path, "mem://")
}

// AbsolutePath resolves path under the res:// / mem:// / bare-path scheme
// rules named in spec §6, matching AssetSystem::get_absolute_path:
//   - res://<rel> resolves against GL_WORKING_DIR
//   - any other scheme (contains "://") is rejected, mem:// included: an
//     in-memory path has no filesystem location (see IsMemoryPath)
//   - a bare path is returned unchanged
func AbsolutePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	if !strings.HasPrefix(path, "res://") {
		if !strings.Contains(path, "://") {
			return path, nil
		}
		return "", ErrInvalidIdentifier
	}

	workingDir, ok := os.LookupEnv(WorkingDirEnv)
	if !ok || workingDir == "" {
		return "", ErrUndefinedWorkingDir
	}

	rel := strings.TrimPrefix(path, "res://")
	return filepath.Join(workingDir, rel), nil
}

// MustAbsolutePath is AbsolutePath for callers that treat an unresolved
// path as a programmer error (e.g. compiled-in bundle manifests).
func MustAbsolutePath(path string) string {
	abs, err := AbsolutePath(path)
	if err != nil {
		panic(fmt.Sprintf("asset: %v: %q", err, path))
	}
	return abs
}
