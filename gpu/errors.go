package gpu

import "errors"

// Error kinds form the taxonomy surfaced by the resource manager, pipeline factory,
// descriptor allocator, and swapchain. Callers use errors.Is against these sentinels;
// wrapped errors carry the offending handle or shape key via fmt.Errorf("...: %w", ...).
var (
	// ErrDeviceUnavailable indicates the instance/device/queue could not be brought up
	// with the features this package requires.
	ErrDeviceUnavailable = errors.New("gpu: device unavailable")

	// ErrOutOfDate indicates the swapchain must be recreated. Recoverable: the renderer
	// catches this inside the frame loop and schedules a resize on the next frame.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrAllocationFailed indicates memory or descriptor-pool exhaustion.
	ErrAllocationFailed = errors.New("gpu: allocation failed")

	// ErrCapacityExceeded indicates a single uniform set requested more descriptors of
	// one type than the allocator's per-type cap (maxSetsPerTypeInPool,
	// DefaultMaxSetsPerTypeInPool by default) allows.
	ErrCapacityExceeded = errors.New("gpu: per-pool capacity exceeded")

	// ErrShaderReflection indicates a shader module is missing a requested entry point
	// or is otherwise malformed.
	ErrShaderReflection = errors.New("gpu: shader reflection error")

	// ErrPipelineCreation indicates the driver rejected a pipeline.
	ErrPipelineCreation = errors.New("gpu: pipeline creation failed")

	// ErrFile indicates a shader/cache/asset path could not be read or written.
	ErrFile = errors.New("gpu: file error")

	// ErrInvalidArgument indicates malformed caller input: empty bytecode, mismatched
	// array sizes, an invalid MSAA count, or a missing required usage bit.
	ErrInvalidArgument = errors.New("gpu: invalid argument")

	// ErrFatal indicates a GPU hang, driver loss, or (in debug builds) a validation
	// error. The application is expected to abort on this error.
	ErrFatal = errors.New("gpu: fatal device error")

	// ErrHandleFreed indicates an operation was attempted on a handle that has already
	// been freed.
	ErrHandleFreed = errors.New("gpu: handle already freed")
)
