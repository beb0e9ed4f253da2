package render

import "github.com/gl1tchs/glitch/gpu"

// Pass implements §4.9's pass contract: Setup runs once (declaring whatever
// named render images the pass needs), Execute runs every frame against an
// already-Begin'd command buffer. Passes are user-extensible; the renderer
// only relies on Priority to order them within a frame.
type Pass interface {
	// Name identifies the pass for logging and lookup.
	Name() string

	// Priority orders passes within a frame, lowest first. Built-in passes use
	// -10 (clear), -5 (grid), 0 (mesh).
	Priority() int

	// Setup runs once when the pass is added to the renderer, before any
	// frame executes, giving the pass a chance to declare render images via
	// r.CreateRenderImage.
	Setup(r *Renderer) error

	// Execute records this pass's work into cmd. The renderer has already
	// called Begin on cmd and will call End/Submit/Present after every pass
	// has executed.
	Execute(cmd gpu.CommandBuffer, r *Renderer) error
}

// insertByPriority inserts p into passes sorted by ascending priority, used by
// Renderer.AddPass; passes with equal priority keep their insertion order.
func insertByPriority(passes []Pass, p Pass) []Pass {
	i := 0
	for i < len(passes) && passes[i].Priority() <= p.Priority() {
		i++
	}
	passes = append(passes, nil)
	copy(passes[i+1:], passes[i:])
	passes[i] = p
	return passes
}
