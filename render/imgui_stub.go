package render

import "github.com/gl1tchs/glitch/gpu"

// ImGuiBackend is the collaborator interface spec §6 names for ImGui
// integration: imgui_init_for_platform, imgui_new_frame_for_platform,
// imgui_render_for_platform(cmd), imgui_image_upload(image, sampler),
// imgui_image_free(opaque). The core never implements ImGui itself — spec §1
// places UI integration outside the core, interacting only through this
// interface — so no concrete backend lives in this package; an application
// wires one in via AddPass/its own extension hook if it needs one.
type ImGuiBackend interface {
	// InitForPlatform performs one-time setup against the given renderer.
	InitForPlatform(r *Renderer) error

	// NewFrameForPlatform starts an ImGui frame, called once per rendered frame
	// before any ImGui widget calls.
	NewFrameForPlatform()

	// RenderForPlatform records ImGui's draw data into cmd.
	RenderForPlatform(cmd gpu.CommandBuffer) error

	// ImageUpload registers a GPU image/sampler pair for use in ImGui widgets
	// (e.g. Image()) and returns an opaque texture ID.
	ImageUpload(image gpu.Image, sampler gpu.Sampler) (uintptr, error)

	// ImageFree releases a texture ID previously returned by ImageUpload.
	ImageFree(id uintptr) error
}
