package webgpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// SurfaceTarget is a colour target backed by a texture view, usually the
// current swapchain image. The view changes every frame; the identity does not.
type SurfaceTarget struct {
	id     uuid.UUID
	view   *wgpu.TextureView
	width  int
	height int
}

func NewSurfaceTarget() *SurfaceTarget {
	return &SurfaceTarget{id: uuid.New()}
}

// Reset points the target at this frame's view. The caller keeps ownership of view.
func (t *SurfaceTarget) Reset(view *wgpu.TextureView, width, height int) {
	t.view = view
	t.width = width
	t.height = height
}

func (t *SurfaceTarget) ID() uuid.UUID             { return t.id }
func (t *SurfaceTarget) Size() (width, height int) { return t.width, t.height }
func (t *SurfaceTarget) View() *wgpu.TextureView   { return t.view }
