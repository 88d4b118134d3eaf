package sparks

import (
	"time"
)

// RendererName identifies a concrete renderer stack.
// Keep names aligned with ensureSingleRenderer tags.
type RendererName string

const (
	RendererWGPU RendererName = "webgpu"
	RendererSoft RendererName = "soft"
)

// RendererModules returns the platform modules for the named renderer, in
// install order. The window stack brings input and a flying camera; the soft
// stack runs headless with a fixed time step.
func RendererModules(name RendererName, s Settings) []Module {
	switch name {
	case RendererSoft:
		dt := time.Duration(float64(s.Headless.Dt) * float64(time.Second))
		return []Module{
			TimeModule{FixedDt: dt},
			HeadlessModule{
				Width:    s.Headless.Width,
				Height:   s.Headless.Height,
				Frames:   s.Headless.Frames,
				Snapshot: s.Headless.Snapshot,
				Workers:  s.Headless.Workers,
			},
		}
	default:
		return []Module{
			TimeModule{},
			NewPlatformWindow(s.Window.Width, s.Window.Height, s.Window.Title),
			InputModule{},
			SurfaceModule{VSync: s.Window.VSync},
			FlyingCameraModule{},
		}
	}
}
