package sparks

import (
	"image/color"

	"github.com/gekko3d/sparks/particlert/rt/soft"
)

// HeadlessState is the soft renderer's frame bookkeeping.
type HeadlessState struct {
	Device *soft.Device
	Target *soft.Target
	// Frames is the run length. Zero runs until another system exits.
	Frames     int
	Snapshot   string
	ClearColor color.RGBA
}

// HeadlessModule runs the pool on the soft device and draws into an image.
// After Frames frames it writes the snapshot, if set, and exits.
type HeadlessModule struct {
	Width    int
	Height   int
	Frames   int
	Snapshot string
	Workers  int
}

func (m HeadlessModule) Install(a *App, cmd *Commands) {
	ensureSingleRenderer(a, string(RendererSoft))
	width, height := m.Width, m.Height
	if width <= 0 {
		width = 256
	}
	if height <= 0 {
		height = 256
	}

	dev := soft.NewDevice(a.Logger(), soft.WithWorkers(m.Workers))
	hs := &HeadlessState{
		Device:     dev,
		Target:     soft.NewTarget(width, height),
		Frames:     m.Frames,
		Snapshot:   m.Snapshot,
		ClearColor: color.RGBA{5, 5, 8, 255},
	}
	cmd.AddResources(
		hs,
		&RenderDevice{Name: string(RendererSoft), Device: dev},
		&FrameTarget{Target: hs.Target, Width: width, Height: height},
	)

	a.UseSystem(System(headlessClearSystem).InStage(PreRender).RunAlways())
	a.UseSystem(System(headlessFinishSystem).InStage(Finale).RunAlways())
}

func headlessClearSystem(hs *HeadlessState) {
	hs.Target.Clear(hs.ClearColor)
}

func headlessFinishSystem(hs *HeadlessState, t *Time, cmd *Commands) {
	if hs.Frames <= 0 || int(t.Frame) < hs.Frames {
		return
	}
	if hs.Snapshot != "" {
		if err := hs.Target.WritePNG(hs.Snapshot); err != nil {
			cmd.Logger().Errorf("%v", err)
		} else {
			cmd.Logger().Infof("Snapshot written to %s", hs.Snapshot)
		}
	}
	cmd.Exit()
}
