package sparks

import (
	"github.com/gekko3d/sparks/particlert/rt/app"
	"github.com/gekko3d/sparks/particlert/rt/core"
	"github.com/gekko3d/sparks/particlert/rt/particles"
)

// ParticleState is the App resource wrapping the particle pool.
type ParticleState struct {
	System   *particles.System
	Profiler *app.Profiler
	// Stats is the last counter readback. Refreshed every StatsEvery frames.
	Stats      particles.Stats
	StatsEvery int
	Paused     bool
}

// ParticleModule creates the pool on the installed RenderDevice. Compute
// phases run in Update, the draw runs in Render into the FrameTarget.
// Install a renderer module first.
type ParticleModule struct {
	Config     particles.Config
	StatsEvery int
}

func (m ParticleModule) Install(a *App, cmd *Commands) {
	rd := Resource[RenderDevice](a)
	if rd == nil {
		panic("ParticleModule requires a renderer module")
	}
	if !a.hasResource((*core.CameraState)(nil)) {
		cmd.AddResources(core.NewCameraState())
	}

	sys := particles.New(rd.Device, m.Config, a.Logger())
	if err := sys.Initialize(); err != nil {
		a.Logger().Errorf("particles: %v", err)
		panic(err)
	}
	a.Logger().Infof("Particle pool ready: %d slots on %s", sys.Capacity(), rd.Name)

	ps := &ParticleState{
		System:     sys,
		Profiler:   app.NewProfiler(),
		StatsEvery: m.StatsEvery,
	}
	cmd.AddResources(ps)
	cmd.OnShutdown(sys.Release)

	if a.hasResource((*Input)(nil)) {
		a.UseSystem(System(particleControlSystem).InStage(PreUpdate).RunAlways())
	}
	a.UseSystem(System(particleUpdateSystem).InStage(Update).RunAlways())
	a.UseSystem(System(particleRenderSystem).InStage(Render).RunAlways())
	a.UseSystem(System(particleStatsSystem).InStage(PostRender).RunAlways())
}

// particleControlSystem: R resets the pool, P pauses, -/= halve or double
// the fixed spawn budget.
func particleControlSystem(input *Input, ps *ParticleState, cmd *Commands) {
	if input.JustPressed[KeyR] {
		ps.System.RequestReset()
		cmd.Logger().Infof("Particle pool reset")
	}
	if input.JustPressed[KeyP] {
		ps.Paused = !ps.Paused
	}
	em := &ps.System.Emitter
	if input.JustPressed[KeyMinus] {
		em.MaxSpawn /= 2
	}
	if input.JustPressed[KeyEqual] {
		em.MaxSpawn = doubleSpawn(em.MaxSpawn, ps.System.Capacity())
	}
	if input.JustPressed[KeyF1] {
		cmd.Logger().Infof("%s", ps.Profiler.GetStatsString())
	}
}

// doubleSpawn doubles a spawn budget, saturating at the pool capacity.
func doubleSpawn(n, capacity uint32) uint32 {
	if n >= capacity/2 {
		return capacity
	}
	return max(n*2, 1)
}

func particleUpdateSystem(ps *ParticleState, rd *RenderDevice, cam *core.CameraState, t *Time, ft *FrameTarget) {
	// Nothing to project onto while the window is minimised.
	if ps.Paused || ft.Width == 0 || ft.Height == 0 {
		return
	}
	fd := core.NewFrameData(cam, ft.Width, ft.Height, t.Frame, t.Seconds(), float32(t.Elapsed.Seconds()))
	ctx := rd.Device.Context()
	ps.Profiler.Measure("Particles.Update", func() {
		ps.System.Update(ctx, fd)
	})
}

func particleRenderSystem(ps *ParticleState, rd *RenderDevice, ft *FrameTarget) {
	if ft.Target == nil {
		return
	}
	ps.Profiler.Measure("Particles.Render", func() {
		ps.System.Render(rd.Device.Context(), ft.Target)
	})
}

func particleStatsSystem(ps *ParticleState, rd *RenderDevice, t *Time, cmd *Commands) {
	if ps.StatsEvery <= 0 || t.Frame%uint32(ps.StatsEvery) != 0 {
		return
	}
	stats, err := ps.System.Stats(rd.Device.Context())
	if err != nil {
		cmd.Logger().Warnf("particle stats: %v", err)
		return
	}
	ps.Stats = stats
	ps.Profiler.SetCount("Alive", int(stats.Alive))
	ps.Profiler.SetCount("Dead", int(stats.Dead))
	cmd.Logger().Debugf("particles: frame %d alive %d dead %d spawn %d", stats.Frame, stats.Alive, stats.Dead, stats.SpawnedAt)
}
