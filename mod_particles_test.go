package sparks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/sparks/particlert/rt/core"
	"github.com/gekko3d/sparks/particlert/rt/particles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessSettings(t *testing.T, frames int) Settings {
	s := DefaultSettings()
	s.Particles.Capacity = 1024
	s.Particles.Emitter.MaxSpawn = 10
	s.Particles.Emitter.LifeSpan = 2
	s.Particles.Emitter.LifeJitter = 0
	s.Headless.Width = 64
	s.Headless.Height = 64
	s.Headless.Frames = frames
	s.Headless.Snapshot = filepath.Join(t.TempDir(), "frame.png")
	s.Camera.Position = [3]float32{0, 1, 4}
	return s
}

func buildHeadless(t *testing.T, s Settings, extra ...Module) *App {
	t.Helper()
	cfg, err := s.ParticleConfig()
	require.NoError(t, err)
	return NewAppBuilder().
		UseModule(SettingsModule{Settings: s}).
		UseModule(RendererModules(RendererSoft, s)...).
		UseModule(ParticleModule{Config: cfg, StatsEvery: 1}).
		UseModule(extra...).
		Build()
}

func TestHeadlessRunSpawnsAndSnapshots(t *testing.T) {
	s := headlessSettings(t, 30)
	app := buildHeadless(t, s)

	ps := Resource[ParticleState](app)
	require.NotNil(t, ps)
	hs := Resource[HeadlessState](app)
	require.NotNil(t, hs)

	app.Run()

	assert.Equal(t, uint64(30), app.Frame())
	assert.Equal(t, uint32(30), ps.Stats.Frame)
	assert.Equal(t, uint32(300), ps.Stats.Alive)
	assert.Equal(t, uint32(1024-300), ps.Stats.Dead)
	assert.Greater(t, hs.Target.Coverage(hs.ClearColor), 0)

	_, err := os.Stat(s.Headless.Snapshot)
	assert.NoError(t, err)
}

func TestHeadlessPauseFreezesPool(t *testing.T) {
	s := headlessSettings(t, 0)
	s.Headless.Snapshot = ""
	app := buildHeadless(t, s)
	ps := Resource[ParticleState](app)
	t.Cleanup(app.runShutdown)

	for i := 0; i < 5; i++ {
		app.Step()
	}
	require.Equal(t, uint32(50), ps.Stats.Alive)

	ps.Paused = true
	for i := 0; i < 5; i++ {
		app.Step()
	}
	assert.Equal(t, uint32(50), ps.Stats.Alive)
	assert.Equal(t, uint32(5), ps.Stats.Frame)
}

func TestParticleModuleUsesSettingsCamera(t *testing.T) {
	s := headlessSettings(t, 1)
	s.Camera.Position = [3]float32{1, 2, 3}
	app := buildHeadless(t, s)

	cam := Resource[core.CameraState](app)
	require.NotNil(t, cam)
	assert.Equal(t, float32(3), cam.Position.Z())
	assert.Equal(t, float32(1), cam.Position.X())
	app.Run()
}

func TestParticleModuleRequiresRenderer(t *testing.T) {
	assert.Panics(t, func() {
		NewAppBuilder().UseModule(ParticleModule{Config: mustConfig(t, DefaultSettings())}).Build()
	})
}

func TestSecondRendererPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewAppBuilder().
			UseModule(HeadlessModule{Width: 8, Height: 8}).
			UseModule(SurfaceModule{}).
			Build()
	})
}

func mustConfig(t *testing.T, s Settings) particles.Config {
	cfg, err := s.ParticleConfig()
	require.NoError(t, err)
	return cfg
}

func TestDoubleSpawnSaturatesAtCapacity(t *testing.T) {
	assert.Equal(t, uint32(1), doubleSpawn(0, 1024))
	assert.Equal(t, uint32(20), doubleSpawn(10, 1024))
	assert.Equal(t, uint32(1024), doubleSpawn(512, 1024))
	assert.Equal(t, uint32(1024), doubleSpawn(1<<31, 1024))
	assert.Equal(t, uint32(1024), doubleSpawn(^uint32(0), 1024))
}
