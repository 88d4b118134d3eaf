package sparks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsYAML(t *testing.T) {
	path := writeFile(t, "sparks.yaml", `
debug: true
particles:
  capacity: 4096
  blend: additive
  emitter:
    maxSpawn: 50
    lifeSpan: 3.5
    origin: [1, 2, 3]
telemetry:
  addr: 127.0.0.1:7070
`)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.True(t, s.Debug)
	assert.Equal(t, uint32(4096), s.Particles.Capacity)
	assert.Equal(t, uint32(50), s.Particles.Emitter.MaxSpawn)
	assert.Equal(t, "127.0.0.1:7070", s.Telemetry.Addr)
	// untouched keys keep their defaults
	assert.Equal(t, 1280, s.Window.Width)
	assert.Equal(t, DefaultSettings().Particles.Emitter.StartSize, s.Particles.Emitter.StartSize)

	cfg, err := s.ParticleConfig()
	require.NoError(t, err)
	assert.Equal(t, gpu.BlendAdditive, cfg.Blend)
	assert.Equal(t, float32(3.5), cfg.Emitter.LifeSpan)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, cfg.Emitter.Origin)
}

func TestLoadSettingsTOML(t *testing.T) {
	path := writeFile(t, "sparks.toml", `
[window]
width = 800
height = 600

[camera]
position = [0.0, 1.0, 5.0]
yaw = 90.0

[particles.emitter]
spawnRate = 120.0
`)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 800, s.Window.Width)
	assert.Equal(t, float32(120), s.Particles.Emitter.SpawnRate)

	cam := s.CameraState()
	assert.Equal(t, mgl32.Vec3{0, 1, 5}, cam.Position)
	assert.InDelta(t, mgl32.DegToRad(90), cam.Yaw, 1e-6)
}

func TestLoadSettingsErrors(t *testing.T) {
	_, err := LoadSettings(writeFile(t, "sparks.json", `{}`))
	assert.ErrorIs(t, err, ErrUnknownSettingsFormat)

	_, err = LoadSettings(writeFile(t, "bad.yaml", "particles:\n  capacty: 3\n"))
	assert.Error(t, err)

	_, err = LoadSettings(writeFile(t, "empty.yaml", ""))
	assert.NoError(t, err)
}

func TestParticleConfigValidation(t *testing.T) {
	s := DefaultSettings()
	s.Particles.Blend = "multiply"
	_, err := s.ParticleConfig()
	assert.Error(t, err)

	s = DefaultSettings()
	s.Particles.Capacity = 0
	_, err = s.ParticleConfig()
	assert.Error(t, err)
}

func TestEmitterSettingsRoundTripDefaults(t *testing.T) {
	s := DefaultSettings()
	cfg, err := s.ParticleConfig()
	require.NoError(t, err)
	assert.Equal(t, emitterSettingsFrom(cfg.Emitter), s.Particles.Emitter)
}
