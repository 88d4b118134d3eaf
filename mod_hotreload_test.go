package sparks

import (
	"os"
	"testing"
	"time"

	"github.com/gekko3d/sparks/particlert/rt/particles"
	"github.com/gekko3d/sparks/particlert/rt/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotReloadPicksUpWrites(t *testing.T) {
	path := writeFile(t, "sparks.yaml", "particles:\n  emitter:\n    maxSpawn: 10\n")
	hr, err := watchSettings(path, NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(hr.Close)

	require.NoError(t, os.WriteFile(path, []byte("particles:\n  emitter:\n    maxSpawn: 77\n"), 0o644))

	var got Settings
	require.Eventually(t, func() bool {
		s, ok := hr.Pending()
		if ok {
			got = s
		}
		return got.Particles.Emitter.MaxSpawn == 77
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHotReloadIgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "sparks.yaml", "debug: false\n")
	hr, err := watchSettings(path, NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(hr.Close)

	require.NoError(t, os.WriteFile(path+".bak", []byte("debug: true\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	_, ok := hr.Pending()
	assert.False(t, ok)
}

func TestHotReloadSystemAppliesEmitterAndResets(t *testing.T) {
	dev := soft.NewDevice(nil)
	cfg := particles.DefaultConfig()
	cfg.Capacity = 256
	sys := particles.New(dev, cfg, nil)
	require.NoError(t, sys.Initialize())
	t.Cleanup(sys.Release)

	current := DefaultSettings()
	hr := &HotReload{path: "sparks.yaml", updates: make(chan Settings, 4), log: NewNopLogger()}
	next := DefaultSettings()
	next.Particles.Emitter.MaxSpawn = 3
	next.Particles.Emitter.LifeSpan = 9
	hr.updates <- next

	ps := &ParticleState{System: sys}
	app := NewAppBuilder().Build()
	hotReloadSystem(hr, ps, &current, app.Commands())

	assert.Equal(t, uint32(3), sys.Emitter.MaxSpawn)
	assert.Equal(t, float32(9), sys.Emitter.LifeSpan)
	assert.Equal(t, uint32(3), current.Particles.Emitter.MaxSpawn)

	// nothing pending: no-op
	sys.Emitter.MaxSpawn = 5
	hotReloadSystem(hr, ps, &current, app.Commands())
	assert.Equal(t, uint32(5), sys.Emitter.MaxSpawn)
}
