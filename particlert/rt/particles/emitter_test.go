package particles

import (
	"testing"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnBudgetFixed(t *testing.T) {
	e := DefaultEmitter()
	e.MaxSpawn = 7
	for range 5 {
		assert.Equal(t, uint32(7), e.SpawnBudget(1.0/60))
	}
}

func TestSpawnBudgetAccumulatesRate(t *testing.T) {
	e := DefaultEmitter()
	e.SpawnRate = 30
	var total uint32
	seq := make([]uint32, 0, 60)
	for range 60 {
		n := e.SpawnBudget(1.0 / 60)
		seq = append(seq, n)
		total += n
	}
	assert.Equal(t, uint32(30), total)
	for _, n := range seq {
		assert.LessOrEqual(t, n, uint32(1))
	}
	assert.Equal(t, uint32(0), e.SpawnBudget(0))
}

func TestSpawnBudgetRateIsBounded(t *testing.T) {
	e := DefaultEmitter()
	e.SpawnRate = 1e30
	assert.Equal(t, uint32(maxRateBudget), e.SpawnBudget(1.0/60))
	assert.Equal(t, uint32(maxRateBudget), e.SpawnBudget(1.0/60))

	e.SpawnRate = 10
	assert.Equal(t, uint32(5), e.SpawnBudget(0.5))
}

func TestEmitterPackLayout(t *testing.T) {
	e := Emitter{
		Origin:         mgl32.Vec3{1, 2, 3},
		PositionJitter: 0.5,
		Velocity:       mgl32.Vec3{4, 5, 6},
		VelocityJitter: 0.25,
		Acceleration:   mgl32.Vec3{0, -9.81, 0},
		LifeSpan:       2,
		LifeJitter:     0.1,
		StartSize:      0.3,
		EndSize:        0.1,
		Mass:           1.5,
		MassDelta:      -0.5,
		StartColor:     mgl32.Vec4{1, 0, 0, 1},
		EndColor:       mgl32.Vec4{0, 0, 1, 0},
		Seed:           1234,
	}
	raw := e.pack(17, 99)
	require.Len(t, raw, emitterConstantsSize)

	w := make([]uint32, emitterConstantsSize/4)
	gpu.BytesToWords(w, raw)
	assert.Equal(t, [3]float32{1, 2, 3}, gpu.Vec3(w, eOrigin))
	assert.Equal(t, float32(2), gpu.F32(w, eLifeSpan))
	assert.Equal(t, [3]float32{4, 5, 6}, gpu.Vec3(w, eVelocity))
	assert.Equal(t, float32(0.25), gpu.F32(w, eVelocityJitter))
	assert.Equal(t, float32(-9.81), gpu.F32(w, eAcceleration+1))
	assert.Equal(t, float32(0.5), gpu.F32(w, ePositionJitter))
	assert.Equal(t, [4]float32{1, 0, 0, 1}, gpu.Vec4(w, eStartColor))
	assert.Equal(t, [4]float32{0, 0, 1, 0}, gpu.Vec4(w, eEndColor))
	assert.Equal(t, float32(0.3), gpu.F32(w, eStartSize))
	assert.Equal(t, float32(0.1), gpu.F32(w, eEndSize))
	assert.Equal(t, float32(1.5), gpu.F32(w, eMass))
	assert.Equal(t, float32(-0.5), gpu.F32(w, eMassDelta))
	assert.Equal(t, uint32(17), w[eMaxSpawn])
	assert.Equal(t, uint32(1234), w[eSeed])
	assert.Equal(t, uint32(99), w[eFrameIndex])
	assert.Equal(t, float32(0.1), gpu.F32(w, eLifeJitter))
}

func TestRNGDeterministicAndBounded(t *testing.T) {
	a := newRNG(7, 3, 11)
	b := newRNG(7, 3, 11)
	for range 1000 {
		x, y := a.float(), b.float()
		require.Equal(t, x, y)
		require.GreaterOrEqual(t, x, float32(0))
		require.Less(t, x, float32(1))
	}

	seen := map[uint32]bool{}
	for id := uint32(0); id < 256; id++ {
		r := newRNG(7, 3, id)
		seen[r.state] = true
	}
	assert.Greater(t, len(seen), 250, "thread ids should decorrelate")

	assert.NotEqual(t, newRNG(7, 3, 0).state, newRNG(7, 4, 0).state)
}

func TestEmitJitterStaysInBox(t *testing.T) {
	em := testEmitter(64, 10)
	em.Origin = mgl32.Vec3{5, 5, 5}
	em.PositionJitter = 0.5
	em.Velocity = mgl32.Vec3{}
	em.VelocityJitter = 0
	em.Acceleration = mgl32.Vec3{}
	s, dev := newTestSystem(t, 64, em)
	ctx := dev.Context()

	s.BeginFrame(ctx, testFrame(1))
	s.Emit(ctx)
	ps, err := s.ReadParticles(ctx)
	require.NoError(t, err)
	for i, p := range ps {
		require.True(t, p.Alive(), "slot %d", i)
		require.Equal(t, float32(0), p.Age)
		for k := range 3 {
			assert.InDelta(t, 5, p.Position[k], 0.5)
		}
		assert.Equal(t, p.Position, p.PrevPosition)
		assert.Equal(t, em.StartColor, p.Color)
	}
}

func TestLifeJitterShortensLife(t *testing.T) {
	em := testEmitter(64, 2)
	em.LifeJitter = 0.5
	s, dev := newTestSystem(t, 64, em)
	ctx := dev.Context()

	s.BeginFrame(ctx, testFrame(1))
	s.Emit(ctx)
	ps, err := s.ReadParticles(ctx)
	require.NoError(t, err)
	varied := false
	for _, p := range ps {
		assert.LessOrEqual(t, p.LifeSpan, float32(2))
		assert.GreaterOrEqual(t, p.LifeSpan, float32(1))
		if p.LifeSpan < 1.99 {
			varied = true
		}
	}
	assert.True(t, varied)
}
