package particles

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Emitter holds the spawn parameters. It is plain data, mutated by the host
// between frames and uploaded wholesale before each emit.
type Emitter struct {
	Origin         mgl32.Vec3
	PositionJitter float32 // half-extent of the spawn box

	Velocity       mgl32.Vec3
	VelocityJitter float32 // per-axis random velocity added on spawn
	Acceleration   mgl32.Vec3

	LifeSpan   float32 // seconds
	LifeJitter float32 // 0..1, fraction of LifeSpan randomly removed

	StartSize float32
	EndSize   float32
	Mass      float32
	MassDelta float32

	StartColor mgl32.Vec4
	EndColor   mgl32.Vec4

	// MaxSpawn is the spawn budget for the next frame when SpawnRate is zero.
	MaxSpawn uint32
	// SpawnRate in particles per second. When positive it drives the budget.
	SpawnRate float32
	Seed      uint32

	spawnAcc float32 // fractional spawns carried between frames
}

func DefaultEmitter() Emitter {
	return Emitter{
		Origin:         mgl32.Vec3{0, 0, 0},
		PositionJitter: 0.1,
		Velocity:       mgl32.Vec3{0, 3, 0},
		VelocityJitter: 1,
		Acceleration:   mgl32.Vec3{0, -9.81, 0},
		LifeSpan:       2,
		LifeJitter:     0,
		StartSize:      0.2,
		EndSize:        0.05,
		Mass:           1,
		StartColor:     mgl32.Vec4{1, 0.8, 0.3, 1},
		EndColor:       mgl32.Vec4{0.8, 0.1, 0.0, 0},
		MaxSpawn:       10,
		Seed:           0x9e3779b9,
	}
}

// maxRateBudget bounds a rate-driven budget. It is exact in float32.
const maxRateBudget = 1 << 24

// SpawnBudget returns how many particles may be emitted this frame.
func (e *Emitter) SpawnBudget(dt float32) uint32 {
	if e.SpawnRate <= 0 {
		return e.MaxSpawn
	}
	if dt <= 0 {
		return 0
	}
	e.spawnAcc += e.SpawnRate * dt
	if math32.IsNaN(e.spawnAcc) {
		e.spawnAcc = 0
		return 0
	}
	if e.spawnAcc >= maxRateBudget {
		e.spawnAcc = 0
		return maxRateBudget
	}
	n := uint32(e.spawnAcc)
	e.spawnAcc -= float32(n)
	return n
}

// pack lays the emitter out as struct EmitterParams.
func (e *Emitter) pack(maxSpawn, frameIndex uint32) []byte {
	p := gpu.NewPacker(emitterConstantsSize).
		Vec3(e.Origin).F32(e.LifeSpan).
		Vec3(e.Velocity).F32(e.VelocityJitter).
		Vec3(e.Acceleration).F32(e.PositionJitter).
		Vec4(e.StartColor).
		Vec4(e.EndColor).
		F32(e.StartSize).F32(e.EndSize).F32(e.Mass).F32(e.MassDelta).
		U32(maxSpawn).U32(e.Seed).U32(frameIndex).F32(e.LifeJitter)
	return p.Align(emitterConstantsSize).Bytes()
}
