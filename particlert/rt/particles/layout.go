package particles

import (
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// ParticleStride is the byte size of one GPU particle record.
const (
	ParticleStride = 128
	particleWords  = ParticleStride / 4
)

// Word offsets inside a particle record. Must match struct Particle in particles.wgsl.
const (
	wPosition     = 0
	wSize         = 3
	wPrevPosition = 4
	wSizeDelta    = 7
	wVelocity     = 8
	wMass         = 11
	wAcceleration = 12
	wMassDelta    = 15
	wStartColor   = 16
	wEndColor     = 20
	wColor        = 24
	wAge          = 28
	wLifeSpan     = 29
	wStartSize    = 30
	wEndSize      = 31
)

// Word offsets inside the frame constant buffer.
const (
	fViewProj    = 0
	fCameraPos   = 16
	fDt          = 19
	fCameraRight = 20
	fFrameIndex  = 23
	fCameraUp    = 24
	fTime        = 27
	fViewport    = 28
)

// Word offsets inside the emitter constant buffer.
const (
	eOrigin         = 0
	eLifeSpan       = 3
	eVelocity       = 4
	eVelocityJitter = 7
	eAcceleration   = 8
	ePositionJitter = 11
	eStartColor     = 12
	eEndColor       = 16
	eStartSize      = 20
	eEndSize        = 21
	eMass           = 22
	eMassDelta      = 23
	eMaxSpawn       = 24
	eSeed           = 25
	eFrameIndex     = 26
	eLifeJitter     = 27
)

const (
	frameConstantsSize   = 128
	emitterConstantsSize = 128
	countConstantsSize   = 16
)

// Constant slots.
const (
	SlotFrame     = 0
	SlotEmitter   = 1
	SlotDeadCount = 2
	SlotLiveCount = 3
)

// Unordered slots.
const (
	SlotParticles = 0
	SlotDeadList  = 1
	SlotAliveList = 2
	SlotDrawArgs  = 3
)

// Shader-read slots used by the render stage.
const (
	SlotPoolRead   = 0
	SlotSortedRead = 1
)

const (
	// ThreadsPerGroup is the workgroup size of the emit, simulate and init kernels.
	ThreadsPerGroup = 64
	// QuadIndexCount is the index count of one particle quad.
	QuadIndexCount = 6
)

var quadIndices = []uint16{0, 1, 2, 2, 1, 3}

// Particle is the host-side decoding of a GPU particle record.
type Particle struct {
	Position     mgl32.Vec3
	Size         float32
	PrevPosition mgl32.Vec3
	SizeDelta    float32
	Velocity     mgl32.Vec3
	Mass         float32
	Acceleration mgl32.Vec3
	MassDelta    float32
	StartColor   mgl32.Vec4
	EndColor     mgl32.Vec4
	Color        mgl32.Vec4
	Age          float32
	LifeSpan     float32
	StartSize    float32
	EndSize      float32
}

// Alive reports whether the slot holds a live particle. Free slots carry a negative age.
func (p Particle) Alive() bool { return p.Age >= 0 }

func decodeParticle(w []uint32) Particle {
	return Particle{
		Position:     gpu.Vec3(w, wPosition),
		Size:         gpu.F32(w, wSize),
		PrevPosition: gpu.Vec3(w, wPrevPosition),
		SizeDelta:    gpu.F32(w, wSizeDelta),
		Velocity:     gpu.Vec3(w, wVelocity),
		Mass:         gpu.F32(w, wMass),
		Acceleration: gpu.Vec3(w, wAcceleration),
		MassDelta:    gpu.F32(w, wMassDelta),
		StartColor:   gpu.Vec4(w, wStartColor),
		EndColor:     gpu.Vec4(w, wEndColor),
		Color:        gpu.Vec4(w, wColor),
		Age:          gpu.F32(w, wAge),
		LifeSpan:     gpu.F32(w, wLifeSpan),
		StartSize:    gpu.F32(w, wStartSize),
		EndSize:      gpu.F32(w, wEndSize),
	}
}

// SortEntry is one element of the alive list.
type SortEntry struct {
	Key   float32
	Index uint32
}
