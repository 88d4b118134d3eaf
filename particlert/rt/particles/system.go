// Package particles is the GPU particle pool: a fixed-capacity particle
// buffer with a dead-list free pool, compute emit and simulate, a bitonic
// sort of the live list by camera distance and an indirect draw whose
// instance count never leaves the GPU.
package particles

import (
	"errors"
	"fmt"

	"github.com/gekko3d/sparks/particlert/rt/bitonic"
	"github.com/gekko3d/sparks/particlert/rt/core"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
)

type Config struct {
	Capacity uint32
	Emitter  Emitter
	Blend    gpu.BlendMode
}

func DefaultConfig() Config {
	return Config{
		Capacity: 64 * 1024,
		Emitter:  DefaultEmitter(),
		Blend:    gpu.BlendAlpha,
	}
}

// Stats is a debug snapshot of the pool counters.
type Stats struct {
	Capacity  uint32
	Dead      uint32
	Alive     uint32
	SpawnedAt uint32 // spawn budget of the last emit
	Frame     uint32
}

// System owns every pool resource and runs the per-frame sequence
// (init dead list) -> emit -> simulate -> copy live count -> sort -> render.
type System struct {
	dev gpu.Device
	log gpu.Logger
	cfg Config

	// Emitter is read at every Emit. Mutate it between frames.
	Emitter Emitter

	particles gpu.Buffer
	deadList  gpu.Buffer
	aliveList gpu.Buffer
	drawArgs  gpu.Buffer
	indices   gpu.Buffer

	frameCB     gpu.Buffer
	emitterCB   gpu.Buffer
	deadCountCB gpu.Buffer
	liveCountCB gpu.Buffer

	initDeadList gpu.Kernel
	emit         gpu.Kernel
	simulate     gpu.Kernel
	writeArgs    gpu.Kernel

	sorter *bitonic.Engine
	render RenderStage

	scope        gpu.Scope
	initialized  bool
	resetPending bool
	frame        core.FrameData
	lastSpawn    uint32
}

func New(dev gpu.Device, cfg Config, logger gpu.Logger) *System {
	if logger == nil {
		logger = dev.Logger()
	}
	return &System{
		dev:     dev,
		log:     logger,
		cfg:     cfg,
		Emitter: cfg.Emitter,
	}
}

func (s *System) Capacity() uint32 { return s.cfg.Capacity }

// Initialize creates all buffers and kernels. It runs once; a failure
// releases whatever was created.
func (s *System) Initialize() (err error) {
	if s.initialized {
		gpu.Fatalf(s.log, "particles: Initialize called twice")
	}
	if s.cfg.Capacity == 0 {
		return errors.New("particles: capacity must be positive")
	}
	defer func() {
		if err != nil {
			s.scope.Close()
		}
	}()

	n := s.cfg.Capacity
	buffers := []struct {
		b    *gpu.Buffer
		desc gpu.BufferDesc
	}{
		{&s.particles, gpu.BufferDesc{Label: "Particle Pool", Bind: gpu.BindUnordered | gpu.BindShaderRead, Stride: ParticleStride, Count: n}},
		{&s.deadList, gpu.BufferDesc{Label: "Dead List", Bind: gpu.BindUnordered, Stride: 4, Count: n, Counter: gpu.CounterAppend}},
		{&s.aliveList, gpu.BufferDesc{Label: "Alive List", Bind: gpu.BindUnordered | gpu.BindShaderRead, Stride: bitonic.EntryStride, Count: n, Counter: gpu.CounterAppend}},
		{&s.drawArgs, gpu.BufferDesc{Label: "Draw Args", Bind: gpu.BindUnordered | gpu.BindIndirectArgs, Stride: 4, Count: 5,
			Init: gpu.NewPacker(20).U32(QuadIndexCount).U32(0).U32(0).U32(0).U32(0).Bytes()}},
		{&s.indices, gpu.BufferDesc{Label: "Quad Indices", Bind: gpu.BindIndex, Stride: 2, Count: uint32(len(quadIndices)), Init: indexBytes()}},
		{&s.frameCB, gpu.BufferDesc{Label: "Frame Constants", Bind: gpu.BindConstant, Stride: frameConstantsSize, Count: 1, CPU: gpu.CPUWrite}},
		{&s.emitterCB, gpu.BufferDesc{Label: "Emitter Constants", Bind: gpu.BindConstant, Stride: emitterConstantsSize, Count: 1, CPU: gpu.CPUWrite}},
		{&s.deadCountCB, gpu.BufferDesc{Label: "Dead Count", Bind: gpu.BindConstant, Stride: countConstantsSize, Count: 1}},
		{&s.liveCountCB, gpu.BufferDesc{Label: "Live Count", Bind: gpu.BindConstant, Stride: countConstantsSize, Count: 1}},
	}
	for _, b := range buffers {
		if err := b.b.Create(s.dev, b.desc); err != nil {
			return fmt.Errorf("particles: %w", err)
		}
		s.scope.Add(b.b)
	}

	src := Source()
	kernels := []struct {
		k      *gpu.Kernel
		entry  string
		layout gpu.Layout
	}{
		{&s.initDeadList, "init_dead_list", gpu.Layout{
			Unordered: []int{SlotParticles, SlotDeadList},
			Counters:  []int{SlotDeadList},
		}},
		{&s.emit, "emit", gpu.Layout{
			Constants: []int{SlotEmitter, SlotDeadCount},
			Unordered: []int{SlotParticles, SlotDeadList},
			Counters:  []int{SlotDeadList},
		}},
		{&s.simulate, "simulate", gpu.Layout{
			Constants: []int{SlotFrame},
			Unordered: []int{SlotParticles, SlotDeadList, SlotAliveList},
			Counters:  []int{SlotDeadList, SlotAliveList},
		}},
		{&s.writeArgs, "write_draw_args", gpu.Layout{
			Constants: []int{SlotLiveCount},
			Unordered: []int{SlotDrawArgs},
		}},
	}
	for _, k := range kernels {
		if err := k.k.Load(s.dev, src, k.entry, k.layout); err != nil {
			return fmt.Errorf("particles: %w", err)
		}
		s.scope.Add(k.k)
	}

	sorter, err := bitonic.New(s.dev, n, s.log)
	if err != nil {
		return fmt.Errorf("particles: %w", err)
	}
	s.sorter = sorter
	s.scope.Add(sorter)

	if err := s.render.init(s.dev, s.cfg.Blend); err != nil {
		return fmt.Errorf("particles: %w", err)
	}
	s.scope.Add(&s.render)

	s.initialized = true
	s.resetPending = true
	s.log.Infof("particles: pool of %d initialised (%d KiB)", n, uint64(n)*ParticleStride/1024)
	return nil
}

func indexBytes() []byte {
	p := gpu.NewPacker(len(quadIndices) * 2)
	for i := 0; i+1 < len(quadIndices); i += 2 {
		p.U32(uint32(quadIndices[i]) | uint32(quadIndices[i+1])<<16)
	}
	return p.Bytes()
}

// RequestReset re-runs dead-list initialisation before the next emit,
// killing every live particle.
func (s *System) RequestReset() { s.resetPending = true }

func (s *System) mustBeInitialized(op string) {
	if !s.initialized {
		gpu.Fatalf(s.log, "particles: %s before Initialize", op)
	}
}

// BeginFrame uploads the frame constants and, if a reset is pending,
// rebuilds the dead list.
func (s *System) BeginFrame(ctx gpu.Context, fd core.FrameData) {
	s.mustBeInitialized("BeginFrame")
	s.frame = fd
	vp := fd.ViewProj()
	s.frameCB.Update(ctx, gpu.NewPacker(frameConstantsSize).
		Mat4(vp).
		Vec3(fd.CameraPos).F32(fd.Dt).
		Vec3(fd.CameraRight).U32(fd.Index).
		Vec3(fd.CameraUp).F32(fd.Time).
		F32(float32(fd.Width)).F32(float32(fd.Height)).
		Align(frameConstantsSize).Bytes())

	if s.resetPending {
		s.resetDeadList(ctx)
		s.resetPending = false
	}
}

func (s *System) resetDeadList(ctx gpu.Context) {
	s.particles.BindUnordered(ctx, SlotParticles, gpu.KeepCount)
	s.deadList.BindUnordered(ctx, SlotDeadList, 0)
	s.initDeadList.Use(ctx)
	ctx.Dispatch(groups(s.cfg.Capacity, ThreadsPerGroup), 1, 1)
	s.log.Debugf("particles: dead list reset")
}

func groups(n, size uint32) uint32 { return (n + size - 1) / size }

// Emit consumes up to the emitter's spawn budget from the dead list.
// Running out of free slots silently spawns fewer particles.
func (s *System) Emit(ctx gpu.Context) {
	s.mustBeInitialized("Emit")
	requested := s.Emitter.SpawnBudget(s.frame.Dt)
	s.lastSpawn = requested
	// The kernel caps at the dead count, which never exceeds capacity.
	spawn := min(requested, s.cfg.Capacity)

	ctx.CopyCounter(s.deadCountCB.Native(), 0, s.deadList.Native())
	s.emitterCB.Update(ctx, s.Emitter.pack(spawn, s.frame.Index))

	s.emitterCB.Bind(ctx, SlotEmitter)
	s.deadCountCB.Bind(ctx, SlotDeadCount)
	s.particles.BindUnordered(ctx, SlotParticles, gpu.KeepCount)
	s.deadList.BindUnordered(ctx, SlotDeadList, gpu.KeepCount)
	s.emit.Use(ctx)
	ctx.Dispatch(groups(spawn, ThreadsPerGroup), 1, 1)
}

// Simulate ages every slot, rebuilds the alive list, publishes the live
// count and writes the draw arguments.
func (s *System) Simulate(ctx gpu.Context) {
	s.mustBeInitialized("Simulate")
	s.frameCB.Bind(ctx, SlotFrame)
	s.particles.BindUnordered(ctx, SlotParticles, gpu.KeepCount)
	s.deadList.BindUnordered(ctx, SlotDeadList, gpu.KeepCount)
	s.aliveList.BindUnordered(ctx, SlotAliveList, 0)
	s.simulate.Use(ctx)
	ctx.Dispatch(groups(s.cfg.Capacity, ThreadsPerGroup), 1, 1)

	ctx.CopyCounter(s.liveCountCB.Native(), 0, s.aliveList.Native())

	s.liveCountCB.Bind(ctx, SlotLiveCount)
	s.drawArgs.BindUnordered(ctx, SlotDrawArgs, gpu.KeepCount)
	s.writeArgs.Use(ctx)
	ctx.Dispatch(1, 1, 1)
}

// Sort orders the alive list by ascending squared camera distance.
func (s *System) Sort(ctx gpu.Context) {
	s.mustBeInitialized("Sort")
	s.sorter.Sort(ctx, &s.aliveList, &s.liveCountCB)
}

// Render draws the live particles into target.
func (s *System) Render(ctx gpu.Context, target gpu.RenderTarget) {
	s.mustBeInitialized("Render")
	s.render.Draw(ctx, target, RenderInputs{
		Frame:     &s.frameCB,
		LiveCount: &s.liveCountCB,
		Pool:      &s.particles,
		Sorted:    &s.aliveList,
		Indices:   &s.indices,
		DrawArgs:  &s.drawArgs,
	})
}

// Update runs every compute phase of a frame.
func (s *System) Update(ctx gpu.Context, fd core.FrameData) {
	s.BeginFrame(ctx, fd)
	s.Emit(ctx)
	s.Simulate(ctx)
	s.Sort(ctx)
}

// Frame runs the whole per-frame sequence.
func (s *System) Frame(ctx gpu.Context, fd core.FrameData, target gpu.RenderTarget) {
	s.Update(ctx, fd)
	s.Render(ctx, target)
}

// Stats reads the counters back. It stalls the pipeline; call it only
// when debugging.
func (s *System) Stats(ctx gpu.Context) (Stats, error) {
	s.mustBeInitialized("Stats")
	dead, err := ctx.ReadCounter(s.deadList.Native())
	if err != nil {
		return Stats{}, fmt.Errorf("particles: read dead counter: %w", err)
	}
	alive, err := ctx.ReadCounter(s.aliveList.Native())
	if err != nil {
		return Stats{}, fmt.Errorf("particles: read alive counter: %w", err)
	}
	return Stats{Capacity: s.cfg.Capacity, Dead: dead, Alive: alive, SpawnedAt: s.lastSpawn, Frame: s.frame.Index}, nil
}

// ReadParticles decodes the whole pool. Debug only.
func (s *System) ReadParticles(ctx gpu.Context) ([]Particle, error) {
	s.mustBeInitialized("ReadParticles")
	raw, err := ctx.ReadBuffer(s.particles.Native())
	if err != nil {
		return nil, fmt.Errorf("particles: read pool: %w", err)
	}
	words := make([]uint32, len(raw)/4)
	gpu.BytesToWords(words, raw)
	out := make([]Particle, s.cfg.Capacity)
	for i := range out {
		out[i] = decodeParticle(words[i*particleWords : (i+1)*particleWords])
	}
	return out, nil
}

// ReadAliveList returns the first count entries of the alive list. Debug only.
func (s *System) ReadAliveList(ctx gpu.Context, count uint32) ([]SortEntry, error) {
	s.mustBeInitialized("ReadAliveList")
	raw, err := ctx.ReadBuffer(s.aliveList.Native())
	if err != nil {
		return nil, fmt.Errorf("particles: read alive list: %w", err)
	}
	words := make([]uint32, len(raw)/4)
	gpu.BytesToWords(words, raw)
	count = min(count, s.cfg.Capacity)
	out := make([]SortEntry, count)
	for i := range out {
		out[i] = SortEntry{Key: gpu.F32(words, uint32(2*i)), Index: words[2*i+1]}
	}
	return out, nil
}

// ReadDrawArgs returns the five indirect draw arguments. Debug only.
func (s *System) ReadDrawArgs(ctx gpu.Context) ([5]uint32, error) {
	s.mustBeInitialized("ReadDrawArgs")
	var args [5]uint32
	raw, err := ctx.ReadBuffer(s.drawArgs.Native())
	if err != nil {
		return args, fmt.Errorf("particles: read draw args: %w", err)
	}
	gpu.BytesToWords(args[:], raw)
	return args, nil
}

// Release frees every pool resource. Safe to call more than once.
func (s *System) Release() {
	s.scope.Close()
	s.sorter = nil
	s.initialized = false
}
