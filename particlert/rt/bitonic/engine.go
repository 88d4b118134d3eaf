// Package bitonic sorts a GPU list of (f32 key, u32 index) pairs in place,
// ascending by key, for a live count that is only known on the GPU.
package bitonic

import (
	"fmt"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
)

const (
	// BlockSize is the number of elements one thread group sorts in shared memory.
	BlockSize = 512
	// GroupThreads is the thread count of every sort thread group.
	GroupThreads = 256
	// MaxThreadGroups bounds ceil(maxCapacity/BlockSize).
	MaxThreadGroups = 1024
	// EntryStride is the byte size of one (key, index) pair.
	EntryStride = 8
)

// Slots used by the sort kernels.
const (
	SlotLiveCount = 0 // b0: live count, u32 in a 16-byte constant buffer
	SlotStage     = 1 // b1: (sub size, compare distance, flip)
	SlotEntries   = 0 // u0: entries
	SlotArgs      = 1 // u1: indirect dispatch args
)

type Engine struct {
	dev         gpu.Device
	log         gpu.Logger
	maxCapacity uint32
	padded      uint32

	initArgs gpu.Kernel
	sort512  gpu.Kernel
	step     gpu.Kernel
	inner    gpu.Kernel

	stage gpu.Buffer
	args  gpu.Buffer
	scope gpu.Scope
}

func nextPow2(v uint32) uint32 {
	p := uint32(1)
	for p < v {
		p <<= 1
	}
	return p
}

// New builds a sort engine for lists of at most maxCapacity entries.
// A capacity needing more than MaxThreadGroups groups is a programming error.
func New(dev gpu.Device, maxCapacity uint32, logger gpu.Logger) (*Engine, error) {
	if logger == nil {
		logger = dev.Logger()
	}
	if maxCapacity == 0 {
		gpu.Fatalf(logger, "bitonic: max capacity must be positive")
	}
	groups := (maxCapacity + BlockSize - 1) / BlockSize
	limit := uint32(MaxThreadGroups)
	if l := dev.Limits().MaxThreadGroups; l > 0 && l < limit {
		limit = l
	}
	if groups > limit {
		gpu.Fatalf(logger, "bitonic: capacity %d needs %d thread groups, limit is %d", maxCapacity, groups, limit)
	}

	e := &Engine{
		dev:         dev,
		log:         logger,
		maxCapacity: maxCapacity,
		padded:      max(nextPow2(maxCapacity), BlockSize),
	}
	if err := e.init(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init() error {
	src := Source()
	kernels := []struct {
		k      *gpu.Kernel
		entry  string
		layout gpu.Layout
	}{
		{&e.initArgs, "init_args", gpu.Layout{Constants: []int{SlotLiveCount}, Unordered: []int{SlotArgs}}},
		{&e.sort512, "sort512", gpu.Layout{Constants: []int{SlotLiveCount}, Unordered: []int{SlotEntries}}},
		{&e.step, "sort_step", gpu.Layout{Constants: []int{SlotLiveCount, SlotStage}, Unordered: []int{SlotEntries}}},
		{&e.inner, "sort_inner", gpu.Layout{Constants: []int{SlotLiveCount}, Unordered: []int{SlotEntries}}},
	}
	for _, k := range kernels {
		if err := k.k.Load(e.dev, src, k.entry, k.layout); err != nil {
			return fmt.Errorf("bitonic: %w", err)
		}
		e.scope.Add(k.k)
	}

	if err := e.stage.Create(e.dev, gpu.BufferDesc{
		Label:  "Bitonic Stage",
		Bind:   gpu.BindConstant,
		Stride: 16,
		Count:  1,
		CPU:    gpu.CPUWrite,
	}); err != nil {
		return fmt.Errorf("bitonic: %w", err)
	}
	e.scope.Add(&e.stage)

	if err := e.args.Create(e.dev, gpu.BufferDesc{
		Label:  "Bitonic Dispatch Args",
		Bind:   gpu.BindUnordered | gpu.BindIndirectArgs,
		Stride: 4,
		Count:  3,
		Init:   gpu.NewPacker(12).U32(0).U32(1).U32(1).Bytes(),
	}); err != nil {
		return fmt.Errorf("bitonic: %w", err)
	}
	e.scope.Add(&e.args)

	e.log.Debugf("bitonic: capacity %d padded to %d, %d outer passes", e.maxCapacity, e.padded, e.OuterPasses())
	return nil
}

// OuterPasses is the number of merge passes above the shared-memory block.
// It depends only on the capacity, never on the live count.
func (e *Engine) OuterPasses() int {
	n := 0
	for k := uint32(2 * BlockSize); k <= e.padded; k <<= 1 {
		n++
	}
	return n
}

func (e *Engine) MaxCapacity() uint32 { return e.maxCapacity }

// Sort orders the first liveCount entries of list ascending by key. liveCount
// is a constant buffer holding the count as its first u32. Entries past the
// live count are left untouched.
func (e *Engine) Sort(ctx gpu.Context, list *gpu.Buffer, liveCount *gpu.Buffer) {
	if list.Desc().Count < e.maxCapacity {
		gpu.Fatalf(e.log, "bitonic: list %q holds %d entries, engine expects %d", list.Desc().Label, list.Desc().Count, e.maxCapacity)
	}
	liveCount.Bind(ctx, SlotLiveCount)
	list.BindUnordered(ctx, SlotEntries, gpu.KeepCount)
	e.args.BindUnordered(ctx, SlotArgs, gpu.KeepCount)

	e.initArgs.Use(ctx)
	ctx.Dispatch(1, 1, 1)

	e.sort512.Use(ctx)
	ctx.DispatchIndirect(e.args.Native(), 0)

	for k := uint32(2 * BlockSize); k <= e.padded; k <<= 1 {
		e.dispatchStep(ctx, k, k>>1, true)
		for d := k >> 2; d >= BlockSize; d >>= 1 {
			e.dispatchStep(ctx, k, d, false)
		}
		e.inner.Use(ctx)
		ctx.DispatchIndirect(e.args.Native(), 0)
	}
}

func (e *Engine) dispatchStep(ctx gpu.Context, subSize, distance uint32, flip bool) {
	var f uint32
	if flip {
		f = 1
	}
	e.stage.Update(ctx, gpu.NewPacker(16).U32(subSize).U32(distance).U32(f).U32(0).Bytes())
	e.stage.Bind(ctx, SlotStage)
	e.step.Use(ctx)
	ctx.DispatchIndirect(e.args.Native(), 0)
}

// Release frees the engine's kernels and buffers.
func (e *Engine) Release() {
	e.scope.Close()
}
