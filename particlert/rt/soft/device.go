// Package soft is a software gpu.Device. It executes the Go twin of every
// WGSL entry point, one goroutine per thread group, and rasterises draws
// into an image.RGBA. Tests and the headless snapshot mode run on it.
package soft

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/google/uuid"
)

// DefaultMaxThreadGroups matches the per-dimension dispatch limit of desktop APIs.
const DefaultMaxThreadGroups = 65535

type Device struct {
	log     gpu.Logger
	limits  gpu.Limits
	workers int
	ctx     *Context

	live atomic.Int64
}

type Option func(*Device)

// WithWorkers bounds the number of thread groups executed concurrently.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithLimits(l gpu.Limits) Option {
	return func(d *Device) { d.limits = l }
}

func NewDevice(logger gpu.Logger, opts ...Option) *Device {
	if logger == nil {
		logger = gpu.NopLogger()
	}
	d := &Device{
		log:     logger,
		limits:  gpu.Limits{MaxThreadGroups: DefaultMaxThreadGroups},
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(d)
	}
	d.ctx = newContext(d)
	return d
}

func (d *Device) Context() gpu.Context { return d.ctx }

// Soft returns the concrete context, for callers that need its statistics.
func (d *Device) Soft() *Context { return d.ctx }

func (d *Device) Limits() gpu.Limits { return d.limits }

func (d *Device) Logger() gpu.Logger { return d.log }

// LiveObjects reports how many buffers, kernels and programs are not yet released.
func (d *Device) LiveObjects() int { return int(d.live.Load()) }

type buffer struct {
	dev      *Device
	id       uuid.UUID
	desc     gpu.BufferDesc
	words    []uint32
	counter  *atomic.Uint32
	released bool
}

func (b *buffer) ID() uuid.UUID        { return b.id }
func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.words = nil
	b.dev.live.Add(-1)
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.NativeBuffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	b := &buffer{
		dev:   d,
		id:    uuid.New(),
		desc:  desc,
		words: make([]uint32, (desc.Size()+3)/4),
	}
	if desc.Counter != gpu.CounterNone {
		b.counter = new(atomic.Uint32)
	}
	if len(desc.Init) > 0 {
		gpu.BytesToWords(b.words, desc.Init)
	}
	d.live.Add(1)
	d.log.Debugf("soft: buffer %q %s %dx%d", desc.Label, desc.Bind, desc.Count, desc.Stride)
	return b, nil
}

type kernel struct {
	dev      *Device
	id       uuid.UUID
	name     string
	entry    string
	host     gpu.HostKernel
	layout   gpu.Layout
	released bool
}

func (k *kernel) ID() uuid.UUID { return k.id }
func (k *kernel) Entry() string { return k.entry }

func (k *kernel) Release() {
	if k.released {
		return
	}
	k.released = true
	k.dev.live.Add(-1)
}

// hasEntry mirrors the front-end check of a shader compiler: the entry
// point must be declared in the module source.
func hasEntry(src gpu.KernelSource, entry string) bool {
	return strings.Contains(src.WGSL, "fn "+entry+"(")
}

func (d *Device) CreateKernel(src gpu.KernelSource, entry string, layout gpu.Layout) (gpu.NativeKernel, error) {
	if !hasEntry(src, entry) {
		return nil, &gpu.CompileError{
			Source:     src.Name,
			Entry:      entry,
			Diagnostic: fmt.Sprintf("entry point '%s' not found in module '%s'", entry, src.Name),
			Err:        gpu.ErrEntryNotFound,
		}
	}
	host, ok := src.Host[entry]
	if !ok || host.Run == nil {
		return nil, &gpu.CompileError{
			Source:     src.Name,
			Entry:      entry,
			Diagnostic: "no host implementation registered",
			Err:        gpu.ErrEntryNotFound,
		}
	}
	if host.WorkgroupSize == 0 {
		return nil, &gpu.CompileError{Source: src.Name, Entry: entry, Diagnostic: "workgroup size is zero"}
	}
	d.live.Add(1)
	return &kernel{dev: d, id: uuid.New(), name: src.Name, entry: entry, host: host, layout: layout}, nil
}

type program struct {
	dev      *Device
	id       uuid.UUID
	desc     gpu.ProgramDesc
	vertex   gpu.HostVertexFunc
	released bool
}

func (p *program) ID() uuid.UUID { return p.id }

func (p *program) Release() {
	if p.released {
		return
	}
	p.released = true
	p.dev.live.Add(-1)
}

func (d *Device) CreateProgram(desc gpu.ProgramDesc) (gpu.NativeProgram, error) {
	for _, entry := range []string{desc.VertexEntry, desc.FragmentEntry} {
		if !hasEntry(desc.Source, entry) {
			return nil, &gpu.CompileError{
				Source:     desc.Source.Name,
				Entry:      entry,
				Diagnostic: fmt.Sprintf("entry point '%s' not found in module '%s'", entry, desc.Source.Name),
				Err:        gpu.ErrEntryNotFound,
			}
		}
	}
	vs, ok := desc.Source.HostVertex[desc.VertexEntry]
	if !ok {
		return nil, &gpu.CompileError{
			Source:     desc.Source.Name,
			Entry:      desc.VertexEntry,
			Diagnostic: "no host vertex stage registered",
			Err:        gpu.ErrEntryNotFound,
		}
	}
	d.live.Add(1)
	return &program{dev: d, id: uuid.New(), desc: desc, vertex: vs}, nil
}
