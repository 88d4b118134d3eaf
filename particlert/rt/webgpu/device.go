// Package webgpu implements gpu.Device on top of wgpu. Every view named by a
// kernel layout maps onto a binding in group 0; hidden counters live in
// companion 4-byte storage buffers bound at 24+slot.
package webgpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/google/uuid"
)

type Device struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	format wgpu.TextureFormat
	log    gpu.Logger
	limits gpu.Limits
	ctx    *Context

	// zero is copied into counters that are rebound with an initial count of 0.
	zero *wgpu.Buffer
}

// NewDevice wraps an already requested wgpu device. format is the colour
// format of the surface draws will target.
func NewDevice(device *wgpu.Device, format wgpu.TextureFormat, logger gpu.Logger) (*Device, error) {
	if logger == nil {
		logger = gpu.NopLogger()
	}
	d := &Device{
		device: device,
		queue:  device.GetQueue(),
		format: format,
		log:    logger,
	}
	lim := device.GetLimits()
	d.limits = gpu.Limits{MaxThreadGroups: lim.Limits.MaxComputeWorkgroupsPerDimension}

	var err error
	d.zero, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Counter Zero",
		Size:  4,
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: zero buffer: %w", err)
	}
	d.queue.WriteBuffer(d.zero, 0, make([]byte, 4))
	d.ctx = newContext(d)
	return d, nil
}

func (d *Device) Context() gpu.Context { return d.ctx }
func (d *Device) Limits() gpu.Limits   { return d.limits }
func (d *Device) Logger() gpu.Logger   { return d.log }
func (d *Device) Format() wgpu.TextureFormat {
	return d.format
}

// Native exposes the wgpu context for the frame owner: clear and flush
// before present.
func (d *Device) Native() *Context { return d.ctx }

// Release flushes pending work and frees device-owned helpers. Objects
// created through the device must be released by their owners first.
func (d *Device) Release() {
	d.ctx.Flush()
	d.ctx.dropBindGroups()
	if d.zero != nil {
		d.zero.Release()
		d.zero = nil
	}
}

type buffer struct {
	dev     *Device
	id      uuid.UUID
	desc    gpu.BufferDesc
	buf     *wgpu.Buffer
	counter *wgpu.Buffer
}

func (b *buffer) ID() uuid.UUID        { return b.id }
func (b *buffer) Desc() gpu.BufferDesc { return b.desc }

func (b *buffer) Release() {
	if b.buf == nil {
		return
	}
	b.dev.ctx.forget(b)
	b.buf.Release()
	b.buf = nil
	if b.counter != nil {
		b.counter.Release()
		b.counter = nil
	}
}

func bufferUsage(f gpu.BindFlags) wgpu.BufferUsage {
	u := wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	if f.Has(gpu.BindConstant) {
		u |= wgpu.BufferUsageUniform
	}
	if f.Has(gpu.BindShaderRead) || f.Has(gpu.BindUnordered) {
		u |= wgpu.BufferUsageStorage
	}
	if f.Has(gpu.BindVertex) {
		u |= wgpu.BufferUsageVertex
	}
	if f.Has(gpu.BindIndex) {
		u |= wgpu.BufferUsageIndex
	}
	if f.Has(gpu.BindIndirectArgs) {
		u |= wgpu.BufferUsageIndirect
	}
	return u
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.NativeBuffer, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	// wgpu copies and writes are 4-byte granular.
	size := (desc.Size() + 3) &^ 3
	b := &buffer{dev: d, id: uuid.New(), desc: desc}

	var err error
	b.buf, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(size),
		Usage: bufferUsage(desc.Bind),
	})
	if err != nil {
		return nil, err
	}
	if desc.Counter != gpu.CounterNone {
		b.counter, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: desc.Label + " Counter",
			Size:  4,
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			b.buf.Release()
			return nil, err
		}
		d.queue.WriteBuffer(b.counter, 0, make([]byte, 4))
	}
	if len(desc.Init) > 0 {
		d.queue.WriteBuffer(b.buf, 0, pad4(desc.Init))
	}
	return b, nil
}

func pad4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, (len(data)+3)&^3)
	copy(out, data)
	return out
}

func layoutEntries(l gpu.Layout, vis wgpu.ShaderStage) []wgpu.BindGroupLayoutEntry {
	var entries []wgpu.BindGroupLayoutEntry
	add := func(binding int, t wgpu.BufferBindingType) {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(binding),
			Visibility: vis,
			Buffer:     wgpu.BufferBindingLayout{Type: t},
		})
	}
	for _, s := range l.Constants {
		add(gpu.ConstantBindingBase+s, wgpu.BufferBindingTypeUniform)
	}
	for _, s := range l.ShaderRead {
		add(gpu.ShaderReadBindingBase+s, wgpu.BufferBindingTypeReadOnlyStorage)
	}
	for _, s := range l.Unordered {
		add(gpu.UnorderedBindingBase+s, wgpu.BufferBindingTypeStorage)
	}
	for _, s := range l.Counters {
		add(gpu.CounterBindingBase+s, wgpu.BufferBindingTypeStorage)
	}
	return entries
}

// createLayout builds the explicit bind group and pipeline layouts for one entry point.
func (d *Device) createLayout(label string, l gpu.Layout, vis wgpu.ShaderStage) (*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label + " BGL",
		Entries: layoutEntries(l, vis),
	})
	if err != nil {
		return nil, nil, err
	}
	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + " Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, nil, err
	}
	return bgl, pl, nil
}

func (d *Device) compile(src gpu.KernelSource, entries ...string) (*wgpu.ShaderModule, error) {
	for _, e := range entries {
		if !strings.Contains(src.WGSL, "fn "+e+"(") {
			return nil, &gpu.CompileError{Source: src.Name, Entry: e, Diagnostic: "entry point not found", Err: gpu.ErrEntryNotFound}
		}
	}
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          src.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src.WGSL},
	})
	if err != nil {
		return nil, &gpu.CompileError{Source: src.Name, Entry: strings.Join(entries, "+"), Diagnostic: err.Error(), Err: err}
	}
	return module, nil
}

type kernel struct {
	dev      *Device
	id       uuid.UUID
	entry    string
	layout   gpu.Layout
	bgl      *wgpu.BindGroupLayout
	pl       *wgpu.PipelineLayout
	pipeline *wgpu.ComputePipeline
}

func (k *kernel) ID() uuid.UUID { return k.id }
func (k *kernel) Entry() string { return k.entry }

func (k *kernel) Release() {
	if k.pipeline == nil {
		return
	}
	k.dev.ctx.forget(k)
	k.pipeline.Release()
	k.pl.Release()
	k.bgl.Release()
	k.pipeline = nil
}

func (d *Device) CreateKernel(src gpu.KernelSource, entry string, layout gpu.Layout) (gpu.NativeKernel, error) {
	module, err := d.compile(src, entry)
	if err != nil {
		return nil, err
	}
	defer module.Release()

	k := &kernel{dev: d, id: uuid.New(), entry: entry, layout: layout}
	label := src.Name + ":" + entry
	k.bgl, k.pl, err = d.createLayout(label, layout, wgpu.ShaderStageCompute)
	if err != nil {
		return nil, fmt.Errorf("webgpu: layout %s: %w", label, err)
	}
	k.pipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: k.pl,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		k.pl.Release()
		k.bgl.Release()
		return nil, &gpu.CompileError{Source: src.Name, Entry: entry, Diagnostic: err.Error(), Err: err}
	}
	return k, nil
}

type program struct {
	dev      *Device
	id       uuid.UUID
	desc     gpu.ProgramDesc
	bgl      *wgpu.BindGroupLayout
	pl       *wgpu.PipelineLayout
	pipeline *wgpu.RenderPipeline
}

func (p *program) ID() uuid.UUID { return p.id }

func (p *program) Release() {
	if p.pipeline == nil {
		return
	}
	p.dev.ctx.forget(p)
	p.pipeline.Release()
	p.pl.Release()
	p.bgl.Release()
	p.pipeline = nil
}

func blendState(m gpu.BlendMode) *wgpu.BlendState {
	if m == gpu.BlendAdditive {
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOne,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
			},
		}
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
	}
}

func (d *Device) CreateProgram(desc gpu.ProgramDesc) (gpu.NativeProgram, error) {
	module, err := d.compile(desc.Source, desc.VertexEntry, desc.FragmentEntry)
	if err != nil {
		return nil, err
	}
	defer module.Release()

	p := &program{dev: d, id: uuid.New(), desc: desc}
	p.bgl, p.pl, err = d.createLayout(desc.Label, desc.Layout, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	if err != nil {
		return nil, fmt.Errorf("webgpu: layout %s: %w", desc.Label, err)
	}
	p.pipeline, err = d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.pl,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    d.format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend:     blendState(desc.Blend),
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.pl.Release()
		p.bgl.Release()
		return nil, &gpu.CompileError{Source: desc.Source.Name, Entry: desc.VertexEntry + "+" + desc.FragmentEntry, Diagnostic: err.Error(), Err: err}
	}
	return p, nil
}
