package webgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/google/uuid"
)

// bindKey identifies a bind group by the pipeline it serves and every view
// bound for it, so a group is only rebuilt when the bindings change.
type bindKey struct {
	owner uuid.UUID
	views [4 * gpu.MaxUnorderedSlots]uuid.UUID
}

// Context records commands into a single encoder and submits it on Flush,
// on readback and whenever a queue write must be ordered after work already
// recorded.
type Context struct {
	d       *Device
	encoder *wgpu.CommandEncoder

	kernel     *kernel
	program    *program
	constants  [gpu.MaxConstantSlots]*buffer
	shaderRead [gpu.MaxShaderReadSlots]*buffer
	unordered  [gpu.MaxUnorderedSlots]*buffer
	index      *buffer
	color      gpu.RenderTarget
	depth      gpu.RenderTarget

	groups map[bindKey]*wgpu.BindGroup
}

func newContext(d *Device) *Context {
	return &Context{d: d, groups: make(map[bindKey]*wgpu.BindGroup)}
}

func asBuffer(n gpu.NativeBuffer) *buffer {
	if n == nil {
		return nil
	}
	b, ok := n.(*buffer)
	if !ok {
		panic(fmt.Sprintf("webgpu: foreign buffer %T", n))
	}
	if b.buf == nil {
		panic(fmt.Sprintf("webgpu: buffer %q used after release", b.desc.Label))
	}
	return b
}

func (c *Context) enc() *wgpu.CommandEncoder {
	if c.encoder == nil {
		e, err := c.d.device.CreateCommandEncoder(nil)
		if err != nil {
			gpu.Fatalf(c.d.log, "webgpu: create command encoder: %v", err)
		}
		c.encoder = e
	}
	return c.encoder
}

// Flush submits everything recorded so far.
func (c *Context) Flush() {
	if c.encoder == nil {
		return
	}
	cmd, err := c.encoder.Finish(nil)
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		gpu.Fatalf(c.d.log, "webgpu: encoder finish: %v", err)
	}
	c.d.queue.Submit(cmd)
	cmd.Release()
}

func (c *Context) write(b *wgpu.Buffer, data []byte) {
	// Queue writes land before any later submit, so recorded work goes first.
	c.Flush()
	if err := c.d.queue.WriteBuffer(b, 0, pad4(data)); err != nil {
		gpu.Fatalf(c.d.log, "webgpu: write buffer: %v", err)
	}
}

type identified interface {
	ID() uuid.UUID
}

// forget drops cached bind groups that reference obj.
func (c *Context) forget(obj identified) {
	id := obj.ID()
	for k, g := range c.groups {
		hit := k.owner == id
		for _, v := range k.views {
			if v == id {
				hit = true
				break
			}
		}
		if hit {
			g.Release()
			delete(c.groups, k)
		}
	}
	switch o := obj.(type) {
	case *kernel:
		if c.kernel == o {
			c.kernel = nil
		}
	case *program:
		if c.program == o {
			c.program = nil
		}
	}
}

func (c *Context) dropBindGroups() {
	for k, g := range c.groups {
		g.Release()
		delete(c.groups, k)
	}
}

func (c *Context) SetKernel(k gpu.NativeKernel) {
	if k == nil {
		c.kernel = nil
		return
	}
	wk, ok := k.(*kernel)
	if !ok {
		panic(fmt.Sprintf("webgpu: foreign kernel %T", k))
	}
	c.kernel = wk
}

func (c *Context) SetConstants(slot int, b gpu.NativeBuffer) { c.constants[slot] = asBuffer(b) }

func (c *Context) SetShaderResource(slot int, b gpu.NativeBuffer) { c.shaderRead[slot] = asBuffer(b) }

func (c *Context) ShaderResource(slot int) gpu.NativeBuffer {
	if b := c.shaderRead[slot]; b != nil {
		return b
	}
	return nil
}

func (c *Context) SetUnordered(slot int, b gpu.NativeBuffer, initialCount uint32) {
	wb := asBuffer(b)
	c.unordered[slot] = wb
	if wb == nil || wb.counter == nil || initialCount == gpu.KeepCount {
		return
	}
	if initialCount == 0 {
		c.enc().CopyBufferToBuffer(c.d.zero, 0, wb.counter, 0, 4)
		return
	}
	c.write(wb.counter, binary.LittleEndian.AppendUint32(nil, initialCount))
}

// bindGroup returns the group 0 bind group for the current bindings of layout.
func (c *Context) bindGroup(owner uuid.UUID, label string, layout gpu.Layout, bgl *wgpu.BindGroupLayout) *wgpu.BindGroup {
	key := bindKey{owner: owner}
	var entries []wgpu.BindGroupEntry
	add := func(binding int, b *wgpu.Buffer, id uuid.UUID) {
		key.views[binding] = id
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(binding),
			Buffer:  b,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}
	for _, s := range layout.Constants {
		b := c.constants[s]
		if b == nil {
			panic(fmt.Sprintf("webgpu: %s reads unbound constant slot b%d", label, s))
		}
		add(gpu.ConstantBindingBase+s, b.buf, b.id)
	}
	for _, s := range layout.ShaderRead {
		b := c.shaderRead[s]
		if b == nil {
			panic(fmt.Sprintf("webgpu: %s reads unbound shader-read slot t%d", label, s))
		}
		add(gpu.ShaderReadBindingBase+s, b.buf, b.id)
	}
	for _, s := range layout.Unordered {
		b := c.unordered[s]
		if b == nil {
			panic(fmt.Sprintf("webgpu: %s writes unbound unordered slot u%d", label, s))
		}
		add(gpu.UnorderedBindingBase+s, b.buf, b.id)
	}
	for _, s := range layout.Counters {
		b := c.unordered[s]
		if b == nil || b.counter == nil {
			panic(fmt.Sprintf("webgpu: %s expects a counter on u%d", label, s))
		}
		// The counter shares its owner's id; the binding index keeps the key distinct.
		add(gpu.CounterBindingBase+s, b.counter, b.id)
	}

	if g, ok := c.groups[key]; ok {
		return g
	}
	g, err := c.d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  bgl,
		Entries: entries,
	})
	if err != nil {
		gpu.Fatalf(c.d.log, "webgpu: bind group for %s: %v", label, err)
	}
	c.groups[key] = g
	return g
}

func (c *Context) computePass() *wgpu.ComputePassEncoder {
	k := c.kernel
	if k == nil {
		panic("webgpu: dispatch without kernel")
	}
	bg := c.bindGroup(k.id, k.entry, k.layout, k.bgl)
	pass := c.enc().BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	return pass
}

func (c *Context) endPass(err error) {
	if err != nil {
		gpu.Fatalf(c.d.log, "webgpu: pass end: %v", err)
	}
}

func (c *Context) Dispatch(x, y, z uint32) {
	if x == 0 || y == 0 || z == 0 {
		return
	}
	pass := c.computePass()
	pass.DispatchWorkgroups(x, y, z)
	c.endPass(pass.End())
}

func (c *Context) DispatchIndirect(args gpu.NativeBuffer, offset uint32) {
	b := asBuffer(args)
	if !b.desc.Bind.Has(gpu.BindIndirectArgs) {
		panic(fmt.Sprintf("webgpu: %q is not an indirect-args buffer", b.desc.Label))
	}
	pass := c.computePass()
	pass.DispatchWorkgroupsIndirect(b.buf, uint64(offset))
	c.endPass(pass.End())
}

func (c *Context) CopyCounter(dst gpu.NativeBuffer, dstOffset uint32, src gpu.NativeBuffer) {
	d, s := asBuffer(dst), asBuffer(src)
	if s.counter == nil {
		panic(fmt.Sprintf("webgpu: %q has no counter", s.desc.Label))
	}
	c.enc().CopyBufferToBuffer(s.counter, 0, d.buf, uint64(dstOffset), 4)
}

func (c *Context) Update(n gpu.NativeBuffer, data []byte) {
	c.write(asBuffer(n).buf, data)
}

func (c *Context) SetProgram(p gpu.NativeProgram) {
	if p == nil {
		c.program = nil
		return
	}
	wp, ok := p.(*program)
	if !ok {
		panic(fmt.Sprintf("webgpu: foreign program %T", p))
	}
	c.program = wp
}

func (c *Context) SetIndexBuffer(b gpu.NativeBuffer) { c.index = asBuffer(b) }

func (c *Context) RenderTargets() (gpu.RenderTarget, gpu.RenderTarget) { return c.color, c.depth }

func (c *Context) SetRenderTargets(color, depth gpu.RenderTarget) {
	c.color = color
	c.depth = depth
}

func (c *Context) DrawIndexedInstancedIndirect(args gpu.NativeBuffer, offset uint32) {
	b := asBuffer(args)
	if !b.desc.Bind.Has(gpu.BindIndirectArgs) {
		panic(fmt.Sprintf("webgpu: %q is not an indirect-args buffer", b.desc.Label))
	}
	p := c.program
	if p == nil {
		panic("webgpu: draw without program")
	}
	if c.index == nil {
		panic("webgpu: draw without index buffer")
	}
	target, ok := c.color.(*SurfaceTarget)
	if !ok || target == nil || target.view == nil {
		c.d.log.Warnf("webgpu: draw skipped, no colour target bound")
		return
	}

	format := wgpu.IndexFormatUint32
	if c.index.desc.Stride == 2 {
		format = wgpu.IndexFormatUint16
	}
	bg := c.bindGroup(p.id, p.desc.Label, p.desc.Layout, p.bgl)
	pass := c.enc().BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target.view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.SetIndexBuffer(c.index.buf, format, 0, wgpu.WholeSize)
	pass.DrawIndexedIndirect(b.buf, uint64(offset))
	c.endPass(pass.End())
}

// Clear records a clear of t. Particle draws load the target, so the frame
// owner clears it once before any draw.
func (c *Context) Clear(t *SurfaceTarget, col wgpu.Color) {
	if t == nil || t.view == nil {
		return
	}
	pass := c.enc().BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       t.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: col,
		}},
	})
	c.endPass(pass.End())
}

// readback copies size bytes of src into a mappable staging buffer and
// waits for the map, the same synchronous path the compute examples use.
func (c *Context) readback(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging, err := c.d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: readback buffer: %w", err)
	}
	defer staging.Release()

	c.enc().CopyBufferToBuffer(src, 0, staging, 0, size)
	c.Flush()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("webgpu: map: %w", err)
	}
	c.d.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("webgpu: map status %v", status)
	}
	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()
	return out, nil
}

func (c *Context) ReadBuffer(n gpu.NativeBuffer) ([]byte, error) {
	b := asBuffer(n)
	data, err := c.readback(b.buf, uint64((b.desc.Size()+3)&^3))
	if err != nil {
		return nil, err
	}
	return data[:b.desc.Size()], nil
}

func (c *Context) ReadCounter(n gpu.NativeBuffer) (uint32, error) {
	b := asBuffer(n)
	if b.counter == nil {
		return 0, fmt.Errorf("webgpu: %q: %w", b.desc.Label, gpu.ErrNotReadable)
	}
	data, err := c.readback(b.counter, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}
