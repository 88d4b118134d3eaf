package gpu

import (
	"fmt"
)

// Buffer owns a device buffer and the views implied by its bind flags.
// The zero value is an uncreated buffer.
type Buffer struct {
	native NativeBuffer
	desc   BufferDesc
}

// Create allocates the buffer. Creating an already created buffer is a
// programming error and panics.
func (b *Buffer) Create(dev Device, desc BufferDesc) error {
	if b.native != nil {
		Fatalf(dev.Logger(), "buffer %q created twice", desc.Label)
	}
	if err := desc.Validate(); err != nil {
		return err
	}
	n, err := dev.CreateBuffer(desc)
	if err != nil {
		return fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	b.native = n
	b.desc = desc
	return nil
}

func (b *Buffer) Created() bool { return b.native != nil }

func (b *Buffer) Desc() BufferDesc { return b.desc }

func (b *Buffer) Native() NativeBuffer { return b.native }

func (b *Buffer) mustNative(op string) NativeBuffer {
	if b.native == nil {
		panic(fmt.Sprintf("%s on buffer %q: %v", op, b.desc.Label, ErrNotCreated))
	}
	return b.native
}

// Bind binds the buffer through the view its flags imply. Unordered views
// keep their counter.
func (b *Buffer) Bind(ctx Context, slot int) {
	n := b.mustNative("bind")
	switch {
	case b.desc.Bind.Has(BindConstant):
		ctx.SetConstants(slot, n)
	case b.desc.Bind.Has(BindIndex):
		ctx.SetIndexBuffer(n)
	case b.desc.Bind.Has(BindUnordered):
		ctx.SetUnordered(slot, n, KeepCount)
	case b.desc.Bind.Has(BindShaderRead):
		ctx.SetShaderResource(slot, n)
	default:
		panic(fmt.Sprintf("buffer %q has no bindable view (%s)", b.desc.Label, b.desc.Bind))
	}
}

func (b *Buffer) BindShaderRead(ctx Context, slot int) {
	n := b.mustNative("bind shader-read")
	if !b.desc.Bind.Has(BindShaderRead) {
		panic(fmt.Sprintf("buffer %q has no shader-read view", b.desc.Label))
	}
	ctx.SetShaderResource(slot, n)
}

// BindUnordered binds the unordered view and sets its counter to
// initialCount, or keeps it when initialCount is KeepCount.
func (b *Buffer) BindUnordered(ctx Context, slot int, initialCount uint32) {
	n := b.mustNative("bind unordered")
	if !b.desc.Bind.Has(BindUnordered) {
		panic(fmt.Sprintf("buffer %q has no unordered view", b.desc.Label))
	}
	ctx.SetUnordered(slot, n, initialCount)
}

// Update discards the previous contents and uploads data.
func (b *Buffer) Update(ctx Context, data []byte) {
	n := b.mustNative("update")
	if b.desc.CPU != CPUWrite {
		panic(fmt.Sprintf("buffer %q is not cpu-writable", b.desc.Label))
	}
	if uint64(len(data)) > b.desc.Size() {
		panic(fmt.Sprintf("buffer %q: update of %d bytes exceeds size %d", b.desc.Label, len(data), b.desc.Size()))
	}
	ctx.Update(n, data)
}

// Release frees the device buffer. Safe to call more than once.
func (b *Buffer) Release() {
	if b.native == nil {
		return
	}
	b.native.Release()
	b.native = nil
}
