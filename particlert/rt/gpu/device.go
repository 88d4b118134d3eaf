package gpu

import (
	"github.com/google/uuid"
)

// NativeBuffer is a backend buffer plus its default views.
type NativeBuffer interface {
	ID() uuid.UUID
	Desc() BufferDesc
	Release()
}

// NativeKernel is a compiled compute entry point.
type NativeKernel interface {
	ID() uuid.UUID
	Entry() string
	Release()
}

// NativeProgram is a compiled vertex+fragment pair used for draws.
type NativeProgram interface {
	ID() uuid.UUID
	Release()
}

// RenderTarget is a colour or depth surface the context can draw into.
type RenderTarget interface {
	ID() uuid.UUID
	Size() (width, height int)
}

type ProgramDesc struct {
	Label         string
	Source        KernelSource
	VertexEntry   string
	FragmentEntry string
	Layout        Layout
	Blend         BlendMode
}

// Device creates GPU objects.
type Device interface {
	CreateBuffer(desc BufferDesc) (NativeBuffer, error)
	CreateKernel(src KernelSource, entry string, layout Layout) (NativeKernel, error)
	CreateProgram(desc ProgramDesc) (NativeProgram, error)
	Context() Context
	Limits() Limits
	Logger() Logger
}

// Context is the immediate command context. Commands execute in issue order.
type Context interface {
	SetKernel(k NativeKernel)
	SetConstants(slot int, b NativeBuffer)
	SetShaderResource(slot int, b NativeBuffer)
	ShaderResource(slot int) NativeBuffer
	// SetUnordered binds an unordered view. initialCount resets the hidden
	// counter unless it is KeepCount.
	SetUnordered(slot int, b NativeBuffer, initialCount uint32)
	Dispatch(x, y, z uint32)
	DispatchIndirect(args NativeBuffer, offset uint32)
	// CopyCounter writes the hidden counter of src as a u32 into dst at dstOffset bytes.
	CopyCounter(dst NativeBuffer, dstOffset uint32, src NativeBuffer)
	// Update replaces the whole contents of a cpu-writable buffer.
	Update(b NativeBuffer, data []byte)

	SetProgram(p NativeProgram)
	SetIndexBuffer(b NativeBuffer)
	RenderTargets() (color, depth RenderTarget)
	SetRenderTargets(color, depth RenderTarget)
	DrawIndexedInstancedIndirect(args NativeBuffer, offset uint32)

	Flush()

	// ReadBuffer and ReadCounter stall until prior work completes. Debug only.
	ReadBuffer(b NativeBuffer) ([]byte, error)
	ReadCounter(b NativeBuffer) (uint32, error)
}
