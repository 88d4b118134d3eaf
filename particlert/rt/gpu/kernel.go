package gpu

import (
	"errors"
	"fmt"
)

// KernelSource bundles a WGSL module with the Go twins of its entry points.
type KernelSource struct {
	Name       string
	WGSL       string
	Host       map[string]HostKernel
	HostVertex map[string]HostVertexFunc
}

// Kernel wraps one compute entry point.
type Kernel struct {
	native NativeKernel
	name   string
}

// Load compiles entry from src. Compile failures come back as *CompileError.
func (k *Kernel) Load(dev Device, src KernelSource, entry string, layout Layout) error {
	if k.native != nil {
		Fatalf(dev.Logger(), "kernel %s:%s loaded twice", src.Name, entry)
	}
	n, err := dev.CreateKernel(src, entry, layout)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return ce
		}
		return fmt.Errorf("failed to create kernel %s:%s: %w", src.Name, entry, err)
	}
	k.native = n
	k.name = src.Name + ":" + entry
	return nil
}

// MustLoad is Load for shaders that ship with the binary: a failure is fatal.
func (k *Kernel) MustLoad(dev Device, src KernelSource, entry string, layout Layout) {
	if err := k.Load(dev, src, entry, layout); err != nil {
		Fatalf(dev.Logger(), "kernel %s:%s failed to compile:\n%v", src.Name, entry, err)
	}
}

func (k *Kernel) Loaded() bool { return k.native != nil }

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) Native() NativeKernel { return k.native }

// Use makes the kernel the active compute stage.
func (k *Kernel) Use(ctx Context) {
	if k.native == nil {
		panic(fmt.Sprintf("kernel %q used before load", k.name))
	}
	ctx.SetKernel(k.native)
}

func (k *Kernel) Release() {
	if k.native == nil {
		return
	}
	k.native.Release()
	k.native = nil
}

// Program wraps a vertex+fragment pair.
type Program struct {
	native NativeProgram
	label  string
}

func (p *Program) Load(dev Device, desc ProgramDesc) error {
	if p.native != nil {
		Fatalf(dev.Logger(), "program %s loaded twice", desc.Label)
	}
	n, err := dev.CreateProgram(desc)
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return ce
		}
		return fmt.Errorf("failed to create program %s: %w", desc.Label, err)
	}
	p.native = n
	p.label = desc.Label
	return nil
}

func (p *Program) Use(ctx Context) {
	if p.native == nil {
		panic(fmt.Sprintf("program %q used before load", p.label))
	}
	ctx.SetProgram(p.native)
}

func (p *Program) Release() {
	if p.native == nil {
		return
	}
	p.native.Release()
	p.native = nil
}
