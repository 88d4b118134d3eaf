package gpu

import (
	"fmt"
	"strings"
)

// BindFlags describe how a buffer may be bound to the pipeline.
type BindFlags uint32

const (
	BindVertex BindFlags = 1 << iota
	BindIndex
	BindConstant
	BindShaderRead
	BindUnordered
	BindIndirectArgs
)

func (f BindFlags) Has(flag BindFlags) bool { return f&flag == flag }

func (f BindFlags) String() string {
	if f == 0 {
		return "none"
	}
	names := []string{"vertex", "index", "constant", "shader-read", "unordered", "indirect-args"}
	var parts []string
	for i, n := range names {
		if f&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// CounterMode selects the hidden counter attached to an unordered view.
type CounterMode int

const (
	CounterNone CounterMode = iota
	CounterAppend
	CounterConsume
)

func (m CounterMode) String() string {
	switch m {
	case CounterAppend:
		return "append"
	case CounterConsume:
		return "consume"
	default:
		return "none"
	}
}

// CPUAccess states whether the host may write into (or read back) a buffer.
type CPUAccess int

const (
	CPUNone CPUAccess = iota
	CPUWrite
	CPURead
)

// KeepCount leaves the counter of an unordered view untouched when binding it.
const KeepCount = ^uint32(0)

// Slot limits shared by all backends.
const (
	MaxConstantSlots   = 8
	MaxShaderReadSlots = 8
	MaxUnorderedSlots  = 8
)

// WGSL binding numbers inside @group(0) for each slot kind.
const (
	ConstantBindingBase   = 0
	ShaderReadBindingBase = 8
	UnorderedBindingBase  = 16
	CounterBindingBase    = 24
)

type BufferDesc struct {
	Label   string
	Bind    BindFlags
	Stride  uint32
	Count   uint32
	CPU     CPUAccess
	Counter CounterMode
	Init    []byte
}

// Size is the buffer size in bytes.
func (d BufferDesc) Size() uint64 { return uint64(d.Stride) * uint64(d.Count) }

// Validate rejects descriptor combinations no backend can express.
func (d BufferDesc) Validate() error {
	if d.Stride == 0 || d.Count == 0 {
		return fmt.Errorf("buffer %q: %w: stride=%d count=%d", d.Label, ErrInvalidDesc, d.Stride, d.Count)
	}
	if d.Bind == 0 {
		return fmt.Errorf("buffer %q: %w: no bind flags", d.Label, ErrInvalidDesc)
	}
	if d.Counter != CounterNone && !d.Bind.Has(BindUnordered) {
		return fmt.Errorf("buffer %q: %w: %s counter requires an unordered view", d.Label, ErrInvalidDesc, d.Counter)
	}
	if d.CPU == CPUWrite && d.Bind.Has(BindUnordered) {
		return fmt.Errorf("buffer %q: %w: cpu-writable buffers cannot be unordered", d.Label, ErrInvalidDesc)
	}
	if d.Bind.Has(BindConstant) && d.Size()%16 != 0 {
		return fmt.Errorf("buffer %q: %w: constant buffer size %d is not a multiple of 16", d.Label, ErrInvalidDesc, d.Size())
	}
	if uint64(len(d.Init)) > d.Size() {
		return fmt.Errorf("buffer %q: %w: init data %d bytes exceeds size %d", d.Label, ErrInvalidDesc, len(d.Init), d.Size())
	}
	return nil
}

// Layout lists the slots an entry point reads or writes.
type Layout struct {
	Constants  []int
	ShaderRead []int
	Unordered  []int
	// Counters lists unordered slots whose hidden counter is visible to the kernel.
	Counters []int
}

func (l Layout) HasCounter(slot int) bool {
	for _, s := range l.Counters {
		if s == slot {
			return true
		}
	}
	return false
}

type BlendMode int

const (
	BlendAlpha BlendMode = iota
	BlendAdditive
)

func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(s) {
	case "", "alpha":
		return BlendAlpha, nil
	case "additive", "add":
		return BlendAdditive, nil
	}
	return BlendAlpha, fmt.Errorf("unknown blend mode %q", s)
}

type Limits struct {
	MaxThreadGroups uint32
}
