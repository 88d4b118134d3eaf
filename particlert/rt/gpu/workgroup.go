package gpu

import (
	"math"
	"sync/atomic"
)

// Resources is the view of the bound slots a host kernel sees. Buffers are
// exposed as little-endian 32-bit words, the same layout the WGSL side reads.
type Resources struct {
	Constants  [MaxConstantSlots][]uint32
	ShaderRead [MaxShaderReadSlots][]uint32
	Unordered  [MaxUnorderedSlots][]uint32
	Counters   [MaxUnorderedSlots]*atomic.Uint32
}

// Workgroup is one thread group of a host dispatch. Run walks its threads
// itself; the end of each loop over threads acts as a barrier.
type Workgroup struct {
	ID     [3]uint32
	Count  [3]uint32
	Size   uint32
	Shared []uint32
	Res    *Resources
}

// GlobalID returns the flattened x index of local thread l.
func (g *Workgroup) GlobalID(l uint32) uint32 { return g.ID[0]*g.Size + l }

// Threads calls fn for every thread in the group with its local and global index.
func (g *Workgroup) Threads(fn func(local, global uint32)) {
	for l := uint32(0); l < g.Size; l++ {
		fn(l, g.GlobalID(l))
	}
}

// HostKernel is the Go implementation of a WGSL entry point. The software
// device runs it; the wgpu device ignores it.
type HostKernel struct {
	WorkgroupSize uint32
	SharedWords   int
	Run           func(g *Workgroup)
}

// Vertex is the output of a host vertex stage in clip space.
type Vertex struct {
	Clip  [4]float32
	Color [4]float32
	UV    [2]float32
}

type HostVertexFunc func(res *Resources, instance, vertex uint32) Vertex

func F32(words []uint32, i uint32) float32 { return math.Float32frombits(words[i]) }

func SetF32(words []uint32, i uint32, v float32) { words[i] = math.Float32bits(v) }

func Vec3(words []uint32, i uint32) [3]float32 {
	return [3]float32{F32(words, i), F32(words, i+1), F32(words, i+2)}
}

func SetVec3(words []uint32, i uint32, v [3]float32) {
	SetF32(words, i, v[0])
	SetF32(words, i+1, v[1])
	SetF32(words, i+2, v[2])
}

func Vec4(words []uint32, i uint32) [4]float32 {
	return [4]float32{F32(words, i), F32(words, i+1), F32(words, i+2), F32(words, i+3)}
}

func SetVec4(words []uint32, i uint32, v [4]float32) {
	for k := uint32(0); k < 4; k++ {
		SetF32(words, i+k, v[k])
	}
}

// Mat4 reads a column-major 4x4 matrix.
func Mat4(words []uint32, i uint32) [16]float32 {
	var m [16]float32
	for k := uint32(0); k < 16; k++ {
		m[k] = F32(words, i+k)
	}
	return m
}
