package bitonic

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gekko3d/sparks/particlert/rt/shaders"
)

const sentinelIndex = ^uint32(0)

// Source returns the sort module with the Go twins of its entry points.
func Source() gpu.KernelSource {
	return gpu.KernelSource{
		Name: "bitonic",
		WGSL: shaders.BitonicWGSL,
		Host: map[string]gpu.HostKernel{
			"init_args":  {WorkgroupSize: 1, Run: hostInitArgs},
			"sort512":    {WorkgroupSize: GroupThreads, SharedWords: 2 * BlockSize, Run: hostSort512},
			"sort_step":  {WorkgroupSize: GroupThreads, Run: hostStep},
			"sort_inner": {WorkgroupSize: GroupThreads, SharedWords: 2 * BlockSize, Run: hostInner},
		},
	}
}

func hostInitArgs(g *gpu.Workgroup) {
	live := g.Res.Constants[SlotLiveCount][0]
	args := g.Res.Unordered[SlotArgs]
	args[0] = (live + BlockSize - 1) / BlockSize
	args[1] = 1
	args[2] = 1
}

type block struct {
	keys    []uint32
	indices []uint32
	entries []uint32
	base    uint32
	live    uint32
}

func newBlock(g *gpu.Workgroup) block {
	return block{
		keys:    g.Shared[:BlockSize],
		indices: g.Shared[BlockSize:],
		entries: g.Res.Unordered[SlotEntries],
		base:    g.ID[0] * BlockSize,
		live:    g.Res.Constants[SlotLiveCount][0],
	}
}

func (b block) load() {
	for l := uint32(0); l < BlockSize; l++ {
		if e := b.base + l; e < b.live {
			b.keys[l] = b.entries[2*e]
			b.indices[l] = b.entries[2*e+1]
		} else {
			b.keys[l] = math32.Float32bits(math32.MaxFloat32)
			b.indices[l] = sentinelIndex
		}
	}
}

func (b block) store() {
	for l := uint32(0); l < BlockSize; l++ {
		if e := b.base + l; e < b.live {
			b.entries[2*e] = b.keys[l]
			b.entries[2*e+1] = b.indices[l]
		}
	}
}

func (b block) exchange(i, j uint32) {
	if math32.Float32frombits(b.keys[j]) < math32.Float32frombits(b.keys[i]) {
		b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
		b.indices[i], b.indices[j] = b.indices[j], b.indices[i]
	}
}

// disperse runs the half-cleaner passes d, d/2, ... 1 over the block.
func (b block) disperse(d uint32) {
	for ; d > 0; d >>= 1 {
		for l := uint32(0); l < GroupThreads; l++ {
			i := (l/d)*2*d + l%d
			b.exchange(i, i+d)
		}
	}
}

func hostSort512(g *gpu.Workgroup) {
	b := newBlock(g)
	b.load()
	for k := uint32(2); k <= BlockSize; k <<= 1 {
		h := k >> 1
		for l := uint32(0); l < GroupThreads; l++ {
			blk, w := l/h, l%h
			b.exchange(blk*k+w, blk*k+k-1-w)
		}
		b.disperse(k >> 2)
	}
	b.store()
}

func hostInner(g *gpu.Workgroup) {
	b := newBlock(g)
	b.load()
	b.disperse(GroupThreads)
	b.store()
}

func hostStep(g *gpu.Workgroup) {
	live := g.Res.Constants[SlotLiveCount][0]
	st := g.Res.Constants[SlotStage]
	subSize, distance, flip := st[0], st[1], st[2] != 0
	entries := g.Res.Unordered[SlotEntries]

	for r := uint32(0); r < 2; r++ {
		for l := uint32(0); l < GroupThreads; l++ {
			t := g.ID[0]*BlockSize + r*GroupThreads + l
			var i, j uint32
			if flip {
				blk, w := t/distance, t%distance
				i = blk*subSize + w
				j = blk*subSize + subSize - 1 - w
			} else {
				i = (t/distance)*2*distance + t%distance
				j = i + distance
			}
			if j >= live {
				continue
			}
			if math32.Float32frombits(entries[2*j]) < math32.Float32frombits(entries[2*i]) {
				entries[2*i], entries[2*j] = entries[2*j], entries[2*i]
				entries[2*i+1], entries[2*j+1] = entries[2*j+1], entries[2*i+1]
			}
		}
	}
}
