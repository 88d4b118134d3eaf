package soft

import (
	"fmt"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"golang.org/x/sync/errgroup"
)

// Stats counts the work the context executed since the last ResetStats.
type Stats struct {
	Dispatches int
	Groups     int
	Draws      int
	Instances  int
	Triangles  int
}

// Context executes commands immediately, in issue order.
type Context struct {
	dev *Device

	kernel     *kernel
	constants  [gpu.MaxConstantSlots]*buffer
	shaderRead [gpu.MaxShaderReadSlots]*buffer
	unordered  [gpu.MaxUnorderedSlots]*buffer

	program *program
	index   *buffer
	color   gpu.RenderTarget
	depth   gpu.RenderTarget

	raster rasterizer
	stats  Stats
}

func newContext(d *Device) *Context {
	return &Context{dev: d}
}

func (c *Context) Stats() Stats { return c.stats }

func (c *Context) ResetStats() { c.stats = Stats{} }

func asBuffer(n gpu.NativeBuffer) *buffer {
	if n == nil {
		return nil
	}
	b, ok := n.(*buffer)
	if !ok {
		panic(fmt.Sprintf("soft: foreign buffer %T", n))
	}
	if b.released {
		panic(fmt.Sprintf("soft: buffer %q used after release", b.desc.Label))
	}
	return b
}

func (c *Context) SetKernel(k gpu.NativeKernel) {
	if k == nil {
		c.kernel = nil
		return
	}
	sk, ok := k.(*kernel)
	if !ok {
		panic(fmt.Sprintf("soft: foreign kernel %T", k))
	}
	c.kernel = sk
}

func (c *Context) SetConstants(slot int, b gpu.NativeBuffer) {
	c.constants[slot] = asBuffer(b)
}

func (c *Context) SetShaderResource(slot int, b gpu.NativeBuffer) {
	c.shaderRead[slot] = asBuffer(b)
}

func (c *Context) ShaderResource(slot int) gpu.NativeBuffer {
	if b := c.shaderRead[slot]; b != nil {
		return b
	}
	return nil
}

func (c *Context) SetUnordered(slot int, b gpu.NativeBuffer, initialCount uint32) {
	sb := asBuffer(b)
	c.unordered[slot] = sb
	if sb != nil && sb.counter != nil && initialCount != gpu.KeepCount {
		sb.counter.Store(initialCount)
	}
}

func (c *Context) resources(layout gpu.Layout, stage string) *gpu.Resources {
	res := &gpu.Resources{}
	for _, s := range layout.Constants {
		b := c.constants[s]
		if b == nil {
			panic(fmt.Sprintf("soft: %s reads unbound constant slot b%d", stage, s))
		}
		res.Constants[s] = b.words
	}
	for _, s := range layout.ShaderRead {
		b := c.shaderRead[s]
		if b == nil {
			panic(fmt.Sprintf("soft: %s reads unbound shader-read slot t%d", stage, s))
		}
		res.ShaderRead[s] = b.words
	}
	for _, s := range layout.Unordered {
		b := c.unordered[s]
		if b == nil {
			panic(fmt.Sprintf("soft: %s writes unbound unordered slot u%d", stage, s))
		}
		for _, t := range layout.ShaderRead {
			if c.shaderRead[t] == b {
				panic(fmt.Sprintf("soft: %s binds buffer %q as t%d and u%d", stage, b.desc.Label, t, s))
			}
		}
		res.Unordered[s] = b.words
		if layout.HasCounter(s) {
			if b.counter == nil {
				panic(fmt.Sprintf("soft: %s expects a counter on u%d but %q has none", stage, s, b.desc.Label))
			}
			res.Counters[s] = b.counter
		}
	}
	return res
}

func (c *Context) Dispatch(x, y, z uint32) {
	if c.kernel == nil {
		panic("soft: dispatch without kernel")
	}
	k := c.kernel
	c.stats.Dispatches++
	total := uint64(x) * uint64(y) * uint64(z)
	if total == 0 {
		return
	}
	res := c.resources(k.layout, k.name+":"+k.entry)

	var g errgroup.Group
	g.SetLimit(c.dev.workers)
	for gz := uint32(0); gz < z; gz++ {
		for gy := uint32(0); gy < y; gy++ {
			for gx := uint32(0); gx < x; gx++ {
				wg := &gpu.Workgroup{
					ID:    [3]uint32{gx, gy, gz},
					Count: [3]uint32{x, y, z},
					Size:  k.host.WorkgroupSize,
					Res:   res,
				}
				g.Go(func() (err error) {
					defer func() {
						if r := recover(); r != nil {
							err = fmt.Errorf("soft: %s:%s group %v: %v", k.name, k.entry, wg.ID, r)
						}
					}()
					if k.host.SharedWords > 0 {
						wg.Shared = make([]uint32, k.host.SharedWords)
					}
					k.host.Run(wg)
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		c.dev.log.Errorf("%v", err)
		panic(err)
	}
	c.stats.Groups += int(total)
}

func (c *Context) DispatchIndirect(args gpu.NativeBuffer, offset uint32) {
	b := asBuffer(args)
	if !b.desc.Bind.Has(gpu.BindIndirectArgs) {
		panic(fmt.Sprintf("soft: %q is not an indirect-args buffer", b.desc.Label))
	}
	w := offset / 4
	c.Dispatch(b.words[w], b.words[w+1], b.words[w+2])
}

func (c *Context) CopyCounter(dst gpu.NativeBuffer, dstOffset uint32, src gpu.NativeBuffer) {
	s := asBuffer(src)
	if s.counter == nil {
		panic(fmt.Sprintf("soft: %q has no counter", s.desc.Label))
	}
	asBuffer(dst).words[dstOffset/4] = s.counter.Load()
}

func (c *Context) Update(n gpu.NativeBuffer, data []byte) {
	b := asBuffer(n)
	clear(b.words)
	gpu.BytesToWords(b.words, data)
}

func (c *Context) SetProgram(p gpu.NativeProgram) {
	if p == nil {
		c.program = nil
		return
	}
	sp, ok := p.(*program)
	if !ok {
		panic(fmt.Sprintf("soft: foreign program %T", p))
	}
	c.program = sp
}

func (c *Context) SetIndexBuffer(b gpu.NativeBuffer) { c.index = asBuffer(b) }

func (c *Context) RenderTargets() (gpu.RenderTarget, gpu.RenderTarget) { return c.color, c.depth }

func (c *Context) SetRenderTargets(color, depth gpu.RenderTarget) {
	c.color = color
	c.depth = depth
}

func (c *Context) Flush() {}

func (c *Context) ReadBuffer(n gpu.NativeBuffer) ([]byte, error) {
	b := asBuffer(n)
	return gpu.WordsToBytes(b.words), nil
}

// Words exposes the backing words of a buffer. Test helper.
func (c *Context) Words(n gpu.NativeBuffer) []uint32 {
	return asBuffer(n).words
}

func (c *Context) ReadCounter(n gpu.NativeBuffer) (uint32, error) {
	b := asBuffer(n)
	if b.counter == nil {
		return 0, fmt.Errorf("soft: %q: %w", b.desc.Label, gpu.ErrNotReadable)
	}
	return b.counter.Load(), nil
}
