package soft

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"golang.org/x/image/vector"
)

type rasterizer struct {
	r    vector.Rasterizer
	mask *image.Alpha
}

func (c *Context) DrawIndexedInstancedIndirect(args gpu.NativeBuffer, offset uint32) {
	b := asBuffer(args)
	if !b.desc.Bind.Has(gpu.BindIndirectArgs) {
		panic(fmt.Sprintf("soft: %q is not an indirect-args buffer", b.desc.Label))
	}
	if c.program == nil {
		panic("soft: draw without program")
	}
	if c.index == nil {
		panic("soft: draw without index buffer")
	}
	w := offset / 4
	indexCount, instanceCount := b.words[w], b.words[w+1]
	firstIndex, baseVertex, firstInstance := b.words[w+2], int32(b.words[w+3]), b.words[w+4]

	c.stats.Draws++
	c.stats.Instances += int(instanceCount)

	target, ok := c.color.(*Target)
	if !ok || target == nil {
		// Nothing to rasterise into; the draw still counts.
		return
	}
	res := c.resources(c.program.desc.Layout, c.program.desc.Label)
	for inst := firstInstance; inst < firstInstance+instanceCount; inst++ {
		for i := firstIndex; i+2 < firstIndex+indexCount; i += 3 {
			var tri [3]gpu.Vertex
			for k := uint32(0); k < 3; k++ {
				v := uint32(int32(c.indexAt(i+k)) + baseVertex)
				tri[k] = c.program.vertex(res, inst, v)
			}
			c.raster.triangle(target.Image, tri, c.program.desc.Blend)
			c.stats.Triangles++
		}
	}
}

func (c *Context) indexAt(i uint32) uint32 {
	if c.index.desc.Stride == 2 {
		w := c.index.words[i/2]
		return (w >> (16 * (i % 2))) & 0xffff
	}
	return c.index.words[i]
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func (rs *rasterizer) triangle(dst *image.RGBA, tri [3]gpu.Vertex, blend gpu.BlendMode) {
	bounds := dst.Bounds()
	var pts [3][2]float32
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for k, v := range tri {
		w := v.Clip[3]
		if w <= 0 {
			return
		}
		x := (v.Clip[0]/w*0.5 + 0.5) * float32(bounds.Dx())
		y := (0.5 - v.Clip[1]/w*0.5) * float32(bounds.Dy())
		pts[k] = [2]float32{x, y}
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	box := image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	).Add(bounds.Min).Intersect(bounds)
	if box.Empty() {
		return
	}

	ox := float32(box.Min.X - bounds.Min.X)
	oy := float32(box.Min.Y - bounds.Min.Y)
	rs.r.Reset(box.Dx(), box.Dy())
	rs.r.MoveTo(pts[0][0]-ox, pts[0][1]-oy)
	rs.r.LineTo(pts[1][0]-ox, pts[1][1]-oy)
	rs.r.LineTo(pts[2][0]-ox, pts[2][1]-oy)
	rs.r.ClosePath()

	col := tri[0].Color
	src := color.NRGBA{R: toByte(col[0]), G: toByte(col[1]), B: toByte(col[2]), A: toByte(col[3])}

	if blend == gpu.BlendAlpha {
		rs.r.DrawOp = draw.Over
		rs.r.Draw(dst, box, image.NewUniform(src), image.Point{})
		return
	}

	if rs.mask == nil || rs.mask.Bounds().Dx() < box.Dx() || rs.mask.Bounds().Dy() < box.Dy() {
		rs.mask = image.NewAlpha(image.Rect(0, 0, max(box.Dx(), 64), max(box.Dy(), 64)))
	}
	mb := image.Rect(0, 0, box.Dx(), box.Dy())
	clear(rs.mask.Pix)
	rs.r.DrawOp = draw.Src
	rs.r.Draw(rs.mask, mb, image.Opaque, image.Point{})
	for y := 0; y < box.Dy(); y++ {
		for x := 0; x < box.Dx(); x++ {
			a := uint32(rs.mask.AlphaAt(x, y).A) * uint32(src.A) / 255
			if a == 0 {
				continue
			}
			i := dst.PixOffset(box.Min.X+x, box.Min.Y+y)
			px := dst.Pix[i : i+4 : i+4]
			px[0] = addSat(px[0], uint32(src.R)*a/255)
			px[1] = addSat(px[1], uint32(src.G)*a/255)
			px[2] = addSat(px[2], uint32(src.B)*a/255)
			px[3] = addSat(px[3], a)
		}
	}
}

func addSat(dst uint8, v uint32) uint8 {
	s := uint32(dst) + v
	if s > 255 {
		return 255
	}
	return uint8(s)
}
