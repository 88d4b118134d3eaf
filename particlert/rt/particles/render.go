package particles

import (
	"fmt"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
)

// RenderStage draws the sorted live particles as camera-facing quads with a
// single indirect draw. It leaves the context's targets and shader-read
// slots as it found them. Constant slots SlotFrame and SlotLiveCount, the
// index buffer and the bound program are overwritten.
type RenderStage struct {
	program gpu.Program
	blend   gpu.BlendMode
}

func (r *RenderStage) init(dev gpu.Device, blend gpu.BlendMode) error {
	r.blend = blend
	err := r.program.Load(dev, gpu.ProgramDesc{
		Label:         "Particle Render",
		Source:        RenderSource(),
		VertexEntry:   "vs_main",
		FragmentEntry: "fs_main",
		Layout: gpu.Layout{
			Constants:  []int{SlotFrame, SlotLiveCount},
			ShaderRead: []int{SlotPoolRead, SlotSortedRead},
		},
		Blend: blend,
	})
	if err != nil {
		return fmt.Errorf("particle render stage: %w", err)
	}
	return nil
}

// RenderInputs are the pool resources the stage reads.
type RenderInputs struct {
	Frame     *gpu.Buffer
	LiveCount *gpu.Buffer
	Pool      *gpu.Buffer
	Sorted    *gpu.Buffer
	Indices   *gpu.Buffer
	DrawArgs  *gpu.Buffer
}

func (r *RenderStage) Draw(ctx gpu.Context, target gpu.RenderTarget, in RenderInputs) {
	prevColor, prevDepth := ctx.RenderTargets()
	prevPool := ctx.ShaderResource(SlotPoolRead)
	prevSorted := ctx.ShaderResource(SlotSortedRead)
	defer func() {
		ctx.SetShaderResource(SlotPoolRead, prevPool)
		ctx.SetShaderResource(SlotSortedRead, prevSorted)
		ctx.SetRenderTargets(prevColor, prevDepth)
	}()

	ctx.SetRenderTargets(target, nil)
	in.Frame.Bind(ctx, SlotFrame)
	in.LiveCount.Bind(ctx, SlotLiveCount)
	in.Pool.BindShaderRead(ctx, SlotPoolRead)
	in.Sorted.BindShaderRead(ctx, SlotSortedRead)
	in.Indices.Bind(ctx, 0)
	r.program.Use(ctx)
	ctx.DrawIndexedInstancedIndirect(in.DrawArgs.Native(), 0)
}

func (r *RenderStage) Release() {
	r.program.Release()
}
