package webgpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/stretchr/testify/assert"
)

func TestBufferUsage(t *testing.T) {
	u := bufferUsage(gpu.BindUnordered | gpu.BindIndirectArgs)
	assert.NotZero(t, u&wgpu.BufferUsageStorage)
	assert.NotZero(t, u&wgpu.BufferUsageIndirect)
	assert.NotZero(t, u&wgpu.BufferUsageCopySrc)
	assert.Zero(t, u&wgpu.BufferUsageUniform)

	u = bufferUsage(gpu.BindConstant)
	assert.NotZero(t, u&wgpu.BufferUsageUniform)
	assert.NotZero(t, u&wgpu.BufferUsageCopyDst)
	assert.Zero(t, u&wgpu.BufferUsageStorage)
}

func TestLayoutEntriesBindings(t *testing.T) {
	entries := layoutEntries(gpu.Layout{
		Constants:  []int{0, 3},
		ShaderRead: []int{1},
		Unordered:  []int{0, 2},
		Counters:   []int{2},
	}, wgpu.ShaderStageCompute)

	got := map[uint32]wgpu.BufferBindingType{}
	for _, e := range entries {
		got[e.Binding] = e.Buffer.Type
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
	assert.Equal(t, map[uint32]wgpu.BufferBindingType{
		0:  wgpu.BufferBindingTypeUniform,
		3:  wgpu.BufferBindingTypeUniform,
		9:  wgpu.BufferBindingTypeReadOnlyStorage,
		16: wgpu.BufferBindingTypeStorage,
		18: wgpu.BufferBindingTypeStorage,
		26: wgpu.BufferBindingTypeStorage,
	}, got)
}

func TestBlendState(t *testing.T) {
	add := blendState(gpu.BlendAdditive)
	assert.Equal(t, wgpu.BlendFactorOne, add.Color.DstFactor)
	alpha := blendState(gpu.BlendAlpha)
	assert.Equal(t, wgpu.BlendFactorOneMinusSrcAlpha, alpha.Color.DstFactor)
}

func TestPad4(t *testing.T) {
	assert.Len(t, pad4(make([]byte, 8)), 8)
	p := pad4([]byte{1, 2, 3, 4, 5})
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 0}, p)
}

func TestSurfaceTargetKeepsIdentity(t *testing.T) {
	st := NewSurfaceTarget()
	id := st.ID()
	st.Reset(nil, 640, 480)
	w, h := st.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	assert.Equal(t, id, st.ID())
	assert.Nil(t, st.View())
}
