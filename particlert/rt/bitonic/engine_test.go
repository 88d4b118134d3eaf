package bitonic

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gekko3d/sparks/particlert/rt/soft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev    *soft.Device
	engine *Engine
	list   gpu.Buffer
	live   gpu.Buffer
}

func newFixture(t *testing.T, capacity uint32) *fixture {
	t.Helper()
	f := &fixture{dev: soft.NewDevice(nil)}
	var err error
	f.engine, err = New(f.dev, capacity, nil)
	require.NoError(t, err)
	require.NoError(t, f.list.Create(f.dev, gpu.BufferDesc{
		Label:   "entries",
		Bind:    gpu.BindUnordered | gpu.BindShaderRead,
		Stride:  EntryStride,
		Count:   capacity,
		Counter: gpu.CounterAppend,
	}))
	require.NoError(t, f.live.Create(f.dev, gpu.BufferDesc{
		Label:  "live",
		Bind:   gpu.BindConstant,
		Stride: 16,
		Count:  1,
		CPU:    gpu.CPUWrite,
	}))
	t.Cleanup(func() {
		f.engine.Release()
		f.list.Release()
		f.live.Release()
	})
	return f
}

// fill writes random keys with distinct indices and returns the words as written.
func (f *fixture) fill(rng *rand.Rand, capacity uint32) []uint32 {
	words := f.dev.Soft().Words(f.list.Native())
	for i := uint32(0); i < capacity; i++ {
		words[2*i] = math.Float32bits(rng.Float32() * 1000)
		words[2*i+1] = i
	}
	return append([]uint32(nil), words...)
}

func (f *fixture) sort(live uint32) []uint32 {
	ctx := f.dev.Context()
	f.live.Update(ctx, gpu.NewPacker(16).U32(live).Align(16).Bytes())
	f.engine.Sort(ctx, &f.list, &f.live)
	return f.dev.Soft().Words(f.list.Native())
}

func checkSorted(t *testing.T, before, after []uint32, live, capacity uint32) {
	t.Helper()
	for i := uint32(1); i < live; i++ {
		if math.Float32frombits(after[2*i-2]) > math.Float32frombits(after[2*i]) {
			t.Fatalf("live=%d: key %d (%v) > key %d (%v)", live, i-1,
				math.Float32frombits(after[2*i-2]), i, math.Float32frombits(after[2*i]))
		}
	}

	want := make([]uint32, 0, live)
	got := make([]uint32, 0, live)
	for i := uint32(0); i < live; i++ {
		want = append(want, before[2*i+1])
		got = append(got, after[2*i+1])
		// Each index must still carry its own key.
		idx := after[2*i+1]
		require.Equal(t, before[2*idx], after[2*i], "key moved without its index")
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, want, got, "live=%d: indices are not a permutation", live)

	assert.Equal(t, before[2*live:2*capacity], after[2*live:2*capacity], "live=%d: tail was modified", live)
}

func TestSortLiveCounts(t *testing.T) {
	const capacity = 8192
	f := newFixture(t, capacity)
	rng := rand.New(rand.NewSource(7))

	for _, live := range []uint32{0, 1, 2, 511, 512, 513, 1000, 4096, 5000, capacity} {
		before := f.fill(rng, capacity)
		after := f.sort(live)
		checkSorted(t, before, after, live, capacity)
	}
}

func TestSortNonPowerOfTwoCapacity(t *testing.T) {
	const capacity = 3000
	f := newFixture(t, capacity)
	rng := rand.New(rand.NewSource(11))

	for _, live := range []uint32{2999, capacity, 1537} {
		before := f.fill(rng, capacity)
		after := f.sort(live)
		checkSorted(t, before, after, live, capacity)
	}
}

func TestSortSmallCapacity(t *testing.T) {
	const capacity = 100
	f := newFixture(t, capacity)
	assert.Equal(t, 0, f.engine.OuterPasses())

	before := f.fill(rand.New(rand.NewSource(3)), capacity)
	after := f.sort(77)
	checkSorted(t, before, after, 77, capacity)
}

func TestSortDuplicateKeys(t *testing.T) {
	const capacity = 2048
	f := newFixture(t, capacity)
	words := f.dev.Soft().Words(f.list.Native())
	for i := uint32(0); i < capacity; i++ {
		words[2*i] = math.Float32bits(float32(i % 3))
		words[2*i+1] = i
	}
	before := append([]uint32(nil), words...)
	after := f.sort(capacity - 5)
	checkSorted(t, before, after, capacity-5, capacity)
}

func TestSortZeroLiveDispatchesNoGroups(t *testing.T) {
	f := newFixture(t, 4096)
	f.fill(rand.New(rand.NewSource(1)), 4096)
	f.dev.Soft().ResetStats()
	f.sort(0)
	// Only init_args runs a group.
	assert.Equal(t, 1, f.dev.Soft().Stats().Groups)
}

func TestSortPassCountIndependentOfLiveCount(t *testing.T) {
	f := newFixture(t, 4096)
	rng := rand.New(rand.NewSource(5))
	assert.Equal(t, 3, f.engine.OuterPasses())

	counts := map[uint32]int{}
	for _, live := range []uint32{1, 700, 4096} {
		f.fill(rng, 4096)
		f.dev.Soft().ResetStats()
		f.sort(live)
		counts[live] = f.dev.Soft().Stats().Dispatches
	}
	assert.Equal(t, counts[1], counts[700])
	assert.Equal(t, counts[1], counts[4096])
}

func TestNewRejectsOversizedCapacity(t *testing.T) {
	dev := soft.NewDevice(nil)
	assert.Panics(t, func() {
		_, _ = New(dev, BlockSize*MaxThreadGroups+1, nil)
	})

	small := soft.NewDevice(nil, soft.WithLimits(gpu.Limits{MaxThreadGroups: 4}))
	assert.Panics(t, func() {
		_, _ = New(small, BlockSize*4+1, nil)
	})
	e, err := New(small, BlockSize*4, nil)
	require.NoError(t, err)
	e.Release()
}

func TestReleaseFreesEverything(t *testing.T) {
	dev := soft.NewDevice(nil)
	e, err := New(dev, 1024, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, dev.LiveObjects())
	e.Release()
	assert.Equal(t, 0, dev.LiveObjects())
	e.Release()
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, uint32(1), nextPow2(1))
	assert.Equal(t, uint32(512), nextPow2(512))
	assert.Equal(t, uint32(1024), nextPow2(513))
	assert.Equal(t, uint32(4096), nextPow2(3000))
}
