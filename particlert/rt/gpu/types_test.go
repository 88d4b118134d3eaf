package gpu

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferDescValidate(t *testing.T) {
	cases := []struct {
		name string
		desc BufferDesc
		ok   bool
	}{
		{"structured", BufferDesc{Label: "pool", Bind: BindShaderRead | BindUnordered, Stride: 128, Count: 4}, true},
		{"append", BufferDesc{Label: "dead", Bind: BindUnordered, Stride: 4, Count: 4, Counter: CounterAppend}, true},
		{"counter without uav", BufferDesc{Label: "dead", Bind: BindShaderRead, Stride: 4, Count: 4, Counter: CounterConsume}, false},
		{"dynamic uav", BufferDesc{Label: "x", Bind: BindUnordered, Stride: 4, Count: 4, CPU: CPUWrite}, false},
		{"constant misaligned", BufferDesc{Label: "cb", Bind: BindConstant, Stride: 4, Count: 3, CPU: CPUWrite}, false},
		{"empty", BufferDesc{Label: "e", Bind: BindVertex}, false},
		{"no flags", BufferDesc{Label: "n", Stride: 4, Count: 1}, false},
		{"init too big", BufferDesc{Label: "i", Bind: BindIndex, Stride: 2, Count: 2, Init: make([]byte, 6)}, false},
	}
	for _, tc := range cases {
		err := tc.desc.Validate()
		if tc.ok {
			assert.NoError(t, err, tc.name)
		} else {
			assert.True(t, errors.Is(err, ErrInvalidDesc), "%s: got %v", tc.name, err)
		}
	}
}

func TestBindFlagsString(t *testing.T) {
	assert.Equal(t, "none", BindFlags(0).String())
	assert.Equal(t, "shader-read|unordered", (BindShaderRead | BindUnordered).String())
}

func TestParseBlendMode(t *testing.T) {
	m, err := ParseBlendMode("Additive")
	require.NoError(t, err)
	assert.Equal(t, BlendAdditive, m)

	m, err = ParseBlendMode("")
	require.NoError(t, err)
	assert.Equal(t, BlendAlpha, m)

	_, err = ParseBlendMode("multiply")
	assert.Error(t, err)
}

func TestPackerRoundTrip(t *testing.T) {
	p := NewPacker(64).Vec3(mgl32.Vec3{1, 2, 3}).F32(0.5).U32(7).Align(16)
	require.Equal(t, 32, p.Len())

	words := make([]uint32, 8)
	BytesToWords(words, p.Bytes())
	assert.Equal(t, [3]float32{1, 2, 3}, Vec3(words, 0))
	assert.Equal(t, float32(0.5), F32(words, 3))
	assert.Equal(t, uint32(7), words[4])
	assert.Equal(t, p.Bytes(), WordsToBytes(words))
}

func TestBytesToWordsTail(t *testing.T) {
	words := make([]uint32, 2)
	BytesToWords(words, []byte{1, 0, 0, 0, 2, 3})
	assert.Equal(t, []uint32{1, 0x0302}, words)
}

type countingReleaser struct {
	order *[]int
	id    int
}

func (c countingReleaser) Release() { *c.order = append(*c.order, c.id) }

func TestScopeReleasesInReverse(t *testing.T) {
	var order []int
	var s Scope
	s.Add(countingReleaser{&order, 1}, countingReleaser{&order, 2})
	s.Add(countingReleaser{&order, 3})
	require.Equal(t, 3, s.Len())
	s.Close()
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.Equal(t, 0, s.Len())
}

func TestCompileErrorUnwrap(t *testing.T) {
	err := &CompileError{Source: "particles", Entry: "emit", Diagnostic: "bad", Err: ErrEntryNotFound}
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Contains(t, err.Error(), "particles:emit")
}

func TestFatalfLogsThenPanics(t *testing.T) {
	l := &recordingLogger{}
	require.PanicsWithValue(t, "boom 3", func() { Fatalf(l, "boom %d", 3) })
	assert.Equal(t, []string{"boom 3"}, l.errors)
}

type recordingLogger struct {
	nopLogger
	errors []string
}

func (r *recordingLogger) Errorf(format string, args ...any) {
	r.errors = append(r.errors, args[0].(string))
}
