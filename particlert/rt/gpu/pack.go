package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Packer builds little-endian constant buffer payloads field by field.
type Packer struct {
	buf []byte
}

func NewPacker(capacity int) *Packer {
	return &Packer{buf: make([]byte, 0, capacity)}
}

func (p *Packer) U32(v uint32) *Packer {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
	return p
}

func (p *Packer) F32(v float32) *Packer {
	return p.U32(math.Float32bits(v))
}

func (p *Packer) Vec3(v mgl32.Vec3) *Packer {
	return p.F32(v[0]).F32(v[1]).F32(v[2])
}

func (p *Packer) Vec4(v mgl32.Vec4) *Packer {
	return p.F32(v[0]).F32(v[1]).F32(v[2]).F32(v[3])
}

func (p *Packer) Mat4(m mgl32.Mat4) *Packer {
	for _, v := range m {
		p.F32(v)
	}
	return p
}

// Align pads with zeros up to the next multiple of n bytes.
func (p *Packer) Align(n int) *Packer {
	for len(p.buf)%n != 0 {
		p.buf = append(p.buf, 0)
	}
	return p
}

func (p *Packer) Len() int { return len(p.buf) }

func (p *Packer) Bytes() []byte { return p.buf }

// BytesToWords converts little-endian bytes to 32-bit words, zero-padding the tail.
func BytesToWords(dst []uint32, src []byte) {
	n := len(src) / 4
	for i := 0; i < n && i < len(dst); i++ {
		dst[i] = binary.LittleEndian.Uint32(src[i*4:])
	}
	if rem := len(src) % 4; rem != 0 && n < len(dst) {
		var tail [4]byte
		copy(tail[:], src[n*4:])
		dst[n] = binary.LittleEndian.Uint32(tail[:])
	}
}

// WordsToBytes is the inverse of BytesToWords.
func WordsToBytes(src []uint32) []byte {
	out := make([]byte, len(src)*4)
	for i, w := range src {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
