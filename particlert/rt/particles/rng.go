package particles

// pcg is the PCG hash used by the emit kernel. Identical to pcg() in particles.wgsl.
func pcg(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

type rng struct {
	state uint32
}

func newRNG(seed, frame, id uint32) rng {
	return rng{state: pcg(seed + pcg(frame+pcg(id)))}
}

// float returns a value in [0, 1).
func (r *rng) float() float32 {
	r.state = pcg(r.state)
	return float32(r.state>>8) / 16777216.0
}

func (r *rng) signed3() [3]float32 {
	x := r.float()*2 - 1
	y := r.float()*2 - 1
	z := r.float()*2 - 1
	return [3]float32{x, y, z}
}
