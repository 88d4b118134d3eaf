package shaders

import (
	_ "embed"
)

//go:embed particles.wgsl
var ParticlesWGSL string

//go:embed bitonic.wgsl
var BitonicWGSL string

//go:embed particle_render.wgsl
var ParticleRenderWGSL string
