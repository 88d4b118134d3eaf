package particles

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gekko3d/sparks/particlert/rt/shaders"
)

// Source returns the particle compute module with the Go twins of its entry points.
func Source() gpu.KernelSource {
	return gpu.KernelSource{
		Name: "particles",
		WGSL: shaders.ParticlesWGSL,
		Host: map[string]gpu.HostKernel{
			"init_dead_list":  {WorkgroupSize: ThreadsPerGroup, Run: hostInitDeadList},
			"emit":            {WorkgroupSize: ThreadsPerGroup, Run: hostEmit},
			"simulate":        {WorkgroupSize: ThreadsPerGroup, Run: hostSimulate},
			"write_draw_args": {WorkgroupSize: 1, Run: hostWriteDrawArgs},
		},
	}
}

// RenderSource returns the particle draw module.
func RenderSource() gpu.KernelSource {
	return gpu.KernelSource{
		Name: "particle_render",
		WGSL: shaders.ParticleRenderWGSL,
		HostVertex: map[string]gpu.HostVertexFunc{
			"vs_main": hostVertex,
		},
	}
}

func hostInitDeadList(g *gpu.Workgroup) {
	pool := g.Res.Unordered[SlotParticles]
	dead := g.Res.Unordered[SlotDeadList]
	counter := g.Res.Counters[SlotDeadList]
	n := uint32(len(pool) / particleWords)
	g.Threads(func(_, index uint32) {
		if index >= n {
			return
		}
		gpu.SetF32(pool, index*particleWords+wAge, -1)
		dead[counter.Add(1)-1] = index
	})
}

func hostEmit(g *gpu.Workgroup) {
	params := g.Res.Constants[SlotEmitter]
	deadCount := g.Res.Constants[SlotDeadCount][0]
	pool := g.Res.Unordered[SlotParticles]
	dead := g.Res.Unordered[SlotDeadList]
	counter := g.Res.Counters[SlotDeadList]

	maxSpawn := params[eMaxSpawn]
	origin := gpu.Vec3(params, eOrigin)
	velocity := gpu.Vec3(params, eVelocity)
	posJitter := gpu.F32(params, ePositionJitter)
	velJitter := gpu.F32(params, eVelocityJitter)
	lifeSpan := gpu.F32(params, eLifeSpan)
	lifeJitter := gpu.F32(params, eLifeJitter)
	startSize := gpu.F32(params, eStartSize)
	endSize := gpu.F32(params, eEndSize)

	g.Threads(func(_, id uint32) {
		if id >= maxSpawn || id >= deadCount {
			return
		}
		// Consume: the counter is decremented and the new value is the slot to read.
		index := dead[counter.Add(^uint32(0))]

		r := newRNG(params[eSeed], params[eFrameIndex], id)
		pj := r.signed3()
		vj := r.signed3()
		life := math32.Max(lifeSpan*(1-lifeJitter*r.float()), 0.001)

		var pos, vel [3]float32
		for k := range 3 {
			pos[k] = origin[k] + pj[k]*posJitter
			vel[k] = velocity[k] + vj[k]*velJitter
		}

		p := pool[index*particleWords : (index+1)*particleWords]
		gpu.SetVec3(p, wPosition, pos)
		gpu.SetF32(p, wSize, startSize)
		gpu.SetVec3(p, wPrevPosition, pos)
		gpu.SetF32(p, wSizeDelta, (endSize-startSize)/life)
		gpu.SetVec3(p, wVelocity, vel)
		p[wMass] = params[eMass]
		copy(p[wAcceleration:wAcceleration+3], params[eAcceleration:eAcceleration+3])
		p[wMassDelta] = params[eMassDelta]
		copy(p[wStartColor:wStartColor+4], params[eStartColor:eStartColor+4])
		copy(p[wEndColor:wEndColor+4], params[eEndColor:eEndColor+4])
		copy(p[wColor:wColor+4], params[eStartColor:eStartColor+4])
		gpu.SetF32(p, wAge, 0)
		gpu.SetF32(p, wLifeSpan, life)
		gpu.SetF32(p, wStartSize, startSize)
		gpu.SetF32(p, wEndSize, endSize)
	})
}

func hostSimulate(g *gpu.Workgroup) {
	frame := g.Res.Constants[SlotFrame]
	pool := g.Res.Unordered[SlotParticles]
	dead := g.Res.Unordered[SlotDeadList]
	deadCounter := g.Res.Counters[SlotDeadList]
	alive := g.Res.Unordered[SlotAliveList]
	aliveCounter := g.Res.Counters[SlotAliveList]

	dt := gpu.F32(frame, fDt)
	cam := gpu.Vec3(frame, fCameraPos)
	n := uint32(len(pool) / particleWords)

	g.Threads(func(_, index uint32) {
		if index >= n {
			return
		}
		p := pool[index*particleWords : (index+1)*particleWords]
		age := gpu.F32(p, wAge)
		if age < 0 {
			return
		}
		age += dt
		life := gpu.F32(p, wLifeSpan)
		if age >= life {
			gpu.SetF32(p, wAge, -1)
			dead[deadCounter.Add(1)-1] = index
			return
		}
		gpu.SetF32(p, wAge, age)

		pos := gpu.Vec3(p, wPosition)
		vel := gpu.Vec3(p, wVelocity)
		acc := gpu.Vec3(p, wAcceleration)
		gpu.SetVec3(p, wPrevPosition, pos)
		var key float32
		for k := range 3 {
			vel[k] += acc[k] * dt
			pos[k] += vel[k] * dt
			d := pos[k] - cam[k]
			key += d * d
		}
		gpu.SetVec3(p, wVelocity, vel)
		gpu.SetVec3(p, wPosition, pos)
		gpu.SetF32(p, wSize, math32.Max(gpu.F32(p, wSize)+gpu.F32(p, wSizeDelta)*dt, 0))
		gpu.SetF32(p, wMass, gpu.F32(p, wMass)+gpu.F32(p, wMassDelta)*dt)

		t := math32.Min(math32.Max(age/life, 0), 1)
		start, end := gpu.Vec4(p, wStartColor), gpu.Vec4(p, wEndColor)
		var c [4]float32
		for k := range 4 {
			c[k] = start[k] + (end[k]-start[k])*t
		}
		gpu.SetVec4(p, wColor, c)

		slot := aliveCounter.Add(1) - 1
		alive[2*slot] = math32.Float32bits(key)
		alive[2*slot+1] = index
	})
}

func hostWriteDrawArgs(g *gpu.Workgroup) {
	args := g.Res.Unordered[SlotDrawArgs]
	args[0] = QuadIndexCount
	args[1] = g.Res.Constants[SlotLiveCount][0]
	args[2] = 0
	args[3] = 0
	args[4] = 0
}

func hostVertex(res *gpu.Resources, instance, vertex uint32) gpu.Vertex {
	frame := res.Constants[SlotFrame]
	live := res.Constants[SlotLiveCount][0]
	pool := res.ShaderRead[SlotPoolRead]
	sorted := res.ShaderRead[SlotSortedRead]

	index := sorted[2*(live-1-instance)+1]
	p := pool[index*particleWords : (index+1)*particleWords]

	cx := float32(vertex&1)*2 - 1
	cy := float32((vertex>>1)&1)*2 - 1
	half := gpu.F32(p, wSize) * 0.5
	pos := gpu.Vec3(p, wPosition)
	right := gpu.Vec3(frame, fCameraRight)
	up := gpu.Vec3(frame, fCameraUp)

	world := [4]float32{0, 0, 0, 1}
	for k := range 3 {
		world[k] = pos[k] + (right[k]*cx+up[k]*cy)*half
	}
	vp := gpu.Mat4(frame, fViewProj)
	var clip [4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			clip[row] += vp[col*4+row] * world[col]
		}
	}
	return gpu.Vertex{
		Clip:  clip,
		Color: gpu.Vec4(p, wColor),
		UV:    [2]float32{cx*0.5 + 0.5, cy*0.5 + 0.5},
	}
}
