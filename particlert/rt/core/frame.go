package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// FrameData is everything the particle pipeline needs from the frame
// orchestrator for one frame.
type FrameData struct {
	Index       uint32
	Dt          float32
	Time        float32
	View        mgl32.Mat4
	Proj        mgl32.Mat4
	CameraPos   mgl32.Vec3
	CameraRight mgl32.Vec3
	CameraUp    mgl32.Vec3
	Width       int
	Height      int
}

func NewFrameData(cam *CameraState, width, height int, index uint32, dt, time float32) FrameData {
	return FrameData{
		Index:       index,
		Dt:          dt,
		Time:        time,
		View:        cam.GetViewMatrix(),
		Proj:        cam.GetProjectionMatrix(width, height),
		CameraPos:   cam.Position,
		CameraRight: cam.GetRight(),
		CameraUp:    cam.GetUp(),
		Width:       width,
		Height:      height,
	}
}

func (f FrameData) ViewProj() mgl32.Mat4 { return f.Proj.Mul4(f.View) }
