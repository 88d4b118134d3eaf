package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a Y-up yaw/pitch camera. Angles are in radians.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FovY        float32
	Near        float32
	Far         float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 2, 12},
		Speed:       5.0,
		Sensitivity: 0.003,
		FovY:        mgl32.DegToRad(60),
		Near:        0.1,
		Far:         500,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return c.GetForward().Cross(mgl32.Vec3{0, 1, 0}).Normalize()
}

func (c *CameraState) GetUp() mgl32.Vec3 {
	return c.GetRight().Cross(c.GetForward()).Normalize()
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) GetProjectionMatrix(width, height int) mgl32.Mat4 {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// ClampPitch keeps the camera away from the poles.
func (c *CameraState) ClampPitch() {
	const limit = 89.0 * math.Pi / 180.0
	if c.Pitch > limit {
		c.Pitch = limit
	}
	if c.Pitch < -limit {
		c.Pitch = -limit
	}
}
