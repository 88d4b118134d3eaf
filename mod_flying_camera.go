package sparks

import (
	"github.com/gekko3d/sparks/particlert/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// FlyingCameraModule drives the shared camera from keyboard and mouse.
// Tab toggles mouse capture, Shift doubles the speed.
type FlyingCameraModule struct{}

func (m FlyingCameraModule) Install(app *App, cmd *Commands) {
	if !app.hasResource((*core.CameraState)(nil)) {
		cmd.AddResources(core.NewCameraState())
	}
	app.UseSystem(
		System(FlyingCameraControlSystem).
			InStage(Update).
			RunAlways(),
	)
}

// flyMove collects the movement intent as right/up/forward components.
func flyMove(input *Input) mgl32.Vec3 {
	move := mgl32.Vec3{}
	if input.Pressed[KeyW] {
		move[2] += 1
	}
	if input.Pressed[KeyS] {
		move[2] -= 1
	}
	if input.Pressed[KeyA] {
		move[0] -= 1
	}
	if input.Pressed[KeyD] {
		move[0] += 1
	}
	if input.Pressed[KeyE] || input.Pressed[KeySpace] {
		move[1] += 1
	}
	if input.Pressed[KeyQ] || input.Pressed[KeyControl] {
		move[1] -= 1
	}
	return move
}

func FlyingCameraControlSystem(input *Input, cam *core.CameraState, time *Time) {
	if input.JustPressed[KeyTab] {
		input.MouseCaptured = !input.MouseCaptured
	}

	dt := time.Seconds()
	if dt <= 0 {
		return
	}

	if input.MouseCaptured {
		cam.Yaw += float32(input.MouseDeltaX) * cam.Sensitivity
		cam.Pitch -= float32(input.MouseDeltaY) * cam.Sensitivity
		cam.ClampPitch()
	}

	move := flyMove(input)
	if move.Len() == 0 {
		return
	}
	speed := cam.Speed
	if input.Pressed[KeyShift] {
		speed *= 2
	}
	dir := cam.GetRight().Mul(move[0]).
		Add(mgl32.Vec3{0, 1, 0}.Mul(move[1])).
		Add(cam.GetForward().Mul(move[2]))
	cam.Position = cam.Position.Add(dir.Normalize().Mul(speed * dt))
}
