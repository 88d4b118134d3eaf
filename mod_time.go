package sparks

import (
	"time"
)

type Time struct {
	Time    time.Time
	Dt      time.Duration
	Elapsed time.Duration
	Frame   uint32

	// FixedDt replaces the wall-clock delta when non-zero. Headless runs use it
	// so the simulation is reproducible.
	FixedDt time.Duration
}

// Seconds returns the frame delta in seconds.
func (t *Time) Seconds() float32 { return float32(t.Dt.Seconds()) }

type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{FixedDt: mod.FixedDt})
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

// timeSystem only stamps the clock on its first run; that frame's Dt is zero.
func timeSystem(timeResource *Time) {
	now := time.Now()

	switch {
	case timeResource.FixedDt > 0:
		timeResource.Dt = timeResource.FixedDt
	case timeResource.Time.IsZero():
		timeResource.Dt = 0
	default:
		timeResource.Dt = now.Sub(timeResource.Time)
	}
	timeResource.Time = now
	timeResource.Elapsed += timeResource.Dt
	timeResource.Frame++
}
