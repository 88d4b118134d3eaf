package sparks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeSystem_FirstFrameHasZeroDt(t *testing.T) {
	tm := &Time{}

	timeSystem(tm)
	assert.Zero(t, tm.Dt)
	assert.Zero(t, tm.Elapsed)
	assert.Equal(t, uint32(1), tm.Frame)
	assert.False(t, tm.Time.IsZero())

	time.Sleep(2 * time.Millisecond)
	timeSystem(tm)
	assert.GreaterOrEqual(t, tm.Dt, 2*time.Millisecond)
	assert.Equal(t, tm.Dt, tm.Elapsed)
}

func TestTimeSystem_StartupDelayNotCounted(t *testing.T) {
	app := NewAppBuilder().UseModule(TimeModule{}).Build()
	time.Sleep(20 * time.Millisecond)

	app.Step()
	tm := Resource[Time](app)
	assert.Zero(t, tm.Dt)
}

func TestTimeSystem_FixedDt(t *testing.T) {
	tm := &Time{FixedDt: 10 * time.Millisecond}
	for range 3 {
		timeSystem(tm)
	}
	assert.Equal(t, 10*time.Millisecond, tm.Dt)
	assert.Equal(t, 30*time.Millisecond, tm.Elapsed)
	assert.Equal(t, uint32(3), tm.Frame)
}
