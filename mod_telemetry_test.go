package sparks

import (
	"testing"
	"time"

	"github.com/gekko3d/sparks/particlert/rt/app"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelemetryModuleStreamsAndAcceptsCommands(t *testing.T) {
	s := headlessSettings(t, 0)
	s.Headless.Snapshot = ""
	a := buildHeadless(t, s, TelemetryModule{Addr: "127.0.0.1:0", Every: 1})
	t.Cleanup(a.runShutdown)

	tel := Resource[Telemetry](a)
	require.NotNil(t, tel)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+tel.Addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return tel.Hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	a.Step()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var report app.FrameReport
	require.NoError(t, conn.ReadJSON(&report))
	assert.Equal(t, "frame", report.Type)
	assert.Equal(t, uint32(1), report.Frame)
	assert.Equal(t, uint32(10), report.Alive)
	assert.Contains(t, report.TimingsMS, "Particles.Update")

	ps := Resource[ParticleState](a)
	huge := ^uint32(0)
	require.NoError(t, conn.WriteJSON(app.Command{MaxSpawn: &huge}))
	require.Eventually(t, func() bool {
		a.Step()
		return ps.System.Emitter.MaxSpawn == ps.System.Capacity()
	}, 2*time.Second, 10*time.Millisecond)

	spawn := uint32(0)
	require.NoError(t, conn.WriteJSON(app.Command{MaxSpawn: &spawn, Reset: true}))
	require.Eventually(t, func() bool {
		a.Step()
		return ps.System.Emitter.MaxSpawn == 0
	}, 2*time.Second, 10*time.Millisecond)

	a.Step()
	stats, err := ps.System.Stats(Resource[RenderDevice](a).Device.Context())
	require.NoError(t, err)
	assert.Zero(t, stats.Alive)
	assert.Equal(t, stats.Capacity, stats.Dead)
}

func TestTelemetryDisabledWithoutAddr(t *testing.T) {
	s := headlessSettings(t, 1)
	a := buildHeadless(t, s, TelemetryModule{})
	assert.Nil(t, Resource[Telemetry](a))
	a.Run()
}
