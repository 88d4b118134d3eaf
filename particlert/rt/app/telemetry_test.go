package app

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestHubBroadcastsFrameReports(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)

	h.Broadcast(FrameReport{Frame: 42, Capacity: 1024, Alive: 1000, Dead: 24, Spawned: 10})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got FrameReport
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "frame", got.Type)
	assert.Equal(t, uint32(42), got.Frame)
	assert.Equal(t, uint32(1000), got.Alive)
	assert.Equal(t, uint32(24), got.Dead)
}

func TestHubQueuesCommands(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)

	spawn := uint32(5)
	require.NoError(t, conn.WriteJSON(Command{MaxSpawn: &spawn}))
	require.NoError(t, conn.WriteJSON(Command{Reset: true}))

	var cmds []Command
	require.Eventually(t, func() bool {
		cmds = append(cmds, h.Drain()...)
		return len(cmds) == 2
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, cmds[0].MaxSpawn)
	assert.Equal(t, uint32(5), *cmds[0].MaxSpawn)
	assert.True(t, cmds[1].Reset)
	assert.Empty(t, h.Drain())
}

func TestHubDropsClosedClients(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)
	h.Broadcast(FrameReport{Frame: 1})
	h.Close()
}

func TestProfilerTimingsAndStats(t *testing.T) {
	p := NewProfiler()
	p.Measure("Simulate", func() { time.Sleep(time.Millisecond) })
	p.Measure("Sort", func() {})
	p.Measure("Simulate", func() {})
	p.SetCount("Alive", 12)

	assert.Equal(t, []string{"Simulate", "Sort"}, p.Order)
	assert.Contains(t, p.Timings(), "Sort")
	s := p.GetStatsString()
	assert.Contains(t, s, "Simulate")
	assert.Contains(t, s, "Alive")

	p.Reset()
	assert.Zero(t, p.Scopes["Simulate"])
}
