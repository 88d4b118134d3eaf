package sparks

import (
	"errors"
	"net"
	"net/http"

	"github.com/gekko3d/sparks/particlert/rt/app"
)

// Telemetry serves the websocket debug feed.
type Telemetry struct {
	Hub   *app.Hub
	Addr  string
	Every int

	server *http.Server
}

// TelemetryModule streams pool counters to websocket clients at /ws and
// applies the commands they send back. Install it after ParticleModule.
type TelemetryModule struct {
	Addr  string
	Every int
}

func (m TelemetryModule) Install(a *App, cmd *Commands) {
	if m.Addr == "" {
		return
	}
	tel, err := startTelemetry(m.Addr, m.Every, a.Logger())
	if err != nil {
		a.Logger().Warnf("telemetry disabled: %v", err)
		return
	}
	a.Logger().Infof("Telemetry listening on ws://%s/ws", tel.Addr)
	cmd.AddResources(tel)
	cmd.OnShutdown(tel.Close)
	a.UseSystem(System(telemetryCommandSystem).InStage(PreUpdate).RunAlways())
	a.UseSystem(System(telemetryReportSystem).InStage(PostRender).RunAlways())
}

func startTelemetry(addr string, every int, logger Logger) (*Telemetry, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if every <= 0 {
		every = 1
	}
	hub := app.NewHub(logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	tel := &Telemetry{
		Hub:    hub,
		Addr:   ln.Addr().String(),
		Every:  every,
		server: &http.Server{Handler: mux},
	}
	go func() {
		if err := tel.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("telemetry server: %v", err)
		}
	}()
	return tel, nil
}

func (t *Telemetry) Close() {
	t.Hub.Close()
	t.server.Close()
}

func telemetryCommandSystem(tel *Telemetry, ps *ParticleState, cmd *Commands) {
	for _, c := range tel.Hub.Drain() {
		if c.MaxSpawn != nil {
			ps.System.Emitter.MaxSpawn = min(*c.MaxSpawn, ps.System.Capacity())
		}
		if c.SpawnRate != nil {
			ps.System.Emitter.SpawnRate = *c.SpawnRate
		}
		if c.Reset {
			ps.System.RequestReset()
			cmd.Logger().Infof("Particle pool reset by telemetry client")
		}
	}
}

func telemetryReportSystem(tel *Telemetry, ps *ParticleState, rd *RenderDevice, t *Time, cmd *Commands) {
	if tel.Hub.Clients() == 0 || t.Frame%uint32(tel.Every) != 0 {
		return
	}
	stats, err := ps.System.Stats(rd.Device.Context())
	if err != nil {
		cmd.Logger().Warnf("telemetry stats: %v", err)
		return
	}
	tel.Hub.Broadcast(app.FrameReport{
		Frame:     stats.Frame,
		Time:      float32(t.Elapsed.Seconds()),
		Capacity:  stats.Capacity,
		Alive:     stats.Alive,
		Dead:      stats.Dead,
		Spawned:   stats.SpawnedAt,
		TimingsMS: ps.Profiler.Timings(),
	})
}
