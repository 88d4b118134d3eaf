package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/sparks"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "sparks.yaml", "Settings file (.yaml, .yml or .toml)")
	debug := flag.Bool("debug", false, "Enable debug logging and per-frame pool stats")
	headless := flag.Bool("headless", false, "Run on the soft device without a window")
	frames := flag.Int("frames", -1, "Headless run length in frames (overrides settings)")
	snapshot := flag.String("snapshot", "", "Headless PNG snapshot path (overrides settings)")
	telemetry := flag.String("telemetry", "", "Websocket telemetry listen address, e.g. 127.0.0.1:7070")
	watch := flag.Bool("watch", true, "Reload emitter settings when the settings file changes")
	flag.Parse()

	settings, err := sparks.LoadSettings(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	settings.Debug = settings.Debug || *debug
	if *frames >= 0 {
		settings.Headless.Frames = *frames
	}
	if *snapshot != "" {
		settings.Headless.Snapshot = *snapshot
	}
	if *telemetry != "" {
		settings.Telemetry.Addr = *telemetry
	}

	pcfg, err := settings.ParticleConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	renderer := sparks.RendererWGPU
	if *headless {
		renderer = sparks.RendererSoft
	}
	statsEvery := 0
	if settings.Debug {
		statsEvery = 60
	}

	builder := sparks.NewAppBuilder().
		UseModule(
			sparks.LoggingModule{Prefix: "sparks", Debug: settings.Debug},
			sparks.SettingsModule{Settings: settings},
		).
		UseModule(sparks.RendererModules(renderer, settings)...).
		UseModule(sparks.ParticleModule{Config: pcfg, StatsEvery: statsEvery})
	if *watch {
		builder.UseModule(sparks.HotReloadModule{Path: *configPath})
	}
	builder.UseModule(sparks.TelemetryModule{
		Addr:  settings.Telemetry.Addr,
		Every: settings.Telemetry.Every,
	})

	builder.Build().Run()
}
