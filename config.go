package sparks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gekko3d/sparks/particlert/rt/core"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gekko3d/sparks/particlert/rt/particles"
	"github.com/go-gl/mathgl/mgl32"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Debug     bool              `yaml:"debug" toml:"debug"`
	Window    WindowSettings    `yaml:"window" toml:"window"`
	Camera    CameraSettings    `yaml:"camera" toml:"camera"`
	Particles ParticleSettings  `yaml:"particles" toml:"particles"`
	Telemetry TelemetrySettings `yaml:"telemetry" toml:"telemetry"`
	Headless  HeadlessSettings  `yaml:"headless" toml:"headless"`
}

type WindowSettings struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Title  string `yaml:"title" toml:"title"`
	VSync  bool   `yaml:"vsync" toml:"vsync"`
}

// CameraSettings angles are in degrees.
type CameraSettings struct {
	Position [3]float32 `yaml:"position" toml:"position"`
	Yaw      float32    `yaml:"yaw" toml:"yaw"`
	Pitch    float32    `yaml:"pitch" toml:"pitch"`
	Speed    float32    `yaml:"speed" toml:"speed"`
	FovY     float32    `yaml:"fovY" toml:"fovY"`
}

type ParticleSettings struct {
	Capacity uint32          `yaml:"capacity" toml:"capacity"`
	Blend    string          `yaml:"blend" toml:"blend"`
	Emitter  EmitterSettings `yaml:"emitter" toml:"emitter"`
}

type EmitterSettings struct {
	Origin         [3]float32 `yaml:"origin" toml:"origin"`
	PositionJitter float32    `yaml:"positionJitter" toml:"positionJitter"`
	Velocity       [3]float32 `yaml:"velocity" toml:"velocity"`
	VelocityJitter float32    `yaml:"velocityJitter" toml:"velocityJitter"`
	Acceleration   [3]float32 `yaml:"acceleration" toml:"acceleration"`
	LifeSpan       float32    `yaml:"lifeSpan" toml:"lifeSpan"`
	LifeJitter     float32    `yaml:"lifeJitter" toml:"lifeJitter"`
	StartSize      float32    `yaml:"startSize" toml:"startSize"`
	EndSize        float32    `yaml:"endSize" toml:"endSize"`
	Mass           float32    `yaml:"mass" toml:"mass"`
	MassDelta      float32    `yaml:"massDelta" toml:"massDelta"`
	StartColor     [4]float32 `yaml:"startColor" toml:"startColor"`
	EndColor       [4]float32 `yaml:"endColor" toml:"endColor"`
	MaxSpawn       uint32     `yaml:"maxSpawn" toml:"maxSpawn"`
	SpawnRate      float32    `yaml:"spawnRate" toml:"spawnRate"`
	Seed           uint32     `yaml:"seed" toml:"seed"`
}

type TelemetrySettings struct {
	// Addr is the listen address of the websocket feed. Empty disables it.
	Addr string `yaml:"addr" toml:"addr"`
	// Every is the number of frames between reports.
	Every int `yaml:"every" toml:"every"`
}

type HeadlessSettings struct {
	Width    int     `yaml:"width" toml:"width"`
	Height   int     `yaml:"height" toml:"height"`
	Frames   int     `yaml:"frames" toml:"frames"`
	Dt       float32 `yaml:"dt" toml:"dt"`
	Snapshot string  `yaml:"snapshot" toml:"snapshot"`
	Workers  int     `yaml:"workers" toml:"workers"`
}

var ErrUnknownSettingsFormat = errors.New("unknown settings format")

func DefaultSettings() Settings {
	em := particles.DefaultEmitter()
	return Settings{
		Window: WindowSettings{
			Width:  1280,
			Height: 720,
			Title:  "Sparks",
			VSync:  true,
		},
		Camera: CameraSettings{
			Position: [3]float32{0, 2, 12},
			Speed:    5,
			FovY:     60,
		},
		Particles: ParticleSettings{
			Capacity: particles.DefaultConfig().Capacity,
			Blend:    "alpha",
			Emitter:  emitterSettingsFrom(em),
		},
		Telemetry: TelemetrySettings{
			Every: 10,
		},
		Headless: HeadlessSettings{
			Width:  256,
			Height: 256,
			Frames: 240,
			Dt:     1.0 / 60.0,
		},
	}
}

// LoadSettings reads path over the defaults. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := decodeSettings(path, data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("error parsing %s: %w", path, err)
	}
	return s, nil
}

func decodeSettings(path string, data []byte, s *Settings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSettingsFormat, filepath.Ext(path))
	}
}

// ParticleConfig converts the particle section into a pool configuration.
func (s Settings) ParticleConfig() (particles.Config, error) {
	blend, err := gpu.ParseBlendMode(s.Particles.Blend)
	if err != nil {
		return particles.Config{}, err
	}
	if s.Particles.Capacity == 0 {
		return particles.Config{}, fmt.Errorf("particles.capacity must be positive")
	}
	return particles.Config{
		Capacity: s.Particles.Capacity,
		Emitter:  s.Particles.Emitter.Emitter(),
		Blend:    blend,
	}, nil
}

// CameraState builds the initial camera.
func (s Settings) CameraState() *core.CameraState {
	cam := core.NewCameraState()
	cam.Position = mgl32.Vec3(s.Camera.Position)
	cam.Yaw = mgl32.DegToRad(s.Camera.Yaw)
	cam.Pitch = mgl32.DegToRad(s.Camera.Pitch)
	if s.Camera.Speed > 0 {
		cam.Speed = s.Camera.Speed
	}
	if s.Camera.FovY > 0 {
		cam.FovY = mgl32.DegToRad(s.Camera.FovY)
	}
	cam.ClampPitch()
	return cam
}

func (e EmitterSettings) Emitter() particles.Emitter {
	return particles.Emitter{
		Origin:         mgl32.Vec3(e.Origin),
		PositionJitter: e.PositionJitter,
		Velocity:       mgl32.Vec3(e.Velocity),
		VelocityJitter: e.VelocityJitter,
		Acceleration:   mgl32.Vec3(e.Acceleration),
		LifeSpan:       e.LifeSpan,
		LifeJitter:     e.LifeJitter,
		StartSize:      e.StartSize,
		EndSize:        e.EndSize,
		Mass:           e.Mass,
		MassDelta:      e.MassDelta,
		StartColor:     mgl32.Vec4(e.StartColor),
		EndColor:       mgl32.Vec4(e.EndColor),
		MaxSpawn:       e.MaxSpawn,
		SpawnRate:      e.SpawnRate,
		Seed:           e.Seed,
	}
}

func emitterSettingsFrom(e particles.Emitter) EmitterSettings {
	return EmitterSettings{
		Origin:         e.Origin,
		PositionJitter: e.PositionJitter,
		Velocity:       e.Velocity,
		VelocityJitter: e.VelocityJitter,
		Acceleration:   e.Acceleration,
		LifeSpan:       e.LifeSpan,
		LifeJitter:     e.LifeJitter,
		StartSize:      e.StartSize,
		EndSize:        e.EndSize,
		Mass:           e.Mass,
		MassDelta:      e.MassDelta,
		StartColor:     e.StartColor,
		EndColor:       e.EndColor,
		MaxSpawn:       e.MaxSpawn,
		SpawnRate:      e.SpawnRate,
		Seed:           e.Seed,
	}
}

// SettingsModule publishes the loaded settings and the initial camera.
type SettingsModule struct {
	Settings Settings
}

func (m SettingsModule) Install(a *App, cmd *Commands) {
	s := m.Settings
	cmd.AddResources(&s)
	if !a.hasResource((*core.CameraState)(nil)) {
		cmd.AddResources(s.CameraState())
	}
}
