package sparks

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/sparks/particlert/rt/gpu"
	"github.com/gekko3d/sparks/particlert/rt/webgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type WindowState struct {
	// glfw
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
	windowTitle  string
}

// RenderDevice is the device particle work is issued on, whichever backend
// installed it.
type RenderDevice struct {
	Name   string
	Device gpu.Device
}

// FrameTarget is the colour target of the current frame. Target is nil when
// there is nothing to draw into, e.g. a minimised window.
type FrameTarget struct {
	Target gpu.RenderTarget
	Width  int
	Height int
}

type GpuState struct {
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	dev     *webgpu.Device
	target  *webgpu.SurfaceTarget
	texture *wgpu.Texture
	view    *wgpu.TextureView

	ClearColor wgpu.Color
}

func createWindowState(windowWidth int, windowHeight int, windowTitle string) *WindowState {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Important: tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		panic(err)
	}

	return &WindowState{
		windowGlfw:   win,
		WindowWidth:  windowWidth,
		WindowHeight: windowHeight,
		windowTitle:  windowTitle,
	}
}

func (s *WindowState) destroy() {
	if s.windowGlfw != nil {
		s.windowGlfw.Destroy()
		s.windowGlfw = nil
	}
	glfw.Terminate()
}

func createGpuState(s *WindowState, vsync bool, logger gpu.Logger) (*GpuState, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	// wraps GLFW window into a wgpu surface.
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(s.windowGlfw))
	// finds a suitable GPU (discrete GPU preferred)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		surface.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Particle Device",
	})
	if err != nil {
		adapter.Release()
		surface.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	caps := surface.GetCapabilities(adapter)
	presentMode := wgpu.PresentModeFifo // vsync
	if !vsync {
		presentMode = wgpu.PresentModeImmediate
	}
	width, height := s.windowGlfw.GetFramebufferSize()
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	dev, err := webgpu.NewDevice(device, surfaceConfig.Format, logger)
	if err != nil {
		device.Release()
		adapter.Release()
		surface.Release()
		return nil, err
	}

	return &GpuState{
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         device.GetQueue(),
		surfaceConfig: &surfaceConfig,
		dev:           dev,
		target:        webgpu.NewSurfaceTarget(),
		ClearColor:    wgpu.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
	}, nil
}

// resize reconfigures the surface when the framebuffer size changed. It
// reports false for an empty framebuffer.
func (g *GpuState) resize(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	if uint32(width) != g.surfaceConfig.Width || uint32(height) != g.surfaceConfig.Height {
		g.dev.Native().Flush()
		g.surfaceConfig.Width = uint32(width)
		g.surfaceConfig.Height = uint32(height)
		g.surface.Configure(g.adapter, g.device, g.surfaceConfig)
	}
	return true
}

// acquire fetches the next swapchain image and clears it.
func (g *GpuState) acquire(width, height int) (gpu.RenderTarget, error) {
	texture, err := g.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("get current texture: %w", err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("create view: %w", err)
	}
	g.texture = texture
	g.view = view
	g.target.Reset(view, width, height)
	g.dev.Native().Clear(g.target, g.ClearColor)
	return g.target, nil
}

func (g *GpuState) present() {
	if g.view == nil {
		return
	}
	g.dev.Native().Flush()
	g.surface.Present()
	g.target.Reset(nil, 0, 0)
	g.view.Release()
	g.texture.Release()
	g.view = nil
	g.texture = nil
}

func (g *GpuState) release() {
	g.dev.Release()
	g.surface.Release()
	g.device.Release()
	g.adapter.Release()
}
