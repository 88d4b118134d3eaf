package sparks

// PlatformWindowModule ensures a single shared GLFW window (WindowState) is created
// and made available as a resource for any renderer or input module.
// Install is idempotent: if a WindowState resource already exists, it is reused.
type PlatformWindowModule struct {
	Width  int
	Height int
	Title  string
}

// NewPlatformWindow creates a module that provides a shared WindowState resource.
// If Width/Height are zero, sensible defaults are used.
func NewPlatformWindow(width, height int, title string) *PlatformWindowModule {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "Sparks"
	}
	return &PlatformWindowModule{
		Width:  width,
		Height: height,
		Title:  title,
	}
}

// Install provides the WindowState resource if missing.
func (m PlatformWindowModule) Install(app *App, cmd *Commands) {
	if app.hasResource((*WindowState)(nil)) {
		return
	}

	ws := createWindowState(m.Width, m.Height, m.Title)
	app.addResources(ws)
	cmd.OnShutdown(ws.destroy)
	app.UseSystem(System(windowCloseSystem).InStage(Finale).RunAlways())
}

func windowCloseSystem(ws *WindowState, cmd *Commands) {
	if ws.windowGlfw.ShouldClose() {
		cmd.Exit()
	}
}

// SurfaceModule opens the wgpu device on the shared window and provides the
// RenderDevice and FrameTarget resources. Each frame it acquires and clears
// the swapchain image in PreRender and presents it in Finale.
type SurfaceModule struct {
	VSync bool
}

func (m SurfaceModule) Install(app *App, cmd *Commands) {
	ensureSingleRenderer(app, "webgpu")
	ws := Resource[WindowState](app)
	if ws == nil {
		panic("SurfaceModule requires PlatformWindowModule")
	}

	gs, err := createGpuState(ws, m.VSync, app.Logger())
	if err != nil {
		app.Logger().Errorf("gpu init: %v", err)
		panic(err)
	}
	width, height := ws.windowGlfw.GetFramebufferSize()
	cmd.AddResources(gs, &RenderDevice{Name: "webgpu", Device: gs.dev}, &FrameTarget{Width: width, Height: height})
	cmd.OnShutdown(gs.release)

	app.UseSystem(System(acquireFrameSystem).InStage(PreRender).RunAlways())
	app.UseSystem(System(presentFrameSystem).InStage(Finale).RunAlways())
}

func acquireFrameSystem(ws *WindowState, gs *GpuState, ft *FrameTarget, cmd *Commands) {
	width, height := ws.windowGlfw.GetFramebufferSize()
	ws.WindowWidth, ws.WindowHeight = width, height
	ft.Target = nil
	if !gs.resize(width, height) {
		ft.Width, ft.Height = 0, 0
		return
	}
	target, err := gs.acquire(width, height)
	if err != nil {
		cmd.Logger().Warnf("frame skipped: %v", err)
		return
	}
	ft.Target = target
	ft.Width, ft.Height = width, height
}

func presentFrameSystem(gs *GpuState) {
	gs.present()
}
