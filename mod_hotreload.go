package sparks

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// HotReload watches the settings file. Parsed settings are queued by the
// watcher goroutine and applied on the frame goroutine.
type HotReload struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan Settings
	log     Logger
}

// HotReloadModule re-applies the emitter section of the settings file when
// it changes and resets the pool. Capacity and blend changes need a restart.
type HotReloadModule struct {
	Path string
}

func (m HotReloadModule) Install(a *App, cmd *Commands) {
	if m.Path == "" {
		return
	}
	hr, err := watchSettings(m.Path, a.Logger())
	if err != nil {
		a.Logger().Warnf("hot reload disabled: %v", err)
		return
	}
	cmd.AddResources(hr)
	cmd.OnShutdown(hr.Close)
	a.UseSystem(System(hotReloadSystem).InStage(PreUpdate).RunAlways())
}

func watchSettings(path string, logger Logger) (*HotReload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	hr := &HotReload{
		path:    filepath.Clean(path),
		watcher: watcher,
		updates: make(chan Settings, 4),
		log:     logger,
	}
	go hr.loop()
	return hr, nil
}

func (hr *HotReload) loop() {
	for {
		select {
		case event, ok := <-hr.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != hr.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			hr.reload()
		case err, ok := <-hr.watcher.Errors:
			if !ok {
				return
			}
			hr.log.Warnf("settings watcher: %v", err)
		}
	}
}

func (hr *HotReload) reload() {
	s, err := LoadSettings(hr.path)
	if err != nil {
		hr.log.Warnf("settings reload: %v", err)
		return
	}
	// Keep only the newest pending settings.
	for {
		select {
		case hr.updates <- s:
			return
		default:
			select {
			case <-hr.updates:
			default:
			}
		}
	}
}

// Pending returns the newest reloaded settings, if any.
func (hr *HotReload) Pending() (Settings, bool) {
	var (
		s  Settings
		ok bool
	)
	for {
		select {
		case next := <-hr.updates:
			s, ok = next, true
		default:
			return s, ok
		}
	}
}

func (hr *HotReload) Close() {
	hr.watcher.Close()
}

func hotReloadSystem(hr *HotReload, ps *ParticleState, current *Settings, cmd *Commands) {
	next, ok := hr.Pending()
	if !ok {
		return
	}
	if next.Particles.Capacity != current.Particles.Capacity || next.Particles.Blend != current.Particles.Blend {
		cmd.Logger().Warnf("Particle capacity or blend changed in %s - restart required", hr.path)
	}
	current.Particles.Emitter = next.Particles.Emitter
	ps.System.Emitter = next.Particles.Emitter.Emitter()
	ps.System.RequestReset()
	cmd.Logger().Infof("Emitter settings reloaded from %s", hr.path)
}
