// Package sparks is the frame orchestrator around the GPU particle pool: an
// App of stages and systems, with modules for the window, input, camera,
// settings, hot reload, telemetry and the particle pipeline itself.
package sparks

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	stages             []Stage
	systems            map[string]map[State]map[statePhase][]systemFn
	systemsStateless   map[string][]systemFn
	resources          map[reflect.Type]any

	started  bool
	exiting  bool
	frame    uint64
	shutdown []func()
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// Run executes frames until a system requests exit or the final state is left.
// Shutdown hooks run in reverse order of registration.
func (app *App) Run() {
	defer app.runShutdown()
	app.start()
	for !app.Step() {
	}
}

// RunFrames executes at most n frames and then shuts down.
func (app *App) RunFrames(n int) {
	defer app.runShutdown()
	app.start()
	for i := 0; i < n; i++ {
		if app.Step() {
			return
		}
	}
}

func (app *App) start() {
	if app.started {
		return
	}
	app.started = true
	if app.stateful {
		app.Logger().Infof("Running in stateful mode")
		app.state = app.initialState
		app.callSystems(app.state, enter)
	} else {
		app.Logger().Debugf("Running in stateless mode")
	}
}

// Step runs one frame and reports whether the app is done.
func (app *App) Step() bool {
	app.start()
	app.callSystems(app.state, execute)
	app.frame++

	if app.stateful {
		if app.stateTransitioning {
			app.stateTransitioning = false
			app.executeChangeState(app.nextState)
		}
		if app.state == app.finalState {
			app.callSystems(app.state, exit)
			return true
		}
	}
	return app.exiting
}

// Frame is the number of frames executed so far.
func (app *App) Frame() uint64 { return app.frame }

func (app *App) runShutdown() {
	for i := len(app.shutdown) - 1; i >= 0; i-- {
		app.shutdown[i]()
	}
	app.shutdown = nil
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		// Stateless systems run first on execute
		if execute == phase {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}

		if app.stateful {
			if systemsInStage, ok := app.systems[stage.Name]; ok {
				if systemsInState, ok := systemsInStage[state]; ok {
					for _, system := range systemsInState[phase] {
						app.callSystem(system)
					}
				}
			}
		}
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// hasResource reports whether a resource of the pointed-to type of ptr is installed.
func (app *App) hasResource(ptr any) bool {
	_, ok := app.resources[reflect.TypeOf(ptr).Elem()]
	return ok
}

// Resource returns the installed resource of type *T, or nil.
func Resource[T any](app *App) *T {
	var zero T
	if r, ok := app.resources[reflect.TypeOf(zero)]; ok {
		return r.(*T)
	}
	return nil
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			app.Logger().Errorf("%s", msg)
			panic(msg)
		}
	}
	systemValue.Call(args)
}
