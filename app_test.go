package sparks

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_changeState(t *testing.T) {
	app := &App{
		stateful:     true,
		initialState: 1,
		state:        1,
		finalState:   2,
	}

	app.changeState(2)
	assert.Equal(t, State(2), app.nextState)
	assert.True(t, app.stateTransitioning)

	app.executeChangeState(2)
	assert.Equal(t, State(2), app.state)
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	assert.Same(t, resource2, Resource[MockResource2](app))
	assert.True(t, app.hasResource((*MockResource1)(nil)))
}

func TestApp_addResourcesRejectsValues(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.Panics(t, func() { app.addResources(MockResource1{}) })
}

func TestApp_SystemsRunInStageOrderWithInjectedResources(t *testing.T) {
	var order []string
	res := NewMockResource1("shared")

	app := NewAppBuilder().Build()
	app.addResources(res)
	app.UseSystem(System(func(r *MockResource1) { order = append(order, "render:"+r.name) }).InStage(Render))
	app.UseSystem(System(func(r *MockResource1, cmd *Commands) { order = append(order, "update:"+r.name) }))
	app.UseSystem(System(func() { order = append(order, "prelude") }).InStage(Prelude))

	app.RunFrames(1)
	assert.Equal(t, []string{"prelude", "update:shared", "render:shared"}, order)
	assert.Equal(t, uint64(1), app.Frame())
}

func TestApp_MissingDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(r *MockResource2) {}))
	assert.Panics(t, func() { app.Step() })
}

func TestApp_ExitStopsRunAndShutdownRunsInReverse(t *testing.T) {
	var calls []string
	frames := 0

	app := NewAppBuilder().Build()
	cmd := app.Commands()
	cmd.OnShutdown(func() { calls = append(calls, "first") })
	cmd.OnShutdown(func() { calls = append(calls, "second") })
	app.UseSystem(System(func(cmd *Commands) {
		frames++
		if frames == 3 {
			cmd.Exit()
		}
	}))

	app.Run()
	assert.Equal(t, 3, frames)
	assert.Equal(t, []string{"second", "first"}, calls)
}

func TestApp_StatefulTransitions(t *testing.T) {
	const (
		Loading State = iota
		Running
		Done
	)
	var log []string

	app := NewAppBuilder().UseStates(Loading, Done).Build()
	app.UseSystem(System(func(cmd *Commands) {
		log = append(log, "loading")
		cmd.ChangeState(Running)
	}).InState(OnExecute(Loading)))
	app.UseSystem(System(func() { log = append(log, "enter running") }).InState(OnEnter(Running)))
	app.UseSystem(System(func(cmd *Commands) {
		log = append(log, "running")
		cmd.ChangeState(Done)
	}).InState(OnExecute(Running)))
	app.UseSystem(System(func() { log = append(log, "exit done") }).InState(OnExit(Done)))

	app.Run()
	assert.Equal(t, []string{"loading", "enter running", "running", "exit done"}, log)
}

func TestApp_StatefulSystemInStatelessAppPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	assert.PanicsWithValue(t, "Trying to use a stateful system in a stateless app.", func() {
		app.UseSystem(System(func() {}).InState(OnEnter(0)))
	})
}

func TestEnsureSingleRenderer(t *testing.T) {
	app := NewAppBuilder().Build()
	ensureSingleRenderer(app, "soft")
	ensureSingleRenderer(app, "soft")
	assert.Equal(t, "soft", Resource[RendererTag](app).Name)
	assert.PanicsWithValue(t, "Multiple renderers installed: soft and webgpu", func() {
		ensureSingleRenderer(app, "webgpu")
	})
}
