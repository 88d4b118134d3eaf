package sparks

type Commands struct {
	app *App
}

func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.changeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

// Exit stops the app after the current frame.
func (cmd *Commands) Exit() {
	cmd.app.exiting = true
}

// OnShutdown registers fn to run when the app stops. Hooks run newest first.
func (cmd *Commands) OnShutdown(fn func()) *Commands {
	cmd.app.shutdown = append(cmd.app.shutdown, fn)
	return cmd
}

func (cmd *Commands) Logger() Logger {
	return cmd.app.Logger()
}
