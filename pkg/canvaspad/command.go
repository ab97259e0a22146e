package canvaspad

// Command represents a discrete application operation with its specific
// configuration. Commands are created by Parse from command line arguments
// and executed through the matching method on [App].
type Command interface {
	// Name returns the command identifier used for routing to the
	// appropriate handler.
	Name() string
}

// MigrateCommand initializes or updates the durable store's schema to match
// the current data model. It is safe to run repeatedly; it only creates
// missing schema elements.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}

// RunCommand starts the collaboration server: the websocket endpoint for
// page sessions, the read-only component listing, and the health check. The
// server runs until the context is cancelled and shuts down gracefully,
// flushing every resident page.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}
