package canvaspad

import (
	"context"
	"fmt"
)

// Migrate initializes or updates the durable store's schema to match the
// component model. Safe to run multiple times; it only creates missing
// schema elements and never drops data.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info("running database migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info("migrations completed")
	return nil
}
