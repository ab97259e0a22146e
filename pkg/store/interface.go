// Package store defines the durable storage interface the persistence bridge
// reconciles the replicated document against, plus an in-memory
// implementation used by tests and store-less development runs.
package store

import (
	"context"

	"github.com/canvaspad/canvaspad/pkg/models"
)

// Store is the row-oriented durable interface for page components. The
// collaboration service accesses it only through the persistence bridge,
// serialized per page.
type Store interface {
	// LoadComponents returns all component rows for a page ordered by zIndex
	// ascending.
	LoadComponents(ctx context.Context, pageID models.PageID) ([]*models.Component, error)

	// ListComponentIDs returns the IDs of all stored components for a page.
	// The bridge diffs this set against the in-memory document on flush.
	ListComponentIDs(ctx context.Context, pageID models.PageID) ([]models.ComponentID, error)

	// UpsertComponent inserts or updates one component row.
	UpsertComponent(ctx context.Context, component *models.Component) error

	// DeleteComponents hard-deletes the given components of a page. Deleting
	// IDs that are already absent is not an error.
	DeleteComponents(ctx context.Context, pageID models.PageID, ids []models.ComponentID) error

	// Migrate initializes or updates the backing schema.
	Migrate(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
