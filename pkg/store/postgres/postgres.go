// Package postgres provides the PostgreSQL implementation of the
// [github.com/canvaspad/canvaspad/pkg/store.Store] interface using GORM.
//
// Component rows map one-to-one to the snapshot form of the replicated
// document: text sequences are flattened to strings at upsert time and shape
// payloads are stored as JSONB. CRDT history is deliberately not persisted;
// the durable store only ever holds the latest reconciled state.
package postgres

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/canvaspad/canvaspad/pkg/models"
	"github.com/canvaspad/canvaspad/pkg/store"
)

// PostgresStore implements the Store interface using PostgreSQL with GORM.
type PostgresStore struct {
	db *gorm.DB
}

var _ store.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to PostgreSQL with the given DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates or updates the components table using GORM's AutoMigrate.
// Safe to run repeatedly; it only adds missing schema elements.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.Component{})
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) LoadComponents(ctx context.Context, pageID models.PageID) ([]*models.Component, error) {
	var components []*models.Component
	err := s.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("z_index asc").
		Find(&components).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load components for page %s: %w", pageID, err)
	}
	return components, nil
}

func (s *PostgresStore) ListComponentIDs(ctx context.Context, pageID models.PageID) ([]models.ComponentID, error) {
	var ids []models.ComponentID
	err := s.db.WithContext(ctx).
		Model(&models.Component{}).
		Where("page_id = ?", pageID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list component ids for page %s: %w", pageID, err)
	}
	return ids, nil
}

// UpsertComponent inserts the row or, on ID conflict, updates every mutable
// column with the current field values.
func (s *PostgresStore) UpsertComponent(ctx context.Context, component *models.Component) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"x", "y", "width", "height", "z_index", "text", "has_image", "shape_data", "updated_at",
			}),
		}).
		Create(component).Error
	if err != nil {
		return fmt.Errorf("failed to upsert component %s: %w", component.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteComponents(ctx context.Context, pageID models.PageID, ids []models.ComponentID) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("page_id = ? AND id IN ?", pageID, ids).
		Delete(&models.Component{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete components for page %s: %w", pageID, err)
	}
	return nil
}
