package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ComponentKind represents the kind of visual component on a page
type ComponentKind string

const (
	ComponentText    ComponentKind = "TEXT"
	ComponentImage   ComponentKind = "IMAGE"
	ComponentDrawing ComponentKind = "DRAWING"
)

// Minimum component extents, enforced at the mutation boundary rather than
// inside the replicated document. Text components host rich formatting and
// need more room than the generic floor.
const (
	MinWidth      = 50.0
	MinHeight     = 30.0
	MinTextWidth  = 120.0
	MinTextHeight = 40.0
)

// ClampSize raises width and height to the floor for the given kind.
func ClampSize(kind ComponentKind, width, height float64) (float64, float64) {
	minW, minH := MinWidth, MinHeight
	if kind == ComponentText {
		minW, minH = MinTextWidth, MinTextHeight
	}
	if width < minW {
		width = minW
	}
	if height < minH {
		height = minH
	}
	return width, height
}

// JSONMap is a flexible key-value map for the structured shape payload of
// drawing components. It is replicated as an atomic value (last writer wins
// at the field level) and stored as JSONB in PostgreSQL.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Component is one positioned visual element on a page. It is both the
// snapshot form observed by consumers of the replicated document and the
// durable row persisted by the store.
//
// Text holds the flattened form of the embedded text sequence; CRDT history
// is not persisted. Image bytes live in the external image store and are
// fetched by ID, so only the HasImage flag is replicated.
type Component struct {
	ID        ComponentID   `gorm:"type:uuid;primary_key" json:"id"`
	PageID    PageID        `gorm:"type:uuid;not null;index" json:"page_id"`
	Kind      ComponentKind `gorm:"not null" json:"kind"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Width     float64       `json:"width"`
	Height    float64       `json:"height"`
	ZIndex    int           `gorm:"not null" json:"z_index"`
	Text      string        `json:"text,omitempty"`
	HasImage  bool          `json:"has_image,omitempty"`
	ShapeData JSONMap       `gorm:"type:jsonb" json:"shape_data,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
