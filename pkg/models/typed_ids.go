package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// PageID is a typed ID for pages
type PageID struct {
	uuid uuid.UUID
}

func NewPageID() PageID {
	return PageID{uuid: uuid.New()}
}

func NewPageIDFromUUID(id uuid.UUID) PageID {
	return PageID{uuid: id}
}

func ParsePageID(s string) (PageID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PageID{}, fmt.Errorf("invalid page ID: %w", err)
	}
	return PageID{uuid: id}, nil
}

func (p PageID) UUID() uuid.UUID { return p.uuid }
func (p PageID) String() string  { return p.uuid.String() }
func (p PageID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p PageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *PageID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	p.uuid = id
	return nil
}

func (p PageID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.uuid.String())
}

func (p *PageID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &p.uuid)
}

func (p PageID) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.uuid.String(), nil
}

func (p *PageID) Scan(value any) error {
	return scanUUID(value, &p.uuid)
}

func (PageID) GormDataType() string { return "uuid" }

// ComponentID is a typed ID for page components
type ComponentID struct {
	uuid uuid.UUID
}

func NewComponentID() ComponentID {
	return ComponentID{uuid: uuid.New()}
}

func NewComponentIDFromUUID(id uuid.UUID) ComponentID {
	return ComponentID{uuid: id}
}

func ParseComponentID(s string) (ComponentID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ComponentID{}, fmt.Errorf("invalid component ID: %w", err)
	}
	return ComponentID{uuid: id}, nil
}

func (c ComponentID) UUID() uuid.UUID { return c.uuid }
func (c ComponentID) String() string  { return c.uuid.String() }
func (c ComponentID) IsZero() bool    { return c.uuid == uuid.Nil }

func (c ComponentID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.uuid.String())
}

func (c *ComponentID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	c.uuid = id
	return nil
}

func (c ComponentID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(c.uuid.String())
}

func (c *ComponentID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &c.uuid)
}

func (c ComponentID) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}
	return c.uuid.String(), nil
}

func (c *ComponentID) Scan(value any) error {
	return scanUUID(value, &c.uuid)
}

func (ComponentID) GormDataType() string { return "uuid" }

// unmarshalCBORID decodes a CBOR string into a uuid.
func unmarshalCBORID(data []byte, dst *uuid.UUID) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}

// scanUUID converts a database value (string or []byte) into a uuid.
func scanUUID(value any, dst *uuid.UUID) error {
	if value == nil {
		*dst = uuid.Nil
		return nil
	}
	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*dst = id
	case []byte:
		id, err := uuid.Parse(string(v))
		if err != nil {
			return err
		}
		*dst = id
	default:
		return fmt.Errorf("cannot scan %T into uuid", value)
	}
	return nil
}
