package crdt

import (
	"github.com/canvaspad/canvaspad/pkg/models"
)

// OpType identifies a replicated mutation.
type OpType string

const (
	// OpPut inserts a component into the document map.
	OpPut OpType = "put"
	// OpDelete removes a component from the document map.
	OpDelete OpType = "del"
	// OpSet writes one scalar field of an existing component.
	OpSet OpType = "set"
	// OpTextInsert inserts one atom into a component's text sequence.
	OpTextInsert OpType = "tins"
	// OpTextDelete removes one atom from a component's text sequence.
	OpTextDelete OpType = "tdel"
)

// Field names addressable by OpSet.
const (
	FieldX         = "x"
	FieldY         = "y"
	FieldWidth     = "width"
	FieldHeight    = "height"
	FieldZIndex    = "zIndex"
	FieldHasImage  = "hasImage"
	FieldShapeData = "shapeData"
)

// Op is the unit of replication. A document's full state is expressible as a
// list of ops (see Document.SnapshotOps), so initial state transfer and
// incremental updates share one merge path. Value slots are typed rather than
// `any` so the CBOR codec round-trips without reflection surprises.
type Op struct {
	Type      OpType               `cbor:"t"`
	Component models.ComponentID   `cbor:"id"`
	Ver       Version              `cbor:"ver"`
	Kind      models.ComponentKind `cbor:"k,omitempty"`
	Field     string               `cbor:"f,omitempty"`

	Num  *float64       `cbor:"n,omitempty"`
	Int  *int           `cbor:"i,omitempty"`
	Bool *bool          `cbor:"b,omitempty"`
	Map  models.JSONMap `cbor:"m,omitempty"`

	Atom *Atom    `cbor:"at,omitempty"`
	Pos  Position `cbor:"p,omitempty"`
}

// fieldValue extracts the typed payload slot for an OpSet.
func (op *Op) fieldValue() (any, bool) {
	switch {
	case op.Num != nil:
		return *op.Num, true
	case op.Int != nil:
		return *op.Int, true
	case op.Bool != nil:
		return *op.Bool, true
	case op.Map != nil:
		return op.Map, true
	}
	return nil, false
}

func numOp(id models.ComponentID, ver Version, field string, v float64) Op {
	return Op{Type: OpSet, Component: id, Ver: ver, Field: field, Num: &v}
}

func intOp(id models.ComponentID, ver Version, field string, v int) Op {
	return Op{Type: OpSet, Component: id, Ver: ver, Field: field, Int: &v}
}

func boolOp(id models.ComponentID, ver Version, field string, v bool) Op {
	return Op{Type: OpSet, Component: id, Ver: ver, Field: field, Bool: &v}
}

func mapOp(id models.ComponentID, ver Version, field string, v models.JSONMap) Op {
	return Op{Type: OpSet, Component: id, Ver: ver, Field: field, Map: v}
}
