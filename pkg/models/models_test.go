package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampSize(t *testing.T) {
	w, h := ClampSize(ComponentDrawing, 10, 10)
	assert.Equal(t, MinWidth, w)
	assert.Equal(t, MinHeight, h)

	w, h = ClampSize(ComponentText, 10, 500)
	assert.Equal(t, MinTextWidth, w)
	assert.Equal(t, 500.0, h, "values above the floor pass through")

	w, h = ClampSize(ComponentImage, 800, 600)
	assert.Equal(t, 800.0, w)
	assert.Equal(t, 600.0, h)
}

func TestTypedIDParse(t *testing.T) {
	id := NewPageID()
	parsed, err := ParsePageID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePageID("not-a-uuid")
	assert.Error(t, err)
}

func TestComponentJSONUsesTypedIDs(t *testing.T) {
	c := Component{
		ID:     NewComponentID(),
		PageID: NewPageID(),
		Kind:   ComponentDrawing,
		ShapeData: JSONMap{
			"points": []any{1.0, 2.0},
		},
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), c.ID.String(), "IDs serialize as plain UUID strings")

	var back Component
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.PageID, back.PageID)
}
