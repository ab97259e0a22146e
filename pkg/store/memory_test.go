package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaspad/canvaspad/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	pageID := models.NewPageID()

	top := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentImage, ZIndex: 2}
	bottom := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentText, ZIndex: 0, Text: "hi"}
	require.NoError(t, st.UpsertComponent(ctx, top))
	require.NoError(t, st.UpsertComponent(ctx, bottom))

	rows, err := st.LoadComponents(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, bottom.ID, rows[0].ID, "rows come back in zIndex order")
	assert.Equal(t, top.ID, rows[1].ID)
	assert.Equal(t, "hi", rows[0].Text)
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	pageID := models.NewPageID()

	c := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentDrawing, X: 1}
	require.NoError(t, st.UpsertComponent(ctx, c))
	c.X = 42
	require.NoError(t, st.UpsertComponent(ctx, c))

	rows, err := st.LoadComponents(ctx, pageID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 42.0, rows[0].X)
}

func TestMemoryStoreDeleteComponents(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	pageID := models.NewPageID()

	keep := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentDrawing}
	drop := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentDrawing}
	require.NoError(t, st.UpsertComponent(ctx, keep))
	require.NoError(t, st.UpsertComponent(ctx, drop))

	require.NoError(t, st.DeleteComponents(ctx, pageID, []models.ComponentID{drop.ID}))

	ids, err := st.ListComponentIDs(ctx, pageID)
	require.NoError(t, err)
	assert.Equal(t, []models.ComponentID{keep.ID}, ids)
}

func TestMemoryStoreIsolatesPages(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	pageA := models.NewPageID()
	pageB := models.NewPageID()
	require.NoError(t, st.UpsertComponent(ctx, &models.Component{ID: models.NewComponentID(), PageID: pageA, Kind: models.ComponentImage}))

	rows, err := st.LoadComponents(ctx, pageB)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	pageID := models.NewPageID()

	c := &models.Component{ID: models.NewComponentID(), PageID: pageID, Kind: models.ComponentDrawing, X: 1}
	require.NoError(t, st.UpsertComponent(ctx, c))

	rows, _ := st.LoadComponents(ctx, pageID)
	rows[0].X = 999

	again, _ := st.LoadComponents(ctx, pageID)
	assert.Equal(t, 1.0, again[0].X, "callers cannot mutate stored state")
}
