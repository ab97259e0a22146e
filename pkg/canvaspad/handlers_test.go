package canvaspad

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaspad/canvaspad/pkg/models"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(&Config{MemoryStore: true})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func listComponents(t *testing.T, app *App, pageID models.PageID) []models.Component {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/api/pages/{pageId}/components", app.handleListComponents).Methods("GET")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/pages/"+pageID.String()+"/components", nil))
	require.Equal(t, 200, rec.Code)

	var out []models.Component
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListComponentsServesDurableRows(t *testing.T) {
	app := newTestApp(t)
	pageID := models.NewPageID()
	row := &models.Component{
		ID:     models.NewComponentID(),
		PageID: pageID,
		Kind:   models.ComponentText,
		Width:  120,
		Height: 40,
		Text:   "hi",
	}
	require.NoError(t, app.store.UpsertComponent(context.Background(), row))

	out := listComponents(t, app, pageID)
	require.Len(t, out, 1)
	assert.Equal(t, pageID, out[0].PageID)
	assert.Equal(t, "hi", out[0].Text)
}

func TestListComponentsStampsPageIDOnResidentPages(t *testing.T) {
	app := newTestApp(t)
	pageID := models.NewPageID()

	page := app.registry.Open(pageID)
	require.NoError(t, page.Ready(context.Background()))
	c := &models.Component{ID: models.NewComponentID(), Kind: models.ComponentDrawing, Width: 100, Height: 50}
	page.Document().PutComponent(c)

	out := listComponents(t, app, pageID)
	require.Len(t, out, 1)
	assert.Equal(t, c.ID, out[0].ID)
	assert.Equal(t, pageID, out[0].PageID, "resident pages respond with the same shape as durable rows")
}
