package canvaspad

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/canvaspad/canvaspad/pkg/models"
)

// handleListComponents returns a page's components ordered by zIndex. A page
// with live sessions is served from the in-memory document, which may be
// ahead of the store between flushes; otherwise the durable rows are
// returned directly.
func (a *App) handleListComponents(w http.ResponseWriter, r *http.Request) {
	pageID, err := models.ParsePageID(mux.Vars(r)["pageId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid page ID")
		return
	}

	if page, ok := a.registry.Lookup(pageID); ok {
		if err := page.Ready(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "Page is still loading")
			return
		}
		components := page.Document().Components()
		// Document snapshots carry no page ID; stamp it so the response
		// shape matches the durable-row path.
		for _, c := range components {
			c.PageID = pageID
		}
		respondJSON(w, http.StatusOK, components)
		return
	}

	components, err := a.store.LoadComponents(r.Context(), pageID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, components)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
