package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/models"
	"github.com/canvaspad/canvaspad/pkg/store"
)

// hydrate populates a fresh document from durable rows. Rows become locally
// authored components of the authoritative replica; their text content seeds
// the embedded sequences.
func hydrate(doc *crdt.Document, rows []*models.Component) {
	for _, row := range rows {
		doc.PutComponent(row)
	}
}

// flush reconciles durable rows with the document's current snapshot: every
// observable component is upserted with its flattened field values and, when
// reconcileDeletes is set, rows whose IDs are no longer in the document are
// hard-deleted. Callers clear reconcileDeletes for a document that never
// completed hydration, since a row absent from it may simply never have been
// loaded. The caller serializes flushes per page.
func flush(ctx context.Context, st store.Store, pageID models.PageID, doc *crdt.Document, reconcileDeletes bool) error {
	components := doc.Components()
	present := make(map[models.ComponentID]struct{}, len(components))

	var errs []error
	for _, c := range components {
		present[c.ID] = struct{}{}
		c.PageID = pageID
		if err := st.UpsertComponent(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}

	if reconcileDeletes {
		storedIDs, err := st.ListComponentIDs(ctx, pageID)
		if err != nil {
			errs = append(errs, err)
		} else {
			var stale []models.ComponentID
			for _, id := range storedIDs {
				if _, ok := present[id]; !ok {
					stale = append(stale, id)
				}
			}
			if len(stale) > 0 {
				if err := st.DeleteComponents(ctx, pageID, stale); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("flush for page %s: %w", pageID, errors.Join(errs...))
	}
	return nil
}
