package client

import (
	"github.com/canvaspad/canvaspad/pkg/models"
)

// TextHandle edits one component's embedded text sequence at character
// granularity. Edits apply locally at once and propagate as individual
// sequence ops, so concurrent edits by different users merge without
// overwriting each other.
type TextHandle struct {
	session *Session
	id      models.ComponentID
}

// ComponentID returns the owning component's ID.
func (h *TextHandle) ComponentID() models.ComponentID { return h.id }

// String returns the current text content.
func (h *TextHandle) String() string {
	content, _ := h.session.doc.TextContent(h.id)
	return content
}

// Len returns the text length in runes.
func (h *TextHandle) Len() int {
	return h.session.doc.TextLen(h.id)
}

// Insert inserts s at the rune offset. Offsets beyond the current length
// clamp to the end.
func (h *TextHandle) Insert(offset int, s string) {
	h.session.enqueue(h.session.doc.TextInsert(h.id, offset, s))
}

// Delete removes n runes starting at offset. Ranges beyond the end are
// truncated; deleting from an empty range is a no-op.
func (h *TextHandle) Delete(offset, n int) {
	h.session.enqueue(h.session.doc.TextDelete(h.id, offset, n))
}

// Subscribe observes content changes and returns its unsubscribe function.
func (h *TextHandle) Subscribe(fn func()) func() {
	return h.session.doc.SubscribeText(h.id, fn)
}
