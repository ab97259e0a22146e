package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaspad/canvaspad/pkg/models"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(models.NewPageID(), Options{ThrottleInterval: time.Millisecond})
}

func TestAddComponentAssignsTopZIndex(t *testing.T) {
	s := newTestSession(t)

	first := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})
	second := s.AddComponent(models.ComponentImage, 0, 0, 100, 100, AddOptions{})

	c1, ok := s.doc.Component(first)
	require.True(t, ok)
	c2, ok := s.doc.Component(second)
	require.True(t, ok)
	assert.Equal(t, 0, c1.ZIndex, "first component starts at the bottom")
	assert.Equal(t, 1, c2.ZIndex, "new components stack on top")

	five := 5
	third := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{ZIndex: &five})
	c3, _ := s.doc.Component(third)
	assert.Equal(t, 5, c3.ZIndex, "explicit zIndex wins")
}

func TestAddComponentEnforcesMinimumSize(t *testing.T) {
	s := newTestSession(t)

	id := s.AddComponent(models.ComponentDrawing, 0, 0, 1, 1, AddOptions{})
	c, _ := s.doc.Component(id)
	assert.Equal(t, models.MinWidth, c.Width)
	assert.Equal(t, models.MinHeight, c.Height)

	textID := s.AddComponent(models.ComponentText, 0, 0, 1, 1, AddOptions{Text: "note"})
	tc, _ := s.doc.Component(textID)
	assert.Equal(t, models.MinTextWidth, tc.Width)
	assert.Equal(t, models.MinTextHeight, tc.Height)
	assert.Equal(t, "note", tc.Text)
}

func TestUpdateComponentClampsResize(t *testing.T) {
	s := newTestSession(t)
	id := s.AddComponent(models.ComponentImage, 0, 0, 300, 300, AddOptions{})

	tiny := 1.0
	s.UpdateComponent(id, UpdatePatch{Width: &tiny})
	c, _ := s.doc.Component(id)
	assert.Equal(t, models.MinWidth, c.Width)
	assert.Equal(t, 300.0, c.Height, "untouched dimension stays")
}

func TestUpdateComponentUnknownIDIsNoop(t *testing.T) {
	s := newTestSession(t)
	x := 1.0
	s.UpdateComponent(models.NewComponentID(), UpdatePatch{X: &x})
	assert.Empty(t, s.Components())
}

func TestUpdateComponentReplacesText(t *testing.T) {
	s := newTestSession(t)
	id := s.AddComponent(models.ComponentText, 0, 0, 200, 80, AddOptions{Text: "draft"})

	final := "final"
	s.UpdateComponent(id, UpdatePatch{Text: &final})
	c, _ := s.doc.Component(id)
	assert.Equal(t, "final", c.Text)
}

func TestDeleteComponentIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	id := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})

	s.DeleteComponent(id)
	s.DeleteComponent(id)
	s.DeleteComponent(models.NewComponentID())
	assert.Empty(t, s.Components())
}

func TestBringToFront(t *testing.T) {
	s := newTestSession(t)
	bottom := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})
	s.AddComponent(models.ComponentImage, 0, 0, 100, 100, AddOptions{})

	s.BringToFront(bottom)
	comps := s.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, bottom, comps[1].ID, "raised component renders last")
}

func TestSendToBackRenumbersOthers(t *testing.T) {
	s := newTestSession(t)
	a := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})
	b := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})
	c := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})

	s.SendToBack(c)

	comps := s.Components()
	require.Len(t, comps, 3)
	assert.Equal(t, c, comps[0].ID)
	assert.Equal(t, a, comps[1].ID)
	assert.Equal(t, b, comps[2].ID)
	assert.Equal(t, 0, comps[0].ZIndex)
	assert.Equal(t, 1, comps[1].ZIndex)
	assert.Equal(t, 2, comps[2].ZIndex)
}

func TestComponentTextHandle(t *testing.T) {
	s := newTestSession(t)
	id := s.AddComponent(models.ComponentText, 0, 0, 200, 80, AddOptions{Text: "hello"})

	h, ok := s.ComponentText(id)
	require.True(t, ok)
	assert.Equal(t, "hello", h.String())
	assert.Equal(t, 5, h.Len())

	h.Insert(5, " world")
	h.Delete(0, 1)
	h.Insert(0, "H")
	assert.Equal(t, "Hello world", h.String())

	_, ok = s.ComponentText(s.AddComponent(models.ComponentImage, 0, 0, 100, 100, AddOptions{}))
	assert.False(t, ok, "non-text components have no text handle")
}

func TestMutationsQueueWhileDisconnected(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.Connected())

	id := s.AddComponent(models.ComponentDrawing, 5, 6, 100, 100, AddOptions{})
	s.mu.Lock()
	queued := len(s.queue)
	s.mu.Unlock()
	assert.NotZero(t, queued, "offline mutations accumulate for the next exchange")

	// The local replica reflects the mutation regardless of connectivity.
	c, ok := s.doc.Component(id)
	require.True(t, ok)
	assert.Equal(t, 5.0, c.X)
}

func TestOnConnectionChangeUnsubscribe(t *testing.T) {
	s := newTestSession(t)

	calls := 0
	unsub := s.OnConnectionChange(func(bool) { calls++ })
	s.notifyConnChange(true)
	assert.Equal(t, 1, calls)

	unsub()
	s.notifyConnChange(false)
	assert.Equal(t, 1, calls)
}

func TestCloseIsTerminal(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.Error(t, s.Close(), "second close reports the terminal state")
	assert.Error(t, s.Connect(context.Background()), "a closed session cannot reconnect")
}

func TestDeleteComponentReleasesThrottle(t *testing.T) {
	s := newTestSession(t)
	id := s.AddComponent(models.ComponentDrawing, 0, 0, 100, 100, AddOptions{})

	x := 5.0
	s.UpdateComponent(id, UpdatePatch{X: &x})
	s.mu.Lock()
	_, ok := s.throttles[id]
	s.mu.Unlock()
	require.True(t, ok)

	s.DeleteComponent(id)
	s.mu.Lock()
	_, ok = s.throttles[id]
	remaining := len(s.throttles)
	s.mu.Unlock()
	assert.False(t, ok, "deleting a component releases its throttle")
	assert.Zero(t, remaining)

	_, exists := s.doc.Component(id)
	assert.False(t, exists)
}
