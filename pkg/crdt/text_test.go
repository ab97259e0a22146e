package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaspad/canvaspad/pkg/models"
)

// newTextPair returns two replicas that both observe a text component with
// the given initial content.
func newTextPair(t *testing.T, initial string) (*Document, *Document, models.ComponentID) {
	t.Helper()
	a := NewDocument("a")
	b := NewDocument("b")
	c := newTestComponent(models.ComponentText)
	c.Text = initial
	b.Apply(a.PutComponent(c))
	return a, b, c.ID
}

func textOf(t *testing.T, d *Document, id models.ComponentID) string {
	t.Helper()
	s, ok := d.TextContent(id)
	require.True(t, ok)
	return s
}

func TestConcurrentInsertsAtDifferentOffsets(t *testing.T) {
	a, b, id := newTextPair(t, "ab")

	opsA := a.TextInsert(id, 1, "X") // aXb
	opsB := b.TextInsert(id, 2, "Y") // abY

	a.Apply(opsB)
	b.Apply(opsA)

	assert.Equal(t, "aXbY", textOf(t, a, id))
	assert.Equal(t, "aXbY", textOf(t, b, id))
}

func TestConcurrentInsertsAtSameOffsetConverge(t *testing.T) {
	a, b, id := newTextPair(t, "ab")

	opsA := a.TextInsert(id, 1, "X")
	opsB := b.TextInsert(id, 1, "Y")

	a.Apply(opsB)
	b.Apply(opsA)

	got := textOf(t, a, id)
	assert.Equal(t, got, textOf(t, b, id))
	assert.Len(t, got, 4, "both insertions survive")
}

func TestInsertAgainstConcurrentDelete(t *testing.T) {
	a, b, id := newTextPair(t, "abc")

	// a deletes "b" while b inserts after it.
	opsA := a.TextDelete(id, 1, 1)
	opsB := b.TextInsert(id, 2, "X") // abXc

	a.Apply(opsB)
	b.Apply(opsA)

	assert.Equal(t, "aXc", textOf(t, a, id))
	assert.Equal(t, "aXc", textOf(t, b, id))
}

func TestDeleteArrivingBeforeInsertConverges(t *testing.T) {
	a, b, id := newTextPair(t, "a")

	ins := a.TextInsert(id, 1, "Z")
	del := a.TextDelete(id, 1, 1)

	// b observes the delete first.
	b.Apply(del)
	b.Apply(ins)

	assert.Equal(t, "a", textOf(t, a, id))
	assert.Equal(t, "a", textOf(t, b, id))
}

func TestTextOffsetsClamp(t *testing.T) {
	d := NewDocument("a")
	c := newTestComponent(models.ComponentText)
	c.Text = "ab"
	d.PutComponent(c)

	d.TextInsert(c.ID, 99, "c")
	text, _ := d.TextContent(c.ID)
	assert.Equal(t, "abc", text, "offset past the end appends")

	assert.Nil(t, d.TextDelete(c.ID, 99, 1), "delete past the end is a no-op")
	assert.Equal(t, 3, d.TextLen(c.ID))

	d.TextDelete(c.ID, 1, 99)
	text, _ = d.TextContent(c.ID)
	assert.Equal(t, "a", text, "overlong ranges truncate")
}

func TestTextIgnoredOnNonTextComponents(t *testing.T) {
	d := NewDocument("a")
	c := newTestComponent(models.ComponentImage)
	d.PutComponent(c)

	assert.Nil(t, d.TextInsert(c.ID, 0, "x"))
	_, ok := d.TextContent(c.ID)
	assert.False(t, ok)
}

func TestBetweenGeneratesOrderedUniquePositions(t *testing.T) {
	text := newText("site")
	var prev Position
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		pos := text.between(prev, nil)
		if prev != nil {
			require.Less(t, ComparePositions(prev, pos), 0)
		}
		key := pos.key()
		_, dup := seen[key]
		require.False(t, dup, "positions must be unique")
		seen[key] = struct{}{}
		prev = pos
	}
}

func TestInterleavedEditingSession(t *testing.T) {
	a, b, id := newTextPair(t, "hello")

	// a rewrites the greeting while b appends to it.
	b.Apply(a.TextDelete(id, 0, 1))
	b.Apply(a.TextInsert(id, 0, "H"))
	a.Apply(b.TextInsert(id, 5, " world"))

	assert.Equal(t, "Hello world", textOf(t, a, id))
	assert.Equal(t, "Hello world", textOf(t, b, id))
}
