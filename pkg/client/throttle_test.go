package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/models"
)

type opRecorder struct {
	mu      sync.Mutex
	batches [][]crdt.Op
}

func (r *opRecorder) emit(ops []crdt.Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, ops)
}

func (r *opRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *opRecorder) all() []crdt.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []crdt.Op
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func numOpFor(id models.ComponentID, field string, v float64) crdt.Op {
	return crdt.Op{Type: crdt.OpSet, Component: id, Field: field, Num: &v}
}

func TestThrottleLeadingEdgeIsImmediate(t *testing.T) {
	rec := &opRecorder{}
	th := newThrottle(time.Hour, rec.emit)
	id := models.NewComponentID()

	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 1)})
	assert.Equal(t, 1, rec.count(), "first op of a burst goes out immediately")
}

func TestThrottleCoalescesBurstToTrailingEdge(t *testing.T) {
	rec := &opRecorder{}
	th := newThrottle(30*time.Millisecond, rec.emit)
	id := models.NewComponentID()

	// A drag: many positions in quick succession.
	for i := 1; i <= 20; i++ {
		th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, float64(i))})
	}
	require.Equal(t, 1, rec.count(), "mid-burst ops coalesce")

	assert.Eventually(t, func() bool { return rec.count() == 2 },
		time.Second, 5*time.Millisecond, "trailing edge must fire")

	ops := rec.all()
	last := ops[len(ops)-1]
	require.NotNil(t, last.Num)
	assert.Equal(t, 20.0, *last.Num, "trailing edge carries the final value")
}

func TestThrottleKeepsLatestValuePerField(t *testing.T) {
	rec := &opRecorder{}
	th := newThrottle(30*time.Millisecond, rec.emit)
	id := models.NewComponentID()

	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 0)})
	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 10)})
	th.submit([]crdt.Op{numOpFor(id, crdt.FieldY, 5)})
	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 20)})

	assert.Eventually(t, func() bool { return rec.count() >= 2 },
		time.Second, 5*time.Millisecond)

	got := make(map[string]float64)
	for _, op := range rec.all() {
		got[op.Field] = *op.Num
	}
	assert.Equal(t, 20.0, got[crdt.FieldX])
	assert.Equal(t, 5.0, got[crdt.FieldY])
}

func TestThrottleStopFlushesPending(t *testing.T) {
	rec := &opRecorder{}
	th := newThrottle(time.Hour, rec.emit)
	id := models.NewComponentID()

	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 1)})
	th.submit([]crdt.Op{numOpFor(id, crdt.FieldX, 2)})
	require.Equal(t, 1, rec.count())

	th.stop()
	require.Equal(t, 2, rec.count(), "stop flushes the trailing batch")
	ops := rec.all()
	assert.Equal(t, 2.0, *ops[len(ops)-1].Num)
}
