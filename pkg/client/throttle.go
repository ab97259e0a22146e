package client

import (
	"sync"
	"time"

	"github.com/canvaspad/canvaspad/pkg/crdt"
)

// throttle rate-limits network propagation of one component's position and
// size ops. The first op of a burst is emitted immediately; while the
// interval timer is armed, later ops coalesce per field so only the newest
// value per field survives. When the timer fires, the coalesced trailing
// batch is emitted and the timer re-arms. The final state of a drag is
// therefore always propagated, never lost to rate limiting.
type throttle struct {
	interval time.Duration
	emit     func([]crdt.Op)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]crdt.Op
	stopped bool
}

func newThrottle(interval time.Duration, emit func([]crdt.Op)) *throttle {
	return &throttle{
		interval: interval,
		emit:     emit,
		pending:  make(map[string]crdt.Op),
	}
}

func (t *throttle) submit(ops []crdt.Op) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		t.emit(ops)
		return
	}
	if t.timer != nil {
		for _, op := range ops {
			t.pending[op.Field] = op
		}
		t.mu.Unlock()
		return
	}
	t.timer = time.AfterFunc(t.interval, t.fire)
	t.mu.Unlock()

	t.emit(ops)
}

func (t *throttle) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if len(t.pending) == 0 {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	ops := t.takePendingLocked()
	t.timer = time.AfterFunc(t.interval, t.fire)
	t.mu.Unlock()

	t.emit(ops)
}

// stop flushes any trailing batch immediately and disables the timer.
func (t *throttle) stop() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	var ops []crdt.Op
	if len(t.pending) > 0 {
		ops = t.takePendingLocked()
	}
	t.mu.Unlock()

	if len(ops) > 0 {
		t.emit(ops)
	}
}

// discard disables the throttle and drops any trailing batch. Used when the
// component is deleted; its pending ops would only restate fields of a
// tombstoned component.
func (t *throttle) discard() {
	t.mu.Lock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = make(map[string]crdt.Op)
	t.mu.Unlock()
}

func (t *throttle) takePendingLocked() []crdt.Op {
	ops := make([]crdt.Op, 0, len(t.pending))
	for _, op := range t.pending {
		ops = append(ops, op)
	}
	t.pending = make(map[string]crdt.Op)
	return ops
}
