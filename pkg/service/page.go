// Package service implements the collaboration service: it accepts sessions
// keyed by page ID, multiplexes any number of concurrent connections per
// page, merges their updates into the authoritative replicated document, and
// bridges that document to the durable store at session start and on change.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/logger"
	"github.com/canvaspad/canvaspad/pkg/models"
	"github.com/canvaspad/canvaspad/pkg/wire"
)

// Page owns the authoritative in-memory document for one page and the set of
// live sessions attached to it. Mutations from any session are merged under
// the document's own synchronization and then broadcast to the other
// sessions; each change schedules a debounced flush.
type Page struct {
	id  models.PageID
	doc *crdt.Document
	reg *Registry
	log logger.Logger

	// ready is closed once hydration finishes, successfully or degraded to an
	// empty document. Sessions for this page are admitted only after that;
	// other pages are unaffected.
	ready chan struct{}

	mu         sync.Mutex
	sessions   map[*session]struct{}
	flushTimer *time.Timer
	dirty      bool
	evictTimer *time.Timer
	hydrated   bool
	dead       bool

	// flushMu serializes flushes for this page. The durable store never sees
	// two concurrent flushes of the same page.
	flushMu sync.Mutex
}

func newPage(id models.PageID, reg *Registry, log logger.Logger) *Page {
	return &Page{
		id:       id,
		doc:      crdt.NewDocument("service:" + id.String()),
		reg:      reg,
		log:      log,
		ready:    make(chan struct{}),
		sessions: make(map[*session]struct{}),
	}
}

func (p *Page) ID() models.PageID { return p.id }

// Document exposes the authoritative document, mainly for read-only
// snapshots and tests.
func (p *Page) Document() *crdt.Document { return p.doc }

// Ready blocks until hydration completes or the context is cancelled.
func (p *Page) Ready(ctx context.Context) error {
	select {
	case <-p.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errPageEvicted reports that a page handle was retired between lookup and
// admission. Callers reopen the page through the registry.
var errPageEvicted = errors.New("page evicted")

// hydrateLoop loads durable rows into the fresh document. It runs under its
// own context so no opener's disconnect can abort it. A store fault is
// logged and the page opens with an empty document rather than refusing
// sessions; such a page never treats durable rows as stale on flush, since
// it cannot tell a deleted component from one it failed to load.
func (p *Page) hydrateLoop() {
	defer close(p.ready)
	rows, err := p.reg.store.LoadComponents(context.Background(), p.id)
	if err != nil {
		p.log.Error("hydration failed, opening with empty document",
			"page", p.id.String(), "error", err)
		return
	}
	hydrate(p.doc, rows)
	p.mu.Lock()
	p.hydrated = true
	p.mu.Unlock()
	p.log.Info("page hydrated", "page", p.id.String(), "components", len(rows))
}

// hydratedOK reports whether hydration completed successfully.
func (p *Page) hydratedOK() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hydrated
}

// alive reports whether the handle has not been evicted.
func (p *Page) alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead
}

// merge applies an op batch from one session to the authoritative document,
// then broadcasts it to every other session of the page and schedules a
// flush. Broadcast happens only after the merge succeeds.
func (p *Page) merge(from *session, ops []crdt.Op) {
	if len(ops) == 0 {
		return
	}
	p.doc.Apply(ops)

	data, err := wire.Encode(&wire.Message{Type: wire.MessageUpdate, PageID: p.id, Ops: ops})
	if err != nil {
		p.log.Error("failed to encode update broadcast", "page", p.id.String(), "error", err)
	} else {
		p.mu.Lock()
		for s := range p.sessions {
			if s == from {
				continue
			}
			s.enqueue(data)
		}
		p.mu.Unlock()
	}

	p.scheduleFlush()
}

// scheduleFlush marks the page dirty and arms the debounce timer if it is not
// already armed. Bursts of changes collapse into one store write.
func (p *Page) scheduleFlush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
	if p.flushTimer != nil {
		return
	}
	p.flushTimer = time.AfterFunc(p.reg.cfg.FlushDebounce, p.flushNow)
}

// flushNow performs one reconciliation pass against the store. A failed flush
// is logged and retried on the next change; it never blocks or rejects an
// in-progress client mutation.
func (p *Page) flushNow() {
	p.mu.Lock()
	p.flushTimer = nil
	p.dirty = false
	p.mu.Unlock()

	p.flushMu.Lock()
	err := flush(context.Background(), p.reg.store, p.id, p.doc, p.hydratedOK())
	p.flushMu.Unlock()

	if err != nil {
		p.log.Error("flush failed, will retry on next change", "page", p.id.String(), "error", err)
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		return
	}

	// Changes that arrived while flushing get their own pass.
	p.mu.Lock()
	if p.dirty && p.flushTimer == nil {
		p.flushTimer = time.AfterFunc(p.reg.cfg.FlushDebounce, p.flushNow)
	}
	p.mu.Unlock()
}

// admit renders the full-state snapshot and registers the session atomically
// with respect to broadcasts, so no update merged after the snapshot can be
// missed by the new session. Any pending eviction is cancelled. Admission to
// an evicted handle fails with errPageEvicted; the caller reopens the page.
func (p *Page) admit(s *session) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return nil, errPageEvicted
	}
	snapshot, err := wire.Encode(&wire.Message{
		Type:   wire.MessageSnapshot,
		PageID: p.id,
		Ops:    p.doc.SnapshotOps(),
	})
	if err != nil {
		return nil, err
	}
	p.sessions[s] = struct{}{}
	if p.evictTimer != nil {
		p.evictTimer.Stop()
		p.evictTimer = nil
	}
	return snapshot, nil
}

// detach removes a session. When the last session leaves, the page is flushed
// one final time and eviction is armed after the grace period, so a fast
// reconnect is served from memory.
func (p *Page) detach(s *session) {
	p.mu.Lock()
	delete(p.sessions, s)
	last := len(p.sessions) == 0
	p.mu.Unlock()

	if !last {
		return
	}

	p.flushMu.Lock()
	if err := flush(context.Background(), p.reg.store, p.id, p.doc, p.hydratedOK()); err != nil {
		p.log.Error("final flush failed", "page", p.id.String(), "error", err)
	}
	p.flushMu.Unlock()

	p.armEvict()
}

// armEvict starts the idle grace timer unless a session is attached. It is
// armed at creation, so a page whose opener never completes admission cannot
// stay resident forever, and re-armed when the last session detaches.
func (p *Page) armEvict() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead || p.evictTimer != nil || len(p.sessions) > 0 {
		return
	}
	p.evictTimer = time.AfterFunc(p.reg.cfg.EvictGrace, func() {
		p.reg.evict(p)
	})
}

