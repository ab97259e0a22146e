package service

import (
	"context"
	"sync"
	"time"

	"github.com/canvaspad/canvaspad/pkg/logger"
	"github.com/canvaspad/canvaspad/pkg/models"
	"github.com/canvaspad/canvaspad/pkg/store"
)

// Config holds the tunables of the collaboration service.
type Config struct {
	// FlushDebounce is how long a page waits after a change before writing to
	// the store, collapsing bursts of edits into one flush.
	FlushDebounce time.Duration
	// EvictGrace is how long an idle page's document is retained in memory
	// after its last session disconnects.
	EvictGrace time.Duration
}

const (
	DefaultFlushDebounce = 2 * time.Second
	DefaultEvictGrace    = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FlushDebounce <= 0 {
		c.FlushDebounce = DefaultFlushDebounce
	}
	if c.EvictGrace <= 0 {
		c.EvictGrace = DefaultEvictGrace
	}
	return c
}

// Registry owns the page ID to document handle map with its explicit
// lifecycle: pages are created on first open, hydrated from the store, and
// evicted after the idle grace period following a final flush.
type Registry struct {
	store store.Store
	log   logger.Logger
	cfg   Config

	mu    sync.Mutex
	pages map[models.PageID]*Page
}

func NewRegistry(st store.Store, log logger.Logger, cfg Config) *Registry {
	return &Registry{
		store: st,
		log:   log,
		cfg:   cfg.withDefaults(),
		pages: make(map[models.PageID]*Page),
	}
}

// Open returns the page handle for the given ID, creating and hydrating it
// when no live in-memory document exists yet. Hydration runs under a context
// the registry owns, never the opener's request context, so one client's
// disconnect cannot leave the page ready with a partial document. The
// returned page may still be hydrating; callers admit sessions only after
// Page.Ready.
func (r *Registry) Open(pageID models.PageID) *Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	if page, ok := r.pages[pageID]; ok && page.alive() {
		return page
	}
	page := newPage(pageID, r, r.log)
	r.pages[pageID] = page
	page.armEvict()
	go page.hydrateLoop()
	return page
}

// Lookup returns the in-memory page handle if one exists.
func (r *Registry) Lookup(pageID models.PageID) (*Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page, ok := r.pages[pageID]
	return page, ok
}

// evict retires an idle page and drops it from the registry. The handle is
// marked dead under its own lock first, so a handler that raced the grace
// timer fails admission and reopens a fresh page instead of attaching to a
// ghost document. The next open re-hydrates transparently.
func (r *Registry) evict(p *Page) {
	p.mu.Lock()
	if len(p.sessions) > 0 || p.dead {
		p.mu.Unlock()
		return
	}
	p.dead = true
	if p.flushTimer != nil {
		p.flushTimer.Stop()
		p.flushTimer = nil
	}
	p.mu.Unlock()

	r.mu.Lock()
	if r.pages[p.id] == p {
		delete(r.pages, p.id)
	}
	r.mu.Unlock()
	r.log.Info("evicted idle page", "page", p.id.String())
}

// Shutdown flushes every resident page. Called on graceful server shutdown.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	pages := make([]*Page, 0, len(r.pages))
	for _, p := range r.pages {
		pages = append(pages, p)
	}
	r.mu.Unlock()

	for _, p := range pages {
		p.flushMu.Lock()
		if err := flush(ctx, r.store, p.id, p.doc, p.hydratedOK()); err != nil {
			r.log.Error("shutdown flush failed", "page", p.id.String(), "error", err)
		}
		p.flushMu.Unlock()
	}
}
