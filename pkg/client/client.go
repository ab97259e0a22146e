// Package client implements the per-page synchronization adapter: it mirrors
// the replicated canvas document into a locally observable replica, exposes
// the mutation API with optimistic local application, and keeps the replica
// eventually consistent with the collaboration service over a reconnecting
// websocket.
//
// No mutation method ever returns a fatal error. While disconnected,
// mutations apply to the local replica and the full divergent state is
// exchanged with the service on the next reconnect; merge idempotence makes
// that resync safe.
package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/logger"
	"github.com/canvaspad/canvaspad/pkg/models"
)

// Options configures a Session.
type Options struct {
	// URL is the collaboration service base URL, e.g. "ws://localhost:8080".
	URL string
	// ThrottleInterval bounds network propagation of drag/resize bursts: at
	// most one update per interval per component, plus a guaranteed trailing
	// update. Defaults to 50ms.
	ThrottleInterval time.Duration
	// ReconnectInterval is the pause between reconnection attempts.
	// Defaults to 2s.
	ReconnectInterval time.Duration
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
	Logger logger.Logger
}

const (
	DefaultThrottleInterval  = 50 * time.Millisecond
	DefaultReconnectInterval = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ThrottleInterval <= 0 {
		o.ThrottleInterval = DefaultThrottleInterval
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// AddOptions carries the optional attributes of a new component.
type AddOptions struct {
	// Text pre-seeds the embedded text sequence of a text component.
	Text string
	// ShapeData is the opaque payload of a drawing component.
	ShapeData models.JSONMap
	// HasImage marks that image bytes exist in the external store.
	HasImage bool
	// ZIndex overrides the default stacking position (current max + 1).
	ZIndex *int
}

// Session is one page's client synchronization adapter.
type Session struct {
	pageID models.PageID
	doc    *crdt.Document
	opts   Options
	log    logger.Logger

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	connSubs  map[int]func(bool)
	nextSub   int
	queue     []crdt.Op
	queueCh   chan struct{}
	closeCh   chan struct{}
	throttles map[models.ComponentID]*throttle

	// once guards the background loops so repeated Connect calls after a
	// drop never start a second reconnection loop.
	once sync.Once
}

// NewSession creates a disconnected adapter for a page. The replica is
// usable immediately; call Connect to reach the service.
func NewSession(pageID models.PageID, opts Options) *Session {
	opts = opts.withDefaults()
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Session{
		pageID:    pageID,
		doc:       crdt.NewDocument("client:" + uuid.NewString()),
		opts:      opts,
		log:       log,
		state:     StateDisconnected,
		connSubs:  make(map[int]func(bool)),
		queueCh:   make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
		throttles: make(map[models.ComponentID]*throttle),
	}
}

// PageID returns the page this session synchronizes.
func (s *Session) PageID() models.PageID { return s.pageID }

// Document exposes the local replica for observation.
func (s *Session) Document() *crdt.Document { return s.doc }

// AddComponent creates a component and returns its new unique ID. The
// component is applied locally at once and becomes visible to all current
// and future viewers of the document once propagated. Width and height are
// raised to the kind's minimum extents. Without an explicit zIndex the
// component lands on top of the current stack.
func (s *Session) AddComponent(kind models.ComponentKind, x, y, width, height float64, opts AddOptions) models.ComponentID {
	width, height = models.ClampSize(kind, width, height)

	zIndex := 0
	if opts.ZIndex != nil {
		zIndex = *opts.ZIndex
	} else if max, ok := s.doc.MaxZIndex(); ok {
		zIndex = max + 1
	}

	c := &models.Component{
		ID:        models.NewComponentID(),
		PageID:    s.pageID,
		Kind:      kind,
		X:         x,
		Y:         y,
		Width:     width,
		Height:    height,
		ZIndex:    zIndex,
		HasImage:  opts.HasImage,
		ShapeData: opts.ShapeData,
	}
	if kind == models.ComponentText {
		c.Text = opts.Text
	}

	s.enqueue(s.doc.PutComponent(c))
	return c.ID
}

// UpdatePatch is a partial component update. Position and size writes are
// throttled on the network; everything else propagates immediately. A Text
// value replaces the whole embedded sequence.
type UpdatePatch struct {
	X         *float64
	Y         *float64
	Width     *float64
	Height    *float64
	ZIndex    *int
	HasImage  *bool
	ShapeData models.JSONMap
	Text      *string
}

// UpdateComponent applies a partial update. It silently no-ops when the ID
// does not exist. The local replica changes immediately so a fast-moving UI
// never waits on the network; position/size propagation is throttled with a
// guaranteed trailing update.
func (s *Session) UpdateComponent(id models.ComponentID, patch UpdatePatch) {
	if c, ok := s.doc.Component(id); ok && (patch.Width != nil || patch.Height != nil) {
		w, h := c.Width, c.Height
		if patch.Width != nil {
			w = *patch.Width
		}
		if patch.Height != nil {
			h = *patch.Height
		}
		w, h = models.ClampSize(c.Kind, w, h)
		patch.Width, patch.Height = &w, &h
	}

	throttled := crdt.FieldPatch{X: patch.X, Y: patch.Y, Width: patch.Width, Height: patch.Height}
	immediate := crdt.FieldPatch{ZIndex: patch.ZIndex, HasImage: patch.HasImage, ShapeData: patch.ShapeData}

	if ops := s.doc.SetFields(id, throttled); len(ops) > 0 {
		s.throttleFor(id).submit(ops)
	}
	if ops := s.doc.SetFields(id, immediate); len(ops) > 0 {
		s.enqueue(ops)
	}

	if patch.Text != nil {
		s.replaceText(id, *patch.Text)
	}
}

// replaceText swaps the whole embedded sequence for the given string.
func (s *Session) replaceText(id models.ComponentID, text string) {
	if n := s.doc.TextLen(id); n > 0 {
		s.enqueue(s.doc.TextDelete(id, 0, n))
	}
	if text != "" {
		s.enqueue(s.doc.TextInsert(id, 0, text))
	}
}

// DeleteComponent removes a component from the document. Deleting an unknown
// or already deleted ID is a no-op. The component's throttle is released so a
// long-lived session does not accumulate one per component ever dragged.
func (s *Session) DeleteComponent(id models.ComponentID) {
	s.mu.Lock()
	th, ok := s.throttles[id]
	delete(s.throttles, id)
	s.mu.Unlock()
	if ok {
		th.discard()
	}
	s.enqueue(s.doc.DeleteComponent(id))
}

// ComponentText returns a handle to the component's embedded text sequence,
// or false when the component is absent or not a text component. Callers
// mutate the handle directly so concurrent multi-user edits merge at
// character level.
func (s *Session) ComponentText(id models.ComponentID) (*TextHandle, bool) {
	if _, ok := s.doc.TextContent(id); !ok {
		return nil, false
	}
	return &TextHandle{session: s, id: id}, true
}

// BringToFront restacks the component above every other one.
func (s *Session) BringToFront(id models.ComponentID) {
	max, ok := s.doc.MaxZIndex()
	if !ok {
		return
	}
	z := max + 1
	s.enqueue(s.doc.SetFields(id, crdt.FieldPatch{ZIndex: &z}))
}

// SendToBack restacks the component to zIndex 0 and renumbers every other
// component 1..N in their existing relative order, keeping the stacking
// well-formed.
func (s *Session) SendToBack(id models.ComponentID) {
	if _, ok := s.doc.Component(id); !ok {
		return
	}
	zero := 0
	s.enqueue(s.doc.SetFields(id, crdt.FieldPatch{ZIndex: &zero}))
	next := 1
	for _, c := range s.doc.Components() {
		if c.ID == id {
			continue
		}
		z := next
		next++
		s.enqueue(s.doc.SetFields(c.ID, crdt.FieldPatch{ZIndex: &z}))
	}
}

// Components returns the rendering list snapshot, ordered by zIndex.
func (s *Session) Components() []*models.Component {
	return s.doc.Components()
}

// SubscribeComponents observes structural changes of the component set.
func (s *Session) SubscribeComponents(fn func()) func() {
	return s.doc.SubscribeComponents(fn)
}

// SubscribeComponent observes scalar field changes on one component.
func (s *Session) SubscribeComponent(id models.ComponentID, fn func()) func() {
	return s.doc.SubscribeComponent(id, fn)
}

func (s *Session) throttleFor(id models.ComponentID) *throttle {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.throttles[id]
	if !ok {
		th = newThrottle(s.opts.ThrottleInterval, s.enqueue)
		s.throttles[id] = th
	}
	return th
}

// nopLogger satisfies logger.Logger for sessions created without one.
type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

var _ logger.Logger = nopLogger{}
