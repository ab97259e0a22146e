package client

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/wire"
)

// State is the connection lifecycle state of a Session.
type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "InvalidState"
	}
}

func (s State) validateTransitionTo(newState State) error {
	switch s {
	case StateDisconnected:
		switch newState {
		case StateConnecting, StateDisconnected, StateClosing:
			return nil
		}
	case StateConnecting:
		switch newState {
		case StateConnected, StateDisconnected, StateClosing:
			return nil
		}
	case StateConnected:
		// Connected to Connecting happens when the connection is lost after it
		// was established.
		switch newState {
		case StateConnecting, StateDisconnected, StateClosing:
			return nil
		}
	case StateClosing:
		if newState == StateClosed {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, newState)
}

// transitionTo moves the session to newState and reports whether the session
// just gained or lost synchronization, so the caller can notify observers
// outside the lock.
func (s *Session) transitionTo(newState State) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.validateTransitionTo(newState); err != nil {
		return false, err
	}

	was := s.state == StateConnected
	s.state = newState
	s.log.Debug("session state transitioned", "page", s.pageID.String(), "new_state", newState)

	return was != (newState == StateConnected), nil
}

// Connect establishes the websocket connection and starts the reconnection
// loop.
//
// It returns an error if the initial connection fails; the caller decides
// whether to retry, since an initial failure is often misconfiguration that
// no amount of retrying fixes. Once the initial connection succeeds, lost
// connections are re-established automatically and the session resynchronizes
// by exchanging full state with the service.
//
// Connect returning nil does not yet mean Connected: the session reports
// connected only once the service's snapshot has been merged, so "connected"
// always implies "state loaded".
func (s *Session) Connect(ctx context.Context) error {
	if _, err := s.transitionTo(StateConnecting); err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		if _, stateErr := s.transitionTo(StateDisconnected); stateErr != nil {
			s.log.Error("BUG: session failed to transition to disconnected state", "error", stateErr)
		}
		return fmt.Errorf("client session failed to connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.once.Do(func() {
		go s.writeLoop()
		go s.reconnectLoop()
	})
	go s.readLoop(conn)

	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	url := s.opts.URL + "/ws/" + s.pageID.String()
	conn, _, err := s.opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// Connected reports whether the session holds a live, snapshot-initialized
// connection to the service.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// IsClosed reports whether the session has been closed. A closed session
// cannot be reconnected.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

// OnConnectionChange registers an observer for synchronization state changes
// and returns its unsubscribe function. The observer fires with true once the
// service snapshot has been merged, and with false when the connection drops.
func (s *Session) OnConnectionChange(fn func(connected bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.connSubs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.connSubs, id)
	}
}

func (s *Session) notifyConnChange(connected bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.connSubs))
	for _, fn := range s.connSubs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

// Close stops the reconnection loop and closes the connection. Pending
// throttled updates are flushed into the outbound queue first, though frames
// queued at close time may not reach the service; they are covered by the
// state exchange of a future session.
func (s *Session) Close() error {
	if _, err := s.transitionTo(StateClosing); err != nil {
		return fmt.Errorf("session is already closing or closed: %w", err)
	}

	s.mu.Lock()
	ths := make([]*throttle, 0, len(s.throttles))
	for _, th := range s.throttles {
		ths = append(ths, th)
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	// Stopping a throttle flushes its trailing batch through enqueue, which
	// takes the session lock, so it must happen outside it.
	for _, th := range ths {
		th.stop()
	}

	close(s.closeCh)
	if conn != nil {
		conn.Close()
	}

	if changed, err := s.transitionTo(StateClosed); err != nil {
		s.log.Error("BUG: session failed to transition to closed state", "error", err)
	} else if changed {
		s.notifyConnChange(false)
	}
	return nil
}

// enqueue appends an op batch to the outbound queue and wakes the writer.
// The queue only drains while connected; while disconnected, local state
// accumulates and is carried by the full-state exchange on reconnect.
func (s *Session) enqueue(ops []crdt.Op) {
	if len(ops) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, ops...)
	s.mu.Unlock()
	select {
	case s.queueCh <- struct{}{}:
	default:
	}
}

// writeLoop drains the outbound queue onto the live connection.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.closeCh:
			return
		case <-s.queueCh:
		}
		s.flushQueue()
	}
}

// flushQueue sends the queued ops as one update frame. The queue is left
// intact while disconnected and restored in front on a failed write, so no
// acknowledged-by-nobody op is dropped.
func (s *Session) flushQueue() {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil || len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	ops := s.queue
	s.queue = nil
	conn := s.conn
	s.mu.Unlock()

	data, err := wire.Encode(&wire.Message{Type: wire.MessageUpdate, PageID: s.pageID, Ops: ops})
	if err != nil {
		s.log.Error("failed to encode update", "page", s.pageID.String(), "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.mu.Lock()
		s.queue = append(ops, s.queue...)
		s.mu.Unlock()
		conn.Close()
	}
}

// readLoop consumes frames from one connection until it drops.
//
// The first snapshot frame completes the handshake: the service's state is
// merged into the replica, the replica's own full state is queued back as an
// update so edits made while offline reach the service, and only then does
// the session report connected. Merge idempotence makes the exchange safe to
// repeat on every reconnect.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.handleDrop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			s.log.Debug("ignoring malformed frame", "page", s.pageID.String(), "error", err)
			continue
		}
		if msg.PageID != s.pageID {
			continue
		}
		switch msg.Type {
		case wire.MessageSnapshot:
			s.doc.Apply(msg.Ops)

			// Drop individually queued ops: the snapshot of our own replica
			// below subsumes them.
			resync := s.doc.SnapshotOps()
			s.mu.Lock()
			s.queue = append(s.queue[:0], resync...)
			s.mu.Unlock()

			changed, err := s.transitionTo(StateConnected)
			if err != nil {
				// Closed concurrently; the drop handler cleans up.
				return
			}
			select {
			case s.queueCh <- struct{}{}:
			default:
			}
			if changed {
				s.notifyConnChange(true)
			}
		case wire.MessageUpdate:
			s.doc.Apply(msg.Ops)
		}
	}
}

// handleDrop transitions a lost connection back to disconnected, unless the
// session is closing or the connection was already replaced, and lets the
// reconnection loop take over.
func (s *Session) handleDrop(conn *websocket.Conn) {
	conn.Close()
	s.mu.Lock()
	stale := s.conn != nil && s.conn != conn
	if s.conn == conn {
		s.conn = nil
	}
	closing := s.state == StateClosing || s.state == StateClosed
	s.mu.Unlock()
	if closing || stale {
		return
	}
	if changed, err := s.transitionTo(StateDisconnected); err == nil && changed {
		s.notifyConnChange(false)
	}
}

// reconnectLoop re-establishes dropped connections at the configured
// interval until the session is closed.
func (s *Session) reconnectLoop() {
	for {
		select {
		case <-s.closeCh:
			return
		case <-time.After(s.opts.ReconnectInterval):
		}

		s.mu.Lock()
		disconnected := s.state == StateDisconnected
		s.mu.Unlock()
		if !disconnected {
			continue
		}

		s.log.Info("session is attempting to reconnect", "page", s.pageID.String())
		if err := s.Connect(context.Background()); err != nil {
			s.log.Warn("session failed to reconnect", "page", s.pageID.String(), "error", err)
		}
	}
}
