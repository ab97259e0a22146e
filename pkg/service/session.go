package service

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/canvaspad/canvaspad/pkg/logger"
	"github.com/canvaspad/canvaspad/pkg/models"
	"github.com/canvaspad/canvaspad/pkg/wire"
)

const sendBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The collaboration endpoint does not enforce origins; access control is
	// out of scope and handled in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one client's live connection to one page's document.
type session struct {
	page *Page
	conn *websocket.Conn
	send chan []byte
	log  logger.Logger
	once sync.Once
}

// enqueue hands a frame to the session's writer. A session that cannot keep
// up with the broadcast stream is dropped; it will resync from a snapshot on
// reconnect, which is cheaper than letting one slow consumer stall the page.
// Callers hold the page lock, so enqueue never races the channel close in
// readPump's teardown.
func (s *session) enqueue(data []byte) {
	select {
	case s.send <- data:
	default:
		s.log.Warn("dropping slow session", "page", s.page.id.String())
		s.dropConn()
	}
}

// dropConn tears the socket down, which unblocks readPump and routes all
// cleanup through its deferred teardown.
func (s *session) dropConn() {
	s.once.Do(func() {
		s.conn.Close()
	})
}

// readPump consumes frames from the client until the connection drops.
// Malformed frames and updates for the wrong page are ignored, not errors.
// Teardown order matters: detach first so no further broadcast can target
// this session, then close the send channel to let writePump drain and exit.
func (s *session) readPump() {
	defer func() {
		s.page.detach(s)
		close(s.send)
		s.dropConn()
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			s.log.Debug("ignoring malformed frame", "page", s.page.id.String(), "error", err)
			continue
		}
		if msg.Type != wire.MessageUpdate || msg.PageID != s.page.id {
			continue
		}
		s.page.merge(s, msg.Ops)
	}
}

// writePump drains the send channel onto the socket.
func (s *session) writePump() {
	defer s.conn.Close()
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return
		}
	}
}

// Handler returns the HTTP handler for the collaboration websocket endpoint,
// mounted at a route with a {pageId} variable. A session is admitted only
// after its page finished hydrating, and the first frame it receives is the
// full document snapshot.
func Handler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageID, err := models.ParsePageID(mux.Vars(r)["pageId"])
		if err != nil {
			http.Error(w, "invalid page id", http.StatusBadRequest)
			return
		}

		page := reg.Open(pageID)
		if err := page.Ready(r.Context()); err != nil {
			http.Error(w, "page open cancelled", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			reg.log.Warn("websocket upgrade failed", "page", pageID.String(), "error", err)
			return
		}

		s := &session{
			conn: conn,
			send: make(chan []byte, sendBuffer),
			log:  reg.log,
		}

		// The snapshot goes out before any broadcast can reach this session,
		// so the client's "connected" state means "state loaded". An eviction
		// that fired between open and admit retires the handle; reopen and
		// admit against the fresh page.
		var snapshot []byte
		for {
			s.page = page
			snapshot, err = page.admit(s)
			if err == nil {
				break
			}
			if !errors.Is(err, errPageEvicted) {
				reg.log.Error("failed to encode snapshot", "page", pageID.String(), "error", err)
				conn.Close()
				return
			}
			page = reg.Open(pageID)
			if err := page.Ready(r.Context()); err != nil {
				conn.Close()
				return
			}
		}
		s.send <- snapshot

		go s.writePump()
		s.readPump()
	}
}
