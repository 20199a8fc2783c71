package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alimasry/coedit/edit"
	"github.com/alimasry/coedit/store"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxMsgSize    = 64 * 1024
	sendQueueSize = 256
)

// Session is one live WebSocket connection binding one authenticated
// user to one open document. It is owned by the gateway that created it
// and by its Registry entry; nothing else mutates it.
type Session struct {
	ID         string
	UserID     string
	DocumentID string
	IsAuthor   bool

	conn        *websocket.Conn
	send        chan []byte
	closed      atomic.Bool
	registry    *Registry
	coordinator *Coordinator
	logger      *slog.Logger
}

func newSession(userID string, doc *store.Document, conn *websocket.Conn, reg *Registry, coord *Coordinator, logger *slog.Logger) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DocumentID:  doc.ID,
		IsAuthor:    userID == doc.AuthorID,
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		registry:    reg,
		coordinator: coord,
		logger:      logger,
	}
}

// enqueue queues a message for delivery to this session's peer without
// blocking; if the queue is full the message is dropped. Only readPump
// (before close) and Registry.Broadcast (under the registry lock) send
// on the queue.
func (s *Session) enqueue(payload []byte) {
	select {
	case s.send <- payload:
	default:
		s.logger.Warn("outbound queue full, dropping message",
			"session", s.ID, "doc", s.DocumentID)
	}
}

// readPump reads operations from the peer and dispatches them to the
// coordinator until the connection dies or the peer sends a close
// frame. It runs as the session's inbound goroutine; reads are
// sequential, which is what gives a single session's operations their
// submission order.
func (s *Session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMsgSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("session read error", "session", s.ID, "user", s.UserID, "err", err)
			}
			return
		}

		op, err := edit.Decode(data)
		if err != nil {
			s.enqueue(serverMessage{
				Type:  msgError,
				Code:  string(CodeInvalidOperation),
				Error: err.Error(),
			}.encode())
			continue
		}

		ack, err := s.coordinator.Submit(context.Background(), s.DocumentID, s, op)
		if err != nil {
			var ee *EditError
			if !errors.As(err, &ee) {
				ee = &EditError{Code: CodePersistenceFailed, Err: err}
			}
			s.enqueue(serverMessage{
				Type:      msgError,
				Code:      string(ee.Code),
				Error:     ee.Err.Error(),
				Retryable: ee.Retryable(),
			}.encode())
			continue
		}

		s.enqueue(serverMessage{
			Type:      msgAck,
			Timestamp: ack.Timestamp.Format(time.RFC3339Nano),
		}.encode())
	}
}

// writePump delivers queued messages to the peer and keeps the
// connection alive with pings. It exits when the queue is closed by
// Registry.Leave (after draining what was already queued) or when a
// write fails.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close tears the session down exactly once: removed from the registry
// (no peer or coordinator can observe it half-removed), peers notified,
// transport closed.
func (s *Session) close() {
	if s.closed.Swap(true) {
		return
	}
	s.registry.Leave(s.DocumentID, s.ID)
	s.registry.Broadcast(s.DocumentID, s.ID, presenceMessage("leave", s).encode())
	s.conn.Close()
	s.logger.Info("session closed", "session", s.ID, "user", s.UserID, "doc", s.DocumentID)
}
