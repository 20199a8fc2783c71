package server

import (
	"log/slog"
	"slices"
	"sync"
)

// Registry is the process-wide directory of live sessions grouped by
// document, used for broadcast fan-out. It is constructed once at
// startup and passed to every component that needs it.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string][]*Session
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		sessions: make(map[string][]*Session),
	}
}

// Join registers a session under its document. A session must be joined
// before its read loop starts, so no broadcast can miss it once it is
// allowed to submit.
func (r *Registry) Join(docID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[docID] = append(r.sessions[docID], s)
}

// Leave removes a session and closes its outbound queue; already-queued
// messages still drain to the peer. Leave is idempotent: teardown can
// race with natural completion, so a second call or a call for a
// never-joined session is a no-op.
func (r *Registry) Leave(docID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.sessions[docID]
	for i, s := range list {
		if s.ID != sessionID {
			continue
		}
		r.sessions[docID] = append(list[:i:i], list[i+1:]...)
		close(s.send)
		break
	}
	if len(r.sessions[docID]) == 0 {
		delete(r.sessions, docID)
	}
}

// Broadcast delivers payload to every session on the document except
// excludeSessionID. Delivery is fire-and-forget per recipient: a slow
// peer's full queue drops the message for that peer only.
//
// Sends happen under the read lock so Leave can never close a queue
// mid-send.
func (r *Registry) Broadcast(docID, excludeSessionID string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions[docID] {
		if s.ID == excludeSessionID {
			continue
		}
		select {
		case s.send <- payload:
		default:
			r.logger.Warn("outbound queue full, dropping message",
				"doc", docID, "session", s.ID, "user", s.UserID)
		}
	}
}

// Members returns the ids of the sessions currently on a document,
// excluding one. A caller that must pin the recipient set to a point in
// time captures it with Members and sends later with Deliver.
func (r *Registry) Members(docID, excludeSessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions[docID]))
	for _, s := range r.sessions[docID] {
		if s.ID != excludeSessionID {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Deliver sends payload to the listed sessions, skipping any that left
// after the list was captured. Like Broadcast, sends are non-blocking
// and happen under the read lock.
func (r *Registry) Deliver(docID string, sessionIDs []string, payload []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions[docID] {
		if !slices.Contains(sessionIDs, s.ID) {
			continue
		}
		select {
		case s.send <- payload:
		default:
			r.logger.Warn("outbound queue full, dropping message",
				"doc", docID, "session", s.ID, "user", s.UserID)
		}
	}
}

// Count returns the number of live sessions on a document.
func (r *Registry) Count(docID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[docID])
}
