package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alimasry/coedit/auth"
	"github.com/alimasry/coedit/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP surface: the editing gateway plus the document and
// account JSON API.
type Server struct {
	registry    *Registry
	coordinator *Coordinator
	docs        store.DocumentStore
	users       store.UserStore
	auth        *auth.Service
	logger      *slog.Logger
}

func NewServer(reg *Registry, coord *Coordinator, docs store.DocumentStore, users store.UserStore, authSvc *auth.Service, logger *slog.Logger) *Server {
	return &Server{
		registry:    reg,
		coordinator: coord,
		docs:        docs,
		users:       users,
		auth:        authSvc,
		logger:      logger,
	}
}

// Handler creates the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("POST /api/docs", s.requireAuth(s.handleCreateDoc))
	mux.HandleFunc("GET /api/docs", s.requireAuth(s.handleListDocs))
	mux.HandleFunc("GET /api/docs/{id}", s.requireAuth(s.handleGetDoc))
	mux.HandleFunc("POST /api/docs/{id}/star", s.requireAuth(s.handleStarDoc))
	mux.HandleFunc("DELETE /api/docs/{id}", s.requireAuth(s.handleDeleteDoc))

	mux.HandleFunc("GET /edit/{id}", s.handleEdit)

	return mux
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// requireAuth resolves the caller's identity from the session cookie
// before invoking h.
func (s *Server) requireAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		h(w, r, userID)
	}
}

func (s *Server) identify(r *http.Request) (string, error) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil {
		return "", auth.ErrUnauthorized
	}
	return s.auth.Resolve(cookie.Value)
}

// handleEdit upgrades an authenticated request into a live editing
// session. Identity and document resolution happen before the upgrade:
// a failure here never creates a registry entry.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identify(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	docID := r.PathValue("id")
	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("load document failed", "doc", docID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "doc", docID, "user", userID, "err", err)
		return
	}

	sess := newSession(userID, doc, conn, s.registry, s.coordinator, s.logger)

	// Attach re-reads the content under the document's edit lock, so
	// the snapshot and the broadcasts the session will receive line up
	// exactly; the Get above only gates the upgrade.
	if err := s.coordinator.Attach(r.Context(), sess); err != nil {
		s.logger.Warn("session attach failed", "doc", docID, "user", userID, "err", err)
		conn.Close()
		return
	}
	s.registry.Broadcast(docID, sess.ID, presenceMessage("join", sess).encode())

	s.logger.Info("session opened", "session", sess.ID, "user", userID, "doc", docID)
	go sess.writePump()
	go sess.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
