package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alimasry/coedit/store"
)

type docResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind,omitempty"`
	Content    *string   `json:"content,omitempty"`
	Starred    bool      `json:"starred"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func toDocResponse(d store.Document, withContent bool) docResponse {
	resp := docResponse{
		ID:         d.ID,
		AuthorID:   d.AuthorID,
		AuthorName: d.AuthorName,
		Title:      d.Title,
		Kind:       d.Kind,
		Starred:    d.Starred,
		LastUpdate: d.LastUpdate,
	}
	if withContent {
		resp.Content = &d.Content
	}
	return resp
}

type createDocRequest struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

func (s *Server) handleCreateDoc(w http.ResponseWriter, r *http.Request, userID string) {
	var req createDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Kind == "" {
		req.Kind = "blank"
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	now := time.Now().UTC()
	doc := store.Document{
		ID:         uuid.NewString(),
		AuthorID:   user.ID,
		AuthorName: user.Name,
		Title:      req.Title,
		Kind:       req.Kind,
		CreatedAt:  now,
		LastUpdate: now,
	}
	if err := s.docs.Create(r.Context(), doc); err != nil {
		s.logger.Error("create document failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create document")
		return
	}

	writeJSON(w, http.StatusCreated, toDocResponse(doc, false))
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request, userID string) {
	docs, err := s.docs.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("list documents failed", "user", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	result := make([]docResponse, 0, len(docs))
	for _, d := range docs {
		result = append(result, toDocResponse(d, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"docs": result})
}

// handleGetDoc serves the full document, content included. This is also
// the re-fetch path a client uses after a reconnect, since operation
// continuity is never assumed across connections.
func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.docs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, toDocResponse(*doc, true))
}

type starRequest struct {
	Starred bool `json:"starred"`
}

func (s *Server) handleStarDoc(w http.ResponseWriter, r *http.Request, userID string) {
	var req starRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.docs.SetStarred(r.Context(), r.PathValue("id"), req.Starred); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("star document failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to update document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"starred": req.Starred})
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request, userID string) {
	docID := r.PathValue("id")
	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	if doc.AuthorID != userID {
		writeError(w, http.StatusForbidden, "only the author can delete a document")
		return
	}
	if err := s.docs.Delete(r.Context(), docID); err != nil {
		s.logger.Error("delete document failed", "doc", docID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
