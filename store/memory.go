package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of DocumentStore and
// UserStore, used in tests and single-node development.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	users map[string]*User
	email map[string]string // email -> user id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*Document),
		users: make(map[string]*User),
		email: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document %q: %w", doc.ID, ErrAlreadyExists)
	}
	d := doc
	s.docs[doc.ID] = &d
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	d := *doc
	return &d, nil
}

func (s *MemoryStore) List(_ context.Context, authorID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Document, 0)
	for _, doc := range s.docs {
		if doc.AuthorID != authorID {
			continue
		}
		d := *doc
		d.Content = ""
		result = append(result, d)
	}
	return result, nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id, content string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	doc.Content = content
	doc.LastUpdate = at
	return nil
}

func (s *MemoryStore) SetStarred(_ context.Context, id string, starred bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	doc.Starred = starred
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %q: %w", u.ID, ErrAlreadyExists)
	}
	if _, taken := s.email[u.Email]; taken {
		return fmt.Errorf("email %q: %w", u.Email, ErrAlreadyExists)
	}
	user := u
	s.users[u.ID] = &user
	s.email[u.Email] = u.ID
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	user := *u
	return &user, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	id, ok := s.email[email]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
	}
	return s.GetUser(ctx, id)
}
