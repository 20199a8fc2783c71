// Package store provides durable persistence for documents and users.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Document is the authoritative record for one text document. Content is
// a single text body; it is only ever mutated through the edit pipeline.
type Document struct {
	ID         string
	AuthorID   string
	AuthorName string
	Title      string
	Kind       string // e.g. "blank", "essay", "meeting-docs"
	Content    string
	Starred    bool
	CreatedAt  time.Time
	LastUpdate time.Time
}

// User is a registered account. PasswordHash is a bcrypt hash; the
// plaintext password never reaches the store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// DocumentStore abstracts document persistence.
// Implementations: MemoryStore, FirestoreStore, CachedStore.
type DocumentStore interface {
	Create(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (*Document, error)
	// List returns the documents owned by authorID, content omitted.
	List(ctx context.Context, authorID string) ([]Document, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	SetStarred(ctx context.Context, id string, starred bool) error
	// Delete removes a document; deleting a missing document reports
	// ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// UserStore abstracts user-account persistence. Emails are unique.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}
