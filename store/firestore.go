package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore
// and UserStore. Documents live in the "documents" collection, users in
// "users".
type FirestoreStore struct {
	client *firestore.Client
	docs   string
	users  string
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		docs:   "documents",
		users:  "users",
	}
}

type firestoreDoc struct {
	AuthorID   string    `firestore:"authorId"`
	AuthorName string    `firestore:"authorName"`
	Title      string    `firestore:"title"`
	Kind       string    `firestore:"kind"`
	Content    string    `firestore:"content"`
	Starred    bool      `firestore:"starred"`
	CreatedAt  time.Time `firestore:"createdAt"`
	LastUpdate time.Time `firestore:"lastUpdate"`
}

type firestoreUser struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.docs).Doc(id)
}

func (s *FirestoreStore) Create(ctx context.Context, doc Document) error {
	_, err := s.docRef(doc.ID).Create(ctx, firestoreDoc{
		AuthorID:   doc.AuthorID,
		AuthorName: doc.AuthorName,
		Title:      doc.Title,
		Kind:       doc.Kind,
		Content:    doc.Content,
		Starred:    doc.Starred,
		CreatedAt:  doc.CreatedAt,
		LastUpdate: doc.LastUpdate,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q: %w", doc.ID, ErrAlreadyExists)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*Document, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocument(id, snap)
}

func snapshotToDocument(id string, snap *firestore.DocumentSnapshot) (*Document, error) {
	var fd firestoreDoc
	if err := snap.DataTo(&fd); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", id, err)
	}
	return &Document{
		ID:         id,
		AuthorID:   fd.AuthorID,
		AuthorName: fd.AuthorName,
		Title:      fd.Title,
		Kind:       fd.Kind,
		Content:    fd.Content,
		Starred:    fd.Starred,
		CreatedAt:  fd.CreatedAt,
		LastUpdate: fd.LastUpdate,
	}, nil
}

func (s *FirestoreStore) List(ctx context.Context, authorID string) ([]Document, error) {
	iter := s.client.Collection(s.docs).
		Where("authorId", "==", authorID).
		Documents(ctx)
	defer iter.Stop()

	var result []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		doc, err := snapshotToDocument(snap.Ref.ID, snap)
		if err != nil {
			return nil, err
		}
		doc.Content = ""
		result = append(result, *doc)
	}
	return result, nil
}

func (s *FirestoreStore) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "content", Value: content},
		{Path: "lastUpdate", Value: at},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return err
}

func (s *FirestoreStore) SetStarred(ctx context.Context, id string, starred bool) error {
	_, err := s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "starred", Value: starred},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return err
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	// Without the precondition Firestore treats deleting a missing
	// document as success.
	_, err := s.docRef(id).Delete(ctx, firestore.Exists)
	if c := status.Code(err); c == codes.NotFound || c == codes.FailedPrecondition {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return err
}

func (s *FirestoreStore) CreateUser(ctx context.Context, u User) error {
	// Enforce email uniqueness before the write; Firestore has no unique
	// indexes on fields.
	if _, err := s.GetUserByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("email %q: %w", u.Email, ErrAlreadyExists)
	}
	_, err := s.client.Collection(s.users).Doc(u.ID).Create(ctx, firestoreUser{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("user %q: %w", u.ID, ErrAlreadyExists)
	}
	return err
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*User, error) {
	snap, err := s.client.Collection(s.users).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToUser(id, snap)
}

func (s *FirestoreStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	iter := s.client.Collection(s.users).
		Where("email", "==", email).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToUser(snap.Ref.ID, snap)
}

func snapshotToUser(id string, snap *firestore.DocumentSnapshot) (*User, error) {
	var fu firestoreUser
	if err := snap.DataTo(&fu); err != nil {
		return nil, fmt.Errorf("decode user %q: %w", id, err)
	}
	return &User{
		ID:           id,
		Name:         fu.Name,
		Email:        fu.Email,
		PasswordHash: fu.PasswordHash,
		CreatedAt:    fu.CreatedAt,
	}, nil
}
