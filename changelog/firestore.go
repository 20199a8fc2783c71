package changelog

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/coedit/edit"
)

// FirestoreLog appends operations to a "changes" subcollection under
// each document. Entries carry the server-assigned timestamp for replay
// ordering.
type FirestoreLog struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreLog(client *firestore.Client) *FirestoreLog {
	return &FirestoreLog{client: client, collection: "documents"}
}

type firestoreEntry struct {
	Type      string    `firestore:"type"`
	Position  int       `firestore:"position"`
	Data      string    `firestore:"data,omitempty"`
	Length    int       `firestore:"length,omitempty"`
	From      string    `firestore:"from"`
	Timestamp time.Time `firestore:"timestamp"`
}

func (l *FirestoreLog) Append(ctx context.Context, docID string, op edit.Operation) error {
	entry := firestoreEntry{
		Type:      string(op.Kind),
		Position:  op.Position,
		From:      op.From,
		Timestamp: op.Timestamp,
	}
	switch op.Kind {
	case edit.KindInsert:
		entry.Data = op.Data
	case edit.KindDelete:
		entry.Length = op.Length
	}
	_, err := l.client.Collection(l.collection).
		Doc(docID).
		Collection("changes").
		NewDoc().
		Create(ctx, entry)
	return err
}
