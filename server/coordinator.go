package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alimasry/coedit/changelog"
	"github.com/alimasry/coedit/edit"
	"github.com/alimasry/coedit/store"
)

// EditCode classifies a rejected submit.
type EditCode string

const (
	CodeDocumentNotFound  EditCode = "document_not_found"
	CodeInvalidOperation  EditCode = "invalid_operation"
	CodePersistenceFailed EditCode = "persistence_failed"
)

// EditError is a submit failure reported to the originating session
// only; it is never broadcast.
type EditError struct {
	Code EditCode
	Err  error
}

func (e *EditError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }
func (e *EditError) Unwrap() error { return e.Err }

// Retryable reports whether the client may resubmit the same operation.
func (e *EditError) Retryable() bool { return e.Code == CodePersistenceFailed }

// Ack confirms a durably applied operation.
type Ack struct {
	Timestamp time.Time
}

// Coordinator is the only path allowed to mutate document content or
// append to the change log.
type Coordinator struct {
	store    store.DocumentStore
	log      changelog.Log
	registry *Registry
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCoordinator(st store.DocumentStore, cl changelog.Log, reg *Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    st,
		log:      cl,
		registry: reg,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// docLock returns the mutex serializing edits to one document. Locks
// are never removed; the map is bounded by the number of documents
// edited over the process lifetime.
func (c *Coordinator) docLock(docID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[docID] = l
	}
	return l
}

// Submit runs one operation through the edit pipeline:
// load -> validate/apply -> persist -> append to change log -> broadcast.
//
// The load-apply-persist sequence holds the document's lock, so two
// operations can never both validate against the same stale content;
// operations on different documents proceed in parallel. Content
// persistence is on the critical path: a store failure means no
// broadcast, because peers must never see an operation the store did
// not accept. The change-log append is best-effort audit only; its
// failure is logged and neither rolls back the edit nor blocks the
// broadcast.
func (c *Coordinator) Submit(ctx context.Context, docID string, origin *Session, op edit.Operation) (Ack, error) {
	now := time.Now().UTC()
	op.From = origin.UserID
	op.Timestamp = now

	lock := c.docLock(docID)
	lock.Lock()

	doc, err := c.store.Get(ctx, docID)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return Ack{}, &EditError{Code: CodeDocumentNotFound, Err: err}
		}
		return Ack{}, &EditError{Code: CodePersistenceFailed, Err: err}
	}

	content, err := edit.Apply(doc.Content, op)
	if err != nil {
		lock.Unlock()
		return Ack{}, &EditError{Code: CodeInvalidOperation, Err: err}
	}

	if err := c.store.UpdateContent(ctx, docID, content, now); err != nil {
		lock.Unlock()
		return Ack{}, &EditError{Code: CodePersistenceFailed, Err: err}
	}
	// Capture the recipient set before releasing the lock: a session
	// attaching later reads a snapshot that already contains this
	// operation and must not receive it a second time.
	recipients := c.registry.Members(docID, origin.ID)
	lock.Unlock()

	// The edit is durable from here on. Log append and broadcast must
	// complete even if the origin disconnects right after submitting.
	ctx = context.WithoutCancel(ctx)
	if err := c.log.Append(ctx, docID, op); err != nil {
		c.logger.Error("change log append failed", "doc", docID, "from", op.From, "err", err)
	}
	c.registry.Deliver(docID, recipients, edit.EncodeBroadcast(op))

	return Ack{Timestamp: now}, nil
}

// Attach hands a new session the document snapshot and registers it for
// broadcasts. The content read, snapshot enqueue, and registry join all
// happen under the document's lock: an operation persisted before the
// read is in the snapshot and its delivery excludes this session, while
// one persisted after the join reaches it as a broadcast. A session
// therefore never misses an operation around its own join, and never
// receives one twice. The snapshot is always the first frame queued.
func (c *Coordinator) Attach(ctx context.Context, s *Session) error {
	lock := c.docLock(s.DocumentID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := c.store.Get(ctx, s.DocumentID)
	if err != nil {
		return err
	}
	s.enqueue(serverMessage{
		Type:    msgDoc,
		DocID:   doc.ID,
		Title:   doc.Title,
		Content: &doc.Content,
		Author:  s.IsAuthor,
	}.encode())
	c.registry.Join(s.DocumentID, s)
	return nil
}
