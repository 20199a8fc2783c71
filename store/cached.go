package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// dirtyState tracks what needs flushing for a single document.
type dirtyState struct {
	created bool // created locally but not yet in the backing store
	gen     int  // bumped on every content write; guards against clearing fresh writes
}

// CachedStore wraps a backing DocumentStore with an in-memory cache.
// Reads and content writes are served from the cache; dirty documents
// are flushed to the backing store in the background. Metadata writes
// (star, delete) go straight through.
//
// A content write acknowledged by CachedStore is durable only after the
// next flush; callers that need synchronous durability should use the
// backing store directly.
type CachedStore struct {
	cache   *MemoryStore
	backing DocumentStore
	logger  *slog.Logger

	mu    sync.Mutex
	dirty map[string]*dirtyState

	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
}

// NewCachedStore creates a CachedStore flushing dirty documents to the
// backing store every flushInterval.
func NewCachedStore(backing DocumentStore, flushInterval time.Duration, logger *slog.Logger) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		logger:        logger,
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, doc Document) error {
	if err := cs.cache.Create(ctx, doc); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[doc.ID] = &dirtyState{created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*Document, error) {
	doc, err := cs.cache.Get(ctx, id)
	if err == nil {
		return doc, nil
	}
	// Cache miss — load from the backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

// List reads the backing store; listings tolerate slightly stale content
// because content is omitted from them anyway.
func (cs *CachedStore) List(ctx context.Context, authorID string) ([]Document, error) {
	return cs.backing.List(ctx, authorID)
}

func (cs *CachedStore) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.UpdateContent(ctx, id, content, at); err != nil {
		return err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		ds = &dirtyState{}
		cs.dirty[id] = ds
	}
	ds.gen++
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) SetStarred(ctx context.Context, id string, starred bool) error {
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.SetStarred(ctx, id, starred); err != nil {
		return err
	}
	err := cs.backing.SetStarred(ctx, id, starred)
	if errors.Is(err, ErrNotFound) {
		// Not flushed yet; the pending create carries the flag.
		return nil
	}
	return err
}

func (cs *CachedStore) Delete(ctx context.Context, id string) error {
	cs.cache.Delete(ctx, id)
	cs.mu.Lock()
	created := cs.dirty[id] != nil && cs.dirty[id].created
	delete(cs.dirty, id)
	cs.mu.Unlock()
	if created {
		// Never reached the backing store.
		return nil
	}
	return cs.backing.Delete(ctx, id)
}

func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	doc, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := cs.cache.Create(ctx, *doc); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.flush()
			return
		}
	}
}

// flush writes all dirty documents to the backing store. A failed write
// leaves the document dirty for the next cycle.
func (cs *CachedStore) flush() {
	cs.mu.Lock()
	snapshot := make(map[string]dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		snapshot[id] = *ds
	}
	cs.mu.Unlock()

	ctx := context.Background()

	for id, ds := range snapshot {
		doc, err := cs.cache.Get(ctx, id)
		if err != nil {
			// Deleted since the snapshot.
			cs.mu.Lock()
			delete(cs.dirty, id)
			cs.mu.Unlock()
			continue
		}

		if ds.created {
			err = cs.backing.Create(ctx, *doc)
			if errors.Is(err, ErrAlreadyExists) {
				err = cs.backing.UpdateContent(ctx, id, doc.Content, doc.LastUpdate)
			}
		} else {
			err = cs.backing.UpdateContent(ctx, id, doc.Content, doc.LastUpdate)
		}
		if err != nil {
			cs.logger.Error("flush failed", "doc", id, "err", err)
			continue
		}

		cs.mu.Lock()
		cur := cs.dirty[id]
		if cur != nil {
			cur.created = false
			if cur.gen == ds.gen {
				delete(cs.dirty, id)
			}
		}
		cs.mu.Unlock()
	}
}

// Close performs a final flush and waits for it to complete.
func (cs *CachedStore) Close() {
	close(cs.stop)
	<-cs.done
}
