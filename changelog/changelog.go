// Package changelog records applied edit operations durably, append
// only, for audit and replay. The live editing path writes to it
// best-effort and never reads it back.
package changelog

import (
	"context"

	"github.com/alimasry/coedit/edit"
)

// Log is an append-only record of applied operations.
// Implementations: MemoryLog, RedisLog, FirestoreLog.
type Log interface {
	Append(ctx context.Context, docID string, op edit.Operation) error
}
