package changelog

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alimasry/coedit/edit"
)

const streamPrefix = "changelog:"

// RedisLog appends operations to a per-document Redis stream
// ("changelog:<docID>"). Stream entry IDs give the log its total order.
type RedisLog struct {
	client redis.UniversalClient
}

func NewRedisLog(client redis.UniversalClient) *RedisLog {
	return &RedisLog{client: client}
}

func (l *RedisLog) Append(ctx context.Context, docID string, op edit.Operation) error {
	values := map[string]interface{}{
		"type":      string(op.Kind),
		"position":  op.Position,
		"from":      op.From,
		"timestamp": op.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	switch op.Kind {
	case edit.KindInsert:
		values["data"] = op.Data
	case edit.KindDelete:
		values["length"] = op.Length
	}
	return l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamPrefix + docID,
		Values: values,
	}).Err()
}
