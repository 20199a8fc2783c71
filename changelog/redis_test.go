package changelog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/alimasry/coedit/edit"
)

func testRedisLog(t *testing.T) (*RedisLog, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLog(client), client
}

func TestRedisLog_Append(t *testing.T) {
	l, client := testRedisLog(t)
	ctx := context.Background()

	op := edit.NewInsert(3, "abc")
	op.From = "user-1"
	op.Timestamp = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := l.Append(ctx, "doc1", op); err != nil {
		t.Fatal(err)
	}

	entries, err := client.XRange(ctx, "changelog:doc1", "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	v := entries[0].Values
	if v["type"] != "insert" || v["position"] != "3" || v["data"] != "abc" {
		t.Errorf("unexpected entry values: %v", v)
	}
	if v["from"] != "user-1" {
		t.Errorf("from = %v, want user-1", v["from"])
	}
	if v["timestamp"] != "2026-08-30T12:00:00Z" {
		t.Errorf("timestamp = %v", v["timestamp"])
	}
}

func TestRedisLog_AppendOrder(t *testing.T) {
	l, client := testRedisLog(t)
	ctx := context.Background()

	if err := l.Append(ctx, "doc1", edit.NewInsert(0, "a")); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, "doc1", edit.NewDelete(0, 1)); err != nil {
		t.Fatal(err)
	}
	// Streams are per document.
	if err := l.Append(ctx, "doc2", edit.NewInsert(0, "b")); err != nil {
		t.Fatal(err)
	}

	entries, err := client.XRange(ctx, "changelog:doc1", "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Values["type"] != "insert" || entries[1].Values["type"] != "delete" {
		t.Errorf("entries out of order: %v", entries)
	}
	if entries[1].Values["length"] != "1" {
		t.Errorf("delete length = %v, want 1", entries[1].Values["length"])
	}
}

func TestMemoryLog_Append(t *testing.T) {
	l := NewMemoryLog()
	ctx := context.Background()

	l.Append(ctx, "doc1", edit.NewInsert(0, "x"))
	l.Append(ctx, "doc1", edit.NewDelete(0, 1))

	ops := l.Entries("doc1")
	if len(ops) != 2 {
		t.Fatalf("got %d ops, want 2", len(ops))
	}
	if ops[0].Kind != edit.KindInsert || ops[1].Kind != edit.KindDelete {
		t.Errorf("unexpected ops: %+v", ops)
	}
	if got := l.Entries("other"); len(got) != 0 {
		t.Errorf("unrelated doc has %d ops", len(got))
	}
}
