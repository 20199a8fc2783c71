package edit

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Operation
	}{
		{"insert", `{"type":"insert","position":3,"data":"abc"}`, NewInsert(3, "abc")},
		{"insert empty data", `{"type":"insert","position":0,"data":""}`, NewInsert(0, "")},
		{"delete", `{"type":"delete","position":1,"length":4}`, NewDelete(1, 4)},
		{"delete zero length", `{"type":"delete","position":0,"length":0}`, NewDelete(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"type":"insert"`},
		{"unknown type", `{"type":"replace","position":0,"data":"x"}`},
		{"empty type", `{"position":0,"data":"x"}`},
		{"missing position", `{"type":"insert","data":"x"}`},
		{"negative position", `{"type":"insert","position":-1,"data":"x"}`},
		{"insert missing data", `{"type":"insert","position":0}`},
		{"delete missing length", `{"type":"delete","position":0}`},
		{"negative length", `{"type":"delete","position":0,"length":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if op, err := Decode([]byte(tt.data)); err == nil {
				t.Errorf("Decode() = %+v, want error", op)
			}
		})
	}
}

// Client-supplied origin and timestamp fields must not survive decoding;
// the server assigns both.
func TestDecodeIgnoresServerFields(t *testing.T) {
	op, err := Decode([]byte(`{"type":"insert","position":0,"data":"x","from":"mallory","timestamp":"2020-01-01T00:00:00Z"}`))
	if err != nil {
		t.Fatal(err)
	}
	if op.From != "" || !op.Timestamp.IsZero() {
		t.Errorf("decoded op carries client-supplied from/timestamp: %+v", op)
	}
}

func TestEncodeBroadcast(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	op := NewInsert(2, "hi")
	op.From = "user-1"
	op.Timestamp = ts

	var got map[string]any
	if err := json.Unmarshal(EncodeBroadcast(op), &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "insert" || got["position"] != float64(2) || got["data"] != "hi" {
		t.Errorf("unexpected insert encoding: %v", got)
	}
	if got["from"] != "user-1" {
		t.Errorf("from = %v, want user-1", got["from"])
	}
	if got["timestamp"] != "2026-08-30T12:00:00Z" {
		t.Errorf("timestamp = %v", got["timestamp"])
	}
	if _, ok := got["length"]; ok {
		t.Error("insert broadcast should not carry length")
	}

	del := NewDelete(4, 3)
	del.From = "user-2"
	del.Timestamp = ts
	got = nil
	if err := json.Unmarshal(EncodeBroadcast(del), &got); err != nil {
		t.Fatal(err)
	}
	if got["type"] != "delete" || got["position"] != float64(4) || got["length"] != float64(3) {
		t.Errorf("unexpected delete encoding: %v", got)
	}
	if _, ok := got["data"]; ok {
		t.Error("delete broadcast should not carry data")
	}
}

// A broadcast must decode back to the same operation, so clients can use
// one parser for both their own sends and peer broadcasts.
func TestBroadcastDecodes(t *testing.T) {
	op := NewInsert(0, "x")
	op.From = "u1"
	op.Timestamp = time.Now()
	got, err := Decode(EncodeBroadcast(op))
	if err != nil {
		t.Fatalf("Decode(EncodeBroadcast()): %v", err)
	}
	if got.Kind != KindInsert || got.Position != 0 || got.Data != "x" {
		t.Errorf("round trip = %+v", got)
	}
}
