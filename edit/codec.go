package edit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire encodings:
//
//	client -> server:  {"type":"insert","position":3,"data":"x"}
//	                   {"type":"delete","position":3,"length":2}
//	server broadcast:  same object plus "from" and an RFC 3339 "timestamp"
type wireOperation struct {
	Type      string  `json:"type"`
	Position  *int    `json:"position"`
	Data      *string `json:"data,omitempty"`
	Length    *int    `json:"length,omitempty"`
	From      string  `json:"from,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Decode parses a client-sent operation. Matching on the type tag is
// exhaustive: unknown types, missing fields, and negative offsets are
// all rejected rather than defaulted.
func Decode(data []byte) (Operation, error) {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return Operation{}, fmt.Errorf("malformed operation: %w", err)
	}
	if w.Position == nil {
		return Operation{}, fmt.Errorf("operation missing %q", "position")
	}
	if *w.Position < 0 {
		return Operation{}, fmt.Errorf("negative position %d", *w.Position)
	}
	switch w.Type {
	case string(KindInsert):
		if w.Data == nil {
			return Operation{}, fmt.Errorf("insert missing %q", "data")
		}
		return NewInsert(*w.Position, *w.Data), nil
	case string(KindDelete):
		if w.Length == nil {
			return Operation{}, fmt.Errorf("delete missing %q", "length")
		}
		if *w.Length < 0 {
			return Operation{}, fmt.Errorf("negative length %d", *w.Length)
		}
		return NewDelete(*w.Position, *w.Length), nil
	}
	return Operation{}, fmt.Errorf("unknown operation type %q", w.Type)
}

// EncodeBroadcast serializes a finalized operation for delivery to
// peers, including the server-assigned origin and timestamp.
func EncodeBroadcast(op Operation) []byte {
	w := wireOperation{
		Type:      string(op.Kind),
		Position:  &op.Position,
		From:      op.From,
		Timestamp: op.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	switch op.Kind {
	case KindInsert:
		w.Data = &op.Data
	case KindDelete:
		w.Length = &op.Length
	}
	b, _ := json.Marshal(w)
	return b
}
