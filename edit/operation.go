// Package edit defines the edit-operation model and its application to
// document content.
//
// All offsets are measured in Unicode code points, not bytes. The wire
// protocol, validation, and application all share this unit; clients
// addressing multi-byte text by byte offset will be rejected or produce
// different content than they expect, never corrupted indexing.
package edit

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Kind discriminates the operation union.
type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

// Operation is one atomic edit instruction. It is an immutable value:
// once dispatched it is copied to the change log and to every recipient,
// never mutated.
//
// From and Timestamp are assigned by the server when the operation is
// accepted; values supplied by a client are discarded.
type Operation struct {
	Kind     Kind
	Position int
	Data     string // insert payload
	Length   int    // delete span

	From      string
	Timestamp time.Time
}

// NewInsert creates an operation inserting data at pos.
func NewInsert(pos int, data string) Operation {
	return Operation{Kind: KindInsert, Position: pos, Data: data}
}

// NewDelete creates an operation removing length code points at pos.
func NewDelete(pos, length int) Operation {
	return Operation{Kind: KindDelete, Position: pos, Length: length}
}

// Delta returns the change in document length (in code points) the
// operation causes when applied.
func (op Operation) Delta() int {
	switch op.Kind {
	case KindInsert:
		return utf8.RuneCountInString(op.Data)
	case KindDelete:
		return -op.Length
	}
	return 0
}

// ErrOutOfBounds reports an operation whose offsets do not fit the
// document it was validated against.
var ErrOutOfBounds = errors.New("offset out of bounds")

// Apply applies op to content and returns the new content. It is a pure
// function: on any error the original content is unchanged and must not
// be persisted or broadcast.
//
// Insert is valid for positions 0 through len(content) inclusive; the
// result is content[:pos] + data + content[pos:]. Delete is valid when
// the deleted span lies entirely within the content; a zero-length
// delete is the identity.
func Apply(content string, op Operation) (string, error) {
	runes := []rune(content)
	switch op.Kind {
	case KindInsert:
		if op.Position < 0 || op.Position > len(runes) {
			return "", fmt.Errorf("insert at %d in document of length %d: %w", op.Position, len(runes), ErrOutOfBounds)
		}
		return string(runes[:op.Position]) + op.Data + string(runes[op.Position:]), nil
	case KindDelete:
		if op.Position < 0 || op.Length < 0 || op.Position > len(runes) || op.Position+op.Length > len(runes) {
			return "", fmt.Errorf("delete [%d,%d) in document of length %d: %w", op.Position, op.Position+op.Length, len(runes), ErrOutOfBounds)
		}
		return string(runes[:op.Position]) + string(runes[op.Position+op.Length:]), nil
	}
	return "", fmt.Errorf("unknown operation kind %q", op.Kind)
}
