package server

import "encoding/json"

// Outbound message envelopes. Operation broadcasts use the edit package
// wire form directly; everything else the server sends is one of:
//
//	{"type":"doc","docId":...,"title":...,"content":...,"author":bool}   initial snapshot
//	{"type":"ack","timestamp":...}                                       submit accepted
//	{"type":"error","code":...,"error":...,"retryable":bool}             submit or decode failed
//	{"type":"presence","event":"join"|"leave","userId":...}              peer lifecycle
const (
	msgDoc      = "doc"
	msgAck      = "ack"
	msgError    = "error"
	msgPresence = "presence"
)

type serverMessage struct {
	Type string `json:"type"`

	// doc snapshot
	DocID   string  `json:"docId,omitempty"`
	Title   string  `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  bool    `json:"author,omitempty"`

	// presence
	Event  string `json:"event,omitempty"`
	UserID string `json:"userId,omitempty"`

	// ack / error
	Timestamp string `json:"timestamp,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (m serverMessage) encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

func presenceMessage(event string, s *Session) serverMessage {
	return serverMessage{Type: msgPresence, Event: event, UserID: s.UserID}
}
