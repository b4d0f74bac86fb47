package hub

import (
	"encoding/json"
	"time"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/mapping"
)

// Message types.
const (
	TypeSlotSelected = "slot_selected"
	TypeClear        = "clear"
	TypeDiag         = "diag"
	TypeChanges      = "changes"

	TypeSelectSlot   = "select_slot"
	TypeSnapshot     = "snapshot"
	TypeWatchChanges = "watch_changes"
)

// WSMessage is a JSON message sent from server to client. Rendered frames
// are sent as binary messages instead: one slot byte followed by a PNG.
type WSMessage struct {
	Type      string         `json:"type"`
	Seq       int64          `json:"seq"`
	Timestamp int64          `json:"timestamp"`
	Slot      *int           `json:"slot,omitempty"`
	Diag      *diag.Message  `json:"diag,omitempty"`
	Changes   *mapping.Batch `json:"changes,omitempty"`
}

// NewSlotSelectedMessage confirms a select_slot request.
func NewSlotSelectedMessage(slot int) *WSMessage {
	return &WSMessage{
		Type:      TypeSlotSelected,
		Timestamp: time.Now().UnixMilli(),
		Slot:      &slot,
	}
}

// NewClearMessage tells viewers of slot that its device is gone.
func NewClearMessage(seq int64, slot int) *WSMessage {
	return &WSMessage{
		Type:      TypeClear,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Slot:      &slot,
	}
}

// NewDiagMessage forwards a diagnostic.
func NewDiagMessage(seq int64, m diag.Message) *WSMessage {
	return &WSMessage{
		Type:      TypeDiag,
		Seq:       seq,
		Timestamp: m.Time.UnixMilli(),
		Diag:      &m,
	}
}

// NewChangesMessage carries one change batch.
func NewChangesMessage(seq int64, b mapping.Batch) *WSMessage {
	return &WSMessage{
		Type:      TypeChanges,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Changes:   &b,
	}
}

// ClientMessage is a message sent from a client to the server.
type ClientMessage struct {
	Type     string          `json:"type"`
	Slot     int             `json:"slot,omitempty"`
	Gamepads json.RawMessage `json:"gamepads,omitempty"`
}
