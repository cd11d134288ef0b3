package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// LedgerInvalidatedMessage announces that the stored ledgers changed and
// cached snapshots must be dropped.
type LedgerInvalidatedMessage struct {
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	BatchID   string    `json:"batch_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerInvalidatedMessage stamps a message with the current time.
func NewLedgerInvalidatedMessage(source, reason, batchID string) *LedgerInvalidatedMessage {
	return &LedgerInvalidatedMessage{
		Source:    source,
		Reason:    reason,
		BatchID:   batchID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerInvalidatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerInvalidatedMessageFromJSON decodes a message. A message without a
// source is rejected.
func LedgerInvalidatedMessageFromJSON(data []byte) (*LedgerInvalidatedMessage, error) {
	var msg LedgerInvalidatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Source == "" {
		return nil, errors.New("invalidation message without source")
	}
	return &msg, nil
}
