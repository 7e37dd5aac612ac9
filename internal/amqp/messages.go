package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"saldo/internal/core"
)

// LedgerSavedMessage announces that a user's ledger was written to the
// primary backend. It carries a summary only; consumers reload the ledger.
type LedgerSavedMessage struct {
	UserID       string    `json:"user_id"`
	Income       string    `json:"income"`
	ExpenseCount int       `json:"expense_count"`
	Remaining    string    `json:"remaining"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewLedgerSavedMessage summarizes l for userID.
func NewLedgerSavedMessage(userID string, l core.Ledger) *LedgerSavedMessage {
	return &LedgerSavedMessage{
		UserID:       userID,
		Income:       l.Income().String(),
		ExpenseCount: l.Len(),
		Remaining:    l.Remaining().String(),
		Timestamp:    time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSavedMessageFromJSON decodes a message and rejects one without a user.
func LedgerSavedMessageFromJSON(data []byte) (*LedgerSavedMessage, error) {
	var msg LedgerSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("ledger saved message without user id")
	}
	return &msg, nil
}
