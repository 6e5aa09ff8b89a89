package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// EventKind names the ledger write that produced an event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// LedgerEvent is published after a successful ledger write. It carries just
// enough for consumers to decide what to recompute without reading the store.
type LedgerEvent struct {
	EventID       uuid.UUID            `json:"event_id"`
	Kind          EventKind            `json:"kind"`
	TransactionID int64                `json:"transaction_id"`
	Type          core.TransactionType `json:"type"`
	Category      string               `json:"category"`
	AmountLocal   decimal.Decimal      `json:"amount_local"`
	Date          core.Date            `json:"date"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewLedgerEvent builds an event for t with a fresh id.
func NewLedgerEvent(kind EventKind, t core.Transaction, now time.Time) LedgerEvent {
	return LedgerEvent{
		EventID:       uuid.New(),
		Kind:          kind,
		TransactionID: t.ID,
		Type:          t.Type,
		Category:      t.Category,
		AmountLocal:   t.AmountLocal(),
		Date:          t.Date,
		Timestamp:     now.UTC(),
	}
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if e.EventID == uuid.Nil {
		return LedgerEvent{}, errors.New("missing event id")
	}
	if !e.Kind.Valid() {
		return LedgerEvent{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return e, nil
}
