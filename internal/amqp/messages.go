package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Ledger event types.
const (
	EventFeePaymentCreated   = "fee_payment.created"
	EventStudentFeeCancelled = "student_fee.cancelled"
)

// LedgerEvent announces a committed ledger change. It carries identifiers
// only; consumers load the full records from the database.
type LedgerEvent struct {
	Type           string    `json:"type"`
	OrganizationID string    `json:"organization_id"`
	EntityID       string    `json:"entity_id"`
	StudentID      string    `json:"student_id,omitempty"`
	AmountCents    int64     `json:"amount_cents"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewLedgerEvent stamps an event with the current time.
func NewLedgerEvent(typ, orgID, entityID, studentID string, amountCents int64) LedgerEvent {
	return LedgerEvent{
		Type:           typ,
		OrganizationID: orgID,
		EntityID:       entityID,
		StudentID:      studentID,
		AmountCents:    amountCents,
		Timestamp:      time.Now().UTC(),
	}
}

// Validate rejects events a consumer cannot act on.
func (e LedgerEvent) Validate() error {
	switch e.Type {
	case EventFeePaymentCreated, EventStudentFeeCancelled:
	default:
		return errors.New("unknown ledger event type: " + e.Type)
	}
	if e.OrganizationID == "" || e.EntityID == "" {
		return errors.New("ledger event is missing organization or entity id")
	}
	return nil
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}
