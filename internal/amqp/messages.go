package amqp

import (
	"encoding/json"
	"time"
)

// FireDuePlansCommand asks the scheduler worker to execute every plan whose
// next execution date is at or before AsOf. The worker fetches due plans from
// the database itself; the command only carries the reference clock.
type FireDuePlansCommand struct {
	AsOf      time.Time `json:"as_of"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFireDuePlansCommand(asOf time.Time) *FireDuePlansCommand {
	return &FireDuePlansCommand{
		AsOf:      asOf,
		Timestamp: time.Now(),
	}
}

func (c *FireDuePlansCommand) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

func FireDuePlansCommandFromJSON(data []byte) (*FireDuePlansCommand, error) {
	var cmd FireDuePlansCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// PlanExecutedMessage announces that a plan fired and which transaction it
// produced. Published for interested consumers (balance aggregation, digests).
type PlanExecutedMessage struct {
	PlanID        string    `json:"plan_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	ExecutedAt    time.Time `json:"executed_at"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewPlanExecutedMessage(planID, transactionID string, amountCents int64, currency string, executedAt time.Time) *PlanExecutedMessage {
	return &PlanExecutedMessage{
		PlanID:        planID,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		Currency:      currency,
		ExecutedAt:    executedAt,
		Timestamp:     time.Now(),
	}
}

func (m *PlanExecutedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PlanExecutedMessageFromJSON(data []byte) (*PlanExecutedMessage, error) {
	var msg PlanExecutedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
