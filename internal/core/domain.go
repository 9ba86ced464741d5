package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	BiWeekly  Frequency = "bi-weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	BiAnnual  Frequency = "bi-annual"
	Yearly    Frequency = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	Frequency string

	TransactionType string

	Money struct {
		Cents int64
	}

	// Plan is a user-defined recurring income/expense intent. NextExecutionDate
	// is always derivable by repeatedly applying the frequency step to StartDate
	// and never precedes it.
	Plan struct {
		ID                string
		Description       string
		Type              TransactionType
		Amount            Money
		Currency          string
		CategoryID        string // empty when uncategorized
		WalletID          string // empty when no wallet
		StartDate         time.Time
		EndDate           time.Time // zero when open-ended
		Frequency         Frequency
		LastExecutionDate time.Time // zero when never fired
		NextExecutionDate time.Time
		IsActive          bool
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// Transaction is an immutable record of one fired plan occurrence.
	Transaction struct {
		ID          string
		Description string
		Type        TransactionType
		Amount      Money
		Currency    string
		CategoryID  string
		WalletID    string
		Date        time.Time
		IsRecurring bool
		RecurringID string // originating plan id, relation only
		CreatedAt   time.Time
	}

	// ExecutionSummary aggregates the fired transactions of one plan.
	ExecutionSummary struct {
		Count      int64
		TotalCents int64
		LastDate   time.Time
	}

	Wallet struct {
		ID        string
		Name      string
		Provider  string
		Currency  string
		CreatedAt time.Time
	}

	Category struct {
		ID        string
		Name      string
		Type      TransactionType
		Color     string
		Icon      string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCurrency    = errors.New("empty currency")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrMissingStartDate = errors.New("missing start date")
	ErrEndBeforeStart   = errors.New("end date before start date")
)

// Frequencies lists the supported cadences in ascending step order.
var Frequencies = []Frequency{Daily, Weekly, BiWeekly, Monthly, Quarterly, BiAnnual, Yearly}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, BiWeekly, Monthly, Quarterly, BiAnnual, Yearly:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Units returns the amount in currency units for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

func (p Plan) Validate() error {
	if len(strings.TrimSpace(p.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(p.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !p.Type.Valid() {
		return ErrInvalidType
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Currency) == "" {
		return ErrEmptyCurrency
	}
	if p.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return ErrEndBeforeStart
	}
	// The cadence calculator tolerates unknown frequencies on legacy rows,
	// but new writes must carry a known one.
	if !p.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	return nil
}

// OpenEnded reports whether the plan has no end date.
func (p Plan) OpenEnded() bool {
	return p.EndDate.IsZero()
}

// Expired reports whether the plan's end date has passed as of now.
func (p Plan) Expired(now time.Time) bool {
	return !p.EndDate.IsZero() && p.EndDate.Before(now)
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Currency) == "" {
		return ErrEmptyCurrency
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}
