package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"plata/internal/amqp"
	"plata/internal/core"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// fakeExecutionStore is an in-memory ExecutionStore recording all mutations.
type fakeExecutionStore struct {
	plans        map[string]*core.Plan
	transactions []core.Transaction
	failCreate   bool
}

func newFakeExecutionStore(plans ...core.Plan) *fakeExecutionStore {
	s := &fakeExecutionStore{plans: make(map[string]*core.Plan)}
	for i := range plans {
		p := plans[i]
		s.plans[p.ID] = &p
	}
	return s
}

func (s *fakeExecutionStore) ListDuePlans(_ context.Context, asOf time.Time, limit int) ([]core.Plan, error) {
	var due []core.Plan
	for _, p := range s.plans {
		if p.IsActive && !p.NextExecutionDate.After(asOf) {
			due = append(due, *p)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeExecutionStore) SetPlanActive(_ context.Context, id string, active bool, _ time.Time) error {
	p, ok := s.plans[id]
	if !ok {
		return errors.New("plan not found")
	}
	p.IsActive = active
	return nil
}

func (s *fakeExecutionStore) AdvancePlanExecution(_ context.Context, id string, lastExecution, nextExecution, _ time.Time) error {
	p, ok := s.plans[id]
	if !ok {
		return errors.New("plan not found")
	}
	p.LastExecutionDate = lastExecution
	p.NextExecutionDate = nextExecution
	return nil
}

func (s *fakeExecutionStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	if s.failCreate {
		return errors.New("insert failed")
	}
	s.transactions = append(s.transactions, t)
	return nil
}

type fakePublisher struct {
	messages []*amqp.PlanExecutedMessage
}

func (p *fakePublisher) PublishPlanExecuted(_ context.Context, msg *amqp.PlanExecutedMessage) error {
	p.messages = append(p.messages, msg)
	return nil
}

func duePlan(id string) core.Plan {
	return core.Plan{
		ID:                id,
		Description:       "Rent",
		Type:              core.Expense,
		Amount:            core.Money{Cents: 50000},
		Currency:          "ARS",
		StartDate:         date(2024, 1, 1),
		Frequency:         core.Monthly,
		NextExecutionDate: date(2024, 3, 1),
		IsActive:          true,
	}
}

func TestExecutor_FiresDuePlan(t *testing.T) {
	store := newFakeExecutionStore(duePlan("p1"))
	publisher := &fakePublisher{}
	executor := NewExecutor(store, publisher, 100)

	asOf := date(2024, 3, 5)
	fired, err := executor.ProcessDuePlans(context.Background(), asOf)
	if err != nil {
		t.Fatalf("ProcessDuePlans() error = %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	if len(store.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(store.transactions))
	}
	tx := store.transactions[0]
	if tx.RecurringID != "p1" || !tx.IsRecurring {
		t.Errorf("transaction should reference the plan: %+v", tx)
	}
	if tx.Amount.Cents != 50000 {
		t.Errorf("transaction amount = %d, want 50000", tx.Amount.Cents)
	}

	p := store.plans["p1"]
	if !p.LastExecutionDate.Equal(asOf) {
		t.Errorf("last execution = %v, want %v", p.LastExecutionDate, asOf)
	}
	// Next date steps from the previous next date, not from asOf, so delayed
	// runs do not drift the schedule.
	if want := date(2024, 4, 1); !p.NextExecutionDate.Equal(want) {
		t.Errorf("next execution = %v, want %v", p.NextExecutionDate, want)
	}

	if len(publisher.messages) != 1 || publisher.messages[0].PlanID != "p1" {
		t.Errorf("expected one plan-executed message for p1, got %+v", publisher.messages)
	}
}

func TestExecutor_SkipsFuturePlan(t *testing.T) {
	p := duePlan("p1")
	p.NextExecutionDate = date(2024, 6, 1)
	store := newFakeExecutionStore(p)
	executor := NewExecutor(store, nil, 100)

	fired, err := executor.ProcessDuePlans(context.Background(), date(2024, 3, 5))
	if err != nil {
		t.Fatalf("ProcessDuePlans() error = %v", err)
	}
	if fired != 0 || len(store.transactions) != 0 {
		t.Errorf("future plan should not fire: fired=%d transactions=%d", fired, len(store.transactions))
	}
}

func TestExecutor_DeactivatesExpiredPlan(t *testing.T) {
	p := duePlan("p1")
	p.EndDate = date(2024, 2, 1)
	store := newFakeExecutionStore(p)
	executor := NewExecutor(store, nil, 100)

	fired, err := executor.ProcessDuePlans(context.Background(), date(2024, 3, 5))
	if err != nil {
		t.Fatalf("ProcessDuePlans() error = %v", err)
	}
	if fired != 0 {
		t.Errorf("expired plan must not fire, fired = %d", fired)
	}
	if len(store.transactions) != 0 {
		t.Errorf("expired plan must not create transactions")
	}
	if store.plans["p1"].IsActive {
		t.Errorf("expired plan should be deactivated")
	}
}

func TestExecutor_ContinuesPastFailures(t *testing.T) {
	store := newFakeExecutionStore(duePlan("p1"))
	store.failCreate = true
	executor := NewExecutor(store, nil, 100)

	fired, err := executor.ProcessDuePlans(context.Background(), date(2024, 3, 5))
	if err != nil {
		t.Fatalf("batch should not fail on a single bad plan: %v", err)
	}
	if fired != 0 {
		t.Errorf("fired = %d, want 0", fired)
	}
	// Schedule must not advance when the transaction insert failed.
	if !store.plans["p1"].LastExecutionDate.IsZero() {
		t.Errorf("failed firing must not record an execution")
	}
}

func TestExecutor_WorksWithoutPublisher(t *testing.T) {
	store := newFakeExecutionStore(duePlan("p1"))
	executor := NewExecutor(store, nil, 100)

	fired, err := executor.ProcessDuePlans(context.Background(), date(2024, 3, 5))
	if err != nil || fired != 1 {
		t.Fatalf("ProcessDuePlans() = %d, %v, want 1, nil", fired, err)
	}
}
