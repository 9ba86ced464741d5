package worker

import (
	"context"
	"testing"
	"time"

	"plata/internal/amqp"
	"plata/internal/core"
	"plata/internal/services"
)

type fakeBus struct {
	published []time.Time
	commands  []*amqp.FireDuePlansCommand
	handled   chan struct{}
}

func (b *fakeBus) PublishFireDuePlans(_ context.Context, asOf time.Time) error {
	b.published = append(b.published, asOf)
	return nil
}

func (b *fakeBus) ConsumeFireDuePlans(ctx context.Context, handler func(*amqp.FireDuePlansCommand) error) error {
	for _, cmd := range b.commands {
		if err := handler(cmd); err != nil {
			return err
		}
	}
	close(b.handled)
	<-ctx.Done()
	return ctx.Err()
}

type fakeExecStore struct {
	due       []core.Plan
	fired     []string
	nextDates map[string]time.Time
}

func (s *fakeExecStore) ListDuePlans(_ context.Context, asOf time.Time, _ int) ([]core.Plan, error) {
	var out []core.Plan
	for _, p := range s.due {
		if !p.NextExecutionDate.After(asOf) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeExecStore) SetPlanActive(_ context.Context, _ string, _ bool, _ time.Time) error {
	return nil
}

func (s *fakeExecStore) AdvancePlanExecution(_ context.Context, id string, _, next, _ time.Time) error {
	if s.nextDates == nil {
		s.nextDates = make(map[string]time.Time)
	}
	s.nextDates[id] = next
	return nil
}

func (s *fakeExecStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.fired = append(s.fired, t.RecurringID)
	return nil
}

func TestSchedulerRunConsumesCommands(t *testing.T) {
	asOf := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	store := &fakeExecStore{
		due: []core.Plan{{
			ID:                "plan-1",
			Description:       "Rent",
			Type:              core.Expense,
			Amount:            core.Money{Cents: 50000},
			Currency:          "ARS",
			StartDate:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Frequency:         core.Monthly,
			NextExecutionDate: asOf,
			IsActive:          true,
		}},
	}
	bus := &fakeBus{
		commands: []*amqp.FireDuePlansCommand{amqp.NewFireDuePlansCommand(asOf)},
		handled:  make(chan struct{}),
	}
	scheduler := NewScheduler(bus, services.NewExecutor(store, nil, 100), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	select {
	case <-bus.handled:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not consume the command in time")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	if len(store.fired) != 1 || store.fired[0] != "plan-1" {
		t.Errorf("fired plans = %v, want [plan-1]", store.fired)
	}
	if len(bus.published) == 0 {
		t.Errorf("scheduler should publish an initial command on startup")
	}
}

func TestSchedulerRejectsMissingCollaborators(t *testing.T) {
	s := NewScheduler(nil, nil, time.Minute)
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run() with nil collaborators should fail")
	}
}
