package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"plata/internal/amqp"
	"plata/internal/core"
)

// Executor fires due plans: it turns each due occurrence into a concrete
// transaction, advances the plan's next execution date by one cadence step
// and deactivates plans whose end date has passed.
type Executor struct {
	store     ExecutionStore
	publisher ExecutedPublisher // optional
	batchSize int
}

func NewExecutor(store ExecutionStore, publisher ExecutedPublisher, batchSize int) *Executor {
	return &Executor{
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
	}
}

// ProcessDuePlans executes every active plan due as of asOf and returns how
// many fired. Failures on individual plans are logged and skipped so one bad
// row never blocks the rest of the batch.
func (e *Executor) ProcessDuePlans(ctx context.Context, asOf time.Time) (int, error) {
	if e.store == nil {
		return 0, fmt.Errorf("executor not properly initialized")
	}

	duePlans, err := e.store.ListDuePlans(ctx, asOf, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due plans: %w", err)
	}

	slog.InfoContext(ctx, "Processing due plans",
		"due", len(duePlans),
		"as_of", asOf.Format(time.RFC3339))

	fired := 0
	for _, plan := range duePlans {
		ok, err := e.executePlan(ctx, plan, asOf)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to execute plan",
				"plan_id", plan.ID,
				"description", plan.Description,
				"error", err)
			continue
		}
		if ok {
			fired++
		}
	}

	slog.InfoContext(ctx, "Due plan processing complete",
		"fired", fired,
		"total_checked", len(duePlans))
	return fired, nil
}

// executePlan fires a single plan. Returns false without error when the plan
// was skipped (not yet due) or expired and deactivated.
func (e *Executor) executePlan(ctx context.Context, plan core.Plan, asOf time.Time) (bool, error) {
	if plan.NextExecutionDate.After(asOf) {
		return false, nil
	}

	if plan.Expired(asOf) {
		if err := e.store.SetPlanActive(ctx, plan.ID, false, asOf); err != nil {
			return false, fmt.Errorf("deactivate expired plan: %w", err)
		}
		slog.InfoContext(ctx, "Deactivated expired plan",
			"plan_id", plan.ID,
			"description", plan.Description,
			"end_date", plan.EndDate)
		return false, nil
	}

	tx := core.Transaction{
		ID:          uuid.NewString(),
		Description: plan.Description,
		Type:        plan.Type,
		Amount:      plan.Amount,
		Currency:    plan.Currency,
		CategoryID:  plan.CategoryID,
		WalletID:    plan.WalletID,
		Date:        asOf,
		IsRecurring: true,
		RecurringID: plan.ID,
		CreatedAt:   asOf,
	}
	if err := e.store.CreateTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("create transaction: %w", err)
	}

	next := core.NextDate(plan.NextExecutionDate, plan.Frequency)
	if err := e.store.AdvancePlanExecution(ctx, plan.ID, asOf, next, asOf); err != nil {
		// Transaction exists; the plan will be retried and may double-fire.
		return false, fmt.Errorf("advance plan execution: %w", err)
	}

	slog.InfoContext(ctx, "Executed scheduled plan",
		"plan_id", plan.ID,
		"transaction_id", tx.ID,
		"description", plan.Description,
		"amount_cents", plan.Amount.Cents,
		"frequency", plan.Frequency,
		"next_execution", next)

	if e.publisher != nil {
		msg := amqp.NewPlanExecutedMessage(plan.ID, tx.ID, plan.Amount.Cents, plan.Currency, asOf)
		if err := e.publisher.PublishPlanExecuted(ctx, msg); err != nil {
			// The firing itself succeeded; notification loss is tolerable
			slog.ErrorContext(ctx, "Failed to publish plan-executed message",
				"plan_id", plan.ID,
				"error", err)
		}
	}

	return true, nil
}
