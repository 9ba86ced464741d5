// Package services orchestrates plan management and plan execution over the
// storage and messaging collaborators.
package services

import (
	"context"
	"time"

	"plata/internal/amqp"
	"plata/internal/core"
)

// PlanStore is the slice of the repository the plan service needs.
type PlanStore interface {
	CreatePlan(ctx context.Context, p core.Plan) error
	GetPlan(ctx context.Context, id string) (core.Plan, error)
	ListPlans(ctx context.Context) ([]core.Plan, error)
	UpdatePlan(ctx context.Context, p core.Plan) error
	SetPlanActive(ctx context.Context, id string, active bool, now time.Time) error
	DeletePlan(ctx context.Context, id string) error
	ExecutionSummaries(ctx context.Context, asOf time.Time) (map[string]core.ExecutionSummary, error)
}

// ExecutionStore is the slice of the repository the executor needs.
type ExecutionStore interface {
	ListDuePlans(ctx context.Context, asOf time.Time, limit int) ([]core.Plan, error)
	SetPlanActive(ctx context.Context, id string, active bool, now time.Time) error
	AdvancePlanExecution(ctx context.Context, id string, lastExecution, nextExecution, now time.Time) error
	CreateTransaction(ctx context.Context, t core.Transaction) error
}

// ExecutedPublisher announces fired plans to the message bus.
type ExecutedPublisher interface {
	PublishPlanExecuted(ctx context.Context, msg *amqp.PlanExecutedMessage) error
}
