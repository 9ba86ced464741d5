package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"plata/internal/core"
)

// PlanService manages scheduled plans and produces the deduplicated display
// listing with accrual figures attached.
type PlanService struct {
	store PlanStore
}

func NewPlanService(store PlanStore) *PlanService {
	return &PlanService{store: store}
}

// CreatePlan validates and stores a new plan. The first execution is the
// start date itself, so NextExecutionDate starts there.
func (s *PlanService) CreatePlan(ctx context.Context, p core.Plan, now time.Time) (core.Plan, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.NextExecutionDate = p.StartDate
	p.LastExecutionDate = time.Time{}
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return core.Plan{}, fmt.Errorf("validate plan: %w", err)
	}
	if err := s.store.CreatePlan(ctx, p); err != nil {
		return core.Plan{}, fmt.Errorf("create plan: %w", err)
	}

	slog.InfoContext(ctx, "Plan created",
		"plan_id", p.ID,
		"description", p.Description,
		"frequency", p.Frequency,
		"start_date", p.StartDate)
	return p, nil
}

// UpdatePlan applies user edits to an existing plan. Scheduling fields are
// re-derived when the start date or frequency changed and the plan has not
// fired yet.
func (s *PlanService) UpdatePlan(ctx context.Context, p core.Plan, now time.Time) (core.Plan, error) {
	current, err := s.store.GetPlan(ctx, p.ID)
	if err != nil {
		return core.Plan{}, fmt.Errorf("load plan: %w", err)
	}

	p.CreatedAt = current.CreatedAt
	p.LastExecutionDate = current.LastExecutionDate
	if current.LastExecutionDate.IsZero() && !p.StartDate.Equal(current.StartDate) {
		p.NextExecutionDate = p.StartDate
	} else if p.NextExecutionDate.IsZero() {
		p.NextExecutionDate = current.NextExecutionDate
	}
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return core.Plan{}, fmt.Errorf("validate plan: %w", err)
	}
	if err := s.store.UpdatePlan(ctx, p); err != nil {
		return core.Plan{}, fmt.Errorf("update plan: %w", err)
	}

	slog.InfoContext(ctx, "Plan updated", "plan_id", p.ID, "description", p.Description)
	return p, nil
}

// SetActive pauses or resumes a plan.
func (s *PlanService) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	if err := s.store.SetPlanActive(ctx, id, active, now); err != nil {
		return fmt.Errorf("set plan active: %w", err)
	}
	slog.InfoContext(ctx, "Plan state changed", "plan_id", id, "is_active", active)
	return nil
}

// DeletePlan removes a plan permanently. Its fired transactions remain.
func (s *PlanService) DeletePlan(ctx context.Context, id string) error {
	if err := s.store.DeletePlan(ctx, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	slog.InfoContext(ctx, "Plan deleted", "plan_id", id)
	return nil
}

// GetPlan returns one plan by id.
func (s *PlanService) GetPlan(ctx context.Context, id string) (core.Plan, error) {
	return s.store.GetPlan(ctx, id)
}

// ListDisplayPlans runs the full listing pipeline: load plans (ordered by
// next execution date), collapse duplicates by signature, merge each group's
// execution history and attach accrual and projection figures as of now.
func (s *PlanService) ListDisplayPlans(ctx context.Context, now time.Time) ([]core.DisplayPlan, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}

	summaries, err := s.store.ExecutionSummaries(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("load execution summaries: %w", err)
	}

	display := core.Deduplicate(plans, summaries, now)

	slog.DebugContext(ctx, "Built display plan listing",
		"plans", len(plans),
		"display_records", len(display))
	return display, nil
}
