// Package worker runs the scheduled-plan executor off the message bus.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"plata/internal/amqp"
	"plata/internal/services"
)

// CommandBus is the slice of the AMQP client the scheduler needs.
type CommandBus interface {
	PublishFireDuePlans(ctx context.Context, asOf time.Time) error
	ConsumeFireDuePlans(ctx context.Context, handler func(*amqp.FireDuePlansCommand) error) error
}

// Scheduler ticks fire-due-plans commands onto the bus and consumes them,
// handing each one to the executor. Keeping the trigger on the queue means
// any producer (cron, an operator, another service) can request a run.
type Scheduler struct {
	bus      CommandBus
	executor *services.Executor
	interval time.Duration
}

func NewScheduler(bus CommandBus, executor *services.Executor, interval time.Duration) *Scheduler {
	return &Scheduler{
		bus:      bus,
		executor: executor,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, running the ticker loop and the command
// consumer side by side. An initial command is published immediately so due
// plans are not left waiting a full interval after startup.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.bus == nil || s.executor == nil {
		return fmt.Errorf("scheduler not properly initialized")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tickLoop(ctx)
	})
	g.Go(func() error {
		return s.bus.ConsumeFireDuePlans(ctx, func(cmd *amqp.FireDuePlansCommand) error {
			return s.handleCommand(ctx, cmd)
		})
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("scheduler stopped: %w", err)
	}
	return nil
}

func (s *Scheduler) tickLoop(ctx context.Context) error {
	if err := s.bus.PublishFireDuePlans(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Failed to publish initial command", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := s.bus.PublishFireDuePlans(ctx, now); err != nil {
				slog.ErrorContext(ctx, "Failed to publish fire-due-plans command", "error", err)
			}
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *amqp.FireDuePlansCommand) error {
	fired, err := s.executor.ProcessDuePlans(ctx, cmd.AsOf)
	if err != nil {
		return fmt.Errorf("process due plans: %w", err)
	}

	slog.InfoContext(ctx, "Scheduler run complete",
		"as_of", cmd.AsOf.Format(time.RFC3339),
		"fired", fired)
	return nil
}
