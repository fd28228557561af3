package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"genimage/internal/queue"
	"genimage/internal/service"
)

// Reconciler is the part of the consistency service the worker drives.
type Reconciler interface {
	RepairPair(ctx context.Context, imageID, userID string) (bool, error)
	Sweep(ctx context.Context) (service.ReconcileReport, error)
}

// Processor dispatches consistency tasks read from the stream. A returned
// error leaves the message pending so another consumer can claim it.
type Processor struct {
	reconciler Reconciler
	logger     zerolog.Logger
}

func NewProcessor(reconciler Reconciler, logger zerolog.Logger) *Processor {
	return &Processor{
		reconciler: reconciler,
		logger:     logger,
	}
}

func (p *Processor) Handle(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskRepair:
		return p.handleRepair(ctx, task)
	case queue.TaskReconcile:
		return p.handleReconcile(ctx)
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleRepair(ctx context.Context, task queue.Task) error {
	changed, err := p.reconciler.RepairPair(ctx, task.ImageID, task.UserID)
	if err != nil {
		return fmt.Errorf("repair %s/%s: %w", task.ImageID, task.UserID, err)
	}
	p.logger.Info().
		Str("image_id", task.ImageID).
		Str("user_id", task.UserID).
		Str("reason", task.Reason).
		Bool("changed", changed).
		Msg("repair task done")
	return nil
}

func (p *Processor) handleReconcile(ctx context.Context) error {
	report, err := p.reconciler.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("reconcile sweep: %w", err)
	}
	if report.Failed > 0 {
		p.logger.Warn().Int("failed", report.Failed).Msg("sweep finished with failed pairs")
	}
	return nil
}

// Inline hands tasks straight to a Processor on a fresh goroutine. It stands
// in for the stream when the api runs alone on the memory store. The task runs
// after the caller returns, so a repair queued while document locks are held can
// take them once they are released.
type Inline struct {
	processor *Processor
	timeout   time.Duration
}

func NewInline(processor *Processor, timeout time.Duration) *Inline {
	return &Inline{processor: processor, timeout: timeout}
}

func (i *Inline) Enqueue(_ context.Context, task queue.Task) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
		defer cancel()
		if err := i.processor.Handle(ctx, task); err != nil {
			i.processor.logger.Error().Err(err).Str("type", string(task.Type)).Msg("inline task failed")
		}
	}()
	return nil
}
