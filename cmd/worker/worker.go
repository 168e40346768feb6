package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"apgc/backend/internal/metrics"
	"apgc/backend/internal/notify"
	"apgc/backend/internal/queue"
)

type jobQueue interface {
	Dequeue(ctx context.Context, wait time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
}

type ticketLinker interface {
	ReconcileTicketLinks(ctx context.Context) (int64, error)
}

type worker struct {
	queue          jobQueue
	linker         ticketLinker
	sender         notify.Sender
	metrics        *metrics.Metrics
	logger         *slog.Logger
	backoff        func(attempt int) time.Duration
	reconcileEvery time.Duration
	dequeueWait    time.Duration
}

func (w *worker) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		job, err := w.queue.Dequeue(ctx, w.dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("dequeue_error", "error", err)
			if !sleepCtx(ctx, 5*time.Second) {
				return nil
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := w.handleJob(ctx, job); err != nil {
			w.logger.Error("job_failed", "job_id", job.ID, "error", err)
		}
	}
}

// handleJob delivers one queued ticket e-mail. Jobs that can never succeed are
// dropped; delivery failures are retried with backoff until dead-lettered.
func (w *worker) handleJob(ctx context.Context, job *queue.Job) error {
	logger := w.logger.With("job_id", job.ID, "type", job.Type, "attempt", job.Attempt)
	if job.Type != notify.JobTypeTicketEmail {
		logger.Warn("job_unknown_type")
		return nil
	}
	msg, err := notify.DecodeTicketMessage(job.Payload)
	if err != nil {
		logger.Error("job_invalid_payload", "error", err)
		return nil
	}

	logger.Info("job_processing", "registration_id", msg.RegistrationID, "ticket_code", msg.TicketCode)
	result := w.sender.Send(ctx, msg)
	w.metrics.Notification(result.Status())
	if result.Success {
		logger.Info("job_sent", "registration_id", msg.RegistrationID)
		return nil
	}
	if errors.Is(result.Err, notify.ErrInvalidRecipient) {
		logger.Error("job_invalid_recipient", "registration_id", msg.RegistrationID, "error", result.Err)
		return nil
	}

	if !sleepCtx(ctx, w.backoff(job.Attempt)) {
		// Shutting down: requeue without waiting out the delay.
		ctx = context.WithoutCancel(ctx)
	}
	deadLettered, err := w.queue.Retry(ctx, job, result.Err)
	if err != nil {
		return err
	}
	if deadLettered {
		logger.Error("job_dead_lettered", "registration_id", msg.RegistrationID, "error", result.Err)
	}
	return nil
}

func (w *worker) reconcileLoop(ctx context.Context) error {
	every := w.reconcileEvery
	if every <= 0 {
		every = 5 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		w.reconcile(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// reconcile re-links paid registrations to their active ticket.
func (w *worker) reconcile(ctx context.Context) {
	fixed, err := w.linker.ReconcileTicketLinks(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("reconcile_ticket_links_error", "error", err)
		}
		return
	}
	if fixed > 0 {
		w.logger.Warn("reconcile_ticket_links", "fixed", fixed)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
