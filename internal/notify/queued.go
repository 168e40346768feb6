package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// JobTypeTicketEmail tags queued ticket deliveries.
const JobTypeTicketEmail = "ticket_email"

type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any) (string, error)
}

// QueueSender hands the message to the background worker.
type QueueSender struct {
	queue  Enqueuer
	logger *slog.Logger
}

func NewQueueSender(queue Enqueuer, logger *slog.Logger) *QueueSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSender{queue: queue, logger: logger}
}

func (s *QueueSender) Send(ctx context.Context, msg TicketMessage) Result {
	if _, err := NormalizeAddress(msg.RecipientEmail); err != nil {
		return failed(err)
	}
	jobID, err := s.queue.Enqueue(ctx, JobTypeTicketEmail, msg)
	if err != nil {
		return failed(fmt.Errorf("enqueue ticket email: %w", err))
	}
	s.logger.Info("ticket_email_queued", "registration_id", msg.RegistrationID, "job_id", jobID)
	return Result{Success: true, Queued: true}
}

// DecodeTicketMessage reads a queued payload back into a message.
func DecodeTicketMessage(raw json.RawMessage) (TicketMessage, error) {
	var msg TicketMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("decode ticket message: %w", err)
	}
	if msg.RecipientEmail == "" || msg.TicketCode == "" {
		return msg, fmt.Errorf("ticket message missing recipient or code")
	}
	return msg, nil
}
