package notify

import (
	"context"
	"log/slog"
)

// LogSender records the message instead of delivering it. Used in development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg TicketMessage) Result {
	if _, err := NormalizeAddress(msg.RecipientEmail); err != nil {
		return failed(err)
	}
	s.logger.Info("ticket_email_logged",
		"registration_id", msg.RegistrationID,
		"to", msg.RecipientEmail,
		"event", msg.EventTitle,
		"ticket_code", msg.TicketCode,
		"qr_bytes", len(msg.QRPNG),
	)
	return Result{Success: true}
}
