// Package email delivers rendered notifications over SMTP.
package email

import (
	"context"

	"leadmarket_backend/platform/logger"
)

// Sender delivers one email. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender logs instead of sending. Used when SMTP is not configured,
// typically in development.
type NoopSender struct {
	log *logger.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(log *logger.Logger) *NoopSender {
	return &NoopSender{log: log}
}

func (s *NoopSender) Send(_ context.Context, toEmail, subject, _ string) error {
	s.log.Info("email delivery disabled, dropping message", "to", toEmail, "subject", subject)
	return nil
}
