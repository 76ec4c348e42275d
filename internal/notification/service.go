package notification

import (
	"context"
	"fmt"
	"time"

	"leadmarket_backend/internal/email"
	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Store abstracts audit and preference persistence for the service.
type Store interface {
	CreateAudit(ctx context.Context, userID *uuid.UUID, t Type, recipient, subject string, maxRetries int) (Audit, error)
	MarkRetrying(ctx context.Context, auditID uuid.UUID, retryCount int, lastError string) error
	MarkSent(ctx context.Context, auditID uuid.UUID) error
	MarkFailed(ctx context.Context, auditID uuid.UUID, lastError string) error
	GetOrCreatePreference(ctx context.Context, userID uuid.UUID) (Preference, error)
}

// SendResult is the outcome of a Send call.
type SendResult string

const (
	ResultSent    SendResult = "sent"
	ResultSkipped SendResult = "skipped"
	ResultFailed  SendResult = "failed"
)

// SendInput describes one notification to deliver.
type SendInput struct {
	// UserID enables preference checks and the unsubscribe link. Nil
	// means the recipient has no account (delivery is forced).
	UserID         *uuid.UUID
	RecipientEmail string
	Type           Type
	Data           TemplateData
}

// Service delivers notifications with preference checks, audits, and
// bounded retries.
type Service struct {
	store  Store
	sender email.Sender
	cfg    config.NotificationConfig
	log    *logger.Logger

	// sleep is swapped out in tests so retries don't wall-clock wait.
	sleep func(ctx context.Context, d time.Duration)
}

// NewService creates the notification service.
func NewService(store Store, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		sender: sender,
		cfg:    cfg,
		log:    log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Send renders and delivers one notification.
//
// A disabled preference short-circuits with ResultSkipped and writes no
// audit. Delivery failures are retried with exponential backoff up to the
// configured maximum; when exhausted, the audit row ends in failed and
// the error is returned. Callers log that error but never let it abort
// the business operation that triggered the notification.
func (s *Service) Send(ctx context.Context, input SendInput) (SendResult, error) {
	log := s.log.WithContext(ctx)

	unsubscribeURL := ""
	if input.UserID != nil {
		pref, err := s.store.GetOrCreatePreference(ctx, *input.UserID)
		if err != nil {
			return ResultFailed, err
		}
		if !pref.Allows(input.Type.Category()) {
			log.Info("notification skipped by preference",
				"type", string(input.Type), "user_id", *input.UserID)
			return ResultSkipped, nil
		}
		unsubscribeURL = fmt.Sprintf("%s/api/v1/notifications/unsubscribe?token=%s",
			s.cfg.GetAppBaseURL(), pref.UnsubscribeToken)
	}

	rendered, err := Render(input.Type, input.Data, unsubscribeURL)
	if err != nil {
		return ResultFailed, err
	}

	maxRetries := s.cfg.GetEmailMaxRetries()
	audit, err := s.store.CreateAudit(ctx, input.UserID, input.Type, input.RecipientEmail, rendered.Subject, maxRetries)
	if err != nil {
		return ResultFailed, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.store.MarkRetrying(ctx, audit.ID, attempt, lastErr.Error()); err != nil {
				log.Error("mark notification retrying failed", "error", err, "audit_id", audit.ID)
			}
			s.sleep(ctx, s.cfg.GetEmailRetryBaseDelay()*time.Duration(1<<(attempt-1)))
		}

		lastErr = s.sender.Send(ctx, input.RecipientEmail, rendered.Subject, rendered.HTML)
		if lastErr == nil {
			if err := s.store.MarkSent(ctx, audit.ID); err != nil {
				log.Error("mark notification sent failed", "error", err, "audit_id", audit.ID)
			}
			log.Info("notification sent", "type", string(input.Type), "recipient", input.RecipientEmail, "attempts", attempt+1)
			return ResultSent, nil
		}
	}

	if err := s.store.MarkFailed(ctx, audit.ID, lastErr.Error()); err != nil {
		log.Error("mark notification failed failed", "error", err, "audit_id", audit.ID)
	}
	log.Error("notification delivery exhausted retries",
		"type", string(input.Type), "recipient", input.RecipientEmail, "error", lastErr)
	return ResultFailed, fmt.Errorf("deliver %s notification: %w", input.Type, lastErr)
}
