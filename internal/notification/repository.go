package notification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists notification audits and preferences.
type Repository struct {
	q db.Querier
}

// New creates a notification repository.
func New(q db.Querier) *Repository {
	return &Repository{q: q}
}

// CreateAudit inserts a pending audit row before the first delivery
// attempt.
func (r *Repository) CreateAudit(ctx context.Context, userID *uuid.UUID, t Type, recipient, subject string, maxRetries int) (Audit, error) {
	query := `
		INSERT INTO notification_audits (user_id, notification_type, recipient, subject, status, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, 'pending', 0, $5)
		RETURNING id, created_at, updated_at`

	audit := Audit{
		UserID:     userID,
		Type:       t,
		Recipient:  recipient,
		Subject:    subject,
		Status:     AuditPending,
		MaxRetries: maxRetries,
	}
	err := r.q.QueryRow(ctx, query, userID, string(t), recipient, subject, maxRetries).
		Scan(&audit.ID, &audit.CreatedAt, &audit.UpdatedAt)
	if err != nil {
		return Audit{}, fmt.Errorf("create notification audit: %w", err)
	}
	return audit, nil
}

// MarkRetrying bumps the retry counter before another delivery attempt.
func (r *Repository) MarkRetrying(ctx context.Context, auditID uuid.UUID, retryCount int, lastError string) error {
	query := `
		UPDATE notification_audits
		SET status = 'retrying', retry_count = $2, error = $3, updated_at = now()
		WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, auditID, retryCount, lastError); err != nil {
		return fmt.Errorf("mark audit retrying: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, auditID uuid.UUID) error {
	query := `UPDATE notification_audits SET status = 'sent', error = NULL, updated_at = now() WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, auditID); err != nil {
		return fmt.Errorf("mark audit sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery that exhausted its retries.
func (r *Repository) MarkFailed(ctx context.Context, auditID uuid.UUID, lastError string) error {
	query := `UPDATE notification_audits SET status = 'failed', error = $2, updated_at = now() WHERE id = $1`

	if _, err := r.q.Exec(ctx, query, auditID, lastError); err != nil {
		return fmt.Errorf("mark audit failed: %w", err)
	}
	return nil
}

// ListAuditsByUser returns a user's audit trail, newest first.
func (r *Repository) ListAuditsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Audit, error) {
	query := `
		SELECT id, user_id, notification_type, recipient, subject, status, retry_count, max_retries, error, created_at, updated_at
		FROM notification_audits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification audits: %w", err)
	}
	defer rows.Close()

	var audits []Audit
	for rows.Next() {
		var audit Audit
		var notifType, status string
		err := rows.Scan(&audit.ID, &audit.UserID, &notifType, &audit.Recipient, &audit.Subject,
			&status, &audit.RetryCount, &audit.MaxRetries, &audit.Error, &audit.CreatedAt, &audit.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification audit: %w", err)
		}
		audit.Type = Type(notifType)
		audit.Status = AuditStatus(status)
		audits = append(audits, audit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification audits: %w", err)
	}
	return audits, nil
}

const preferenceColumns = `id, user_id, email_enabled, leads_enabled, payments_enabled, subscriptions_enabled, unsubscribe_token, created_at, updated_at`

func scanPreference(row pgx.Row) (Preference, error) {
	var p Preference
	err := row.Scan(&p.ID, &p.UserID, &p.EmailEnabled, &p.LeadsEnabled, &p.PaymentsEnabled,
		&p.SubscriptionsEnabled, &p.UnsubscribeToken, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetOrCreatePreference returns the user's preference, creating the
// default row (everything enabled, fresh unsubscribe token) on first use.
func (r *Repository) GetOrCreatePreference(ctx context.Context, userID uuid.UUID) (Preference, error) {
	token, err := newUnsubscribeToken()
	if err != nil {
		return Preference{}, err
	}

	// The conflict clause is a no-op update so RETURNING sees the
	// existing row instead of nothing.
	query := `
		INSERT INTO notification_preferences (user_id, email_enabled, leads_enabled, payments_enabled, subscriptions_enabled, unsubscribe_token)
		VALUES ($1, true, true, true, true, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + preferenceColumns

	pref, err := scanPreference(r.q.QueryRow(ctx, query, userID, token))
	if err != nil {
		return Preference{}, fmt.Errorf("get or create preference: %w", err)
	}
	return pref, nil
}

// UpdatePreference stores the user's flag choices.
func (r *Repository) UpdatePreference(ctx context.Context, userID uuid.UUID, emailEnabled, leadsEnabled, paymentsEnabled, subscriptionsEnabled bool) (Preference, error) {
	query := `
		UPDATE notification_preferences
		SET email_enabled = $2, leads_enabled = $3, payments_enabled = $4, subscriptions_enabled = $5, updated_at = now()
		WHERE user_id = $1
		RETURNING ` + preferenceColumns

	pref, err := scanPreference(r.q.QueryRow(ctx, query, userID, emailEnabled, leadsEnabled, paymentsEnabled, subscriptionsEnabled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Preference{}, apperr.NotFound("notification preference not found")
		}
		return Preference{}, fmt.Errorf("update preference: %w", err)
	}
	return pref, nil
}

// UnsubscribeByToken disables all email for the token's owner. Used by
// the unauthenticated unsubscribe link in every email footer.
func (r *Repository) UnsubscribeByToken(ctx context.Context, token string) error {
	query := `
		UPDATE notification_preferences
		SET email_enabled = false, updated_at = now()
		WHERE unsubscribe_token = $1`

	tag, err := r.q.Exec(ctx, query, token)
	if err != nil {
		return fmt.Errorf("unsubscribe by token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("unknown unsubscribe token")
	}
	return nil
}

func newUnsubscribeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate unsubscribe token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
