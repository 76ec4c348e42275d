package notification

import (
	"time"

	"github.com/google/uuid"
)

// AuditStatus is the delivery state of one notification attempt chain.
type AuditStatus string

const (
	AuditPending  AuditStatus = "pending"
	AuditSent     AuditStatus = "sent"
	AuditRetrying AuditStatus = "retrying"
	AuditFailed   AuditStatus = "failed"
)

// Audit is one record per notification send, updated by each retry and
// never deleted.
type Audit struct {
	ID         uuid.UUID
	UserID     *uuid.UUID
	Type       Type
	Recipient  string
	Subject    string
	Status     AuditStatus
	RetryCount int
	MaxRetries int
	Error      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Preference holds a user's notification settings. A row is created on
// first use with everything enabled and a fresh unsubscribe token.
type Preference struct {
	ID                   uuid.UUID
	UserID               uuid.UUID
	EmailEnabled         bool
	LeadsEnabled         bool
	PaymentsEnabled      bool
	SubscriptionsEnabled bool
	UnsubscribeToken     string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Allows reports whether the preference permits the category. The global
// switch wins; system notifications only honor the global switch.
func (p Preference) Allows(category Category) bool {
	if !p.EmailEnabled {
		return false
	}
	switch category {
	case CategoryLeads:
		return p.LeadsEnabled
	case CategoryPayments:
		return p.PaymentsEnabled
	case CategorySubscriptions:
		return p.SubscriptionsEnabled
	default:
		return true
	}
}
