// Package assignment orchestrates provider assignment: it turns a ranked
// candidate list into one primary lead plus ordered alternative selections,
// and guards the whole operation against concurrent reassignment.
package assignment

import (
	"time"

	"github.com/google/uuid"
)

// AlternativeSelection is an ordered backup assignment. It carries no
// customer contact and triggers no notification until the fallback
// scheduler promotes it to a lead. Rows are immutable after creation;
// they are only ever deleted.
type AlternativeSelection struct {
	ID               uuid.UUID
	ServiceRequestID uuid.UUID
	BusinessID       uuid.UUID
	ProviderID       uuid.UUID
	Position         int
	CreatedAt        time.Time
}
