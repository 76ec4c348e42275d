// Package requests owns the ServiceRequest aggregate: the customer-submitted
// job that leads, proposals, and work orders hang off.
package requests

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a service request. The set is ordered;
// transitions only move forward, except cancellation.
type Status string

const (
	StatusCreated      Status = "created"
	StatusLeadAssigned Status = "lead_assigned"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusApproved     Status = "approved"
	StatusClosed       Status = "closed"
	StatusCancelled    Status = "cancelled"
)

var statusOrder = map[Status]int{
	StatusCreated:      0,
	StatusLeadAssigned: 1,
	StatusInProgress:   2,
	StatusCompleted:    3,
	StatusApproved:     4,
	StatusClosed:       5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// CanTransition reports whether a request may move from s to next.
// Forward-only along the ordered set; cancellation is allowed from any
// non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s == StatusClosed || s == StatusCancelled {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	from, okFrom := statusOrder[s]
	to, okTo := statusOrder[next]
	return okFrom && okTo && to == from+1
}

// Reassignable reports whether the request may still be (re)assigned to
// providers. Past lead_assigned the customer is already engaged with a
// provider and reassignment would orphan paid leads.
func (s Status) Reassignable() bool {
	return s == StatusCreated || s == StatusLeadAssigned
}

// ServiceRequest is a customer-submitted job.
type ServiceRequest struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	Category          string
	SubCategory       string
	Description       string
	Zip               string
	City              string
	State             string
	RadiusKM          float64
	Status            Status
	PrimaryProviderID *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Customer is the request owner's contact snapshot, used when revealing
// contact details on lead acceptance and when notifying the customer.
type Customer struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}
