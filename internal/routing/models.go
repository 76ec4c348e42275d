// Package routing selects and orders provider candidates for a service
// request: a read-only eligibility query followed by a pure ranking pass.
// It never writes leads; that is the assignment orchestrator's job.
package routing

import (
	"github.com/google/uuid"
)

// Candidate is a business eligible to receive a lead, joined with its
// owner's contact details and the priority boost of any active
// subscription tier.
type Candidate struct {
	BusinessID      uuid.UUID
	BusinessName    string
	OwnerID         uuid.UUID
	OwnerName       string
	OwnerEmail      string
	Zip             string
	City            string
	State           string
	Latitude        *float64
	Longitude       *float64
	ServiceRadiusKM float64
	Rating          float64
	RatingCount     int
	Featured        bool
	PriorityBoost   int
}

// HasCoordinates reports whether the business has been geocoded.
func (c Candidate) HasCoordinates() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// RequestLocation is the slice of a service request the resolver needs.
type RequestLocation struct {
	Category    string
	SubCategory string
	Zip         string
	City        string
	State       string
	RadiusKM    float64
}
