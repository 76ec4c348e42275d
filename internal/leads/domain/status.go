// Package domain provides core business rules for the leads bounded context.
package domain

// Status is the lifecycle state of a lead.
type Status string

const (
	// StatusSubmitted marks a primary lead created at assignment time.
	StatusSubmitted Status = "submitted"
	// StatusRouted marks a lead created by fallback promotion.
	StatusRouted Status = "routed"
	// StatusAccepted is terminal: the provider accepted and paid.
	StatusAccepted Status = "accepted"
	// StatusRejected is terminal: the provider explicitly declined.
	StatusRejected Status = "rejected"
	// StatusCancelled is terminal: the lead was superseded (fallback
	// timeout or manual reassignment) without an accepted sibling.
	StatusCancelled Status = "cancelled"
)

// Open reports whether the lead is still actionable by its provider.
// Only submitted and routed leads can be accepted or rejected.
func (s Status) Open() bool {
	return s == StatusSubmitted || s == StatusRouted
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// CanTransition reports whether a lead may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if !s.Open() {
		return false
	}
	return next == StatusAccepted || next == StatusRejected || next == StatusCancelled
}

// RejectReason is the closed set of reasons a provider may give.
type RejectReason string

const (
	RejectTooFar       RejectReason = "TOO_FAR"
	RejectTooExpensive RejectReason = "TOO_EXPENSIVE"
	RejectNotRelevant  RejectReason = "NOT_RELEVANT"
	RejectOther        RejectReason = "OTHER"
)

// Valid reports whether the reason is one of the known values.
func (r RejectReason) Valid() bool {
	switch r {
	case RejectTooFar, RejectTooExpensive, RejectNotRelevant, RejectOther:
		return true
	}
	return false
}

// RequiresDetail reports whether the reason needs free-text explanation.
func (r RejectReason) RequiresDetail() bool {
	return r == RejectOther
}
