package requests

import "testing"

func TestStatusCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusLeadAssigned, true},
		{StatusLeadAssigned, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusApproved, true},
		{StatusApproved, StatusClosed, true},
		{StatusCreated, StatusInProgress, false},
		{StatusLeadAssigned, StatusCreated, false},
		{StatusClosed, StatusCancelled, false},
		{StatusCancelled, StatusCreated, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusCancellableFromAnyNonTerminalState(t *testing.T) {
	for _, from := range []Status{StatusCreated, StatusLeadAssigned, StatusInProgress, StatusCompleted, StatusApproved} {
		if !from.CanTransition(StatusCancelled) {
			t.Errorf("expected %s to be cancellable", from)
		}
	}
}

func TestStatusReassignable(t *testing.T) {
	if !StatusCreated.Reassignable() || !StatusLeadAssigned.Reassignable() {
		t.Fatal("created and lead_assigned must be reassignable")
	}
	for _, s := range []Status{StatusInProgress, StatusCompleted, StatusApproved, StatusClosed, StatusCancelled} {
		if s.Reassignable() {
			t.Errorf("expected %s to not be reassignable", s)
		}
	}
}
