package domain

import "testing"

func TestOpenStatusesCanReachEveryTerminalState(t *testing.T) {
	for _, from := range []Status{StatusSubmitted, StatusRouted} {
		for _, to := range []Status{StatusAccepted, StatusRejected, StatusCancelled} {
			if !from.CanTransition(to) {
				t.Errorf("expected %s -> %s to be allowed", from, to)
			}
		}
	}
}

func TestTerminalStatusesAreFrozen(t *testing.T) {
	for _, from := range []Status{StatusAccepted, StatusRejected, StatusCancelled} {
		for _, to := range []Status{StatusAccepted, StatusRejected, StatusCancelled, StatusSubmitted} {
			if from.CanTransition(to) {
				t.Errorf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestRejectReasonValidation(t *testing.T) {
	if !RejectTooFar.Valid() || !RejectOther.Valid() {
		t.Fatal("known reasons must validate")
	}
	if RejectReason("WRONG_COLOR").Valid() {
		t.Fatal("unknown reason must not validate")
	}
	if RejectTooFar.RequiresDetail() {
		t.Fatal("TOO_FAR must not require detail")
	}
	if !RejectOther.RequiresDetail() {
		t.Fatal("OTHER must require detail")
	}
}
