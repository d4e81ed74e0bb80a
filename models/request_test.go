package models

import "testing"

func TestRequestStatusTerminal(t *testing.T) {
	cases := []struct {
		status   RequestStatus
		terminal bool
	}{
		{RequestPending, false},
		{RequestApproved, false},
		{RequestCheckedOut, false},
		{RequestRejected, true},
		{RequestReturned, true},
		{RequestCancelled, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %t, want %t", tc.status, got, tc.terminal)
		}
		if got := tc.status.Open(); got == tc.terminal {
			t.Errorf("%s.Open() = %t, want %t", tc.status, got, !tc.terminal)
		}
	}
}

func TestRequestStatusTransitionGates(t *testing.T) {
	// Decision and cancellation are PENDING-only.
	for _, s := range []RequestStatus{RequestApproved, RequestRejected, RequestCheckedOut, RequestReturned, RequestCancelled} {
		if s.CanDecide() {
			t.Errorf("%s.CanDecide() = true", s)
		}
		if s.CanCancel() {
			t.Errorf("%s.CanCancel() = true", s)
		}
	}
	if !RequestPending.CanDecide() || !RequestPending.CanCancel() {
		t.Error("PENDING must allow decide and cancel")
	}

	// Only APPROVED and CHECKED_OUT may pass the gate.
	for _, s := range []RequestStatus{RequestPending, RequestRejected, RequestReturned, RequestCancelled} {
		if s.ExitEligible() {
			t.Errorf("%s.ExitEligible() = true", s)
		}
	}
	if !RequestApproved.ExitEligible() || !RequestCheckedOut.ExitEligible() {
		t.Error("APPROVED and CHECKED_OUT must be exit eligible")
	}
}

func TestStatusValidation(t *testing.T) {
	if RequestStatus("LOST").Valid() {
		t.Error("unknown request status must not validate")
	}
	if AssetStatus("BROKEN").Valid() {
		t.Error("unknown asset status must not validate")
	}
	if Role("SUPERUSER").Valid() {
		t.Error("unknown role must not validate")
	}
	for _, s := range OpenStatuses {
		if !s.Open() {
			t.Errorf("OpenStatuses contains non-open %s", s)
		}
	}
	for _, s := range ExitEligibleStatuses {
		if !s.ExitEligible() {
			t.Errorf("ExitEligibleStatuses contains ineligible %s", s)
		}
	}
}
