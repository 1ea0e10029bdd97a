package models

import (
	"testing"
	"time"
)

func TestIsValidRequestTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{RequestStatusPending, RequestStatusAccepted, true},
		{RequestStatusPending, RequestStatusRejected, true},
		{RequestStatusPending, RequestStatusCancelled, true},
		{RequestStatusAccepted, RequestStatusPaid, true},
		{RequestStatusPaid, RequestStatusCompleted, true},

		// Responses are final
		{RequestStatusAccepted, RequestStatusRejected, false},
		{RequestStatusRejected, RequestStatusAccepted, false},
		{RequestStatusAccepted, RequestStatusCancelled, false},
		{RequestStatusPaid, RequestStatusCancelled, false},
		{RequestStatusCancelled, RequestStatusAccepted, false},
		{RequestStatusCompleted, RequestStatusPaid, false},

		// No skipping to paid
		{RequestStatusPending, RequestStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			if got := IsValidRequestTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidRequestTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestRequestExpired(t *testing.T) {
	now := time.Now()
	pr := &PaymentRequest{Status: RequestStatusPending, ExpiresAt: now.Add(-time.Hour)}
	if !pr.Expired(now) {
		t.Error("pending request past its deadline should be expired")
	}

	pr.ExpiresAt = now.Add(time.Hour)
	if pr.Expired(now) {
		t.Error("pending request before its deadline should not be expired")
	}

	// Expiry only applies while pending; an accepted request never expires.
	pr.Status = RequestStatusAccepted
	pr.ExpiresAt = now.Add(-time.Hour)
	if pr.Expired(now) {
		t.Error("accepted request should not expire")
	}
}

func TestServiceTypeAndUrgencyValidation(t *testing.T) {
	for _, s := range []string{ServiceTypeConsultation, ServiceTypeContractReview, ServiceTypeDocumentDrafting, ServiceTypeCourtRepresentation, ServiceTypeNotarization, ServiceTypeOther} {
		if !IsValidServiceType(s) {
			t.Errorf("service type %q should be valid", s)
		}
	}
	if IsValidServiceType("massage") {
		t.Error("unknown service type should be invalid")
	}

	for _, u := range []string{UrgencyStandard, UrgencyPriority, UrgencyUrgent} {
		if !IsValidUrgency(u) {
			t.Errorf("urgency %q should be valid", u)
		}
	}
	if IsValidUrgency("whenever") {
		t.Error("unknown urgency should be invalid")
	}
}
