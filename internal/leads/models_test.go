package leads

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestParseMetadata(t *testing.T) {
	requestID := uuid.New()

	raw := []byte(`{"serviceRequestId":"` + requestID.String() + `","proposalDraft":{"details":"Full roof replacement","price":"4500.00"}}`)
	meta := ParseMetadata(raw)

	if meta.ServiceRequestID != requestID {
		t.Errorf("ServiceRequestID = %s, want %s", meta.ServiceRequestID, requestID)
	}
	if meta.ProposalDraft == nil {
		t.Fatal("expected proposal draft to be parsed")
	}
	if meta.ProposalDraft.Details != "Full roof replacement" {
		t.Errorf("Details = %q", meta.ProposalDraft.Details)
	}
	if !meta.ProposalDraft.Price.Equal(decimal.RequireFromString("4500.00")) {
		t.Errorf("Price = %s, want 4500.00", meta.ProposalDraft.Price)
	}
}

func TestParseMetadataMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":        nil,
		"not json":     []byte(`{{{`),
		"wrong shape":  []byte(`{"serviceRequestId":12345}`),
		"empty object": []byte(`{}`),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			meta := ParseMetadata(raw)
			if meta.ServiceRequestID != uuid.Nil {
				t.Errorf("expected nil request id, got %s", meta.ServiceRequestID)
			}
			if meta.ProposalDraft != nil {
				t.Error("expected no proposal draft")
			}
		})
	}
}
