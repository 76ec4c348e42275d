package leads

import (
	"context"
	"errors"
	"sync"
	"testing"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// memoryStore keeps leads in memory under a single lock and applies the
// same conditional-update contract as the SQL store: Accept transitions
// only an open lead whose request has no accepted sibling, in one atomic
// step.
type memoryStore struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]Lead
	contact    CustomerContact
	cancelErrs int
	cancelled  []uuid.UUID
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		leads:   make(map[uuid.UUID]Lead),
		contact: CustomerContact{Name: "Casey", Email: "casey@example.com", Phone: "+15125550100"},
	}
}

func (s *memoryStore) add(lead Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[lead.ID] = lead
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return Lead{}, apperr.NotFound(leadNotFoundMessage)
	}
	return lead, nil
}

func (s *memoryStore) ListByProvider(_ context.Context, providerID uuid.UUID) ([]Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Lead
	for _, lead := range s.leads {
		if lead.ProviderID == providerID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *memoryStore) GetCustomerContact(_ context.Context, _ uuid.UUID) (CustomerContact, error) {
	return s.contact, nil
}

func (s *memoryStore) AcceptedSiblingExists(_ context.Context, serviceRequestID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptedSiblingLocked(serviceRequestID), nil
}

func (s *memoryStore) acceptedSiblingLocked(serviceRequestID uuid.UUID) bool {
	for _, lead := range s.leads {
		if lead.ServiceRequestID == serviceRequestID && lead.Status == domain.StatusAccepted {
			return true
		}
	}
	return false
}

func (s *memoryStore) StageAcceptance(_ context.Context, leadID uuid.UUID, _ ProposalDraft, paymentIntentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[leadID]
	lead.PaymentIntentID = &paymentIntentID
	s.leads[leadID] = lead
	return nil
}

func (s *memoryStore) ClearStagedAcceptance(_ context.Context, leadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[leadID]
	lead.PaymentIntentID = nil
	s.leads[leadID] = lead
	return nil
}

func (s *memoryStore) Accept(_ context.Context, params AcceptParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[params.LeadID]
	if !ok {
		return false, apperr.NotFound(leadNotFoundMessage)
	}
	if lead.Status == domain.StatusAccepted {
		return false, nil
	}
	if s.acceptedSiblingLocked(lead.ServiceRequestID) {
		return false, apperr.Conflict(alreadyAcceptedMessage)
	}
	if !lead.Status.Open() {
		return false, apperr.Conflict("lead is not open")
	}
	lead.Status = domain.StatusAccepted
	lead.CustomerName = &params.CustomerName
	lead.CustomerEmail = &params.CustomerEmail
	lead.CustomerPhone = &params.CustomerPhone
	s.leads[params.LeadID] = lead
	return true, nil
}

func (s *memoryStore) Reject(_ context.Context, leadID uuid.UUID, reason domain.RejectReason, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[leadID]
	lead.Status = domain.StatusRejected
	lead.RejectReason = &reason
	s.leads[leadID] = lead
	return nil
}

func (s *memoryStore) CancelOpenSiblings(_ context.Context, serviceRequestID, acceptedLeadID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErrs > 0 {
		s.cancelErrs--
		return errors.New("connection reset")
	}
	for id, lead := range s.leads {
		if id == acceptedLeadID || lead.ServiceRequestID != serviceRequestID {
			continue
		}
		if lead.Status.Open() {
			lead.Status = domain.StatusCancelled
			s.leads[id] = lead
			s.cancelled = append(s.cancelled, id)
		}
	}
	return nil
}

func seedSiblings(store *memoryStore, requestID uuid.UUID, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		store.add(Lead{
			ID:               ids[i],
			ServiceRequestID: requestID,
			CustomerID:       uuid.New(),
			ProviderID:       uuid.New(),
			Status:           domain.StatusRouted,
			Position:         i + 1,
		})
	}
	return ids
}

func TestAcceptConcurrentSiblingsSingleWinner(t *testing.T) {
	store := newMemoryStore()
	requestID := uuid.New()
	ids := seedSiblings(store, requestID, 8)
	svc := NewService(store, logger.New("development"))

	var wg sync.WaitGroup
	results := make([]AcceptResult, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			results[i], errs[i] = svc.Accept(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	var winners int
	for i := range ids {
		if errs[i] == nil && results[i].Transitioned {
			winners++
			continue
		}
		if errs[i] == nil {
			t.Errorf("lead %d neither transitioned nor conflicted", i)
			continue
		}
		if apperr.GetKind(errs[i]) != apperr.KindConflict {
			t.Errorf("lead %d: unexpected error %v", i, errs[i])
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	var accepted int
	for _, id := range ids {
		lead, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if lead.Status == domain.StatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted leads in store = %d, want exactly 1", accepted)
	}
}

func TestAcceptDuplicateDeliveryIsNoOp(t *testing.T) {
	store := newMemoryStore()
	requestID := uuid.New()
	ids := seedSiblings(store, requestID, 2)
	svc := NewService(store, logger.New("development"))

	first, err := svc.Accept(context.Background(), ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !first.Transitioned {
		t.Fatal("first delivery should transition the lead")
	}
	if first.Lead.CustomerPhone == nil || *first.Lead.CustomerPhone != "+15125550100" {
		t.Error("accepted lead should carry the customer contact snapshot")
	}

	second, err := svc.Accept(context.Background(), ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if second.Transitioned {
		t.Error("redelivery must not report a fresh transition")
	}
	if second.Lead.Status != domain.StatusAccepted {
		t.Errorf("lead status = %s, want accepted", second.Lead.Status)
	}
}

func TestAcceptAfterSiblingWonConflicts(t *testing.T) {
	store := newMemoryStore()
	requestID := uuid.New()
	ids := seedSiblings(store, requestID, 2)
	svc := NewService(store, logger.New("development"))

	if _, err := svc.Accept(context.Background(), ids[0]); err != nil {
		t.Fatal(err)
	}

	// The winner's cleanup already cancelled the sibling, so re-open it to
	// exercise the sibling re-check on its own.
	store.add(Lead{ID: ids[1], ServiceRequestID: requestID, Status: domain.StatusRouted})

	_, err := svc.Accept(context.Background(), ids[1])
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for the losing sibling, got %v", err)
	}
}

func TestAcceptRedeliveryRetriesSiblingCleanup(t *testing.T) {
	store := newMemoryStore()
	store.cancelErrs = 1
	requestID := uuid.New()
	ids := seedSiblings(store, requestID, 3)
	svc := NewService(store, logger.New("development"))

	first, err := svc.Accept(context.Background(), ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !first.Transitioned {
		t.Fatal("first delivery should transition the lead")
	}
	if len(store.cancelled) != 0 {
		t.Fatal("cleanup should have failed on the first delivery")
	}

	if _, err := svc.Accept(context.Background(), ids[0]); err != nil {
		t.Fatal(err)
	}
	if len(store.cancelled) != 2 {
		t.Fatalf("cancelled siblings = %d, want 2", len(store.cancelled))
	}
	for _, id := range ids[1:] {
		lead, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if lead.Status != domain.StatusCancelled {
			t.Errorf("sibling %s status = %s, want cancelled", id, lead.Status)
		}
	}
}
