package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu         sync.Mutex
	pref       Preference
	prefByUser map[uuid.UUID]Preference
	prefErr    error
	created    []Audit
	retries    []int
	sentIDs    []uuid.UUID
	failedErrs []string
}

func (f *fakeStore) CreateAudit(_ context.Context, userID *uuid.UUID, t Type, recipient, subject string, maxRetries int) (Audit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	audit := Audit{ID: uuid.New(), UserID: userID, Type: t, Recipient: recipient, Subject: subject, Status: AuditPending, MaxRetries: maxRetries}
	f.created = append(f.created, audit)
	return audit, nil
}

func (f *fakeStore) MarkRetrying(_ context.Context, _ uuid.UUID, retryCount int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, retryCount)
	return nil
}

func (f *fakeStore) MarkSent(_ context.Context, auditID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentIDs = append(f.sentIDs, auditID)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, _ uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedErrs = append(f.failedErrs, lastError)
	return nil
}

func (f *fakeStore) GetOrCreatePreference(_ context.Context, userID uuid.UUID) (Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pref, ok := f.prefByUser[userID]; ok {
		return pref, nil
	}
	return f.pref, f.prefErr
}

type fakeSender struct {
	mu         sync.Mutex
	failures   int
	calls      int
	recipients []string
	lastTo     string
	lastSubj   string
	lastHTML   string
}

func (f *fakeSender) Send(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.recipients = append(f.recipients, to)
	f.lastTo = to
	f.lastSubj = subject
	f.lastHTML = html
	if f.calls <= f.failures {
		return errors.New("smtp unavailable")
	}
	return nil
}

type staticConfig struct {
	maxRetries int
	baseDelay  time.Duration
}

func (c staticConfig) GetAppBaseURL() string                 { return "https://app.leadmarket.test" }
func (c staticConfig) GetEmailMaxRetries() int               { return c.maxRetries }
func (c staticConfig) GetEmailRetryBaseDelay() time.Duration { return c.baseDelay }

func allowAll(userID uuid.UUID) Preference {
	return Preference{
		UserID:               userID,
		EmailEnabled:         true,
		LeadsEnabled:         true,
		PaymentsEnabled:      true,
		SubscriptionsEnabled: true,
		UnsubscribeToken:     "tok123",
	}
}

func newTestService(store *fakeStore, sender *fakeSender, maxRetries int) (*Service, *[]time.Duration) {
	svc := NewService(store, sender, staticConfig{maxRetries: maxRetries, baseDelay: 100 * time.Millisecond}, logger.New("development"))
	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	return svc, &slept
}

func leadInput(userID uuid.UUID) SendInput {
	return SendInput{
		UserID:         &userID,
		RecipientEmail: "pro@example.com",
		Type:           TypeLeadAssigned,
		Data: TemplateData{
			"providerName": "Ada",
			"category":     "plumbing",
			"city":         "Austin",
			"leadCost":     "25.00",
			"leadURL":      "https://app.leadmarket.test/leads/abc",
		},
	}
}

func TestSendFirstAttempt(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{pref: allowAll(userID)}
	sender := &fakeSender{}
	svc, slept := newTestService(store, sender, 3)

	result, err := svc.Send(context.Background(), leadInput(userID))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != ResultSent {
		t.Fatalf("result = %s, want sent", result)
	}
	if sender.calls != 1 {
		t.Fatalf("sender calls = %d, want 1", sender.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("slept %d times on first-attempt success", len(*slept))
	}
	if len(store.created) != 1 || len(store.sentIDs) != 1 {
		t.Fatalf("audit trail: created=%d sent=%d", len(store.created), len(store.sentIDs))
	}
	if !strings.Contains(sender.lastSubj, "plumbing") {
		t.Fatalf("subject %q missing category", sender.lastSubj)
	}
	if !strings.Contains(sender.lastHTML, "tok123") {
		t.Fatalf("body missing unsubscribe token")
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{pref: allowAll(userID)}
	sender := &fakeSender{failures: 2}
	svc, slept := newTestService(store, sender, 3)

	result, err := svc.Send(context.Background(), leadInput(userID))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != ResultSent {
		t.Fatalf("result = %s, want sent", result)
	}
	if sender.calls != 3 {
		t.Fatalf("sender calls = %d, want 3", sender.calls)
	}
	if len(store.retries) != 2 || store.retries[0] != 1 || store.retries[1] != 2 {
		t.Fatalf("retry counts = %v", store.retries)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != 2 || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Fatalf("backoff = %v, want %v", *slept, want)
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{pref: allowAll(userID)}
	sender := &fakeSender{failures: 100}
	svc, _ := newTestService(store, sender, 2)

	result, err := svc.Send(context.Background(), leadInput(userID))
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if result != ResultFailed {
		t.Fatalf("result = %s, want failed", result)
	}
	if sender.calls != 3 {
		t.Fatalf("sender calls = %d, want 3", sender.calls)
	}
	if len(store.failedErrs) != 1 || !strings.Contains(store.failedErrs[0], "smtp unavailable") {
		t.Fatalf("failed audit = %v", store.failedErrs)
	}
	if len(store.sentIDs) != 0 {
		t.Fatal("audit marked sent despite failure")
	}
}

func TestSendSkippedByPreference(t *testing.T) {
	userID := uuid.New()
	pref := allowAll(userID)
	pref.LeadsEnabled = false
	store := &fakeStore{pref: pref}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 3)

	result, err := svc.Send(context.Background(), leadInput(userID))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != ResultSkipped {
		t.Fatalf("result = %s, want skipped", result)
	}
	if sender.calls != 0 {
		t.Fatal("sender invoked despite disabled preference")
	}
	if len(store.created) != 0 {
		t.Fatal("audit written for a skipped notification")
	}
}

func TestSendGlobalSwitchWins(t *testing.T) {
	userID := uuid.New()
	pref := allowAll(userID)
	pref.EmailEnabled = false
	store := &fakeStore{pref: pref}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 3)

	result, err := svc.Send(context.Background(), leadInput(userID))
	if err != nil || result != ResultSkipped {
		t.Fatalf("result = %s, err = %v, want skipped", result, err)
	}
}

func TestSendWithoutUserSkipsPreferences(t *testing.T) {
	store := &fakeStore{prefErr: errors.New("must not be called")}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 3)

	result, err := svc.Send(context.Background(), SendInput{
		RecipientEmail: "customer@example.com",
		Type:           TypeWorkOrderCreated,
		Data:           TemplateData{"price": "300.00", "workOrderURL": "https://app.leadmarket.test/work-orders/x"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result != ResultSent {
		t.Fatalf("result = %s, want sent", result)
	}
	if sender.lastTo != "customer@example.com" {
		t.Fatalf("recipient = %s", sender.lastTo)
	}
}

func TestSendUnknownType(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{pref: allowAll(userID)}
	sender := &fakeSender{}
	svc, _ := newTestService(store, sender, 3)

	_, err := svc.Send(context.Background(), SendInput{
		UserID:         &userID,
		RecipientEmail: "pro@example.com",
		Type:           Type("made_up"),
	})
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	if apperr.GetKind(err) != apperr.KindInternal {
		t.Fatalf("kind = %v, want internal", apperr.GetKind(err))
	}
	if len(store.created) != 0 {
		t.Fatal("audit written for an unrenderable notification")
	}
}
