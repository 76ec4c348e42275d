package fallback

import (
	"context"
	"testing"
	"time"

	"leadmarket_backend/internal/tasks"
	"leadmarket_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func newTestClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()

	srv := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: srv.Addr()}

	client := NewClient(opt, "scheduler", logger.New("development"))
	t.Cleanup(func() { client.Close() })

	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { inspector.Close() })

	return client, inspector
}

func TestScheduleConversionCheck(t *testing.T) {
	client, inspector := newTestClient(t)

	requestID, leadID := uuid.New(), uuid.New()
	deadline := time.Now().Add(24 * time.Hour)

	if err := client.ScheduleConversionCheck(context.Background(), requestID, leadID, deadline); err != nil {
		t.Fatalf("ScheduleConversionCheck: %v", err)
	}

	scheduled, err := inspector.ListScheduledTasks("scheduler")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(scheduled))
	}

	task := scheduled[0]
	if task.Type != tasks.TypeConversionCheck {
		t.Errorf("task type = %s, want %s", task.Type, tasks.TypeConversionCheck)
	}

	payload, err := tasks.ParseConversionCheck(asynq.NewTask(task.Type, task.Payload))
	if err != nil {
		t.Fatalf("ParseConversionCheck: %v", err)
	}
	if payload.ServiceRequestID != requestID || payload.LeadID != leadID {
		t.Error("payload does not round-trip the ids")
	}

	// The task must not run before the window closes.
	if task.NextProcessAt.Before(time.Now().Add(23 * time.Hour)) {
		t.Errorf("task scheduled too early: %s", task.NextProcessAt)
	}
}

func TestEnqueueBusinessGeocodeIsDeduplicated(t *testing.T) {
	client, inspector := newTestClient(t)
	businessID := uuid.New()

	for i := 0; i < 3; i++ {
		if err := client.EnqueueBusinessGeocode(context.Background(), businessID); err != nil {
			t.Fatalf("EnqueueBusinessGeocode #%d: %v", i+1, err)
		}
	}

	pending, err := inspector.ListPendingTasks("scheduler")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 deduplicated task, got %d", len(pending))
	}
	if pending[0].Type != tasks.TypeBusinessGeocode {
		t.Errorf("task type = %s, want %s", pending[0].Type, tasks.TypeBusinessGeocode)
	}
}
