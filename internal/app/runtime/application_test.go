package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Boots the full stack on the in-memory store and checks the health and
// metrics endpoints respond.
func TestApplicationBootsWithoutDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "0")

	application, err := NewApplication()
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.app.Start(ctx); err != nil {
		t.Fatalf("start services: %v", err)
	}
	t.Cleanup(func() { _ = application.Shutdown(context.Background()) })

	rec := httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	application.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rec.Code)
	}
}

func TestInvalidSweepScheduleFailsFast(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOAN_SWEEP_SCHEDULE", "every now and then")

	if _, err := NewApplication(); err == nil {
		t.Fatal("bad cron expression should fail startup")
	}
}
