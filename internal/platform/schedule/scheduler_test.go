package schedule

import (
	"context"
	"testing"
)

func TestAddRejectsInvalidSpec(t *testing.T) {
	s := New("test", nil)
	if err := s.Add("not-a-spec", func(context.Context) {}); err == nil {
		t.Fatal("invalid cron spec should be rejected")
	}
}

func TestStartStop(t *testing.T) {
	s := New("test", nil)
	if err := s.Add("@daily", func(context.Context) {}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
