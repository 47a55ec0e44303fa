package flow

import (
	"testing"
	"time"
)

func TestSimpleTimerRunsScheduledFunction(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	done := make(chan struct{})
	id, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(done) })
	if err != nil {
		t.Fatalf("ScheduleAfter returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty timer ID")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled function did not run")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{}, 1)
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("ScheduleAfter returned error: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if timer.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", timer.Pending())
	}

	select {
	case <-fired:
		t.Error("cancelled function ran")
	case <-time.After(150 * time.Millisecond):
	}

	if err := timer.Cancel("timer_unknown"); err != nil {
		t.Errorf("Cancel of unknown ID returned error: %v", err)
	}
}

func TestSimpleTimerRejectsNilFunction(t *testing.T) {
	timer := NewSimpleTimer()
	if _, err := timer.ScheduleAfter(time.Second, nil); err == nil {
		t.Error("expected error for nil function")
	}
}

func TestSimpleTimerStop(t *testing.T) {
	timer := NewSimpleTimer()
	for i := 0; i < 3; i++ {
		if _, err := timer.ScheduleAfter(time.Hour, func() {}); err != nil {
			t.Fatalf("ScheduleAfter returned error: %v", err)
		}
	}
	if timer.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", timer.Pending())
	}
	timer.Stop()
	if timer.Pending() != 0 {
		t.Errorf("Pending() after Stop = %d, want 0", timer.Pending())
	}
}
