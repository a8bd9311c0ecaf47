package jobs

import (
	"testing"

	"lecture-notes/internal/domain"
)

// TestManagerLifecycle verifies normal progression to done state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsActive() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsActive() {
		t.Fatal("expected active after start")
	}

	for _, status := range []domain.RunStatus{
		domain.RunStatusTranscribing,
		domain.RunStatusSummarizing,
		domain.RunStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.RunStatusDone {
		t.Fatalf("current status = %s, want done", current.Status)
	}
}

// TestManagerEnforcesSingleFlight checks concurrent submission rejection.
func TestManagerEnforcesSingleFlight(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Start("run-2"); err != ErrRunAlreadyActive {
		t.Fatalf("second start error = %v, want %v", err, ErrRunAlreadyActive)
	}
	if m.Current().ID != "run-1" {
		t.Fatalf("current run = %s, want run-1", m.Current().ID)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.RunStatusDone); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Transition(domain.RunStatusSummarizing); err == nil {
		t.Fatal("expected invalid transition error for stage skip")
	}
}

// TestManagerAcceptsNewRunAfterTerminalState checks reset-to-idle behavior.
func TestManagerAcceptsNewRunAfterTerminalState(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.RunStatusFailed); err != nil {
		t.Fatalf("fail transition: %v", err)
	}

	if err := m.Start("run-2"); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
	if m.Current().Status != domain.RunStatusDownloading {
		t.Fatalf("status = %s, want downloading", m.Current().Status)
	}
}

// TestManagerFinishForcesTerminalState verifies the outcome of a run
// releases the single-flight slot even when no stage was observed.
func TestManagerFinishForcesTerminalState(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Still in downloading, the initial state after Start.
	if err := m.Finish(domain.RunStatusDone); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if m.Current().Status != domain.RunStatusDone {
		t.Fatalf("status = %s, want done", m.Current().Status)
	}

	if err := m.Start("run-2"); err != nil {
		t.Fatalf("start after finish: %v", err)
	}
}

// TestManagerFinishRejectsNonTerminalStatus verifies only terminal
// statuses may be forced.
func TestManagerFinishRejectsNonTerminalStatus(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Finish(domain.RunStatusTranscribing); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

// TestManagerFinishWithoutRun verifies finish requires a registered run.
func TestManagerFinishWithoutRun(t *testing.T) {
	m := NewManager()
	if err := m.Finish(domain.RunStatusDone); err != ErrNoActiveRun {
		t.Fatalf("finish error = %v, want %v", err, ErrNoActiveRun)
	}
}

// TestManagerCancel verifies cancel behavior and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if m.Current().Status != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", m.Current().Status)
	}

	if err := m.Cancel(); err != ErrNoActiveRun {
		t.Fatalf("second cancel error = %v, want %v", err, ErrNoActiveRun)
	}
}
