package jobs

import (
	"errors"
	"fmt"
	"sync"

	"lecture-notes/internal/domain"
)

// ErrRunAlreadyActive is returned when submitting while a run is active.
var ErrRunAlreadyActive = errors.New("run already active")

// ErrNoActiveRun is returned when cancel is requested for idle state.
var ErrNoActiveRun = errors.New("no active run")

// Manager tracks the single allowed active run and its transitions. The
// three stages share fixed artifact paths in one output directory, so at
// most one run may execute per process.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			Status: domain.RunStatusIdle,
		},
	}
}

// Start registers a new run and moves it to the downloading state.
func (m *Manager) Start(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrRunAlreadyActive
	}

	m.current = domain.Run{
		ID:     runID,
		Status: domain.RunStatusDownloading,
	}
	return nil
}

// Transition validates and applies state transitions for the current run.
func (m *Manager) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.RunStatusIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Finish forces the current run into a terminal state. Unlike Transition
// it does not require the run to have reached the preceding stage, so the
// pipeline outcome always releases the single-flight slot.
func (m *Manager) Finish(status domain.RunStatus) error {
	switch status {
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
	default:
		return fmt.Errorf("not a terminal status: %s", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return ErrNoActiveRun
	}
	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
}

// IsActive reports whether the current state is an executing stage.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.Status) {
		return ErrNoActiveRun
	}
	m.current.Status = domain.RunStatusCancelled
	return nil
}

// isActive checks if a status represents active pipeline execution.
func isActive(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusDownloading, domain.RunStatusTranscribing, domain.RunStatusSummarizing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusDownloading
	case domain.RunStatusDownloading:
		return to == domain.RunStatusTranscribing || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusTranscribing:
		return to == domain.RunStatusSummarizing || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusSummarizing:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		return to == domain.RunStatusDownloading || to == domain.RunStatusIdle
	default:
		return false
	}
}
