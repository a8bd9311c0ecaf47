package domain

import "time"

// DiagnosticStatus indicates whether a single readiness check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is the result of checking one pipeline prerequisite: an
// external tool, the whisper model directory, or the output directory.
// Hint carries the remediation shown next to a failed check.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates the readiness checks run before a lecture
// can be processed.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Failed returns the checks that did not pass.
func (r DiagnosticReport) Failed() []DiagnosticItem {
	var failed []DiagnosticItem
	for _, item := range r.Items {
		if item.Status == DiagnosticStatusFail {
			failed = append(failed, item)
		}
	}
	return failed
}
