package pipeline

import (
	"fmt"

	"lecture-notes/internal/domain"
)

// FailureKind classifies stage failures for UI hints and tests.
type FailureKind string

const (
	FailureToolMissing  FailureKind = "tool_missing"
	FailureExternalTool FailureKind = "external_tool"
	FailureInvalidInput FailureKind = "invalid_input"
	FailureFilesystem   FailureKind = "filesystem"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// StageResult records one successfully completed stage and its artifact.
type StageResult struct {
	Stage        domain.Stage `json:"stage"`
	ArtifactPath string       `json:"artifactPath"`
}

// PipelineError is a stage-aware error with optional command context. The
// message keeps the external tool's diagnostic output intact.
type PipelineError struct {
	Stage      domain.Stage `json:"stage"`
	Kind       FailureKind  `json:"kind"`
	Message    string       `json:"message"`
	CommandLog CommandLog   `json:"commandLog"`
	Err        error        `json:"-"`
}

// Error formats pipeline failures for logs and UI.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
