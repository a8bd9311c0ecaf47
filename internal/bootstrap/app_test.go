package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lecture-notes/internal/domain"
	"lecture-notes/internal/jobs"
	"lecture-notes/internal/pipeline"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records saved settings for assertions.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = append(s.saved, settings)
	s.settings = settings
	return nil
}

// fakePipeline allows injecting custom run behavior per test.
type fakePipeline struct {
	run func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Run delegates to injected function.
func (p *fakePipeline) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	if p.run == nil {
		return pipeline.Result{}, nil
	}
	return p.run(ctx, req)
}

func testSettings(outputDir string) domain.Settings {
	return domain.Settings{
		ModelSize:   domain.ModelSizeBase,
		OllamaModel: "llama3",
		ModelDir:    "/tmp/models",
		OutputDir:   outputDir,
	}
}

// TestStartRunEnforcesSingleFlight checks the one-active-run guard.
func TestStartRunEnforcesSingleFlight(t *testing.T) {
	store := &fakeStore{settings: testSettings(t.TempDir())}

	app := &App{
		Store: store,
		Runs:  jobs.NewManager(),
		Pipeline: &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
			<-ctx.Done()
			return pipeline.Result{}, ctx.Err()
		}},
		events: jobs.NewEventBus(100),
	}

	if _, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=a"}); err != nil {
		t.Fatalf("start first run: %v", err)
	}
	if _, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=b"}); !errors.Is(err, jobs.ErrRunAlreadyActive) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrRunAlreadyActive)
	}

	if err := app.CancelRun(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, app, domain.RunStatusCancelled)
}

// TestStartRunRejectsEmptySourceURL checks validation before run registration.
func TestStartRunRejectsEmptySourceURL(t *testing.T) {
	app := &App{
		Store:    &fakeStore{settings: testSettings(t.TempDir())},
		Runs:     jobs.NewManager(),
		Pipeline: &fakePipeline{},
		events:   jobs.NewEventBus(100),
	}

	if _, err := app.StartRun(domain.Request{SourceURL: "   "}); err == nil {
		t.Fatal("expected error for empty source URL")
	}
	if app.Runs.IsActive() {
		t.Fatal("no run should be registered after rejected request")
	}
	if events := app.RunEvents(0); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

// TestStartRunFillsRequestFromSettings checks defaulting of unset fields.
func TestStartRunFillsRequestFromSettings(t *testing.T) {
	outputDir := t.TempDir()
	store := &fakeStore{settings: testSettings(outputDir)}

	captured := make(chan pipeline.Request, 1)
	app := &App{
		Store: store,
		Runs:  jobs.NewManager(),
		Pipeline: &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
			captured <- req
			return pipeline.Result{}, nil
		}},
		events: jobs.NewEventBus(100),
	}

	if _, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=a"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitForStatus(t, app, domain.RunStatusDone)

	req := <-captured
	if req.ModelSize != domain.ModelSizeBase {
		t.Fatalf("model size = %s, want %s", req.ModelSize, domain.ModelSizeBase)
	}
	if req.OllamaModel != "llama3" {
		t.Fatalf("ollama model = %s, want llama3", req.OllamaModel)
	}
	if req.ModelDir != "/tmp/models" {
		t.Fatalf("model dir = %s, want /tmp/models", req.ModelDir)
	}
	if req.OutputDir != outputDir {
		t.Fatalf("output dir = %s, want %s", req.OutputDir, outputDir)
	}
}

// TestStartRunPublishesStatusAndResultEvents checks the happy-path event flow.
func TestStartRunPublishesStatusAndResultEvents(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "out")
	store := &fakeStore{settings: testSettings(outputDir)}

	app := &App{
		Store: store,
		Runs:  jobs.NewManager(),
		Pipeline: &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
			if req.OnStage != nil {
				req.OnStage(domain.StageDownload)
				req.OnStage(domain.StageTranscribe)
				req.OnStage(domain.StageSummarize)
			}
			if req.OnLog != nil {
				req.OnLog(pipeline.CommandLog{Command: "yt-dlp", ExitCode: 0})
				req.OnLog(pipeline.CommandLog{Command: "ollama", ExitCode: 0})
			}
			notesPath := filepath.Join(outputDir, "lecture_notes.txt")
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return pipeline.Result{}, err
			}
			if err := os.WriteFile(notesPath, []byte("# Notes"), 0o644); err != nil {
				return pipeline.Result{}, err
			}
			return pipeline.Result{
				NotesPath: notesPath,
				Notes:     "# Notes",
			}, nil
		}},
		events: jobs.NewEventBus(100),
	}

	if _, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=a"}); err != nil {
		t.Fatalf("start run: %v", err)
	}

	waitForStatus(t, app, domain.RunStatusDone)
	events := app.RunEvents(0)
	if len(events) == 0 {
		t.Fatal("expected events")
	}

	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	// One status event per state entered, no duplicates.
	for _, status := range []domain.RunStatus{
		domain.RunStatusDownloading,
		domain.RunStatusTranscribing,
		domain.RunStatusSummarizing,
		domain.RunStatusDone,
	} {
		if got := countStatusEvents(events, status); got != 1 {
			t.Fatalf("%s status events = %d, want 1", status, got)
		}
	}

	if got := app.LatestNotes(); got != "# Notes" {
		t.Fatalf("latest notes = %q, want %q", got, "# Notes")
	}
}

// countStatusEvents counts status events carrying the given run status.
func countStatusEvents(events []jobs.Event, status domain.RunStatus) int {
	count := 0
	for _, event := range events {
		if event.Type == jobs.EventTypeStatus && event.Status == status {
			count++
		}
	}
	return count
}

// TestStartRunPublishesFailureEvents checks error path emissions.
func TestStartRunPublishesFailureEvents(t *testing.T) {
	store := &fakeStore{settings: testSettings(t.TempDir())}

	app := &App{
		Store: store,
		Runs:  jobs.NewManager(),
		Pipeline: &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
			return pipeline.Result{}, &pipeline.PipelineError{
				Stage:   domain.StageDownload,
				Kind:    pipeline.FailureExternalTool,
				Message: "yt-dlp failed",
				CommandLog: pipeline.CommandLog{
					Command:  "yt-dlp",
					Args:     []string{"-f", "bestaudio"},
					ExitCode: 1,
					Stderr:   "ERROR: unsupported URL",
				},
				Err: errors.New("exit status 1"),
			}
		}},
		events: jobs.NewEventBus(100),
	}

	if _, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=a"}); err != nil {
		t.Fatalf("start run: %v", err)
	}

	waitForStatus(t, app, domain.RunStatusFailed)
	events := app.RunEvents(0)
	if len(events) == 0 {
		t.Fatal("expected events")
	}

	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeError)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
}

// TestStartRunAllowsNewRunAfterCompletion checks the reject-then-retry flow.
func TestStartRunAllowsNewRunAfterCompletion(t *testing.T) {
	store := &fakeStore{settings: testSettings(t.TempDir())}

	app := &App{
		Store: store,
		Runs:  jobs.NewManager(),
		Pipeline: &fakePipeline{run: func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
			return pipeline.Result{}, nil
		}},
		events: jobs.NewEventBus(100),
	}

	first, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=a"})
	if err != nil {
		t.Fatalf("start first run: %v", err)
	}
	waitForStatus(t, app, domain.RunStatusDone)

	second, err := app.StartRun(domain.Request{SourceURL: "https://example.com/watch?v=b"})
	if err != nil {
		t.Fatalf("start second run: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh run ID for the second run")
	}
	waitForStatus(t, app, domain.RunStatusDone)
}

// waitForStatus polls until the run reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.RunStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentRun().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentRun().Status, want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
