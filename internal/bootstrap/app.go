package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"lecture-notes/internal/config"
	"lecture-notes/internal/diagnostics"
	"lecture-notes/internal/domain"
	"lecture-notes/internal/jobs"
	"lecture-notes/internal/pipeline"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var notesDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Text files",
		Pattern:     "*.txt;*.md",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, runs, pipeline, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Runs        *jobs.Manager
	Pipeline    pipelineRunner
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	tools       config.ToolPaths

	mu              sync.Mutex
	activeRunID     string
	cancel          context.CancelFunc
	events          *jobs.EventBus
	runtimeCtx      context.Context
	latestNotes     string
	latestNotesPath string
}

// pipelineRunner isolates the notes pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".lecture-notes", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	tools := config.LoadToolPaths()
	checker := diagnostics.NewChecker(tools)
	report := checker.Run(settings)

	return &App{
		Settings: settings,
		Store:    store,
		Runs:     jobs.NewManager(),
		Pipeline: pipeline.NewPipeline(pipeline.Tools{
			YtDlp:   tools.YtDlp,
			FFmpeg:  tools.FFmpeg,
			Whisper: tools.Whisper,
			Ollama:  tools.Ollama,
		}),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		tools:       tools,
		events:      jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Lecture Notes Generator",
		Width:       900,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// GetModelSizes returns the selectable whisper model sizes.
func (a *App) GetModelSizes() []domain.ModelSize {
	return domain.ModelSizes()
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickOutputDirectory opens a native directory picker for artifacts.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// CopyNotesToClipboard copies the latest completed run's notes.
func (a *App) CopyNotesToClipboard() error {
	ctx, err := a.runtimeContext()
	if err != nil {
		return err
	}

	a.mu.Lock()
	notes := a.latestNotes
	a.mu.Unlock()
	if strings.TrimSpace(notes) == "" {
		return fmt.Errorf("no notes to copy")
	}

	return wailsruntime.ClipboardSetText(ctx, notes)
}

// SaveNotesAs exports the latest notes to a user-selected file.
func (a *App) SaveNotesAs() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	notes := a.latestNotes
	outputDir := a.Settings.OutputDir
	a.mu.Unlock()
	if strings.TrimSpace(notes) == "" {
		return "", fmt.Errorf("no notes to save")
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save lecture notes",
		DefaultDirectory: outputDir,
		DefaultFilename:  "lecture_notes.txt",
		Filters:          notesDialogFilter,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	if err := os.WriteFile(path, []byte(notes), 0o644); err != nil {
		return "", fmt.Errorf("write notes: %w", err)
	}
	return path, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	return a.Diagnostics, nil
}

// StartRun validates a submission, registers the run, and executes the
// pipeline asynchronously. At most one run is active at a time.
func (a *App) StartRun(request domain.Request) (domain.Run, error) {
	if strings.TrimSpace(request.SourceURL) == "" {
		return domain.Run{}, fmt.Errorf("source url is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Run{}, fmt.Errorf("load settings: %w", err)
	}
	request = applySettingsDefaults(request, settings)

	runID := uuid.NewString()
	if err := a.Runs.Start(runID); err != nil {
		return domain.Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeRunID = runID
	a.cancel = cancel
	a.Settings = settings
	a.mu.Unlock()

	go a.executeRun(ctx, runID, request, settings)
	return a.Runs.Current(), nil
}

// CancelRun cancels the currently active run, if any.
func (a *App) CancelRun() error {
	a.mu.Lock()
	cancel := a.cancel
	activeRunID := a.activeRunID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoActiveRun
	}

	cancel()
	if err := a.Runs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoActiveRun) {
		return err
	}

	if activeRunID != "" {
		a.publishStatus(activeRunID, domain.RunStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentRun returns current run metadata and status.
func (a *App) CurrentRun() domain.Run {
	return a.Runs.Current()
}

// RunEvents returns all events with sequence greater than sinceSeq.
func (a *App) RunEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LatestNotes returns the notes text of the most recent completed run.
func (a *App) LatestNotes() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latestNotes
}

// executeRun runs the pipeline and maps outcomes to run events.
func (a *App) executeRun(ctx context.Context, runID string, request domain.Request, settings domain.Settings) {
	req := pipeline.Request{
		SourceURL:   request.SourceURL,
		ModelSize:   request.ModelSize,
		OllamaModel: request.OllamaModel,
		ModelDir:    settings.ModelDir,
		OutputDir:   request.OutputDir,
		OnStage: func(stage domain.Stage) {
			status, ok := mapStageToStatus(stage)
			if !ok {
				return
			}
			if err := a.Runs.Transition(status); err == nil {
				a.publishEvent(jobs.Event{
					RunID:   runID,
					Type:    jobs.EventTypeStatus,
					Status:  status,
					Stage:   stage,
					Message: stageMessage(stage),
				})
			}
		},
		OnStageResult: func(result pipeline.StageResult) {
			a.publishEvent(jobs.Event{
				RunID:    runID,
				Type:     jobs.EventTypeLog,
				Stage:    result.Stage,
				Message:  fmt.Sprintf("Stage %s completed", result.Stage),
				Artifact: result.ArtifactPath,
			})
		},
		OnLog: func(log pipeline.CommandLog) {
			a.publishEvent(jobs.Event{
				RunID:    runID,
				Type:     jobs.EventTypeLog,
				Message:  "Command completed",
				Command:  log.Command,
				Args:     log.Args,
				ExitCode: log.ExitCode,
				Stdout:   log.Stdout,
				Stderr:   log.Stderr,
			})
		},
	}

	result, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Runs.Finish(domain.RunStatusCancelled)
			a.publishStatus(runID, domain.RunStatusCancelled, "Run cancelled")
			a.clearActiveRun(runID)
			return
		}

		_ = a.Runs.Finish(domain.RunStatusFailed)
		a.publishStatus(runID, domain.RunStatusFailed, "Run failed")
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Status:  domain.RunStatusFailed,
			Message: err.Error(),
		})

		var pipelineErr *pipeline.PipelineError
		if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
			a.publishEvent(jobs.Event{
				RunID:    runID,
				Type:     jobs.EventTypeLog,
				Stage:    pipelineErr.Stage,
				Message:  "Failed command",
				Command:  pipelineErr.CommandLog.Command,
				Args:     pipelineErr.CommandLog.Args,
				ExitCode: pipelineErr.CommandLog.ExitCode,
				Stdout:   pipelineErr.CommandLog.Stdout,
				Stderr:   pipelineErr.CommandLog.Stderr,
			})
		}

		a.clearActiveRun(runID)
		return
	}

	if cleanupErr := result.Cleanup(); cleanupErr != nil {
		a.publishEvent(jobs.Event{
			RunID:   runID,
			Type:    jobs.EventTypeError,
			Message: fmt.Sprintf("cleanup temporary files: %v", cleanupErr),
		})
	}

	a.mu.Lock()
	a.latestNotes = result.Notes
	a.latestNotesPath = result.NotesPath
	a.mu.Unlock()

	_ = a.Runs.Finish(domain.RunStatusDone)
	a.publishStatus(runID, domain.RunStatusDone, "Run completed")
	a.publishEvent(jobs.Event{
		RunID:     runID,
		Type:      jobs.EventTypeResult,
		Status:    domain.RunStatusDone,
		Message:   "Lecture notes generated",
		Artifact:  result.NotesPath,
		NotesPath: result.NotesPath,
	})
	a.clearActiveRun(runID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.RunStatus, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "run:event", published)
	}
}

// clearActiveRun clears cancellation handles for completed run IDs.
func (a *App) clearActiveRun(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeRunID == runID {
		a.activeRunID = ""
		a.cancel = nil
	}
}

// mapStageToStatus maps pipeline stages to run statuses.
func mapStageToStatus(stage domain.Stage) (domain.RunStatus, bool) {
	switch stage {
	case domain.StageDownload:
		return domain.RunStatusDownloading, true
	case domain.StageTranscribe:
		return domain.RunStatusTranscribing, true
	case domain.StageSummarize:
		return domain.RunStatusSummarizing, true
	default:
		return "", false
	}
}

// stageMessage returns the user-facing status line for a stage.
func stageMessage(stage domain.Stage) string {
	switch stage {
	case domain.StageDownload:
		return "Downloading audio…"
	case domain.StageTranscribe:
		return "Transcribing audio…"
	case domain.StageSummarize:
		return "Generating lecture notes…"
	default:
		return "Running " + string(stage)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// applySettingsDefaults fills unset request fields from persisted settings.
func applySettingsDefaults(request domain.Request, settings domain.Settings) domain.Request {
	request.SourceURL = strings.TrimSpace(request.SourceURL)
	if !request.ModelSize.Valid() {
		request.ModelSize = settings.ModelSize
	}
	if strings.TrimSpace(request.OllamaModel) == "" {
		request.OllamaModel = settings.OllamaModel
	}
	if strings.TrimSpace(request.OutputDir) == "" {
		request.OutputDir = settings.OutputDir
	}
	return request
}

// normalizeSettings trims user inputs and applies defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.OllamaModel = strings.TrimSpace(settings.OllamaModel)
	settings.ModelDir = strings.TrimSpace(settings.ModelDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)

	if !settings.ModelSize.Valid() {
		settings.ModelSize = defaults.ModelSize
	}
	if settings.OllamaModel == "" {
		settings.OllamaModel = defaults.OllamaModel
	}
	if settings.ModelDir == "" {
		settings.ModelDir = defaults.ModelDir
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
