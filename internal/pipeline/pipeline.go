package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lecture-notes/internal/domain"
)

// Fixed artifact names inside the output directory. Re-running the
// pipeline overwrites them; there is no versioning.
const (
	audioFileName      = "lecture_audio.mp3"
	transcriptFileName = "transcript.txt"
	notesFileName      = "lecture_notes.txt"
)

// Tools names the external binaries the pipeline invokes.
type Tools struct {
	YtDlp   string
	FFmpeg  string
	Whisper string
	Ollama  string
}

// DefaultTools resolves every binary through PATH.
func DefaultTools() Tools {
	return Tools{
		YtDlp:   "yt-dlp",
		FFmpeg:  "ffmpeg",
		Whisper: "whisper.cpp",
		Ollama:  "ollama",
	}
}

// Request contains inputs and execution callbacks for one run.
type Request struct {
	SourceURL   string
	ModelSize   domain.ModelSize
	OllamaModel string
	ModelDir    string
	OutputDir   string

	OnStage       func(stage domain.Stage)
	OnStageResult func(result StageResult)
	OnLog         func(log CommandLog)
}

// Result contains artifact paths, the generated notes, and command logs.
type Result struct {
	AudioPath      string
	TranscriptPath string
	NotesPath      string
	Transcript     string
	Notes          string
	Stages         []StageResult
	Logs           []CommandLog
	tempDir        string
}

// Cleanup removes temporary transcription workspace created by Run.
func (r *Result) Cleanup() error {
	if r == nil || r.tempDir == "" {
		return nil
	}

	if err := os.RemoveAll(r.tempDir); err != nil {
		return err
	}
	r.tempDir = ""
	return nil
}

// Pipeline chains yt-dlp download, whisper.cpp transcription, and ollama
// summarization. Stages run strictly in order; each consumes the artifact
// written by its predecessor.
type Pipeline struct {
	tools  Tools
	runner commandRunner
	models *modelCache

	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	stat      func(name string) (os.FileInfo, error)
	mkdirAll  func(path string, perm os.FileMode) error
	readFile  func(name string) ([]byte, error)
	writeFile func(name string, data []byte, perm os.FileMode) error
	remove    func(name string) error
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline(tools Tools) *Pipeline {
	return &Pipeline{
		tools:     tools,
		runner:    &execRunner{},
		models:    newModelCache(),
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		stat:      os.Stat,
		mkdirAll:  os.MkdirAll,
		readFile:  os.ReadFile,
		writeFile: os.WriteFile,
		remove:    os.Remove,
	}
}

// Run performs download, transcription, and summarization in order. The
// first failing stage aborts the run; later stages are never invoked.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if err := p.validate(req); err != nil {
		return Result{}, err
	}

	if err := p.mkdirAll(req.OutputDir, 0o755); err != nil {
		return Result{}, &PipelineError{
			Stage:   domain.StageDownload,
			Kind:    FailureFilesystem,
			Message: fmt.Sprintf("cannot create output directory: %s", req.OutputDir),
			Err:     err,
		}
	}

	result := Result{
		AudioPath:      filepath.Join(req.OutputDir, audioFileName),
		TranscriptPath: filepath.Join(req.OutputDir, transcriptFileName),
		NotesPath:      filepath.Join(req.OutputDir, notesFileName),
	}

	emitStage(req.OnStage, domain.StageDownload)
	if perr := p.runDownload(ctx, req, result.AudioPath, &result); perr != nil {
		return Result{}, perr
	}
	completeStage(req.OnStageResult, &result, domain.StageDownload, result.AudioPath)

	emitStage(req.OnStage, domain.StageTranscribe)
	transcript, perr := p.runTranscribe(ctx, req, result.AudioPath, result.TranscriptPath, &result)
	if perr != nil {
		p.discardTempDir(&result)
		return Result{}, perr
	}
	result.Transcript = strings.TrimSpace(transcript)
	completeStage(req.OnStageResult, &result, domain.StageTranscribe, result.TranscriptPath)

	emitStage(req.OnStage, domain.StageSummarize)
	notes, perr := p.runSummarize(ctx, req, transcript, result.NotesPath, &result)
	if perr != nil {
		p.discardTempDir(&result)
		return Result{}, perr
	}
	result.Notes = notes
	completeStage(req.OnStageResult, &result, domain.StageSummarize, result.NotesPath)

	return result, nil
}

// validate rejects malformed requests before any side effect occurs.
func (p *Pipeline) validate(req Request) *PipelineError {
	if strings.TrimSpace(req.SourceURL) == "" {
		return &PipelineError{
			Stage:   domain.StageDownload,
			Kind:    FailureInvalidInput,
			Message: "source url is required",
		}
	}
	if !req.ModelSize.Valid() {
		return &PipelineError{
			Stage:   domain.StageTranscribe,
			Kind:    FailureInvalidInput,
			Message: fmt.Sprintf("unsupported whisper model size: %q", req.ModelSize),
		}
	}
	if strings.TrimSpace(req.ModelDir) == "" {
		return &PipelineError{
			Stage:   domain.StageTranscribe,
			Kind:    FailureInvalidInput,
			Message: "model directory is required",
		}
	}
	if strings.TrimSpace(req.OllamaModel) == "" {
		return &PipelineError{
			Stage:   domain.StageSummarize,
			Kind:    FailureInvalidInput,
			Message: "summarizer model name is required",
		}
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return &PipelineError{
			Stage:   domain.StageDownload,
			Kind:    FailureInvalidInput,
			Message: "output directory is required",
		}
	}
	return nil
}

// runDownload invokes yt-dlp and verifies the audio artifact exists.
func (p *Pipeline) runDownload(ctx context.Context, req Request, audioPath string, result *Result) *PipelineError {
	// Remove the previous artifact so yt-dlp cannot skip the download
	// as already completed.
	if err := p.remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PipelineError{
			Stage:   domain.StageDownload,
			Kind:    FailureFilesystem,
			Message: fmt.Sprintf("cannot remove stale audio artifact: %s", audioPath),
			Err:     err,
		}
	}

	args := buildYtDlpArgs(req.SourceURL, audioPath)
	cmdResult, runErr := p.runner.Run(ctx, "", p.tools.YtDlp, args...)
	log := CommandLog{
		Command:  p.tools.YtDlp,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	result.Logs = append(result.Logs, log)
	emitLog(req.OnLog, log)
	if runErr != nil {
		if isToolMissing(runErr) {
			return &PipelineError{
				Stage:      domain.StageDownload,
				Kind:       FailureToolMissing,
				Message:    "yt-dlp not found. Install it with: pip install yt-dlp",
				CommandLog: log,
				Err:        runErr,
			}
		}
		return &PipelineError{
			Stage:      domain.StageDownload,
			Kind:       FailureExternalTool,
			Message:    failureMessage("yt-dlp audio download failed", cmdResult.Stderr),
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := p.stat(audioPath); err != nil {
		return &PipelineError{
			Stage:      domain.StageDownload,
			Kind:       FailureExternalTool,
			Message:    "yt-dlp completed but the audio file is missing",
			CommandLog: log,
			Err:        err,
		}
	}
	return nil
}

// runTranscribe converts the audio to 16 kHz mono WAV, runs whisper.cpp,
// and returns the transcript text written to transcriptPath.
func (p *Pipeline) runTranscribe(ctx context.Context, req Request, audioPath, transcriptPath string, result *Result) (string, *PipelineError) {
	modelPath, err := p.models.resolve(p.stat, req.ModelDir, req.ModelSize)
	if err != nil {
		return "", &PipelineError{
			Stage:   domain.StageTranscribe,
			Kind:    FailureToolMissing,
			Message: err.Error(),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "lecture-notes-*")
	if err != nil {
		return "", &PipelineError{
			Stage:   domain.StageTranscribe,
			Kind:    FailureFilesystem,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	result.tempDir = tempDir

	wavPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	args := buildFFmpegArgs(audioPath, wavPath)
	cmdResult, runErr := p.runner.Run(ctx, "", p.tools.FFmpeg, args...)
	log := CommandLog{
		Command:  p.tools.FFmpeg,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	result.Logs = append(result.Logs, log)
	emitLog(req.OnLog, log)
	if runErr != nil {
		kind := FailureExternalTool
		message := failureMessage("ffmpeg audio conversion failed", cmdResult.Stderr)
		if isToolMissing(runErr) {
			kind = FailureToolMissing
			message = "ffmpeg not found. Install it and ensure it is on PATH"
		}
		return "", &PipelineError{
			Stage:      domain.StageTranscribe,
			Kind:       kind,
			Message:    message,
			CommandLog: log,
			Err:        runErr,
		}
	}

	textBase := strings.TrimSuffix(transcriptPath, filepath.Ext(transcriptPath))
	whisperArgs := buildWhisperArgs(modelPath, wavPath, textBase)
	whisperResult, runErr := p.runner.Run(ctx, "", p.tools.Whisper, whisperArgs...)
	whisperLog := CommandLog{
		Command:  p.tools.Whisper,
		Args:     whisperArgs,
		ExitCode: whisperResult.ExitCode,
		Stdout:   whisperResult.Stdout,
		Stderr:   whisperResult.Stderr,
	}
	result.Logs = append(result.Logs, whisperLog)
	emitLog(req.OnLog, whisperLog)
	if runErr != nil {
		kind := FailureExternalTool
		message := failureMessage("whisper.cpp transcription failed", whisperResult.Stderr)
		if isToolMissing(runErr) {
			kind = FailureToolMissing
			message = "whisper.cpp not found. Install it and ensure it is on PATH"
		}
		return "", &PipelineError{
			Stage:      domain.StageTranscribe,
			Kind:       kind,
			Message:    message,
			CommandLog: whisperLog,
			Err:        runErr,
		}
	}

	if _, err := p.stat(transcriptPath); err != nil {
		return "", &PipelineError{
			Stage:      domain.StageTranscribe,
			Kind:       FailureExternalTool,
			Message:    "whisper.cpp completed but the transcript file is missing",
			CommandLog: whisperLog,
			Err:        err,
		}
	}

	content, err := p.readFile(transcriptPath)
	if err != nil {
		return "", &PipelineError{
			Stage:      domain.StageTranscribe,
			Kind:       FailureFilesystem,
			Message:    fmt.Sprintf("failed to read transcript file: %s", transcriptPath),
			CommandLog: whisperLog,
			Err:        err,
		}
	}

	return string(content), nil
}

// runSummarize pipes the prompt into ollama and writes the notes artifact.
func (p *Pipeline) runSummarize(ctx context.Context, req Request, transcript, notesPath string, result *Result) (string, *PipelineError) {
	prompt := buildNotesPrompt(transcript)
	args := []string{"run", req.OllamaModel}
	cmdResult, runErr := p.runner.Run(ctx, prompt, p.tools.Ollama, args...)
	log := CommandLog{
		Command:  p.tools.Ollama,
		Args:     args,
		ExitCode: cmdResult.ExitCode,
		Stdout:   cmdResult.Stdout,
		Stderr:   cmdResult.Stderr,
	}
	result.Logs = append(result.Logs, log)
	emitLog(req.OnLog, log)
	if runErr != nil {
		if isToolMissing(runErr) {
			return "", &PipelineError{
				Stage:      domain.StageSummarize,
				Kind:       FailureToolMissing,
				Message:    "ollama not found. Install Ollama and ensure it is on PATH",
				CommandLog: log,
				Err:        runErr,
			}
		}
		return "", &PipelineError{
			Stage:      domain.StageSummarize,
			Kind:       FailureExternalTool,
			Message:    failureMessage("ollama note generation failed", cmdResult.Stderr),
			CommandLog: log,
			Err:        runErr,
		}
	}

	notes := cmdResult.Stdout
	if err := p.writeFile(notesPath, []byte(notes), 0o644); err != nil {
		return "", &PipelineError{
			Stage:      domain.StageSummarize,
			Kind:       FailureFilesystem,
			Message:    fmt.Sprintf("failed to write notes file: %s", notesPath),
			CommandLog: log,
			Err:        err,
		}
	}

	return notes, nil
}

// discardTempDir removes the transcription workspace after a failure.
func (p *Pipeline) discardTempDir(result *Result) {
	if result.tempDir == "" {
		return
	}
	_ = p.removeAll(result.tempDir)
	result.tempDir = ""
}

// emitStage forwards stage updates when a callback is configured.
func emitStage(cb func(stage domain.Stage), stage domain.Stage) {
	if cb != nil {
		cb(stage)
	}
}

// emitLog forwards command logs when a callback is configured.
func emitLog(cb func(log CommandLog), log CommandLog) {
	if cb != nil {
		cb(log)
	}
}

// completeStage records a stage success and notifies the callback.
func completeStage(cb func(result StageResult), result *Result, stage domain.Stage, artifact string) {
	stageResult := StageResult{Stage: stage, ArtifactPath: artifact}
	result.Stages = append(result.Stages, stageResult)
	if cb != nil {
		cb(stageResult)
	}
}

// failureMessage appends trimmed tool diagnostics to a short summary.
func failureMessage(summary, stderr string) string {
	diag := strings.TrimSpace(stderr)
	if diag == "" {
		return summary
	}
	return summary + ": " + diag
}

// buildYtDlpArgs selects best audio, MP3 extraction, and an explicit
// output path for the user-supplied URL.
func buildYtDlpArgs(sourceURL, audioPath string) []string {
	return []string{
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "mp3",
		"-o", audioPath,
		sourceURL,
	}
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for txt transcript export.
func buildWhisperArgs(modelPath, audioPath, textBase string) []string {
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
	}
}

// NewPipelineForTests constructs a pipeline with an injectable runner.
func NewPipelineForTests(tools Tools, runner commandRunner) *Pipeline {
	p := NewPipeline(tools)
	p.runner = runner
	return p
}
