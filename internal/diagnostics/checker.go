package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"lecture-notes/internal/config"
	"lecture-notes/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	tools config.ToolPaths

	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(tools config.ToolPaths) *Checker {
	return &Checker{
		tools:      tools,
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("yt-dlp", c.tools.YtDlp, "Install it with: pip install yt-dlp"),
		c.checkTool("ffmpeg", c.tools.FFmpeg, "Install ffmpeg and ensure the binary is on PATH."),
		c.checkTool("whisper.cpp", c.tools.Whisper, "Install whisper.cpp and ensure the binary is on PATH."),
		c.checkTool("ollama", c.tools.Ollama, "Install Ollama from ollama.com and ensure it is on PATH."),
		c.checkModelDir(settings.ModelDir, settings.ModelSize),
		c.checkOutputDir(settings.OutputDir),
	}

	report := domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
	report.HasFailures = len(report.Failed()) > 0
	return report
}

// checkTool verifies a required CLI executable is resolvable.
func (c *Checker) checkTool(name, binary, hint string) domain.DiagnosticItem {
	if strings.TrimSpace(binary) == "" {
		binary = name
	}

	path, err := c.lookPath(binary)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", binary),
			Hint:    hint,
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelDir validates the model directory holds a model for the
// configured size.
func (c *Checker) checkModelDir(modelDir string, size domain.ModelSize) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model_dir",
		Name: "Whisper model",
	}

	if strings.TrimSpace(modelDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model directory is empty."
		item.Hint = "Set a directory containing whisper ggml model files."
		return item
	}
	if !size.Valid() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unsupported model size: %q", size)
		item.Hint = "Choose one of tiny, base, small, medium, large."
		return item
	}

	if _, err := c.stat(modelDir); err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model directory does not exist: %s", modelDir)
		} else {
			item.Message = fmt.Sprintf("Cannot access model directory: %s", modelDir)
		}
		item.Hint = fmt.Sprintf("Download the %s whisper model from the Models panel.", size)
		return item
	}

	entries, err := c.readDir(modelDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelDir)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	prefix := "ggml-" + string(size)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasPrefix(name, prefix) && (strings.HasSuffix(name, ".bin") || strings.HasSuffix(name, ".gguf")) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Found %s model: %s", size, entry.Name())
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No %s model found in: %s", size, modelDir)
	item.Hint = fmt.Sprintf("Download the %s whisper model from the Models panel.", size)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where artifacts can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for generated notes."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	tools config.ToolPaths,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		tools:      tools,
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
