package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lecture-notes/internal/domain"
)

// whisperModelCatalog maps each selectable size to its multilingual
// whisper.cpp ggml model download.
var whisperModelCatalog = []domain.WhisperModelOption{
	{
		Size:        domain.ModelSizeTiny,
		Name:        "Tiny",
		FileName:    "ggml-tiny.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SizeLabel:   "~75 MB",
		Description: "Fastest model, lowest accuracy.",
	},
	{
		Size:        domain.ModelSizeBase,
		Name:        "Base",
		FileName:    "ggml-base.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed and quality, the default.",
	},
	{
		Size:        domain.ModelSizeSmall,
		Name:        "Small",
		FileName:    "ggml-small.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SizeLabel:   "~466 MB",
		Description: "Higher quality, slower transcription.",
	},
	{
		Size:        domain.ModelSizeMedium,
		Name:        "Medium",
		FileName:    "ggml-medium.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SizeLabel:   "~1.5 GB",
		Description: "High quality for long lectures.",
	},
	{
		Size:        domain.ModelSizeLarge,
		Name:        "Large",
		FileName:    "ggml-large-v3.bin",
		URL:         "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SizeLabel:   "~2.9 GB",
		Description: "Best quality, needs the most memory.",
	},
}

// GetWhisperModels returns the whisper.cpp model presets for one-click downloads.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)

	settings, settingsErr := a.loadSettingsForModelCatalog()
	modelDirs := resolveKnownModelDirs(settings, settingsErr == nil)
	markDownloadedModels(models, modelDirs)
	return models
}

// DownloadWhisperModel downloads the model for a size into the model directory.
func (a *App) DownloadWhisperModel(size domain.ModelSize) (domain.Settings, error) {
	if !size.Valid() {
		return domain.Settings{}, fmt.Errorf("unsupported model size: %q", size)
	}

	model, found := getWhisperModelBySize(size)
	if !found {
		return domain.Settings{}, fmt.Errorf("no catalog entry for model size: %s", size)
	}

	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	targetPath := filepath.Join(settings.ModelDir, model.FileName)
	if err := downloadURLToFile(targetPath, model.URL, modelDownloadTimeout); err != nil {
		return domain.Settings{}, fmt.Errorf("download model %s: %w", model.Name, err)
	}

	settings.ModelSize = size
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func getWhisperModelBySize(size domain.ModelSize) (domain.WhisperModelOption, bool) {
	for _, model := range whisperModelCatalog {
		if model.Size == size {
			return model, true
		}
	}
	return domain.WhisperModelOption{}, false
}

func (a *App) loadSettingsForModelCatalog() (domain.Settings, error) {
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return normalizeSettings(settings), nil
}

func resolveKnownModelDirs(settings domain.Settings, hasSettings bool) []string {
	seen := map[string]struct{}{}
	add := func(path string) {
		p := strings.TrimSpace(path)
		if p == "" {
			return
		}
		clean := filepath.Clean(p)
		if clean == "." {
			return
		}
		seen[clean] = struct{}{}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		add(localModelsDir(homeDir))
	}

	if hasSettings {
		add(settings.ModelDir)
	}

	result := make([]string, 0, len(seen))
	for dir := range seen {
		result = append(result, dir)
	}
	return result
}

func markDownloadedModels(models []domain.WhisperModelOption, modelDirs []string) {
	for i := range models {
		for _, dir := range modelDirs {
			candidate := filepath.Join(dir, models[i].FileName)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			models[i].Downloaded = true
			models[i].LocalPath = candidate
			break
		}
	}
}
