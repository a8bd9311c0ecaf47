package config

import (
	"os"
	"path/filepath"

	"lecture-notes/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelSize:   domain.ModelSizeBase,
		OllamaModel: "llama3",
		ModelDir:    filepath.Join(homeDir, ".lecture-notes", "models"),
		OutputDir:   filepath.Join(homeDir, "Documents", "LectureNotes"),
	}
}
