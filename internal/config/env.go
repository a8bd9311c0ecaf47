package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ToolPaths holds the external binaries invoked by the pipeline. Each field
// can be overridden through the environment or a .env file next to the app.
type ToolPaths struct {
	YtDlp   string
	FFmpeg  string
	Whisper string
	Ollama  string
}

// LoadToolPaths reads binary overrides from .env and the process environment.
// Missing overrides fall back to the plain command names resolved via PATH.
func LoadToolPaths() ToolPaths {
	// Absence of a .env file is the normal case.
	_ = godotenv.Load()

	return ToolPaths{
		YtDlp:   envOrDefault("YTDLP_BIN", "yt-dlp"),
		FFmpeg:  envOrDefault("FFMPEG_BIN", "ffmpeg"),
		Whisper: envOrDefault("WHISPER_BIN", "whisper.cpp"),
		Ollama:  envOrDefault("OLLAMA_BIN", "ollama"),
	}
}

// envOrDefault returns a trimmed environment value or the fallback.
func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
