package domain

// RunStatus tracks each pipeline stage for a single notes-generation run.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusDownloading  RunStatus = "downloading"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusSummarizing  RunStatus = "summarizing"
	RunStatusDone         RunStatus = "done"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// Stage identifies one of the three pipeline steps.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
)

// ModelSize selects a whisper model preset.
type ModelSize string

const (
	ModelSizeTiny   ModelSize = "tiny"
	ModelSizeBase   ModelSize = "base"
	ModelSizeSmall  ModelSize = "small"
	ModelSizeMedium ModelSize = "medium"
	ModelSizeLarge  ModelSize = "large"
)

// ModelSizes lists the selectable whisper model sizes, smallest first.
func ModelSizes() []ModelSize {
	return []ModelSize{ModelSizeTiny, ModelSizeBase, ModelSizeSmall, ModelSizeMedium, ModelSizeLarge}
}

// Valid reports whether the size is one of the supported presets.
func (s ModelSize) Valid() bool {
	switch s {
	case ModelSizeTiny, ModelSizeBase, ModelSizeSmall, ModelSizeMedium, ModelSizeLarge:
		return true
	default:
		return false
	}
}

// Request is one notes-generation submission. Immutable once accepted.
type Request struct {
	SourceURL   string    `json:"sourceUrl"`
	ModelSize   ModelSize `json:"modelSize"`
	OllamaModel string    `json:"ollamaModel"`
	OutputDir   string    `json:"outputDir"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelSize   ModelSize `json:"modelSize"`
	OllamaModel string    `json:"ollamaModel"`
	ModelDir    string    `json:"modelDir"`
	OutputDir   string    `json:"outputDir"`
}

// Run stores the current run identity and lifecycle status.
type Run struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`
}
