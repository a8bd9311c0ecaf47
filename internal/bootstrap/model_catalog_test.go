package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"lecture-notes/internal/domain"
)

// TestGetWhisperModelBySize verifies known model lookup.
func TestGetWhisperModelBySize(t *testing.T) {
	model, found := getWhisperModelBySize(domain.ModelSizeBase)
	if !found {
		t.Fatal("expected base model to exist")
	}
	if model.FileName != "ggml-base.bin" {
		t.Fatalf("filename = %s, want ggml-base.bin", model.FileName)
	}
}

// TestGetWhisperModelBySizeUnknown rejects sizes outside the catalog.
func TestGetWhisperModelBySizeUnknown(t *testing.T) {
	if _, found := getWhisperModelBySize(domain.ModelSize("gigantic")); found {
		t.Fatal("expected unknown size to miss the catalog")
	}
}

// TestWhisperModelCatalogCoversAllSizes keeps the catalog aligned with
// the selectable sizes.
func TestWhisperModelCatalogCoversAllSizes(t *testing.T) {
	for _, size := range domain.ModelSizes() {
		if _, found := getWhisperModelBySize(size); !found {
			t.Fatalf("no catalog entry for size %s", size)
		}
	}
}

// TestResolveKnownModelDirsIncludesSettingsDir verifies configured model
// directories are searched for downloaded models.
func TestResolveKnownModelDirsIncludesSettingsDir(t *testing.T) {
	root := t.TempDir()
	settings := domain.Settings{ModelDir: root}

	dirs := resolveKnownModelDirs(settings, true)
	found := false
	for _, dir := range dirs {
		if dir == filepath.Clean(root) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("dirs = %v, expected to include %s", dirs, root)
	}
}

// TestMarkDownloadedModels marks catalog models when file exists in known dirs.
func TestMarkDownloadedModels(t *testing.T) {
	root := t.TempDir()
	modelPath := filepath.Join(root, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	models := []domain.WhisperModelOption{
		{Size: domain.ModelSizeBase, FileName: "ggml-base.bin"},
		{Size: domain.ModelSizeSmall, FileName: "ggml-small.bin"},
	}
	markDownloadedModels(models, []string{root})

	if !models[0].Downloaded {
		t.Fatal("expected base to be marked downloaded")
	}
	if models[0].LocalPath != modelPath {
		t.Fatalf("localPath = %s, want %s", models[0].LocalPath, modelPath)
	}
	if models[1].Downloaded {
		t.Fatal("expected small to remain not downloaded")
	}
}
