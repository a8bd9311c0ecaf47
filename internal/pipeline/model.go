package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"lecture-notes/internal/domain"
)

// whisperModelFileNames lists acceptable ggml files per model size, in
// preference order. Multilingual variants win over English-only ones.
var whisperModelFileNames = map[domain.ModelSize][]string{
	domain.ModelSizeTiny:   {"ggml-tiny.bin", "ggml-tiny.en.bin"},
	domain.ModelSizeBase:   {"ggml-base.bin", "ggml-base.en.bin"},
	domain.ModelSizeSmall:  {"ggml-small.bin", "ggml-small.en.bin"},
	domain.ModelSizeMedium: {"ggml-medium.bin", "ggml-medium.en.bin"},
	domain.ModelSizeLarge:  {"ggml-large-v3.bin", "ggml-large-v3-turbo.bin", "ggml-large-v2.bin"},
}

// modelKey identifies one resolved model by directory and size, so neither
// a size change nor a model directory change reuses a stale entry.
type modelKey struct {
	dir  string
	size domain.ModelSize
}

// modelCache memoizes resolved model file paths.
type modelCache struct {
	mu    sync.Mutex
	paths map[modelKey]string
}

// newModelCache creates an empty cache.
func newModelCache() *modelCache {
	return &modelCache{paths: make(map[modelKey]string)}
}

// resolve returns the model file for the requested size inside modelDir.
// Cached entries are revalidated with stat before reuse.
func (c *modelCache) resolve(stat func(string) (os.FileInfo, error), modelDir string, size domain.ModelSize) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := modelKey{dir: filepath.Clean(modelDir), size: size}
	if cached, ok := c.paths[key]; ok {
		if _, err := stat(cached); err == nil {
			return cached, nil
		}
		delete(c.paths, key)
	}

	candidates, ok := whisperModelFileNames[size]
	if !ok {
		return "", fmt.Errorf("unsupported model size: %s", size)
	}

	for _, name := range candidates {
		path := filepath.Join(modelDir, name)
		if _, err := stat(path); err == nil {
			c.paths[key] = path
			return path, nil
		}
	}

	return "", fmt.Errorf("no %s whisper model found in %s (expected one of %v)", size, modelDir, candidates)
}
