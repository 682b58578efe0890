// Package export persists evaluation artifacts and archives processed
// source documents.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/rs/zerolog"
)

// Writer writes one JSON artifact per evaluated document.
type Writer struct {
	outputDir string
	logger    *zerolog.Logger
}

func NewWriter(outputDir string, logger *zerolog.Logger) *Writer {
	return &Writer{outputDir: outputDir, logger: logger}
}

// Write serializes the combined evaluation to <outputDir>/<name>.json
// and returns the written path.
func (w *Writer) Write(combined models.CombinedEvaluation, name string) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal evaluation: %w", err)
	}

	path := filepath.Join(w.outputDir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write evaluation: %w", err)
	}

	w.logger.Info().Str("path", path).Msg("evaluation artifact written")
	return path, nil
}

// Read loads a previously written artifact.
func Read(path string) (models.CombinedEvaluation, error) {
	var combined models.CombinedEvaluation
	data, err := os.ReadFile(path)
	if err != nil {
		return combined, fmt.Errorf("read evaluation: %w", err)
	}
	if err := json.Unmarshal(data, &combined); err != nil {
		return combined, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	return combined, nil
}

// MoveToProcessed moves the source file into a sibling processed/
// directory. Name collisions get a numeric suffix instead of
// overwriting earlier runs.
func MoveToProcessed(sourcePath string, logger *zerolog.Logger) (string, error) {
	dir := filepath.Dir(sourcePath)
	processedDir := filepath.Join(dir, "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return "", fmt.Errorf("create processed dir: %w", err)
	}

	base := filepath.Base(sourcePath)
	target := filepath.Join(processedDir, base)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(processedDir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}

	if err := os.Rename(sourcePath, target); err != nil {
		return "", fmt.Errorf("move to processed: %w", err)
	}

	logger.Info().Str("from", sourcePath).Str("to", target).Msg("source file archived")
	return target, nil
}
