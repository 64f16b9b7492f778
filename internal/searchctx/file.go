package searchctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
)

// FileProvider reads runs from <dir>/<run id>.json, or the brotli
// compressed <run id>.json.br.
type FileProvider struct {
	dir string
}

// NewFileProvider returns a provider rooted at dir.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// Load reads and decodes one run file.
func (p *FileProvider) Load(ctx context.Context, runID string) (*Context, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run, err := p.read(runID)
	if err != nil {
		return nil, err
	}
	if run.RunID == "" {
		run.RunID = runID
	}
	return run.Context(), nil
}

func (p *FileProvider) read(runID string) (*Run, error) {
	base := filepath.Join(p.dir, runID+".json")
	for _, path := range []string{base, base + ".br"} {
		run, err := ReadRunFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return run, err
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// Save writes a run as indented JSON, replacing any existing file.
func (p *FileProvider) Save(run *Run) error {
	if err := validRunID(run.RunID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, run.RunID+".json"), data, 0o644); err != nil {
		return fmt.Errorf("writing run file: %w", err)
	}
	return nil
}

// ReadRunFile parses one run file. Files ending in .br are brotli
// compressed.
func ReadRunFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".br") {
		reader = brotli.NewReader(f)
	}

	var run Run
	if err := json.NewDecoder(reader).Decode(&run); err != nil {
		return nil, fmt.Errorf("parsing run file %s: %w", filepath.Base(path), err)
	}
	return &run, nil
}
