package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/guarzo/vinyldeals/internal/model"
)

func encodePayload(snap *model.AnalysisSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(payload []byte) (*model.AnalysisSnapshot, error) {
	data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(payload)))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snap model.AnalysisSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}
