package rag

import (
	"encoding/json"
	"fmt"
	"os"
)

// snapshot is the on-disk index format written by the indexing CLI and
// loaded read-only at service startup.
type snapshot struct {
	Model     string     `json:"model"`
	Documents []Document `json:"documents"`
}

// SaveSnapshot writes the store's documents and embeddings to path.
func SaveSnapshot(path, model string, docs []Document) error {
	data, err := json.Marshal(snapshot{Model: model, Documents: docs})
	if err != nil {
		return fmt.Errorf("rag: encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("rag: write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file into the store.
func LoadSnapshot(path string, store *MemoryStore) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("rag: read snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("rag: decode snapshot: %w", err)
	}
	store.AddEmbedded(snap.Documents)
	return len(snap.Documents), nil
}
