// Package mappingfile persists a batch's identity mapping as JSON inside the
// batch workspace. This file is the single bridge between pseudonymous batch
// artifacts and real identities, so it is written atomically with owner-only
// permissions and re-validated as a bijection on every load.
package mappingfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MappingStore = (*Store)(nil)

// fileDoc is the on-disk shape.
type fileDoc struct {
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Entries   []model.MappingEntry `json:"entries"`
}

// Store reads and writes mapping files.
type Store struct{}

// NewStore creates a mapping file store.
func NewStore() *Store {
	return &Store{}
}

// Save writes the mapping to path atomically, replacing any existing file.
func (s *Store) Save(_ context.Context, path string, m *model.Mapping) error {
	doc := fileDoc{
		Version:   1,
		CreatedAt: time.Now().UTC(),
		Entries:   m.Entries(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write mapping file %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod mapping file %s: %w", path, err)
	}
	return nil
}

// Load reads a mapping written by Save and re-validates the bijection.
// A file that does not parse, or whose entries collide, yields
// model.ErrCorruptMapping.
func (s *Store) Load(_ context.Context, path string) (*model.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file %s: %w", path, err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping file %s: %v: %w", path, err, model.ErrCorruptMapping)
	}

	m, err := model.NewMappingFromEntries(doc.Entries)
	if err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", path, err)
	}
	return m, nil
}
