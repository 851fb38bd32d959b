package driven

import (
	"context"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// MappingStore persists a batch's identity mapping inside its workspace so a
// later upload run can resolve pseudonyms back to real identities. The
// mapping file is the only place real identities are written during grading.
type MappingStore interface {
	// Save writes the mapping to path, replacing any existing file.
	Save(ctx context.Context, path string, m *model.Mapping) error

	// Load reads a mapping previously written by Save. Returns
	// model.ErrCorruptMapping (possibly wrapped) when the file does not
	// round-trip to a valid bijection.
	Load(ctx context.Context, path string) (*model.Mapping, error)
}
