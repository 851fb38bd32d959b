package driven

import (
	"context"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// ResultStore defines the driven port for machine score persistence.
type ResultStore interface {
	SaveResult(ctx context.Context, res model.GradeResult) error
	GetResult(ctx context.Context, batchID, pseudonym string) (*model.GradeResult, error)
	ListResultsByBatch(ctx context.Context, batchID string) ([]model.GradeResult, error)
}
