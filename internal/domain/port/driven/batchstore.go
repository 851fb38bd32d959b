package driven

import (
	"context"
	"errors"
	"time"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// ErrBatchNotFound is returned when no batch exists for the given ID.
var ErrBatchNotFound = errors.New("batch not found")

// BatchStore defines the driven port for grading batch persistence. Records
// carry pseudonyms and opaque gradebook IDs only; real identities never
// reach this store.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	ListBatches(ctx context.Context) ([]model.Batch, error)
	UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error
	UpdateBatchCounts(ctx context.Context, id string, submissions, scored, failed int) error
	MarkBatchUploaded(ctx context.Context, id string, uploadedAt time.Time) error

	AddSubmission(ctx context.Context, sub model.Submission) (int64, error)
	ListSubmissions(ctx context.Context, batchID string) ([]model.Submission, error)
	UpdateSubmissionScore(ctx context.Context, id int64, status model.ScoreStatus, scoreErr string) error
}
