package application

import (
	"context"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// BatchDetail is the full registry view of one batch: its row plus every
// submission and stored score.
type BatchDetail struct {
	Batch       model.Batch
	Submissions []model.Submission
	Results     []model.GradeResult
}

// BatchService answers registry queries about past and in-flight batches.
// It depends only on port interfaces.
type BatchService struct {
	batches driven.BatchStore
	results driven.ResultStore
}

// NewBatchService creates a new BatchService with the required dependencies.
func NewBatchService(batches driven.BatchStore, results driven.ResultStore) *BatchService {
	return &BatchService{
		batches: batches,
		results: results,
	}
}

// ListBatches returns every recorded batch, newest first.
func (s *BatchService) ListBatches(ctx context.Context) ([]model.Batch, error) {
	return s.batches.ListBatches(ctx)
}

// GetBatchDetail assembles the detail view for one batch.
func (s *BatchService) GetBatchDetail(ctx context.Context, id string) (*BatchDetail, error) {
	batch, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	submissions, err := s.batches.ListSubmissions(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := s.results.ListResultsByBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	return &BatchDetail{
		Batch:       *batch,
		Submissions: submissions,
		Results:     results,
	}, nil
}
