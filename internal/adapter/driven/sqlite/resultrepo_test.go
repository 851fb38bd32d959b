package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

func makeResult(batchID, pseudonym string, score float64) model.GradeResult {
	return model.GradeResult{
		BatchID:     batchID,
		Pseudonym:   pseudonym,
		Score:       score,
		MaxScore:    100,
		Percentage:  score,
		LetterGrade: "B",
		CriterionScores: []model.CriterionScore{
			{Criterion: "Thesis", Score: score * 0.4, MaxScore: 40, Feedback: "solid"},
			{Criterion: "Evidence", Score: score * 0.6, MaxScore: 60, Feedback: "thin"},
		},
		Feedback:     "Good work overall.",
		Strengths:    []string{"structure"},
		Improvements: []string{"citations"},
		ScoredAt:     time.Date(2026, 1, 20, 14, 30, 0, 0, time.UTC),
	}
}

func TestResultRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	batchRepo := NewBatchRepo(db)
	repo := NewResultRepo(db)
	ctx := context.Background()

	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0001")))

	res := makeResult("batch-0001", "Student_001", 85)
	require.NoError(t, repo.SaveResult(ctx, res))

	got, err := repo.GetResult(ctx, "batch-0001", "Student_001")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "batch-0001", got.BatchID)
	assert.Equal(t, "Student_001", got.Pseudonym)
	assert.Equal(t, 85.0, got.Score)
	assert.Equal(t, 100.0, got.MaxScore)
	assert.Equal(t, 85.0, got.Percentage)
	assert.Equal(t, "B", got.LetterGrade)
	assert.Equal(t, "Good work overall.", got.Feedback)
	assert.Equal(t, []string{"structure"}, got.Strengths)
	assert.Equal(t, []string{"citations"}, got.Improvements)
	assert.True(t, got.ScoredAt.Equal(res.ScoredAt))

	require.Len(t, got.CriterionScores, 2)
	assert.Equal(t, "Thesis", got.CriterionScores[0].Criterion)
	assert.Equal(t, 34.0, got.CriterionScores[0].Score)
	assert.Equal(t, 40.0, got.CriterionScores[0].MaxScore)
	assert.Equal(t, "solid", got.CriterionScores[0].Feedback)
}

func TestResultRepo_GetResult_Missing(t *testing.T) {
	db := setupTestDB(t)
	batchRepo := NewBatchRepo(db)
	repo := NewResultRepo(db)
	ctx := context.Background()

	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0001")))

	got, err := repo.GetResult(ctx, "batch-0001", "Student_404")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResultRepo_SaveResult_OverwritesOnRescore(t *testing.T) {
	db := setupTestDB(t)
	batchRepo := NewBatchRepo(db)
	repo := NewResultRepo(db)
	ctx := context.Background()

	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0001")))

	require.NoError(t, repo.SaveResult(ctx, makeResult("batch-0001", "Student_001", 70)))

	second := makeResult("batch-0001", "Student_001", 90)
	second.LetterGrade = "A-"
	require.NoError(t, repo.SaveResult(ctx, second))

	got, err := repo.GetResult(ctx, "batch-0001", "Student_001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 90.0, got.Score)
	assert.Equal(t, "A-", got.LetterGrade)

	all, err := repo.ListResultsByBatch(ctx, "batch-0001")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResultRepo_ListResultsByBatch(t *testing.T) {
	db := setupTestDB(t)
	batchRepo := NewBatchRepo(db)
	repo := NewResultRepo(db)
	ctx := context.Background()

	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0001")))
	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0002")))

	require.NoError(t, repo.SaveResult(ctx, makeResult("batch-0001", "Student_002", 72)))
	require.NoError(t, repo.SaveResult(ctx, makeResult("batch-0001", "Student_001", 85)))
	require.NoError(t, repo.SaveResult(ctx, makeResult("batch-0002", "Student_001", 55)))

	results, err := repo.ListResultsByBatch(ctx, "batch-0001")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Student_001", results[0].Pseudonym)
	assert.Equal(t, "Student_002", results[1].Pseudonym)
}

func TestResultRepo_SaveResult_EmptyLists(t *testing.T) {
	db := setupTestDB(t)
	batchRepo := NewBatchRepo(db)
	repo := NewResultRepo(db)
	ctx := context.Background()

	require.NoError(t, batchRepo.CreateBatch(ctx, makeBatch("batch-0001")))

	res := makeResult("batch-0001", "Student_001", 85)
	res.Strengths = nil
	res.Improvements = nil
	require.NoError(t, repo.SaveResult(ctx, res))

	got, err := repo.GetResult(ctx, "batch-0001", "Student_001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Strengths)
	assert.Empty(t, got.Improvements)
}
