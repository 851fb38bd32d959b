package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

func makeBatch(id string) model.Batch {
	return model.Batch{
		ID:             id,
		CourseID:       42,
		AssignmentID:   7001,
		AssignmentName: "Essay 1",
		WorkspaceDir:   "/tmp/Essay_1_20260120_120000",
		Status:         model.BatchStatusDownloading,
		RubricSource:   model.RubricSourceCanvas,
		RubricTitle:    "Essay 1 Rubric",
		PointsPossible: 100,
		CreatedAt:      time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
	}
}

func makeSubmission(batchID, pseudonym string, userID int64) model.Submission {
	return model.Submission{
		BatchID:      batchID,
		Pseudonym:    pseudonym,
		CanvasUserID: userID,
		Files: []model.SubmissionFile{
			{Path: pseudonym + "/" + pseudonym + "_submission.docx", Kind: model.SubmissionKindAttachment},
		},
		SubmittedAt: time.Date(2026, 1, 19, 23, 55, 0, 0, time.UTC),
		ScoreStatus: model.ScoreStatusSkipped,
	}
}

func TestBatchRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	batch := makeBatch("batch-0001")
	require.NoError(t, repo.CreateBatch(ctx, batch))

	got, err := repo.GetBatch(ctx, "batch-0001")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "batch-0001", got.ID)
	assert.Equal(t, int64(42), got.CourseID)
	assert.Equal(t, int64(7001), got.AssignmentID)
	assert.Equal(t, "Essay 1", got.AssignmentName)
	assert.Equal(t, "/tmp/Essay_1_20260120_120000", got.WorkspaceDir)
	assert.Equal(t, model.BatchStatusDownloading, got.Status)
	assert.Equal(t, model.RubricSourceCanvas, got.RubricSource)
	assert.Equal(t, "Essay 1 Rubric", got.RubricTitle)
	assert.Equal(t, 100.0, got.PointsPossible)
	assert.Equal(t, 0, got.SubmissionCount)
	assert.True(t, got.CreatedAt.Equal(batch.CreatedAt))
	assert.True(t, got.UploadedAt.IsZero())
}

func TestBatchRepo_GetBatch_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)

	_, err := repo.GetBatch(context.Background(), "no-such-batch")
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrBatchNotFound)
}

func TestBatchRepo_ListBatches_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	older := makeBatch("batch-old")
	older.CreatedAt = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	newer := makeBatch("batch-new")
	newer.CreatedAt = time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateBatch(ctx, older))
	require.NoError(t, repo.CreateBatch(ctx, newer))

	batches, err := repo.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-new", batches[0].ID)
	assert.Equal(t, "batch-old", batches[1].ID)
}

func TestBatchRepo_ListBatches_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)

	batches, err := repo.ListBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestBatchRepo_UpdateBatchStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))
	require.NoError(t, repo.UpdateBatchStatus(ctx, "batch-0001", model.BatchStatusScoring))

	got, err := repo.GetBatch(ctx, "batch-0001")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusScoring, got.Status)
}

func TestBatchRepo_UpdateBatchStatus_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)

	err := repo.UpdateBatchStatus(context.Background(), "no-such-batch", model.BatchStatusScoring)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrBatchNotFound)
}

func TestBatchRepo_UpdateBatchCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))
	require.NoError(t, repo.UpdateBatchCounts(ctx, "batch-0001", 25, 23, 2))

	got, err := repo.GetBatch(ctx, "batch-0001")
	require.NoError(t, err)
	assert.Equal(t, 25, got.SubmissionCount)
	assert.Equal(t, 23, got.ScoredCount)
	assert.Equal(t, 2, got.FailedCount)
}

func TestBatchRepo_MarkBatchUploaded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))

	uploadedAt := time.Date(2026, 1, 21, 16, 30, 0, 0, time.UTC)
	require.NoError(t, repo.MarkBatchUploaded(ctx, "batch-0001", uploadedAt))

	got, err := repo.GetBatch(ctx, "batch-0001")
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusUploaded, got.Status)
	assert.True(t, got.UploadedAt.Equal(uploadedAt))
}

func TestBatchRepo_AddAndListSubmissions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))

	// Insert out of order; listing sorts by pseudonym.
	id2, err := repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_002", 902))
	require.NoError(t, err)
	id1, err := repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_001", 901))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	subs, err := repo.ListSubmissions(ctx, "batch-0001")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, "Student_001", subs[0].Pseudonym)
	assert.Equal(t, int64(901), subs[0].CanvasUserID)
	assert.Equal(t, id1, subs[0].ID)
	require.Len(t, subs[0].Files, 1)
	assert.Equal(t, "Student_001/Student_001_submission.docx", subs[0].Files[0].Path)
	assert.Equal(t, model.SubmissionKindAttachment, subs[0].Files[0].Kind)
	assert.False(t, subs[0].HasTextEntry)
	assert.Equal(t, model.ScoreStatusSkipped, subs[0].ScoreStatus)

	assert.Equal(t, "Student_002", subs[1].Pseudonym)
}

func TestBatchRepo_AddSubmission_DuplicatePseudonym(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))

	_, err := repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_001", 901))
	require.NoError(t, err)
	_, err = repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_001", 902))
	require.Error(t, err)
}

func TestBatchRepo_ListSubmissions_ScopedToBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))
	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0002")))

	_, err := repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_001", 901))
	require.NoError(t, err)
	_, err = repo.AddSubmission(ctx, makeSubmission("batch-0002", "Student_001", 901))
	require.NoError(t, err)

	subs, err := repo.ListSubmissions(ctx, "batch-0002")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "batch-0002", subs[0].BatchID)
}

func TestBatchRepo_UpdateSubmissionScore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, makeBatch("batch-0001")))
	id, err := repo.AddSubmission(ctx, makeSubmission("batch-0001", "Student_001", 901))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateSubmissionScore(ctx, id, model.ScoreStatusFailed, "document is corrupt"))

	subs, err := repo.ListSubmissions(ctx, "batch-0001")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, model.ScoreStatusFailed, subs[0].ScoreStatus)
	assert.Equal(t, "document is corrupt", subs[0].ScoreError)
}

func TestBatchRepo_UpdateSubmissionScore_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBatchRepo(db)

	err := repo.UpdateSubmissionScore(context.Background(), 9999, model.ScoreStatusScored, "")
	require.Error(t, err)
}
