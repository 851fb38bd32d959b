package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BatchStore = (*BatchRepo)(nil)

// BatchRepo is the SQLite implementation of the BatchStore port interface.
type BatchRepo struct {
	db *DB
}

// NewBatchRepo creates a new BatchRepo backed by the given DB.
func NewBatchRepo(db *DB) *BatchRepo {
	return &BatchRepo{db: db}
}

// CreateBatch inserts a new batch row. The caller assigns the UUID.
func (r *BatchRepo) CreateBatch(ctx context.Context, batch model.Batch) error {
	const query = `
		INSERT INTO batches (
			id, course_id, assignment_id, assignment_name, workspace_dir,
			status, rubric_source, rubric_title, points_possible,
			submission_count, scored_count, failed_count, created_at, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var uploadedAt any
	if !batch.UploadedAt.IsZero() {
		uploadedAt = batch.UploadedAt.UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		batch.ID, batch.CourseID, batch.AssignmentID, batch.AssignmentName, batch.WorkspaceDir,
		string(batch.Status), string(batch.RubricSource), batch.RubricTitle, batch.PointsPossible,
		batch.SubmissionCount, batch.ScoredCount, batch.FailedCount,
		batch.CreatedAt.UTC(), uploadedAt,
	)
	if err != nil {
		return fmt.Errorf("create batch %s: %w", batch.ID, err)
	}

	return nil
}

// GetBatch retrieves a single batch by ID. Returns ErrBatchNotFound when no
// such batch exists.
func (r *BatchRepo) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	const query = `
		SELECT id, course_id, assignment_id, assignment_name, workspace_dir,
		       status, rubric_source, rubric_title, points_possible,
		       submission_count, scored_count, failed_count, created_at, uploaded_at
		FROM batches
		WHERE id = ?
	`

	batch, err := scanBatch(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("batch %s: %w", id, driven.ErrBatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}

	return batch, nil
}

// ListBatches returns all batches, newest first.
func (r *BatchRepo) ListBatches(ctx context.Context) ([]model.Batch, error) {
	const query = `
		SELECT id, course_id, assignment_id, assignment_name, workspace_dir,
		       status, rubric_source, rubric_title, points_possible,
		       submission_count, scored_count, failed_count, created_at, uploaded_at
		FROM batches
		ORDER BY created_at DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	return batches, nil
}

// UpdateBatchStatus moves a batch to a new lifecycle status.
func (r *BatchRepo) UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error {
	const query = `UPDATE batches SET status = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("update batch %s status: %w", id, err)
	}

	return requireBatchRow(result, id)
}

// UpdateBatchCounts records progress totals for a batch.
func (r *BatchRepo) UpdateBatchCounts(ctx context.Context, id string, submissions, scored, failed int) error {
	const query = `
		UPDATE batches
		SET submission_count = ?, scored_count = ?, failed_count = ?
		WHERE id = ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query, submissions, scored, failed, id)
	if err != nil {
		return fmt.Errorf("update batch %s counts: %w", id, err)
	}

	return requireBatchRow(result, id)
}

// MarkBatchUploaded closes out the batch lifecycle.
func (r *BatchRepo) MarkBatchUploaded(ctx context.Context, id string, uploadedAt time.Time) error {
	const query = `UPDATE batches SET status = ?, uploaded_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(model.BatchStatusUploaded), uploadedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark batch %s uploaded: %w", id, err)
	}

	return requireBatchRow(result, id)
}

// AddSubmission inserts a submission row and returns its generated ID.
func (r *BatchRepo) AddSubmission(ctx context.Context, sub model.Submission) (int64, error) {
	const query = `
		INSERT INTO submissions (
			batch_id, pseudonym, canvas_user_id, files, has_text_entry,
			submitted_at, score_status, score_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	files := sub.Files
	if files == nil {
		files = []model.SubmissionFile{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return 0, fmt.Errorf("marshal files: %w", err)
	}

	hasText := 0
	if sub.HasTextEntry {
		hasText = 1
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		sub.BatchID, sub.Pseudonym, sub.CanvasUserID, string(filesJSON), hasText,
		sub.SubmittedAt.UTC(), string(sub.ScoreStatus), sub.ScoreError,
	)
	if err != nil {
		return 0, fmt.Errorf("add submission %s/%s: %w", sub.BatchID, sub.Pseudonym, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("submission insert id: %w", err)
	}

	return id, nil
}

// ListSubmissions returns a batch's submissions ordered by pseudonym.
func (r *BatchRepo) ListSubmissions(ctx context.Context, batchID string) ([]model.Submission, error) {
	const query = `
		SELECT id, batch_id, pseudonym, canvas_user_id, files, has_text_entry,
		       submitted_at, score_status, score_error
		FROM submissions
		WHERE batch_id = ?
		ORDER BY pseudonym
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}

// UpdateSubmissionScore records the scoring outcome for one submission.
func (r *BatchRepo) UpdateSubmissionScore(ctx context.Context, id int64, status model.ScoreStatus, scoreErr string) error {
	const query = `UPDATE submissions SET score_status = ?, score_error = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), scoreErr, id)
	if err != nil {
		return fmt.Errorf("update submission %d score: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("submission %d not found", id)
	}

	return nil
}

// requireBatchRow converts a zero-row update into ErrBatchNotFound.
func requireBatchRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("batch %s: %w", id, driven.ErrBatchNotFound)
	}
	return nil
}

func scanBatch(s scanner) (*model.Batch, error) {
	var batch model.Batch
	var status, rubricSource, createdAt string
	var uploadedAt sql.NullString

	err := s.Scan(
		&batch.ID, &batch.CourseID, &batch.AssignmentID, &batch.AssignmentName, &batch.WorkspaceDir,
		&status, &rubricSource, &batch.RubricTitle, &batch.PointsPossible,
		&batch.SubmissionCount, &batch.ScoredCount, &batch.FailedCount, &createdAt, &uploadedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.Status = model.BatchStatus(status)
	batch.RubricSource = model.RubricSource(rubricSource)

	batch.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if uploadedAt.Valid {
		batch.UploadedAt, err = parseTime(uploadedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse uploaded_at: %w", err)
		}
	}

	return &batch, nil
}

func scanSubmission(s scanner) (*model.Submission, error) {
	var sub model.Submission
	var filesJSON, submittedAt, status string
	var hasText int

	err := s.Scan(
		&sub.ID, &sub.BatchID, &sub.Pseudonym, &sub.CanvasUserID, &filesJSON, &hasText,
		&submittedAt, &status, &sub.ScoreError,
	)
	if err != nil {
		return nil, err
	}

	sub.HasTextEntry = hasText != 0
	sub.ScoreStatus = model.ScoreStatus(status)

	if err := json.Unmarshal([]byte(filesJSON), &sub.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}

	sub.SubmittedAt, err = parseTime(submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}

	return &sub, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
