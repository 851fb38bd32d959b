package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResultStore = (*ResultRepo)(nil)

// ResultRepo is the SQLite implementation of the ResultStore port interface.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a new ResultRepo backed by the given DB.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// SaveResult inserts or replaces the score for a (batch, pseudonym) pair.
// Re-scoring a submission overwrites its previous result.
func (r *ResultRepo) SaveResult(ctx context.Context, res model.GradeResult) error {
	const query = `
		INSERT INTO results (
			batch_id, pseudonym, score, max_score, percentage, letter_grade,
			criterion_scores, feedback, strengths, improvements, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id, pseudonym) DO UPDATE SET
			score = excluded.score,
			max_score = excluded.max_score,
			percentage = excluded.percentage,
			letter_grade = excluded.letter_grade,
			criterion_scores = excluded.criterion_scores,
			feedback = excluded.feedback,
			strengths = excluded.strengths,
			improvements = excluded.improvements,
			scored_at = excluded.scored_at
	`

	criterionJSON, err := marshalList(res.CriterionScores)
	if err != nil {
		return fmt.Errorf("marshal criterion scores: %w", err)
	}
	strengthsJSON, err := marshalList(res.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	improvementsJSON, err := marshalList(res.Improvements)
	if err != nil {
		return fmt.Errorf("marshal improvements: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		res.BatchID, res.Pseudonym, res.Score, res.MaxScore, res.Percentage, res.LetterGrade,
		criterionJSON, res.Feedback, strengthsJSON, improvementsJSON, res.ScoredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save result %s/%s: %w", res.BatchID, res.Pseudonym, err)
	}

	return nil
}

// GetResult retrieves the score for one pseudonym within a batch.
// Returns nil, nil if the pseudonym has no stored result.
func (r *ResultRepo) GetResult(ctx context.Context, batchID, pseudonym string) (*model.GradeResult, error) {
	const query = `
		SELECT id, batch_id, pseudonym, score, max_score, percentage, letter_grade,
		       criterion_scores, feedback, strengths, improvements, scored_at
		FROM results
		WHERE batch_id = ? AND pseudonym = ?
	`

	res, err := scanResult(r.db.Reader.QueryRowContext(ctx, query, batchID, pseudonym))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s/%s: %w", batchID, pseudonym, err)
	}

	return res, nil
}

// ListResultsByBatch returns a batch's results ordered by pseudonym.
func (r *ResultRepo) ListResultsByBatch(ctx context.Context, batchID string) ([]model.GradeResult, error) {
	const query = `
		SELECT id, batch_id, pseudonym, score, max_score, percentage, letter_grade,
		       criterion_scores, feedback, strengths, improvements, scored_at
		FROM results
		WHERE batch_id = ?
		ORDER BY pseudonym
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []model.GradeResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return results, nil
}

// marshalList serializes a slice for a TEXT column, normalizing nil
// to an empty JSON array.
func marshalList[T any](list []T) (string, error) {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func scanResult(s scanner) (*model.GradeResult, error) {
	var res model.GradeResult
	var criterionJSON, strengthsJSON, improvementsJSON, scoredAt string

	err := s.Scan(
		&res.ID, &res.BatchID, &res.Pseudonym, &res.Score, &res.MaxScore, &res.Percentage,
		&res.LetterGrade, &criterionJSON, &res.Feedback, &strengthsJSON, &improvementsJSON, &scoredAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criterionJSON), &res.CriterionScores); err != nil {
		return nil, fmt.Errorf("unmarshal criterion scores: %w", err)
	}
	if err := json.Unmarshal([]byte(strengthsJSON), &res.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal([]byte(improvementsJSON), &res.Improvements); err != nil {
		return nil, fmt.Errorf("unmarshal improvements: %w", err)
	}

	res.ScoredAt, err = parseTime(scoredAt)
	if err != nil {
		return nil, fmt.Errorf("parse scored_at: %w", err)
	}

	return res, nil
}
