package driven

import (
	"context"
	"errors"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

var (
	// ErrScorerUnavailable is returned when the scoring service cannot be
	// reached or rejects the request outright.
	ErrScorerUnavailable = errors.New("scorer unavailable")

	// ErrMalformedScore is returned when the scorer replies but its output
	// cannot be parsed into a GradeResult.
	ErrMalformedScore = errors.New("scorer returned malformed result")
)

// ScoreRequest carries everything the scorer needs for one submission.
// Text and Pseudonym are already anonymized by the caller; a Scorer
// implementation never sees a real identity.
type ScoreRequest struct {
	Rubric       model.Rubric
	Pseudonym    string
	Text         string // Extracted, anonymized submission text.
	Instructions string // Optional instructor grading instructions.
}

// Scorer defines the driven port for the external AI evaluation service:
// rubric plus anonymized text in, structured per-criterion result out.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (model.GradeResult, error)
}
