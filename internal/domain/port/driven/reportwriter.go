package driven

import (
	"context"
	"errors"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// ErrMalformedReviewSheet is returned when an edited review sheet cannot be
// parsed back (missing header columns, wrong field count).
var ErrMalformedReviewSheet = errors.New("malformed review sheet")

// ReportWriter renders a batch's human-facing artifacts into its workspace:
// the editable review sheet, the HTML score report, the workspace
// instructions, and the post-upload summary. Everything written before
// upload carries pseudonyms only.
type ReportWriter interface {
	WriteReviewSheet(ctx context.Context, path string, rows []model.ReviewRow) error

	// ReadReviewSheet parses a sheet previously written by WriteReviewSheet,
	// tolerating instructor edits to the editable columns.
	ReadReviewSheet(ctx context.Context, path string) ([]model.ReviewRow, error)

	WriteBatchReport(ctx context.Context, path string, batch model.Batch, rubric model.Rubric, results []model.GradeResult) error

	WriteInstructions(ctx context.Context, path string, batch model.Batch, reviewSheet string) error

	WriteUploadReport(ctx context.Context, path string, report model.UploadReport) error
}
