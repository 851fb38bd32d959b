package driven

import (
	"context"
	"errors"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// ErrRateLimited is returned when an external service refuses a call due to
// rate limiting and the adapter's single Retry-After honor was not enough.
// Shared by the gradebook and scorer ports.
var ErrRateLimited = errors.New("rate limited by external service")

// ErrUploadRejected is returned when the gradebook refuses a posted grade
// (bad user ID, closed assignment, insufficient permissions).
var ErrUploadRejected = errors.New("grade upload rejected by gradebook")

// Gradebook defines the driven port for the LMS the tool grades against.
// Implementations authenticate with an instructor API token; real student
// identities appear only in ListSubmissions results and in PostGrade
// arguments, at the two ends of the anonymized workflow.
type Gradebook interface {
	// ListCourses returns the courses visible to the authenticated user.
	ListCourses(ctx context.Context) ([]model.Course, error)

	// ListAssignments returns the assignments of a course.
	ListAssignments(ctx context.Context, courseID int64) ([]model.Assignment, error)

	// FetchRubric returns the rubric attached to an assignment, converted to
	// the domain format. Returns nil, nil when the assignment has no rubric.
	FetchRubric(ctx context.Context, courseID, assignmentID int64) (*model.Rubric, error)

	// ListSubmissions returns every submission for an assignment, including
	// author identity and attachment download URLs. Handles pagination.
	ListSubmissions(ctx context.Context, courseID, assignmentID int64) ([]model.GradebookSubmission, error)

	// DownloadAttachment streams an attachment URL to the destination path.
	DownloadAttachment(ctx context.Context, url, destPath string) error

	// PostGrade writes a grade and optional feedback comment back to the
	// gradebook for one student. Returns ErrUploadRejected (wrapped) when
	// the gradebook refuses the write.
	PostGrade(ctx context.Context, courseID, assignmentID, userID int64, grade string, comment string) error
}
