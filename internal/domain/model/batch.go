package model

import "time"

// Batch is one assignment's full set of submissions processed together:
// downloaded, anonymized, scored, reviewed, and uploaded as a unit. The
// workspace directory holds the anonymized submission files, the identity
// mapping, and the review artifacts; the registry row holds everything else.
// Batch rows never contain real identities.
type Batch struct {
	ID              string // UUID assigned at creation.
	CourseID        int64
	AssignmentID    int64
	AssignmentName  string
	WorkspaceDir    string
	Status          BatchStatus
	RubricSource    RubricSource
	RubricTitle     string
	PointsPossible  float64
	SubmissionCount int
	ScoredCount     int
	FailedCount     int
	CreatedAt       time.Time
	UploadedAt      time.Time // Zero until the upload step completes.
}
