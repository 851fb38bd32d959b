package model

import "time"

// Submission is one student's anonymized hand-in within a batch. Real
// identities never appear here: the author is known only by pseudonym plus
// the opaque gradebook user ID needed for the final upload.
type Submission struct {
	ID           int64
	BatchID      string
	Pseudonym    string
	CanvasUserID int64
	Files        []SubmissionFile
	HasTextEntry bool
	SubmittedAt  time.Time
	ScoreStatus  ScoreStatus
	ScoreError   string // Populated when ScoreStatus is failed.
}

// SubmissionFile is one downloaded artifact, stored on disk under an
// anonymized name that keeps only the original extension.
type SubmissionFile struct {
	Path string         `json:"path"`
	Kind SubmissionKind `json:"kind"`
}
