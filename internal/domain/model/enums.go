package model

// BatchStatus represents where a batch is in the grade-review-upload workflow.
type BatchStatus string

const (
	BatchStatusDownloading BatchStatus = "downloading"
	BatchStatusScoring     BatchStatus = "scoring"
	BatchStatusReview      BatchStatus = "review"
	BatchStatusUploaded    BatchStatus = "uploaded"
	BatchStatusFailed      BatchStatus = "failed"
)

// ScoreStatus represents the outcome of scoring a single submission.
type ScoreStatus string

const (
	ScoreStatusScored  ScoreStatus = "scored"
	ScoreStatusFailed  ScoreStatus = "failed"
	ScoreStatusSkipped ScoreStatus = "skipped" // No scoreable content.
)

// SubmissionKind distinguishes how a student handed work in.
type SubmissionKind string

const (
	SubmissionKindAttachment SubmissionKind = "attachment" // Uploaded file.
	SubmissionKindTextEntry  SubmissionKind = "text_entry" // Online text box, stored as HTML.
)

// RubricSource records where a batch's rubric came from.
type RubricSource string

const (
	RubricSourceCanvas RubricSource = "canvas"
	RubricSourceLocal  RubricSource = "local"
)
