package model

import "time"

// ReviewRow is one line of a batch's review sheet. The grade service fills
// every column from the machine score; the instructor edits FinalGrade,
// FinalComments and Notes in place before uploading. Rows carry pseudonyms
// and opaque gradebook user IDs only.
type ReviewRow struct {
	Pseudonym     string
	CanvasUserID  int64
	AIScore       float64
	MaxScore      float64
	Percentage    float64
	LetterGrade   string
	AIComments    string
	FinalGrade    string
	FinalComments string
	Notes         string
}

// UploadOutcome records what happened to one review row during upload.
// RealIdentity is populated only at upload time, after the pseudonym has
// been resolved against the workspace mapping.
type UploadOutcome struct {
	Pseudonym    string
	RealIdentity string
	Grade        string
	Err          string
}

// UploadReport summarizes an upload run for the workspace report file.
type UploadReport struct {
	BatchID        string
	AssignmentName string
	Uploaded       int
	Skipped        int
	Failed         int
	Outcomes       []UploadOutcome
	FinishedAt     time.Time
}
