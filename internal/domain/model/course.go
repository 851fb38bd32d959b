package model

import "time"

// Course is a Canvas course the authenticated instructor can grade in.
type Course struct {
	ID         int64
	Name       string
	CourseCode string
	Term       string
}

// Assignment is one gradable Canvas assignment within a course.
type Assignment struct {
	ID             int64
	CourseID       int64
	Name           string
	PointsPossible float64
	DueAt          time.Time // Zero when no due date is set.
	HasRubric      bool
	Published      bool
}

// GradebookSubmission is the gradebook's view of one hand-in, as listed by
// the submissions endpoint before any anonymization happens. This is the
// only place real identities enter the system; the grade service converts
// it into a pseudonymous Submission immediately after building the mapping.
type GradebookSubmission struct {
	UserID      int64
	UserName    string
	SubmittedAt time.Time
	Body        string // HTML of an online text entry, empty otherwise.
	Attachments []Attachment
	State       string // Canvas workflow_state: submitted, unsubmitted, graded...
}

// Attachment is one uploaded file on a gradebook submission.
type Attachment struct {
	Filename    string
	URL         string
	ContentType string
	Size        int64
}
