package model

import "time"

// GradeResult is the scorer's structured verdict for one anonymized
// submission. Identified only by pseudonym; resolution back to a real
// identity happens at review/upload time, never here.
type GradeResult struct {
	ID              int64
	BatchID         string
	Pseudonym       string
	Score           float64
	MaxScore        float64
	Percentage      float64
	LetterGrade     string
	CriterionScores []CriterionScore
	Feedback        string   // Overall feedback, markdown allowed.
	Strengths       []string
	Improvements    []string
	ScoredAt        time.Time
}

// CriterionScore is the per-criterion breakdown inside a GradeResult.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Feedback  string  `json:"feedback,omitempty"`
}
