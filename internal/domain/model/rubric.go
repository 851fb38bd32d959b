package model

// Rubric is the grading contract handed to the scorer. It is either
// converted from a Canvas assignment rubric or loaded from a local JSON
// file; the scorer is instructed to use exactly these criterion names and
// point values.
type Rubric struct {
	AssignmentTitle     string      `json:"assignment_title"`
	TotalPoints         float64     `json:"total_points"`
	Criteria            []Criterion `json:"criteria"`
	GradingInstructions string      `json:"grading_instructions,omitempty"`
	CanvasRubricID      string      `json:"canvas_rubric_id,omitempty"`
}

// Criterion is one rubric line: a named dimension worth a fixed number of
// points, optionally with discrete rating levels.
type Criterion struct {
	Name        string   `json:"name"`
	Points      float64  `json:"points"`
	Description string   `json:"description,omitempty"`
	Ratings     []Rating `json:"ratings,omitempty"`
}

// Rating is one level on a criterion's scale.
type Rating struct {
	Points      float64 `json:"points"`
	Description string  `json:"description"`
	LongDesc    string  `json:"long_description,omitempty"`
}

// CriterionNamed reports whether the rubric contains a criterion with the
// given name. Scorer responses are validated against this before a result
// is accepted.
func (r *Rubric) CriterionNamed(name string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Name == name {
			return c, true
		}
	}
	return Criterion{}, false
}
