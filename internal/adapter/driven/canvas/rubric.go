package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// FetchRubric retrieves the rubric attached to an assignment, converted to
// the domain form. Returns (nil, nil) when the assignment has no rubric.
//
// Canvas exposes rubric data in several shapes: the assignment payload may
// embed the criteria list directly, or only carry rubric_settings pointing
// at a rubric that has to be fetched separately. When the separate fetch is
// not permitted for the token, a single-criterion rubric is synthesized from
// the settings so grading can still proceed.
func (c *Client) FetchRubric(ctx context.Context, courseID, assignmentID int64) (*model.Rubric, error) {
	query := url.Values{"include[]": {"rubric", "rubric_settings"}}
	rawURL := c.apiURL(fmt.Sprintf("courses/%d/assignments/%d", courseID, assignmentID), query)

	var detail canvasAssignmentDetail
	if _, err := c.getJSON(ctx, rawURL, &detail); err != nil {
		return nil, fmt.Errorf("fetching assignment %d: %w", assignmentID, err)
	}

	rubricID := ""
	if detail.RubricSettings != nil {
		rubricID = detail.RubricSettings.ID.String()
	}
	if rubricID == "" && len(detail.Rubric) == 0 {
		return nil, nil
	}

	// Criteria embedded in the assignment payload are authoritative.
	if len(detail.Rubric) > 0 {
		title := detail.Name
		points := detail.PointsPossible
		if detail.RubricSettings != nil {
			if detail.RubricSettings.Title != "" {
				title = detail.RubricSettings.Title
			}
			if detail.RubricSettings.PointsPossible > 0 {
				points = detail.RubricSettings.PointsPossible
			}
		}
		return convertRubric(rubricID, title, points, detail.Rubric), nil
	}

	// Settings only: fetch the rubric object itself.
	var full canvasRubric
	rubricURL := c.apiURL(fmt.Sprintf("courses/%d/rubrics/%s", courseID, rubricID), nil)
	if _, err := c.getJSON(ctx, rubricURL, &full); err != nil {
		// Some tokens may list assignments but not read rubrics. Fall back
		// to a synthesized rubric rather than blocking the whole batch.
		if detail.RubricSettings != nil {
			slog.Warn("rubric fetch failed, synthesizing from settings",
				"assignment_id", assignmentID, "rubric_id", rubricID, "error", err)
			return basicRubricFromSettings(detail.RubricSettings), nil
		}
		return nil, fmt.Errorf("fetching rubric %s: %w", rubricID, err)
	}

	return convertRubric(full.ID.String(), full.Title, full.PointsPossible, full.Data), nil
}

type canvasAssignmentDetail struct {
	Name           string                  `json:"name"`
	PointsPossible float64                 `json:"points_possible"`
	Rubric         []canvasRubricCriterion `json:"rubric"`
	RubricSettings *canvasRubricSettings   `json:"rubric_settings"`
}

type canvasRubricSettings struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	PointsPossible float64     `json:"points_possible"`
}

type canvasRubric struct {
	ID             json.Number             `json:"id"`
	Title          string                  `json:"title"`
	PointsPossible float64                 `json:"points_possible"`
	Data           []canvasRubricCriterion `json:"data"`
}

type canvasRubricCriterion struct {
	ID              string               `json:"id"`
	Description     string               `json:"description"`
	LongDescription string               `json:"long_description"`
	Points          float64              `json:"points"`
	Ratings         []canvasRubricRating `json:"ratings"`
}

type canvasRubricRating struct {
	Points          float64 `json:"points"`
	Description     string  `json:"description"`
	LongDescription string  `json:"long_description"`
}

// convertRubric maps Canvas rubric criteria to the domain rubric. Criterion
// names come from the Canvas "description" field, which is the short label
// shown in the gradebook.
func convertRubric(rubricID, title string, totalPoints float64, criteria []canvasRubricCriterion) *model.Rubric {
	if title == "" {
		title = "Canvas Assignment"
	}

	rubric := &model.Rubric{
		AssignmentTitle:     title,
		TotalPoints:         totalPoints,
		GradingInstructions: "Grade this assignment based on the Canvas rubric criteria below.",
		CanvasRubricID:      rubricID,
	}

	var sum float64
	for _, crit := range criteria {
		name := crit.Description
		if name == "" {
			name = fmt.Sprintf("Criterion %s", crit.ID)
		}
		desc := crit.LongDescription
		if desc == "" {
			desc = crit.Description
		}

		converted := model.Criterion{
			Name:        name,
			Points:      crit.Points,
			Description: desc,
		}
		for _, r := range crit.Ratings {
			converted.Ratings = append(converted.Ratings, model.Rating{
				Points:      r.Points,
				Description: r.Description,
				LongDesc:    r.LongDescription,
			})
		}
		rubric.Criteria = append(rubric.Criteria, converted)
		sum += crit.Points
	}

	if rubric.TotalPoints <= 0 {
		rubric.TotalPoints = sum
	}
	if rubric.TotalPoints <= 0 {
		rubric.TotalPoints = 100
	}
	return rubric
}

// basicRubricFromSettings synthesizes a single-criterion rubric when only
// rubric_settings is readable.
func basicRubricFromSettings(settings *canvasRubricSettings) *model.Rubric {
	title := settings.Title
	if title == "" {
		title = "Canvas Rubric"
	}
	total := settings.PointsPossible
	if total <= 0 {
		total = 100
	}

	return &model.Rubric{
		AssignmentTitle: title,
		TotalPoints:     total,
		CanvasRubricID:  settings.ID.String(),
		GradingInstructions: fmt.Sprintf(
			"Grade this assignment based on the %q rubric. Detailed rubric criteria "+
				"could not be retrieved, so evaluate the submission according to standard "+
				"academic criteria and assign a score out of %g points.", title, total),
		Criteria: []model.Criterion{{
			Name:        "Overall Quality",
			Points:      total,
			Description: fmt.Sprintf("Evaluate the overall quality of the submission according to the %q rubric criteria.", title),
			Ratings: []model.Rating{
				{Points: total, Description: "Excellent", LongDesc: "Meets all criteria excellently"},
				{Points: total * 0.8, Description: "Good", LongDesc: "Meets most criteria well"},
				{Points: total * 0.6, Description: "Satisfactory", LongDesc: "Meets basic criteria"},
				{Points: total * 0.4, Description: "Needs Improvement", LongDesc: "Partially meets criteria"},
				{Points: 0, Description: "Unsatisfactory", LongDesc: "Does not meet criteria"},
			},
		}},
	}
}
