// Package openai implements the Scorer port using the OpenAI chat
// completions API. The adapter receives only anonymized content: the grade
// service redacts names before anything reaches a ScoreRequest.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/sashabaranov/go-openai"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Scorer = (*Scorer)(nil)

const systemMessage = "You are an expert academic grader. Provide detailed, constructive feedback based on the given rubric."

const scoringTemperature = 0.3

// Scorer grades anonymized submissions against a rubric via chat completions.
type Scorer struct {
	client *oai.Client
	model  string
}

// NewScorer creates a Scorer using the given API key and chat model. The
// timeout bounds one scoring call end to end; long submissions can hold a
// connection open for minutes.
func NewScorer(apiKey, model string, timeout time.Duration) *Scorer {
	cfg := oai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Scorer{client: oai.NewClientWithConfig(cfg), model: model}
}

// NewScorerWithBaseURL creates a Scorer talking to a custom endpoint.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewScorerWithBaseURL(apiKey, model, baseURL string) *Scorer {
	cfg := oai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Scorer{client: oai.NewClientWithConfig(cfg), model: model}
}

// Score sends one anonymized submission to the model and parses the reply
// into a GradeResult. The response must address exactly the rubric's
// criteria; anything else is ErrMalformedScore so the submission lands in
// the failed column for manual review instead of storing mislabeled data.
func (s *Scorer) Score(ctx context.Context, req driven.ScoreRequest) (model.GradeResult, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return model.GradeResult{}, err
	}

	resp, err := s.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: scoringTemperature,
		MaxTokens:   maxOutputTokens(req),
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: oai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return model.GradeResult{}, mapAPIError(req.Pseudonym, err)
	}
	if len(resp.Choices) == 0 {
		return model.GradeResult{}, fmt.Errorf("scoring %s: empty response: %w", req.Pseudonym, driven.ErrMalformedScore)
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("scorer response", "pseudonym", req.Pseudonym, "model", s.model,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	var raw scoreResponse
	if err := json.Unmarshal([]byte(extractJSON(content)), &raw); err != nil {
		return model.GradeResult{}, fmt.Errorf("scoring %s: parsing response %q: %w",
			req.Pseudonym, snippet(content), driven.ErrMalformedScore)
	}

	return buildResult(req, raw)
}

// scoreResponse is the JSON document the model is instructed to return.
type scoreResponse struct {
	OverallScore        float64                       `json:"overall_score"`
	MaxPossibleScore    float64                       `json:"max_possible_score"`
	Percentage          float64                       `json:"percentage"`
	LetterGrade         string                        `json:"letter_grade"`
	CriteriaScores      map[string]criterionScoreJSON `json:"criteria_scores"`
	OverallFeedback     string                        `json:"overall_feedback"`
	Strengths           []string                      `json:"strengths"`
	AreasForImprovement []string                      `json:"areas_for_improvement"`
}

type criterionScoreJSON struct {
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Feedback string  `json:"feedback"`
}

// buildPrompt renders the grading prompt: the rubric as JSON, strict
// instructions pinning criteria names and point values, a response-format
// example generated from the rubric, and the anonymized submission text.
func buildPrompt(req driven.ScoreRequest) (string, error) {
	rubricJSON, err := json.MarshalIndent(req.Rubric, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding rubric: %w", err)
	}

	var b strings.Builder
	b.WriteString("Grade the submission indicated below using EXACTLY the following rubric structure and point values.\n\n")
	fmt.Fprintf(&b, "RUBRIC:\n%s\n\n", rubricJSON)
	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("- Use EXACTLY the criteria names from the rubric above\n")
	b.WriteString("- Use EXACTLY the point values specified in the rubric\n")
	fmt.Fprintf(&b, "- Total possible score MUST be %g points\n", req.Rubric.TotalPoints)
	b.WriteString("- Provide detailed feedback for each individual rubric criterion\n\n")
	if req.Instructions != "" {
		fmt.Fprintf(&b, "CUSTOM INSTRUCTIONS:\n%s\n\n", req.Instructions)
	}
	fmt.Fprintf(&b, "Please provide your response in the following JSON format:\n%s\n\n", responseExample(req.Rubric))
	b.WriteString("Be specific, constructive, and fair in your grading. Provide actionable feedback.\n\n")
	fmt.Fprintf(&b, "SUBMISSION (%s):\n%s", req.Pseudonym, req.Text)
	return b.String(), nil
}

// responseExample generates the required response shape from the rubric so
// the model echoes back exactly the criteria it was given.
func responseExample(rubric model.Rubric) string {
	var criteria []string
	for _, crit := range rubric.Criteria {
		placeholder := strings.ReplaceAll(strings.ToLower(crit.Name), " ", "_")
		criteria = append(criteria, fmt.Sprintf(`        %q: {
            "score": <%g_or_less>,
            "max_score": %g,
            "feedback": "<specific_feedback_for_%s>"
        }`, crit.Name, crit.Points, crit.Points, placeholder))
	}

	return fmt.Sprintf(`{
    "overall_score": <total_points_earned>,
    "max_possible_score": %g,
    "percentage": <percentage_score>,
    "letter_grade": "<letter_grade>",
    "criteria_scores": {
%s
    },
    "overall_feedback": "<comprehensive_feedback>",
    "strengths": ["<strength1>", "<strength2>"],
    "areas_for_improvement": ["<improvement1>", "<improvement2>"]
}`, rubric.TotalPoints, strings.Join(criteria, ",\n"))
}

// maxOutputTokens scales the response budget with submission length.
// The estimate is the usual four-characters-per-token heuristic.
func maxOutputTokens(req driven.ScoreRequest) int {
	est := (len(req.Text) + len(req.Instructions)) / 4
	switch {
	case est > 50000:
		return 4000
	case est > 20000:
		return 3000
	default:
		return 2000
	}
}

// buildResult validates the parsed response against the rubric and converts
// it to the domain result. Numeric scores out of range are clamped; unknown
// or missing criteria are malformed.
func buildResult(req driven.ScoreRequest, raw scoreResponse) (model.GradeResult, error) {
	rubric := req.Rubric

	for name := range raw.CriteriaScores {
		if _, ok := rubric.CriterionNamed(name); !ok {
			return model.GradeResult{}, fmt.Errorf("scoring %s: response names unknown criterion %q: %w",
				req.Pseudonym, name, driven.ErrMalformedScore)
		}
	}

	var total float64
	scores := make([]model.CriterionScore, 0, len(rubric.Criteria))
	for _, crit := range rubric.Criteria {
		cs, ok := raw.CriteriaScores[crit.Name]
		if !ok {
			return model.GradeResult{}, fmt.Errorf("scoring %s: response is missing criterion %q: %w",
				req.Pseudonym, crit.Name, driven.ErrMalformedScore)
		}
		score := clamp(cs.Score, 0, crit.Points)
		scores = append(scores, model.CriterionScore{
			Criterion: crit.Name,
			Score:     score,
			MaxScore:  crit.Points,
			Feedback:  cs.Feedback,
		})
		total += score
	}

	maxScore := rubric.TotalPoints
	if len(rubric.Criteria) == 0 {
		total = clamp(raw.OverallScore, 0, maxScore)
	}

	var pct float64
	if maxScore > 0 {
		pct = total / maxScore * 100
	}

	return model.GradeResult{
		Pseudonym:       req.Pseudonym,
		Score:           total,
		MaxScore:        maxScore,
		Percentage:      pct,
		LetterGrade:     raw.LetterGrade,
		CriterionScores: scores,
		Feedback:        raw.OverallFeedback,
		Strengths:       raw.Strengths,
		Improvements:    raw.AreasForImprovement,
		ScoredAt:        time.Now().UTC(),
	}, nil
}

// mapAPIError converts transport and API failures to port sentinels.
func mapAPIError(pseudonym string, err error) error {
	var apiErr *oai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("scoring %s: %w", pseudonym, driven.ErrRateLimited)
	}
	var reqErr *oai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return fmt.Errorf("scoring %s: %w", pseudonym, driven.ErrRateLimited)
	}
	return fmt.Errorf("scoring %s: %v: %w", pseudonym, err, driven.ErrScorerUnavailable)
}

// extractJSON peels markdown code fences and surrounding prose off the
// model's reply, leaving the outermost JSON object.
func extractJSON(content string) string {
	clean := strings.TrimSpace(content)
	if strings.HasPrefix(clean, "```") {
		if idx := strings.Index(clean, "\n"); idx >= 0 {
			clean = clean[idx+1:]
		}
		if idx := strings.LastIndex(clean, "```"); idx >= 0 {
			clean = clean[:idx]
		}
		clean = strings.TrimSpace(clean)
	}
	if !strings.HasPrefix(clean, "{") {
		if start := strings.Index(clean, "{"); start >= 0 {
			if end := strings.LastIndex(clean, "}"); end > start {
				clean = clean[start : end+1]
			}
		}
	}
	return clean
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
