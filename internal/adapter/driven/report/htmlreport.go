package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// reportTemplate renders the batch score report. Everything dynamic is
// either template-escaped or passed through renderMarkdown, which
// sanitizes; the report shows pseudonyms only and is safe to hand to a
// co-grader.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Batch.AssignmentName}} score report</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1f2328; }
h1 { border-bottom: 2px solid #d0d7de; padding-bottom: .3rem; }
h2 { margin-top: 2.5rem; border-bottom: 1px solid #d0d7de; padding-bottom: .2rem; }
table { border-collapse: collapse; width: 100%; margin: .75rem 0; }
th, td { border: 1px solid #d0d7de; padding: .4rem .6rem; text-align: left; vertical-align: top; }
th { background: #f6f8fa; }
.meta { color: #57606a; }
.score { font-size: 1.1rem; font-weight: 600; }
.feedback { background: #f6f8fa; border-radius: 6px; padding: .5rem 1rem; }
ul { margin: .25rem 0 .75rem; }
</style>
</head>
<body>
<h1>{{.Batch.AssignmentName}}</h1>
<p class="meta">
Batch {{.Batch.ID}} · created {{.CreatedAt}} · rubric: {{.Batch.RubricTitle}} ({{.Batch.PointsPossible}} points)<br>
{{.Batch.SubmissionCount}} submissions · {{.Batch.ScoredCount}} scored · {{.Batch.FailedCount}} failed
</p>
{{if .Rubric.Criteria}}
<table>
<tr><th>Rubric criterion</th><th>Points</th><th>Description</th></tr>
{{range .Rubric.Criteria}}
<tr><td>{{.Name}}</td><td>{{printf "%.1f" .Points}}</td><td>{{.Description}}</td></tr>
{{end}}
</table>
{{end}}
{{range .Results}}
<h2>{{.Pseudonym}}</h2>
<p class="score">{{printf "%.1f" .Score}} / {{printf "%.1f" .MaxScore}} ({{printf "%.1f" .Percentage}}%{{with .LetterGrade}}, {{.}}{{end}})</p>
<table>
<tr><th>Criterion</th><th>Score</th><th>Out of</th><th>Feedback</th></tr>
{{range .CriterionScores}}
<tr><td>{{.Criterion}}</td><td>{{printf "%.1f" .Score}}</td><td>{{printf "%.1f" .MaxScore}}</td><td>{{.Feedback}}</td></tr>
{{end}}
</table>
{{with .FeedbackHTML}}<div class="feedback">{{.}}</div>{{end}}
{{with .Strengths}}<h3>Strengths</h3><ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{with .Improvements}}<h3>Areas for improvement</h3><ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{end}}
</body>
</html>
`))

type reportResult struct {
	model.GradeResult
	FeedbackHTML template.HTML
}

type reportData struct {
	Batch     model.Batch
	Rubric    model.Rubric
	CreatedAt string
	Results   []reportResult
}

// WriteBatchReport renders the HTML score report for a batch.
func (w *Writer) WriteBatchReport(ctx context.Context, path string, batch model.Batch, rubric model.Rubric, results []model.GradeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := reportData{
		Batch:     batch,
		Rubric:    rubric,
		CreatedAt: batch.CreatedAt.Format("2006-01-02 15:04 MST"),
		Results:   make([]reportResult, 0, len(results)),
	}
	for _, res := range results {
		data.Results = append(data.Results, reportResult{
			GradeResult:  res,
			FeedbackHTML: w.renderMarkdown(res.Feedback),
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("render batch report: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write batch report: %w", err)
	}

	return nil
}

// renderMarkdown converts feedback markdown to sanitized HTML. Returns
// empty for empty input; falls back to sanitizing the raw text if the
// conversion fails.
func (w *Writer) renderMarkdown(src string) template.HTML {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := w.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(w.sanitizer.Sanitize(src))
	}

	return template.HTML(w.sanitizer.Sanitize(buf.String()))
}
