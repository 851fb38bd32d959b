// Package report renders a batch's human-facing workspace artifacts: the
// editable CSV review sheet, the HTML score report, the workspace
// instructions, and the post-upload summary. Artifacts written before
// upload carry pseudonyms only; real names appear solely in the upload
// report, which is produced after the instructor has resolved the mapping.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReportWriter = (*Writer)(nil)

// reviewHeader is the review sheet's column order. The first two columns
// identify the row for upload and must not be edited; Final_Grade,
// Final_Comments and Notes are the instructor's editable columns.
var reviewHeader = []string{
	"Pseudonym",
	"Canvas_User_ID",
	"AI_Score",
	"Max_Score",
	"AI_Percentage",
	"Letter_Grade",
	"AI_Comments",
	"Final_Grade",
	"Final_Comments",
	"Notes",
}

// Writer produces workspace artifacts.
type Writer struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewWriter creates a Writer with a GFM markdown renderer and a UGC
// sanitizer for feedback text embedded in the HTML report.
func NewWriter() *Writer {
	return &Writer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// WriteReviewSheet writes the editable CSV review sheet.
func (w *Writer) WriteReviewSheet(ctx context.Context, path string, rows []model.ReviewRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create review sheet: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(reviewHeader); err != nil {
		return fmt.Errorf("write review sheet header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Pseudonym,
			strconv.FormatInt(row.CanvasUserID, 10),
			formatPoints(row.AIScore),
			formatPoints(row.MaxScore),
			formatPercent(row.Percentage),
			row.LetterGrade,
			row.AIComments,
			row.FinalGrade,
			row.FinalComments,
			row.Notes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write review row %s: %w", row.Pseudonym, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush review sheet: %w", err)
	}

	return nil
}

// ReadReviewSheet parses a review sheet back, tolerating reordered or extra
// columns and instructor edits. Rows must keep their Pseudonym and
// Canvas_User_ID cells intact; everything else is read leniently.
func (w *Writer) ReadReviewSheet(ctx context.Context, path string) ([]model.ReviewRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open review sheet: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read review sheet header: %v: %w", err, driven.ErrMalformedReviewSheet)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Pseudonym", "Canvas_User_ID", "Final_Grade", "Final_Comments"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("review sheet is missing column %q: %w", required, driven.ErrMalformedReviewSheet)
		}
	}

	cell := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []model.ReviewRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("review sheet line %d: %v: %w", line, err, driven.ErrMalformedReviewSheet)
		}

		pseudonym := cell(record, "Pseudonym")
		if pseudonym == "" {
			return nil, fmt.Errorf("review sheet line %d: empty pseudonym: %w", line, driven.ErrMalformedReviewSheet)
		}

		userID, err := strconv.ParseInt(cell(record, "Canvas_User_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("review sheet line %d: bad Canvas_User_ID %q: %w",
				line, cell(record, "Canvas_User_ID"), driven.ErrMalformedReviewSheet)
		}

		rows = append(rows, model.ReviewRow{
			Pseudonym:     pseudonym,
			CanvasUserID:  userID,
			AIScore:       parseLenientFloat(cell(record, "AI_Score")),
			MaxScore:      parseLenientFloat(cell(record, "Max_Score")),
			Percentage:    parseLenientFloat(cell(record, "AI_Percentage")),
			LetterGrade:   cell(record, "Letter_Grade"),
			AIComments:    cell(record, "AI_Comments"),
			FinalGrade:    cell(record, "Final_Grade"),
			FinalComments: cell(record, "Final_Comments"),
			Notes:         cell(record, "Notes"),
		})
	}

	return rows, nil
}

// WriteInstructions drops the workflow walkthrough into the workspace.
func (w *Writer) WriteInstructions(ctx context.Context, path string, batch model.Batch, reviewSheet string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("GRADEDESK - TWO-STEP GRADING\n")
	b.WriteString("============================\n\n")
	fmt.Fprintf(&b, "Assignment: %s\n", batch.AssignmentName)
	fmt.Fprintf(&b, "Batch:      %s\n", batch.ID)
	fmt.Fprintf(&b, "Created:    %s\n\n", batch.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("STEP 1 - COMPLETED\n")
	b.WriteString("==================\n")
	b.WriteString("- Downloaded all submissions from Canvas\n")
	b.WriteString("- Replaced student names with pseudonyms before any AI processing\n")
	b.WriteString("- Scored every submission against the rubric\n")
	b.WriteString("- Created this workspace with all materials\n\n")

	b.WriteString("STEP 2 - MANUAL REVIEW (DO THIS NOW)\n")
	b.WriteString("====================================\n")
	fmt.Fprintf(&b, "1. Open the review sheet: %s\n", filepath.Base(reviewSheet))
	b.WriteString("2. Review and edit these columns:\n")
	b.WriteString("   - Final_Grade: adjust the suggested grade if needed\n")
	b.WriteString("   - Final_Comments: edit the feedback that will be posted\n")
	b.WriteString("   - Notes: private notes, never uploaded\n")
	b.WriteString("3. Save the sheet when done\n\n")

	b.WriteString("STEP 3 - UPLOAD\n")
	b.WriteString("===============\n")
	fmt.Fprintf(&b, "Run: gradedesk upload %s\n", batch.ID)
	b.WriteString("Add --dry-run first to preview what would be posted.\n\n")

	b.WriteString("WORKSPACE CONTENTS\n")
	b.WriteString("==================\n")
	b.WriteString("- submissions/: student work under pseudonymous names\n")
	b.WriteString("- results/: review sheet and score report\n")
	b.WriteString("- student_mapping.json: pseudonym-to-name mapping (keep secure!)\n\n")

	b.WriteString("IMPORTANT\n")
	b.WriteString("=========\n")
	b.WriteString("- The AI only ever saw pseudonyms; names resolve at upload time\n")
	b.WriteString("- Do not edit the Pseudonym or Canvas_User_ID columns\n")
	b.WriteString("- Keep student_mapping.json with the workspace; upload needs it\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write instructions: %w", err)
	}

	return nil
}

// WriteUploadReport writes the post-upload summary. This is the one
// artifact that shows real names next to pseudonyms; it is produced only
// after grades have been posted.
func (w *Writer) WriteUploadReport(ctx context.Context, path string, rep model.UploadReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("GRADEDESK UPLOAD REPORT\n")
	b.WriteString("=======================\n\n")
	fmt.Fprintf(&b, "Assignment: %s\n", rep.AssignmentName)
	fmt.Fprintf(&b, "Batch:      %s\n", rep.BatchID)
	fmt.Fprintf(&b, "Finished:   %s\n\n", rep.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Uploaded: %d\n", rep.Uploaded)
	fmt.Fprintf(&b, "Skipped:  %d\n", rep.Skipped)
	fmt.Fprintf(&b, "Failed:   %d\n\n", rep.Failed)

	b.WriteString("OUTCOMES\n")
	b.WriteString("========\n")
	for _, o := range rep.Outcomes {
		status := "uploaded"
		if o.Err != "" {
			status = o.Err
		}
		fmt.Fprintf(&b, "%s (%s): grade %s: %s\n", o.Pseudonym, o.RealIdentity, o.Grade, status)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write upload report: %w", err)
	}

	return nil
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// parseLenientFloat reads a numeric cell, tolerating a trailing percent
// sign and instructor formatting. Unparseable cells read as zero; these
// columns are informational, the authoritative values live in the registry.
func parseLenientFloat(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
