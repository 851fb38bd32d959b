package report_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/adapter/driven/report"
	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

func sampleRows() []model.ReviewRow {
	return []model.ReviewRow{
		{
			Pseudonym:     "Student_001",
			CanvasUserID:  901,
			AIScore:       85,
			MaxScore:      100,
			Percentage:    85,
			LetterGrade:   "B",
			AIComments:    "Thesis: 35.0/40\n  - Strong but could be sharper.\n\nOverall: solid work",
			FinalGrade:    "85.0%",
			FinalComments: "Solid work.",
		},
		{
			Pseudonym:     "Student_002",
			CanvasUserID:  902,
			AIScore:       72.5,
			MaxScore:      100,
			Percentage:    72.5,
			LetterGrade:   "C",
			AIComments:    `Quoted "claims" need citations`,
			FinalGrade:    "72.5%",
			FinalComments: "See comments.",
		},
	}
}

func TestWriter_ReviewSheetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Essay_1_REVIEW.csv")
	w := report.NewWriter()
	ctx := context.Background()

	require.NoError(t, w.WriteReviewSheet(ctx, path, sampleRows()))

	rows, err := w.ReadReviewSheet(ctx, path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Student_001", rows[0].Pseudonym)
	assert.Equal(t, int64(901), rows[0].CanvasUserID)
	assert.Equal(t, 85.0, rows[0].AIScore)
	assert.Equal(t, 100.0, rows[0].MaxScore)
	assert.Equal(t, 85.0, rows[0].Percentage)
	assert.Equal(t, "B", rows[0].LetterGrade)
	assert.Equal(t, "85.0%", rows[0].FinalGrade)
	assert.Equal(t, "Solid work.", rows[0].FinalComments)

	// Multi-line and quoted comments survive CSV quoting.
	assert.Contains(t, rows[0].AIComments, "Strong but could be sharper.")
	assert.Contains(t, rows[1].AIComments, `"claims"`)
}

func TestWriter_ReadReviewSheet_ToleratesInstructorEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edited.csv")

	// Reordered columns, an extra column, and edited grades, the way a
	// spreadsheet app might save it back.
	edited := "Final_Grade,Pseudonym,Canvas_User_ID,Final_Comments,My_Extra_Notes\n" +
		"92%,Student_001,901,Bumped for effort,keep an eye on drafts\n" +
		"0,Student_002,902,Missing citations,\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	rows, err := report.NewWriter().ReadReviewSheet(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Student_001", rows[0].Pseudonym)
	assert.Equal(t, int64(901), rows[0].CanvasUserID)
	assert.Equal(t, "92%", rows[0].FinalGrade)
	assert.Equal(t, "Bumped for effort", rows[0].FinalComments)
	assert.Zero(t, rows[0].AIScore)
}

func TestWriter_ReadReviewSheet_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	require.NoError(t, os.WriteFile(path, []byte("Pseudonym,Canvas_User_ID\nStudent_001,901\n"), 0o644))

	_, err := report.NewWriter().ReadReviewSheet(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrMalformedReviewSheet)
	assert.Contains(t, err.Error(), "Final_Grade")
}

func TestWriter_ReadReviewSheet_BadUserID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	content := "Pseudonym,Canvas_User_ID,Final_Grade,Final_Comments\n" +
		"Student_001,oops,85%,fine\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := report.NewWriter().ReadReviewSheet(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrMalformedReviewSheet)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriter_ReadReviewSheet_EmptyPseudonym(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	content := "Pseudonym,Canvas_User_ID,Final_Grade,Final_Comments\n" +
		",901,85%,fine\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := report.NewWriter().ReadReviewSheet(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrMalformedReviewSheet)
}

func TestWriter_ReadReviewSheet_MissingFile(t *testing.T) {
	dir := t.TempDir()

	_, err := report.NewWriter().ReadReviewSheet(context.Background(), filepath.Join(dir, "gone.csv"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, driven.ErrMalformedReviewSheet)
}

func TestWriter_WriteInstructions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "INSTRUCTIONS.txt")
	batch := model.Batch{
		ID:             "batch-0001",
		AssignmentName: "Essay 1",
		CreatedAt:      time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
	}

	err := report.NewWriter().WriteInstructions(context.Background(), path, batch, "/work/results/Essay_1_REVIEW.csv")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "Assignment: Essay 1")
	assert.Contains(t, text, "Essay_1_REVIEW.csv")
	assert.Contains(t, text, "gradedesk upload batch-0001")
	assert.Contains(t, text, "student_mapping.json")
	assert.Contains(t, text, "Final_Grade")
}

func TestWriter_WriteUploadReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload_report.txt")
	rep := model.UploadReport{
		BatchID:        "batch-0001",
		AssignmentName: "Essay 1",
		Uploaded:       2,
		Skipped:        1,
		Failed:         1,
		Outcomes: []model.UploadOutcome{
			{Pseudonym: "Student_001", RealIdentity: "Mary Stone", Grade: "85.0%"},
			{Pseudonym: "Student_002", RealIdentity: "Bo Li", Grade: "72.5%"},
			{Pseudonym: "Student_003", RealIdentity: "Ann Park", Grade: "", Err: "skipped: no final grade"},
			{Pseudonym: "Student_004", RealIdentity: "Raj Patel", Grade: "90.0%", Err: "upload rejected"},
		},
		FinishedAt: time.Date(2026, 1, 21, 16, 30, 0, 0, time.UTC),
	}

	err := report.NewWriter().WriteUploadReport(context.Background(), path, rep)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "Uploaded: 2")
	assert.Contains(t, text, "Skipped:  1")
	assert.Contains(t, text, "Failed:   1")
	assert.Contains(t, text, "Student_001 (Mary Stone): grade 85.0%: uploaded")
	assert.Contains(t, text, "Student_004 (Raj Patel): grade 90.0%: upload rejected")
}
