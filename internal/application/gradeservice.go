// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Workspace layout. Paths stored in the registry are workspace-relative so
// a moved workspace stays usable.
const (
	submissionsDirName    = "submissions"
	resultsDirName        = "results"
	mappingFileName       = "student_mapping.json"
	instructionsFileName  = "INSTRUCTIONS.txt"
	batchReportFileName   = "report.html"
	uploadReportFileName  = "upload_report.txt"
	reviewSheetNameFormat = "%s_REVIEW.csv"
)

// RunBatchRequest carries the inputs for one grading run.
type RunBatchRequest struct {
	CourseID     int64
	AssignmentID int64

	// RubricPath points at a local rubric JSON file. When empty, the rubric
	// comes from the gradebook.
	RubricPath string

	// Instructions are extra instructor directions for the scorer. When
	// empty, the rubric's own grading instructions apply.
	Instructions string
}

// GradeService runs step 1 of the workflow: download, anonymize, score, and
// lay out a review workspace. Real identities stay between the gradebook
// and the workspace mapping file; the scorer, the registry, and every
// review artifact see pseudonyms only.
type GradeService struct {
	gradebook     driven.Gradebook
	scorer        driven.Scorer
	extractor     driven.TextExtractor
	mappings      driven.MappingStore
	batches       driven.BatchStore
	results       driven.ResultStore
	reports       driven.ReportWriter
	workspaceRoot string
}

// NewGradeService creates a GradeService with all required dependencies.
func NewGradeService(
	gradebook driven.Gradebook,
	scorer driven.Scorer,
	extractor driven.TextExtractor,
	mappings driven.MappingStore,
	batches driven.BatchStore,
	results driven.ResultStore,
	reports driven.ReportWriter,
	workspaceRoot string,
) *GradeService {
	return &GradeService{
		gradebook:     gradebook,
		scorer:        scorer,
		extractor:     extractor,
		mappings:      mappings,
		batches:       batches,
		results:       results,
		reports:       reports,
		workspaceRoot: workspaceRoot,
	}
}

// RunBatch executes a full grading run for one assignment and returns the
// finished batch, left in review status. Per-submission failures are
// recorded and counted, never abort the run.
func (s *GradeService) RunBatch(ctx context.Context, req RunBatchRequest) (*model.Batch, error) {
	start := time.Now()

	assignment, err := findAssignment(ctx, s.gradebook, req.CourseID, req.AssignmentID)
	if err != nil {
		return nil, err
	}

	rubric, rubricSource, err := s.resolveRubric(ctx, req, assignment)
	if err != nil {
		return nil, err
	}

	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		instructions = rubric.GradingInstructions
	}

	listed, err := s.gradebook.ListSubmissions(ctx, req.CourseID, req.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	handedIn := submittedOnly(listed)
	if len(handedIn) == 0 {
		return nil, fmt.Errorf("assignment %q has no submissions to grade", assignment.Name)
	}

	mapping, err := buildRosterMapping(handedIn)
	if err != nil {
		return nil, fmt.Errorf("build identity mapping: %w", err)
	}

	batch := model.Batch{
		ID:             uuid.NewString(),
		CourseID:       req.CourseID,
		AssignmentID:   req.AssignmentID,
		AssignmentName: assignment.Name,
		Status:         model.BatchStatusDownloading,
		RubricSource:   rubricSource,
		RubricTitle:    rubric.AssignmentTitle,
		PointsPossible: rubric.TotalPoints,
		CreatedAt:      time.Now().UTC(),
	}
	batch.WorkspaceDir = filepath.Join(s.workspaceRoot,
		fmt.Sprintf("%s_%s", safeAssignmentName(assignment.Name), batch.CreatedAt.Format("20060102_150405")))

	if err := s.createWorkspace(ctx, batch.WorkspaceDir, mapping); err != nil {
		return nil, err
	}
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("register batch: %w", err)
	}

	slog.Info("batch started",
		"batch", batch.ID,
		"assignment", assignment.Name,
		"submissions", len(handedIn),
		"rubric_source", rubricSource,
	)

	stored, err := s.downloadAll(ctx, batch, mapping, handedIn)
	if err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, err
	}

	if err := s.batches.UpdateBatchStatus(ctx, batch.ID, model.BatchStatusScoring); err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, fmt.Errorf("advance batch to scoring: %w", err)
	}

	scored, failed, err := s.scoreAll(ctx, batch, mapping, rubric, instructions, stored)
	if err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, err
	}

	batch.SubmissionCount = len(stored)
	batch.ScoredCount = scored
	batch.FailedCount = failed
	if err := s.batches.UpdateBatchCounts(ctx, batch.ID, len(stored), scored, failed); err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, fmt.Errorf("record batch counts: %w", err)
	}

	if err := s.writeReviewArtifacts(ctx, batch, rubric, stored); err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, err
	}

	if err := s.batches.UpdateBatchStatus(ctx, batch.ID, model.BatchStatusReview); err != nil {
		s.failBatch(ctx, batch.ID)
		return nil, fmt.Errorf("advance batch to review: %w", err)
	}

	slog.Info("batch ready for review",
		"batch", batch.ID,
		"scored", scored,
		"failed", failed,
		"workspace", batch.WorkspaceDir,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return s.batches.GetBatch(ctx, batch.ID)
}

// findAssignment resolves the assignment's name and metadata.
func findAssignment(ctx context.Context, gradebook driven.Gradebook, courseID, assignmentID int64) (model.Assignment, error) {
	assignments, err := gradebook.ListAssignments(ctx, courseID)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range assignments {
		if a.ID == assignmentID {
			return a, nil
		}
	}
	return model.Assignment{}, fmt.Errorf("assignment %d not found in course %d", assignmentID, courseID)
}

// resolveRubric loads the local rubric file when one was given, otherwise
// fetches and converts the assignment's gradebook rubric.
func (s *GradeService) resolveRubric(ctx context.Context, req RunBatchRequest, assignment model.Assignment) (model.Rubric, model.RubricSource, error) {
	if req.RubricPath != "" {
		rubric, err := loadLocalRubric(req.RubricPath)
		if err != nil {
			return model.Rubric{}, "", err
		}
		if rubric.AssignmentTitle == "" {
			rubric.AssignmentTitle = assignment.Name
		}
		return rubric, model.RubricSourceLocal, nil
	}

	rubric, err := s.gradebook.FetchRubric(ctx, req.CourseID, assignment.ID)
	if err != nil {
		return model.Rubric{}, "", fmt.Errorf("fetch rubric: %w", err)
	}
	if rubric == nil {
		return model.Rubric{}, "", fmt.Errorf("assignment %q has no rubric; provide one with --rubric", assignment.Name)
	}
	return *rubric, model.RubricSourceCanvas, nil
}

// createWorkspace lays out the batch directory and persists the mapping.
func (s *GradeService) createWorkspace(ctx context.Context, dir string, mapping *model.Mapping) error {
	for _, sub := range []string{submissionsDirName, resultsDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
	}
	if err := s.mappings.Save(ctx, filepath.Join(dir, mappingFileName), mapping); err != nil {
		return fmt.Errorf("save identity mapping: %w", err)
	}
	return nil
}

// downloadAll pulls every submission's content into the workspace under
// pseudonymous names and registers the rows. Download failures are logged
// per file and surface later as unscoreable submissions.
func (s *GradeService) downloadAll(ctx context.Context, batch model.Batch, mapping *model.Mapping, handedIn []model.GradebookSubmission) ([]model.Submission, error) {
	stored := make([]model.Submission, 0, len(handedIn))

	for _, gs := range handedIn {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		pseudonym, err := mapping.Pseudonym(gs.UserName)
		if err != nil {
			return nil, fmt.Errorf("pseudonym lookup: %w", err)
		}

		subDir := filepath.Join(batch.WorkspaceDir, submissionsDirName, pseudonym)
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			return nil, fmt.Errorf("create submission dir: %w", err)
		}

		var files []model.SubmissionFile
		for i, att := range gs.Attachments {
			name := pseudonym + "_submission"
			if i > 0 {
				name = fmt.Sprintf("%s_submission_%d", pseudonym, i+1)
			}
			name += strings.ToLower(filepath.Ext(att.Filename))

			rel := filepath.Join(submissionsDirName, pseudonym, name)
			if err := s.gradebook.DownloadAttachment(ctx, att.URL, filepath.Join(batch.WorkspaceDir, rel)); err != nil {
				slog.Error("attachment download failed",
					"batch", batch.ID, "pseudonym", pseudonym, "file", att.Filename, "error", err)
				continue
			}
			files = append(files, model.SubmissionFile{Path: rel, Kind: model.SubmissionKindAttachment})
		}

		hasText := strings.TrimSpace(gs.Body) != ""
		if hasText {
			rel := filepath.Join(submissionsDirName, pseudonym, pseudonym+"_text_submission.html")
			redacted := mapping.Redact(gs.Body)
			if err := os.WriteFile(filepath.Join(batch.WorkspaceDir, rel), []byte(redacted), 0o644); err != nil {
				return nil, fmt.Errorf("write text submission: %w", err)
			}
			files = append(files, model.SubmissionFile{Path: rel, Kind: model.SubmissionKindTextEntry})
		}

		sub := model.Submission{
			BatchID:      batch.ID,
			Pseudonym:    pseudonym,
			CanvasUserID: gs.UserID,
			Files:        files,
			HasTextEntry: hasText,
			SubmittedAt:  gs.SubmittedAt,
			ScoreStatus:  model.ScoreStatusSkipped,
		}
		sub.ID, err = s.batches.AddSubmission(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("register submission %s: %w", pseudonym, err)
		}
		stored = append(stored, sub)
	}

	return stored, nil
}

// scoreAll extracts, redacts, and scores each stored submission. Returns the
// scored and failed counts; per-submission errors are recorded on the row.
func (s *GradeService) scoreAll(ctx context.Context, batch model.Batch, mapping *model.Mapping, rubric model.Rubric, instructions string, stored []model.Submission) (scored, failed int, err error) {
	for _, sub := range stored {
		if ctx.Err() != nil {
			return scored, failed, ctx.Err()
		}

		text, extractErrs := s.extractSubmission(ctx, batch, sub)
		if text == "" {
			status, reason := model.ScoreStatusSkipped, "no scoreable content"
			if len(extractErrs) > 0 {
				status, reason = model.ScoreStatusFailed, strings.Join(extractErrs, "; ")
				failed++
			}
			if uerr := s.batches.UpdateSubmissionScore(ctx, sub.ID, status, reason); uerr != nil {
				return scored, failed, fmt.Errorf("record submission outcome: %w", uerr)
			}
			slog.Warn("submission not scored", "batch", batch.ID, "pseudonym", sub.Pseudonym, "reason", reason)
			continue
		}

		result, serr := s.scorer.Score(ctx, driven.ScoreRequest{
			Rubric:       rubric,
			Pseudonym:    sub.Pseudonym,
			Text:         mapping.Redact(text),
			Instructions: instructions,
		})
		if serr != nil {
			failed++
			slog.Error("scoring failed", "batch", batch.ID, "pseudonym", sub.Pseudonym, "error", serr)
			if uerr := s.batches.UpdateSubmissionScore(ctx, sub.ID, model.ScoreStatusFailed, serr.Error()); uerr != nil {
				return scored, failed, fmt.Errorf("record submission outcome: %w", uerr)
			}
			continue
		}

		result.BatchID = batch.ID
		if err := s.results.SaveResult(ctx, result); err != nil {
			return scored, failed, fmt.Errorf("save result %s: %w", sub.Pseudonym, err)
		}
		if err := s.batches.UpdateSubmissionScore(ctx, sub.ID, model.ScoreStatusScored, ""); err != nil {
			return scored, failed, fmt.Errorf("record submission outcome: %w", err)
		}
		scored++
	}

	return scored, failed, nil
}

// extractSubmission converts every downloaded file to text and concatenates
// the pieces. Extraction failures are collected, not fatal.
func (s *GradeService) extractSubmission(ctx context.Context, batch model.Batch, sub model.Submission) (string, []string) {
	var parts []string
	var extractErrs []string

	for _, f := range sub.Files {
		text, err := s.extractor.Extract(ctx, filepath.Join(batch.WorkspaceDir, f.Path))
		if err != nil {
			slog.Error("text extraction failed",
				"batch", batch.ID, "pseudonym", sub.Pseudonym, "file", f.Path, "error", err)
			extractErrs = append(extractErrs, err.Error())
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), extractErrs
}

// writeReviewArtifacts renders the review sheet, the HTML report, and the
// workspace instructions.
func (s *GradeService) writeReviewArtifacts(ctx context.Context, batch model.Batch, rubric model.Rubric, stored []model.Submission) error {
	results, err := s.results.ListResultsByBatch(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	userIDs := make(map[string]int64, len(stored))
	for _, sub := range stored {
		userIDs[sub.Pseudonym] = sub.CanvasUserID
	}

	rows := make([]model.ReviewRow, 0, len(results))
	for _, res := range results {
		comments := formatFeedback(res)
		rows = append(rows, model.ReviewRow{
			Pseudonym:     res.Pseudonym,
			CanvasUserID:  userIDs[res.Pseudonym],
			AIScore:       res.Score,
			MaxScore:      res.MaxScore,
			Percentage:    res.Percentage,
			LetterGrade:   res.LetterGrade,
			AIComments:    comments,
			FinalGrade:    fmt.Sprintf("%.1f%%", res.Percentage),
			FinalComments: comments,
		})
	}

	resultsDir := filepath.Join(batch.WorkspaceDir, resultsDirName)
	reviewSheet := filepath.Join(resultsDir, fmt.Sprintf(reviewSheetNameFormat, safeAssignmentName(batch.AssignmentName)))

	if err := s.reports.WriteReviewSheet(ctx, reviewSheet, rows); err != nil {
		return fmt.Errorf("write review sheet: %w", err)
	}
	if err := s.reports.WriteBatchReport(ctx, filepath.Join(resultsDir, batchReportFileName), batch, rubric, results); err != nil {
		return fmt.Errorf("write batch report: %w", err)
	}
	if err := s.reports.WriteInstructions(ctx, filepath.Join(batch.WorkspaceDir, instructionsFileName), batch, reviewSheet); err != nil {
		return fmt.Errorf("write instructions: %w", err)
	}

	return nil
}

// failBatch is a best-effort status transition on a fatal error.
func (s *GradeService) failBatch(ctx context.Context, id string) {
	if err := s.batches.UpdateBatchStatus(ctx, id, model.BatchStatusFailed); err != nil {
		slog.Error("failed to mark batch failed", "batch", id, "error", err)
	}
}

// submittedOnly filters the gradebook listing down to submissions that have
// content to grade.
func submittedOnly(listed []model.GradebookSubmission) []model.GradebookSubmission {
	var out []model.GradebookSubmission
	for _, gs := range listed {
		if gs.State == "unsubmitted" {
			continue
		}
		if len(gs.Attachments) == 0 && strings.TrimSpace(gs.Body) == "" {
			continue
		}
		out = append(out, gs)
	}
	return out
}

// buildRosterMapping freezes the pseudonym assignment over the handed-in
// submissions in listing order.
func buildRosterMapping(handedIn []model.GradebookSubmission) (*model.Mapping, error) {
	roster := make([]model.RosterEntry, 0, len(handedIn))
	for _, gs := range handedIn {
		roster = append(roster, model.RosterEntry{
			Identity:   gs.UserName,
			ExternalID: strconv.FormatInt(gs.UserID, 10),
		})
	}
	return model.BuildMapping(roster)
}

// loadLocalRubric reads a rubric from a local JSON file.
func loadLocalRubric(path string) (model.Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Rubric{}, fmt.Errorf("read rubric file: %w", err)
	}

	var rubric model.Rubric
	if err := json.Unmarshal(data, &rubric); err != nil {
		return model.Rubric{}, fmt.Errorf("parse rubric file %s: %w", path, err)
	}

	if len(rubric.Criteria) == 0 {
		return model.Rubric{}, fmt.Errorf("rubric file %s has no criteria", path)
	}
	var sum float64
	for _, c := range rubric.Criteria {
		if c.Name == "" {
			return model.Rubric{}, fmt.Errorf("rubric file %s has a criterion without a name", path)
		}
		if c.Points < 0 {
			return model.Rubric{}, fmt.Errorf("rubric file %s: criterion %q has negative points", path, c.Name)
		}
		sum += c.Points
	}
	if rubric.TotalPoints <= 0 {
		rubric.TotalPoints = sum
	}

	return rubric, nil
}

// formatFeedback flattens a result into the review sheet's comment text:
// one line per criterion with its score, indented feedback, then the
// overall feedback.
func formatFeedback(res model.GradeResult) string {
	var lines []string
	for _, cs := range res.CriterionScores {
		lines = append(lines, fmt.Sprintf("%s: %.1f/%g", cs.Criterion, cs.Score, cs.MaxScore))
		if cs.Feedback != "" {
			lines = append(lines, "  - "+cs.Feedback)
		}
	}
	if res.Feedback != "" {
		lines = append(lines, "", "Overall: "+res.Feedback)
	}
	return strings.Join(lines, "\n")
}

// safeAssignmentName converts an assignment name into a filesystem-safe
// directory fragment.
func safeAssignmentName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "assignment"
	}
	return b.String()
}
