package application

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// UploadService runs the final workflow step: it reads the instructor-edited
// review sheet back, resolves pseudonyms to real gradebook users through the
// workspace mapping, and posts grades. This is the only code path where real
// identities and grades meet.
type UploadService struct {
	gradebook driven.Gradebook
	batches   driven.BatchStore
	mappings  driven.MappingStore
	reports   driven.ReportWriter
}

// NewUploadService creates an UploadService with all required dependencies.
func NewUploadService(
	gradebook driven.Gradebook,
	batches driven.BatchStore,
	mappings driven.MappingStore,
	reports driven.ReportWriter,
) *UploadService {
	return &UploadService{
		gradebook: gradebook,
		batches:   batches,
		mappings:  mappings,
		reports:   reports,
	}
}

// UploadBatch posts the reviewed grades of a batch back to the gradebook.
// Rows without a final grade are skipped, rows the gradebook rejects are
// recorded and the run continues. With dryRun set, nothing is posted and no
// state changes; the returned report shows what would happen.
func (s *UploadService) UploadBatch(ctx context.Context, batchID string, dryRun bool) (*model.UploadReport, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != model.BatchStatusReview && batch.Status != model.BatchStatusUploaded {
		return nil, fmt.Errorf("batch %s is %s, not ready for upload", batch.ID, batch.Status)
	}
	if batch.Status == model.BatchStatusUploaded {
		slog.Warn("batch was already uploaded, grades will be re-posted", "batch", batch.ID)
	}

	mapping, err := s.mappings.Load(ctx, filepath.Join(batch.WorkspaceDir, mappingFileName))
	if err != nil {
		return nil, fmt.Errorf("load identity mapping: %w", err)
	}

	reviewSheet := filepath.Join(batch.WorkspaceDir, resultsDirName,
		fmt.Sprintf(reviewSheetNameFormat, safeAssignmentName(batch.AssignmentName)))
	rows, err := s.reports.ReadReviewSheet(ctx, reviewSheet)
	if err != nil {
		return nil, fmt.Errorf("read review sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("review sheet %s has no rows", reviewSheet)
	}

	report := model.UploadReport{
		BatchID:        batch.ID,
		AssignmentName: batch.AssignmentName,
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		outcome := model.UploadOutcome{
			Pseudonym: row.Pseudonym,
			Grade:     strings.TrimSpace(row.FinalGrade),
		}

		entry, rerr := mapping.Resolve(row.Pseudonym)
		if rerr != nil {
			outcome.Err = "pseudonym not in batch mapping"
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			slog.Error("upload row rejected", "batch", batch.ID, "pseudonym", row.Pseudonym, "error", rerr)
			continue
		}
		outcome.RealIdentity = entry.RealIdentity

		if strconv.FormatInt(row.CanvasUserID, 10) != entry.ExternalID {
			outcome.Err = "gradebook user id does not match batch mapping"
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			slog.Error("upload row rejected", "batch", batch.ID, "pseudonym", row.Pseudonym, "error", outcome.Err)
			continue
		}

		if outcome.Grade == "" {
			outcome.Err = "no final grade entered"
			report.Skipped++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		if dryRun {
			report.Uploaded++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		if perr := s.gradebook.PostGrade(ctx, batch.CourseID, batch.AssignmentID, row.CanvasUserID, outcome.Grade, row.FinalComments); perr != nil {
			outcome.Err = perr.Error()
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			slog.Error("grade upload failed", "batch", batch.ID, "pseudonym", row.Pseudonym, "error", perr)
			continue
		}

		report.Uploaded++
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = time.Now().UTC()

	if !dryRun {
		if err := s.reports.WriteUploadReport(ctx, filepath.Join(batch.WorkspaceDir, uploadReportFileName), report); err != nil {
			return nil, fmt.Errorf("write upload report: %w", err)
		}
		if report.Uploaded > 0 {
			if err := s.batches.MarkBatchUploaded(ctx, batch.ID, report.FinishedAt); err != nil {
				return nil, fmt.Errorf("mark batch uploaded: %w", err)
			}
		}
	}

	slog.Info("upload finished",
		"batch", batch.ID,
		"uploaded", report.Uploaded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"dry_run", dryRun,
	)

	return &report, nil
}
