package application

import (
	"context"
	"fmt"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// CatalogService exposes the gradebook's course and assignment catalog for
// browsing before a grading run. It depends only on port interfaces.
type CatalogService struct {
	gradebook driven.Gradebook
}

// NewCatalogService creates a new CatalogService with the required dependencies.
func NewCatalogService(gradebook driven.Gradebook) *CatalogService {
	return &CatalogService{
		gradebook: gradebook,
	}
}

// ListCourses returns the courses visible to the configured instructor.
func (s *CatalogService) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.gradebook.ListCourses(ctx)
}

// ListAssignments returns a course's assignments.
func (s *CatalogService) ListAssignments(ctx context.Context, courseID int64) ([]model.Assignment, error) {
	return s.gradebook.ListAssignments(ctx, courseID)
}

// RosterPreview shows the pseudonym each handed-in student would receive if
// a batch started now, before anything is downloaded or persisted.
type RosterPreview struct {
	Assignment model.Assignment
	Entries    []model.MappingEntry

	// Skipped counts students listed by the gradebook without gradeable
	// content (unsubmitted, or no attachments and no text entry).
	Skipped int
}

// PreviewRoster builds the same first-seen pseudonym assignment a grading
// run would freeze, without creating a workspace or a batch. Useful for
// checking who handed in before committing to a run.
func (s *CatalogService) PreviewRoster(ctx context.Context, courseID, assignmentID int64) (*RosterPreview, error) {
	assignment, err := findAssignment(ctx, s.gradebook, courseID, assignmentID)
	if err != nil {
		return nil, err
	}

	listed, err := s.gradebook.ListSubmissions(ctx, courseID, assignmentID)
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

	return &RosterPreview{
		Assignment: assignment,
		Entries:    mapping.Entries(),
		Skipped:    len(listed) - len(handedIn),
	}, nil
}
