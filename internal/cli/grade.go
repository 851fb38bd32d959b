package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gradedesk/gradedesk/internal/application"
)

// GradeCmd returns the grade command, step 1 of the workflow.
func GradeCmd() *cobra.Command {
	var (
		courseID         int64
		assignmentID     int64
		rubricPath       string
		canvasRubric     bool
		instructionsPath string
		modelName        string
	)

	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Download, anonymize, and score an assignment's submissions",
		Long: `Run step 1 of the workflow for one assignment: download every
submission, assign pseudonyms, score the anonymized text against the
rubric, and lay out a review workspace with an editable CSV and an HTML
report.

The rubric comes from Canvas by default; pass --rubric to use a local
rubric JSON file instead.

Examples:
  gradedesk grade --course 42 --assignment 501
  gradedesk grade --course 42 --assignment 501 --rubric essay1.json
  gradedesk grade --course 42 --assignment 501 --instructions notes.txt --model gpt-4o`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rubricPath != "" && canvasRubric {
				return errors.New("--rubric and --canvas-rubric are mutually exclusive")
			}

			var instructions string
			if instructionsPath != "" {
				data, err := os.ReadFile(instructionsPath)
				if err != nil {
					return fmt.Errorf("read instructions file: %w", err)
				}
				instructions = strings.TrimSpace(string(data))
			}

			d, err := newDeps()
			if err != nil {
				return err
			}
			defer d.close()

			svc, err := d.gradeService(cmd.Context(), modelName)
			if err != nil {
				return err
			}

			batch, err := svc.RunBatch(cmd.Context(), application.RunBatchRequest{
				CourseID:     courseID,
				AssignmentID: assignmentID,
				RubricPath:   rubricPath,
				Instructions: instructions,
			})
			if err != nil {
				return err
			}

			fmt.Printf("%s Batch %s ready for review\n", color.GreenString("✓"), batch.ID)
			fmt.Printf("  Assignment: %s\n", batch.AssignmentName)
			fmt.Printf("  Scored:     %d of %d submissions\n", batch.ScoredCount, batch.SubmissionCount)
			if batch.FailedCount > 0 {
				fmt.Printf("  %s Failed:     %d (see 'gradedesk batches show %s')\n",
					color.YellowString("⚠"), batch.FailedCount, batch.ID)
			}
			fmt.Printf("  Workspace:  %s\n", batch.WorkspaceDir)
			fmt.Printf("\nReview the CSV in the workspace, then run: gradedesk upload %s\n", batch.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Canvas course ID (required)")
	cmd.Flags().Int64Var(&assignmentID, "assignment", 0, "Canvas assignment ID (required)")
	cmd.Flags().StringVar(&rubricPath, "rubric", "", "Path to a local rubric JSON file")
	cmd.Flags().BoolVar(&canvasRubric, "canvas-rubric", false, "Use the assignment's Canvas rubric (the default)")
	cmd.Flags().StringVar(&instructionsPath, "instructions", "", "Path to a file with extra grading instructions")
	cmd.Flags().StringVar(&modelName, "model", "", "Override the scoring model")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}
