package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// RosterCmd returns the roster preview command.
func RosterCmd() *cobra.Command {
	var courseID, assignmentID int64

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Preview the pseudonyms a grading run would assign",
		Long: `Show which students handed in an assignment and the pseudonym each one
would receive, without downloading anything or starting a batch.

Pseudonyms are frozen per batch in submission-listing order, so this preview
matches the assignment a grade run started now would make.

Examples:
  gradedesk roster --course 42 --assignment 501`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			defer d.close()

			svc, err := d.catalogService(cmd.Context())
			if err != nil {
				return err
			}

			preview, err := svc.PreviewRoster(cmd.Context(), courseID, assignmentID)
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d handed in\n\n", preview.Assignment.Name, len(preview.Entries))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PSEUDONYM\tSTUDENT\tCANVAS ID")
			fmt.Fprintln(w, "---------\t-------\t---------")
			for _, e := range preview.Entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Pseudonym, e.RealIdentity, orDash(e.ExternalID))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if preview.Skipped > 0 {
				fmt.Printf("\n%d student(s) listed without gradeable content.\n", preview.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Canvas course ID (required)")
	cmd.Flags().Int64Var(&assignmentID, "assignment", 0, "Canvas assignment ID (required)")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}
