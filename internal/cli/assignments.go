package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// AssignmentsCmd returns the assignments listing command.
func AssignmentsCmd() *cobra.Command {
	var courseID int64

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List a course's assignments",
		Long: `List the assignments of one course, with the IDs the grade command needs.

Examples:
  gradedesk assignments --course 42`,
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

			assignments, err := svc.ListAssignments(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				fmt.Println("No assignments found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPOINTS\tDUE\tRUBRIC\tPUBLISHED")
			fmt.Fprintln(w, "--\t----\t------\t---\t------\t---------")
			for _, a := range assignments {
				due := "-"
				if !a.DueAt.IsZero() {
					due = a.DueAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%d\t%s\t%g\t%s\t%s\t%s\n",
					a.ID, a.Name, a.PointsPossible, due, yesNo(a.HasRubric), yesNo(a.Published))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "Canvas course ID (required)")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
