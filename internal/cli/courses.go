package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// CoursesCmd returns the courses listing command.
func CoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List Canvas courses you can grade in",
		Args:  cobra.NoArgs,
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

			courses, err := svc.ListCourses(cmd.Context())
			if err != nil {
				return err
			}
			if len(courses) == 0 {
				fmt.Println("No courses found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCODE\tTERM")
			fmt.Fprintln(w, "--\t----\t----\t----")
			for _, c := range courses {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.CourseCode, orDash(c.Term))
			}
			return w.Flush()
		},
	}
}

// orDash substitutes a dash for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
