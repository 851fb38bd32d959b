package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// BatchesCmd returns the batches command group. Bare "batches" lists the
// registry; "batches show <id>" prints one batch in full.
func BatchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List grading batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			defer d.close()

			svc, err := d.batchService()
			if err != nil {
				return err
			}

			batches, err := svc.ListBatches(cmd.Context())
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				fmt.Println("No batches yet. Start one with 'gradedesk grade'.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tASSIGNMENT\tSTATUS\tSCORED\tFAILED")
			fmt.Fprintln(w, "--\t-------\t----------\t------\t------\t------")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\n",
					b.ID,
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
					b.AssignmentName,
					b.Status,
					b.ScoredCount, b.SubmissionCount,
					b.FailedCount,
				)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(batchesShowCmd())
	return cmd
}

func batchesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch with its submissions and scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			defer d.close()

			svc, err := d.batchService()
			if err != nil {
				return err
			}

			detail, err := svc.GetBatchDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b := detail.Batch

			fmt.Printf("Batch:       %s\n", b.ID)
			fmt.Printf("Assignment:  %s (course %d, assignment %d)\n", b.AssignmentName, b.CourseID, b.AssignmentID)
			fmt.Printf("Status:      %s\n", b.Status)
			fmt.Printf("Rubric:      %s (%s, %g points)\n", orDash(b.RubricTitle), b.RubricSource, b.PointsPossible)
			fmt.Printf("Created:     %s\n", b.CreatedAt.Local().Format("2006-01-02 15:04"))
			if !b.UploadedAt.IsZero() {
				fmt.Printf("Uploaded:    %s\n", b.UploadedAt.Local().Format("2006-01-02 15:04"))
			}
			fmt.Printf("Workspace:   %s\n", b.WorkspaceDir)
			fmt.Printf("Submissions: %d total, %d scored, %d failed\n",
				b.SubmissionCount, b.ScoredCount, b.FailedCount)

			if len(detail.Submissions) > 0 {
				scores := make(map[string]string, len(detail.Results))
				for _, res := range detail.Results {
					scores[res.Pseudonym] = fmt.Sprintf("%.1f/%.1f (%.1f%%)", res.Score, res.MaxScore, res.Percentage)
				}

				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "PSEUDONYM\tSTATUS\tSCORE\tERROR")
				fmt.Fprintln(w, "---------\t------\t-----\t-----")
				for _, sub := range detail.Submissions {
					score, ok := scores[sub.Pseudonym]
					if !ok {
						score = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						sub.Pseudonym, sub.ScoreStatus, score, orDash(sub.ScoreError))
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
