package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// UploadCmd returns the upload command, the final workflow step.
func UploadCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "upload <batch-id>",
		Short: "Post reviewed grades back to Canvas",
		Long: `Read a batch's reviewed CSV, resolve pseudonyms back to real
students through the workspace mapping, and post each final grade and
comment to Canvas. Rows without a final grade are skipped.

Run with --dry-run first to see what would be posted without changing
anything.

Examples:
  gradedesk upload 3f1c9b2a-... --dry-run
  gradedesk upload 3f1c9b2a-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			defer d.close()

			svc, err := d.uploadService(cmd.Context())
			if err != nil {
				return err
			}

			report, err := svc.UploadBatch(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("Dry run for %q: nothing was posted.\n\n", report.AssignmentName)
				fmt.Printf("  Would upload: %d\n", report.Uploaded)
			} else {
				fmt.Printf("%s Upload finished for %q\n\n", color.GreenString("✓"), report.AssignmentName)
				fmt.Printf("  Uploaded: %d\n", report.Uploaded)
			}
			fmt.Printf("  Skipped:  %d\n", report.Skipped)
			fmt.Printf("  Failed:   %d\n", report.Failed)

			if report.Failed > 0 || report.Skipped > 0 {
				fmt.Println()
				fmt.Println("Rows not uploaded:")
				for _, o := range report.Outcomes {
					if o.Err == "" {
						continue
					}
					who := o.Pseudonym
					if o.RealIdentity != "" {
						who = fmt.Sprintf("%s (%s)", o.Pseudonym, o.RealIdentity)
					}
					fmt.Printf("  - %s: %s\n", who, o.Err)
				}
			}

			if !dryRun {
				fmt.Printf("\nFull report: upload_report.txt in the batch workspace\n")
			}

			if report.Uploaded == 0 && report.Failed > 0 {
				return fmt.Errorf("all %d attempted rows failed", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and validate rows without posting grades")
	return cmd
}
