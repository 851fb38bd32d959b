package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/gradedesk/gradedesk/internal/cli"
	"github.com/gradedesk/gradedesk/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "gradedesk",
		Short:   "Anonymized AI-assisted grading for Canvas",
		Version: version.String(),
		Long: `gradedesk grades Canvas submissions in two steps: it downloads and
anonymizes every submission, scores the anonymized text against a rubric
with an AI model, and lays out a review workspace; after manual review, it
uploads the final grades back to Canvas.

The scoring model only ever sees pseudonyms. Real identities stay in the
workspace mapping file on your machine.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.CredentialsCmd())
	rootCmd.AddCommand(cli.CoursesCmd())
	rootCmd.AddCommand(cli.AssignmentsCmd())
	rootCmd.AddCommand(cli.RosterCmd())
	rootCmd.AddCommand(cli.GradeCmd())
	rootCmd.AddCommand(cli.BatchesCmd())
	rootCmd.AddCommand(cli.UploadCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Ctrl-C cancels the command context; long batch loops check it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
		os.Exit(1)
	}
}
