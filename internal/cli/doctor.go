package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// CheckResult represents the outcome of a single doctor check.
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation.
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check gradedesk configuration, credentials, and connectivity",
		Long: `Environment health check for gradedesk.

Validates:
- Configuration and data directory
- Stored credentials (listing needs no passphrase)
- Batch registry database
- Workspace root
- Canvas API reachability (unlocks credentials when it can)

Examples:
  gradedesk doctor           # Run full health check
  gradedesk doctor --quiet   # Exit code only (0=healthy, 1=issues)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results := runChecks(cmd.Context())

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, colorStatus(r.Status))
				}
				fmt.Println()

				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Printf("\n%s Issues found.\n", color.RedString("✗"))
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return errors.New("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")
	return cmd
}

func runChecks(ctx context.Context) []CheckResult {
	d, err := newDeps()
	if err != nil {
		return []CheckResult{{Name: "Config", Status: "✗", Details: "  " + err.Error()}}
	}
	defer d.close()

	results := []CheckResult{{Name: "Config", Status: "✓"}}
	results = append(results, checkDataDir(d))

	credResult, stored := checkCredentials(ctx, d)
	results = append(results, credResult)

	results = append(results, checkRegistry(d))
	results = append(results, checkWorkspaceRoot(d))
	results = append(results, checkCanvas(ctx, d, stored))

	return results
}

// checkDataDir validates the directory holding credentials and the registry.
func checkDataDir(d *deps) CheckResult {
	info, err := os.Stat(d.cfg.DataDir)
	switch {
	case os.IsNotExist(err):
		return CheckResult{
			Name:    "Data directory",
			Status:  "⚠",
			Details: fmt.Sprintf("  %s does not exist yet; created on first use", d.cfg.DataDir),
		}
	case err != nil:
		return CheckResult{Name: "Data directory", Status: "✗", Details: "  " + err.Error()}
	case !info.IsDir():
		return CheckResult{
			Name:    "Data directory",
			Status:  "✗",
			Details: fmt.Sprintf("  %s exists but is not a directory", d.cfg.DataDir),
		}
	}
	return CheckResult{Name: "Data directory", Status: "✓"}
}

// checkCredentials lists stored records without unlocking anything and
// reports which of the expected keys are missing.
func checkCredentials(ctx context.Context, d *deps) (CheckResult, map[string]bool) {
	stored := map[string]bool{}

	infos, err := d.creds.List(ctx)
	if err != nil {
		return CheckResult{Name: "Credentials", Status: "✗", Details: "  " + err.Error()}, stored
	}
	for _, info := range infos {
		stored[info.KeyName] = true
	}

	var missing []string
	for _, key := range []string{model.CredentialOpenAIKey, model.CredentialCanvasURL, model.CredentialCanvasToken} {
		if !stored[key] {
			missing = append(missing, key)
		}
	}

	if len(missing) == 3 {
		return CheckResult{
			Name:    "Credentials",
			Status:  "⚠",
			Details: "  None stored; run 'gradedesk credentials set-openai' and 'set-canvas'",
		}, stored
	}
	if len(missing) > 0 {
		return CheckResult{
			Name:    "Credentials",
			Status:  "⚠",
			Details: "  Missing: " + strings.Join(missing, ", "),
		}, stored
	}
	return CheckResult{Name: "Credentials", Status: "✓"}, stored
}

// checkRegistry opens the batch registry when the file exists.
func checkRegistry(d *deps) CheckResult {
	if _, err := os.Stat(d.cfg.DBPath); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Batch registry",
			Status:  "⚠",
			Details: fmt.Sprintf("  %s not created yet; the first grade run creates it", d.cfg.DBPath),
		}
	}
	if _, err := d.openRegistry(); err != nil {
		return CheckResult{Name: "Batch registry", Status: "✗", Details: "  " + err.Error()}
	}
	return CheckResult{Name: "Batch registry", Status: "✓"}
}

// checkWorkspaceRoot validates where batch workspaces land.
func checkWorkspaceRoot(d *deps) CheckResult {
	info, err := os.Stat(d.cfg.WorkspaceRoot)
	switch {
	case os.IsNotExist(err):
		return CheckResult{
			Name:    "Workspace root",
			Status:  "⚠",
			Details: fmt.Sprintf("  %s does not exist; created on first grade run", d.cfg.WorkspaceRoot),
		}
	case err != nil:
		return CheckResult{Name: "Workspace root", Status: "✗", Details: "  " + err.Error()}
	case !info.IsDir():
		return CheckResult{
			Name:    "Workspace root",
			Status:  "✗",
			Details: fmt.Sprintf("  %s exists but is not a directory", d.cfg.WorkspaceRoot),
		}
	}
	return CheckResult{Name: "Workspace root", Status: "✓"}
}

// checkCanvas unlocks the Canvas credentials and lists courses, when both
// records exist and a passphrase can be obtained without hanging automation.
func checkCanvas(ctx context.Context, d *deps, stored map[string]bool) CheckResult {
	if !stored[model.CredentialCanvasURL] || !stored[model.CredentialCanvasToken] {
		return CheckResult{
			Name:    "Canvas API",
			Status:  "⚠",
			Details: "  Skipped: Canvas credentials not stored",
		}
	}

	if os.Getenv(passphraseEnvVar) == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		return CheckResult{
			Name:    "Canvas API",
			Status:  "⚠",
			Details: fmt.Sprintf("  Skipped: no terminal; set %s to check connectivity", passphraseEnvVar),
		}
	}

	gradebook, err := d.gradebook(ctx)
	if err != nil {
		if errors.Is(err, driven.ErrPassphraseCancelled) {
			return CheckResult{Name: "Canvas API", Status: "⚠", Details: "  Skipped: passphrase entry cancelled"}
		}
		return CheckResult{Name: "Canvas API", Status: "✗", Details: "  " + err.Error()}
	}

	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := gradebook.ListCourses(listCtx); err != nil {
		return CheckResult{Name: "Canvas API", Status: "✗", Details: "  " + err.Error()}
	}
	return CheckResult{Name: "Canvas API", Status: "✓"}
}

// colorStatus renders a check status with its color accent.
func colorStatus(s string) string {
	switch s {
	case "✓":
		return color.GreenString(s)
	case "⚠":
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}
