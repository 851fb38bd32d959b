package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

// CredentialsCmd returns the credentials command group.
func CredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage encrypted API credentials",
		Long: `Store and inspect the API credentials gradedesk needs.

Secrets are encrypted at rest under a passphrase you choose; the passphrase
is asked for again whenever a command needs to unlock them. In automation,
set GRADEDESK_PASSPHRASE instead of typing it.`,
	}

	cmd.AddCommand(credentialsSetOpenAICmd())
	cmd.AddCommand(credentialsSetCanvasCmd())
	cmd.AddCommand(credentialsStatusCmd())
	cmd.AddCommand(credentialsClearCmd())
	cmd.AddCommand(credentialsChangePassphraseCmd())

	return cmd
}

func credentialsSetOpenAICmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set-openai",
		Short: "Store the OpenAI API key",
		Long: `Store the OpenAI API key, encrypted under your passphrase.

The key is read from the terminal without echo, or from stdin with --stdin:

  echo "$OPENAI_API_KEY" | gradedesk credentials set-openai --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			secret, err := readCredentialInput("OpenAI API key: ", fromStdin, in)
			if err != nil {
				return err
			}
			if secret == "" {
				return errors.New("api key is empty")
			}

			if err := d.creds.Save(cmd.Context(), model.CredentialOpenAIKey, secret, d.prompt); err != nil {
				return err
			}

			fmt.Printf("%s Stored OpenAI API key in %s\n", color.GreenString("✓"), d.creds.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the key from stdin instead of prompting")
	return cmd
}

func credentialsSetCanvasCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set-canvas",
		Short: "Store the Canvas base URL and API token",
		Long: `Store the Canvas base URL and API token, encrypted under your passphrase.

With --stdin, the URL and the token are read as two lines:

  printf '%s\n%s\n' "$CANVAS_URL" "$CANVAS_TOKEN" | gradedesk credentials set-canvas --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			baseURL, err := readLineInput("Canvas base URL (e.g. https://school.instructure.com): ", in)
			if err != nil {
				return err
			}
			if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
				return fmt.Errorf("canvas url %q must start with http:// or https://", baseURL)
			}

			token, err := readCredentialInput("Canvas API token: ", fromStdin, in)
			if err != nil {
				return err
			}
			if token == "" {
				return errors.New("api token is empty")
			}

			ctx := cmd.Context()
			if err := d.creds.Save(ctx, model.CredentialCanvasURL, baseURL, d.prompt); err != nil {
				return err
			}
			if err := d.creds.Save(ctx, model.CredentialCanvasToken, token, d.prompt); err != nil {
				return err
			}

			fmt.Printf("%s Stored Canvas credentials for %s\n", color.GreenString("✓"), baseURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the token from stdin instead of prompting")
	return cmd
}

func credentialsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which credentials are stored",
		Long:  `List stored credential records. Listing never requires the passphrase.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}

			infos, err := d.creds.List(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Credential file: %s\n\n", d.creds.Path())

			if len(infos) == 0 {
				fmt.Println("No credentials stored.")
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "KEY\tUPDATED")
				fmt.Fprintln(w, "---\t-------")
				for _, info := range infos {
					fmt.Fprintf(w, "%s\t%s\n", info.KeyName, info.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				w.Flush()
			}

			stored := make(map[string]bool, len(infos))
			for _, info := range infos {
				stored[info.KeyName] = true
			}
			hints := map[string]string{
				model.CredentialOpenAIKey:   "gradedesk credentials set-openai",
				model.CredentialCanvasURL:   "gradedesk credentials set-canvas",
				model.CredentialCanvasToken: "gradedesk credentials set-canvas",
			}
			for _, key := range []string{model.CredentialOpenAIKey, model.CredentialCanvasURL, model.CredentialCanvasToken} {
				if !stored[key] {
					fmt.Printf("%s %s not set (run '%s')\n", color.YellowString("⚠"), key, hints[key])
				}
			}
			return nil
		},
	}
}

func credentialsClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [key-name]",
		Short: "Delete stored credentials",
		Long: `Delete one stored credential record, or every record with --all.

Examples:
  gradedesk credentials clear openai_api_key
  gradedesk credentials clear --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}

			switch {
			case all:
				if err := d.creds.ClearAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Printf("%s Removed all credentials\n", color.GreenString("✓"))
			case len(args) == 1:
				if err := d.creds.Clear(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("%s Removed credential %s\n", color.GreenString("✓"), args[0])
			default:
				return errors.New("pass a key name or --all")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every stored credential")
	return cmd
}

func credentialsChangePassphraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-passphrase",
		Short: "Re-encrypt all credentials under a new passphrase",
		Long: `Decrypt every stored credential with the current passphrase and
re-encrypt it under a new one. Records are rewritten one at a time; if a
step fails, the already rewritten records keep the new passphrase.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			infos, err := d.creds.List(ctx)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				return errors.New("no credentials stored")
			}

			// Unlock everything first so a wrong passphrase fails before
			// any record is rewritten.
			secrets := make(map[string]string, len(infos))
			for _, info := range infos {
				secret, err := d.creds.Load(ctx, info.KeyName, d.prompt)
				if err != nil {
					return err
				}
				secrets[info.KeyName] = secret
			}

			rewritten := 0
			for _, info := range infos {
				if err := d.creds.Save(ctx, info.KeyName, secrets[info.KeyName], d.prompt); err != nil {
					return fmt.Errorf("re-encrypted %d of %d records before failing on %s: %w",
						rewritten, len(infos), info.KeyName, err)
				}
				rewritten++
			}

			fmt.Printf("%s Re-encrypted %d credential(s) under the new passphrase\n",
				color.GreenString("✓"), rewritten)
			return nil
		},
	}
}

// readLineInput prints label to stderr and reads one visible line.
func readLineInput(label string, in *bufio.Reader) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readCredentialInput reads a secret: one line from in with --stdin,
// otherwise from the terminal without echo.
func readCredentialInput(label string, fromStdin bool, in *bufio.Reader) (string, error) {
	if fromStdin {
		return readLineInput("", in)
	}
	return readSecret(label)
}
