// Package cli implements the gradedesk command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

const passphraseEnvVar = "GRADEDESK_PASSPHRASE"

// passphraseProvider returns the provider for this invocation: the
// GRADEDESK_PASSPHRASE environment variable when set (automation), otherwise
// an interactive terminal prompt that asks at most once per action.
func passphraseProvider() driven.PassphraseProvider {
	if v, ok := os.LookupEnv(passphraseEnvVar); ok && v != "" {
		return driven.PassphraseFunc(func(context.Context, driven.PassphraseAction, string) (string, error) {
			return v, nil
		})
	}
	return &promptCache{}
}

// promptCache wraps the terminal prompt so commands touching several records
// ask for the store passphrase once per action, not once per record.
type promptCache struct {
	mu     sync.Mutex
	unlock *string
	create *string
}

func (p *promptCache) Passphrase(_ context.Context, action driven.PassphraseAction, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cached := &p.unlock
	if action == driven.PassphraseCreate {
		cached = &p.create
	}
	if *cached != nil {
		return **cached, nil
	}

	pass, err := promptPassphrase(action)
	if err != nil {
		return "", err
	}
	*cached = &pass
	return pass, nil
}

// promptPassphrase reads a passphrase from the controlling terminal with
// echo off. New passphrases are confirmed before they are accepted.
func promptPassphrase(action driven.PassphraseAction) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; set %s: %w", passphraseEnvVar, driven.ErrPassphraseCancelled)
	}

	label := "Credential store passphrase: "
	if action == driven.PassphraseCreate {
		label = "New credential store passphrase: "
	}

	pass, err := readSecret(label)
	if err != nil {
		return "", err
	}
	if action != driven.PassphraseCreate {
		return pass, nil
	}

	confirm, err := readSecret("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("entries do not match: %w", driven.ErrPassphraseCancelled)
	}
	return pass, nil
}

// readSecret prints label to stderr and reads one line without echo.
func readSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", driven.ErrPassphraseCancelled)
	}
	return strings.TrimSpace(string(raw)), nil
}
