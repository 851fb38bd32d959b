package driven

import (
	"context"
	"errors"
)

// ErrPassphraseCancelled is returned by a PassphraseProvider when the user
// declines to supply a passphrase (EOF, interrupt, mismatched confirmation).
// Store operations propagate it unchanged so callers can distinguish "user
// backed out" from real failures.
var ErrPassphraseCancelled = errors.New("passphrase entry cancelled")

// PassphraseAction tells a PassphraseProvider why the passphrase is needed,
// so interactive implementations can word the prompt and decide whether to
// ask for confirmation.
type PassphraseAction string

const (
	// PassphraseCreate requests a new passphrase for an encrypted record
	// about to be written. Providers should confirm the entry.
	PassphraseCreate PassphraseAction = "create"

	// PassphraseUnlock requests the passphrase protecting an existing
	// record. No confirmation, no strength check.
	PassphraseUnlock PassphraseAction = "unlock"
)

// PassphraseProvider supplies a passphrase on demand. Implementations range
// from interactive terminal prompts to environment lookups in automation.
type PassphraseProvider interface {
	Passphrase(ctx context.Context, action PassphraseAction, keyName string) (string, error)
}

// PassphraseFunc adapts a plain function to the PassphraseProvider interface.
type PassphraseFunc func(ctx context.Context, action PassphraseAction, keyName string) (string, error)

// Passphrase calls f.
func (f PassphraseFunc) Passphrase(ctx context.Context, action PassphraseAction, keyName string) (string, error) {
	return f(ctx, action, keyName)
}
