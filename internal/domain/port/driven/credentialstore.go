package driven

import (
	"context"
	"errors"

	"github.com/gradedesk/gradedesk/internal/domain/model"
)

var (
	// ErrCredentialNotFound is returned by Load when no record exists under
	// the requested key name.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrDecryptionFailed is returned when a stored record cannot be
	// decrypted: wrong passphrase or corrupted ciphertext. The two cases are
	// indistinguishable by construction (AEAD authentication failure).
	ErrDecryptionFailed = errors.New("credential decryption failed")

	// ErrWeakPassphrase is returned by Save when a newly chosen passphrase is
	// shorter than the configured minimum. Unlocking existing records is
	// never subject to this check.
	ErrWeakPassphrase = errors.New("passphrase does not meet minimum length")
)

// CredentialStore defines the driven port for encrypted secret persistence.
// Secrets are encrypted under a key derived from a user passphrase; the
// plaintext never touches disk and lives in process memory only while the
// caller holds the returned value. Every mutation is atomic: a cancelled or
// failed operation leaves the prior on-disk state untouched.
type CredentialStore interface {
	// Save encrypts secret under a passphrase obtained from prompt and
	// writes it as the record for keyName, replacing any prior record.
	// A fresh salt is generated on every save.
	Save(ctx context.Context, keyName, secret string, prompt PassphraseProvider) error

	// Load decrypts and returns the secret stored under keyName, deriving
	// the key from the record's stored salt and a passphrase obtained from
	// prompt. Returns ErrCredentialNotFound when no record exists and
	// ErrDecryptionFailed on a wrong passphrase or corrupt record.
	Load(ctx context.Context, keyName string, prompt PassphraseProvider) (string, error)

	// List returns metadata for all stored records, sorted by key name.
	// Listing never requires a passphrase; no plaintext is exposed.
	List(ctx context.Context) ([]model.CredentialInfo, error)

	// Clear deletes the record for keyName. Deleting an absent record is
	// not an error.
	Clear(ctx context.Context, keyName string) error

	// ClearAll removes every stored record.
	ClearAll(ctx context.Context) error
}
