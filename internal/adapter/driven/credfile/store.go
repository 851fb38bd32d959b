// Package credfile stores API credentials encrypted at rest in a single
// JSON document. Each record is sealed with AES-256-GCM under a key derived
// from a user passphrase via PBKDF2; key derivation parameters and salt are
// stored per record so older records outlive parameter changes. Mutations
// are atomic (temp file + rename) and guarded by an advisory file lock, so
// concurrent gradedesk processes cannot interleave writes.
package credfile

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"golang.org/x/crypto/pbkdf2"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

const (
	credentialFile = "credentials.json"
	lockFile       = "credentials.lock"

	kdfAlgorithm  = "pbkdf2-sha256"
	kdfIterations = 100_000
	kdfKeyLen     = 32
	saltLen       = 16

	minPassphraseRunes = 8

	lockRetryDelay = 100 * time.Millisecond
)

// record is one encrypted credential as stored on disk. Salt and ciphertext
// are base64; the ciphertext is nonce || sealed payload.
type record struct {
	KeyName    string          `json:"key_name"`
	Salt       string          `json:"salt"`
	KDF        model.KDFParams `json:"kdf_params"`
	Ciphertext string          `json:"ciphertext"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// document is the full on-disk credential file.
type document struct {
	Version int               `json:"version"`
	Records map[string]record `json:"records"`
}

// Store is the file-backed implementation of the CredentialStore port.
type Store struct {
	dir      string
	path     string
	lockPath string

	mu sync.Mutex // serializes mutations within this process
}

// NewStore creates a Store rooted at dir. The directory is created on first
// mutation with owner-only permissions.
func NewStore(dir string) *Store {
	return &Store{
		dir:      dir,
		path:     filepath.Join(dir, credentialFile),
		lockPath: filepath.Join(dir, lockFile),
	}
}

// Path returns the location of the credential file.
func (s *Store) Path() string {
	return s.path
}

// Save encrypts secret under a freshly prompted passphrase and writes it as
// the record for keyName. The prompt happens before anything touches disk,
// so a cancelled entry leaves the store byte-identical.
func (s *Store) Save(ctx context.Context, keyName, secret string, prompt driven.PassphraseProvider) error {
	if keyName == "" {
		return errors.New("credential key name is empty")
	}

	pass, err := prompt.Passphrase(ctx, driven.PassphraseCreate, keyName)
	if err != nil {
		return fmt.Errorf("passphrase for %q: %w", keyName, err)
	}
	if utf8.RuneCountInString(pass) < minPassphraseRunes {
		return fmt.Errorf("passphrase for %q must be at least %d characters: %w",
			keyName, minPassphraseRunes, driven.ErrWeakPassphrase)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}
	params := model.KDFParams{Algorithm: kdfAlgorithm, Iterations: kdfIterations, KeyLen: kdfKeyLen}
	key := deriveKey(pass, salt, params)

	ciphertext, err := encrypt(key, secret)
	if err != nil {
		return fmt.Errorf("encrypt credential %q: %w", keyName, err)
	}

	return s.mutate(ctx, func(doc *document) error {
		doc.Records[keyName] = record{
			KeyName:    keyName,
			Salt:       base64.StdEncoding.EncodeToString(salt),
			KDF:        params,
			Ciphertext: ciphertext,
			UpdatedAt:  time.Now().UTC(),
		}
		return nil
	})
}

// Load decrypts and returns the secret stored under keyName.
func (s *Store) Load(ctx context.Context, keyName string, prompt driven.PassphraseProvider) (string, error) {
	doc, err := s.read()
	if err != nil {
		return "", err
	}

	rec, ok := doc.Records[keyName]
	if !ok {
		return "", fmt.Errorf("%q: %w", keyName, driven.ErrCredentialNotFound)
	}

	pass, err := prompt.Passphrase(ctx, driven.PassphraseUnlock, keyName)
	if err != nil {
		return "", fmt.Errorf("passphrase for %q: %w", keyName, err)
	}

	salt, err := base64.StdEncoding.DecodeString(rec.Salt)
	if err != nil {
		return "", fmt.Errorf("credential %q has invalid salt: %w", keyName, driven.ErrDecryptionFailed)
	}
	if rec.KDF.Algorithm != kdfAlgorithm {
		return "", fmt.Errorf("credential %q uses unsupported kdf %q: %w",
			keyName, rec.KDF.Algorithm, driven.ErrDecryptionFailed)
	}

	key := deriveKey(pass, salt, rec.KDF)
	plaintext, err := decrypt(key, rec.Ciphertext)
	if err != nil {
		// Wrong passphrase and corrupt ciphertext both fail GCM
		// authentication; callers cannot tell them apart and neither can we.
		return "", fmt.Errorf("credential %q: %w", keyName, driven.ErrDecryptionFailed)
	}
	return plaintext, nil
}

// List returns metadata for every stored record, sorted by key name.
func (s *Store) List(_ context.Context) ([]model.CredentialInfo, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	infos := make([]model.CredentialInfo, 0, len(doc.Records))
	for _, rec := range doc.Records {
		infos = append(infos, model.CredentialInfo{KeyName: rec.KeyName, UpdatedAt: rec.UpdatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].KeyName < infos[j].KeyName })
	return infos, nil
}

// Clear removes the record for keyName. Clearing an absent record is a no-op.
func (s *Store) Clear(ctx context.Context, keyName string) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}
	return s.mutate(ctx, func(doc *document) error {
		delete(doc.Records, keyName)
		return nil
	})
}

// ClearAll deletes the credential file entirely.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.flock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// mutate runs fn against the current document under both the in-process
// mutex and the cross-process file lock, then writes the result atomically.
func (s *Store) mutate(ctx context.Context, fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}

	unlock, err := s.flock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

// flock acquires the advisory cross-process lock, retrying until ctx is done.
func (s *Store) flock(ctx context.Context) (func(), error) {
	lock := flock.New(s.lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock credential store: %w", err)
	}
	if !locked {
		return nil, errors.New("credential store is locked by another process")
	}
	return func() { _ = lock.Unlock() }, nil
}

// read loads the on-disk document. A missing file yields an empty document.
func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Version: 1, Records: map[string]record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse credential file %s: %w", s.path, err)
	}
	if doc.Records == nil {
		doc.Records = map[string]record{}
	}
	return &doc, nil
}

// write persists the document atomically and clamps permissions to
// owner-only. The rename guarantees a reader never sees a half-written file.
func (s *Store) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential file: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("chmod credential file: %w", err)
	}
	return nil
}

// deriveKey stretches the passphrase into an AES key using the record's
// stored parameters.
func deriveKey(passphrase string, salt []byte, params model.KDFParams) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, params.Iterations, params.KeyLen, sha256.New)
}

// encrypt seals plaintext with AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt opens a base64-encoded AES-256-GCM ciphertext.
func decrypt(key []byte, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
