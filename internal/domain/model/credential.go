package model

import "time"

// Credential key names used by the workflow. The store itself treats key
// names as opaque.
const (
	CredentialOpenAIKey   = "openai_api_key"
	CredentialCanvasURL   = "canvas_url"
	CredentialCanvasToken = "canvas_api_token"
)

// CredentialInfo is the public metadata of one stored secret. The plaintext
// never appears here; listing credentials must be possible without a
// passphrase.
type CredentialInfo struct {
	KeyName   string
	UpdatedAt time.Time
}

// KDFParams records how a record's encryption key is derived from the
// passphrase. Stored alongside each record so that old records remain
// decryptable after the defaults change.
type KDFParams struct {
	Algorithm  string `json:"algorithm"` // "pbkdf2-sha256"
	Iterations int    `json:"iterations"`
	KeyLen     int    `json:"key_len"`
}
