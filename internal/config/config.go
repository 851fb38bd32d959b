// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// DataDir holds the encrypted credential file and the batch registry DB.
	DataDir string
	// DBPath is the batch registry SQLite file.
	DBPath string
	// WorkspaceRoot is where batch workspaces are created.
	WorkspaceRoot string
	// OpenAIModel is the chat model used for scoring.
	OpenAIModel string
	// HTTPTimeout bounds individual gradebook API calls.
	HTTPTimeout time.Duration
	// ScorerTimeout bounds a single scoring call; model responses for long
	// submissions can take well over a minute.
	ScorerTimeout time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional: GRADEDESK_DATA_DIR (~/.gradedesk),
// GRADEDESK_DB_PATH (<data-dir>/gradedesk.db), GRADEDESK_WORKSPACE_ROOT (.),
// GRADEDESK_OPENAI_MODEL (gpt-4o-mini), GRADEDESK_HTTP_TIMEOUT (30s),
// GRADEDESK_SCORER_TIMEOUT (2m).
func Load() (*Config, error) {
	dataDir := os.Getenv("GRADEDESK_DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory for data dir: %w", err)
		}
		dataDir = filepath.Join(home, ".gradedesk")
	}

	dbPath := filepath.Join(dataDir, "gradedesk.db")
	if v, ok := os.LookupEnv("GRADEDESK_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	workspaceRoot := "."
	if v, ok := os.LookupEnv("GRADEDESK_WORKSPACE_ROOT"); ok && v != "" {
		workspaceRoot = v
	}

	model := "gpt-4o-mini"
	if v, ok := os.LookupEnv("GRADEDESK_OPENAI_MODEL"); ok && v != "" {
		model = v
	}

	httpTimeout := 30 * time.Second
	if v, ok := os.LookupEnv("GRADEDESK_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GRADEDESK_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		httpTimeout = parsed
	}

	scorerTimeout := 2 * time.Minute
	if v, ok := os.LookupEnv("GRADEDESK_SCORER_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("GRADEDESK_SCORER_TIMEOUT has invalid duration %q: %w", v, err)
		}
		scorerTimeout = parsed
	}

	return &Config{
		DataDir:       dataDir,
		DBPath:        dbPath,
		WorkspaceRoot: workspaceRoot,
		OpenAIModel:   model,
		HTTPTimeout:   httpTimeout,
		ScorerTimeout: scorerTimeout,
	}, nil
}
