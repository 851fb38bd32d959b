package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gradedesk/gradedesk/internal/adapter/driven/canvas"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/credfile"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/extract"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/mappingfile"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/openai"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/report"
	"github.com/gradedesk/gradedesk/internal/adapter/driven/sqlite"
	"github.com/gradedesk/gradedesk/internal/application"
	"github.com/gradedesk/gradedesk/internal/config"
	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// deps wires configuration, the credential store, and adapters for one
// command invocation. Adapters needing secrets are built lazily so commands
// that never touch Canvas or OpenAI never prompt for a passphrase.
type deps struct {
	cfg    *config.Config
	creds  *credfile.Store
	prompt driven.PassphraseProvider

	db *sqlite.DB
}

// newDeps loads configuration and prepares the credential store.
func newDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg:    cfg,
		creds:  credfile.NewStore(cfg.DataDir),
		prompt: passphraseProvider(),
	}, nil
}

// close releases the registry handle if one was opened.
func (d *deps) close() {
	if d.db != nil {
		_ = d.db.Close()
		d.db = nil
	}
}

// openRegistry opens the batch registry database and applies migrations.
func (d *deps) openRegistry() (*sqlite.DB, error) {
	if d.db != nil {
		return d.db, nil
	}

	if err := os.MkdirAll(filepath.Dir(d.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlite.NewDB(d.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlite.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	d.db = db
	return db, nil
}

// gradebook unlocks the Canvas credentials and builds the client.
func (d *deps) gradebook(ctx context.Context) (driven.Gradebook, error) {
	baseURL, err := d.creds.Load(ctx, model.CredentialCanvasURL, d.prompt)
	if err != nil {
		return nil, fmt.Errorf("canvas url (run 'gradedesk credentials set-canvas'): %w", err)
	}
	token, err := d.creds.Load(ctx, model.CredentialCanvasToken, d.prompt)
	if err != nil {
		return nil, fmt.Errorf("canvas api token (run 'gradedesk credentials set-canvas'): %w", err)
	}
	return canvas.NewClient(baseURL, token, d.cfg.HTTPTimeout), nil
}

// scorer unlocks the OpenAI key and builds the scorer. An empty modelName
// uses the configured default.
func (d *deps) scorer(ctx context.Context, modelName string) (driven.Scorer, error) {
	key, err := d.creds.Load(ctx, model.CredentialOpenAIKey, d.prompt)
	if err != nil {
		return nil, fmt.Errorf("openai api key (run 'gradedesk credentials set-openai'): %w", err)
	}
	if modelName == "" {
		modelName = d.cfg.OpenAIModel
	}
	return openai.NewScorer(key, modelName, d.cfg.ScorerTimeout), nil
}

// catalogService builds the course/assignment browsing service.
func (d *deps) catalogService(ctx context.Context) (*application.CatalogService, error) {
	gradebook, err := d.gradebook(ctx)
	if err != nil {
		return nil, err
	}
	return application.NewCatalogService(gradebook), nil
}

// gradeService builds the full step-1 pipeline.
func (d *deps) gradeService(ctx context.Context, modelName string) (*application.GradeService, error) {
	gradebook, err := d.gradebook(ctx)
	if err != nil {
		return nil, err
	}
	scorer, err := d.scorer(ctx, modelName)
	if err != nil {
		return nil, err
	}
	db, err := d.openRegistry()
	if err != nil {
		return nil, err
	}

	return application.NewGradeService(
		gradebook,
		scorer,
		extract.NewExtractor(),
		mappingfile.NewStore(),
		sqlite.NewBatchRepo(db),
		sqlite.NewResultRepo(db),
		report.NewWriter(),
		d.cfg.WorkspaceRoot,
	), nil
}

// uploadService builds the step-2/3 pipeline.
func (d *deps) uploadService(ctx context.Context) (*application.UploadService, error) {
	gradebook, err := d.gradebook(ctx)
	if err != nil {
		return nil, err
	}
	db, err := d.openRegistry()
	if err != nil {
		return nil, err
	}

	return application.NewUploadService(
		gradebook,
		sqlite.NewBatchRepo(db),
		mappingfile.NewStore(),
		report.NewWriter(),
	), nil
}

// batchService builds the registry browsing service.
func (d *deps) batchService() (*application.BatchService, error) {
	db, err := d.openRegistry()
	if err != nil {
		return nil, err
	}
	return application.NewBatchService(sqlite.NewBatchRepo(db), sqlite.NewResultRepo(db)), nil
}
