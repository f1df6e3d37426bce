package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ghmirror/internal/config"
	"ghmirror/internal/database"
	"ghmirror/internal/github"
	"ghmirror/internal/mirror"
	"ghmirror/internal/store"
	"ghmirror/internal/token"
)

// Overrides carries command-line flag values that take precedence over
// both environment variables and the config file.
type Overrides struct {
	WorkingDir string
	Workers    int
	NoHistory  bool
}

// MirrorApp is the application layer between the CLI and the sync service.
// It constructs all dependencies from config, applying the override
// precedence flag > environment > config file, and manages the DB and log
// file lifecycle on Close.
type MirrorApp struct {
	cfg        *config.Config
	db         database.Database
	store      mirror.Store
	service    *mirror.Service
	tokens     *token.Store
	op         *SyncOperation
	clock      mirror.Clock
	idgen      mirror.IDGenerator
	logger     mirror.Logger
	logFile    *os.File
	workingDir string
	workers    int
}

// NewMirrorApp creates a fully wired MirrorApp from the given config.
// operation identifies the CLI command being run (e.g. "Sync", "Status").
// The caller must call Close when done.
func NewMirrorApp(cfg *config.Config, operation string, ov Overrides) (*MirrorApp, error) {
	workingDir := resolveWorkingDir(cfg, ov)
	workers := resolveWorkers(cfg, ov)

	tokens := token.NewStore(cfg.Token.IdentityPath, cfg.Token.TokenPath)
	tok, err := resolveToken(tokens)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}

	client := github.NewClient(resolveUpstreamURL(cfg), tok)

	db, err := newDatabase(cfg, ov)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	clock := mirror.RealClock{}
	runID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapted := &slogAdapter{l: logger}

	st := store.New(adapted)
	svc := mirror.NewService(client, st, adapted)

	return &MirrorApp{
		cfg:        cfg,
		db:         db,
		store:      st,
		service:    svc,
		tokens:     tokens,
		op:         NewSyncOperation(operation, ""),
		clock:      clock,
		idgen:      mirror.UUIDGenerator{},
		logger:     adapted,
		logFile:    logFile,
		workingDir: workingDir,
		workers:    workers,
	}, nil
}

// resolveUpstreamURL applies TUNASYNC_UPSTREAM_URL > config file.
func resolveUpstreamURL(cfg *config.Config) string {
	if url := os.Getenv("TUNASYNC_UPSTREAM_URL"); url != "" {
		return url
	}
	return cfg.UpstreamURL
}

// resolveWorkingDir applies flag > TUNASYNC_WORKING_DIR > config file.
func resolveWorkingDir(cfg *config.Config, ov Overrides) string {
	if ov.WorkingDir != "" {
		return ov.WorkingDir
	}
	if dir := os.Getenv("TUNASYNC_WORKING_DIR"); dir != "" {
		return dir
	}
	return cfg.WorkingDir
}

// resolveWorkers applies flag > config file > default 1.
func resolveWorkers(cfg *config.Config, ov Overrides) int {
	if ov.Workers > 0 {
		return ov.Workers
	}
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return 1
}

// resolveToken applies GITHUB_TOKEN > encrypted token file > none.
func resolveToken(tokens *token.Store) (string, error) {
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return tok, nil
	}
	if !tokens.HasToken() {
		return "", nil
	}
	return tokens.LoadToken()
}

// newDatabase builds the history database; a memory database is used when
// recording is disabled or unconfigured so the recording path needs no nil
// checks.
func newDatabase(cfg *config.Config, ov Overrides) (database.Database, error) {
	if ov.NoHistory || cfg.Database.Type == "" {
		return database.NewMemoryDatabase(), nil
	}
	return database.NewDatabaseFromConfig(cfg.Database)
}

// persistOperation saves the sync operation to the database, giving it an
// auto-increment ID. This should only be called for recording commands.
func (a *MirrorApp) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.db.CreateSyncOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting sync operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Targets builds the Target list from the configured manifest.
func (a *MirrorApp) Targets() []mirror.Target {
	targets := make([]mirror.Target, 0, len(a.cfg.Targets))
	for _, tc := range a.cfg.Targets {
		targets = append(targets, mirror.NewTarget(a.workingDir, tc.Repo, tc.Path))
	}
	return targets
}

// Sync runs the full manifest through the worker pool and records one
// outcome row per target. Individual target failures are reported in the
// outcomes, never as an error: the run always processes every target.
func (a *MirrorApp) Sync(ctx context.Context) ([]mirror.Outcome, error) {
	if a.workingDir == "" {
		return nil, fmt.Errorf("working directory not set (use --working-dir, TUNASYNC_WORKING_DIR, or the config file)")
	}

	if err := a.persistOperation(); err != nil {
		return nil, err
	}

	outcomes := a.service.SyncAll(ctx, a.Targets(), a.workers)

	for _, o := range outcomes {
		row := &database.TargetOutcome{
			ID:          a.idgen.New(),
			OperationID: a.op.ID,
			Repo:        o.Target.Repo,
			Path:        o.Target.RemotePath(),
			Destination: o.Target.Dest,
			Status:      string(o.Status),
			Checksum:    o.SHA,
			Size:        o.Size,
			CreatedAt:   a.clock.Now().UTC(),
		}
		if o.Err != nil {
			row.Message = o.Err.Error()
			a.op.Status = "error"
		}
		if err := a.db.CreateTargetOutcome(row); err != nil {
			a.logger.Warn("recording outcome", "dest", o.Target.Dest, "error", err)
		}
	}

	return outcomes, nil
}

// TargetState describes the local state of one manifest target.
type TargetState struct {
	Target  mirror.Target
	Present bool   // destination symlink exists
	SHA     string // hash the symlink references
	Size    int64
}

// Status reports, without touching the network, which manifest targets are
// installed locally and which content hash each references.
func (a *MirrorApp) Status() ([]TargetState, error) {
	if a.workingDir == "" {
		return nil, fmt.Errorf("working directory not set (use --working-dir, TUNASYNC_WORKING_DIR, or the config file)")
	}

	var states []TargetState
	for _, t := range a.Targets() {
		sha, size, ok := a.store.Current(t.Dest)
		states = append(states, TargetState{Target: t, Present: ok, SHA: sha, Size: size})
	}
	return states, nil
}

// History returns the most recent sync operations.
func (a *MirrorApp) History(limit int) ([]*database.SyncOperation, error) {
	return a.db.ListSyncOperations(limit)
}

// Outcomes returns the per-target rows of one recorded operation.
func (a *MirrorApp) Outcomes(operationID int64) ([]*database.TargetOutcome, error) {
	return a.db.ListTargetOutcomes(operationID)
}

// SaveToken encrypts and stores the GitHub token, creating the identity
// file first if needed.
func (a *MirrorApp) SaveToken(tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return fmt.Errorf("token is empty")
	}
	if err := a.tokens.GenerateIdentity(); err != nil {
		return err
	}
	return a.tokens.SaveToken(tok)
}

// Close finalizes the operation record and closes all resources.
func (a *MirrorApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishSyncOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing sync operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
