// Package ledger keeps an optional SQLite history of resolved builds and the
// artifacts deployed for them. The counter file stays the source of truth for
// build numbers; the ledger is an audit trail.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/deploy"
	"github.com/leapstack-labs/shipver/internal/version"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DeploymentStatus is the outcome recorded for one artifact.
type DeploymentStatus string

// Deployment statuses.
const (
	StatusCopied  DeploymentStatus = "copied"
	StatusSkipped DeploymentStatus = "skipped"
	StatusFailed  DeploymentStatus = "failed"
)

// Build is a resolved version as stored in the ledger.
type Build struct {
	ID          string           `json:"id" yaml:"id"`
	Context     buildctx.Context `json:"context" yaml:"context"`
	BuildNumber int              `json:"build_number" yaml:"build_number"`
	Code        int32            `json:"version_code" yaml:"version_code"`
	Name        string           `json:"version_name" yaml:"version_name"`
	Label       string           `json:"version_label" yaml:"version_label"`
	Release     bool             `json:"release" yaml:"release"`
	CreatedAt   time.Time        `json:"created_at" yaml:"created_at"`
}

// Deployment is one artifact outcome of a deployment pass.
type Deployment struct {
	ID        string           `json:"id" yaml:"id"`
	BuildID   string           `json:"build_id" yaml:"build_id"`
	Artifact  string           `json:"artifact" yaml:"artifact"`
	ABI       string           `json:"abi,omitempty" yaml:"abi,omitempty"`
	DestPath  string           `json:"dest_path,omitempty" yaml:"dest_path,omitempty"`
	Status    DeploymentStatus `json:"status" yaml:"status"`
	Error     string           `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the SQLite-backed ledger.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if necessary) the ledger at path and applies pending
// migrations. Use ":memory:" for an in-memory ledger.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	s.db = db

	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	version, err := s.MigrationVersion()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read ledger schema version: %w", err)
	}
	s.logger.Debug("ledger opened", slog.String("path", path), slog.Int64("schema_version", version))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

func generateID() string {
	return uuid.New().String()
}

// RecordBuild stores a resolved version.
func (s *Store) RecordBuild(ctx context.Context, m version.Metadata) (*Build, error) {
	b := &Build{
		ID:          generateID(),
		Context:     m.Context,
		BuildNumber: m.BuildNumber,
		Code:        m.Code,
		Name:        m.Name,
		Label:       m.Label,
		Release:     m.Release,
		CreatedAt:   s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (id, context, build_number, version_code, version_name, label, is_release, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Context), b.BuildNumber, b.Code, b.Name, b.Label, b.Release, b.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record build: %w", err)
	}

	s.logger.Debug("recorded build", slog.String("id", b.ID), slog.String("version", b.Name))
	return b, nil
}

// FindBuild returns the most recent build recorded under versionName, or nil
// if there is none.
func (s *Store) FindBuild(ctx context.Context, versionName string) (*Build, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, context, build_number, version_code, version_name, label, is_release, created_at
		 FROM builds WHERE version_name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		versionName,
	)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find build: %w", err)
	}
	return b, nil
}

// Builds returns the most recent builds, newest first. An empty ctxName
// lists every context. A limit of zero or less returns all builds.
func (s *Store) Builds(ctx context.Context, ctxName buildctx.Context, limit int) ([]*Build, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT id, context, build_number, version_code, version_name, label, is_release, created_at FROM builds`
	args := []any{}
	if ctxName != "" {
		query += ` WHERE context = ?`
		args = append(args, string(ctxName))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// RecordDeployment stores every outcome of a deployment report against a
// previously recorded build.
func (s *Store) RecordDeployment(ctx context.Context, buildID string, report *deploy.Report) ([]*Deployment, error) {
	if report == nil {
		return nil, nil
	}

	now := s.now().UTC()
	var deployments []*Deployment
	for _, a := range report.Copied {
		deployments = append(deployments, &Deployment{
			Artifact: a.Name, ABI: string(a.ABI), DestPath: a.DestPath, Status: StatusCopied,
		})
	}
	for _, sk := range report.Skipped {
		deployments = append(deployments, &Deployment{
			Artifact: sk.Name, Status: StatusSkipped, Error: string(sk.Reason),
		})
	}
	for _, f := range report.Failed {
		d := &Deployment{
			Artifact: f.Artifact.Name, ABI: string(f.Artifact.ABI), DestPath: f.Artifact.DestPath, Status: StatusFailed,
		}
		if f.Err != nil {
			d.Error = f.Err.Error()
		}
		deployments = append(deployments, d)
	}
	if len(deployments) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO deployments (id, build_id, artifact, abi, dest_path, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, d := range deployments {
		d.ID = generateID()
		d.BuildID = buildID
		d.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			d.ID, d.BuildID, d.Artifact, nullString(d.ABI), nullString(d.DestPath),
			string(d.Status), nullString(d.Error), d.CreatedAt.Format(timeLayout),
		); err != nil {
			return nil, fmt.Errorf("failed to record deployment of %s: %w", d.Artifact, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deployments: %w", err)
	}
	s.logger.Debug("recorded deployment", slog.String("build_id", buildID), slog.Int("artifacts", len(deployments)))
	return deployments, nil
}

// Deployments returns the artifact outcomes recorded for a build.
func (s *Store) Deployments(ctx context.Context, buildID string) ([]*Deployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, artifact, abi, dest_path, status, error, created_at
		 FROM deployments WHERE build_id = ? ORDER BY created_at, rowid`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Deployment
	for rows.Next() {
		var (
			d                    Deployment
			abi, dest, errMsg    sql.NullString
			status, createdAtRaw string
		)
		if err := rows.Scan(&d.ID, &d.BuildID, &d.Artifact, &abi, &dest, &status, &errMsg, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		d.ABI = abi.String
		d.DestPath = dest.String
		d.Error = errMsg.String
		d.Status = DeploymentStatus(status)
		if d.CreatedAt, err = time.Parse(timeLayout, createdAtRaw); err != nil {
			return nil, fmt.Errorf("invalid deployment timestamp %q: %w", createdAtRaw, err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	var (
		b            Build
		contextName  string
		createdAtRaw string
	)
	if err := row.Scan(&b.ID, &contextName, &b.BuildNumber, &b.Code, &b.Name, &b.Label, &b.Release, &createdAtRaw); err != nil {
		return nil, err
	}
	b.Context = buildctx.Context(contextName)
	createdAt, err := time.Parse(timeLayout, createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid build timestamp %q: %w", createdAtRaw, err)
	}
	b.CreatedAt = createdAt
	return &b, nil
}

// nullString returns a sql.NullString for optional string fields.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
