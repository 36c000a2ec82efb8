package runstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql

	"github.com/stolostron/qe-intelligence/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds PostgreSQL connection settings.
type Config struct {
	// URL is a full connection string; when set it wins over the discrete
	// fields.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Enabled reports whether any database target is configured.
func (c Config) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

func (c Config) dsn() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ConfigFromEnv loads database settings from DATABASE_URL or the discrete
// DB_* variables. An empty config (Enabled() false) means history is off.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            os.Getenv("DB_HOST"),
		User:            envOrDefault("DB_USER", "qeintel"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        envOrDefault("DB_NAME", "qeintel"),
		SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	port, err := strconv.Atoi(envOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Port = port
	cfg.MaxOpenConns, _ = strconv.Atoi(envOrDefault("DB_MAX_OPEN_CONNS", "10"))
	cfg.MaxIdleConns, _ = strconv.Atoi(envOrDefault("DB_MAX_IDLE_CONNS", "5"))
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// PostgresStore persists runs over database/sql with the pgx driver.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects, applies pending migrations, and returns the store.
func Open(ctx context.Context, cfg Config) (*PostgresStore, error) {
	db, err := sql.Open("pgx", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	return &PostgresStore{
		db:     db,
		logger: slog.With("component", "runstore"),
	}, nil
}

// NewFromDB wraps an existing connection without running migrations. Tests
// that manage their own schema use this.
func NewFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, logger: slog.With("component", "runstore")}
}

// DB exposes the underlying connection for health checks.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Close() error { return s.db.Close() }

// runMigrations applies the embedded SQL migrations. Migration files ship
// inside the binary, so deployments need no external schema step.
func runMigrations(db *sql.DB, database string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating postgres driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, database, driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	// Close only the source. m.Close() would also close the shared *sql.DB
	// through the database driver.
	if err := source.Close(); err != nil {
		return fmt.Errorf("closing migration source: %w", err)
	}
	return nil
}

// RecordRun upserts one finished run. Re-recording the same run ID replaces
// the previous row.
func (s *PostgresStore) RecordRun(ctx context.Context, result *models.WorkflowResult) error {
	phases, err := json.Marshal(result.Phases)
	if err != nil {
		return fmt.Errorf("encoding phases for %s: %w", result.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, tool, input, run_dir, success, status,
			error_message, phases, execution_ms, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			success = EXCLUDED.success,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			phases = EXCLUDED.phases,
			execution_ms = EXCLUDED.execution_ms,
			completed_at = EXCLUDED.completed_at`,
		result.RunID, string(result.Tool), result.Input, result.RunDir,
		result.Success, string(result.Status), result.ErrorMessage,
		phases, result.ExecutionTime.Milliseconds(),
		result.StartedAt, result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", result.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]*models.WorkflowResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+`
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*models.WorkflowResult
	for rows.Next() {
		result, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// GetRun returns one run by ID, or ErrNotFound.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*models.WorkflowResult, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		FROM runs WHERE run_id = $1`, runID)
	result, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

const selectColumns = `
	SELECT run_id, tool, input, run_dir, success, status,
	       error_message, phases, execution_ms, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.WorkflowResult, error) {
	var (
		result      models.WorkflowResult
		tool        string
		status      string
		phases      []byte
		executionMS int64
	)
	err := row.Scan(
		&result.RunID, &tool, &result.Input, &result.RunDir,
		&result.Success, &status, &result.ErrorMessage,
		&phases, &executionMS, &result.StartedAt, &result.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	result.Tool = models.Tool(tool)
	result.Status = models.RunStatus(status)
	result.ExecutionTime = time.Duration(executionMS) * time.Millisecond
	if len(phases) > 0 {
		if err := json.Unmarshal(phases, &result.Phases); err != nil {
			return nil, fmt.Errorf("decoding phases for %s: %w", result.RunID, err)
		}
	}
	return &result, nil
}
