// Package store provides the data access layer for the marathon bot.
// It abstracts the underlying database (SQLite or PostgreSQL) behind a
// single Store type backed by bun, so the rest of the application talks to
// storage in a uniform way.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"marathonbot/internal/config"

	// SQL drivers selected by config at runtime.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// advisoryLockKey guards scheduler ticks across processes on PostgreSQL.
const advisoryLockKey = 917_552_031

// Store is the bun-backed data access layer.
type Store struct {
	db     *bun.DB
	dbType string
	posts  *postCache
	logger *zap.Logger
}

// Open connects to the configured database and prepares the schema.
func Open(cfg *config.Config, logger *zap.Logger) (*Store, error) {
	var (
		sqldb *sql.DB
		bdb   *bun.DB
		err   error
	)

	switch cfg.Database.Type {
	case "sqlite":
		dsn := cfg.Database.DSN
		if !strings.Contains(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
		sqldb, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under concurrent handlers.
		sqldb.SetMaxOpenConns(1)
		bdb = bun.NewDB(sqldb, sqlitedialect.New())

	case "postgres":
		sqldb, err = sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		sqldb.SetMaxOpenConns(30)
		sqldb.SetMaxIdleConns(10)
		sqldb.SetConnMaxLifetime(time.Hour)
		bdb = bun.NewDB(sqldb, pgdialect.New())

	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}

	cache, err := newPostCache(postCacheSize)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	s := &Store{
		db:     bdb,
		dbType: cfg.Database.Type,
		posts:  cache,
		logger: logger.Named("store"),
	}

	if err := s.Init(context.Background()); err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	return s, nil
}

// Init creates missing tables. On SQLite it first drops any table whose
// column set drifted from the current models, trading old data for a clean
// schema the way a dev-friendly sqlite file is expected to behave.
func (s *Store) Init(ctx context.Context) error {
	if s.dbType == "sqlite" {
		if err := s.dropDriftedSqliteTables(ctx); err != nil {
			// Never block startup on the compatibility check.
			s.logger.Warn("sqlite schema check failed", zap.Error(err))
		}
	}

	models := []any{
		(*User)(nil),
		(*Post)(nil),
		(*Progress)(nil),
		(*TaskRun)(nil),
		(*Response)(nil),
		(*AppSettings)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m, err)
		}
	}
	return nil
}

// expectedColumns maps table name to the column set of the current models,
// in reverse dependency order for dropping.
var expectedColumns = []struct {
	table string
	cols  map[string]bool
}{
	{"responses", set("id", "run_id", "user_id", "post_id", "seq", "text", "created_at")},
	{"task_runs", set("id", "user_id", "post_id", "started_at", "until", "updated_at")},
	{"progress", set("id", "user_id", "next_position", "next_send_at", "pending_post_id",
		"active_post_id", "active_started_at", "active_until", "summary_prompt_sent", "updated_at")},
	{"posts", set("id", "position", "title", "text_html", "media_type", "file_id", "updated_at")},
	{"users", set("id", "telegram_id", "is_admin", "full_name", "region", "email", "onboarded_at", "created_at")},
	{"app_settings", set("id", "greeting_text", "response_window_minutes", "send_interval_minutes", "updated_at")},
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

func (s *Store) dropDriftedSqliteTables(ctx context.Context) error {
	for _, exp := range expectedColumns {
		cols, err := s.sqliteTableColumns(ctx, exp.table)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			continue // table doesn't exist yet
		}
		if !sameColumns(cols, exp.cols) {
			s.logger.Warn("dropping table with stale schema", zap.String("table", exp.table))
			if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+exp.table); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) sqliteTableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func sameColumns(got, want map[string]bool) bool {
	if len(got) != len(want) {
		return false
	}
	for c := range want {
		if !got[c] {
			return false
		}
	}
	return true
}

// IsPostgres reports whether the store runs on PostgreSQL.
func (s *Store) IsPostgres() bool {
	return s.dbType == "postgres"
}

// TryAdvisoryLock attempts the cross-process scheduler lock. On engines
// without advisory locks it always succeeds; the in-process guard is enough
// there.
func (s *Store) TryAdvisoryLock(ctx context.Context) (bool, error) {
	if !s.IsPostgres() {
		return true, nil
	}
	var got bool
	err := s.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(?)", advisoryLockKey).Scan(&got)
	if err != nil {
		return false, err
	}
	return got, nil
}

// AdvisoryUnlock releases the cross-process scheduler lock, best effort.
func (s *Store) AdvisoryUnlock(ctx context.Context) {
	if !s.IsPostgres() {
		return
	}
	if _, err := s.db.ExecContext(ctx, "SELECT pg_advisory_unlock(?)", advisoryLockKey); err != nil {
		s.logger.Warn("advisory unlock failed", zap.Error(err))
	}
}

// Close releases the underlying database connections.
func (s *Store) Close() error {
	return s.db.Close()
}
