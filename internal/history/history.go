// Package history persists published per-symbol messages.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is an append-only history table on SQLite or PostgreSQL.
type Store struct {
	db     *sqlx.DB
	driver string
	mu     sync.Mutex
	log    *logger.Logger
}

var _ interfaces.HistoryStore = (*Store)(nil)

// Open connects to the database and creates or upgrades the history table.
func Open(ctx context.Context, driver, dsn string, log *logger.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer; WAL lets readers run alongside it
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info(ctx, "History store opened", "driver", driver)
	return s, nil
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	var stmts []string
	switch s.driver {
	case DriverSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS history (
				id        INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id    TEXT NOT NULL DEFAULT '',
				symbol    TEXT NOT NULL,
				analysis  TEXT NOT NULL,
				img       TEXT,
				timestamp DATETIME NOT NULL
			)`,
		}
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS history (
				id        BIGSERIAL PRIMARY KEY,
				run_id    TEXT NOT NULL DEFAULT '',
				symbol    TEXT NOT NULL,
				analysis  TEXT NOT NULL,
				img       TEXT,
				timestamp TIMESTAMPTZ NOT NULL
			)`,
			`ALTER TABLE history ADD COLUMN IF NOT EXISTS run_id TEXT NOT NULL DEFAULT ''`,
		}
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if s.driver == DriverSQLite {
		// tables created before run ids existed lack the column
		var cols []columnInfo
		if err := s.db.SelectContext(ctx, &cols, "SELECT name FROM pragma_table_info('history')"); err != nil {
			return err
		}
		if !hasColumn(cols, "run_id") {
			if _, err := s.db.ExecContext(ctx, `ALTER TABLE history ADD COLUMN run_id TEXT NOT NULL DEFAULT ''`); err != nil {
				return err
			}
		}
	}

	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history(timestamp)`)
	return err
}

type columnInfo struct {
	Name string `db:"name"`
}

func hasColumn(cols []columnInfo, name string) bool {
	for _, c := range cols {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Insert appends e and returns its row id. A zero CreatedAt is set to now.
func (s *Store) Insert(ctx context.Context, e types.HistoryEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	query := s.db.Rebind(`INSERT INTO history (run_id, symbol, analysis, img, timestamp)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, query, e.RunID, e.Symbol, e.Analysis, e.ChartPath, e.CreatedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert history for %s: %w", e.Symbol, err)
	}
	s.log.Debug(ctx, "History entry saved", "id", id, "symbol", e.Symbol)
	return id, nil
}

// ListSince returns entries created at or after since, oldest first.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]types.HistoryEntry, error) {
	query := s.db.Rebind(`SELECT id, run_id, symbol, analysis, COALESCE(img, '') AS img, timestamp
		FROM history WHERE timestamp >= ? ORDER BY timestamp, id`)
	var out []types.HistoryEntry
	if err := s.db.SelectContext(ctx, &out, query, since.UTC()); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
