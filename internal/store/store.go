// Package store persists queried counter rows into a SQL table keyed by
// (date, ean). Writing the same rows twice leaves the table unchanged: an
// existing row has its count replaced, never added to.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/barcoded/internal/config"
	"github.com/danmuck/barcoded/internal/protocol"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Sink receives the rows of one Response.
type Sink interface {
	Upsert(ctx context.Context, rows []protocol.Row) (int, error)
}

type dialect struct {
	driver      string
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{driver: DriverPostgres, placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	sqliteDialect   = dialect{driver: DriverSQLite, placeholder: func(int) string { return "?" }}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect, nil
	case DriverSQLite:
		return sqliteDialect, nil
	default:
		return dialect{}, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

// SQLStore writes rows with one upsert per row inside a single transaction.
type SQLStore struct {
	db        *sql.DB
	table     string
	upsertSQL string
	schemaSQL string
}

// New wraps an open handle. table must already be a validated identifier.
func New(db *sql.DB, driver, table string) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	quoted := pq.QuoteIdentifier(table)
	return &SQLStore{
		db:    db,
		table: table,
		upsertSQL: fmt.Sprintf(
			"INSERT INTO %s (date, ean, count) VALUES (%s, %s, %s) ON CONFLICT (date, ean) DO UPDATE SET count = excluded.count",
			quoted, d.placeholder(1), d.placeholder(2), d.placeholder(3),
		),
		schemaSQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    date VARCHAR(10) NOT NULL,
    ean VARCHAR(255) NOT NULL,
    count BIGINT NOT NULL,
    PRIMARY KEY (date, ean)
)`, quoted),
	}, nil
}

// Open connects using cfg, creates the table when missing and pings.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	if err := config.ValidateDatabaseConfig(cfg); err != nil {
		return nil, err
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, cfg.DSN)
	default:
		db, err = openPostgres(ctx, PostgresDSN(cfg))
	}
	if err != nil {
		return nil, err
	}

	s, err := New(db, cfg.Driver, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresDSN returns cfg.DSN when set, otherwise a key=value connection
// string built from the discrete fields.
func PostgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	var parts []string
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteDSNValue(value))
		}
	}
	add("host", cfg.Host)
	if cfg.Port > 0 {
		add("port", strconv.Itoa(cfg.Port))
	}
	add("dbname", cfg.Name)
	add("user", cfg.User)
	add("password", cfg.Password)
	add("sslmode", cfg.SSLMode)
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schemaSQL); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Upsert writes rows atomically and returns how many were written. Any
// failure rolls the whole batch back.
func (s *SQLStore) Upsert(ctx context.Context, rows []protocol.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, row := range rows {
		if _, err := tx.ExecContext(ctx, s.upsertSQL, row.Date.String(), row.Code, int64(row.Count)); err != nil {
			return 0, fmt.Errorf("upsert row %d (%s %s): %w", i, row.Date, row.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(rows), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
