// Package remote provides the per-user cloud table of Person records.
//
// Records live in a single table, dating_persons, with one row per Person plus the
// owning user_id. Every operation is scoped to a user id and reports failure through
// its error return; nothing here panics, and an unconfigured store fails each call
// with ErrNotConfigured instead of refusing to start.
//
// Backends are chosen by URL scheme:
//
//	libsql://db.turso.io, https://...  hosted libSQL (key sent as authToken)
//	postgres://..., postgresql://...   hosted Postgres (key used as password)
//	file:/path/remote.db               local SQLite, for development and tests
package remote

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/tursodatabase/go-libsql"
)

// TableName is the remote table holding Person rows.
const TableName = "dating_persons"

// Config locates the remote store. Both URL and Key must be set for the store to be
// considered configured.
type Config struct {
	URL string
	Key string

	// Logger defaults to stderr with a "[remote] " prefix.
	Logger *log.Logger
}

// Configured reports whether both settings are present.
func (c Config) Configured() bool {
	return len(c.Missing()) == 0
}

// Missing names the settings that are absent.
func (c Config) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.URL) == "" {
		missing = append(missing, "remote URL")
	}
	if strings.TrimSpace(c.Key) == "" {
		missing = append(missing, "remote key")
	}
	return missing
}

// Store is the remote store adapter.
type Store struct {
	db      *sql.DB
	dialect dialect
	backend string
	missing []string
	logger  *log.Logger
}

// Open prepares a Store for cfg. An unconfigured cfg is not an error: the returned
// Store reports ErrNotConfigured from every operation. Open does not contact the
// server; use Ping for that.
//
// The caller MUST call Close() when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	s := &Store{logger: logger, missing: cfg.Missing()}
	if len(s.missing) > 0 {
		logger.Printf("Remote store not configured (missing %s)", strings.Join(s.missing, ", "))
		return s, nil
	}

	driverName, dsn, d, err := resolve(cfg.URL, cfg.Key)
	if err != nil {
		return nil, err
	}

	if d == dialectSQLite {
		if path := strings.TrimPrefix(strings.SplitN(cfg.URL, "?", 2)[0], "file:"); path != "" && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s database: %v", ErrUnavailable, driverName, err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)
	if driverName == "sqlite3" {
		// A single connection keeps SQLite writers from tripping over each other.
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	s.db = conn
	s.dialect = d
	s.backend = driverName
	return s, nil
}

// NewWithDB wraps an existing connection. postgres selects the $n placeholder style.
func NewWithDB(db *sql.DB, postgres bool, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	d := dialectSQLite
	backend := "sqlite3"
	if postgres {
		d = dialectPostgres
		backend = "pgx"
	}
	return &Store{db: db, dialect: d, backend: backend, logger: logger}
}

// resolve maps a URL and key to a driver, DSN and placeholder dialect.
func resolve(rawURL, key string) (driverName, dsn string, d dialect, err error) {
	switch {
	case strings.HasPrefix(rawURL, "file:"):
		return "sqlite3", rawURL, dialectSQLite, nil

	case strings.HasPrefix(rawURL, "libsql://"), strings.HasPrefix(rawURL, "https://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid remote URL: %w", err)
		}
		q := u.Query()
		q.Set("authToken", key)
		u.RawQuery = q.Encode()
		return "libsql", u.String(), dialectSQLite, nil

	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid remote URL: %w", err)
		}
		if _, hasPassword := u.User.Password(); !hasPassword {
			name := "postgres"
			if u.User != nil && u.User.Username() != "" {
				name = u.User.Username()
			}
			u.User = url.UserPassword(name, key)
		}
		return "pgx", u.String(), dialectPostgres, nil

	default:
		return "", "", 0, fmt.Errorf("unsupported remote URL scheme: %q", redact(rawURL))
	}
}

// redact strips credentials and query from a URL for messages.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "<invalid>"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Configured reports whether the store can talk to a backend.
func (s *Store) Configured() bool { return s.db != nil }

// Backend returns the database/sql driver in use, or "" when unconfigured.
func (s *Store) Backend() string { return s.backend }

// DB returns the underlying connection, nil when unconfigured.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	s.db = nil
	return nil
}

// ready returns ErrNotConfigured, naming what is missing, when there is no backend.
func (s *Store) ready() error {
	if s.db != nil {
		return nil
	}
	if len(s.missing) == 0 {
		return ErrNotConfigured
	}
	return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(s.missing, ", "))
}
