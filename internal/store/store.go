// Package store persists snapshots of a VM's global data in a SQL
// database, so that a session can be saved and resumed later.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"wisp/internal/vm"
)

// ErrNotFound is returned by Load for an unknown snapshot name.
var ErrNotFound = pkgerrors.New("snapshot not found")

// Store is a snapshot table in one database.
type Store struct {
	db     *sql.DB
	driver string
	logger zerolog.Logger
}

// Snapshot describes a stored snapshot.
type Snapshot struct {
	Name    string
	SavedAt time.Time
	Size    int
}

// Open connects to the database and creates the snapshot table when it
// does not exist. driver is a database/sql driver name: sqlite (pure Go),
// sqlite3 (cgo), postgres, mysql or sqlserver.
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*Store, error) {
	if _, ok := placeholderStyles[driver]; !ok {
		return nil, pkgerrors.Errorf("unsupported database driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open %s", driver)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, pkgerrors.Wrapf(err, "ping %s", driver)
	}

	if strings.HasPrefix(driver, "sqlite") {
		// one writer at a time, and :memory: databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &Store{db: db, driver: driver, logger: logger.With().Str("component", "store").Logger()}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Debug().Str("driver", driver).Msg("store opened")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS wisp_snapshots (
	name VARCHAR(255) NOT NULL PRIMARY KEY,
	saved_at BIGINT NOT NULL,
	body TEXT NOT NULL
)`
	if s.driver == "sqlserver" {
		ddl = `IF OBJECT_ID('wisp_snapshots', 'U') IS NULL
CREATE TABLE wisp_snapshots (
	name NVARCHAR(255) NOT NULL PRIMARY KEY,
	saved_at BIGINT NOT NULL,
	body NVARCHAR(MAX) NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return pkgerrors.Wrap(err, "create snapshot table")
	}
	return nil
}

// Save stores the data globals of v under name, replacing an older
// snapshot of the same name. It returns the number of globals saved.
func (s *Store) Save(ctx context.Context, name string, v *vm.VM) (int, error) {
	body, count, err := encode(v)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM wisp_snapshots WHERE name = ?"), name); err != nil {
		return 0, pkgerrors.Wrapf(err, "replace snapshot %s", name)
	}
	insert := s.rebind("INSERT INTO wisp_snapshots (name, saved_at, body) VALUES (?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, name, time.Now().UnixMilli(), string(body)); err != nil {
		return 0, pkgerrors.Wrapf(err, "save snapshot %s", name)
	}
	if err := tx.Commit(); err != nil {
		return 0, pkgerrors.Wrap(err, "commit")
	}

	s.logger.Info().Str("snapshot", name).Int("globals", count).Int("bytes", len(body)).Msg("snapshot saved")
	return count, nil
}

// Load restores the snapshot name into v and returns the number of
// globals set.
func (s *Store) Load(ctx context.Context, name string, v *vm.VM) (int, error) {
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT body FROM wisp_snapshots WHERE name = ?"), name).Scan(&body)
	if err == sql.ErrNoRows {
		return 0, pkgerrors.Wrapf(ErrNotFound, "%q", name)
	}
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "load snapshot %s", name)
	}
	count, err := decode([]byte(body), v)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "snapshot %s", name)
	}
	s.logger.Info().Str("snapshot", name).Int("globals", count).Msg("snapshot loaded")
	return count, nil
}

// List returns the stored snapshots ordered by name.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, saved_at, body FROM wisp_snapshots ORDER BY name")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			name    string
			savedAt int64
			body    string
		)
		if err := rows.Scan(&name, &savedAt, &body); err != nil {
			return nil, pkgerrors.Wrap(err, "list snapshots")
		}
		out = append(out, Snapshot{Name: name, SavedAt: time.UnixMilli(savedAt), Size: len(body)})
	}
	return out, pkgerrors.Wrap(rows.Err(), "list snapshots")
}

// Delete removes a snapshot; deleting an unknown name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM wisp_snapshots WHERE name = ?"), name)
	return pkgerrors.Wrapf(err, "delete snapshot %s", name)
}

var placeholderStyles = map[string]string{
	"sqlite":    "?",
	"sqlite3":   "?",
	"mysql":     "?",
	"postgres":  "$",
	"sqlserver": "@p",
}

// rebind rewrites ? placeholders into the driver's style.
func (s *Store) rebind(query string) string {
	return rebind(placeholderStyles[s.driver], query)
}

func rebind(style, query string) string {
	if style == "?" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)
			continue
		}
		n++
		fmt.Fprintf(&sb, "%s%d", style, n)
	}
	return sb.String()
}
