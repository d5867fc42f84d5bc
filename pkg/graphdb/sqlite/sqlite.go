// Package sqlite provides an SQLite based graph backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mandelsoft/logging"
	_ "modernc.org/sqlite"

	"github.com/mandelsoft/vergraph/pkg/graphdb"
	"github.com/mandelsoft/vergraph/pkg/utils"
)

var REALM = logging.DefineRealm("vergraph/graphdb/sqlite", "sqlite based graph store")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

const schema = `
CREATE TABLE IF NOT EXISTS edges (
  seq   INTEGER PRIMARY KEY AUTOINCREMENT,
  src   TEXT NOT NULL,
  label TEXT NOT NULL,
  dst   TEXT NOT NULL,
  UNIQUE (src, label),
  UNIQUE (dst, label)
);
CREATE INDEX IF NOT EXISTS edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS edges_dst ON edges(dst);
CREATE TABLE IF NOT EXISTS records (
  id   TEXT PRIMARY KEY,
  data BLOB NOT NULL
);
`

// Backend stores edges in a single table and records in a second one. Nodes and labels are
// stored in their canonical json representation.
type Backend[N, L comparable] struct {
	conn *sql.DB
}

var _ graphdb.Backend[string, string] = (*Backend[string, string])(nil)

// Open opens or creates the database at the given path.
// The path ":memory:" provides a transient database.
func Open[N, L comparable](path string) (*Backend[N, L], error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own database
		conn.SetMaxOpenConns(1)
	} else {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	log.Info("opened graph database {{path}}", "path", path)
	return &Backend[N, L]{conn: conn}, nil
}

func (b *Backend[N, L]) Close() error {
	return b.conn.Close()
}

func encode(v interface{}) (string, error) {
	data, err := utils.CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode[T any](s string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

func (b *Backend[N, L]) Insert(ctx context.Context, e graphdb.Edge[N, L]) error {
	src, err := encode(e.From)
	if err != nil {
		return err
	}
	label, err := encode(e.Label)
	if err != nil {
		return err
	}
	dst, err := encode(e.To)
	if err != nil {
		return err
	}
	_, err = b.conn.ExecContext(ctx, `INSERT OR IGNORE INTO edges (src, label, dst) VALUES (?, ?, ?)`, src, label, dst)
	if err != nil {
		return fmt.Errorf("inserting edge %s: %w", e, err)
	}
	return nil
}

func (b *Backend[N, L]) lookup(ctx context.Context, query string, node N, label L) (N, bool, error) {
	var zero N
	n, err := encode(node)
	if err != nil {
		return zero, false, err
	}
	l, err := encode(label)
	if err != nil {
		return zero, false, err
	}
	var result string
	err = b.conn.QueryRowContext(ctx, query, n, l).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, err
	}
	r, err := decode[N](result)
	if err != nil {
		return zero, false, err
	}
	return r, true, nil
}

func (b *Backend[N, L]) Lookup(ctx context.Context, from N, label L) (N, bool, error) {
	return b.lookup(ctx, `SELECT dst FROM edges WHERE src = ? AND label = ?`, from, label)
}

func (b *Backend[N, L]) LookupBack(ctx context.Context, to N, label L) (N, bool, error) {
	return b.lookup(ctx, `SELECT src FROM edges WHERE dst = ? AND label = ?`, to, label)
}

func (b *Backend[N, L]) list(ctx context.Context, query string, node N) ([]graphdb.Edge[N, L], error) {
	n, err := encode(node)
	if err != nil {
		return nil, err
	}
	rows, err := b.conn.QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []graphdb.Edge[N, L]
	for rows.Next() {
		var src, label, dst string
		if err := rows.Scan(&src, &label, &dst); err != nil {
			return nil, err
		}
		var e graphdb.Edge[N, L]
		if e.From, err = decode[N](src); err != nil {
			return nil, err
		}
		if e.Label, err = decode[L](label); err != nil {
			return nil, err
		}
		if e.To, err = decode[N](dst); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (b *Backend[N, L]) Outgoing(ctx context.Context, from N) ([]graphdb.Edge[N, L], error) {
	return b.list(ctx, `SELECT src, label, dst FROM edges WHERE src = ? ORDER BY seq`, from)
}

func (b *Backend[N, L]) Incoming(ctx context.Context, to N) ([]graphdb.Edge[N, L], error) {
	return b.list(ctx, `SELECT src, label, dst FROM edges WHERE dst = ? ORDER BY seq`, to)
}

func (b *Backend[N, L]) PutRecord(ctx context.Context, id string, data []byte) error {
	_, err := b.conn.ExecContext(ctx, `INSERT OR REPLACE INTO records (id, data) VALUES (?, ?)`, id, data)
	if err != nil {
		return fmt.Errorf("storing record %s: %w", id, err)
	}
	return nil
}

func (b *Backend[N, L]) GetRecord(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := b.conn.QueryRowContext(ctx, `SELECT data FROM records WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: record %s", graphdb.ErrNotFound, id)
		}
		return nil, err
	}
	return data, nil
}

func (b *Backend[N, L]) Reset(ctx context.Context) error {
	tx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"edges", "records"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}
