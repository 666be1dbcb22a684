package kv

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/glebarez/sqlite"

	"github.com/wippyai/zhur/errors"
	"github.com/wippyai/zhur/message"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	owner TEXT NOT NULL,
	tbl   TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (owner, tbl, key)
) WITHOUT ROWID`

const upsert = `INSERT INTO kv (owner, tbl, key, value) VALUES (?, ?, ?, ?)
	ON CONFLICT (owner, tbl, key) DO UPDATE SET value = excluded.value`

// SQLStore keeps pairs in one SQLite table.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (or creates) the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQL(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, storeErr(err, "create kv directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr(err, "open kv database")
	}
	// one writer; also keeps an in-memory database on a single connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storeErr(err, "create kv schema")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, owner, table, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE owner = ? AND tbl = ? AND key = ?`, owner, table, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err, "get")
	}
	return v, true, nil
}

func (s *SQLStore) Set(ctx context.Context, owner, table, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsert, owner, table, key, nonNil(value)); err != nil {
		return storeErr(err, "set")
	}
	return nil
}

func (s *SQLStore) Del(ctx context.Context, owner, table, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE owner = ? AND tbl = ? AND key = ?`, owner, table, key)
	if err != nil {
		return storeErr(err, "del")
	}
	return nil
}

func (s *SQLStore) Scan(ctx context.Context, owner, table, prefix string) ([]message.KVPair, error) {
	where, args := prefixRange(owner, table, prefix)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv WHERE `+where+` ORDER BY key`, args...)
	if err != nil {
		return nil, storeErr(err, "scan")
	}
	defer rows.Close()

	var pairs []message.KVPair
	for rows.Next() {
		var p message.KVPair
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, storeErr(err, "scan row")
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err, "scan")
	}
	return pairs, nil
}

func (s *SQLStore) DelPrefix(ctx context.Context, owner, table, prefix string) (int, error) {
	where, args := prefixRange(owner, table, prefix)
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE `+where, args...)
	if err != nil {
		return 0, storeErr(err, "del_prefix")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(err, "del_prefix")
	}
	return int(n), nil
}

func (s *SQLStore) SetMany(ctx context.Context, owner, table string, pairs []message.KVPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(err, "set_many")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return storeErr(err, "set_many")
	}
	defer stmt.Close()

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, owner, table, p.Key, nonNil(p.Value)); err != nil {
			return storeErr(err, "set_many")
		}
	}
	if err := tx.Commit(); err != nil {
		return storeErr(err, "set_many")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// prefixRange turns a key prefix into a range over the binary key order.
func prefixRange(owner, table, prefix string) (string, []any) {
	where := `owner = ? AND tbl = ? AND key >= ?`
	args := []any{owner, table, prefix}
	if end, ok := prefixEnd(prefix); ok {
		where += ` AND key < ?`
		args = append(args, end)
	}
	return where, args
}

// prefixEnd is the smallest string greater than every string with prefix p.
// There is none when p is empty or all 0xff bytes.
func prefixEnd(p string) (string, bool) {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

func nonNil(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

func storeErr(err error, what string) error {
	return errors.Wrap(errors.PhaseHost, errors.KindIO, err, "kv "+what)
}
