package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"
)

// Key names one JSON blob in the store.
type Key string

const (
	KeyLogins               Key = "logins"
	KeyJiraAccountTokens    Key = "jiraAccountTokens"
	KeyWorklogsLocal        Key = "worklogsLocal"
	KeyWorklogsLocalBackups Key = "worklogsLocalBackups"
	KeyWorklogsRemote       Key = "worklogsRemote"
	KeyActiveTimer          Key = "activeTimer"
	KeyLastVersion          Key = "lastVersion"
)

// ErrUnknownKey is returned for keys without a registered default.
var ErrUnknownKey = errors.New("unknown storage key")

var defaults = map[Key]string{
	KeyLogins:               `[]`,
	KeyJiraAccountTokens:    `{}`,
	KeyWorklogsLocal:        `[]`,
	KeyWorklogsLocalBackups: `[]`,
	KeyWorklogsRemote:       `[]`,
	KeyActiveTimer:          `{}`,
	KeyLastVersion:          `""`,
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// The store holds OAuth tokens, so the database and its WAL files are
// private to the user.
const (
	dirMode  os.FileMode = 0o700
	fileMode os.FileMode = 0o600
)

// ReadWriter is implemented by Store and by Tx.
type ReadWriter interface {
	GetRaw(ctx context.Context, key Key) ([]byte, error)
	SetRaw(ctx context.Context, key Key, value []byte) error
}

// querier is the part of *sql.DB and *sql.Tx the store uses.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store is a flat key/value store holding one JSON document per key.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at path. Transactions take the
// write lock when they begin, so read-modify-write cycles from several
// processes sharing the file are serialized.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	_ = f.Close()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	if err := restrictFiles(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func restrictFiles(path string) error {
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Chmod(name, fileMode); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("restrict store permissions: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetRaw returns the stored JSON for key, or the key's default when nothing is stored.
func (s *Store) GetRaw(ctx context.Context, key Key) ([]byte, error) {
	return getRaw(ctx, s.db, key)
}

// SetRaw stores a JSON document under key.
func (s *Store) SetRaw(ctx context.Context, key Key, value []byte) error {
	return setRaw(ctx, s.db, s.now(), key, value)
}

// Tx is a read-write transaction. All reads see the state the writes are
// based on; no other writer can interleave.
type Tx struct {
	tx  *sql.Tx
	now time.Time
}

// GetRaw reads key inside the transaction.
func (t *Tx) GetRaw(ctx context.Context, key Key) ([]byte, error) {
	return getRaw(ctx, t.tx, key)
}

// SetRaw writes key inside the transaction.
func (t *Tx) SetRaw(ctx context.Context, key Key, value []byte) error {
	return setRaw(ctx, t.tx, t.now, key, value)
}

// Transact runs fn in one transaction and commits when fn returns nil.
// fn must only touch the store through tx.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin store transaction: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx, now: s.now()}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit store transaction: %w", err)
	}
	return nil
}

func getRaw(ctx context.Context, q querier, key Key) ([]byte, error) {
	def, ok := defaults[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return []byte(def), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return []byte(value), nil
}

func setRaw(ctx context.Context, q querier, now time.Time, key Key, value []byte) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if !json.Valid(value) {
		return fmt.Errorf("write %s: value is not valid JSON", key)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(key), string(value), now.Unix())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key so that subsequent reads return its default.
func (s *Store) Remove(ctx context.Context, key Key) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into a T.
func Get[T any](ctx context.Context, s ReadWriter, key Key) (T, error) {
	var out T
	raw, err := s.GetRaw(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// Set encodes value as JSON and stores it under key.
func Set[T any](ctx context.Context, s ReadWriter, key Key, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.SetRaw(ctx, key, raw)
}

// Update applies fn to the value under key in one transaction and returns
// the stored result. An error from fn leaves the value untouched.
func Update[T any](ctx context.Context, s *Store, key Key, fn func(T) (T, error)) (T, error) {
	var out T
	err := s.Transact(ctx, func(tx *Tx) error {
		current, err := Get[T](ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := Set(ctx, tx, key, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}
