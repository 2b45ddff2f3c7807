// Package database provides the document database bound into the shell as
// "db". Collections of JSON documents are stored in SQLite and queried with
// a subset of the MongoDB query language.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

var (
	// ErrInvalidCollectionName is returned by operations on a collection whose name cannot be stored.
	ErrInvalidCollectionName = errors.New("invalid collection name")
	// ErrDuplicateKey is returned when a document with the same _id exists.
	ErrDuplicateKey = errors.New("E11000 duplicate key error")
	// ErrNoSink is returned when a cursor prints before the database is bound to a shell.
	ErrNoSink = errors.New("cursor is not attached to a shell")
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	db   TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (db, name)
);
CREATE TABLE IF NOT EXISTS documents (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	db   TEXT NOT NULL,
	coll TEXT NOT NULL,
	id   TEXT NOT NULL,
	doc  TEXT NOT NULL,
	UNIQUE (db, coll, id)
);`

var dbMethods = []string{"dropDatabase", "getCollection", "getCollectionNames", "getName"}

// DB is a named database. It implements shelltypes.Database.
type DB struct {
	sql     *sql.DB
	name    string
	ids     IDGenerator
	timeout time.Duration
	names   *ttlcache.Cache[string, []string]

	mu   sync.RWMutex
	sink shelltypes.ResultSink
}

// Option configures a DB.
type Option func(*DB)

// WithIDGenerator replaces the generator used for new document ids.
func WithIDGenerator(gen IDGenerator) Option {
	return func(d *DB) {
		if gen != nil {
			d.ids = gen
		}
	}
}

// WithQueryTimeout bounds every statement.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(d *DB) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithNameCacheTTL sets how long collection name listings are cached.
func WithNameCacheTTL(ttl time.Duration) Option {
	return func(d *DB) {
		d.names = ttlcache.New[string, []string](
			ttlcache.WithTTL[string, []string](ttl),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		)
	}
}

// Open opens the SQLite store at dsn and returns the database called name.
func Open(dsn, name string, opts ...Option) (*DB, error) {
	if name == "" || strings.ContainsAny(name, `/\. "$`) {
		return nil, fmt.Errorf("invalid database name %q", name)
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// One connection keeps ":memory:" stores alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{
		sql:     sqlDB,
		name:    name,
		ids:     RandomIDs{},
		timeout: 5 * time.Second,
	}
	WithNameCacheTTL(30 * time.Second)(d)
	for _, opt := range opts {
		opt(d)
	}

	ctx, cancel := d.context()
	defer cancel()
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Debug("Database opened", "dsn", dsn, "name", name)
	return d, nil
}

// Close releases the store.
func (d *DB) Close() error {
	d.names.DeleteAll()
	return d.sql.Close()
}

// Bind attaches the shell that cursors print into.
func (d *DB) Bind(sink shelltypes.ResultSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

func (d *DB) resultSink() shelltypes.ResultSink {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sink
}

// Name returns the database name.
func (d *DB) Name() string {
	return d.name
}

// String implements fmt.Stringer.
func (d *DB) String() string {
	return d.name
}

// GetCollectionNames lists the database's collections in name order on a
// separate goroutine.
func (d *DB) GetCollectionNames(cb func(names []string, err error)) {
	go func() {
		names, err := d.CollectionNames()
		cb(names, err)
	}()
}

// CollectionNames lists the database's collections in name order.
func (d *DB) CollectionNames() ([]string, error) {
	if item := d.names.Get(d.name); item != nil {
		return append([]string(nil), item.Value()...), nil
	}

	ctx, cancel := d.context()
	defer cancel()
	rows, err := d.sql.QueryContext(ctx, `SELECT name FROM collections WHERE db = ? ORDER BY name`, d.name)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d.names.Set(d.name, names, ttlcache.DefaultTTL)
	return append([]string(nil), names...), nil
}

// GetCollection returns a handle for name. The collection is created by its
// first insert.
func (d *DB) GetCollection(name string) shelltypes.Collection {
	return d.Collection(name)
}

// Collection is GetCollection with the concrete type.
func (d *DB) Collection(name string) *Collection {
	return &Collection{db: d, name: name}
}

// Methods lists the methods callable on the database from scripts.
func (d *DB) Methods() []string {
	return append([]string(nil), dbMethods...)
}

// Invoke implements shelltypes.MethodInvoker.
func (d *DB) Invoke(method string, args []any) (any, error) {
	switch method {
	case "getCollectionNames":
		names, err := d.CollectionNames()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = name
		}
		return out, nil
	case "getCollection":
		name, ok := argAt(args, 0).(string)
		if !ok {
			return nil, fmt.Errorf("collection name must be a string")
		}
		return d.Collection(name), nil
	case "getName", "toString":
		return d.name, nil
	case "dropDatabase":
		return d.dropDatabase()
	}
	return nil, fmt.Errorf("%s is not a function", method)
}

func (d *DB) dropDatabase() (any, error) {
	ctx, cancel := d.context()
	defer cancel()
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE db = ?`, d.name); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE db = ?`, d.name); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	d.invalidateNames()
	return map[string]any{"dropped": d.name, "ok": 1.0}, nil
}

func (d *DB) invalidateNames() {
	d.names.Delete(d.name)
}

func (d *DB) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

func argAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}
