package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"webshell/internal/logger"
)

var collectionMethods = []string{
	"count", "drop", "find", "findOne", "getFullName", "getName",
	"insert", "remove", "save", "update",
}

// Collection is a handle on one collection. It implements shelltypes.Collection.
type Collection struct {
	db   *DB
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// FullName returns "<db>.<collection>".
func (c *Collection) FullName() string {
	return c.db.name + "." + c.name
}

// String implements fmt.Stringer.
func (c *Collection) String() string {
	return c.FullName()
}

// Methods lists the methods callable on the collection from scripts.
func (c *Collection) Methods() []string {
	return append([]string(nil), collectionMethods...)
}

// GetProperty resolves sub-collections, so db.app.logs names "app.logs".
func (c *Collection) GetProperty(name string) (any, bool) {
	return c.db.Collection(c.name + "." + name), true
}

// Invoke implements shelltypes.MethodInvoker.
func (c *Collection) Invoke(method string, args []any) (any, error) {
	switch method {
	case "getName":
		return c.name, nil
	case "getFullName", "toString":
		return c.FullName(), nil
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	switch method {
	case "find":
		query, err := toMap(argAt(args, 0))
		if err != nil {
			return nil, err
		}
		projection, err := toMap(argAt(args, 1))
		if err != nil {
			return nil, err
		}
		return c.Find(query, projection), nil
	case "findOne":
		query, err := toMap(argAt(args, 0))
		if err != nil {
			return nil, err
		}
		projection, err := toMap(argAt(args, 1))
		if err != nil {
			return nil, err
		}
		doc, err := c.FindOne(query, projection)
		if err != nil || doc == nil {
			return nil, err
		}
		return doc, nil
	case "insert":
		return c.Insert(argAt(args, 0))
	case "save":
		return c.Save(argAt(args, 0))
	case "update":
		query, err := toMap(argAt(args, 0))
		if err != nil {
			return nil, err
		}
		update, err := toMap(argAt(args, 1))
		if err != nil {
			return nil, err
		}
		upsert, multi := updateOptions(args[min(2, len(args)):])
		return c.Update(query, update, upsert, multi)
	case "remove":
		if len(args) == 0 {
			return nil, fmt.Errorf("remove needs a query")
		}
		query, err := toMap(args[0])
		if err != nil {
			return nil, err
		}
		return c.Remove(query, truthy(argAt(args, 1)))
	case "count":
		query, err := toMap(argAt(args, 0))
		if err != nil {
			return nil, err
		}
		n, err := c.Count(query)
		return float64(n), err
	case "drop":
		return c.Drop()
	}
	return nil, fmt.Errorf("%s is not a function", method)
}

// updateOptions accepts either {upsert, multi} or positional booleans.
func updateOptions(args []any) (upsert, multi bool) {
	if len(args) == 0 {
		return false, false
	}
	if opts, ok := args[0].(map[string]any); ok {
		return truthy(opts["upsert"]), truthy(opts["multi"])
	}
	return truthy(args[0]), truthy(argAt(args, 1))
}

func (c *Collection) validate() error {
	if c.name == "" || len(c.name) > 120 || strings.ContainsAny(c.name, "$\x00") ||
		strings.HasPrefix(c.name, ".") || strings.HasSuffix(c.name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, c.name)
	}
	return nil
}

// Find returns a cursor over the matching documents. The query runs when the
// cursor is first read.
func (c *Collection) Find(query, projection map[string]any) *Cursor {
	return &Cursor{coll: c, query: query, projection: projection}
}

// FindOne returns the first matching document, or nil.
func (c *Collection) FindOne(query, projection map[string]any) (*Document, error) {
	cur := c.Find(query, projection)
	cur.limit = 1
	docs, err := cur.fetch()
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Insert stores one document or an array of documents, assigning an _id to
// those without one.
func (c *Collection) Insert(v any) (*WriteResult, error) {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case nil:
		return nil, fmt.Errorf("no document to insert")
	default:
		items = []any{val}
	}

	ctx, cancel := c.db.context()
	defer cancel()
	tx, err := c.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		raw, id, err := c.prepare(item)
		if err != nil {
			return nil, err
		}
		if err := c.insertRaw(ctx, tx, id, raw); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	c.db.invalidateNames()
	logger.Debug("Inserted documents", "collection", c.FullName(), "count", len(items))
	return &WriteResult{kind: writeInsert, Inserted: len(items)}, nil
}

// prepare encodes a document and makes sure it carries an _id.
func (c *Collection) prepare(v any) (string, string, error) {
	if doc, ok := v.(*Document); ok {
		v = doc.Map()
	}
	raw, err := marshalDocument(v)
	if err != nil {
		return "", "", err
	}
	if idResult := gjson.Get(raw, "_id"); idResult.Exists() {
		id, ok := idKeyOfResult(idResult)
		if !ok {
			return "", "", fmt.Errorf("unsupported _id value: %s", idResult.Raw)
		}
		return raw, id, nil
	}
	id := c.db.ids.NewID()
	return withID(raw, `{"$oid":"`+id+`"}`), id, nil
}

func (c *Collection) insertRaw(ctx context.Context, tx *sql.Tx, id, raw string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (db, name) VALUES (?, ?)`, c.db.name, c.name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO documents (db, coll, id, doc) VALUES (?, ?, ?, ?)`, c.db.name, c.name, id, raw)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s _id: %s", ErrDuplicateKey, c.FullName(), id)
	}
	return nil
}

// Save replaces the document with the same _id, or inserts it.
func (c *Collection) Save(v any) (*WriteResult, error) {
	doc, err := toMap(v)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no document to save")
	}
	id, ok := doc["_id"]
	if !ok {
		return c.Insert(doc)
	}
	return c.Update(map[string]any{"_id": id}, doc, true, false)
}

type match struct {
	seq int64
	raw string
}

// Update applies update to the first matching document, or to all of them
// when multi is set. With upsert, a document is inserted if none matched.
func (c *Collection) Update(query, update map[string]any, upsert, multi bool) (*WriteResult, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("update needs an update document")
	}
	where, args, err := compileFilter(query)
	if err != nil {
		return nil, err
	}
	limit := ""
	if !multi {
		limit = " LIMIT 1"
	}

	ctx, cancel := c.db.context()
	defer cancel()
	tx, err := c.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT seq, doc FROM documents WHERE db = ? AND coll = ? AND `+where+` ORDER BY seq`+limit,
		append([]any{c.db.name, c.name}, args...)...)
	if err != nil {
		return nil, err
	}
	var matches []match
	for rows.Next() {
		var m match
		if err := rows.Scan(&m.seq, &m.raw); err != nil {
			_ = rows.Close()
			return nil, err
		}
		matches = append(matches, m)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &WriteResult{kind: writeUpdate, Matched: len(matches)}
	for _, m := range matches {
		updated, err := applyUpdate(m.raw, update)
		if err != nil {
			return nil, err
		}
		if updated == m.raw {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET doc = ? WHERE seq = ?`, updated, m.seq); err != nil {
			return nil, err
		}
		result.Modified++
	}

	if len(matches) == 0 && upsert {
		seed, err := marshalDocument(upsertSeed(query))
		if err != nil {
			return nil, err
		}
		raw, err := applyUpdate(seed, update)
		if err != nil {
			return nil, err
		}
		raw, id, err := c.prepare(NewDocument(raw))
		if err != nil {
			return nil, err
		}
		if err := c.insertRaw(ctx, tx, id, raw); err != nil {
			return nil, err
		}
		result.Upserted = 1
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if result.Upserted > 0 {
		c.db.invalidateNames()
	}
	return result, nil
}

// Remove deletes the matching documents, or only the first one with justOne.
func (c *Collection) Remove(query map[string]any, justOne bool) (*WriteResult, error) {
	where, args, err := compileFilter(query)
	if err != nil {
		return nil, err
	}
	limit := ""
	if justOne {
		limit = " ORDER BY seq LIMIT 1"
	}
	ctx, cancel := c.db.context()
	defer cancel()
	res, err := c.db.sql.ExecContext(ctx,
		`DELETE FROM documents WHERE seq IN (SELECT seq FROM documents WHERE db = ? AND coll = ? AND `+where+limit+`)`,
		append([]any{c.db.name, c.name}, args...)...)
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	return &WriteResult{kind: writeRemove, Removed: int(n)}, nil
}

// Count returns the number of matching documents.
func (c *Collection) Count(query map[string]any) (int, error) {
	where, args, err := compileFilter(query)
	if err != nil {
		return 0, err
	}
	ctx, cancel := c.db.context()
	defer cancel()
	var n int
	err = c.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE db = ? AND coll = ? AND `+where,
		append([]any{c.db.name, c.name}, args...)...).Scan(&n)
	return n, err
}

// Drop removes the collection and its documents. It reports whether the
// collection existed.
func (c *Collection) Drop() (bool, error) {
	ctx, cancel := c.db.context()
	defer cancel()
	tx, err := c.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE db = ? AND coll = ?`, c.db.name, c.name); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE db = ? AND name = ?`, c.db.name, c.name)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	c.db.invalidateNames()
	n, _ := res.RowsAffected()
	return n > 0, nil
}
