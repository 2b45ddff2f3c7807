package database

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// ErrQueryExecuted is returned by cursor modifiers once results were read.
var ErrQueryExecuted = errors.New("query already executed")

// Cursor is a lazily executed query. It implements shelltypes.Cursor.
type Cursor struct {
	coll       *Collection
	query      map[string]any
	projection map[string]any

	mu       sync.Mutex
	order    map[string]any
	limit    int
	skip     int
	docs     []*Document
	pos      int
	executed bool
}

// Invoke implements shelltypes.MethodInvoker.
func (c *Cursor) Invoke(method string, args []any) (any, error) {
	switch method {
	case "limit", "skip":
		n, ok := argAt(args, 0).(float64)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%s needs a non-negative number", method)
		}
		return c.modify(func() {
			if method == "limit" {
				c.limit = int(n)
			} else {
				c.skip = int(n)
			}
		})
	case "sort":
		spec, err := toMap(argAt(args, 0))
		if err != nil {
			return nil, err
		}
		return c.modify(func() { c.order = spec })
	case "count":
		n, err := c.coll.Count(c.query)
		return float64(n), err
	case "toArray":
		docs, err := c.rest()
		if err != nil {
			return nil, err
		}
		out := make([]any, len(docs))
		for i, doc := range docs {
			out[i] = doc
		}
		return out, nil
	case "hasNext":
		return c.HasNext()
	case "next":
		docs, err := c.take(1)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("no more documents in cursor")
		}
		return docs[0], nil
	case "toString":
		return c.String(), nil
	}
	return nil, fmt.Errorf("%s is not a function", method)
}

func (c *Cursor) modify(fn func()) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executed {
		return nil, ErrQueryExecuted
	}
	fn()
	return c, nil
}

// String implements fmt.Stringer.
func (c *Cursor) String() string {
	query := "{ }"
	if raw, err := marshalDocument(c.query); err == nil && c.query != nil {
		query = formatResult(gjson.Parse(raw))
	}
	return "DBQuery: " + c.coll.FullName() + " -> " + query
}

// PrintBatch prints the next batch of results into the shell the database
// is bound to, and records itself as the cursor "it" continues.
func (c *Cursor) PrintBatch() error {
	sink := c.coll.db.resultSink()
	if sink == nil {
		return ErrNoSink
	}
	size, err := sink.ShellBatchSize()
	if err != nil {
		return err
	}
	docs, err := c.take(size)
	if err != nil {
		return err
	}
	sink.SetLastUsedCursor(c)
	if len(docs) > 0 {
		rows := make([]any, len(docs))
		for i, doc := range docs {
			rows[i] = doc
		}
		sink.InsertResponseArray(rows)
	}
	if more, _ := c.HasNext(); more {
		sink.InsertResponseLine(`Type "it" for more`)
	}
	return nil
}

// HasNext reports whether unread documents remain.
func (c *Cursor) HasNext() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.executeLocked(); err != nil {
		return false, err
	}
	return c.pos < len(c.docs), nil
}

func (c *Cursor) take(n int) ([]*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.executeLocked(); err != nil {
		return nil, err
	}
	end := min(c.pos+n, len(c.docs))
	docs := c.docs[c.pos:end]
	c.pos = end
	return docs, nil
}

func (c *Cursor) rest() ([]*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.executeLocked(); err != nil {
		return nil, err
	}
	docs := c.docs[c.pos:]
	c.pos = len(c.docs)
	return docs, nil
}

func (c *Cursor) executeLocked() error {
	if c.executed {
		return nil
	}
	docs, err := c.fetch()
	if err != nil {
		return err
	}
	c.docs, c.executed = docs, true
	return nil
}

// fetch runs the query and reads every result.
func (c *Cursor) fetch() ([]*Document, error) {
	if err := c.coll.validate(); err != nil {
		return nil, err
	}
	where, args, err := compileFilter(c.query)
	if err != nil {
		return nil, err
	}
	order, orderArgs, err := compileSort(c.order)
	if err != nil {
		return nil, err
	}

	var q strings.Builder
	q.WriteString(`SELECT doc FROM documents WHERE db = ? AND coll = ? AND `)
	q.WriteString(where)
	q.WriteString(` ORDER BY `)
	q.WriteString(order)
	args = append([]any{c.coll.db.name, c.coll.name}, args...)
	args = append(args, orderArgs...)
	if c.limit > 0 || c.skip > 0 {
		limit := c.limit
		if limit == 0 {
			limit = -1
		}
		q.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, c.skip)
	}

	ctx, cancel := c.coll.db.context()
	defer cancel()
	rows, err := c.coll.db.sql.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.coll.FullName(), err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if raw, err = project(raw, c.projection); err != nil {
			return nil, err
		}
		docs = append(docs, NewDocument(raw))
	}
	return docs, rows.Err()
}

type writeKind int

const (
	writeInsert writeKind = iota
	writeUpdate
	writeRemove
)

// WriteResult reports the outcome of a write.
type WriteResult struct {
	kind     writeKind
	Inserted int
	Matched  int
	Modified int
	Upserted int
	Removed  int
}

// String renders the result the way the shell prints it.
func (w *WriteResult) String() string {
	switch w.kind {
	case writeUpdate:
		return fmt.Sprintf(`WriteResult({ "nMatched" : %d, "nUpserted" : %d, "nModified" : %d })`,
			w.Matched, w.Upserted, w.Modified)
	case writeRemove:
		return fmt.Sprintf(`WriteResult({ "nRemoved" : %d })`, w.Removed)
	}
	return fmt.Sprintf(`WriteResult({ "nInserted" : %d })`, w.Inserted)
}

// GetProperty exposes the counters to scripts.
func (w *WriteResult) GetProperty(name string) (any, bool) {
	switch name {
	case "nInserted":
		return float64(w.Inserted), true
	case "nMatched":
		return float64(w.Matched), true
	case "nModified":
		return float64(w.Modified), true
	case "nUpserted":
		return float64(w.Upserted), true
	case "nRemoved":
		return float64(w.Removed), true
	}
	return nil, false
}
