package database

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshell/pkg/shelltypes"
)

type recordingSink struct {
	mu        sync.Mutex
	lines     []string
	batchSize int
	batchErr  error
	last      shelltypes.Cursor
}

func (s *recordingSink) InsertResponseArray(rows []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.lines = append(s.lines, fmt.Sprint(row))
	}
}

func (s *recordingSink) InsertResponseLine(data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, fmt.Sprint(data))
}

func (s *recordingSink) ShellBatchSize() (int, error) {
	return s.batchSize, s.batchErr
}

func (s *recordingSink) SetLastUsedCursor(c shelltypes.Cursor) {
	s.last = c
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", "test", WithIDGenerator(&SequentialIDs{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUsers(t *testing.T, db *DB) *Collection {
	t.Helper()
	users := db.Collection("users")
	_, err := users.Insert([]any{
		map[string]any{"name": "ann", "age": 31.0, "tags": []any{"admin"}},
		map[string]any{"name": "bob", "age": 25.0},
		map[string]any{"name": "cid", "age": 40.0, "active": true},
	})
	require.NoError(t, err)
	return users
}

func TestOpen_InvalidName(t *testing.T) {
	for _, name := range []string{"", "a.b", "a b", "a$"} {
		_, err := Open(":memory:", name)
		assert.Error(t, err, name)
	}
}

func TestSequentialIDs(t *testing.T) {
	gen := &SequentialIDs{}
	assert.Equal(t, "000000010000000000000001", gen.NewID())
	assert.Equal(t, "000000020000000000000002", gen.NewID())
	gen.Reset()
	assert.Equal(t, "000000010000000000000001", gen.NewID())
}

func TestRandomIDs(t *testing.T) {
	a, b := RandomIDs{}.NewID(), RandomIDs{}.NewID()
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}

func TestCollection_InsertAndFind(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	doc, err := users.FindOne(map[string]any{"name": "bob"}, nil)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, `{ "_id" : ObjectId("000000020000000000000002"), "age" : 25, "name" : "bob" }`, doc.String())

	name, ok := doc.GetProperty("name")
	assert.True(t, ok)
	assert.Equal(t, "bob", name)

	id, ok := doc.GetProperty("_id")
	assert.True(t, ok)
	assert.Equal(t, ObjectID("000000020000000000000002"), id)

	_, ok = doc.GetProperty("missing")
	assert.False(t, ok)

	missing, err := users.FindOne(map[string]any{"name": "zed"}, nil)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCollection_Queries(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	tests := []struct {
		name     string
		query    map[string]any
		expected []string
	}{
		{name: "all", query: nil, expected: []string{"ann", "bob", "cid"}},
		{name: "equality", query: map[string]any{"age": 31.0}, expected: []string{"ann"}},
		{name: "greater than", query: map[string]any{"age": map[string]any{"$gt": 30.0}}, expected: []string{"ann", "cid"}},
		{name: "range", query: map[string]any{"age": map[string]any{"$gte": 25.0, "$lt": 40.0}}, expected: []string{"ann", "bob"}},
		{name: "not equal", query: map[string]any{"name": map[string]any{"$ne": "bob"}}, expected: []string{"ann", "cid"}},
		{name: "in", query: map[string]any{"name": map[string]any{"$in": []any{"bob", "cid"}}}, expected: []string{"bob", "cid"}},
		{name: "nin", query: map[string]any{"name": map[string]any{"$nin": []any{"bob"}}}, expected: []string{"ann", "cid"}},
		{name: "exists", query: map[string]any{"active": map[string]any{"$exists": true}}, expected: []string{"cid"}},
		{name: "missing", query: map[string]any{"active": map[string]any{"$exists": false}}, expected: []string{"ann", "bob"}},
		{name: "bool", query: map[string]any{"active": true}, expected: []string{"cid"}},
		{name: "or", query: map[string]any{"$or": []any{
			map[string]any{"name": "ann"}, map[string]any{"age": 40.0},
		}}, expected: []string{"ann", "cid"}},
		{name: "by id", query: map[string]any{"_id": map[string]any{"$oid": "000000030000000000000003"}}, expected: []string{"cid"}},
		{name: "by object id", query: map[string]any{"_id": ObjectID("000000010000000000000001")}, expected: []string{"ann"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := users.Find(tt.query, nil).rest()
			require.NoError(t, err)
			var names []string
			for _, doc := range docs {
				name, _ := doc.GetProperty("name")
				names = append(names, name.(string))
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestCollection_InvalidQueries(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	for _, query := range []map[string]any{
		{"$where": "x"},
		{"age": map[string]any{"$regex": "x"}},
		{"name": map[string]any{"$in": "bob"}},
		{`bad"field`: 1.0},
	} {
		_, err := users.Find(query, nil).rest()
		assert.Error(t, err, "%v", query)
	}
}

func TestCursor_Modifiers(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	cur := users.Find(nil, map[string]any{"name": 1.0, "_id": 0.0})
	_, err := cur.Invoke("sort", []any{map[string]any{"age": -1.0}})
	require.NoError(t, err)
	_, err = cur.Invoke("skip", []any{1.0})
	require.NoError(t, err)
	_, err = cur.Invoke("limit", []any{1.0})
	require.NoError(t, err)

	out, err := cur.Invoke("toArray", nil)
	require.NoError(t, err)
	docs := out.([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, `{ "name" : "ann" }`, fmt.Sprint(docs[0]))

	_, err = cur.Invoke("limit", []any{5.0})
	assert.ErrorIs(t, err, ErrQueryExecuted)

	n, err := cur.Invoke("count", nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)
}

func TestCursor_NextAndHasNext(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)
	cur := users.Find(map[string]any{"age": map[string]any{"$lt": 30.0}}, nil)

	more, err := cur.Invoke("hasNext", nil)
	require.NoError(t, err)
	assert.Equal(t, true, more)

	doc, err := cur.Invoke("next", nil)
	require.NoError(t, err)
	name, _ := doc.(*Document).GetProperty("name")
	assert.Equal(t, "bob", name)

	more, _ = cur.Invoke("hasNext", nil)
	assert.Equal(t, false, more)
	_, err = cur.Invoke("next", nil)
	assert.Error(t, err)
}

func TestCursor_PrintBatch(t *testing.T) {
	db := openTestDB(t)
	users := db.Collection("items")
	for i := range 5 {
		_, err := users.Insert(map[string]any{"n": float64(i)})
		require.NoError(t, err)
	}

	sink := &recordingSink{batchSize: 2}
	db.Bind(sink)
	cur := users.Find(nil, map[string]any{"_id": 0.0})

	require.NoError(t, cur.PrintBatch())
	assert.Equal(t, []string{`{ "n" : 0 }`, `{ "n" : 1 }`, `Type "it" for more`}, sink.lines)
	assert.Same(t, cur, sink.last)

	sink.lines = nil
	require.NoError(t, cur.PrintBatch())
	require.NoError(t, cur.PrintBatch())
	assert.Equal(t, []string{`{ "n" : 2 }`, `{ "n" : 3 }`, `Type "it" for more`, `{ "n" : 4 }`}, sink.lines)

	sink.lines = nil
	require.NoError(t, cur.PrintBatch())
	assert.Empty(t, sink.lines)
}

func TestCursor_PrintBatchErrors(t *testing.T) {
	db := openTestDB(t)
	cur := db.Collection("items").Find(nil, nil)
	assert.ErrorIs(t, cur.PrintBatch(), ErrNoSink)

	bad := errors.New("bad batch size")
	sink := &recordingSink{batchErr: bad}
	db.Bind(sink)
	assert.ErrorIs(t, cur.PrintBatch(), bad)
	assert.Empty(t, sink.lines)
	assert.Nil(t, sink.last)
}

func TestCollection_Update(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	res, err := users.Update(map[string]any{"name": "ann"}, map[string]any{
		"$set": map[string]any{"city": "Oslo"},
		"$inc": map[string]any{"age": 1.0},
	}, false, false)
	require.NoError(t, err)
	assert.Equal(t, `WriteResult({ "nMatched" : 1, "nUpserted" : 0, "nModified" : 1 })`, res.String())

	doc, err := users.FindOne(map[string]any{"name": "ann"}, nil)
	require.NoError(t, err)
	age, _ := doc.GetProperty("age")
	city, _ := doc.GetProperty("city")
	assert.Equal(t, 32.0, age)
	assert.Equal(t, "Oslo", city)

	res, err = users.Update(nil, map[string]any{"$unset": map[string]any{"age": 1.0}}, false, true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Modified)
	n, err := users.Count(map[string]any{"age": map[string]any{"$exists": true}})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = users.Update(map[string]any{"name": "bob"}, map[string]any{"$push": map[string]any{"tags": "new"}}, false, false)
	require.NoError(t, err)
	doc, _ = users.FindOne(map[string]any{"name": "bob"}, nil)
	tags, _ := doc.GetProperty("tags")
	assert.Equal(t, []any{"new"}, tags)
}

func TestCollection_UpdateReplaceAndUpsert(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	_, err := users.Update(map[string]any{"name": "bob"}, map[string]any{"name": "rob"}, false, false)
	require.NoError(t, err)
	doc, _ := users.FindOne(map[string]any{"name": "rob"}, nil)
	require.NotNil(t, doc)
	assert.Equal(t, `{ "_id" : ObjectId("000000020000000000000002"), "name" : "rob" }`, doc.String())

	res, err := users.Update(map[string]any{"name": "dee"}, map[string]any{"$set": map[string]any{"age": 50.0}}, true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	doc, _ = users.FindOne(map[string]any{"name": "dee"}, nil)
	require.NotNil(t, doc)
	age, _ := doc.GetProperty("age")
	assert.Equal(t, 50.0, age)

	for _, update := range []map[string]any{
		{"$set": map[string]any{"_id": 1.0}},
		{"$set": map[string]any{"a": 1.0}, "b": 2.0},
		{"$rename": map[string]any{"a": "b"}},
		{"$inc": map[string]any{"name": 1.0}},
	} {
		_, err := users.Update(map[string]any{"name": "ann"}, update, false, false)
		assert.Error(t, err, "%v", update)
	}
}

func TestCollection_SaveRemoveDrop(t *testing.T) {
	db := openTestDB(t)
	users := seedUsers(t, db)

	_, err := users.Save(map[string]any{"_id": "custom", "name": "eve"})
	require.NoError(t, err)
	_, err = users.Save(map[string]any{"_id": "custom", "name": "eva"})
	require.NoError(t, err)
	n, _ := users.Count(map[string]any{"_id": "custom"})
	assert.Equal(t, 1, n)

	_, err = users.Insert(map[string]any{"_id": "custom"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	res, err := users.Remove(map[string]any{"age": map[string]any{"$gt": 20.0}}, true)
	require.NoError(t, err)
	assert.Equal(t, `WriteResult({ "nRemoved" : 1 })`, res.String())
	res, err = users.Remove(nil, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Removed)

	existed, err := users.Drop()
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = users.Drop()
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCollection_InvokeValidatesName(t *testing.T) {
	db := openTestDB(t)
	bad := db.Collection("bad$name")

	name, err := bad.Invoke("getName", nil)
	require.NoError(t, err)
	assert.Equal(t, "bad$name", name)

	_, err = bad.Invoke("find", nil)
	assert.ErrorIs(t, err, ErrInvalidCollectionName)
	_, err = db.Collection("ok").Invoke("frobnicate", nil)
	assert.Error(t, err)
}

func TestDB_CollectionNames(t *testing.T) {
	db := openTestDB(t)
	seedUsers(t, db)
	_, err := db.Collection("accounts").Insert(map[string]any{"x": 1.0})
	require.NoError(t, err)

	done := make(chan []string, 1)
	db.GetCollectionNames(func(names []string, err error) {
		assert.NoError(t, err)
		done <- names
	})
	select {
	case names := <-done:
		assert.Equal(t, []string{"accounts", "users"}, names)
	case <-time.After(5 * time.Second):
		t.Fatal("GetCollectionNames never called back")
	}

	_, err = db.Collection("accounts").Drop()
	require.NoError(t, err)
	names, err := db.CollectionNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)

	out, err := db.Invoke("getCollectionNames", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"users"}, out)

	_, err = db.Invoke("dropDatabase", nil)
	require.NoError(t, err)
	names, _ = db.CollectionNames()
	assert.Empty(t, names)
}

func TestDB_Invoke(t *testing.T) {
	db := openTestDB(t)

	name, err := db.Invoke("getName", nil)
	require.NoError(t, err)
	assert.Equal(t, "test", name)

	coll, err := db.Invoke("getCollection", []any{"users"})
	require.NoError(t, err)
	assert.Equal(t, "test.users", coll.(*Collection).FullName())

	sub, ok := coll.(*Collection).GetProperty("archive")
	require.True(t, ok)
	assert.Equal(t, "users.archive", sub.(*Collection).Name())

	_, err = db.Invoke("getCollection", []any{1.0})
	assert.Error(t, err)
	assert.Contains(t, db.Methods(), "getCollectionNames")
}
