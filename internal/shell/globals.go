package shell

import (
	"strings"

	"webshell/internal/mutate"
	"webshell/internal/sandbox"
	"webshell/internal/transcript"
	"webshell/pkg/shelltypes"
)

// injectGlobals binds the session's globals into the evaluator.
func (s *Shell) injectGlobals() {
	s.evaluator.SetGlobal("print", shelltypes.NativeFunc(s.print))
	s.evaluator.SetGlobal("ObjectId", shelltypes.NativeFunc(objectID))
	s.evaluator.SetGlobal(mutate.GetHelper, shelltypes.NativeFunc(s.get))
	s.evaluator.SetGlobal("DBQuery", &dbQuery{shell: s})
	s.evaluator.SetGlobal("db", s.db)
}

// print writes its arguments, separated by spaces, as one response line.
func (s *Shell) print(args ...any) (any, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = transcript.ToString(arg)
	}
	s.renderer.InsertLine(strings.Join(parts, " "), "")
	return nil, nil
}

func objectID(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, sandbox.Throw("TypeError", "ObjectId expects 1 argument, got %d", len(args))
	}
	hex, ok := args[0].(string)
	if !ok {
		return nil, sandbox.Throw("TypeError", "ObjectId expects a hex string")
	}
	return map[string]any{"$oid": hex}, nil
}

// get reads a property. Unknown properties of a database name its
// collections, so db.users is the "users" collection.
func (s *Shell) get(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, sandbox.Throw("TypeError", "%s expects 2 arguments, got %d", mutate.GetHelper, len(args))
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, sandbox.Throw("TypeError", "property name must be a string")
	}
	if db, ok := args[0].(shelltypes.Database); ok {
		if getter, ok := db.(shelltypes.PropertyGetter); ok {
			if v, found := getter.GetProperty(name); found {
				return v, nil
			}
		}
		return db.GetCollection(name), nil
	}
	return sandbox.GetProperty(args[0], name)
}

// dbQuery is the DBQuery global. Its shellBatchSize property is the
// session's batch size setting.
type dbQuery struct {
	shell *Shell
}

func (q *dbQuery) GetProperty(name string) (any, bool) {
	if name != "shellBatchSize" {
		return nil, false
	}
	return q.shell.State().ShellBatchSize, true
}

func (q *dbQuery) SetProperty(name string, value any) error {
	if name != "shellBatchSize" {
		return sandbox.Throw("TypeError", "cannot set DBQuery.%s", name)
	}
	q.shell.SetShellBatchSize(value)
	return nil
}

func (q *dbQuery) String() string {
	return "DBQuery"
}
