package completion

import (
	"strings"

	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

// Role is the recognized role of an evaluated chain value.
type Role int

const (
	// RoleUnrecognized values have no completion rule.
	RoleUnrecognized Role = iota
	// RoleDatabaseRoot is the session's root database handle.
	RoleDatabaseRoot
	// RoleCollection is any collection handle.
	RoleCollection
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleDatabaseRoot:
		return "database-root"
	case RoleCollection:
		return "collection"
	default:
		return "unrecognized"
	}
}

// Environment gives rules access to session-owned handles.
type Environment interface {
	RootDatabase() shelltypes.Database
}

// Classify maps a runtime value to its completion role.
func Classify(value any, env Environment) Role {
	if value == nil {
		return RoleUnrecognized
	}
	if env != nil {
		if root := env.RootDatabase(); root != nil && isSameHandle(value, root) {
			return RoleDatabaseRoot
		}
	}
	if _, ok := value.(shelltypes.Collection); ok {
		return RoleCollection
	}
	return RoleUnrecognized
}

// isSameHandle compares a value with a database handle by identity.
func isSameHandle(value any, root shelltypes.Database) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	db, ok := value.(shelltypes.Database)
	return ok && db == root
}

// Rule recognizes a value role and computes completions for it.
// Compute owns the delivery once called and must eventually call deliver.
type Rule interface {
	ID() string
	Matches(value any, env Environment) bool
	Compute(value any, env Environment, prefix string, deliver func([]string))
}

// Engine holds the priority-ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the built-in rules followed by extra rules.
func NewEngine(extra ...Rule) *Engine {
	rules := []Rule{DatabaseRootRule{}, CollectionMethodsRule{}}
	rules = append(rules, extra...)
	return &Engine{rules: rules}
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Match returns the first rule whose predicate accepts value.
func (e *Engine) Match(value any, env Environment) (Rule, bool) {
	for _, rule := range e.rules {
		if rule.Matches(value, env) {
			return rule, true
		}
	}
	return nil, false
}

// DatabaseRootRule completes collection names on the root database handle.
type DatabaseRootRule struct{}

// ID returns the rule identifier.
func (DatabaseRootRule) ID() string { return "db-collections" }

// Matches reports whether value is the session's root database.
func (DatabaseRootRule) Matches(value any, env Environment) bool {
	return Classify(value, env) == RoleDatabaseRoot
}

// Compute lists collection names and keeps those starting with prefix.
func (r DatabaseRootRule) Compute(value any, env Environment, prefix string, deliver func([]string)) {
	db := env.RootDatabase()
	db.GetCollectionNames(func(names []string, err error) {
		if err != nil {
			logger.CompletionStep("collections", "rule", r.ID(), "error", err)
			deliver(nil)
			return
		}
		deliver(filterPrefix(names, prefix, nil))
	})
}

// CollectionMethodsRule completes method names on collection handles.
type CollectionMethodsRule struct{}

// ID returns the rule identifier.
func (CollectionMethodsRule) ID() string { return "collection-methods" }

// Matches reports whether value is a collection handle.
func (CollectionMethodsRule) Matches(value any, env Environment) bool {
	return Classify(value, env) == RoleCollection
}

// Compute lists the collection's public methods starting with prefix.
func (CollectionMethodsRule) Compute(value any, _ Environment, prefix string, deliver func([]string)) {
	coll := value.(shelltypes.Collection)
	deliver(filterPrefix(coll.Methods(), prefix, func(name string) bool {
		return name != "toString" && !strings.HasPrefix(name, "__")
	}))
}

// filterPrefix keeps names with the given case-sensitive prefix, preserving order.
func filterPrefix(names []string, prefix string, keep func(string) bool) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if keep != nil && !keep(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
