// Package sandbox evaluates shell statements in an isolated expression
// environment. Statements use the HCL native expression syntax; host
// objects such as the database handle are bound as opaque globals and are
// only reachable through the member-access helpers the mutator emits.
//
// Only the globals bound with SetGlobal are visible to a statement. There is
// no access to the file system, the process or the network.
package sandbox

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"webshell/internal/logger"
	"webshell/internal/mutate"
	"webshell/pkg/shelltypes"
)

// ErrInvalidAssignment is returned for assignments to anything other than a
// global name or a property.
var ErrInvalidAssignment = errors.New("invalid assignment target")

// Sandbox implements shelltypes.Evaluator.
type Sandbox struct {
	mu       sync.Mutex
	globals  map[string]any
	capsules map[any]cty.Value
	mutator  shelltypes.SourceMutator
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithMutator replaces the source mutator applied before parsing.
func WithMutator(m shelltypes.SourceMutator) Option {
	return func(s *Sandbox) {
		if m != nil {
			s.mutator = m
		}
	}
}

// New creates an empty sandbox.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		globals:  make(map[string]any),
		capsules: make(map[any]cty.Value),
		mutator:  mutate.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetGlobal binds value to name for all later evaluations.
func (s *Sandbox) SetGlobal(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[name] = value
	if value != nil && !isPlain(value) && reflect.TypeOf(value).Comparable() {
		if _, ok := s.capsules[value]; !ok {
			v := value
			s.capsules[value] = cty.CapsuleVal(hostType, &v)
		}
	}
}

// GetGlobal returns the value bound to name. "Error" always resolves to the
// sandbox's ErrorClass.
func (s *Sandbox) GetGlobal(name string) any {
	if name == "Error" {
		return ErrorClass{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globals[name]
}

type statement struct {
	target hclsyntax.Expression
	value  hclsyntax.Expression
}

// Eval parses and runs src. Parse failures are returned directly and no
// statement runs. Otherwise cb receives the value of the last statement, or
// the exception that stopped execution, before Eval returns.
func (s *Sandbox) Eval(src string, cb shelltypes.EvalCallback) error {
	lowered, err := s.mutator.Mutate(src)
	if err != nil {
		return err
	}
	stmts, err := parse(lowered)
	if err != nil {
		return err
	}

	r := &run{sandbox: s}
	ctx := s.context(r)
	var result any
	for _, stmt := range stmts {
		value, exc := r.exec(ctx, stmt)
		if exc != nil {
			logger.Debug("Statement failed", "input", src, "error", exc.String())
			cb(exc, true)
			return nil
		}
		result = value
	}
	cb(result, false)
	return nil
}

// parse splits src into statements at top-level newlines and semicolons and
// parses each one, detecting assignments.
func parse(src string) ([]statement, error) {
	tokens, err := mutate.Lex(src)
	if err != nil {
		return nil, err
	}

	var stmts []statement
	depth, start, eq := 0, 0, -1
	flush := func(end int) error {
		defer func() { start, eq = end, -1 }()
		if eq < 0 {
			if isBlank(src[start:end]) {
				return nil
			}
			expr, err := parseExpr(src[start:end])
			if err != nil {
				return err
			}
			stmts = append(stmts, statement{value: expr})
			return nil
		}
		target, err := parseExpr(src[start:eq])
		if err != nil {
			return err
		}
		value, err := parseExpr(src[eq+1 : end])
		if err != nil {
			return err
		}
		stmts = append(stmts, statement{target: target, value: value})
		return nil
	}

	for _, tok := range tokens {
		switch tok.Type {
		case hclsyntax.TokenOParen, hclsyntax.TokenOBrack, hclsyntax.TokenOBrace,
			hclsyntax.TokenOQuote, hclsyntax.TokenOHeredoc,
			hclsyntax.TokenTemplateInterp, hclsyntax.TokenTemplateControl:
			depth++
		case hclsyntax.TokenCParen, hclsyntax.TokenCBrack, hclsyntax.TokenCBrace,
			hclsyntax.TokenCQuote, hclsyntax.TokenCHeredoc, hclsyntax.TokenTemplateSeqEnd:
			depth--
		case hclsyntax.TokenEqual:
			if depth == 0 && eq < 0 {
				eq = tok.Range.Start.Byte
			}
		case hclsyntax.TokenEOF:
			if err := flush(len(src)); err != nil {
				return nil, err
			}
			continue
		}
		if depth == 0 && mutate.IsSeparator(tok) {
			end := tok.Range.Start.Byte
			if err := flush(end); err != nil {
				return nil, err
			}
			start = tok.Range.End.Byte
		}
	}
	return stmts, nil
}

func parseExpr(src string) (hclsyntax.Expression, error) {
	if isBlank(src) {
		return nil, fmt.Errorf("SyntaxError: missing expression")
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<input>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("SyntaxError: %s", diags.Error())
	}
	return expr, nil
}

func isBlank(s string) bool {
	for _, c := range s {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}

// run carries the state of one Eval call.
type run struct {
	sandbox *Sandbox
	// thrown is the first host error raised by a native function.
	thrown error
}

func (r *run) exec(ctx *hcl.EvalContext, stmt statement) (any, *Exception) {
	value, diags := stmt.value.Value(ctx)
	if diags.HasErrors() {
		return nil, r.exception(diags)
	}
	if stmt.target == nil {
		return fromCty(value), nil
	}

	switch target := stmt.target.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(target.Traversal) == 1 {
			name := target.Traversal.RootName()
			r.sandbox.SetGlobal(name, fromCty(value))
			ctx.Variables[name] = r.sandbox.toCty(fromCty(value))
			return fromCty(value), nil
		}
	case *hclsyntax.FunctionCallExpr:
		if target.Name == mutate.GetHelper && len(target.Args) == 2 {
			return r.assignProperty(ctx, target.Args[0], target.Args[1], value)
		}
	}
	return nil, &Exception{Name: "SyntaxError", Message: ErrInvalidAssignment.Error()}
}

func (r *run) assignProperty(ctx *hcl.EvalContext, objExpr, nameExpr hclsyntax.Expression, value cty.Value) (any, *Exception) {
	obj, diags := objExpr.Value(ctx)
	if diags.HasErrors() {
		return nil, r.exception(diags)
	}
	name, diags := nameExpr.Value(ctx)
	if diags.HasErrors() {
		return nil, r.exception(diags)
	}
	if name.IsNull() || !name.Type().Equals(cty.String) {
		return nil, &Exception{Name: "TypeError", Message: "property name must be a string"}
	}

	goValue := fromCty(value)
	switch target := fromCty(obj).(type) {
	case shelltypes.PropertySetter:
		if err := target.SetProperty(name.AsString(), goValue); err != nil {
			return nil, AsException(err)
		}
	case nil:
		return nil, &Exception{Name: "TypeError", Message: fmt.Sprintf("cannot set property %q of null", name.AsString())}
	default:
		return nil, &Exception{Name: "TypeError", Message: fmt.Sprintf("cannot set property %q of %T", name.AsString(), target)}
	}
	return goValue, nil
}

func (r *run) exception(diags hcl.Diagnostics) *Exception {
	if r.thrown != nil {
		return AsException(r.thrown)
	}
	return exceptionFromDiags(diags)
}

// context snapshots the globals into an evaluation context for one run.
func (s *Sandbox) context(r *run) *hcl.EvalContext {
	s.mu.Lock()
	globals := make(map[string]any, len(s.globals))
	for name, v := range s.globals {
		globals[name] = v
	}
	s.mu.Unlock()

	ctx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value),
		Functions: map[string]function.Function{
			mutate.GetHelper:  r.native(getProperty),
			mutate.CallHelper: r.native(callMethod),
			"Error":           r.native(newException),
		},
	}
	for name, v := range globals {
		switch fn := v.(type) {
		case shelltypes.NativeFunc:
			ctx.Functions[name] = r.native(fn)
		case func(args ...any) (any, error):
			ctx.Functions[name] = r.native(fn)
		default:
			ctx.Variables[name] = s.toCty(v)
		}
	}
	return ctx
}

// native adapts a host function. Host errors stop the statement and are
// reported with their own message rather than the call diagnostic.
func (r *run) native(fn shelltypes.NativeFunc) function.Function {
	return function.New(&function.Spec{
		VarParam: &function.Parameter{
			Name:             "args",
			Type:             cty.DynamicPseudoType,
			AllowNull:        true,
			AllowDynamicType: true,
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, _ cty.Type) (ret cty.Value, err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%v", p)
					r.throw(err)
				}
			}()
			in := make([]any, len(args))
			for i, arg := range args {
				in[i] = fromCty(arg)
			}
			out, err := fn(in...)
			if err != nil {
				r.throw(err)
				return cty.NilVal, err
			}
			return r.sandbox.toCty(out), nil
		},
	})
}

func (r *run) throw(err error) {
	if r.thrown == nil {
		r.thrown = err
	}
}

func isPlain(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, float32, float64, []any, []string, map[string]any,
		shelltypes.NativeFunc, func(args ...any) (any, error):
		return true
	}
	return false
}
