package sandbox

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"webshell/pkg/shelltypes"
)

// thrownError carries a typed exception out of a host function.
type thrownError struct {
	exc *Exception
}

func (e *thrownError) Error() string {
	return e.exc.String()
}

// Throw returns an error that surfaces in scripts as an exception of the
// given name instead of a generic Error.
func Throw(name, format string, args ...any) error {
	return &thrownError{exc: &Exception{Name: name, Message: fmt.Sprintf(format, args...)}}
}

// AsException returns the exception a host error surfaces as.
func AsException(err error) *Exception {
	var thrown *thrownError
	if errors.As(err, &thrown) {
		return thrown.exc
	}
	return &Exception{Name: "Error", Message: err.Error()}
}

// GetProperty reads a property the way scripts see it: host getters first,
// then object fields. Missing properties read as nil.
func GetProperty(obj any, name string) (any, error) {
	switch o := obj.(type) {
	case nil:
		return nil, Throw("TypeError", "Cannot read property '%s' of null", name)
	case shelltypes.PropertyGetter:
		v, _ := o.GetProperty(name)
		return v, nil
	case map[string]any:
		return o[name], nil
	case []any:
		if name == "length" {
			return float64(len(o)), nil
		}
	case string:
		if name == "length" {
			return float64(utf8.RuneCountInString(o)), nil
		}
	}
	return nil, nil
}

func getProperty(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, Throw("TypeError", "__get expects 2 arguments, got %d", len(args))
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, Throw("TypeError", "property name must be a string")
	}
	return GetProperty(args[0], name)
}

func callMethod(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, Throw("TypeError", "__call expects a receiver and a method name")
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, Throw("TypeError", "method name must be a string")
	}
	switch recv := args[0].(type) {
	case nil:
		return nil, Throw("TypeError", "Cannot call method '%s' of null", name)
	case shelltypes.MethodInvoker:
		return recv.Invoke(name, args[2:])
	}
	return nil, Throw("TypeError", "%s is not a function", name)
}

func newException(args ...any) (any, error) {
	exc := &Exception{Name: "Error"}
	if len(args) > 0 && args[0] != nil {
		exc.Message = fmt.Sprint(args[0])
	}
	return exc, nil
}
