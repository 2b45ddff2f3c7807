package sandbox

import (
	"github.com/hashicorp/hcl/v2"
)

// Exception is a sandbox-native error value. It is what scripts see and
// what runtime failures are reported as; it deliberately does not implement
// error, so hosts recognize it through ErrorClass.
type Exception struct {
	Name    string
	Message string
}

// String renders the exception as "Name: message".
func (e *Exception) String() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

// ErrorClass is the sandbox's Error constructor as seen by the host.
type ErrorClass struct{}

// IsInstance reports whether v is a sandbox exception.
func (ErrorClass) IsInstance(v any) bool {
	_, ok := v.(*Exception)
	return ok
}

// exceptionFromDiags picks the first error diagnostic and names it after the
// failure class a script author would expect.
func exceptionFromDiags(diags hcl.Diagnostics) *Exception {
	for _, diag := range diags {
		if diag.Severity != hcl.DiagError {
			continue
		}
		name := "Error"
		switch diag.Summary {
		case "Unknown variable", "Call to unknown function":
			name = "ReferenceError"
		case "Unsupported attribute", "Invalid operand", "Invalid function argument",
			"Unsupported operator", "Invalid index", "Unsuitable value type":
			name = "TypeError"
		}
		msg := diag.Detail
		if msg == "" {
			msg = diag.Summary
		}
		return &Exception{Name: name, Message: msg}
	}
	return &Exception{Name: "Error", Message: diags.Error()}
}
