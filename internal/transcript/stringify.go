package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/pretty"
)

// ToString converts any response payload to its display text.
//
// Strings are returned unchanged, errors and sandbox error values render
// through Error or String, scalars use their literal form and structured
// values are rendered as indented JSON.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return FormatNumber(float64(val))
	case float64:
		return FormatNumber(val)
	case []byte:
		return formatJSON(val)
	case json.RawMessage:
		return formatJSON(val)
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return formatJSON(b)
}

// FormatNumber renders a float the way a script engine prints numbers:
// integral values without a fraction, others in shortest form.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatJSON(b []byte) string {
	if !json.Valid(b) {
		return string(b)
	}
	return strings.TrimRight(string(pretty.PrettyOptions(b, &pretty.Options{
		Width:  80,
		Indent: "  ",
	})), "\n")
}
