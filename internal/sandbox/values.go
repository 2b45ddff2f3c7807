package sandbox

import (
	"math"
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// hostType wraps every Go value that has no native expression form: database
// handles, cursors, documents, exceptions.
var hostType = cty.Capsule("host", reflect.TypeOf((*any)(nil)).Elem())

// toCty converts a Go value into an expression value. Plain data becomes
// native values; anything else is encapsulated. Handles bound as globals
// always map to the capsule created when they were bound, so scripts can
// compare them by identity.
func (s *Sandbox) toCty(v any) cty.Value {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case cty.Value:
		return val
	case string:
		return cty.StringVal(val)
	case bool:
		return cty.BoolVal(val)
	case int:
		return cty.NumberIntVal(int64(val))
	case int32:
		return cty.NumberIntVal(int64(val))
	case int64:
		return cty.NumberIntVal(val)
	case float32:
		return numberVal(float64(val))
	case float64:
		return numberVal(val)
	case []string:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = item
		}
		return s.toCty(items)
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(val))
		for i, item := range val {
			items[i] = s.toCty(item)
		}
		return cty.TupleVal(items)
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			attrs[k] = s.toCty(item)
		}
		return cty.ObjectVal(attrs)
	}
	return s.capsule(v)
}

func numberVal(f float64) cty.Value {
	if math.IsNaN(f) {
		return cty.NullVal(cty.Number)
	}
	return cty.NumberFloatVal(f)
}

func (s *Sandbox) capsule(v any) cty.Value {
	if reflect.TypeOf(v).Comparable() {
		s.mu.Lock()
		c, ok := s.capsules[v]
		s.mu.Unlock()
		if ok {
			return c
		}
	}
	return cty.CapsuleVal(hostType, &v)
}

// fromCty converts an expression value back to Go. Numbers become float64,
// objects become map[string]any and sequences []any.
func fromCty(v cty.Value) any {
	v, _ = v.Unmark()
	if !v.IsKnown() || v.IsNull() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty.Equals(hostType):
		return *(v.EncapsulatedValue().(*any))
	case ty.Equals(cty.String):
		return v.AsString()
	case ty.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return f
	case ty.Equals(cty.Bool):
		return v.True()
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for k, item := range v.AsValueMap() {
			out[k] = fromCty(item)
		}
		return out
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		items := v.AsValueSlice()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromCty(item)
		}
		return out
	case ty.IsCapsuleType():
		return v.EncapsulatedValue()
	}
	return nil
}
