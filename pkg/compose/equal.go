package compose

import "reflect"

// defaultEquals is strict equality: == for comparable dynamic values and
// reflect.DeepEqual for slices, maps and other non-comparable values.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case uint64:
		bv, ok := any(b).(uint64)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		return strictEqual(any(a), any(b))
	}
}

func strictEqual(a, b any) (eq bool) {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() {
		return reflect.DeepEqual(a, b)
	}
	// Comparable structs may still hold non-comparable values behind
	// interface fields; == panics on those.
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

// neverEqual treats every write as a change.
func neverEqual[T any](T, T) bool {
	return false
}
