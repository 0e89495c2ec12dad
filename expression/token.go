package expression

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Truthy reports whether a matched token selects a template as applicable.
//
// The rule is explicit rather than relying on dynamic coercion: nil is
// false, an empty string is false, the boolean false is false, and every
// other matched token (including 0 and empty collections) is true.
func Truthy(token any) bool {
	switch v := token.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	default:
		return true
	}
}

// StringValue coerces a matched token to its string form for use as a
// device, patient, encounter, or correlation identifier. Returns false for
// nil tokens and for structured tokens (objects, arrays) that have no
// sensible scalar form.
func StringValue(token any) (string, bool) {
	switch v := token.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case json.Number:
		return v.String(), true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprintf("%v", v), true
	}
}
