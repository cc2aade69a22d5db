// internal/segment/operators.go
package segment

import (
	"strconv"
	"strings"

	"github.com/cohortd/cohortd/internal/types"
)

/*
 * Property operator predicates.
 *
 * Implements the 8 evaluated property operators against a single property
 * value extracted from an event's payload. Absence is tracked separately
 * from the value itself so exists/not_exists and the negated operators get
 * correct semantics for missing keys:
 *
 *   - equals/not_equals: equality with numeric tolerance; an absent
 *     property never equals a target, so not_equals matches absent keys
 *   - contains/not_contains: substring on string forms; not_contains
 *     matches absent keys
 *   - exists/not_exists: presence with non-null value
 *   - greater_than/less_than: numeric comparison; either side failing
 *     numeric conversion means no match
 *
 * Numeric conversion accepts float64/int/int64 plus numeric strings,
 * mirroring loose JSON payloads where "42" and 42 both appear for the same
 * property. String form of a float drops the trailing ".0" so contains
 * behaves identically for 10 and 10.0.
 *
 * Why function-based: a switch over 8 predicates is cleaner than 8
 * single-method implementations with minimal behavior variation.
 */

// MatchProperty applies a property operator to one extracted property value.
// present is whether the payload carried the key at all; p is its value
// (nil for JSON null). Reserved operators (between/in/not_in) are rejected
// at validation and never reach this switch; hitting default here means a
// validation gap, answered with no-match rather than a false member.
func MatchProperty(op types.Operator, p any, present bool, target any) bool {
	switch op {
	case types.OpEquals:
		return present && propertyEqual(p, target)
	case types.OpNotEquals:
		return !present || !propertyEqual(p, target)
	case types.OpContains:
		return present && propertyContains(p, target)
	case types.OpNotContains:
		return !present || !propertyContains(p, target)
	case types.OpExists:
		return present && p != nil
	case types.OpNotExists:
		return !present || p == nil
	case types.OpGreaterThan:
		return present && propertyCompare(p, target) > 0
	case types.OpLessThan:
		return present && propertyCompare(p, target) < 0
	default:
		return false
	}
}

// propertyEqual performs equality comparison with numeric type coercion.
// Handles float64/int/int64 and numeric string mixing from JSON payloads.
func propertyEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	sa, oka := stringify(a)
	sb, okb := stringify(b)
	if oka && okb {
		return sa == sb
	}
	return a == b
}

// propertyContains checks substring containment on the string forms of both
// values. Values without a string form (objects, arrays) never match.
func propertyContains(p, target any) bool {
	ps, ok1 := stringify(p)
	ts, ok2 := stringify(target)
	if !ok1 || !ok2 {
		return false
	}
	return strings.Contains(ps, ts)
}

// propertyCompare performs three-way numeric comparison (-1/0/1).
// Returns 0 for incomparable values, which no-matches both gt and lt.
func propertyCompare(a, b any) int {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return 0
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// asNumbers attempts to convert both values to float64 for numeric
// comparison. Returns converted values and success flag.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts a value to float64 if it has a numeric form.
// Handles float64/int/int64 from JSON unmarshaling plus numeric strings.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringify renders scalar values for substring and equality comparison.
// Floats render without a trailing ".0"; composites have no string form.
func stringify(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}
