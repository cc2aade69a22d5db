// internal/segment/timeframe.go
package segment

import (
	"encoding/json"
	"time"

	"github.com/cohortd/cohortd/internal/types"
)

/*
 * Timeframe resolution.
 *
 * Converts a condition's optional Timeframe into an inclusive TimeWindow
 * applied by the event store BEFORE the condition's predicate runs. Applying
 * the restriction first changes which raw events a property predicate sees
 * and which event_name occurrences an event condition counts.
 *
 * Permissive default: an absent, unknown, or malformed timeframe resolves to
 * the open window (full scope, subject only to the scan cap). This is
 * intentional inherited behavior, not an error path; criteria validation
 * never inspects timeframes.
 *
 * Value shapes:
 *   - last_n_days: JSON number (or numeric string) of days
 *   - since/before: RFC 3339 timestamp string
 *   - between: {"start": <ts>, "end": <ts>} object or [<ts>, <ts>] pair
 */

// Window resolves a timeframe against the evaluation instant. Both returned
// bounds are inclusive.
func Window(tf *types.Timeframe, now time.Time) types.TimeWindow {
	if tf == nil {
		return types.TimeWindow{}
	}

	switch tf.Type {
	case types.TimeframeLastNDays:
		days, ok := decodeDays(tf.Value)
		if !ok || days < 0 {
			return types.TimeWindow{}
		}
		return types.TimeWindow{Since: now.AddDate(0, 0, -days)}

	case types.TimeframeSince:
		ts, ok := decodeTimestamp(tf.Value)
		if !ok {
			return types.TimeWindow{}
		}
		return types.TimeWindow{Since: ts}

	case types.TimeframeBefore:
		ts, ok := decodeTimestamp(tf.Value)
		if !ok {
			return types.TimeWindow{}
		}
		return types.TimeWindow{Until: ts}

	case types.TimeframeBetween:
		start, end, ok := decodeRange(tf.Value)
		if !ok {
			return types.TimeWindow{}
		}
		return types.TimeWindow{Since: start, Until: end}

	default:
		return types.TimeWindow{}
	}
}

// decodeDays accepts a JSON number or a numeric string day count.
func decodeDays(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var f float64
		if err := json.Unmarshal([]byte(s), &f); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

// decodeTimestamp accepts an RFC 3339 timestamp string.
func decodeTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// decodeRange accepts {"start","end"} objects and two-element arrays.
func decodeRange(raw json.RawMessage) (time.Time, time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, time.Time{}, false
	}

	var obj struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Start != "" && obj.End != "" {
		start, err1 := time.Parse(time.RFC3339, obj.Start)
		end, err2 := time.Parse(time.RFC3339, obj.End)
		if err1 == nil && err2 == nil {
			return start, end, true
		}
		return time.Time{}, time.Time{}, false
	}

	var pair []string
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) == 2 {
		start, err1 := time.Parse(time.RFC3339, pair[0])
		end, err2 := time.Parse(time.RFC3339, pair[1])
		if err1 == nil && err2 == nil {
			return start, end, true
		}
	}
	return time.Time{}, time.Time{}, false
}
