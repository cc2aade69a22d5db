package segment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cohortd/cohortd/internal/types"
)

func TestWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	mark := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timeframe *types.Timeframe
		wantSince time.Time
		wantUntil time.Time
	}{
		{
			name:      "nil timeframe is open",
			timeframe: nil,
		},
		{
			name:      "last_n_days",
			timeframe: &types.Timeframe{Type: types.TimeframeLastNDays, Value: json.RawMessage("30")},
			wantSince: now.AddDate(0, 0, -30),
		},
		{
			name:      "last_n_days numeric string",
			timeframe: &types.Timeframe{Type: types.TimeframeLastNDays, Value: json.RawMessage(`"7"`)},
			wantSince: now.AddDate(0, 0, -7),
		},
		{
			name:      "since",
			timeframe: &types.Timeframe{Type: types.TimeframeSince, Value: json.RawMessage(`"2024-06-01T00:00:00Z"`)},
			wantSince: mark,
		},
		{
			name:      "before",
			timeframe: &types.Timeframe{Type: types.TimeframeBefore, Value: json.RawMessage(`"2024-06-01T00:00:00Z"`)},
			wantUntil: mark,
		},
		{
			name: "between object",
			timeframe: &types.Timeframe{Type: types.TimeframeBetween,
				Value: json.RawMessage(`{"start":"2024-06-01T00:00:00Z","end":"2024-06-10T00:00:00Z"}`)},
			wantSince: mark,
			wantUntil: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "between pair",
			timeframe: &types.Timeframe{Type: types.TimeframeBetween,
				Value: json.RawMessage(`["2024-06-01T00:00:00Z","2024-06-10T00:00:00Z"]`)},
			wantSince: mark,
			wantUntil: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "malformed value is open, not an error",
			timeframe: &types.Timeframe{Type: types.TimeframeSince, Value: json.RawMessage(`"yesterday"`)},
		},
		{
			name:      "unknown type is open",
			timeframe: &types.Timeframe{Type: "last_full_moon", Value: json.RawMessage("1")},
		},
		{
			name:      "negative day count is open",
			timeframe: &types.Timeframe{Type: types.TimeframeLastNDays, Value: json.RawMessage("-3")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(tt.timeframe, now)
			if !got.Since.Equal(tt.wantSince) {
				t.Errorf("Since = %v, want %v", got.Since, tt.wantSince)
			}
			if !got.Until.Equal(tt.wantUntil) {
				t.Errorf("Until = %v, want %v", got.Until, tt.wantUntil)
			}
		})
	}
}

func TestTimeWindow_InclusiveBounds(t *testing.T) {
	mark := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	since := types.TimeWindow{Since: mark}
	if !since.Contains(mark) {
		t.Errorf("since window excludes its own boundary")
	}
	if since.Contains(mark.Add(-time.Nanosecond)) {
		t.Errorf("since window includes instants before the boundary")
	}

	until := types.TimeWindow{Until: mark}
	if !until.Contains(mark) {
		t.Errorf("before window excludes its own boundary")
	}
	if until.Contains(mark.Add(time.Nanosecond)) {
		t.Errorf("before window includes instants after the boundary")
	}

	open := types.TimeWindow{}
	if !open.Open() || !open.Contains(mark) {
		t.Errorf("zero window is not open")
	}
}
