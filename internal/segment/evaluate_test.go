// internal/segment/evaluate_test.go
package segment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cohortd/cohortd/internal/types"
)

// fakeEventSource serves a fixed event slice, honoring the same filter
// semantics as the SQL-backed store: project scope, optional exact name
// match, inclusive window bounds, hard limit.
type fakeEventSource struct {
	events []types.Event
	err    error
}

func (f *fakeEventSource) Query(ctx context.Context, projectID types.ProjectID, filter types.EventFilter) ([]types.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.Event
	for _, ev := range f.events {
		if ev.ProjectID != projectID {
			continue
		}
		if filter.EventName != "" && ev.Name != filter.EventName {
			continue
		}
		if !filter.Window.Contains(ev.CreatedAt) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

const testProject = types.ProjectID("0191fa2e-0000-7000-8000-000000000001")

// scenarioEvents is the three-event fixture: u1 purchased and viewed, a1
// purchased anonymously.
func scenarioEvents(at time.Time) []types.Event {
	return []types.Event{
		{ID: "e1", ProjectID: testProject, Name: "purchase", UserID: "u1", CreatedAt: at},
		{ID: "e2", ProjectID: testProject, Name: "view", UserID: "u1", CreatedAt: at},
		{ID: "e3", ProjectID: testProject, Name: "purchase", AnonymousID: "a1", CreatedAt: at},
	}
}

func newTestEvaluator(events []types.Event) *Evaluator {
	return NewEvaluator(&fakeEventSource{events: events}, 0, 0)
}

func TestEvaluateCriteria_SinglePerformed(t *testing.T) {
	eval := newTestEvaluator(scenarioEvents(time.Now().UTC()))

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpPerformed},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	if result.Identities.Len() != 2 {
		t.Errorf("size = %d, want 2", result.Identities.Len())
	}
	if !result.Identities.Has(types.Identity{Kind: types.IdentityUser, ID: "u1"}) {
		t.Errorf("missing user:u1")
	}
	if !result.Identities.Has(types.Identity{Kind: types.IdentityAnon, ID: "a1"}) {
		t.Errorf("missing anon:a1")
	}
}

func TestEvaluateCriteria_TwoConditionsAnd(t *testing.T) {
	eval := newTestEvaluator(scenarioEvents(time.Now().UTC()))

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpPerformed},
			{Type: types.ConditionEvent, Field: "view", Operator: types.OpPerformed},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	if result.Identities.Len() != 1 {
		t.Fatalf("size = %d, want 1 (only u1 did both)", result.Identities.Len())
	}
	if !result.Identities.Has(types.Identity{Kind: types.IdentityUser, ID: "u1"}) {
		t.Errorf("missing user:u1")
	}
}

func TestEvaluateCriteria_TwoConditionsOr(t *testing.T) {
	eval := newTestEvaluator(scenarioEvents(time.Now().UTC()))

	criteria := types.Criteria{
		Logic: types.LogicOr,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpPerformed},
			{Type: types.ConditionEvent, Field: "view", Operator: types.OpPerformed},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	if result.Identities.Len() != 2 {
		t.Errorf("size = %d, want 2", result.Identities.Len())
	}
}

func TestEvaluateCriteria_NotPerformed(t *testing.T) {
	eval := newTestEvaluator(scenarioEvents(time.Now().UTC()))

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "signup", Operator: types.OpNotPerformed},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	// Nobody signed up, so every identity with any non-signup event matches.
	if result.Identities.Len() != 2 {
		t.Errorf("size = %d, want 2", result.Identities.Len())
	}
}

func TestEvaluateCriteria_EmptyConditions(t *testing.T) {
	eval := newTestEvaluator(scenarioEvents(time.Now().UTC()))

	criteria := types.Criteria{Logic: types.LogicAnd}
	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	// Zero conditions: every identity that ever produced an event.
	if result.Identities.Len() != 2 {
		t.Errorf("size = %d, want 2", result.Identities.Len())
	}
}

func TestEvaluateCriteria_PropertyCondition(t *testing.T) {
	now := time.Now().UTC()
	events := []types.Event{
		{ID: "e1", ProjectID: testProject, Name: "purchase", UserID: "u1",
			Properties: types.Properties{"plan": "pro", "amount": float64(120)}, CreatedAt: now},
		{ID: "e2", ProjectID: testProject, Name: "view", UserID: "u2",
			Properties: types.Properties{"plan": "free", "amount": float64(10)}, CreatedAt: now},
		{ID: "e3", ProjectID: testProject, Name: "purchase", AnonymousID: "a1",
			Properties: types.Properties{"amount": float64(300)}, CreatedAt: now},
	}
	eval := newTestEvaluator(events)

	tests := []struct {
		name string
		cond types.Condition
		want int
	}{
		{
			name: "equals matches one plan",
			cond: types.Condition{Type: types.ConditionProperty, Field: "plan", Operator: types.OpEquals, Value: "pro"},
			want: 1,
		},
		{
			name: "not_equals matches absent property too",
			cond: types.Condition{Type: types.ConditionProperty, Field: "plan", Operator: types.OpNotEquals, Value: "pro"},
			want: 2,
		},
		{
			name: "exists ignores event name",
			cond: types.Condition{Type: types.ConditionProperty, Field: "plan", Operator: types.OpExists},
			want: 2,
		},
		{
			name: "not_exists matches missing key",
			cond: types.Condition{Type: types.ConditionProperty, Field: "plan", Operator: types.OpNotExists},
			want: 1,
		},
		{
			name: "greater_than on amounts",
			cond: types.Condition{Type: types.ConditionProperty, Field: "amount", Operator: types.OpGreaterThan, Value: float64(100)},
			want: 2,
		},
		{
			name: "less_than on amounts",
			cond: types.Condition{Type: types.ConditionProperty, Field: "amount", Operator: types.OpLessThan, Value: float64(100)},
			want: 1,
		},
		{
			name: "contains on string form",
			cond: types.Condition{Type: types.ConditionProperty, Field: "plan", Operator: types.OpContains, Value: "ro"},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{tt.cond}}
			result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
			if err != nil {
				t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
			}
			if result.Identities.Len() != tt.want {
				t.Errorf("size = %d, want %d", result.Identities.Len(), tt.want)
			}
		})
	}
}

func TestEvaluateCriteria_TimeframeNarrowsPropertyScope(t *testing.T) {
	now := time.Now().UTC()
	events := []types.Event{
		{ID: "e1", ProjectID: testProject, Name: "purchase", UserID: "u1",
			Properties: types.Properties{"plan": "pro"}, CreatedAt: now.AddDate(0, 0, -2)},
		{ID: "e2", ProjectID: testProject, Name: "purchase", UserID: "u2",
			Properties: types.Properties{"plan": "pro"}, CreatedAt: now.AddDate(0, 0, -60)},
	}
	eval := newTestEvaluator(events)

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{
				Type: types.ConditionProperty, Field: "plan", Operator: types.OpEquals, Value: "pro",
				Timeframe: &types.Timeframe{Type: types.TimeframeLastNDays, Value: []byte("30")},
			},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	// The restriction runs before the predicate: u2's matching event is
	// outside the window and must not be visible at all.
	if result.Identities.Len() != 1 {
		t.Fatalf("size = %d, want 1", result.Identities.Len())
	}
	if !result.Identities.Has(types.Identity{Kind: types.IdentityUser, ID: "u1"}) {
		t.Errorf("missing user:u1")
	}
}

func TestEvaluateCriteria_ScanLimitSetsTruncated(t *testing.T) {
	now := time.Now().UTC()
	var events []types.Event
	for i := 0; i < 20; i++ {
		events = append(events, types.Event{
			ID: types.EventID(fmt.Sprintf("e%d", i)), ProjectID: testProject,
			Name: "view", UserID: fmt.Sprintf("u%d", i), CreatedAt: now,
		})
	}
	eval := NewEvaluator(&fakeEventSource{events: events}, 10, 2)

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "view", Operator: types.OpPerformed},
		},
	}

	result, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err != nil {
		t.Fatalf("EvaluateCriteria() error = %v, want nil", err)
	}
	if !result.Truncated {
		t.Errorf("Truncated = false, want true when scan hits limit")
	}
	if result.Identities.Len() != 10 {
		t.Errorf("size = %d, want 10 (capped)", result.Identities.Len())
	}
}

func TestEvaluateCriteria_ConditionErrorAbortsEvaluation(t *testing.T) {
	storeErr := errors.New("connection refused")
	eval := NewEvaluator(&fakeEventSource{err: storeErr}, 0, 0)

	criteria := types.Criteria{
		Logic: types.LogicOr,
		Conditions: []types.Condition{
			{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpPerformed},
			{Type: types.ConditionEvent, Field: "view", Operator: types.OpPerformed},
		},
	}

	_, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if err == nil {
		t.Fatal("EvaluateCriteria() error = nil, want store failure")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("error chain missing store failure: %v", err)
	}
}

func TestEvaluateCriteria_InvalidCriteriaRejectedUpFront(t *testing.T) {
	eval := newTestEvaluator(nil)

	criteria := types.Criteria{
		Logic: types.LogicAnd,
		Conditions: []types.Condition{
			{Type: types.ConditionProperty, Field: "plan", Operator: types.OpIn, Value: []any{"pro"}},
		},
	}

	_, err := eval.EvaluateCriteria(context.Background(), testProject, criteria)
	if !errors.Is(err, types.ErrInvalidCriteria) {
		t.Fatalf("error = %v, want ErrInvalidCriteria", err)
	}
}

func TestEvaluateCondition_IdentityCollapsing(t *testing.T) {
	now := time.Now().UTC()
	// Same user_id across different anonymous ids must collapse to one
	// identity; anything else silently breaks AND intersections.
	events := []types.Event{
		{ID: "e1", ProjectID: testProject, Name: "view", UserID: "u1", AnonymousID: "device-a", CreatedAt: now},
		{ID: "e2", ProjectID: testProject, Name: "view", UserID: "u1", AnonymousID: "device-b", CreatedAt: now},
	}
	eval := newTestEvaluator(events)

	set, _, err := eval.EvaluateCondition(context.Background(), testProject,
		types.Condition{Type: types.ConditionEvent, Field: "view", Operator: types.OpPerformed})
	if err != nil {
		t.Fatalf("EvaluateCondition() error = %v, want nil", err)
	}
	if set.Len() != 1 {
		t.Errorf("size = %d, want 1", set.Len())
	}
}
