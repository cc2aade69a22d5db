package segment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cohortd/cohortd/internal/types"
)

func TestValidateCriteria(t *testing.T) {
	valid := types.Condition{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpPerformed}

	tests := []struct {
		name     string
		criteria types.Criteria
		wantErr  bool
	}{
		{
			name:     "event performed",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{valid}},
		},
		{
			name:     "zero conditions is legal",
			criteria: types.Criteria{Logic: types.LogicAnd},
		},
		{
			name:     "or logic",
			criteria: types.Criteria{Logic: types.LogicOr, Conditions: []types.Condition{valid}},
		},
		{
			name:     "unknown logic",
			criteria: types.Criteria{Logic: "XOR", Conditions: []types.Condition{valid}},
			wantErr:  true,
		},
		{
			name: "property equals",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionProperty, Field: "plan", Operator: types.OpEquals, Value: "pro"},
			}},
		},
		{
			name: "reserved property operator between",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionProperty, Field: "amount", Operator: types.OpBetween, Value: []any{1, 10}},
			}},
			wantErr: true,
		},
		{
			name: "reserved property operator in",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionProperty, Field: "plan", Operator: types.OpIn, Value: []any{"pro"}},
			}},
			wantErr: true,
		},
		{
			name: "reserved property operator not_in",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionProperty, Field: "plan", Operator: types.OpNotIn, Value: []any{"pro"}},
			}},
			wantErr: true,
		},
		{
			name: "reserved condition type user",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionUser, Field: "email", Operator: types.OpEquals, Value: "x"},
			}},
			wantErr: true,
		},
		{
			name: "reserved condition type session",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionSession, Field: "duration", Operator: types.OpGreaterThan, Value: 60},
			}},
			wantErr: true,
		},
		{
			name: "event operator on property condition",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionProperty, Field: "plan", Operator: types.OpPerformed},
			}},
			wantErr: true,
		},
		{
			name: "property operator on event condition",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionEvent, Field: "purchase", Operator: types.OpEquals, Value: "x"},
			}},
			wantErr: true,
		},
		{
			name: "missing field",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: types.ConditionEvent, Operator: types.OpPerformed},
			}},
			wantErr: true,
		},
		{
			name: "unknown condition type",
			criteria: types.Criteria{Logic: types.LogicAnd, Conditions: []types.Condition{
				{Type: "cohort", Field: "x", Operator: types.OpEquals},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCriteria(tt.criteria)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidCriteria) {
					t.Fatalf("ValidateCriteria() error = %v, want ErrInvalidCriteria", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateCriteria() error = %v, want nil", err)
			}
		})
	}
}

func TestValidateCriteria_TooManyConditions(t *testing.T) {
	criteria := types.Criteria{Logic: types.LogicAnd}
	for i := 0; i <= types.MaxConditions; i++ {
		criteria.Conditions = append(criteria.Conditions, types.Condition{
			Type: types.ConditionEvent, Field: fmt.Sprintf("ev%d", i), Operator: types.OpPerformed,
		})
	}
	if err := ValidateCriteria(criteria); !errors.Is(err, types.ErrInvalidCriteria) {
		t.Fatalf("ValidateCriteria() error = %v, want ErrInvalidCriteria", err)
	}
}
