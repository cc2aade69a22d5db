// internal/segment/validate.go
package segment

import (
	"fmt"

	"github.com/cohortd/cohortd/internal/types"
)

/*
 * Criteria validation.
 *
 * Rejects criteria documents that reference an operator/type combination
 * with no defined evaluation path, instead of letting them silently
 * evaluate to the empty set. Reserved condition types (user, session) and
 * reserved property operators (between, in, not_in) fail here, at segment
 * creation or recalculation start, before any event store read happens.
 *
 * Timeframes are deliberately NOT validated: an absent or malformed
 * timeframe means no restriction, a permissive default preserved from the
 * stored criteria vocabulary.
 *
 * All failures wrap types.ErrInvalidCriteria so callers can classify with
 * errors.Is.
 */

// eventOperators and propertyOperators are the full (type, operator)
// dispatch table. Exhaustive by construction: an operator absent from the
// table for a type has no evaluation path and is invalid.
var (
	eventOperators = map[types.Operator]bool{
		types.OpPerformed:    true,
		types.OpNotPerformed: true,
	}

	propertyOperators = map[types.Operator]bool{
		types.OpEquals:      true,
		types.OpNotEquals:   true,
		types.OpContains:    true,
		types.OpNotContains: true,
		types.OpExists:      true,
		types.OpNotExists:   true,
		types.OpGreaterThan: true,
		types.OpLessThan:    true,
	}

	// Operators present in the criteria vocabulary without an evaluation
	// path. Listed separately so the error names them as reserved rather
	// than unknown.
	reservedPropertyOperators = map[types.Operator]bool{
		types.OpBetween: true,
		types.OpIn:      true,
		types.OpNotIn:   true,
	}
)

// ValidateCriteria checks a full criteria document. Zero conditions is
// legal (the everyone-with-an-event segment); an unknown logic operator or
// any invalid condition is not.
func ValidateCriteria(c types.Criteria) error {
	if c.Logic != types.LogicAnd && c.Logic != types.LogicOr {
		return fmt.Errorf("%w: unknown logic operator %q", types.ErrInvalidCriteria, c.Logic)
	}
	if len(c.Conditions) > types.MaxConditions {
		return fmt.Errorf("%w: %d conditions exceeds maximum of %d",
			types.ErrInvalidCriteria, len(c.Conditions), types.MaxConditions)
	}
	for i, cond := range c.Conditions {
		if err := ValidateCondition(cond); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

// ValidateCondition checks one condition against the dispatch table.
func ValidateCondition(c types.Condition) error {
	if c.Field == "" {
		return fmt.Errorf("%w: condition field is required", types.ErrInvalidCriteria)
	}
	if len(c.Field) > types.MaxFieldLength {
		return fmt.Errorf("%w: condition field exceeds %d characters",
			types.ErrInvalidCriteria, types.MaxFieldLength)
	}

	switch c.Type {
	case types.ConditionEvent:
		if !eventOperators[c.Operator] {
			return fmt.Errorf("%w: operator %q not supported for event conditions",
				types.ErrInvalidCriteria, c.Operator)
		}
	case types.ConditionProperty:
		if reservedPropertyOperators[c.Operator] {
			return fmt.Errorf("%w: property operator %q is reserved and not yet evaluated",
				types.ErrInvalidCriteria, c.Operator)
		}
		if !propertyOperators[c.Operator] {
			return fmt.Errorf("%w: operator %q not supported for property conditions",
				types.ErrInvalidCriteria, c.Operator)
		}
	case types.ConditionUser, types.ConditionSession:
		return fmt.Errorf("%w: condition type %q is reserved and not yet evaluated",
			types.ErrInvalidCriteria, c.Type)
	default:
		return fmt.Errorf("%w: unknown condition type %q", types.ErrInvalidCriteria, c.Type)
	}
	return nil
}
