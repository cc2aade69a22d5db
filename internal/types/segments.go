// internal/types/segments.go
package types

import (
	"encoding/json"
	"time"
)

/*
 * Domain types for segment criteria.
 *
 * Provides Segment, Criteria, Condition and Timeframe structures used by
 * internal/segment for validation and evaluation. These types are storage
 * agnostic; criteria persist as a JSON document inside the segments row and
 * decode straight into Criteria.
 *
 * Key types:
 *   - Segment: stored segment with criteria and cached snapshot metadata
 *   - Criteria: flat condition list plus one combining logic operator
 *   - Condition: single membership test with optional time restriction
 *   - Timeframe: time restriction applied before a condition's predicate
 */

// Logic combines per-condition identity sets.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ConditionType selects the evaluation path of a condition.
// "user" and "session" are reserved: they are part of the stored criteria
// vocabulary but have no evaluation path and are rejected at validation.
type ConditionType string

const (
	ConditionEvent    ConditionType = "event"
	ConditionProperty ConditionType = "property"
	ConditionUser     ConditionType = "user"
	ConditionSession  ConditionType = "session"
)

// Operator is a condition's comparison operator. Legal combinations of
// (ConditionType, Operator) are fixed; see internal/segment validation.
type Operator string

const (
	// Event operators.
	OpPerformed    Operator = "performed"
	OpNotPerformed Operator = "not_performed"

	// Property operators.
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"

	// Reserved property operators. Stored criteria may carry them but no
	// evaluation path exists; validation rejects them.
	OpBetween Operator = "between"
	OpIn      Operator = "in"
	OpNotIn   Operator = "not_in"
)

// TimeframeType selects how a Timeframe's value is interpreted.
type TimeframeType string

const (
	TimeframeLastNDays TimeframeType = "last_n_days"
	TimeframeBetween   TimeframeType = "between"
	TimeframeSince     TimeframeType = "since"
	TimeframeBefore    TimeframeType = "before"
)

// Timeframe narrows the event scope a condition reads. Value shape depends
// on Type: a day count for last_n_days, an RFC 3339 timestamp for
// since/before, and a {"start","end"} object for between. Raw bytes are kept
// so malformed values degrade to the open window instead of failing decode.
type Timeframe struct {
	Type  TimeframeType   `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Condition is one atomic membership test. Immutable once embedded in a
// stored criteria document.
type Condition struct {
	ID        string        `json:"id,omitempty"`
	Type      ConditionType `json:"type"`
	Field     string        `json:"field"`
	Operator  Operator      `json:"operator"`
	Value     any           `json:"value,omitempty"`
	Timeframe *Timeframe    `json:"timeframe,omitempty"`
}

// Criteria is a flat list of conditions plus one combining logic operator.
type Criteria struct {
	Conditions []Condition `json:"conditions"`
	Logic      Logic       `json:"logic"`
}

// SegmentType distinguishes criteria-driven segments from manually curated
// ones. Only dynamic segments are recalculated.
type SegmentType string

const (
	SegmentDynamic SegmentType = "dynamic"
	SegmentStatic  SegmentType = "static"
)

// Segment is a stored audience definition. CachedSize and LastCalculatedAt
// reflect the last materialized snapshot and are mutated only through the
// segment store's stats update, never by the evaluator.
type Segment struct {
	ID               SegmentID   `db:"segment_id"`
	ProjectID        ProjectID   `db:"project_id"`
	Name             string      `db:"name"`
	SegmentType      SegmentType `db:"segment_type"`
	Criteria         Criteria    `db:"-"`
	CachedSize       int64       `db:"cached_size"`
	LastCalculatedAt *time.Time  `db:"last_calculated_at"`
	IsActive         bool        `db:"is_active"`
	CreatedAt        time.Time   `db:"created_at"`
}
