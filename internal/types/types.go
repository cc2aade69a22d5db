// Package types provides domain models shared across cohortd components.
//
// Zero-dependency design: types.go, segments.go and errors.go use only the
// standard library so the evaluator core can be embedded without pulling in
// storage or CLI dependencies. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Properties represents an event's free-form property payload.
// Decoded JSON object; values carry encoding/json types (string, float64,
// bool, nil, nested maps/slices). Implements sql.Scanner and driver.Valuer
// so it round-trips through a TEXT column unchanged.
type Properties map[string]any

// Value implements driver.Valuer. Nil map serializes as the empty object so
// the properties column is never NULL.
func (p Properties) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for TEXT and BLOB property columns.
func (p *Properties) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Properties", src)
	}
}

// Event is one append-only record from the event store. Read-only to the
// evaluator core. Empty UserID/AnonymousID strings stand for absent values;
// every well-formed event carries at least one of the two.
type Event struct {
	ID          EventID    `db:"event_id"`
	ProjectID   ProjectID  `db:"project_id"`
	Name        string     `db:"event_name"`
	UserID      string     `db:"user_id"`
	AnonymousID string     `db:"anonymous_id"`
	Properties  Properties `db:"properties"`
	CreatedAt   time.Time  `db:"created_at"`
}

// IdentityKind tags an Identity as a registered user or an anonymous device.
type IdentityKind string

const (
	IdentityUser IdentityKind = "user"
	IdentityAnon IdentityKind = "anon"
)

// Identity is the unit a segment counts: a registered user id, or, absent
// one, an anonymous device id. Comparable so it can key a set.
type Identity struct {
	Kind IdentityKind
	ID   string
}

// String renders the tagged form used in logs and diagnostics, e.g. "user:u1".
func (i Identity) String() string {
	return string(i.Kind) + ":" + i.ID
}

// TimeWindow is an inclusive [Since, Until] restriction on event timestamps.
// A zero bound means unbounded on that side; the zero TimeWindow is the open
// window.
type TimeWindow struct {
	Since time.Time
	Until time.Time
}

// Open reports whether the window restricts nothing.
func (w TimeWindow) Open() bool {
	return w.Since.IsZero() && w.Until.IsZero()
}

// Contains reports whether t falls inside the window. Both bounds are
// inclusive: an event stamped exactly at Since or Until is in.
func (w TimeWindow) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}

// EventFilter restricts an event store read. The store applies all set
// fields conjunctively; Limit is mandatory and caps the scan.
type EventFilter struct {
	EventName string     // exact event name match; empty = all names
	Window    TimeWindow // inclusive timestamp bounds
	Limit     int        // maximum rows returned
}

// MembershipRow is one identity currently in a materialized segment
// snapshot. Rows are fully replaced on every recalculation, never patched.
// Exactly one of UserID/AnonymousID is non-empty.
type MembershipRow struct {
	SegmentID   SegmentID `db:"segment_id"`
	UserID      string    `db:"user_id"`
	AnonymousID string    `db:"anonymous_id"`
	AddedAt     time.Time `db:"added_at"`
}

// Identity converts the row back to its tagged identity.
func (r MembershipRow) Identity() Identity {
	if r.UserID != "" {
		return Identity{Kind: IdentityUser, ID: r.UserID}
	}
	return Identity{Kind: IdentityAnon, ID: r.AnonymousID}
}

// Resource limits enforced at criteria validation to bound evaluation cost.
const (
	// MaxConditions caps conditions per criteria document. One bounded
	// event-store read is issued per condition, so this also bounds the
	// number of scans a single evaluation may trigger.
	MaxConditions = 32

	// MaxFieldLength caps the field name of a condition.
	MaxFieldLength = 256

	// DefaultEventScanLimit is the per-condition raw event scan cap. A
	// deliberate accuracy/latency trade-off: evaluation latency is
	// proportional to this cap, not to total project event volume, at the
	// cost of approximate results on projects that exceed it. Overridable
	// via evaluator.event_scan_limit.
	DefaultEventScanLimit = 10000

	// DefaultInsertBatchSize is the number of membership rows per bulk
	// insert statement during materialization.
	DefaultInsertBatchSize = 500
)
