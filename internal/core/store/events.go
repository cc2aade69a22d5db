package store

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cohortd/cohortd/internal/core/db"
	"github.com/cohortd/cohortd/internal/types"
)

// EventStore is the append-and-scan surface over the events table. The
// evaluator consumes it read-only through segment.EventSource; Insert
// exists for ingestion and test seeding.
type EventStore struct {
	db *sqlx.DB
	q  *db.Queries
}

// NewEventStore creates an event store over the given handle and queries.
func NewEventStore(database *sqlx.DB, q *db.Queries) *EventStore {
	return &EventStore{db: database, q: q}
}

// Insert appends one event. Timestamps are normalized to UTC so windowed
// scans compare consistently across drivers.
func (s *EventStore) Insert(ctx context.Context, ev types.Event) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.q.Exec(ctx, "insert-event",
		string(ev.ID),
		string(ev.ProjectID),
		ev.Name,
		ev.UserID,
		ev.AnonymousID,
		ev.Properties,
		createdAt.UTC(),
	)
	if err != nil {
		return storeErr("insert event", err)
	}
	return nil
}

// Query returns events for a project matching the filter. The WHERE clause
// is assembled dynamically because name and window restrictions are each
// optional; the limit is always applied. Ordering is arbitrary by contract.
func (s *EventStore) Query(ctx context.Context, projectID types.ProjectID, f types.EventFilter) ([]types.Event, error) {
	var sb strings.Builder
	sb.WriteString("SELECT event_id, project_id, event_name, user_id, anonymous_id, properties, created_at FROM events WHERE project_id = ?")
	args := []interface{}{string(projectID)}

	if f.EventName != "" {
		sb.WriteString(" AND event_name = ?")
		args = append(args, f.EventName)
	}
	if !f.Window.Since.IsZero() {
		sb.WriteString(" AND created_at >= ?")
		args = append(args, f.Window.Since.UTC())
	}
	if !f.Window.Until.IsZero() {
		sb.WriteString(" AND created_at <= ?")
		args = append(args, f.Window.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = types.DefaultEventScanLimit
	}
	sb.WriteString(" LIMIT ?")
	args = append(args, limit)

	var events []types.Event
	if err := s.db.SelectContext(ctx, &events, s.db.Rebind(sb.String()), args...); err != nil {
		return nil, storeErr("query events", err)
	}
	return events, nil
}
