// internal/segment/materialize.go
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cohortd/cohortd/internal/types"
)

/*
 * Membership materialization.
 *
 * Calculate (persisted path): load the segment, evaluate its criteria, then
 * replace the snapshot - delete old membership rows and bulk-insert the new
 * set in one transaction owned by the segment store. The snapshot is the
 * only thing Calculate mutates; cached_size and last_calculated_at belong
 * to the caller via SegmentStore.UpdateStats, keeping the evaluator free of
 * segment bookkeeping.
 *
 * Preview (count-only path): identical evaluation against a bare project
 * id, no persistence. Preview and Calculate run the same code for the same
 * (project, criteria) pair, which is what makes their counts provably
 * equal at the same instant.
 *
 * Serialization: recalculations of the SAME segment must not interleave
 * two callers' deletes and inserts, so Calculate holds a per-segment-id
 * mutex for its whole span. Different segments recalculate concurrently.
 * The mutex map grows by one entry per segment ever recalculated in this
 * process; acceptable footprint for segment counts in the thousands.
 *
 * Failure ordering: a missing segment fails before any row is touched. A
 * failed batch insert rolls the transaction back and surfaces as
 * ErrPartialWrite - the caller must treat the recalculation as failed,
 * never report the prior cached_size as current.
 */

// SegmentStore is the persistence surface the materializer mutates.
type SegmentStore interface {
	Get(ctx context.Context, id types.SegmentID) (types.Segment, error)
	ReplaceMembers(ctx context.Context, id types.SegmentID, members []types.Identity, batchSize int) (int, error)
	ListMembers(ctx context.Context, id types.SegmentID, limit, offset int) ([]types.MembershipRow, error)
}

// ProjectStore answers project existence for the preview path.
type ProjectStore interface {
	Exists(ctx context.Context, id types.ProjectID) (bool, error)
}

// Result is the outcome of a calculation or preview.
type Result struct {
	Size int

	// Truncated is true when any condition's event scan hit the scan
	// limit; the size may undercount the true membership.
	Truncated bool
}

// Materializer persists and previews segment snapshots.
type Materializer struct {
	segments  SegmentStore
	projects  ProjectStore
	eval      *Evaluator
	batchSize int
	log       *slog.Logger

	mu       sync.Mutex
	segLocks map[types.SegmentID]*sync.Mutex
}

// NewMaterializer wires the materializer. Non-positive batchSize falls back
// to the default.
func NewMaterializer(segments SegmentStore, projects ProjectStore, eval *Evaluator, batchSize int) *Materializer {
	if batchSize <= 0 {
		batchSize = types.DefaultInsertBatchSize
	}
	return &Materializer{
		segments:  segments,
		projects:  projects,
		eval:      eval,
		batchSize: batchSize,
		log:       slog.Default().With("component", "materializer"),
		segLocks:  make(map[types.SegmentID]*sync.Mutex),
	}
}

// segmentLock returns the mutex for a segment id, creating it on first use.
func (m *Materializer) segmentLock(id types.SegmentID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.segLocks[id]; !ok {
		m.segLocks[id] = &sync.Mutex{}
	}
	return m.segLocks[id]
}

// Calculate fully recalculates a segment's snapshot and returns its size.
// The old snapshot is replaced, never diffed. Fails with ErrSegmentNotFound
// before any side effect when the segment does not exist.
func (m *Materializer) Calculate(ctx context.Context, id types.SegmentID) (Result, error) {
	lock := m.segmentLock(id)
	lock.Lock()
	defer lock.Unlock()

	seg, err := m.segments.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	eval, err := m.eval.EvaluateCriteria(ctx, seg.ProjectID, seg.Criteria)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate segment %s: %w", id, err)
	}

	size, err := m.segments.ReplaceMembers(ctx, id, eval.Identities.Identities(), m.batchSize)
	if err != nil {
		return Result{}, err
	}

	m.log.Info("segment recalculated",
		"segment_id", string(id), "size", size, "truncated", eval.Truncated)
	return Result{Size: size, Truncated: eval.Truncated}, nil
}

// Preview evaluates criteria against a project and returns only the count.
// No rows are written. For the same (project, criteria) pair at the same
// instant the count equals what Calculate would persist.
func (m *Materializer) Preview(ctx context.Context, projectID types.ProjectID, criteria types.Criteria) (Result, error) {
	exists, err := m.projects.Exists(ctx, projectID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{}, fmt.Errorf("project %s: %w", projectID, types.ErrProjectNotFound)
	}

	eval, err := m.eval.EvaluateCriteria(ctx, projectID, criteria)
	if err != nil {
		return Result{}, fmt.Errorf("preview project %s: %w", projectID, err)
	}
	return Result{Size: eval.Identities.Len(), Truncated: eval.Truncated}, nil
}

// Members reads a page of the last materialized snapshot. Pure lookup; the
// snapshot is whatever the most recent Calculate committed.
func (m *Materializer) Members(ctx context.Context, id types.SegmentID, limit, offset int) ([]types.MembershipRow, error) {
	if _, err := m.segments.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.segments.ListMembers(ctx, id, limit, offset)
}
