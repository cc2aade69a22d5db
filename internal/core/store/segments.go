package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cohortd/cohortd/internal/core/db"
	"github.com/cohortd/cohortd/internal/types"
)

// SegmentStore persists segment definitions and their membership snapshots.
// Implements segment.SegmentStore.
type SegmentStore struct {
	db *sqlx.DB
	q  *db.Queries
}

// NewSegmentStore creates a segment store over the given handle and queries.
func NewSegmentStore(database *sqlx.DB, q *db.Queries) *SegmentStore {
	return &SegmentStore{db: database, q: q}
}

// segmentRow is the scan target for segments rows; criteria arrives as the
// raw JSON document and decodes into the domain type afterwards.
type segmentRow struct {
	SegmentID        string     `db:"segment_id"`
	ProjectID        string     `db:"project_id"`
	Name             string     `db:"name"`
	SegmentType      string     `db:"segment_type"`
	Criteria         string     `db:"criteria"`
	CachedSize       int64      `db:"cached_size"`
	LastCalculatedAt *time.Time `db:"last_calculated_at"`
	IsActive         bool       `db:"is_active"`
	CreatedAt        time.Time  `db:"created_at"`
}

func (r segmentRow) toSegment() (types.Segment, error) {
	seg := types.Segment{
		ID:               types.SegmentID(r.SegmentID),
		ProjectID:        types.ProjectID(r.ProjectID),
		Name:             r.Name,
		SegmentType:      types.SegmentType(r.SegmentType),
		CachedSize:       r.CachedSize,
		LastCalculatedAt: r.LastCalculatedAt,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt,
	}
	if r.Criteria != "" {
		if err := json.Unmarshal([]byte(r.Criteria), &seg.Criteria); err != nil {
			return types.Segment{}, fmt.Errorf("segment %s carries malformed criteria: %w", r.SegmentID, err)
		}
	}
	return seg, nil
}

// Get loads one segment. Returns types.ErrSegmentNotFound when absent.
func (s *SegmentStore) Get(ctx context.Context, id types.SegmentID) (types.Segment, error) {
	var row segmentRow
	err := s.q.Get(ctx, "get-segment", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Segment{}, fmt.Errorf("segment %s: %w", id, types.ErrSegmentNotFound)
	}
	if err != nil {
		return types.Segment{}, storeErr("load segment", err)
	}
	return row.toSegment()
}

// Create stores a segment definition. Used by seeding and tests; the
// caller-facing segment CRUD API lives outside this core.
func (s *SegmentStore) Create(ctx context.Context, seg types.Segment) error {
	criteria, err := json.Marshal(seg.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	segmentType := seg.SegmentType
	if segmentType == "" {
		segmentType = types.SegmentDynamic
	}
	createdAt := seg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.q.Exec(ctx, "create-segment",
		string(seg.ID),
		string(seg.ProjectID),
		seg.Name,
		string(segmentType),
		string(criteria),
		seg.IsActive,
		createdAt.UTC(),
	)
	if err != nil {
		return storeErr("create segment", err)
	}
	return nil
}

// ListActive returns a project's active segments in creation order.
func (s *SegmentStore) ListActive(ctx context.Context, projectID types.ProjectID) ([]types.Segment, error) {
	var rows []segmentRow
	if err := s.q.Select(ctx, "list-active-segments", &rows, string(projectID), true); err != nil {
		return nil, storeErr("list segments", err)
	}
	segments := make([]types.Segment, 0, len(rows))
	for _, r := range rows {
		seg, err := r.toSegment()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// UpdateStats records the snapshot size and calculation instant on the
// segment row. Separate from ReplaceMembers on purpose: the materializer
// owns the snapshot, the caller owns the cached bookkeeping.
func (s *SegmentStore) UpdateStats(ctx context.Context, id types.SegmentID, size int, at time.Time) error {
	if _, err := s.q.Exec(ctx, "update-segment-stats", size, at.UTC(), string(id)); err != nil {
		return storeErr("update segment stats", err)
	}
	return nil
}

// ReplaceMembers swaps a segment's membership snapshot for the given
// identity set inside a single transaction: delete the old rows, insert
// the new ones in batches, commit. A failure anywhere rolls the whole
// replace back, so readers only ever observe the prior snapshot or the new
// one, never a mix and never a transient empty set. Returns the new size.
func (s *SegmentStore) ReplaceMembers(ctx context.Context, id types.SegmentID, members []types.Identity, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = types.DefaultInsertBatchSize
	}

	deleteSQL, err := s.q.Raw("delete-segment-members")
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin snapshot replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteSQL, string(id)); err != nil {
		return 0, storeErr("clear snapshot", err)
	}

	addedAt := time.Now().UTC()
	for start := 0; start < len(members); start += batchSize {
		end := start + batchSize
		if end > len(members) {
			end = len(members)
		}
		if err := insertMemberBatch(ctx, tx, id, members[start:end], addedAt); err != nil {
			// Rollback via defer discards the partial snapshot; the
			// failure still surfaces as a partial write so callers never
			// report the recalculation as current.
			return 0, fmt.Errorf("insert snapshot batch: %w", errors.Join(types.ErrPartialWrite, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", errors.Join(types.ErrPartialWrite, err))
	}
	return len(members), nil
}

// insertMemberBatch bulk-inserts one batch of membership rows.
func insertMemberBatch(ctx context.Context, tx *sqlx.Tx, id types.SegmentID, members []types.Identity, addedAt time.Time) error {
	if len(members) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO segment_members (segment_id, user_id, anonymous_id, added_at) VALUES ")
	args := make([]interface{}, 0, len(members)*4)
	for i, m := range members {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		userID, anonID := "", ""
		if m.Kind == types.IdentityUser {
			userID = m.ID
		} else {
			anonID = m.ID
		}
		args = append(args, string(id), userID, anonID, addedAt)
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(sb.String()), args...)
	return err
}

// ListMembers reads one page of the current snapshot in stable id order.
func (s *SegmentStore) ListMembers(ctx context.Context, id types.SegmentID, limit, offset int) ([]types.MembershipRow, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var rows []types.MembershipRow
	if err := s.q.Select(ctx, "list-segment-members", &rows, string(id), limit, offset); err != nil {
		return nil, storeErr("list segment members", err)
	}
	return rows, nil
}

// CountMembers returns the snapshot row count. Test and diagnostic helper;
// segment size reporting uses the cached stats, not this scan.
func (s *SegmentStore) CountMembers(ctx context.Context, id types.SegmentID) (int, error) {
	var count int
	if err := s.q.Get(ctx, "count-segment-members", &count, string(id)); err != nil {
		return 0, storeErr("count segment members", err)
	}
	return count, nil
}
