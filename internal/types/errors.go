package types

import "errors"

// Sentinel errors for cohortd operations.
//
// Taxonomy: not-found errors surface to the caller with no retry;
// ErrInvalidCriteria is a validation failure raised before any evaluation
// runs; ErrStoreUnavailable is transient and safe to retry with backoff at
// the caller's discretion (the evaluator itself never retries);
// ErrPartialWrite marks a failed snapshot replace and must propagate as a
// hard failure, never as partial success.
var (
	// ErrSegmentNotFound indicates the referenced segment does not exist.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrProjectNotFound indicates the referenced project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidCriteria indicates a condition references an operator/type
	// combination with no defined evaluation path.
	ErrInvalidCriteria = errors.New("invalid segment criteria")

	// ErrStoreUnavailable indicates the event or segment store is unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPartialWrite indicates a batched snapshot insert failed partway.
	// The transaction is rolled back; the segment keeps its prior snapshot.
	ErrPartialWrite = errors.New("partial snapshot write")
)
