// internal/segment/evaluate.go
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cohortd/cohortd/internal/types"
)

/*
 * Criteria evaluation orchestration.
 *
 * Resolves a criteria document into the set of identities matching it:
 *
 *   1. Validate the criteria (reserved types/operators rejected up front)
 *   2. Evaluate each condition: restrict by timeframe, issue one bounded
 *      event store read, run the operator predicate, collect identities
 *   3. Combine per-condition sets with AND (intersection) or OR (union)
 *
 * Conditions are pure functions of the queried event window with no shared
 * state, so they fan out on an errgroup and join before combination. Any
 * condition error aborts the whole evaluation: an AND or OR over an
 * incomplete condition set is meaningless and must not be returned as if
 * complete.
 *
 * Zero conditions short-circuits: every identity that ever produced an
 * event in the project is a member, computed straight from the event store
 * rather than through the combinator.
 *
 * Scan cap: every event store read is capped at the configured scan limit,
 * bounding worst-case latency by the cap instead of project event volume.
 * A condition whose scan returns a full page may have been truncated; the
 * Truncated flag surfaces that to callers instead of hiding the accuracy
 * loss.
 */

// EventSource is the read-only query surface the evaluator consumes.
// Result ordering is arbitrary; the evaluator does not depend on it.
type EventSource interface {
	Query(ctx context.Context, projectID types.ProjectID, f types.EventFilter) ([]types.Event, error)
}

// Evaluation is the outcome of resolving one criteria document.
type Evaluation struct {
	Identities IdentitySet

	// Truncated is true when at least one condition's event scan hit the
	// scan limit, meaning the identity set may be an undercount.
	Truncated bool
}

// Evaluator resolves criteria documents against a project's event history.
// Stateless and read-only; safe for concurrent use.
type Evaluator struct {
	events      EventSource
	scanLimit   int
	parallelism int
	log         *slog.Logger
}

// NewEvaluator creates an evaluator over the given event source.
// Non-positive scanLimit or parallelism fall back to defaults.
func NewEvaluator(events EventSource, scanLimit, parallelism int) *Evaluator {
	if scanLimit <= 0 {
		scanLimit = types.DefaultEventScanLimit
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Evaluator{
		events:      events,
		scanLimit:   scanLimit,
		parallelism: parallelism,
		log:         slog.Default().With("component", "evaluator"),
	}
}

// EvaluateCriteria resolves a full criteria document to an identity set.
func (e *Evaluator) EvaluateCriteria(ctx context.Context, projectID types.ProjectID, criteria types.Criteria) (Evaluation, error) {
	if err := ValidateCriteria(criteria); err != nil {
		return Evaluation{}, err
	}

	if len(criteria.Conditions) == 0 {
		return e.allIdentities(ctx, projectID)
	}

	now := time.Now().UTC()
	sets := make([]IdentitySet, len(criteria.Conditions))
	truncated := make([]bool, len(criteria.Conditions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, cond := range criteria.Conditions {
		i, cond := i, cond
		g.Go(func() error {
			set, trunc, err := e.evaluateCondition(gctx, projectID, cond, now)
			if err != nil {
				return fmt.Errorf("condition %d (%s %s): %w", i, cond.Type, cond.Operator, err)
			}
			sets[i] = set
			truncated[i] = trunc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Evaluation{}, err
	}

	result := Evaluation{Identities: Combine(sets, criteria.Logic)}
	for _, t := range truncated {
		result.Truncated = result.Truncated || t
	}
	if result.Truncated {
		e.log.Warn("condition scan hit limit, result may undercount",
			"project_id", string(projectID), "scan_limit", e.scanLimit)
	}
	return result, nil
}

// EvaluateCondition resolves a single condition to an identity set, plus a
// flag for whether the underlying scan may have been truncated.
func (e *Evaluator) EvaluateCondition(ctx context.Context, projectID types.ProjectID, cond types.Condition) (IdentitySet, bool, error) {
	if err := ValidateCondition(cond); err != nil {
		return nil, false, err
	}
	return e.evaluateCondition(ctx, projectID, cond, time.Now().UTC())
}

// evaluateCondition issues the bounded read and applies the operator
// predicate. The timeframe restriction is pushed into the event filter so
// it narrows the raw event set before the predicate sees it.
func (e *Evaluator) evaluateCondition(ctx context.Context, projectID types.ProjectID, cond types.Condition, now time.Time) (IdentitySet, bool, error) {
	filter := types.EventFilter{
		Window: Window(cond.Timeframe, now),
		Limit:  e.scanLimit,
	}
	// Positive event-name matches push the filter into the store; every
	// other path fetches the windowed set name-agnostic and filters here.
	if cond.Type == types.ConditionEvent && cond.Operator == types.OpPerformed {
		filter.EventName = cond.Field
	}

	events, err := e.events.Query(ctx, projectID, filter)
	if err != nil {
		return nil, false, err
	}
	truncated := len(events) >= e.scanLimit

	set := NewIdentitySet()
	for _, ev := range events {
		if !e.matches(cond, ev) {
			continue
		}
		id, ok := Resolve(ev)
		if !ok {
			continue
		}
		set.Add(id)
	}
	return set, truncated, nil
}

// matches runs one condition's predicate against one event.
func (e *Evaluator) matches(cond types.Condition, ev types.Event) bool {
	switch cond.Type {
	case types.ConditionEvent:
		if cond.Operator == types.OpNotPerformed {
			return ev.Name != cond.Field
		}
		return ev.Name == cond.Field
	case types.ConditionProperty:
		p, present := ev.Properties[cond.Field]
		return MatchProperty(cond.Operator, p, present, cond.Value)
	default:
		// Reserved types never pass validation; no match if one slips through.
		return false
	}
}

// allIdentities handles the zero-conditions case: the distinct identities
// of every event in the project, via one bounded name-agnostic scan using
// the same resolver as every condition path.
func (e *Evaluator) allIdentities(ctx context.Context, projectID types.ProjectID) (Evaluation, error) {
	events, err := e.events.Query(ctx, projectID, types.EventFilter{Limit: e.scanLimit})
	if err != nil {
		return Evaluation{}, err
	}
	set := NewIdentitySet()
	for _, ev := range events {
		if id, ok := Resolve(ev); ok {
			set.Add(id)
		}
	}
	return Evaluation{Identities: set, Truncated: len(events) >= e.scanLimit}, nil
}
