// Package segment implements the segment membership evaluator: resolving
// audience criteria into identity sets and materializing them as snapshots.
package segment

import (
	"sort"

	"github.com/cohortd/cohortd/internal/types"
)

// Resolve decides which identity represents the user behind an event.
// Rule: user_id wins if present and non-empty, otherwise anonymous_id.
// This rule must be applied everywhere identities are extracted; two call
// sites disagreeing would split one physical user into two identities and
// silently break AND intersections. Returns false for events carrying
// neither identity (malformed, skipped by callers).
func Resolve(ev types.Event) (types.Identity, bool) {
	if ev.UserID != "" {
		return types.Identity{Kind: types.IdentityUser, ID: ev.UserID}, true
	}
	if ev.AnonymousID != "" {
		return types.Identity{Kind: types.IdentityAnon, ID: ev.AnonymousID}, true
	}
	return types.Identity{}, false
}

// IdentitySet is the set representation used throughout evaluation.
// Map-backed; the zero value is not usable, construct via NewIdentitySet.
type IdentitySet map[types.Identity]struct{}

// NewIdentitySet returns a set containing the given identities.
func NewIdentitySet(ids ...types.Identity) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an identity. Duplicate adds are no-ops, which is what makes
// two events from the same user collapse to one member.
func (s IdentitySet) Add(id types.Identity) {
	s[id] = struct{}{}
}

// Has reports membership.
func (s IdentitySet) Has(id types.Identity) bool {
	_, ok := s[id]
	return ok
}

// Len returns the set cardinality, the number reported as segment size.
func (s IdentitySet) Len() int {
	return len(s)
}

// Intersect returns a new set with identities present in both s and other.
func (s IdentitySet) Intersect(other IdentitySet) IdentitySet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IdentitySet)
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns a new set with identities present in either s or other.
func (s IdentitySet) Union(other IdentitySet) IdentitySet {
	out := make(IdentitySet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Identities returns the members ordered by kind then id. Deterministic
// ordering keeps snapshot insert batches and test output stable.
func (s IdentitySet) Identities() []types.Identity {
	out := make([]types.Identity, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Combine merges per-condition identity sets per the criteria's logic
// operator: AND intersects, OR unions. Both operations are associative and
// commutative, so condition ordering never affects the result. An empty
// sets slice yields the empty set; the zero-conditions special case is
// handled before combination ever runs (see Evaluator.EvaluateCriteria).
func Combine(sets []IdentitySet, logic types.Logic) IdentitySet {
	if len(sets) == 0 {
		return NewIdentitySet()
	}
	out := sets[0]
	for _, s := range sets[1:] {
		if logic == types.LogicOr {
			out = out.Union(s)
		} else {
			out = out.Intersect(s)
		}
	}
	return out
}
