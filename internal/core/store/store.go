// Package store implements the event and segment persistence surfaces over
// sqlx and the embedded named queries.
//
// Error mapping: sql.ErrNoRows maps to the domain not-found sentinels;
// every other driver failure wraps types.ErrStoreUnavailable so callers can
// classify transient store trouble with errors.Is and retry at their own
// discretion.
package store

import (
	"errors"
	"fmt"

	"github.com/cohortd/cohortd/internal/types"
)

// storeErr wraps an unexpected driver error as transient store trouble
// while keeping the original chain inspectable.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(types.ErrStoreUnavailable, err))
}
