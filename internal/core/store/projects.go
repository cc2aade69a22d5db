package store

import (
	"context"
	"time"

	"github.com/cohortd/cohortd/internal/core/db"
	"github.com/cohortd/cohortd/internal/types"
)

// ProjectStore answers project existence and creation. Projects are the
// authenticated ownership boundary; their full CRUD lives outside this
// core, so only the two operations the evaluator path needs exist here.
type ProjectStore struct {
	q *db.Queries
}

// NewProjectStore creates a project store over the given queries.
func NewProjectStore(q *db.Queries) *ProjectStore {
	return &ProjectStore{q: q}
}

// Exists reports whether the project is known.
func (s *ProjectStore) Exists(ctx context.Context, id types.ProjectID) (bool, error) {
	var count int
	if err := s.q.Get(ctx, "project-exists", &count, string(id)); err != nil {
		return false, storeErr("check project", err)
	}
	return count > 0, nil
}

// Create registers a project. Used by seeding and tests.
func (s *ProjectStore) Create(ctx context.Context, id types.ProjectID, name string) error {
	if _, err := s.q.Exec(ctx, "create-project", string(id), name, time.Now().UTC()); err != nil {
		return storeErr("create project", err)
	}
	return nil
}
