package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

type weightingRepository struct {
	db *weightingTable
}

var _ course.WeightingRepository = (*weightingRepository)(nil) // interface compliance check

func NewWeightingRepository(db *DB) course.WeightingRepository {
	return &weightingRepository{db: db.weighting}
}

func (repo *weightingRepository) QueryWeightings(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.Weighting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ws := make([]course.Weighting, len(repo.db.table[courseID]))
	copy(ws, repo.db.table[courseID])
	return ws, nil
}

func (repo *weightingRepository) ReplaceWeightings(_ context.Context, courseID string, ws []course.Weighting, _ ...core.DBExecutor) ([]course.Weighting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	installed := make([]course.Weighting, len(ws))
	for i, w := range ws {
		w.ID = uuid.New().String()
		w.CourseID = courseID
		installed[i] = w
	}
	repo.db.table[courseID] = installed

	out := make([]course.Weighting, len(installed))
	copy(out, installed)
	return out, nil
}
