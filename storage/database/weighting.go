package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

type weightingRepository struct {
	db *sqlx.DB
}

func NewWeightingRepository(db DB) course.WeightingRepository {
	return &weightingRepository{db: db.DB}
}

func (repo *weightingRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	return getExec(repo.db, svcExec)
}

func (repo *weightingRepository) QueryWeightings(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.Weighting, error) {
	ws := make([]course.Weighting, 0)
	q := `
SELECT id, course_id, category_id, percentage
FROM weighting
WHERE course_id = $1
ORDER BY id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &ws, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting weightings")
	}
	return ws, nil
}

func (repo *weightingRepository) ReplaceWeightings(ctx context.Context, courseID string, ws []course.Weighting, exec ...core.DBExecutor) ([]course.Weighting, error) {
	ex := repo.getExec(exec)

	if _, err := ex.ExecContext(ctx, `DELETE FROM weighting WHERE course_id = $1`, courseID); err != nil {
		return nil, errors.Wrap(err, "clearing weightings")
	}

	q := `INSERT INTO weighting (id, course_id, category_id, percentage) VALUES ($1, $2, $3, $4)`
	for i := range ws {
		ws[i].ID = uuid.New().String()
		ws[i].CourseID = courseID
		if _, err := ex.ExecContext(ctx, q, ws[i].ID, ws[i].CourseID, ws[i].CategoryID, ws[i].Percentage); err != nil {
			return nil, errors.Wrap(err, "inserting weighting")
		}
	}
	return ws, nil
}
