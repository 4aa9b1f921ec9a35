package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

const courseColumns = `id, owner_id, name, min_grade, notify_email, earned_points, lost_points, pending_points, final_grade, created_at, updated_at`

// columns the API may order course listings by
var courseOrderables = map[string]bool{
	"name":        true,
	"min_grade":   true,
	"final_grade": true,
	"created_at":  true,
	"updated_at":  true,
}

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db DB) course.Repository {
	return &courseRepository{db: db.DB}
}

func (repo *courseRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	return getExec(repo.db, svcExec)
}

func (repo *courseRepository) CheckNameUniqueness(ctx context.Context, name, ownerID string, excluded []course.Course, exec ...core.DBExecutor) error {
	q := `SELECT COUNT(*) FROM course WHERE owner_id = $1 AND name = $2`
	args := []interface{}{ownerID, name}
	for _, crs := range excluded {
		args = append(args, crs.ID)
		q += fmt.Sprintf(" AND id != $%d", len(args))
	}

	var count int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, q, args...); err != nil {
		return errors.Wrap(err, "counting courses by name")
	}
	if count > 0 {
		return course.ErrNameExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	q := `
INSERT INTO course (` + courseColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		crs.ID, crs.OwnerID, crs.Name, crs.MinGrade, crs.NotifyEmail,
		crs.EarnedPoints, crs.LostPoints, crs.PendingPoints, crs.FinalGrade,
		crs.CreatedAt, crs.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id, ownerID string, exec ...core.DBExecutor) (course.Course, error) {
	var crs course.Course
	q := `SELECT ` + courseColumns + ` FROM course WHERE id = $1 AND owner_id = $2`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &crs, q, id, ownerID); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourseForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	var crs course.Course
	q := `SELECT ` + courseColumns + ` FROM course WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &crs, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "locking course")
	}
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, ownerID string, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	orderBy := "created_at DESC"
	if len(orderings) > 0 {
		var clauses []string
		for _, ord := range orderings {
			if courseOrderables[ord.Field] {
				clauses = append(clauses, ord.String())
			}
		}
		if len(clauses) > 0 {
			orderBy = strings.Join(clauses, ", ")
		}
	}

	courses := make([]course.Course, 0)
	q := `SELECT ` + courseColumns + ` FROM course WHERE owner_id = $1 ORDER BY ` + orderBy
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &courses, q, ownerID); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	q := `
UPDATE course
SET name = $2, min_grade = $3, notify_email = $4, updated_at = $5
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, q, crs.ID, crs.Name, crs.MinGrade, crs.NotifyEmail, crs.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) SaveSnapshot(ctx context.Context, courseID string, snap course.AggregateSnapshot, exec ...core.DBExecutor) error {
	q := `
UPDATE course
SET earned_points = $2, lost_points = $3, pending_points = $4, final_grade = $5
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, q, courseID, snap.Earned, snap.Lost, snap.Pending, snap.FinalGrade)
	if err != nil {
		return errors.Wrap(err, "saving course snapshot")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	// installed weightings cascade with the course
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id)
	return errors.Wrap(err, "deleting course")
}

func trapNoRowsErr(err, sentinel error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}
