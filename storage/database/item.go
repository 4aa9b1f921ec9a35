package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

const itemColumns = `id, course_id, category_id, owner_id, name, due_date, status, possible_points, obtained_points, created_at, updated_at`

type itemRepository struct {
	db *sqlx.DB
}

func NewItemRepository(db DB) course.ItemRepository {
	return &itemRepository{db: db.DB}
}

func (repo *itemRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	return getExec(repo.db, svcExec)
}

func (repo *itemRepository) CreateItem(ctx context.Context, it course.GradedItem, exec ...core.DBExecutor) (course.GradedItem, error) {
	it.ID = uuid.New().String()
	q := `
INSERT INTO graded_item (` + itemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.getExec(exec).ExecContext(ctx, q,
		it.ID, it.CourseID, it.CategoryID, it.OwnerID, it.Name,
		it.DueDate, it.Status, it.PossiblePoints, it.ObtainedPoints,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return course.GradedItem{}, errors.Wrap(err, "inserting graded item")
	}
	return it, nil
}

func (repo *itemRepository) GetItem(ctx context.Context, id, ownerID string, exec ...core.DBExecutor) (course.GradedItem, error) {
	var it course.GradedItem
	q := `SELECT ` + itemColumns + ` FROM graded_item WHERE id = $1 AND owner_id = $2`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &it, q, id, ownerID); err != nil {
		return course.GradedItem{}, trapNoRowsErr(err, course.ErrItemNotFound, "getting graded item")
	}
	return it, nil
}

func (repo *itemRepository) QueryCourseItems(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]course.GradedItem, error) {
	items := make([]course.GradedItem, 0)
	q := `SELECT ` + itemColumns + ` FROM graded_item WHERE course_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &items, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting graded items")
	}
	return items, nil
}

func (repo *itemRepository) QueryCategoryItems(ctx context.Context, courseID, categoryID string, exec ...core.DBExecutor) ([]course.GradedItem, error) {
	items := make([]course.GradedItem, 0)
	q := `
SELECT ` + itemColumns + `
FROM graded_item
WHERE course_id = $1 AND category_id = $2
ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &items, q, courseID, categoryID); err != nil {
		return nil, errors.Wrap(err, "selecting category items")
	}
	return items, nil
}

func (repo *itemRepository) UpdateItem(ctx context.Context, it course.GradedItem, exec ...core.DBExecutor) (course.GradedItem, error) {
	q := `
UPDATE graded_item
SET category_id = $2, name = $3, due_date = $4, status = $5,
    possible_points = $6, obtained_points = $7, updated_at = $8
WHERE id = $1`
	res, err := repo.getExec(exec).ExecContext(ctx, q,
		it.ID, it.CategoryID, it.Name, it.DueDate, it.Status,
		it.PossiblePoints, it.ObtainedPoints, it.UpdatedAt,
	)
	if err != nil {
		return course.GradedItem{}, errors.Wrap(err, "updating graded item")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.GradedItem{}, course.ErrItemNotFound
	}
	return it, nil
}

func (repo *itemRepository) DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM graded_item WHERE id = $1`, id)
	return errors.Wrap(err, "deleting graded item")
}

func (repo *itemRepository) CourseHasItems(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM graded_item WHERE course_id = $1)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, courseID); err != nil {
		return false, errors.Wrap(err, "checking course items")
	}
	return exists, nil
}
