package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
)

type categoryRepository struct {
	db *sqlx.DB
}

func NewCategoryRepository(db DB) category.Repository {
	return &categoryRepository{db: db.DB}
}

func (repo *categoryRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	return getExec(repo.db, svcExec)
}

func (repo *categoryRepository) CheckNameUniqueness(ctx context.Context, name, ownerID string, exec ...core.DBExecutor) error {
	var count int
	q := `SELECT COUNT(*) FROM category WHERE owner_id = $1 AND name = $2`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, q, ownerID, name); err != nil {
		return errors.Wrap(err, "counting categories by name")
	}
	if count > 0 {
		return category.ErrNameExists
	}
	return nil
}

func (repo *categoryRepository) CreateCategory(ctx context.Context, cat category.Category, exec ...core.DBExecutor) (category.Category, error) {
	cat.ID = uuid.New().String()
	q := `INSERT INTO category (id, owner_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := repo.getExec(exec).ExecContext(ctx, q, cat.ID, cat.OwnerID, cat.Name, cat.CreatedAt); err != nil {
		return category.Category{}, errors.Wrap(err, "inserting category")
	}
	return cat, nil
}

func (repo *categoryRepository) GetCategory(ctx context.Context, id string, exec ...core.DBExecutor) (category.Category, error) {
	var cat category.Category
	q := `SELECT id, owner_id, name, created_at FROM category WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &cat, q, id); err != nil {
		return category.Category{}, trapNoRowsErr(err, category.ErrNotFound, "getting category")
	}
	return cat, nil
}

func (repo *categoryRepository) QueryVisibleCategories(ctx context.Context, ownerID string, exec ...core.DBExecutor) ([]category.Category, error) {
	cats := make([]category.Category, 0)
	q := `
SELECT id, owner_id, name, created_at
FROM category
WHERE owner_id IN ($1, $2)
ORDER BY name`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &cats, q, ownerID, category.SystemOwnerID); err != nil {
		return nil, errors.Wrap(err, "selecting categories")
	}
	return cats, nil
}

func (repo *categoryRepository) CategoryInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	var inUse bool
	q := `
SELECT EXISTS (SELECT 1 FROM weighting WHERE category_id = $1)
    OR EXISTS (SELECT 1 FROM graded_item WHERE category_id = $1)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &inUse, q, id); err != nil {
		return false, errors.Wrap(err, "checking category references")
	}
	return inUse, nil
}

func (repo *categoryRepository) DeleteCategory(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM category WHERE id = $1`, id)
	return errors.Wrap(err, "deleting category")
}
