package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
)

type categoryRepository struct {
	db        *categoryTable
	weighting *weightingTable
	item      *itemTable
}

var _ category.Repository = (*categoryRepository)(nil) // interface compliance check

func NewCategoryRepository(db *DB) category.Repository {
	return &categoryRepository{db: db.category, weighting: db.weighting, item: db.item}
}

func (repo *categoryRepository) CheckNameUniqueness(_ context.Context, name, ownerID string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cat := range repo.db.table {
		if cat.OwnerID == ownerID && cat.Name == name {
			return category.ErrNameExists
		}
	}
	return nil
}

func (repo *categoryRepository) CreateCategory(_ context.Context, cat category.Category, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cat.ID = uuid.New().String()
	repo.db.table[cat.ID] = &cat
	return cat, nil
}

func (repo *categoryRepository) GetCategory(_ context.Context, id string, _ ...core.DBExecutor) (category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cat, ok := repo.db.table[id]; ok {
		return *cat, nil
	}
	return category.Category{}, category.ErrNotFound
}

func (repo *categoryRepository) QueryVisibleCategories(_ context.Context, ownerID string, _ ...core.DBExecutor) ([]category.Category, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cats := make([]category.Category, 0)
	for _, cat := range repo.db.table {
		if cat.VisibleTo(ownerID) {
			cats = append(cats, *cat)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *categoryRepository) CategoryInUse(_ context.Context, id string, _ ...core.DBExecutor) (bool, error) {
	repo.weighting.RLock()
	for _, ws := range repo.weighting.table {
		for _, w := range ws {
			if w.CategoryID == id {
				repo.weighting.RUnlock()
				return true, nil
			}
		}
	}
	repo.weighting.RUnlock()

	repo.item.RLock()
	defer repo.item.RUnlock()
	for _, it := range repo.item.table {
		if it.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (repo *categoryRepository) DeleteCategory(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	return nil
}
