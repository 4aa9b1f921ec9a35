package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/course"
)

type itemRepository struct {
	db *itemTable
}

var _ course.ItemRepository = (*itemRepository)(nil) // interface compliance check

func NewItemRepository(db *DB) course.ItemRepository {
	return &itemRepository{db: db.item}
}

func (repo *itemRepository) query(match func(*course.GradedItem) bool) []course.GradedItem {
	items := make([]course.GradedItem, 0)
	for _, it := range repo.db.table {
		if match(it) {
			items = append(items, *it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return repo.db.seq[items[i].ID] < repo.db.seq[items[j].ID]
	})
	return items
}

func (repo *itemRepository) CreateItem(_ context.Context, it course.GradedItem, _ ...core.DBExecutor) (course.GradedItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	it.ID = uuid.New().String()
	repo.db.table[it.ID] = &it
	repo.db.next++
	repo.db.seq[it.ID] = repo.db.next
	return it, nil
}

func (repo *itemRepository) GetItem(_ context.Context, id, ownerID string, _ ...core.DBExecutor) (course.GradedItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if it, ok := repo.db.table[id]; ok && it.OwnerID == ownerID {
		return *it, nil
	}
	return course.GradedItem{}, course.ErrItemNotFound
}

func (repo *itemRepository) QueryCourseItems(_ context.Context, courseID string, _ ...core.DBExecutor) ([]course.GradedItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(func(it *course.GradedItem) bool { return it.CourseID == courseID }), nil
}

func (repo *itemRepository) QueryCategoryItems(_ context.Context, courseID, categoryID string, _ ...core.DBExecutor) ([]course.GradedItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(func(it *course.GradedItem) bool {
		return it.CourseID == courseID && it.CategoryID == categoryID
	}), nil
}

func (repo *itemRepository) UpdateItem(_ context.Context, it course.GradedItem, _ ...core.DBExecutor) (course.GradedItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[it.ID]; !ok {
		return course.GradedItem{}, course.ErrItemNotFound
	}
	repo.db.table[it.ID] = &it
	return it, nil
}

func (repo *itemRepository) DeleteItem(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.table, id)
	delete(repo.db.seq, id)
	return nil
}

func (repo *itemRepository) CourseHasItems(_ context.Context, courseID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, it := range repo.db.table {
		if it.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}
