package category

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

var (
	ErrNotFound   = errors.New("category not found")
	ErrNameExists = errors.New("a category with this name already exists")
	ErrInUse      = errors.New("category is still referenced by weightings or graded items")
)

type Repository interface {
	CheckNameUniqueness(ctx context.Context, name, ownerID string, exec ...core.DBExecutor) error
	CreateCategory(ctx context.Context, cat Category, exec ...core.DBExecutor) (Category, error)
	GetCategory(ctx context.Context, id string, exec ...core.DBExecutor) (Category, error)
	QueryVisibleCategories(ctx context.Context, ownerID string, exec ...core.DBExecutor) ([]Category, error)
	CategoryInUse(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
	DeleteCategory(ctx context.Context, id string, exec ...core.DBExecutor) error
}

type Service struct {
	db     core.DB
	repo   Repository
	logger core.Logger
}

func NewService(db core.DB, repo Repository, logger core.Logger) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		logger: logger,
	}
}

// Create registers a category owned by ownerID. Pass SystemOwnerID to seed a
// shared built-in category (admin only; the API never does this).
func (svc *Service) Create(ctx context.Context, ownerID string, nc NewCategory) (Category, error) {
	if err := svc.repo.CheckNameUniqueness(ctx, nc.Name, ownerID); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return Category{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Category{}, errors.Wrap(err, "checking name uniqueness")
	}

	cat := Category{
		OwnerID:   ownerID,
		Name:      nc.Name,
		CreatedAt: time.Now().UTC(),
	}
	cat, err := svc.repo.CreateCategory(ctx, cat)
	return cat, errors.Wrap(err, "creating category")
}

// QueryVisible lists the requester's own categories plus the shared system ones.
func (svc *Service) QueryVisible(ctx context.Context, ownerID string) ([]Category, error) {
	cats, err := svc.repo.QueryVisibleCategories(ctx, ownerID)
	return cats, errors.Wrap(err, "querying categories")
}

// GetVisible fetches a category iff it is visible to ownerID.
func (svc *Service) GetVisible(ctx context.Context, id, ownerID string) (Category, error) {
	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if !cat.VisibleTo(ownerID) {
		return Category{}, ErrNotFound
	}
	return cat, nil
}

// Delete removes a category the requester owns. A category referenced by any
// weighting or graded item cannot be deleted.
func (svc *Service) Delete(ctx context.Context, id, ownerID string) error {
	cat, err := svc.repo.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if cat.OwnerID != ownerID {
		return ErrNotFound // no existence leaks across owners
	}
	inUse, err := svc.repo.CategoryInUse(ctx, id)
	if err != nil {
		return errors.Wrap(err, "checking category references")
	}
	if inUse {
		return core.NewValidationError(ErrInUse)
	}
	return errors.Wrap(svc.repo.DeleteCategory(ctx, id), "deleting category")
}
