package course

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
)

var (
	ErrNotFound     = errors.New("course not found")
	ErrItemNotFound = errors.New("graded item not found")
	ErrNameExists   = errors.New("a course with this name already exists")
	ErrHasItems     = errors.New("course still has graded items")

	ErrEmptyWeightingSet    = errors.New("at least one weighted category is required")
	ErrInvalidPercentage    = errors.New("percentage must be between 0 and 100")
	ErrDuplicateCategory    = errors.New("each category may appear only once")
	ErrWeightingSumMismatch = errors.New("percentages must sum to 100")
	ErrCategoryNotOwned     = errors.New("category not found or not yours to use")
	ErrCategoryNotWeighted  = errors.New("category carries no weighting for this course")

	ErrCapacityExceeded        = errors.New("possible points exceed the category's remaining budget")
	ErrObtainedExceedsPossible = errors.New("obtained points cannot exceed possible points")
	ErrObtainedWithoutPossible = errors.New("obtained points require possible points to be set")
	ErrItemGraded              = errors.New("item counts toward the course grade and cannot be deleted")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name, ownerID string, excluded []Course, exec ...core.DBExecutor) error
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		GetCourse(ctx context.Context, id, ownerID string, exec ...core.DBExecutor) (Course, error)
		// GetCourseForUpdate locks the course row for the remainder of the
		// enclosing transaction.
		GetCourseForUpdate(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		QueryCourses(ctx context.Context, ownerID string, orderings []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		SaveSnapshot(ctx context.Context, courseID string, snap AggregateSnapshot, exec ...core.DBExecutor) error
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	WeightingRepository interface {
		QueryWeightings(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]Weighting, error)
		// ReplaceWeightings swaps the course's whole weighting set in one shot.
		ReplaceWeightings(ctx context.Context, courseID string, ws []Weighting, exec ...core.DBExecutor) ([]Weighting, error)
	}

	ItemRepository interface {
		CreateItem(ctx context.Context, it GradedItem, exec ...core.DBExecutor) (GradedItem, error)
		GetItem(ctx context.Context, id, ownerID string, exec ...core.DBExecutor) (GradedItem, error)
		QueryCourseItems(ctx context.Context, courseID string, exec ...core.DBExecutor) ([]GradedItem, error)
		QueryCategoryItems(ctx context.Context, courseID, categoryID string, exec ...core.DBExecutor) ([]GradedItem, error)
		UpdateItem(ctx context.Context, it GradedItem, exec ...core.DBExecutor) (GradedItem, error)
		DeleteItem(ctx context.Context, id string, exec ...core.DBExecutor) error
		CourseHasItems(ctx context.Context, courseID string, exec ...core.DBExecutor) (bool, error)
	}
)

type Service struct {
	db       core.DB
	repo     Repository
	wtRepo   WeightingRepository
	itemRepo ItemRepository
	catRepo  category.Repository
	mailSvc  core.EmailService
	logger   core.Logger
	conf     *core.Config
}

func NewService(
	db core.DB,
	repo Repository,
	wtRepo WeightingRepository,
	itemRepo ItemRepository,
	catRepo category.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		wtRepo:   wtRepo,
		itemRepo: itemRepo,
		catRepo:  catRepo,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// ------------------------------------------------------------------ courses

func (svc *Service) Create(ctx context.Context, ownerID string, nc NewCourse) (Course, error) {
	if err := svc.checkNameUniqueness(ctx, nc.Name, ownerID); err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	crs := Course{
		OwnerID:   ownerID,
		Name:      nc.Name,
		MinGrade:  DefaultMinGrade,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.MinGrade != nil {
		crs.MinGrade = *nc.MinGrade
	}
	if nc.NotifyEmail != "" {
		crs.NotifyEmail = null.StringFrom(nc.NotifyEmail)
	}
	crs, err := svc.repo.CreateCourse(ctx, crs)
	return crs, errors.Wrap(err, "creating course")
}

func (svc *Service) Query(ctx context.Context, ownerID string, orderings ...core.DBOrdering) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx, ownerID, orderings)
	return courses, errors.Wrap(err, "querying courses")
}

func (svc *Service) GetByID(ctx context.Context, id, ownerID string) (Course, error) {
	return svc.repo.GetCourse(ctx, id, ownerID)
}

func (svc *Service) Update(ctx context.Context, id, ownerID string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id, ownerID)
	if err != nil {
		return Course{}, err
	}

	if uc.Name != "" && uc.Name != crs.Name {
		if err = svc.checkNameUniqueness(ctx, uc.Name, ownerID, crs); err != nil {
			return Course{}, err
		}
		crs.Name = uc.Name
	}
	if uc.MinGrade != nil {
		crs.MinGrade = *uc.MinGrade
	}
	if uc.NotifyEmail != nil {
		crs.NotifyEmail = null.NewString(*uc.NotifyEmail, *uc.NotifyEmail != "")
	}
	crs.UpdatedAt = time.Now().UTC()

	updated, err := svc.repo.UpdateCourse(ctx, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	return updated, nil
}

// Delete removes a course. Courses still holding graded items are protected;
// installed weightings go down with the course.
func (svc *Service) Delete(ctx context.Context, id, ownerID string) error {
	crs, err := svc.repo.GetCourse(ctx, id, ownerID)
	if err != nil {
		return err
	}
	hasItems, err := svc.itemRepo.CourseHasItems(ctx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "checking course items")
	}
	if hasItems {
		return core.NewValidationError(ErrHasItems)
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, crs.ID), "deleting course")
}

func (svc *Service) checkNameUniqueness(ctx context.Context, name, ownerID string, excluded ...Course) error {
	err := svc.repo.CheckNameUniqueness(ctx, name, ownerID, excluded)
	if err == nil {
		return nil
	}
	if errors.Cause(err) == ErrNameExists {
		return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return errors.Wrap(err, "checking name uniqueness")
}

// --------------------------------------------------------------- weightings

func (svc *Service) Weightings(ctx context.Context, courseID, ownerID string) ([]Weighting, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID, ownerID); err != nil {
		return nil, err
	}
	ws, err := svc.wtRepo.QueryWeightings(ctx, courseID)
	return ws, errors.Wrap(err, "querying weightings")
}

// ReplaceWeightings atomically swaps the course's weighting set for the given
// one and recalculates the course in the same transaction. The set must be
// non-empty, sum to 100 and reference only categories visible to the owner.
func (svc *Service) ReplaceWeightings(ctx context.Context, courseID, ownerID string, inputs []WeightingInput) ([]Weighting, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID, ownerID)
	if err != nil {
		return nil, err
	}
	if err = validateWeightingSet(inputs); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err = svc.checkCategoryVisible(ctx, in.CategoryID, ownerID); err != nil {
			return nil, err
		}
	}

	var (
		installed []Weighting
		updated   Course
	)
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		locked, err := svc.repo.GetCourseForUpdate(ctx, courseID, tx)
		if err != nil {
			return err
		}
		ws := make([]Weighting, len(inputs))
		for i, in := range inputs {
			ws[i] = Weighting{CourseID: courseID, CategoryID: in.CategoryID, Percentage: in.Percentage}
		}
		if installed, err = svc.wtRepo.ReplaceWeightings(ctx, courseID, ws, tx); err != nil {
			return errors.Wrap(err, "replacing weightings")
		}
		updated, err = svc.recalculate(ctx, tx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	svc.maybeNotify(crs, updated)
	return installed, nil
}

// ----------------------------------------------------------------- progress

func (svc *Service) Progress(ctx context.Context, courseID, ownerID string) (Progress, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID, ownerID)
	if err != nil {
		return Progress{}, err
	}
	return ComputeProgress(crs), nil
}

// -------------------------------------------------------------------- items

func (svc *Service) QueryItems(ctx context.Context, courseID, ownerID string) ([]GradedItem, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID, ownerID); err != nil {
		return nil, err
	}
	items, err := svc.itemRepo.QueryCourseItems(ctx, courseID)
	return items, errors.Wrap(err, "querying graded items")
}

func (svc *Service) GetItem(ctx context.Context, id, ownerID string) (GradedItem, error) {
	return svc.itemRepo.GetItem(ctx, id, ownerID)
}

// CreateItem files new graded work under a course category. Sized items
// (possible points > 0) are checked against the category's remaining budget
// under the course row lock, and the course is recalculated in the same
// transaction.
func (svc *Service) CreateItem(ctx context.Context, courseID, ownerID string, ni NewGradedItem) (GradedItem, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID, ownerID)
	if err != nil {
		return GradedItem{}, err
	}
	if err = svc.checkCategoryVisible(ctx, ni.CategoryID, ownerID); err != nil {
		return GradedItem{}, err
	}

	var (
		created GradedItem
		updated Course
	)
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		locked, err := svc.repo.GetCourseForUpdate(ctx, courseID, tx)
		if err != nil {
			return err
		}
		candidate := GradedItem{
			CourseID:       courseID,
			CategoryID:     ni.CategoryID,
			OwnerID:        ownerID,
			Name:           ni.Name,
			DueDate:        ni.DueDate,
			Status:         ni.Status,
			PossiblePoints: ni.PossiblePoints,
			ObtainedPoints: ni.ObtainedPoints,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err = svc.checkCapacity(ctx, candidate, tx); err != nil {
			return err
		}
		if created, err = svc.itemRepo.CreateItem(ctx, candidate, tx); err != nil {
			return errors.Wrap(err, "creating graded item")
		}
		updated, err = svc.recalculate(ctx, tx, locked)
		return err
	})
	if err != nil {
		return GradedItem{}, err
	}

	svc.maybeNotify(crs, updated)
	return created, nil
}

func (svc *Service) UpdateItem(ctx context.Context, id, ownerID string, ui UpdateGradedItem) (GradedItem, error) {
	item, err := svc.itemRepo.GetItem(ctx, id, ownerID)
	if err != nil {
		return GradedItem{}, err
	}
	crs, err := svc.repo.GetCourse(ctx, item.CourseID, ownerID)
	if err != nil {
		return GradedItem{}, err
	}

	if ui.CategoryID != "" && ui.CategoryID != item.CategoryID {
		if err = svc.checkCategoryVisible(ctx, ui.CategoryID, ownerID); err != nil {
			return GradedItem{}, err
		}
		item.CategoryID = ui.CategoryID
	}
	if ui.Name != "" {
		item.Name = ui.Name
	}
	if ui.DueDate.Valid {
		item.DueDate = ui.DueDate
	}
	if ui.Status != "" {
		item.Status = ui.Status
	}
	if ui.PossiblePoints.Valid {
		item.PossiblePoints = ui.PossiblePoints
	}
	if ui.ClearObtained {
		item.ObtainedPoints = null.Float64{}
	} else if ui.ObtainedPoints.Valid {
		item.ObtainedPoints = ui.ObtainedPoints
	}

	// re-check cross-field rules against the merged item
	if item.ObtainedPoints.Valid {
		if !item.PossiblePoints.Valid {
			return GradedItem{}, core.NewValidationError(ErrObtainedWithoutPossible,
				core.FieldError{Field: "obtained_points", Error: ErrObtainedWithoutPossible.Error()})
		}
		if item.ObtainedPoints.Float64 > item.PossiblePoints.Float64 {
			return GradedItem{}, core.NewValidationError(ErrObtainedExceedsPossible,
				core.FieldError{Field: "obtained_points", Error: ErrObtainedExceedsPossible.Error()})
		}
	}
	item.UpdatedAt = time.Now().UTC()

	var (
		saved   GradedItem
		updated Course
	)
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		locked, err := svc.repo.GetCourseForUpdate(ctx, item.CourseID, tx)
		if err != nil {
			return err
		}
		if err = svc.checkCapacity(ctx, item, tx); err != nil {
			return err
		}
		if saved, err = svc.itemRepo.UpdateItem(ctx, item, tx); err != nil {
			return errors.Wrap(err, "updating graded item")
		}
		updated, err = svc.recalculate(ctx, tx, locked)
		return err
	})
	if err != nil {
		return GradedItem{}, err
	}

	svc.maybeNotify(crs, updated)
	return saved, nil
}

// DeleteItem removes ungraded work. An item whose possible points are set and
// positive already weighs on the ledger and is delete-protected.
func (svc *Service) DeleteItem(ctx context.Context, id, ownerID string) error {
	item, err := svc.itemRepo.GetItem(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if item.CapacityBearing() {
		return core.NewValidationError(ErrItemGraded)
	}

	return core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		locked, err := svc.repo.GetCourseForUpdate(ctx, item.CourseID, tx)
		if err != nil {
			return err
		}
		if err = svc.itemRepo.DeleteItem(ctx, item.ID, tx); err != nil {
			return errors.Wrap(err, "deleting graded item")
		}
		_, err = svc.recalculate(ctx, tx, locked)
		return err
	})
}

// -------------------------------------------------------------- internals

func (svc *Service) checkCategoryVisible(ctx context.Context, categoryID, ownerID string) error {
	cat, err := svc.catRepo.GetCategory(ctx, categoryID)
	if err != nil {
		if errors.Cause(err) == category.ErrNotFound {
			return core.NewValidationError(ErrCategoryNotOwned,
				core.FieldError{Field: "category_id", Error: ErrCategoryNotOwned.Error()})
		}
		return errors.Wrap(err, "getting category")
	}
	if !cat.VisibleTo(ownerID) {
		return core.NewValidationError(ErrCategoryNotOwned,
			core.FieldError{Field: "category_id", Error: ErrCategoryNotOwned.Error()})
	}
	return nil
}

// checkCapacity rejects a capacity-bearing candidate whose possible points
// exceed what remains of its category's budget (the weighting percentage),
// allowing capacityEpsilon of float drift. Unsized and zero-point candidates
// pass untouched. Must run under the course row lock.
func (svc *Service) checkCapacity(ctx context.Context, candidate GradedItem, exec ...core.DBExecutor) error {
	if !candidate.CapacityBearing() {
		return nil
	}

	weightings, err := svc.wtRepo.QueryWeightings(ctx, candidate.CourseID, exec...)
	if err != nil {
		return errors.Wrap(err, "querying weightings")
	}
	var budget float64
	var weighted bool
	for _, w := range weightings {
		if w.CategoryID == candidate.CategoryID {
			budget, weighted = w.Percentage, true
			break
		}
	}
	if !weighted {
		return core.NewValidationError(ErrCategoryNotWeighted,
			core.FieldError{Field: "category_id", Error: ErrCategoryNotWeighted.Error()})
	}

	items, err := svc.itemRepo.QueryCategoryItems(ctx, candidate.CourseID, candidate.CategoryID, exec...)
	if err != nil {
		return errors.Wrap(err, "querying category items")
	}
	var used float64
	for _, it := range items {
		if it.ID != candidate.ID && it.CapacityBearing() {
			used += it.PossiblePoints.Float64
		}
	}

	requested := candidate.PossiblePoints.Float64
	if used+requested > budget+capacityEpsilon {
		remaining := budget - used
		if remaining < 0 {
			remaining = 0
		}
		return newCapacityError(requested, remaining, budget)
	}
	return nil
}

// recalculate recomputes the locked course's snapshot from current weightings
// and items and persists it, all on the caller's transaction.
func (svc *Service) recalculate(ctx context.Context, tx core.DBTransactor, crs Course) (Course, error) {
	weightings, err := svc.wtRepo.QueryWeightings(ctx, crs.ID, tx)
	if err != nil {
		return crs, errors.Wrap(err, "querying weightings")
	}
	items, err := svc.itemRepo.QueryCourseItems(ctx, crs.ID, tx)
	if err != nil {
		return crs, errors.Wrap(err, "querying graded items")
	}
	snap, err := ComputeSnapshot(weightings, items)
	if err != nil {
		return crs, err
	}
	if err = svc.repo.SaveSnapshot(ctx, crs.ID, snap, tx); err != nil {
		return crs, errors.Wrap(err, "saving snapshot")
	}
	crs.ApplySnapshot(snap)
	return crs, nil
}

// maybeNotify emails the course's notification address when a mutation drags
// its diagnosis out of "approved".
func (svc *Service) maybeNotify(before, after Course) {
	if !after.NotifyEmail.Valid || after.NotifyEmail.String == "" {
		return
	}
	oldProg := ComputeProgress(before)
	newProg := ComputeProgress(after)
	if newProg.Diagnosis == DiagnosisApproved || newProg.Diagnosis == oldProg.Diagnosis {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: after.NotifyEmail.String}},
		Subject:      fmt.Sprintf("%s - %s needs attention", svc.conf.AppName, after.Name),
		TemplateName: "course-alert",
		TemplateData: struct {
			Course   Course
			Progress Progress
		}{after, newProg},
	}
	svc.mailSvc.SendMessages(msg)
}
