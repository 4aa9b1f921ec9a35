package course_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
	"github.com/trezcool/alama/core/course"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	testutil "github.com/trezcool/alama/tests"
)

type serviceFixture struct {
	svc      *course.Service
	repo     course.Repository
	wtRepo   course.WeightingRepository
	itemRepo course.ItemRepository
	catRepo  category.Repository
	conf     *core.Config
}

func setup(t *testing.T) *serviceFixture {
	t.Helper()

	conf := testutil.NewTestConfig()
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	core.ParseEmailTemplates(logger, conf)

	db, err := dummydb.Open()
	require.NoError(t, err)

	f := &serviceFixture{
		repo:     dummydb.NewCourseRepository(db),
		wtRepo:   dummydb.NewWeightingRepository(db),
		itemRepo: dummydb.NewItemRepository(db),
		catRepo:  dummydb.NewCategoryRepository(db),
		conf:     conf,
	}
	f.svc = course.NewService(db, f.repo, f.wtRepo, f.itemRepo, f.catRepo, emailsvc.NewConsoleServiceMock(conf), logger, conf)

	emailsvc.ClearSentMessages()
	return f
}

func assertValidationErr(t *testing.T, err, want error) {
	t.Helper()
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "expected a validation error, got %v", err)
	assert.Equal(t, want, errors.Cause(vErr.Err))
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs, err := f.svc.Create(ctx, "student-1", course.NewCourse{Name: "Algebra"})
	require.NoError(t, err)
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, "student-1", crs.OwnerID)
	assert.Equal(t, course.DefaultMinGrade, crs.MinGrade)
	assert.False(t, crs.NotifyEmail.Valid)

	minGrade := 55.0
	crs2, err := f.svc.Create(ctx, "student-1", course.NewCourse{
		Name:        "Physics",
		MinGrade:    &minGrade,
		NotifyEmail: "awe@test.cd",
	})
	require.NoError(t, err)
	assert.Equal(t, 55.0, crs2.MinGrade)
	assert.Equal(t, "awe@test.cd", crs2.NotifyEmail.String)

	// same name, same owner
	_, err = f.svc.Create(ctx, "student-1", course.NewCourse{Name: "Algebra"})
	assertValidationErr(t, err, course.ErrNameExists)

	// same name, different owner is fine
	_, err = f.svc.Create(ctx, "student-2", course.NewCourse{Name: "Algebra"})
	assert.NoError(t, err)
}

func TestService_GetAndQuery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	testutil.CreateCourse(t, f.repo, "Physics", "student-2", course.DefaultMinGrade, "")

	got, err := f.svc.GetByID(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, crs.ID, got.ID)

	// no existence leaks across owners
	_, err = f.svc.GetByID(ctx, crs.ID, "student-2")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	courses, err := f.svc.Query(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, courses, 1)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "awe@test.cd")
	testutil.CreateCourse(t, f.repo, "Physics", "student-1", course.DefaultMinGrade, "")

	minGrade := 80.0
	updated, err := f.svc.Update(ctx, crs.ID, "student-1", course.UpdateCourse{Name: "Algebra II", MinGrade: &minGrade})
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", updated.Name)
	assert.Equal(t, 80.0, updated.MinGrade)
	assert.Equal(t, "awe@test.cd", updated.NotifyEmail.String) // untouched

	// renaming onto a sibling course is rejected
	_, err = f.svc.Update(ctx, crs.ID, "student-1", course.UpdateCourse{Name: "Physics"})
	assertValidationErr(t, err, course.ErrNameExists)

	// keeping one's own name is not a conflict
	_, err = f.svc.Update(ctx, crs.ID, "student-1", course.UpdateCourse{Name: "Algebra II"})
	assert.NoError(t, err)

	// an explicit empty address clears notifications
	empty := ""
	updated, err = f.svc.Update(ctx, crs.ID, "student-1", course.UpdateCourse{NotifyEmail: &empty})
	require.NoError(t, err)
	assert.False(t, updated.NotifyEmail.Valid)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	cat := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	item := testutil.CreateItem(t, f.itemRepo, crs.ID, cat.ID, "student-1", "Task A", null.Float64{}, null.Float64{})

	err := f.svc.Delete(ctx, crs.ID, "student-1")
	assertValidationErr(t, err, course.ErrHasItems)

	require.NoError(t, f.svc.DeleteItem(ctx, item.ID, "student-1"))
	require.NoError(t, f.svc.Delete(ctx, crs.ID, "student-1"))

	_, err = f.svc.GetByID(ctx, crs.ID, "student-1")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_ReplaceWeightings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", category.SystemOwnerID)
	foreign := testutil.CreateCategory(t, f.catRepo, "Labs", "student-2")

	// bad sum never reaches the database
	_, err := f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: tasks.ID, Percentage: 40},
		{CategoryID: exams.ID, Percentage: 50},
	})
	assertValidationErr(t, err, course.ErrWeightingSumMismatch)

	// another student's category is invisible here
	_, err = f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: foreign.ID, Percentage: 100},
	})
	assertValidationErr(t, err, course.ErrCategoryNotOwned)

	// own + system categories install fine
	installed, err := f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: tasks.ID, Percentage: 40},
		{CategoryID: exams.ID, Percentage: 60},
	})
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.NotEmpty(t, installed[0].ID)

	ws, err := f.svc.Weightings(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.Len(t, ws, 2)

	// replacing is a full swap, not a merge
	installed, err = f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: tasks.ID, Percentage: 100},
	})
	require.NoError(t, err)
	assert.Len(t, installed, 1)
}

func TestService_ReplaceWeightings_recalculates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 50, exams.ID: 50})
	testutil.CreateItem(t, f.itemRepo, crs.ID, tasks.ID, "student-1", "Task A", null.Float64From(20), null.Float64From(20))
	testutil.CreateItem(t, f.itemRepo, crs.ID, exams.ID, "student-1", "Exam A", null.Float64From(50), null.Float64From(25))

	_, err := f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: tasks.ID, Percentage: 80},
		{CategoryID: exams.ID, Percentage: 20},
	})
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	// tasks: 20/20 × 80 = 80 ; exams: 25/50 × 20 = 10
	assert.InDelta(t, 90, got.FinalGrade, 0.001)
	assert.InDelta(t, 45, got.EarnedPoints, 0.001)
	assert.InDelta(t, 25, got.LostPoints, 0.001)
}

func TestService_CreateItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 60, exams.ID: 40})

	// planned, unsized work may sit in any visible category
	planned, err := f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{CategoryID: tasks.ID, Name: "Essay"})
	require.NoError(t, err)
	assert.False(t, planned.CapacityBearing())

	// sized work consumes the category budget
	_, err = f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     tasks.ID,
		Name:           "Task A",
		PossiblePoints: null.Float64From(50),
		ObtainedPoints: null.Float64From(45),
	})
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.InDelta(t, 45, got.EarnedPoints, 0.001)
	assert.InDelta(t, 5, got.LostPoints, 0.001)
	// tasks: 45/50 × 60 = 54
	assert.InDelta(t, 54, got.FinalGrade, 0.001)
}

func TestService_CreateItem_capacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", "student-1")
	labs := testutil.CreateCategory(t, f.catRepo, "Labs", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 60, exams.ID: 40})

	// sized work in an unweighted category has no budget to draw from
	_, err := f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     labs.ID,
		Name:           "Lab 1",
		PossiblePoints: null.Float64From(10),
	})
	assertValidationErr(t, err, course.ErrCategoryNotWeighted)

	// fill the tasks budget exactly
	_, err = f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     tasks.ID,
		Name:           "Task A",
		PossiblePoints: null.Float64From(60),
	})
	require.NoError(t, err)

	// one more point does not fit
	_, err = f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     tasks.ID,
		Name:           "Task B",
		PossiblePoints: null.Float64From(1),
	})
	require.Error(t, err)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, course.ErrCapacityExceeded, errors.Cause(vErr.Err))
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "possible_points", vErr.Fields[0].Field)
	assert.Equal(t, "requested 1 point(s) but only 0 of 60 remain in this category", vErr.Fields[0].Error)

	// the other category's budget is untouched
	_, err = f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     exams.ID,
		Name:           "Exam A",
		PossiblePoints: null.Float64From(40),
	})
	assert.NoError(t, err)
}

func TestService_UpdateItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 100})
	item := testutil.CreateItem(t, f.itemRepo, crs.ID, tasks.ID, "student-1", "Task A", null.Float64From(40), null.Float64{})

	// grading the item moves its points from pending to earned/lost
	saved, err := f.svc.UpdateItem(ctx, item.ID, "student-1", course.UpdateGradedItem{ObtainedPoints: null.Float64From(30)})
	require.NoError(t, err)
	assert.True(t, saved.Graded())

	got, err := f.svc.GetByID(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.InDelta(t, 30, got.EarnedPoints, 0.001)
	assert.InDelta(t, 10, got.LostPoints, 0.001)
	assert.Zero(t, got.PendingPoints)
	assert.InDelta(t, 75, got.FinalGrade, 0.001)

	// merged cross-field rules hold against stored values
	_, err = f.svc.UpdateItem(ctx, item.ID, "student-1", course.UpdateGradedItem{ObtainedPoints: null.Float64From(41)})
	assertValidationErr(t, err, course.ErrObtainedExceedsPossible)

	// growing the item past the category budget is rejected
	_, err = f.svc.UpdateItem(ctx, item.ID, "student-1", course.UpdateGradedItem{PossiblePoints: null.Float64From(101)})
	assertValidationErr(t, err, course.ErrCapacityExceeded)

	// resizing within the budget is fine; its own points do not count against it
	_, err = f.svc.UpdateItem(ctx, item.ID, "student-1", course.UpdateGradedItem{PossiblePoints: null.Float64From(100)})
	assert.NoError(t, err)

	// un-grading puts the points back in pending
	saved, err = f.svc.UpdateItem(ctx, item.ID, "student-1", course.UpdateGradedItem{ClearObtained: true})
	require.NoError(t, err)
	assert.False(t, saved.ObtainedPoints.Valid)

	got, err = f.svc.GetByID(ctx, crs.ID, "student-1")
	require.NoError(t, err)
	assert.Zero(t, got.EarnedPoints)
	assert.InDelta(t, 100, got.PendingPoints, 0.001)
}

func TestService_DeleteItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 100})
	sized := testutil.CreateItem(t, f.itemRepo, crs.ID, tasks.ID, "student-1", "Task A", null.Float64From(40), null.Float64{})
	planned := testutil.CreateItem(t, f.itemRepo, crs.ID, tasks.ID, "student-1", "Essay", null.Float64{}, null.Float64{})

	// sized work already weighs on the ledger
	err := f.svc.DeleteItem(ctx, sized.ID, "student-1")
	assertValidationErr(t, err, course.ErrItemGraded)

	require.NoError(t, f.svc.DeleteItem(ctx, planned.ID, "student-1"))
	_, err = f.svc.GetItem(ctx, planned.ID, "student-1")
	assert.Equal(t, course.ErrItemNotFound, errors.Cause(err))
}

func TestService_Progress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", "student-1")

	_, err := f.svc.ReplaceWeightings(ctx, crs.ID, "student-1", []course.WeightingInput{
		{CategoryID: tasks.ID, Percentage: 40},
		{CategoryID: exams.ID, Percentage: 60},
	})
	require.NoError(t, err)

	newItem := func(catID, name string, possible float64, obtained null.Float64) {
		ni := course.NewGradedItem{CategoryID: catID, Name: name, PossiblePoints: null.Float64From(possible), ObtainedPoints: obtained}
		_, err := f.svc.CreateItem(ctx, crs.ID, "student-1", ni)
		require.NoError(t, err)
	}
	newItem(tasks.ID, "Task A", 10, null.Float64From(10))
	newItem(tasks.ID, "Task B", 10, null.Float64From(8))
	newItem(exams.ID, "Exam A", 30, null.Float64From(30))
	newItem(exams.ID, "Exam B", 30, null.Float64{})

	prog, err := f.svc.Progress(ctx, crs.ID, "student-1")
	require.NoError(t, err)

	// tasks: 18/20 × 40 = 36 ; exams: 30/30 × 60 = 60
	assert.InDelta(t, 96, prog.CurrentGrade, 0.001)
	assert.InDelta(t, 60, prog.PctObtained, 0.01)   // 48 of 80 points
	assert.InDelta(t, 97.5, prog.PctMaxPossible, 0.01)
	assert.InDelta(t, 8, prog.PointsNeeded, 0.01) // 0.7×80 − 48
	assert.Equal(t, course.DiagnosisAtRisk, prog.Diagnosis)
}

func TestService_notifiesWhenCourseLeavesApproved(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "awe@test.cd")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 60, exams.ID: 40})

	// a perfect first result: approved, nothing to report
	_, err := f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     tasks.ID,
		Name:           "Task A",
		PossiblePoints: null.Float64From(60),
		ObtainedPoints: null.Float64From(60),
	})
	require.NoError(t, err)
	assert.Empty(t, emailsvc.SentMessages)

	// a bombed exam drags the course to at risk
	_, err = f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     exams.ID,
		Name:           "Exam A",
		PossiblePoints: null.Float64From(40),
		ObtainedPoints: null.Float64From(0),
	})
	require.NoError(t, err)

	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "awe@test.cd", msg.To[0].Address)
	assert.Equal(t, "Alama - Algebra needs attention", msg.Subject)
	assert.Contains(t, msg.TextContent, "at_risk")
	assert.Contains(t, msg.HTMLContent, "Algebra")
}

func TestService_noNotificationWithoutAddress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	crs := testutil.CreateCourse(t, f.repo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 100})

	_, err := f.svc.CreateItem(ctx, crs.ID, "student-1", course.NewGradedItem{
		CategoryID:     tasks.ID,
		Name:           "Task A",
		PossiblePoints: null.Float64From(100),
		ObtainedPoints: null.Float64From(100),
	})
	require.NoError(t, err)
	// the course never had a notification address; whatever happens, no email
	assert.Empty(t, emailsvc.SentMessages)
}
