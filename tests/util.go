package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
	"github.com/trezcool/alama/core/course"
)

// NewTestConfig returns a config suited for tests; no env or .env file lookups.
func NewTestConfig() *core.Config {
	conf := &core.Config{
		Debug:           true,
		TestMode:        true,
		AppName:         "Alama",
		SecretKey:       "secretsauce",
		FrontendBaseURL: "https://alama.test",
		WorkDir:         core.Getwd(),
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = time.Hour
	return conf
}

func CreateCategory(t *testing.T, repo category.Repository, name, ownerID string) category.Category {
	cat := category.Category{
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	cat, err := repo.CreateCategory(context.Background(), cat)
	if err != nil {
		t.Fatalf("CreateCategory() failed: %v", err)
	}
	return cat
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	name, ownerID string,
	minGrade float64,
	notifyEmail string,
) course.Course {
	tstamp := time.Now().UTC()
	crs := course.Course{
		OwnerID:     ownerID,
		Name:        name,
		MinGrade:    minGrade,
		NotifyEmail: null.NewString(notifyEmail, notifyEmail != ""),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

// InstallWeightings installs a weighting per (categoryID, percentage) pair,
// bypassing service validation.
func InstallWeightings(t *testing.T, repo course.WeightingRepository, courseID string, ws map[string]float64) []course.Weighting {
	set := make([]course.Weighting, 0, len(ws))
	for catID, pct := range ws {
		set = append(set, course.Weighting{CourseID: courseID, CategoryID: catID, Percentage: pct})
	}
	installed, err := repo.ReplaceWeightings(context.Background(), courseID, set)
	if err != nil {
		t.Fatalf("InstallWeightings() failed: %v", err)
	}
	return installed
}

func CreateItem(
	t *testing.T,
	repo course.ItemRepository,
	courseID, categoryID, ownerID, name string,
	possible, obtained null.Float64,
) course.GradedItem {
	tstamp := time.Now().UTC()
	it := course.GradedItem{
		CourseID:       courseID,
		CategoryID:     categoryID,
		OwnerID:        ownerID,
		Name:           name,
		PossiblePoints: possible,
		ObtainedPoints: obtained,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	it, err := repo.CreateItem(context.Background(), it)
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return it
}
