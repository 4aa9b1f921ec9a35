package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core/category"
	"github.com/trezcool/alama/core/course"
	testutil "github.com/trezcool/alama/tests"
)

func Test_courseApi_create(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: "/v1/courses",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "name required", method: http.MethodPost, path: "/v1/courses", token: token,
			body:     marchallObj(t, echo.Map{}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required"}`),
		},
		{
			name: "bad notify email", method: http.MethodPost, path: "/v1/courses", token: token,
			body:     []byte(`{"name": "Algebra", "notify_email": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"notify_email": "notify_email must be a valid email address"}`),
		},
		{
			name: "min grade out of range", method: http.MethodPost, path: "/v1/courses", token: token,
			body:     []byte(`{"name": "Algebra", "min_grade": 101}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"min_grade": "min_grade must be 100 or less"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			f.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("created", func(t *testing.T) {
		body := []byte(`{"name": "Algebra", "min_grade": 55, "notify_email": "awe@test.cd"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var crs course.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crs))
		assert.NotEmpty(t, crs.ID)
		assert.Equal(t, "student-1", crs.OwnerID)
		assert.Equal(t, "Algebra", crs.Name)
		assert.Equal(t, 55.0, crs.MinGrade)
		assert.Equal(t, "awe@test.cd", crs.NotifyEmail.String)
	})

	t.Run("duplicate name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, []byte(`{"name": "Algebra"}`))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "a course with this name already exists"}`),
		}, rec)
	})
}

func Test_courseApi_query(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")

	t.Run("empty ledger", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})

	algebra := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")
	physics := testutil.CreateCourse(t, f.crsRepo, "Physics", "student-1", course.DefaultMinGrade, "")
	testutil.CreateCourse(t, f.crsRepo, "Drama", "student-2", course.DefaultMinGrade, "")

	t.Run("own courses only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses", token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: marchallList(t, algebra, physics),
		}, rec)
	})

	t.Run("ordered by name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses?ordering=name", token)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var courses []course.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &courses))
		require.Len(t, courses, 2)
		assert.Equal(t, "Algebra", courses[0].Name)
		assert.Equal(t, "Physics", courses[1].Name)
	})
}

func Test_courseApi_retrieve(t *testing.T) {
	f := setup(t)
	crs := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/courses/" + crs.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "found", method: http.MethodGet, path: "/v1/courses/" + crs.ID,
			token:    getToken(t, f.conf, "student-1"),
			wantCode: http.StatusOK, wantData: marchallObj(t, crs),
		},
		{
			name: "not the owner", method: http.MethodGet, path: "/v1/courses/" + crs.ID,
			token:    getToken(t, f.conf, "student-2"),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			f.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_update(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")
	crs := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")
	testutil.CreateCourse(t, f.crsRepo, "Physics", "student-1", course.DefaultMinGrade, "")

	t.Run("partial update", func(t *testing.T) {
		body := []byte(`{"min_grade": 80}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, token, body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated course.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "Algebra", updated.Name) // untouched
		assert.Equal(t, 80.0, updated.MinGrade)
	})

	t.Run("name conflict", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/courses/"+crs.ID, token, []byte(`{"name": "Physics"}`))
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "a course with this name already exists"}`),
		}, rec)
	})
}

func Test_courseApi_destroy(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")
	crs := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")
	cat := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	item := testutil.CreateItem(t, f.itemRepo, crs.ID, cat.ID, "student-1", "Essay", null.Float64{}, null.Float64{})

	t.Run("items protect the course", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "course still has graded items"}),
		}, rec)
	})

	t.Run("deleted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/items/"+item.ID, token)
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodDelete, "/v1/courses/"+crs.ID, token)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})
}

func Test_courseApi_weightings(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")
	crs := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	exams := testutil.CreateCategory(t, f.catRepo, "Exams", category.SystemOwnerID)
	foreign := testutil.CreateCategory(t, f.catRepo, "Labs", "student-2")

	path := "/v1/courses/" + crs.ID + "/weightings"

	t.Run("none installed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})

	tests := []httpTest{
		{
			name: "empty set", method: http.MethodPut, path: path, token: token,
			body:     []byte(`{"weightings": []}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"weightings": "at least one weighted category is required"}`),
		},
		{
			name: "bad sum", method: http.MethodPut, path: path, token: token,
			body: marchallObj(t, echo.Map{"weightings": []echo.Map{
				{"category_id": tasks.ID, "percentage": 40},
				{"category_id": exams.ID, "percentage": 50},
			}}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"weightings": "percentages sum to 90, must sum to 100"}`),
		},
		{
			name: "duplicate category", method: http.MethodPut, path: path, token: token,
			body: marchallObj(t, echo.Map{"weightings": []echo.Map{
				{"category_id": tasks.ID, "percentage": 50},
				{"category_id": tasks.ID, "percentage": 50},
			}}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"category_id": "category ` + tasks.ID + ` appears more than once"}`),
		},
		{
			name: "foreign category", method: http.MethodPut, path: path, token: token,
			body: marchallObj(t, echo.Map{"weightings": []echo.Map{
				{"category_id": foreign.ID, "percentage": 100},
			}}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"category_id": "category not found or not yours to use"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			f.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("installed", func(t *testing.T) {
		body := marchallObj(t, echo.Map{"weightings": []echo.Map{
			{"category_id": tasks.ID, "percentage": 40},
			{"category_id": exams.ID, "percentage": 60},
		}})
		req, rec := newAuthRequest(http.MethodPut, path, token, body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ws []course.Weighting
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws))
		require.Len(t, ws, 2)
		assert.NotEmpty(t, ws[0].ID)

		req, rec = newAuthRequest(http.MethodGet, path, token)
		f.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, ws[0], ws[1])}, rec)
	})
}

func Test_courseApi_progress(t *testing.T) {
	f := setup(t)
	token := getToken(t, f.conf, "student-1")
	crs := testutil.CreateCourse(t, f.crsRepo, "Algebra", "student-1", course.DefaultMinGrade, "")
	tasks := testutil.CreateCategory(t, f.catRepo, "Tasks", "student-1")
	testutil.InstallWeightings(t, f.wtRepo, crs.ID, map[string]float64{tasks.ID: 100})

	body := marchallObj(t, echo.Map{
		"category_id":     tasks.ID,
		"name":            "Task A",
		"possible_points": 100,
		"obtained_points": 65,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/items", token, body)
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/progress", token)
	f.app.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var prog course.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prog))
	assert.InDelta(t, 65, prog.PctObtained, 0.001)
	assert.InDelta(t, 65, prog.CurrentGrade, 0.001)
	assert.InDelta(t, 5, prog.PointsNeeded, 0.001)
	assert.Equal(t, course.DiagnosisAtRisk, prog.Diagnosis)
}
