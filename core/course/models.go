package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

// DefaultMinGrade is the passing grade assumed when a course does not set one.
const DefaultMinGrade = 70.0

type Course struct {
	ID          string      `json:"id" db:"id"`
	OwnerID     string      `json:"owner_id" db:"owner_id"`
	Name        string      `json:"name" db:"name"`
	MinGrade    float64     `json:"min_grade" db:"min_grade"`
	NotifyEmail null.String `json:"notify_email,omitempty" db:"notify_email"`

	// cached aggregate; refreshed by the recalculation engine on every
	// weighting/item mutation, never computed at read time.
	EarnedPoints  float64 `json:"earned_points" db:"earned_points"`
	LostPoints    float64 `json:"lost_points" db:"lost_points"`
	PendingPoints float64 `json:"pending_points" db:"pending_points"`
	FinalGrade    float64 `json:"final_grade" db:"final_grade"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (c Course) Snapshot() AggregateSnapshot {
	return AggregateSnapshot{
		Earned:     c.EarnedPoints,
		Lost:       c.LostPoints,
		Pending:    c.PendingPoints,
		FinalGrade: c.FinalGrade,
	}
}

func (c *Course) ApplySnapshot(snap AggregateSnapshot) {
	c.EarnedPoints = snap.Earned
	c.LostPoints = snap.Lost
	c.PendingPoints = snap.Pending
	c.FinalGrade = snap.FinalGrade
}

// AggregateSnapshot is the derived state of a course's grade ledger.
type AggregateSnapshot struct {
	Earned     float64 `json:"earned"`
	Lost       float64 `json:"lost"`
	Pending    float64 `json:"pending"`
	FinalGrade float64 `json:"final_grade"`
}

// Weighting assigns a category a share of a course's final grade. The
// percentage doubles as the category's possible-points budget.
type Weighting struct {
	ID         string  `json:"id" db:"id"`
	CourseID   string  `json:"course_id" db:"course_id"`
	CategoryID string  `json:"category_id" db:"category_id"`
	Percentage float64 `json:"percentage" db:"percentage"`
}

type GradedItem struct {
	ID         string       `json:"id" db:"id"`
	CourseID   string       `json:"course_id" db:"course_id"`
	CategoryID string       `json:"category_id" db:"category_id"`
	OwnerID    string       `json:"owner_id" db:"owner_id"`
	Name       string       `json:"name" db:"name"`
	DueDate    null.Time    `json:"due_date,omitempty" db:"due_date"`
	Status     string       `json:"status,omitempty" db:"status"`
	// nil possible-points: planned work not yet sized; excluded from every total.
	PossiblePoints null.Float64 `json:"possible_points,omitempty" db:"possible_points"`
	// nil obtained-points: not graded yet; the item's possible points are pending.
	ObtainedPoints null.Float64 `json:"obtained_points,omitempty" db:"obtained_points"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// CapacityBearing reports whether the item consumes its category's
// possible-points budget.
func (it GradedItem) CapacityBearing() bool {
	return it.PossiblePoints.Valid && it.PossiblePoints.Float64 > 0
}

// Graded reports whether the item already counts toward the course grade.
func (it GradedItem) Graded() bool {
	return it.PossiblePoints.Valid && it.ObtainedPoints.Valid
}

// ------------------------------------------------------------------ inputs

type NewCourse struct {
	Name        string   `json:"name" validate:"required,alphanum_"`
	MinGrade    *float64 `json:"min_grade" validate:"omitempty,gte=0,lte=100"`
	NotifyEmail string   `json:"notify_email" validate:"omitempty,email"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.NotifyEmail = core.CleanString(nc.NotifyEmail, true)
	return validate.Struct(nc)
}

// UpdateCourse carries a partial update; zero-valued fields are left untouched.
// A non-nil empty NotifyEmail clears the notification address.
type UpdateCourse struct {
	Name        string   `json:"name" validate:"omitempty,alphanum_"`
	MinGrade    *float64 `json:"min_grade" validate:"omitempty,gte=0,lte=100"`
	NotifyEmail *string  `json:"notify_email" validate:"omitempty,email"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	if uc.NotifyEmail != nil {
		cleaned := core.CleanString(*uc.NotifyEmail, true)
		uc.NotifyEmail = &cleaned
	}
	return validate.Struct(uc)
}

type WeightingInput struct {
	CategoryID string  `json:"category_id" validate:"required"`
	Percentage float64 `json:"percentage"`
}

// NewWeightingSet is the PUT body that atomically replaces a course's
// weightings. Set-level rules (sum to 100, no duplicates, ownership) are
// enforced by the service.
type NewWeightingSet struct {
	Weightings []WeightingInput `json:"weightings" validate:"dive"`
}

func (ws *NewWeightingSet) Validate(validate *validator.Validate) error {
	return validate.Struct(ws)
}

type NewGradedItem struct {
	CategoryID     string       `json:"category_id" validate:"required"`
	Name           string       `json:"name" validate:"required,alphanum_"`
	DueDate        null.Time    `json:"due_date"`
	Status         string       `json:"status" validate:"omitempty,alphanum_"`
	PossiblePoints null.Float64 `json:"possible_points"`
	ObtainedPoints null.Float64 `json:"obtained_points"`
}

func (ni *NewGradedItem) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Status = core.CleanString(ni.Status)
	return validate.Struct(ni)
}

// UpdateGradedItem carries a partial update. JSON null and an absent key are
// indistinguishable for nullable fields, so clearing a grade goes through
// ClearObtained explicitly.
type UpdateGradedItem struct {
	CategoryID     string       `json:"category_id"`
	Name           string       `json:"name" validate:"omitempty,alphanum_"`
	DueDate        null.Time    `json:"due_date"`
	Status         string       `json:"status" validate:"omitempty,alphanum_"`
	PossiblePoints null.Float64 `json:"possible_points"`
	ObtainedPoints null.Float64 `json:"obtained_points"`
	ClearObtained  bool         `json:"clear_obtained"`
}

func (ui *UpdateGradedItem) Validate(validate *validator.Validate) error {
	ui.Name = core.CleanString(ui.Name)
	ui.Status = core.CleanString(ui.Status)
	return validate.Struct(ui)
}
