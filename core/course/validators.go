package course

import (
	"fmt"
	"math"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

const (
	// weightSumEpsilon absorbs float drift when checking that a weighting
	// set's percentages sum to 100.
	weightSumEpsilon = 0.001

	// capacityEpsilon absorbs float drift when checking a category's
	// possible-points budget.
	capacityEpsilon = 0.01
)

var (
	nonNegativePointsTag  = "nonnegative_points"
	nonNegativePointsText = "points cannot be negative"

	obtainedLtePossibleTag  = "obtained_lte_possible"
	obtainedLtePossibleText = "obtained points cannot exceed possible points"

	obtainedNeedsPossibleTag  = "obtained_needs_possible"
	obtainedNeedsPossibleText = "obtained points require possible points to be set"
)

// InitValidators registers this package's struct-level validations and the
// translations for its custom tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newGradedItemStructValidation, NewGradedItem{})
	validate.RegisterStructValidation(updateGradedItemStructValidation, UpdateGradedItem{})

	core.RegisterCustomTranslation(validate, translator, nonNegativePointsTag, nonNegativePointsText)
	core.RegisterCustomTranslation(validate, translator, obtainedLtePossibleTag, obtainedLtePossibleText)
	core.RegisterCustomTranslation(validate, translator, obtainedNeedsPossibleTag, obtainedNeedsPossibleText)
}

func newGradedItemStructValidation(sl validator.StructLevel) {
	ni := sl.Current().Interface().(NewGradedItem)
	checkItemPoints(sl, ni.PossiblePoints, ni.ObtainedPoints, true)
}

func updateGradedItemStructValidation(sl validator.StructLevel) {
	ui := sl.Current().Interface().(UpdateGradedItem)
	// cross-field rules against stored values are re-checked by the service
	// after merging; here only the payload itself is checked.
	checkItemPoints(sl, ui.PossiblePoints, ui.ObtainedPoints, false)
}

func checkItemPoints(sl validator.StructLevel, possible, obtained null.Float64, obtainedNeedsPossible bool) {
	if possible.Valid && possible.Float64 < 0 {
		sl.ReportError(possible, "possible_points", "PossiblePoints", nonNegativePointsTag, "")
	}
	if obtained.Valid {
		if obtained.Float64 < 0 {
			sl.ReportError(obtained, "obtained_points", "ObtainedPoints", nonNegativePointsTag, "")
		}
		if !possible.Valid {
			if obtainedNeedsPossible {
				sl.ReportError(obtained, "obtained_points", "ObtainedPoints", obtainedNeedsPossibleTag, "")
			}
		} else if obtained.Float64 > possible.Float64 {
			sl.ReportError(obtained, "obtained_points", "ObtainedPoints", obtainedLtePossibleTag, "")
		}
	}
}

// validateWeightingSet enforces the shape rules of a replacement weighting
// set: non-empty, percentages in [0, 100], no duplicate categories, and a sum
// of 100 within weightSumEpsilon. Category ownership is checked separately.
func validateWeightingSet(inputs []WeightingInput) error {
	if len(inputs) == 0 {
		return core.NewValidationError(ErrEmptyWeightingSet,
			core.FieldError{Field: "weightings", Error: ErrEmptyWeightingSet.Error()})
	}

	var sum float64
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.Percentage < 0 || in.Percentage > 100 {
			return core.NewValidationError(ErrInvalidPercentage,
				core.FieldError{Field: "percentage", Error: ErrInvalidPercentage.Error()})
		}
		if _, dup := seen[in.CategoryID]; dup {
			return core.NewValidationError(ErrDuplicateCategory,
				core.FieldError{Field: "category_id", Error: fmt.Sprintf("category %s appears more than once", in.CategoryID)})
		}
		seen[in.CategoryID] = struct{}{}
		sum += in.Percentage
	}

	if math.Abs(sum-100) > weightSumEpsilon {
		return core.NewValidationError(ErrWeightingSumMismatch,
			core.FieldError{Field: "weightings", Error: fmt.Sprintf("percentages sum to %s, must sum to 100", fmtPoints(sum))})
	}
	return nil
}

func newCapacityError(requested, remaining, budget float64) error {
	return core.NewValidationError(ErrCapacityExceeded, core.FieldError{
		Field: "possible_points",
		Error: fmt.Sprintf("requested %s point(s) but only %s of %s remain in this category",
			fmtPoints(requested), fmtPoints(remaining), fmtPoints(budget)),
	})
}

// fmtPoints renders a point value without trailing zeros (90, 0.5, 33.333).
func fmtPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
