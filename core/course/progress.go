package course

type Diagnosis string

const (
	DiagnosisApproved Diagnosis = "approved"
	DiagnosisAtRisk   Diagnosis = "at_risk"
	DiagnosisFailed   Diagnosis = "failed"

	// atRiskBuffer: how far below the minimum grade a course may sit before
	// "at risk" turns into "failed".
	atRiskBuffer = 10.0
)

// Progress is the read-only health report of a course, derived entirely from
// its cached snapshot.
type Progress struct {
	PctObtained    float64   `json:"pct_obtained"`
	PctMaxPossible float64   `json:"pct_max_possible"`
	PointsNeeded   float64   `json:"points_needed"`
	CurrentGrade   float64   `json:"current_grade"`
	RequiredGrade  float64   `json:"required_grade"`
	Diagnosis      Diagnosis `json:"diagnosis"`
}

// ComputeProgress diagnoses a course from its snapshot. It never touches the
// graded items themselves.
func ComputeProgress(crs Course) Progress {
	prog := Progress{
		CurrentGrade:  crs.FinalGrade,
		RequiredGrade: crs.MinGrade,
	}

	total := crs.EarnedPoints + crs.LostPoints + crs.PendingPoints
	if total > 0 {
		prog.PctObtained = crs.EarnedPoints / total * 100
		prog.PctMaxPossible = (crs.EarnedPoints + crs.PendingPoints) / total * 100
		if needed := crs.MinGrade/100*total - crs.EarnedPoints; needed > 0 {
			prog.PointsNeeded = needed
		}
	}

	switch {
	case prog.PctObtained >= crs.MinGrade:
		prog.Diagnosis = DiagnosisApproved
	case prog.PctObtained < crs.MinGrade-atRiskBuffer:
		prog.Diagnosis = DiagnosisFailed
	default:
		prog.Diagnosis = DiagnosisAtRisk
	}
	return prog
}
