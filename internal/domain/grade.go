package domain

// GradeLevel classifies a percentage score.
type GradeLevel int

const (
	Failed  GradeLevel = 1
	Warning GradeLevel = 2
	Passed  GradeLevel = 4
)

// gradeClasses maps each level to the progress-bar class used on the
// results screens.
var gradeClasses = map[GradeLevel]string{
	Failed:  "danger",
	Warning: "warning",
	Passed:  "success",
}

// Grade is derived on demand from a submission's score; it is never stored.
type Grade struct {
	Level      GradeLevel `json:"level"`
	CSSClass   string     `json:"cssClass"`
	Percentage float64    `json:"percentage"`
}

// String returns the level name for display and logs.
func (l GradeLevel) String() string {
	switch l {
	case Passed:
		return "passed"
	case Warning:
		return "warning"
	default:
		return "failed"
	}
}

// ClassifyGrade maps a percentage score to a grade using ordered cut
// points. Levels are read in the fixed order [passed, warning, failed] and
// the first cutoff satisfied by pct (>=, ties favor the higher level) wins.
// The function is total: an empty or unmet levels list yields Failed.
func ClassifyGrade(levels []float64, pct float64) Grade {
	order := []GradeLevel{Passed, Warning, Failed}
	max := len(levels)
	if max > len(order) {
		max = len(order)
	}
	grade := Grade{Level: Failed, CSSClass: gradeClasses[Failed], Percentage: pct}
	for i := 0; i < max; i++ {
		if pct >= levels[i] {
			grade.Level = order[i]
			grade.CSSClass = gradeClasses[order[i]]
			break
		}
	}
	return grade
}
