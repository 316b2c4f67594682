package dataset

import "strings"

// MetricGroup names the dropdown a metric belongs to.
type MetricGroup string

const (
	GroupTeacherQuality      MetricGroup = "teacher_quality"
	GroupStudentDisadvantage MetricGroup = "student_disadvantage"
)

// TeacherQualityMetrics are the measures of teacher quality gaps.
var TeacherQualityMetrics = []string{
	"experience_gap",
	"novice_gap",
	"westb_average_gap",
	"westb_quartile_gap",
	"vam_average_gap",
	"vam_quartile_gap",
}

// StudentDisadvantageMetrics are the gaps measured against free/reduced-lunch eligibility.
var StudentDisadvantageMetrics = []string{
	"experience_gap_frl",
	"novice_gap_frl",
	"FRL_westb_average_gap",
	"FRL_westb_quartile_gap",
	"vam_quartile_gap_frl",
}

// States lists the states the dashboard offers.
var States = []string{"Washington", "North Carolina"}

// DefaultMetric is the metric selected on first load.
const DefaultMetric = "experience_gap"

// DefaultState is the state selected on first load.
const DefaultState = "Washington"

// GroupOf reports which metric group contains metric.
func GroupOf(metric string) (MetricGroup, bool) {
	for _, m := range TeacherQualityMetrics {
		if m == metric {
			return GroupTeacherQuality, true
		}
	}
	for _, m := range StudentDisadvantageMetrics {
		if m == metric {
			return GroupStudentDisadvantage, true
		}
	}
	return "", false
}

// IsState reports whether state is one of States.
func IsState(state string) bool {
	for _, s := range States {
		if s == state {
			return true
		}
	}
	return false
}

// StateSlug returns the lower-case, underscore-joined form used in boundary file names.
func StateSlug(state string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(state)), " ", "_")
}
