package scoring

// Severity is the ordered symptom severity scale. Comparisons are ordinal on
// the enum, never on label strings.
type Severity int

const (
	SeverityNotMet Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

// Label values used in reports for states outside the ordinal scale.
const (
	labelUndetermined  = "undetermined"
	labelNotApplicable = "not applicable"
)

func (s Severity) String() string {
	switch s {
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "does not meet criteria"
	}
}

// maxSeverity returns the worse of two severities.
func maxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// severityForCount bands a present-symptom count once the domain threshold is
// met: 6-8 mild, 9-12 moderate, 13-18 severe.
func severityForCount(count int) Severity {
	switch {
	case count >= 13:
		return SeveritySevere
	case count >= 9:
		return SeverityModerate
	case count >= 6:
		return SeverityMild
	default:
		return SeverityNotMet
	}
}

// impairmentLevelForAverage bands a performance-domain mean:
// <1.5 none, <2.5 mild, <3.5 moderate, else severe.
func impairmentLevelForAverage(avg float64) string {
	switch {
	case avg < 1.5:
		return "none"
	case avg < 2.5:
		return "mild"
	case avg < 3.5:
		return "moderate"
	default:
		return "severe"
	}
}

// riskLevelForCount classifies a comorbidity screen relative to its
// threshold: below is low, exactly at is medium, above is high.
func riskLevelForCount(count, threshold int) string {
	switch {
	case count < threshold:
		return "low"
	case count == threshold:
		return "medium"
	default:
		return "high"
	}
}
