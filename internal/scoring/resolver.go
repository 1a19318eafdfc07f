package scoring

// Diagnosis primary labels.
const (
	DiagnosisCombined     = "combined-type ADHD"
	DiagnosisInattentive  = "inattentive-type ADHD"
	DiagnosisHyperactive  = "hyperactive-impulsive-type ADHD"
	DiagnosisNoImpairment = "ADHD symptoms without sufficient functional impairment"
	DiagnosisNotMet       = "does not meet ADHD criteria"
)

// Priority levels produced by the classifier.
const (
	PriorityHigh   = "high priority - immediate intervention"
	PriorityMedium = "medium priority"
	PriorityLow    = "low priority - monitor"
	PriorityNormal = "within normal range"
)

// DetermineDiagnosis resolves the primary diagnosis from the DSM-5 domain
// results and the functional-impairment evidence. A full diagnosis requires
// both symptom criteria and at least one impaired performance domain.
func DetermineDiagnosis(dsm5 map[string]DomainScore, performance map[string]PerformanceScore) Diagnosis {
	inattention := dsm5[DomainInattention]
	hyperactivity := dsm5[DomainHyperactivity]
	impaired := anyImpaired(performance)

	switch {
	case inattention.MeetsCriteria && hyperactivity.MeetsCriteria:
		if !impaired {
			return Diagnosis{Primary: DiagnosisNoImpairment, Severity: labelUndetermined}
		}
		worse := maxSeverity(
			severityForCount(inattention.SymptomCount),
			severityForCount(hyperactivity.SymptomCount),
		)
		return Diagnosis{Primary: DiagnosisCombined, Severity: worse.String()}

	case inattention.MeetsCriteria:
		if !impaired {
			return Diagnosis{Primary: DiagnosisInattentive, Severity: labelUndetermined}
		}
		return Diagnosis{Primary: DiagnosisInattentive, Severity: inattention.Severity}

	case hyperactivity.MeetsCriteria:
		if !impaired {
			return Diagnosis{Primary: DiagnosisHyperactive, Severity: labelUndetermined}
		}
		return Diagnosis{Primary: DiagnosisHyperactive, Severity: hyperactivity.Severity}

	default:
		return Diagnosis{Primary: DiagnosisNotMet, Severity: labelNotApplicable}
	}
}

// classifyPriority ranks the overall assessment for triage. High priority
// needs both DSM-5 domains met and both performance domains impaired; medium
// needs at least one of each; any single flag anywhere is low; otherwise the
// result is within normal range.
func classifyPriority(dsm5 map[string]DomainScore, performance map[string]PerformanceScore, comorbid map[string]ComorbidScore) string {
	dsm5Met := 0
	for _, score := range dsm5 {
		if score.MeetsCriteria {
			dsm5Met++
		}
	}
	impaired := 0
	for _, score := range performance {
		if score.IsImpaired {
			impaired++
		}
	}
	comorbidFlags := 0
	for _, score := range comorbid {
		if score.MeetsCriteria {
			comorbidFlags++
		}
	}

	switch {
	case dsm5Met >= 2 && impaired >= 2:
		return PriorityHigh
	case dsm5Met >= 1 && impaired >= 1:
		return PriorityMedium
	case dsm5Met >= 1 || impaired >= 1 || comorbidFlags >= 1:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func anyImpaired(performance map[string]PerformanceScore) bool {
	for _, score := range performance {
		if score.IsImpaired {
			return true
		}
	}
	return false
}
