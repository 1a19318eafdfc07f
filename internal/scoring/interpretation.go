package scoring

import (
	"fmt"
	"strings"
)

// GenerateInterpretation derives the clinical narrative from the computed
// scores. Deterministic rule-based text; no free generation.
func GenerateInterpretation(
	dsm5 map[string]DomainScore,
	performance map[string]PerformanceScore,
	comorbid map[string]ComorbidScore,
	diagnosis Diagnosis,
) Interpretation {
	return Interpretation{
		Symptoms:    interpretSymptoms(dsm5, diagnosis),
		Functioning: interpretFunctioning(performance),
		Comorbidity: interpretComorbidity(comorbid),
	}
}

func interpretSymptoms(dsm5 map[string]DomainScore, diagnosis Diagnosis) string {
	inattention := dsm5[DomainInattention]
	hyperactivity := dsm5[DomainHyperactivity]

	if !inattention.MeetsCriteria && !hyperactivity.MeetsCriteria {
		return fmt.Sprintf(
			"Symptom counts are below DSM-5 thresholds (inattention %d/9, hyperactivity-impulsivity %d/9). The responses do not support an ADHD diagnosis.",
			inattention.SymptomCount, hyperactivity.SymptomCount)
	}

	var parts []string
	if inattention.MeetsCriteria {
		parts = append(parts, fmt.Sprintf(
			"Inattention criteria are met with %d of 9 symptoms present (%s).",
			inattention.SymptomCount, inattention.Severity))
	}
	if hyperactivity.MeetsCriteria {
		parts = append(parts, fmt.Sprintf(
			"Hyperactivity-impulsivity criteria are met with %d of 9 symptoms present (%s).",
			hyperactivity.SymptomCount, hyperactivity.Severity))
	}
	parts = append(parts, fmt.Sprintf("Overall impression: %s (severity: %s).",
		diagnosis.Primary, diagnosis.Severity))
	return strings.Join(parts, " ")
}

func interpretFunctioning(performance map[string]PerformanceScore) string {
	var impaired, intact []string
	for _, domain := range performanceDomains() {
		score := performance[domain.Name]
		label := strings.ReplaceAll(domain.Name, "_", " ")
		if score.IsImpaired {
			impaired = append(impaired, fmt.Sprintf("%s (average %.1f, %s impairment)",
				label, score.AverageScore, score.ImpairmentLevel))
		} else {
			intact = append(intact, label)
		}
	}

	if len(impaired) == 0 {
		return "No functional impairment is evident in the performance measures; symptoms, if present, are not currently degrading academic or classroom functioning."
	}

	text := "Functional impairment is present in " + strings.Join(impaired, " and ") + "."
	if len(intact) > 0 {
		text += " Functioning in " + strings.Join(intact, " and ") + " remains within expected range."
	}
	return text
}

func interpretComorbidity(comorbid map[string]ComorbidScore) string {
	var flagged []string
	for _, condition := range comorbidConditions() {
		score := comorbid[condition.Name]
		if score.MeetsCriteria {
			flagged = append(flagged, fmt.Sprintf("%s (%d symptoms, %s risk)",
				strings.ReplaceAll(condition.Name, "_", " "), score.SymptomCount, score.RiskLevel))
		}
	}

	if len(flagged) == 0 {
		return "Comorbidity screens for anxiety/depression and conduct problems are negative."
	}
	return "Positive comorbidity screen: " + strings.Join(flagged, "; ") + ". Further evaluation of the flagged conditions is indicated."
}

// GenerateRecommendations produces the ordered, deduplicated recommendation
// list keyed off which domains met criteria, which performance domains are
// impaired, and which comorbidity screens flagged.
func GenerateRecommendations(
	dsm5 map[string]DomainScore,
	performance map[string]PerformanceScore,
	comorbid map[string]ComorbidScore,
) []string {
	var recs []string

	inattention := dsm5[DomainInattention]
	hyperactivity := dsm5[DomainHyperactivity]
	anyMet := inattention.MeetsCriteria || hyperactivity.MeetsCriteria

	if anyMet {
		recs = append(recs,
			"Refer for comprehensive clinical evaluation by a developmental-behavioral specialist.",
			"Share the completed rating scale with the treating physician.")
	}
	if inattention.MeetsCriteria {
		recs = append(recs,
			"Implement structured routines and external organizers to support attention.",
			"Request classroom seating near the teacher and reduced distractions.")
	}
	if hyperactivity.MeetsCriteria {
		recs = append(recs,
			"Schedule regular movement breaks during seated work.",
			"Implement structured routines and external organizers to support attention.")
	}

	if performance[DomainAcademic].IsImpaired {
		recs = append(recs,
			"Arrange academic support or an individualized education review.",
			"Share the completed rating scale with the treating physician.")
	}
	if performance[DomainClassroom].IsImpaired {
		recs = append(recs,
			"Establish a daily behavior report card between home and school.")
	}

	if comorbid[ConditionAnxietyDepression].MeetsCriteria {
		recs = append(recs,
			"Screen further for anxiety and mood disorders before finalizing treatment.")
	}
	if comorbid[ConditionConduct].MeetsCriteria {
		recs = append(recs,
			"Refer for behavioral therapy targeting oppositional and conduct symptoms.")
	}

	if len(recs) == 0 {
		recs = append(recs,
			"No clinical action indicated; repeat screening if concerns persist.")
	}

	return dedupe(recs)
}

// dedupe removes duplicates while preserving first-occurrence order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
