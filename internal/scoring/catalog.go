// Package scoring implements the Vanderbilt ADHD rating-scale scorer: a pure,
// deterministic transformation from raw item responses to a structured
// clinical assessment report. The package has no side effects and no external
// dependencies; the same input always yields the same report.
package scoring

// Responses maps item number (1-40) to a Likert score:
// 0 never, 1 occasionally, 2 often, 3 very often.
//
// Items absent from the map score 0 ("not answered = 0"). Whether missing
// items should instead invalidate a domain is an open clinical question; the
// current behavior is the documented default.
type Responses map[int]int

// MinItem and MaxItem bound the questionnaire's item numbers.
const (
	MinItem = 1
	MaxItem = 40

	// MaxScore is the top of the per-item Likert range.
	MaxScore = 3
)

// symptomPresentScore is the minimum item score for a symptom to count as
// present.
const symptomPresentScore = 2

// SymptomDomain is a named group of items scored by counting present
// symptoms against a threshold.
type SymptomDomain struct {
	Name      string
	Items     []int
	Threshold int // minimum present-symptom count to meet criteria
}

// PerformanceDomain is a named group of items scored by raw mean against an
// impairment cutoff.
type PerformanceDomain struct {
	Name   string
	Items  []int
	Cutoff float64 // mean at or above this is impaired
}

// Catalog fixed item layout. DSM-5 symptom clusters first, then the
// performance measures, then the comorbidity screens.
const (
	DomainInattention   = "inattention"
	DomainHyperactivity = "hyperactivity_impulsivity"

	DomainAcademic  = "academic"
	DomainClassroom = "classroom_behavior"

	ConditionAnxietyDepression = "anxiety_depression"
	ConditionConduct           = "conduct_problems"
)

func dsm5Domains() []SymptomDomain {
	return []SymptomDomain{
		{Name: DomainInattention, Items: itemRange(1, 9), Threshold: 6},
		{Name: DomainHyperactivity, Items: itemRange(10, 18), Threshold: 6},
	}
}

func performanceDomains() []PerformanceDomain {
	return []PerformanceDomain{
		{Name: DomainAcademic, Items: itemRange(19, 23), Cutoff: 2.0},
		{Name: DomainClassroom, Items: itemRange(24, 27), Cutoff: 2.0},
	}
}

func comorbidConditions() []SymptomDomain {
	return []SymptomDomain{
		{Name: ConditionAnxietyDepression, Items: itemRange(28, 34), Threshold: 3},
		{Name: ConditionConduct, Items: itemRange(35, 40), Threshold: 2},
	}
}

func itemRange(first, last int) []int {
	items := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		items = append(items, i)
	}
	return items
}
