package scoring

// DomainScore is the computed result for one DSM-5 symptom domain.
type DomainScore struct {
	SymptomCount  int    `json:"symptom_count"`
	TotalScore    int    `json:"total_score"`
	MeetsCriteria bool   `json:"meets_criteria"`
	Severity      string `json:"severity"`
}

// PerformanceScore is the computed result for one performance measure.
type PerformanceScore struct {
	AverageScore    float64 `json:"average_score"`
	IsImpaired      bool    `json:"is_impaired"`
	ImpairmentLevel string  `json:"impairment_level"`
}

// ComorbidScore is the computed result for one comorbidity screen.
type ComorbidScore struct {
	SymptomCount  int    `json:"symptom_count"`
	MeetsCriteria bool   `json:"meets_criteria"`
	RiskLevel     string `json:"risk_level"`
}

// Diagnosis is the resolved primary conclusion and its severity label.
type Diagnosis struct {
	Primary  string `json:"primary"`
	Severity string `json:"severity"`
}

// Interpretation carries the generated clinical narrative, one field per
// assessment area.
type Interpretation struct {
	Symptoms    string `json:"symptoms"`
	Functioning string `json:"functioning"`
	Comorbidity string `json:"comorbidity"`
}

// AssessmentReport is the full structured output of Score.
type AssessmentReport struct {
	DSM5            map[string]DomainScore      `json:"dsm5_scores"`
	Performance     map[string]PerformanceScore `json:"performance_scores"`
	Comorbid        map[string]ComorbidScore    `json:"comorbid_scores"`
	Diagnosis       Diagnosis                   `json:"diagnosis"`
	Interpretation  Interpretation              `json:"clinical_interpretation"`
	Recommendations []string                    `json:"recommendations"`
	PriorityLevel   string                      `json:"priority_level"`
}

// Score is the single public entry point: it chains domain scoring,
// diagnosis resolution, interpretation and recommendation generation, and
// the priority classifier over one response set. Pure function; the input is
// never mutated.
func Score(responses Responses) *AssessmentReport {
	dsm5 := CalculateDSM5Scores(responses)
	performance := CalculatePerformanceScores(responses)
	comorbid := CalculateComorbidScores(responses)

	diagnosis := DetermineDiagnosis(dsm5, performance)

	return &AssessmentReport{
		DSM5:            dsm5,
		Performance:     performance,
		Comorbid:        comorbid,
		Diagnosis:       diagnosis,
		Interpretation:  GenerateInterpretation(dsm5, performance, comorbid, diagnosis),
		Recommendations: GenerateRecommendations(dsm5, performance, comorbid),
		PriorityLevel:   classifyPriority(dsm5, performance, comorbid),
	}
}
