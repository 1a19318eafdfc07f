package scoring

// CalculateDSM5Scores scores both DSM-5 symptom domains. An item counts as a
// present symptom iff its response is at least 2 (often / very often);
// criteria are met when the present count reaches the domain threshold.
// Severity bands apply only when criteria are met.
func CalculateDSM5Scores(responses Responses) map[string]DomainScore {
	scores := make(map[string]DomainScore, 2)
	for _, domain := range dsm5Domains() {
		count, total := countSymptoms(responses, domain.Items)
		meets := count >= domain.Threshold

		severity := SeverityNotMet.String()
		if meets {
			severity = severityForCount(count).String()
		}

		scores[domain.Name] = DomainScore{
			SymptomCount:  count,
			TotalScore:    total,
			MeetsCriteria: meets,
			Severity:      severity,
		}
	}
	return scores
}

// CalculatePerformanceScores scores the performance measures as raw means.
// A domain is impaired when its mean reaches the cutoff (2.0 by default), so
// a mean of exactly 2.0 is impaired with level "mild" per the banding.
func CalculatePerformanceScores(responses Responses) map[string]PerformanceScore {
	scores := make(map[string]PerformanceScore, 2)
	for _, domain := range performanceDomains() {
		sum := 0
		for _, item := range domain.Items {
			sum += responses[item]
		}
		avg := float64(sum) / float64(len(domain.Items))

		scores[domain.Name] = PerformanceScore{
			AverageScore:    avg,
			IsImpaired:      avg >= domain.Cutoff,
			ImpairmentLevel: impairmentLevelForAverage(avg),
		}
	}
	return scores
}

// CalculateComorbidScores runs the comorbidity screens with the same
// present-symptom rule as the DSM-5 domains but condition-specific
// thresholds.
func CalculateComorbidScores(responses Responses) map[string]ComorbidScore {
	scores := make(map[string]ComorbidScore, 2)
	for _, condition := range comorbidConditions() {
		count, _ := countSymptoms(responses, condition.Items)

		scores[condition.Name] = ComorbidScore{
			SymptomCount:  count,
			MeetsCriteria: count >= condition.Threshold,
			RiskLevel:     riskLevelForCount(count, condition.Threshold),
		}
	}
	return scores
}

// countSymptoms returns the present-symptom count and the raw score sum over
// the given items. Unanswered items contribute 0.
func countSymptoms(responses Responses, items []int) (count, total int) {
	for _, item := range items {
		score := responses[item]
		total += score
		if score >= symptomPresentScore {
			count++
		}
	}
	return count, total
}
