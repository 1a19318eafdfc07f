package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
	"github.com/alawael/be-rehab-core/internal/scoring"
)

// AssessmentStore persists completed assessments.
type AssessmentStore interface {
	Create(ctx context.Context, rec *repository.AssessmentRecord) error
	GetByID(ctx context.Context, id string) (*repository.AssessmentRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]*repository.AssessmentRecord, error)
}

// AssessmentService wraps the pure Vanderbilt scorer with input validation
// and persistence. Scoring itself stays side-effect free in the scoring
// package; this service is the platform-facing collaborator.
type AssessmentService struct {
	store AssessmentStore
	log   zerolog.Logger
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(store AssessmentStore, log zerolog.Logger) *AssessmentService {
	return &AssessmentService{store: store, log: log}
}

// ScoreAssessmentInput carries raw responses plus the identifiers needed to
// file the report.
type ScoreAssessmentInput struct {
	PatientID  string      `json:"patient_id"`
	AssessorID string      `json:"assessor_id"`
	Scale      string      `json:"scale"`
	Responses  map[int]int `json:"responses"`
}

// ValidateResponses rejects out-of-range item numbers and scores. Missing
// items are allowed and score 0 in the engine.
func ValidateResponses(responses map[int]int) error {
	for item, score := range responses {
		if item < scoring.MinItem || item > scoring.MaxItem {
			return apperr.InvalidInput("responses", fmt.Sprintf("item %d is outside 1-%d", item, scoring.MaxItem))
		}
		if score < 0 || score > scoring.MaxScore {
			return apperr.InvalidInput("responses", fmt.Sprintf("item %d has score %d outside 0-%d", item, score, scoring.MaxScore))
		}
	}
	return nil
}

// ScoreOnly validates and scores without persisting.
func (s *AssessmentService) ScoreOnly(responses map[int]int) (*scoring.AssessmentReport, error) {
	if err := ValidateResponses(responses); err != nil {
		return nil, err
	}
	return scoring.Score(responses), nil
}

// ScoreAndStore validates, scores, and files the report for the patient.
func (s *AssessmentService) ScoreAndStore(ctx context.Context, in ScoreAssessmentInput) (*repository.AssessmentRecord, *scoring.AssessmentReport, error) {
	if in.PatientID == "" {
		return nil, nil, apperr.InvalidInput("patient_id", "patient id is required")
	}
	if in.AssessorID == "" {
		return nil, nil, apperr.InvalidInput("assessor_id", "assessor id is required")
	}
	if in.Scale == "" {
		in.Scale = "vanderbilt"
	}

	report, err := s.ScoreOnly(in.Responses)
	if err != nil {
		return nil, nil, err
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, nil, apperr.Wrap(err, apperr.CodeInternal, "failed to marshal assessment report")
	}

	rec := &repository.AssessmentRecord{
		PatientID:  in.PatientID,
		AssessorID: in.AssessorID,
		Scale:      in.Scale,
		Responses:  in.Responses,
		Report:     reportJSON,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("assessment_id", rec.ID).
		Str("patient_id", in.PatientID).
		Str("priority", report.PriorityLevel).
		Msg("Assessment scored and stored")

	return rec, report, nil
}

// GetAssessment returns a stored assessment by id.
func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*repository.AssessmentRecord, error) {
	return s.store.GetByID(ctx, id)
}

// ListPatientAssessments returns a patient's stored assessments, newest first.
func (s *AssessmentService) ListPatientAssessments(ctx context.Context, patientID string) ([]*repository.AssessmentRecord, error) {
	if patientID == "" {
		return nil, apperr.InvalidInput("patient_id", "patient id is required")
	}
	return s.store.ListByPatient(ctx, patientID)
}
