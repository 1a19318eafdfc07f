package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/database"
)

// AssessmentRepository stores completed clinical assessments. Reports are
// opaque JSON produced by the scoring engine.
type AssessmentRepository struct {
	db *database.DB
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(db *database.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts an assessment record.
func (r *AssessmentRepository) Create(ctx context.Context, rec *AssessmentRecord) error {
	respJSON, err := json.Marshal(rec.Responses)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal assessment responses")
	}

	query := `
		INSERT INTO clinical_assessments
		    (patient_id, assessor_id, scale, responses, report)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		rec.PatientID,
		rec.AssessorID,
		rec.Scale,
		respJSON,
		rec.Report,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create assessment")
	}
	return nil
}

// GetByID retrieves an assessment by primary key.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*AssessmentRecord, error) {
	query := `
		SELECT id, patient_id, assessor_id, scale, responses, report, created_at
		FROM clinical_assessments
		WHERE id = $1
	`

	rec, err := r.scanAssessment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("assessment", id)
	}
	return rec, err
}

// ListByPatient returns a patient's assessments, newest first.
func (r *AssessmentRepository) ListByPatient(ctx context.Context, patientID string) ([]*AssessmentRecord, error) {
	query := `
		SELECT id, patient_id, assessor_id, scale, responses, report, created_at
		FROM clinical_assessments
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, patientID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list assessments")
	}
	defer rows.Close()

	var records []*AssessmentRecord
	for rows.Next() {
		rec, err := r.scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *AssessmentRepository) scanAssessment(row rowScanner) (*AssessmentRecord, error) {
	rec := &AssessmentRecord{}
	var respJSON []byte
	err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.AssessorID,
		&rec.Scale,
		&respJSON,
		&rec.Report,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(respJSON) > 0 {
		if err := json.Unmarshal(respJSON, &rec.Responses); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to unmarshal assessment responses")
		}
	}
	return rec, nil
}
