package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/database"
)

// WorkflowRepository manages workflow definitions and their steps. Workflow +
// step creation is always done together in a single transaction; definitions
// are immutable afterwards.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// Create inserts a workflow and its steps in one transaction.
func (r *WorkflowRepository) Create(ctx context.Context, wf *Workflow) error {
	condJSON, err := json.Marshal(wf.Conditions)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal workflow conditions")
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		wfQuery := `
			INSERT INTO approval_workflows
			    (name, entity_type, approval_type, conditions,
			     timeout_hours, escalation_enabled, escalation_hours, is_active)
			VALUES ($1, $2, $3, $4,
			        $5, $6, $7, $8)
			RETURNING id, created_at
		`

		err := tx.QueryRow(ctx, wfQuery,
			wf.Name,
			wf.EntityType,
			wf.ApprovalType,
			condJSON,
			wf.TimeoutHours,
			wf.EscalationEnable,
			wf.EscalationHours,
			wf.IsActive,
		).Scan(&wf.ID, &wf.CreatedAt)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to create workflow")
		}

		stepQuery := `
			INSERT INTO approval_workflow_steps
			    (workflow_id, step_order, approver_type, approver_id,
			     min_amount, max_amount, timeout_hours, escalation_target)
			VALUES ($1, $2, $3, $4,
			        $5, $6, $7, $8)
			RETURNING id
		`

		for _, step := range wf.Steps {
			step.WorkflowID = wf.ID
			err := tx.QueryRow(ctx, stepQuery,
				step.WorkflowID,
				step.StepOrder,
				step.ApproverType,
				step.ApproverID,
				step.MinAmount,
				step.MaxAmount,
				step.TimeoutHours,
				step.EscalationTarget,
			).Scan(&step.ID)
			if err != nil {
				return apperr.Wrap(err, apperr.CodeInternal, "failed to create workflow step")
			}
		}

		return nil
	})
}

// GetByID retrieves a workflow and its steps by primary key.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*Workflow, error) {
	query := `
		SELECT id, name, entity_type, approval_type, conditions,
		       timeout_hours, escalation_enabled, escalation_hours,
		       is_active, created_at
		FROM approval_workflows
		WHERE id = $1
	`

	wf, err := r.scanWorkflow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSteps(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// FindActiveByEntityType returns active workflows for an entity type ordered
// by creation time. Condition matching is evaluated in Go by the service to
// keep the SQL simple.
func (r *WorkflowRepository) FindActiveByEntityType(ctx context.Context, entityType string) ([]*Workflow, error) {
	query := `
		SELECT id, name, entity_type, approval_type, conditions,
		       timeout_hours, escalation_enabled, escalation_hours,
		       is_active, created_at
		FROM approval_workflows
		WHERE entity_type = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, entityType)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list workflows")
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to read workflows")
	}

	for _, wf := range workflows {
		if err := r.loadSteps(ctx, wf); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, wf *Workflow) error {
	query := `
		SELECT id, workflow_id, step_order, approver_type, approver_id,
		       min_amount, max_amount, timeout_hours, escalation_target
		FROM approval_workflow_steps
		WHERE workflow_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.Query(ctx, query, wf.ID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to load workflow steps")
	}
	defer rows.Close()

	wf.Steps = nil
	for rows.Next() {
		step := &WorkflowStep{}
		err := rows.Scan(
			&step.ID,
			&step.WorkflowID,
			&step.StepOrder,
			&step.ApproverType,
			&step.ApproverID,
			&step.MinAmount,
			&step.MaxAmount,
			&step.TimeoutHours,
			&step.EscalationTarget,
		)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to scan workflow step")
		}
		wf.Steps = append(wf.Steps, step)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row rowScanner) (*Workflow, error) {
	wf := &Workflow{}
	var condJSON []byte
	err := row.Scan(
		&wf.ID,
		&wf.Name,
		&wf.EntityType,
		&wf.ApprovalType,
		&condJSON,
		&wf.TimeoutHours,
		&wf.EscalationEnable,
		&wf.EscalationHours,
		&wf.IsActive,
		&wf.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(condJSON) > 0 {
		if err := json.Unmarshal(condJSON, &wf.Conditions); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to unmarshal workflow conditions")
		}
	}
	return wf, nil
}
