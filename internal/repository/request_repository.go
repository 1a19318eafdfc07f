package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/database"
)

// RequestRepository persists approval requests and their history. Status
// transitions are conditional UPDATEs guarded on the pending status, so a
// request that lost a race surfaces as not-transitioned instead of being
// double-finalized. Every transition is written together with its history
// entry in one transaction; the audit trail never records a transition that
// did not happen.
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a request and its initial submit history entry in one
// transaction.
func (r *RequestRepository) Create(ctx context.Context, req *ApprovalRequest) error {
	metaJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal request metadata")
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO approval_requests
			    (workflow_id, title, description, entity_type, entity_id,
			     amount, metadata, requester_id, status, current_step,
			     submitted_at, expires_at)
			VALUES ($1, $2, $3, $4, $5,
			        $6, $7, $8, $9, $10,
			        $11, $12)
			RETURNING id
		`

		err := tx.QueryRow(ctx, query,
			req.WorkflowID,
			req.Title,
			req.Description,
			req.EntityType,
			req.EntityID,
			req.Amount,
			metaJSON,
			req.RequesterID,
			req.Status,
			req.CurrentStep,
			req.SubmittedAt,
			req.ExpiresAt,
		).Scan(&req.ID)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to create approval request")
		}

		return insertHistory(ctx, tx, &HistoryEntry{
			RequestID:   req.ID,
			StepOrder:   1,
			Action:      ActionSubmit,
			Status:      StatusPending,
			ApproverID:  req.RequesterID,
			PerformedAt: req.SubmittedAt,
		})
	})
}

// Get retrieves a request by primary key.
func (r *RequestRepository) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := selectRequest + ` WHERE id = $1`

	req, err := r.scanRequest(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("approval_request", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to load approval request")
	}
	return req, nil
}

// FinalizeWithHistory moves a pending request to a terminal status, stamps
// completed_at, and appends the matching history entry, all in one
// transaction. Returns InvalidState when the request is no longer pending;
// the history entry is then not written either.
func (r *RequestRepository) FinalizeWithHistory(ctx context.Context, id string, status RequestStatus, completedAt time.Time, entry *HistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE approval_requests
			SET status = $2, completed_at = $3
			WHERE id = $1 AND status = 'pending'
			RETURNING id
		`

		var returnedID string
		err := tx.QueryRow(ctx, query, id, status, completedAt).Scan(&returnedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.InvalidState("request is not pending")
		}
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to finalize request")
		}
		return insertHistory(ctx, tx, entry)
	})
}

// AdvanceWithHistory moves a pending request's current step pointer forward
// and appends the step's closing history entry in one transaction. Guarded
// on both pending status and the expected current step.
func (r *RequestRepository) AdvanceWithHistory(ctx context.Context, id string, fromStep, toStep int, entry *HistoryEntry) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE approval_requests
			SET current_step = $3
			WHERE id = $1 AND status = 'pending' AND current_step = $2
			RETURNING id
		`

		var returnedID string
		err := tx.QueryRow(ctx, query, id, fromStep, toStep).Scan(&returnedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.InvalidState("request is not pending at the expected step")
		}
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to advance request")
		}
		return insertHistory(ctx, tx, entry)
	})
}

// AppendHistory inserts one immutable history entry with no accompanying
// status change (mid-step approvals, delegation records). The table carries
// a delete-prevention trigger, so inserts are the only mutation exposed.
func (r *RequestRepository) AppendHistory(ctx context.Context, entry *HistoryEntry) error {
	return insertHistory(ctx, r.db, entry)
}

// ListHistory returns a request's full audit trail ordered oldest-first.
func (r *RequestRepository) ListHistory(ctx context.Context, requestID string) ([]*HistoryEntry, error) {
	query := `
		SELECT id, request_id, step_order, action, status, approver_id,
		       delegated_from, comments, performed_at
		FROM approval_history
		WHERE request_id = $1
		ORDER BY performed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list history")
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		e := &HistoryEntry{}
		err := rows.Scan(
			&e.ID, &e.RequestID, &e.StepOrder, &e.Action, &e.Status,
			&e.ApproverID, &e.DelegatedFrom, &e.Comments, &e.PerformedAt,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan history entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountStepApprovals counts distinct approvers with an approve entry at the
// given step of a request.
func (r *RequestRepository) CountStepApprovals(ctx context.Context, requestID string, stepOrder int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT approver_id)
		FROM approval_history
		WHERE request_id = $1 AND step_order = $2 AND action = 'approve'
	`

	var count int
	if err := r.db.QueryRow(ctx, query, requestID, stepOrder).Scan(&count); err != nil {
		return 0, apperr.Wrap(err, apperr.CodeInternal, "failed to count step approvals")
	}
	return count, nil
}

// ListPendingForApprover returns pending requests whose current step names
// the given user as approver.
func (r *RequestRepository) ListPendingForApprover(ctx context.Context, userID string) ([]*ApprovalRequest, error) {
	query := selectRequestAliased + `
		JOIN approval_workflow_steps s
		  ON s.workflow_id = r.workflow_id AND s.step_order = r.current_step
		WHERE r.status = 'pending'
		  AND s.approver_type = 'user'
		  AND s.approver_id = $1
		ORDER BY r.submitted_at ASC
	`
	return r.listRequests(ctx, query, userID)
}

// ListPendingByWorkflow returns pending requests referencing a workflow.
func (r *RequestRepository) ListPendingByWorkflow(ctx context.Context, workflowID string) ([]*ApprovalRequest, error) {
	query := selectRequestAliased + `
		WHERE r.status = 'pending' AND r.workflow_id = $1
		ORDER BY r.submitted_at ASC
	`
	return r.listRequests(ctx, query, workflowID)
}

// ListPending returns every pending request.
func (r *RequestRepository) ListPending(ctx context.Context) ([]*ApprovalRequest, error) {
	query := selectRequestAliased + `
		WHERE r.status = 'pending'
		ORDER BY r.submitted_at ASC
	`
	return r.listRequests(ctx, query)
}

// ListExpired returns pending requests whose expiry deadline has passed.
func (r *RequestRepository) ListExpired(ctx context.Context, now time.Time) ([]*ApprovalRequest, error) {
	query := selectRequestAliased + `
		WHERE r.status = 'pending' AND r.expires_at < $1
		ORDER BY r.expires_at ASC
	`
	return r.listRequests(ctx, query, now)
}

// queryRower is satisfied by both *database.DB and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertHistory(ctx context.Context, q queryRower, entry *HistoryEntry) error {
	query := `
		INSERT INTO approval_history
		    (request_id, step_order, action, status, approver_id,
		     delegated_from, comments, performed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := q.QueryRow(ctx, query,
		entry.RequestID,
		entry.StepOrder,
		entry.Action,
		entry.Status,
		entry.ApproverID,
		entry.DelegatedFrom,
		entry.Comments,
		entry.PerformedAt,
	).Scan(&entry.ID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to append history entry")
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

const selectRequest = `
	SELECT id, workflow_id, title, description, entity_type, entity_id,
	       amount, metadata, requester_id, status, current_step,
	       submitted_at, expires_at, completed_at
	FROM approval_requests`

const selectRequestAliased = `
	SELECT r.id, r.workflow_id, r.title, r.description, r.entity_type, r.entity_id,
	       r.amount, r.metadata, r.requester_id, r.status, r.current_step,
	       r.submitted_at, r.expires_at, r.completed_at
	FROM approval_requests r`

func (r *RequestRepository) listRequests(ctx context.Context, query string, args ...any) ([]*ApprovalRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list requests")
	}
	defer rows.Close()

	var requests []*ApprovalRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *RequestRepository) scanRequest(row rowScanner) (*ApprovalRequest, error) {
	req := &ApprovalRequest{}
	var metaJSON []byte
	err := row.Scan(
		&req.ID,
		&req.WorkflowID,
		&req.Title,
		&req.Description,
		&req.EntityType,
		&req.EntityID,
		&req.Amount,
		&metaJSON,
		&req.RequesterID,
		&req.Status,
		&req.CurrentStep,
		&req.SubmittedAt,
		&req.ExpiresAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &req.Metadata); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to unmarshal request metadata")
		}
	}
	return req, nil
}
