package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/database"
)

// DelegateRepository manages time-bounded delegation grants.
type DelegateRepository struct {
	db *database.DB
}

// NewDelegateRepository creates a new DelegateRepository.
func NewDelegateRepository(db *database.DB) *DelegateRepository {
	return &DelegateRepository{db: db}
}

// Create inserts a delegation grant.
func (r *DelegateRepository) Create(ctx context.Context, d *Delegation) error {
	query := `
		INSERT INTO approval_delegations
		    (delegator_id, delegate_id, workflow_id, entity_type, max_amount,
		     starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		d.DelegatorID,
		d.DelegateID,
		d.WorkflowID,
		d.EntityType,
		d.MaxAmount,
		d.StartsAt,
		d.EndsAt,
		d.IsActive,
	).Scan(&d.ID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create delegation")
	}
	return nil
}

// FindActiveFor returns the delegations naming userID as delegate whose
// validity window contains the given instant.
func (r *DelegateRepository) FindActiveFor(ctx context.Context, userID string, at time.Time) ([]*Delegation, error) {
	query := `
		SELECT id, delegator_id, delegate_id, workflow_id, entity_type,
		       max_amount, starts_at, ends_at, is_active
		FROM approval_delegations
		WHERE delegate_id = $1
		  AND is_active = TRUE
		  AND starts_at <= $2
		  AND ends_at > $2
		ORDER BY starts_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID, at)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list delegations")
	}
	defer rows.Close()

	var delegations []*Delegation
	for rows.Next() {
		d := &Delegation{}
		err := rows.Scan(
			&d.ID, &d.DelegatorID, &d.DelegateID, &d.WorkflowID, &d.EntityType,
			&d.MaxAmount, &d.StartsAt, &d.EndsAt, &d.IsActive,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan delegation")
		}
		delegations = append(delegations, d)
	}
	return delegations, rows.Err()
}

// Deactivate revokes a delegation before its window closes.
func (r *DelegateRepository) Deactivate(ctx context.Context, id string) error {
	query := `
		UPDATE approval_delegations
		SET is_active = FALSE
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id).Scan(&returnedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("delegation", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to deactivate delegation")
	}
	return nil
}
