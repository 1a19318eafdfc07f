package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
)

// WorkflowStore provides access to workflow definitions.
type WorkflowStore interface {
	Create(ctx context.Context, wf *repository.Workflow) error
	FindActiveByEntityType(ctx context.Context, entityType string) ([]*repository.Workflow, error)
	GetByID(ctx context.Context, id string) (*repository.Workflow, error)
}

// RequestStore persists approval requests and their history. Implementations
// must serialize concurrent transitions on the same request; the conditional
// guards on FinalizeWithHistory/AdvanceWithHistory are the contract (a lost
// race surfaces as an invalid-state error, never a double transition). The
// compound operations are atomic: a transition and its history entry land
// together or not at all.
type RequestStore interface {
	Create(ctx context.Context, req *repository.ApprovalRequest) error
	Get(ctx context.Context, id string) (*repository.ApprovalRequest, error)
	FinalizeWithHistory(ctx context.Context, id string, status repository.RequestStatus, completedAt time.Time, entry *repository.HistoryEntry) error
	AdvanceWithHistory(ctx context.Context, id string, fromStep, toStep int, entry *repository.HistoryEntry) error
	AppendHistory(ctx context.Context, entry *repository.HistoryEntry) error
	ListHistory(ctx context.Context, requestID string) ([]*repository.HistoryEntry, error)
	CountStepApprovals(ctx context.Context, requestID string, stepOrder int) (int, error)
	ListPendingForApprover(ctx context.Context, userID string) ([]*repository.ApprovalRequest, error)
	ListPendingByWorkflow(ctx context.Context, workflowID string) ([]*repository.ApprovalRequest, error)
	ListPending(ctx context.Context) ([]*repository.ApprovalRequest, error)
	ListExpired(ctx context.Context, now time.Time) ([]*repository.ApprovalRequest, error)
}

// DelegationStore manages delegation grants.
type DelegationStore interface {
	Create(ctx context.Context, d *repository.Delegation) error
	FindActiveFor(ctx context.Context, userID string, at time.Time) ([]*repository.Delegation, error)
	Deactivate(ctx context.Context, id string) error
}

// NotificationSink receives notification events for every state transition.
// Fire-and-forget: implementations log failures and never return them, so a
// failed notification can never roll back an approval.
type NotificationSink interface {
	Notify(ctx context.Context, req *repository.ApprovalRequest, ntype repository.NotificationType, recipientID, title, message string)
}

// ApprovalService is the multi-level approval workflow engine. It routes
// requests through their workflow's steps, closing each step by quota
// according to the workflow's approval type.
type ApprovalService struct {
	workflows   WorkflowStore
	requests    RequestStore
	delegations DelegationStore
	notifier    NotificationSink
	log         zerolog.Logger

	now func() time.Time
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	workflows WorkflowStore,
	requests RequestStore,
	delegations DelegationStore,
	notifier NotificationSink,
	log zerolog.Logger,
) *ApprovalService {
	return &ApprovalService{
		workflows:   workflows,
		requests:    requests,
		delegations: delegations,
		notifier:    notifier,
		log:         log,
		now:         time.Now,
	}
}

// SubmitRequestInput carries everything needed to open an approval request.
type SubmitRequestInput struct {
	EntityType  string            `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	RequesterID string            `json:"requester_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Amount      *int64            `json:"amount,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// SubmitResult reports the opened request and the workflow it was routed to.
type SubmitResult struct {
	RequestID    string                   `json:"request_id"`
	WorkflowID   string                   `json:"workflow_id"`
	WorkflowName string                   `json:"workflow_name"`
	Status       repository.RequestStatus `json:"status"`
	CurrentStep  int                      `json:"current_step"`
	ExpiresAt    time.Time                `json:"expires_at"`
}

// DecisionResult reports the request state after an approval or rejection.
type DecisionResult struct {
	RequestID     string                   `json:"request_id"`
	Status        repository.RequestStatus `json:"status"`
	CurrentStep   int                      `json:"current_step"`
	ApprovedCount int                      `json:"approved_count,omitempty"`
	RequiredCount int                      `json:"required_count,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

// ── Workflow administration ──────────────────────────────────────────────────

// CreateWorkflowInput defines a new workflow and its ordered steps.
type CreateWorkflowInput struct {
	Name         string                        `json:"name"`
	EntityType   string                        `json:"entity_type"`
	ApprovalType repository.ApprovalType       `json:"approval_type"`
	Conditions   repository.WorkflowConditions `json:"conditions"`
	TimeoutHours int                           `json:"timeout_hours"`
	Steps        []CreateWorkflowStepInput     `json:"steps"`
}

// CreateWorkflowStepInput defines one step of a new workflow.
type CreateWorkflowStepInput struct {
	StepOrder    int                     `json:"step_order"`
	ApproverType repository.ApproverType `json:"approver_type"`
	ApproverID   string                  `json:"approver_id"`
}

// defaultTimeoutHours applies when a workflow omits its own deadline.
const defaultTimeoutHours = 72

// CreateWorkflow validates and stores a new active workflow definition.
// Steps must be numbered 1..N without gaps.
func (s *ApprovalService) CreateWorkflow(ctx context.Context, in CreateWorkflowInput) (*repository.Workflow, error) {
	if in.Name == "" {
		return nil, apperr.InvalidInput("name", "workflow name is required")
	}
	if in.EntityType == "" {
		return nil, apperr.InvalidInput("entity_type", "entity type is required")
	}
	switch in.ApprovalType {
	case repository.ApprovalSequential, repository.ApprovalParallel,
		repository.ApprovalMajority, repository.ApprovalUnanimous:
	default:
		return nil, apperr.InvalidInput("approval_type", fmt.Sprintf("unknown approval type %q", in.ApprovalType))
	}
	if len(in.Steps) == 0 {
		return nil, apperr.InvalidInput("steps", "at least one step is required")
	}
	if in.TimeoutHours <= 0 {
		in.TimeoutHours = defaultTimeoutHours
	}

	steps := make([]*repository.WorkflowStep, 0, len(in.Steps))
	for i, stepIn := range in.Steps {
		if stepIn.StepOrder != i+1 {
			return nil, apperr.InvalidInput("steps", fmt.Sprintf("step at position %d has order %d, want %d", i, stepIn.StepOrder, i+1))
		}
		if stepIn.ApproverID == "" {
			return nil, apperr.InvalidInput("steps", fmt.Sprintf("step %d is missing an approver id", stepIn.StepOrder))
		}
		steps = append(steps, &repository.WorkflowStep{
			StepOrder:    stepIn.StepOrder,
			ApproverType: stepIn.ApproverType,
			ApproverID:   stepIn.ApproverID,
		})
	}

	wf := &repository.Workflow{
		Name:         in.Name,
		EntityType:   in.EntityType,
		ApprovalType: in.ApprovalType,
		Conditions:   in.Conditions,
		Steps:        steps,
		TimeoutHours: in.TimeoutHours,
		IsActive:     true,
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("workflow_id", wf.ID).
		Str("name", wf.Name).
		Str("entity_type", wf.EntityType).
		Int("steps", len(wf.Steps)).
		Msg("Workflow created")
	return wf, nil
}

// ── Delegation grants ────────────────────────────────────────────────────────

// GrantDelegationInput defines a time-bounded handover of approval authority.
type GrantDelegationInput struct {
	DelegatorID string    `json:"delegator_id"`
	DelegateID  string    `json:"delegate_id"`
	WorkflowID  *string   `json:"workflow_id,omitempty"`
	EntityType  *string   `json:"entity_type,omitempty"`
	MaxAmount   *int64    `json:"max_amount,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

// GrantDelegation stores an active delegation grant. A zero StartsAt means
// effective immediately.
func (s *ApprovalService) GrantDelegation(ctx context.Context, in GrantDelegationInput) (*repository.Delegation, error) {
	if in.DelegatorID == "" {
		return nil, apperr.InvalidInput("delegator_id", "delegator id is required")
	}
	if in.DelegateID == "" {
		return nil, apperr.InvalidInput("delegate_id", "delegate id is required")
	}
	if in.DelegateID == in.DelegatorID {
		return nil, apperr.InvalidInput("delegate_id", "cannot delegate to yourself")
	}
	if in.StartsAt.IsZero() {
		in.StartsAt = s.now()
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, apperr.InvalidInput("ends_at", "delegation must end after it starts")
	}

	d := &repository.Delegation{
		DelegatorID: in.DelegatorID,
		DelegateID:  in.DelegateID,
		WorkflowID:  in.WorkflowID,
		EntityType:  in.EntityType,
		MaxAmount:   in.MaxAmount,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		IsActive:    true,
	}
	if err := s.delegations.Create(ctx, d); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("delegation_id", d.ID).
		Str("delegator_id", d.DelegatorID).
		Str("delegate_id", d.DelegateID).
		Time("ends_at", d.EndsAt).
		Msg("Delegation granted")
	return d, nil
}

// RevokeDelegation deactivates a grant before its window closes.
func (s *ApprovalService) RevokeDelegation(ctx context.Context, delegationID string) error {
	if delegationID == "" {
		return apperr.InvalidInput("delegation_id", "delegation id is required")
	}
	if err := s.delegations.Deactivate(ctx, delegationID); err != nil {
		return err
	}
	s.log.Info().Str("delegation_id", delegationID).Msg("Delegation revoked")
	return nil
}

// ── Submission ───────────────────────────────────────────────────────────────

// SubmitRequest selects the first active workflow whose entity type and
// conditions accept the submission and opens a pending request at step 1.
func (s *ApprovalService) SubmitRequest(ctx context.Context, in SubmitRequestInput) (*SubmitResult, error) {
	if in.EntityType == "" {
		return nil, apperr.InvalidInput("entity_type", "entity type is required")
	}
	if in.EntityID == "" {
		return nil, apperr.InvalidInput("entity_id", "entity id is required")
	}
	if in.RequesterID == "" {
		return nil, apperr.InvalidInput("requester_id", "requester id is required")
	}
	if in.Title == "" {
		return nil, apperr.InvalidInput("title", "title is required")
	}

	workflows, err := s.workflows.FindActiveByEntityType(ctx, in.EntityType)
	if err != nil {
		return nil, err
	}

	var wf *repository.Workflow
	for _, candidate := range workflows {
		if candidate.Conditions.Matches(in.Amount, in.Metadata) {
			wf = candidate
			break
		}
	}
	if wf == nil {
		return nil, apperr.NoMatchingWorkflow(in.EntityType)
	}
	if len(wf.Steps) == 0 {
		return nil, apperr.Unsupported(fmt.Sprintf("workflow %q has no steps", wf.Name))
	}

	// A role/department step could never be satisfied; fail the submission
	// instead of opening a request that stalls forever.
	for _, step := range wf.Steps {
		if _, err := stepApprovers(step); err != nil {
			return nil, err
		}
	}

	now := s.now()
	req := &repository.ApprovalRequest{
		WorkflowID:  wf.ID,
		Title:       in.Title,
		Description: in.Description,
		EntityType:  in.EntityType,
		EntityID:    in.EntityID,
		Amount:      in.Amount,
		Metadata:    in.Metadata,
		RequesterID: in.RequesterID,
		Status:      repository.StatusPending,
		CurrentStep: 1,
		SubmittedAt: now,
		ExpiresAt:   now.Add(time.Duration(wf.TimeoutHours) * time.Hour),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.notifyStepApprovers(ctx, req, wf, 1)

	s.log.Info().
		Str("request_id", req.ID).
		Str("workflow", wf.Name).
		Str("entity_type", in.EntityType).
		Msg("Approval request submitted")

	return &SubmitResult{
		RequestID:    req.ID,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Status:       req.Status,
		CurrentStep:  req.CurrentStep,
		ExpiresAt:    req.ExpiresAt,
	}, nil
}

// ── Approval ─────────────────────────────────────────────────────────────────

// ApproveRequest records an approval and applies quota-based step closure:
// once the current step has collected its required number of distinct
// approvals, the request advances to the next step or finalizes as approved.
// The approval entry is written atomically with whatever transition it
// triggers, so the audit trail never claims a step closure that failed.
func (s *ApprovalService) ApproveRequest(ctx context.Context, requestID, approverID, comments string) (*DecisionResult, error) {
	req, wf, err := s.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.assertCanApprove(ctx, wf, req, approverID); err != nil {
		return nil, err
	}

	step := wf.StepAt(req.CurrentStep)
	approvers, err := stepApprovers(step)
	if err != nil {
		return nil, err
	}

	required := requiredApprovals(wf.ApprovalType, len(approvers))
	prior, err := s.requests.CountStepApprovals(ctx, req.ID, req.CurrentStep)
	if err != nil {
		return nil, err
	}
	approved := prior + 1

	entry := &repository.HistoryEntry{
		RequestID:   req.ID,
		StepOrder:   req.CurrentStep,
		Action:      repository.ActionApprove,
		Status:      repository.StatusApproved,
		ApproverID:  approverID,
		Comments:    comments,
		PerformedAt: s.now(),
	}

	if approved < required {
		// No status change rides on this entry; a lone insert is atomic.
		if err := s.requests.AppendHistory(ctx, entry); err != nil {
			return nil, err
		}
		s.log.Info().
			Str("request_id", req.ID).
			Int("step", req.CurrentStep).
			Int("approved", approved).
			Int("required", required).
			Msg("Step approval recorded; quota not yet met")
		return &DecisionResult{
			RequestID:     req.ID,
			Status:        repository.StatusPending,
			CurrentStep:   req.CurrentStep,
			ApprovedCount: approved,
			RequiredCount: required,
		}, nil
	}

	return s.closeStep(ctx, req, wf, entry, approved, required)
}

// closeStep advances a request whose current step met its quota, finalizing
// to approved when no further step exists. The closing approval entry lands
// in the same transaction as the transition.
func (s *ApprovalService) closeStep(ctx context.Context, req *repository.ApprovalRequest, wf *repository.Workflow, entry *repository.HistoryEntry, approved, required int) (*DecisionResult, error) {
	next := wf.StepAt(req.CurrentStep + 1)
	if next != nil {
		if err := s.requests.AdvanceWithHistory(ctx, req.ID, req.CurrentStep, next.StepOrder, entry); err != nil {
			return nil, err
		}
		req.CurrentStep = next.StepOrder
		s.notifyStepApprovers(ctx, req, wf, next.StepOrder)

		s.log.Info().
			Str("request_id", req.ID).
			Int("step", next.StepOrder).
			Msg("Approval request advanced to next step")
		return &DecisionResult{
			RequestID:     req.ID,
			Status:        repository.StatusPending,
			CurrentStep:   next.StepOrder,
			ApprovedCount: approved,
			RequiredCount: required,
		}, nil
	}

	now := s.now()
	if err := s.requests.FinalizeWithHistory(ctx, req.ID, repository.StatusApproved, now, entry); err != nil {
		return nil, err
	}
	req.Status = repository.StatusApproved
	req.CompletedAt = &now

	s.notifier.Notify(ctx, req, repository.NotifyRequestApproved, req.RequesterID,
		"Request approved",
		fmt.Sprintf("Your request %q has completed all approval steps.", req.Title))

	s.log.Info().
		Str("request_id", req.ID).
		Msg("Approval request fully approved")
	return &DecisionResult{
		RequestID:     req.ID,
		Status:        repository.StatusApproved,
		CurrentStep:   req.CurrentStep,
		ApprovedCount: approved,
		RequiredCount: required,
		CompletedAt:   &now,
	}, nil
}

// ── Rejection ────────────────────────────────────────────────────────────────

// RejectRequest finalizes a pending request as rejected immediately,
// regardless of approval type or remaining steps.
func (s *ApprovalService) RejectRequest(ctx context.Context, requestID, approverID, reason string) (*DecisionResult, error) {
	if reason == "" {
		return nil, apperr.InvalidInput("reason", "rejection reason is required")
	}

	req, wf, err := s.loadPending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.assertCanApprove(ctx, wf, req, approverID); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &repository.HistoryEntry{
		RequestID:   req.ID,
		StepOrder:   req.CurrentStep,
		Action:      repository.ActionReject,
		Status:      repository.StatusRejected,
		ApproverID:  approverID,
		Comments:    reason,
		PerformedAt: now,
	}
	if err := s.requests.FinalizeWithHistory(ctx, req.ID, repository.StatusRejected, now, entry); err != nil {
		return nil, err
	}
	req.Status = repository.StatusRejected

	s.notifier.Notify(ctx, req, repository.NotifyRequestRejected, req.RequesterID,
		"Request rejected",
		fmt.Sprintf("Your request %q was rejected: %s", req.Title, reason))

	s.log.Info().
		Str("request_id", req.ID).
		Str("approver_id", approverID).
		Msg("Approval request rejected")
	return &DecisionResult{
		RequestID:   req.ID,
		Status:      repository.StatusRejected,
		CurrentStep: req.CurrentStep,
		CompletedAt: &now,
	}, nil
}

// ── Delegation ───────────────────────────────────────────────────────────────

// DelegateApproval records that the delegator handed this request to the
// delegate and notifies them. It does not create a delegation grant; the
// grant table is maintained separately and is what assertCanApprove consults.
func (s *ApprovalService) DelegateApproval(ctx context.Context, requestID, delegatorID, delegateID, reason string) error {
	if delegateID == "" {
		return apperr.InvalidInput("delegate_id", "delegate id is required")
	}

	req, wf, err := s.loadPending(ctx, requestID)
	if err != nil {
		return err
	}
	if err := s.assertCanApprove(ctx, wf, req, delegatorID); err != nil {
		return err
	}

	if err := s.requests.AppendHistory(ctx, &repository.HistoryEntry{
		RequestID:     req.ID,
		StepOrder:     req.CurrentStep,
		Action:        repository.ActionDelegate,
		Status:        repository.StatusPending,
		ApproverID:    delegateID,
		DelegatedFrom: delegatorID,
		Comments:      reason,
		PerformedAt:   s.now(),
	}); err != nil {
		return err
	}

	s.notifier.Notify(ctx, req, repository.NotifyApprovalDelegated, delegateID,
		"Approval delegated to you",
		fmt.Sprintf("%s delegated the approval of %q to you.", delegatorID, req.Title))

	s.log.Info().
		Str("request_id", req.ID).
		Str("delegator_id", delegatorID).
		Str("delegate_id", delegateID).
		Msg("Approval delegated")
	return nil
}

// ── Cancellation ─────────────────────────────────────────────────────────────

// CancelRequest lets the original requester withdraw a pending request.
func (s *ApprovalService) CancelRequest(ctx context.Context, requestID, requesterID, reason string) error {
	req, _, err := s.loadPending(ctx, requestID)
	if err != nil {
		return err
	}
	if req.RequesterID != requesterID {
		return apperr.Unauthorized("only the requester can cancel the request")
	}

	now := s.now()
	entry := &repository.HistoryEntry{
		RequestID:   req.ID,
		StepOrder:   req.CurrentStep,
		Action:      repository.ActionCancel,
		Status:      repository.StatusCancelled,
		ApproverID:  requesterID,
		Comments:    reason,
		PerformedAt: now,
	}
	if err := s.requests.FinalizeWithHistory(ctx, req.ID, repository.StatusCancelled, now, entry); err != nil {
		return err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Msg("Approval request cancelled by requester")
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

// CanApprove reports whether the user may act on the request's current step,
// either directly or through an active delegation.
func (s *ApprovalService) CanApprove(ctx context.Context, requestID, userID string) (bool, error) {
	req, wf, err := s.loadPending(ctx, requestID)
	if err != nil {
		return false, err
	}
	if err := s.assertCanApprove(ctx, wf, req, userID); err != nil {
		if apperr.IsCode(err, apperr.CodeUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetRequest returns a request by id.
func (s *ApprovalService) GetRequest(ctx context.Context, requestID string) (*repository.ApprovalRequest, error) {
	return s.requests.Get(ctx, requestID)
}

// GetHistory returns a request's audit trail, oldest first.
func (s *ApprovalService) GetHistory(ctx context.Context, requestID string) ([]*repository.HistoryEntry, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.requests.ListHistory(ctx, requestID)
}

// GetPendingForUser returns the pending requests a user may act on: those
// whose current step names the user plus those reachable through the user's
// active delegations. An unscoped delegation matches every pending request;
// this mirrors the breadth of assertCanApprove.
func (s *ApprovalService) GetPendingForUser(ctx context.Context, userID string) ([]*repository.ApprovalRequest, error) {
	direct, err := s.requests.ListPendingForApprover(ctx, userID)
	if err != nil {
		return nil, err
	}

	delegations, err := s.delegations.FindActiveFor(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*repository.ApprovalRequest, len(direct))
	for _, req := range direct {
		byID[req.ID] = req
	}

	for _, d := range delegations {
		var delegated []*repository.ApprovalRequest
		if d.WorkflowID != nil {
			delegated, err = s.requests.ListPendingByWorkflow(ctx, *d.WorkflowID)
		} else {
			delegated, err = s.requests.ListPending(ctx)
		}
		if err != nil {
			return nil, err
		}
		for _, req := range delegated {
			byID[req.ID] = req
		}
	}

	requests := make([]*repository.ApprovalRequest, 0, len(byID))
	for _, req := range byID {
		requests = append(requests, req)
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].SubmittedAt.Before(requests[j].SubmittedAt)
	})
	return requests, nil
}

// ── Expiry sweep ─────────────────────────────────────────────────────────────

// ProcessExpiredRequests finalizes every pending request whose deadline has
// passed and returns the number of requests expired. Invoked periodically by
// the sweeper in cmd/server.
func (s *ApprovalService) ProcessExpiredRequests(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.requests.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, req := range expired {
		entry := &repository.HistoryEntry{
			RequestID:   req.ID,
			StepOrder:   req.CurrentStep,
			Action:      repository.ActionExpire,
			Status:      repository.StatusExpired,
			PerformedAt: now,
		}
		if err := s.requests.FinalizeWithHistory(ctx, req.ID, repository.StatusExpired, now, entry); err != nil {
			// Lost a race with a concurrent transition; skip.
			if apperr.IsCode(err, apperr.CodeInvalidState) {
				continue
			}
			return count, err
		}
		req.Status = repository.StatusExpired

		s.notifier.Notify(ctx, req, repository.NotifyRequestExpired, req.RequesterID,
			"Request expired",
			fmt.Sprintf("Your request %q expired before approval completed.", req.Title))
		count++
	}

	if count > 0 {
		s.log.Info().Int("expired", count).Msg("Expired stale approval requests")
	}
	return count, nil
}

// ── Internal helpers ─────────────────────────────────────────────────────────

// loadPending fetches a request and its workflow, requiring pending status.
func (s *ApprovalService) loadPending(ctx context.Context, requestID string) (*repository.ApprovalRequest, *repository.Workflow, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status != repository.StatusPending {
		return nil, nil, apperr.InvalidState(fmt.Sprintf("request is %s, not pending", req.Status))
	}

	wf, err := s.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, nil, err
	}
	return req, wf, nil
}

// assertCanApprove grants approval rights to the current step's named user
// or to anyone holding an active delegation. The delegation check is not
// scoped to this request's step or delegator: any active grant confers the
// delegator's full authority.
func (s *ApprovalService) assertCanApprove(ctx context.Context, wf *repository.Workflow, req *repository.ApprovalRequest, approverID string) error {
	step := wf.StepAt(req.CurrentStep)
	if step == nil {
		return apperr.InvalidState(fmt.Sprintf("request points at missing step %d", req.CurrentStep))
	}
	if step.ApproverType == repository.ApproverUser && step.ApproverID == approverID {
		return nil
	}

	delegations, err := s.delegations.FindActiveFor(ctx, approverID, s.now())
	if err != nil {
		return err
	}
	if len(delegations) > 0 {
		return nil
	}

	return apperr.Unauthorized("user is not an approver for the current step")
}

// stepApprovers resolves the users who must act on a step. Only user steps
// are resolvable; role and department resolution is an explicit capability
// gap surfaced as a configuration error.
func stepApprovers(step *repository.WorkflowStep) ([]string, error) {
	if step == nil {
		return nil, apperr.InvalidState("workflow step not found")
	}
	switch step.ApproverType {
	case repository.ApproverUser:
		return []string{step.ApproverID}, nil
	default:
		return nil, apperr.Unsupported(fmt.Sprintf(
			"approver type %q is not supported (step %d)", step.ApproverType, step.StepOrder))
	}
}

// requiredApprovals is the quota a step must collect before it closes.
// Sequential steps have a single expected approver, parallel and unanimous
// need every approver, majority needs more than half.
func requiredApprovals(t repository.ApprovalType, totalApprovers int) int {
	switch t {
	case repository.ApprovalSequential:
		return 1
	case repository.ApprovalMajority:
		return totalApprovers/2 + 1
	default: // parallel, unanimous
		return totalApprovers
	}
}

// notifyStepApprovers fans an approval_required notification out to every
// approver of the given step. Best effort by contract of NotificationSink.
func (s *ApprovalService) notifyStepApprovers(ctx context.Context, req *repository.ApprovalRequest, wf *repository.Workflow, stepOrder int) {
	step := wf.StepAt(stepOrder)
	approvers, err := stepApprovers(step)
	if err != nil {
		s.log.Warn().Err(err).
			Str("request_id", req.ID).
			Int("step", stepOrder).
			Msg("Could not resolve step approvers for notification")
		return
	}
	for _, approverID := range approvers {
		s.notifier.Notify(ctx, req, repository.NotifyApprovalRequired, approverID,
			"Approval required",
			fmt.Sprintf("Request %q is awaiting your approval (step %d).", req.Title, stepOrder))
	}
}
