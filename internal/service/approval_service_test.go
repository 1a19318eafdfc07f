package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
)

type approvalFixture struct {
	workflows   *memWorkflowStore
	requests    *memRequestStore
	delegations *memDelegationStore
	notifier    *recordingNotifier
	service     *ApprovalService
	now         time.Time
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	workflows := &memWorkflowStore{}
	requests := newMemRequestStore(workflows)
	delegations := &memDelegationStore{}
	notifier := &recordingNotifier{}

	f := &approvalFixture{
		workflows:   workflows,
		requests:    requests,
		delegations: delegations,
		notifier:    notifier,
		service:     NewApprovalService(workflows, requests, delegations, notifier, zerolog.Nop()),
		now:         time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *approvalFixture) addWorkflow(name, entityType string, approvalType repository.ApprovalType, approverIDs ...string) *repository.Workflow {
	wf := &repository.Workflow{
		Name:         name,
		EntityType:   entityType,
		ApprovalType: approvalType,
		TimeoutHours: 72,
		IsActive:     true,
	}
	for i, approverID := range approverIDs {
		wf.Steps = append(wf.Steps, &repository.WorkflowStep{
			StepOrder:    i + 1,
			ApproverType: repository.ApproverUser,
			ApproverID:   approverID,
		})
	}
	return f.workflows.add(wf)
}

func (f *approvalFixture) submit(t *testing.T, entityType string, amount int64) *SubmitResult {
	t.Helper()
	result, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType:  entityType,
		EntityID:    "entity-1",
		RequesterID: "requester-1",
		Title:       "Equipment purchase",
		Description: "Sensory room equipment",
		Amount:      &amount,
	})
	require.NoError(t, err)
	return result
}

// ── Submission ───────────────────────────────────────────────────────────────

func TestSubmitRequestRoutesToMatchingWorkflow(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2", "3")

	result := f.submit(t, "expense", 15000)

	assert.Equal(t, "expense approval", result.WorkflowName)
	assert.Equal(t, repository.StatusPending, result.Status)
	assert.Equal(t, 1, result.CurrentStep)
	assert.Equal(t, f.now.Add(72*time.Hour), result.ExpiresAt)

	// Step-1 approver was notified.
	required := f.notifier.byType(repository.NotifyApprovalRequired)
	require.Len(t, required, 1)
	assert.Equal(t, "2", required[0].RecipientID)
}

func TestSubmitRequestHonorsAmountConditions(t *testing.T) {
	f := newApprovalFixture(t)
	low := int64(1000)
	high := int64(100000)

	small := f.addWorkflow("small expense", "expense", repository.ApprovalSequential, "2")
	small.Conditions = repository.WorkflowConditions{MaxAmount: &low}
	large := f.addWorkflow("large expense", "expense", repository.ApprovalSequential, "5")
	large.Conditions = repository.WorkflowConditions{MinAmount: &low, MaxAmount: &high}

	result := f.submit(t, "expense", 15000)
	assert.Equal(t, "large expense", result.WorkflowName)

	result = f.submit(t, "expense", 500)
	assert.Equal(t, "small expense", result.WorkflowName)
}

func TestSubmitRequestHonorsMetadataConditions(t *testing.T) {
	f := newApprovalFixture(t)
	wf := f.addWorkflow("jeddah branch", "expense", repository.ApprovalSequential, "2")
	wf.Conditions = repository.WorkflowConditions{Metadata: map[string]string{"branch": "jeddah"}}

	_, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType:  "expense",
		EntityID:    "e1",
		RequesterID: "r1",
		Title:       "t",
		Metadata:    map[string]string{"branch": "riyadh"},
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeNoMatchingWorkflow))

	result, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType:  "expense",
		EntityID:    "e1",
		RequesterID: "r1",
		Title:       "t",
		Metadata:    map[string]string{"branch": "jeddah"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jeddah branch", result.WorkflowName)
}

func TestSubmitRequestWithNoWorkflowFails(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType:  "vacation",
		EntityID:    "e1",
		RequesterID: "r1",
		Title:       "t",
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeNoMatchingWorkflow))
}

func TestSubmitRequestValidatesFields(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("wf", "expense", repository.ApprovalSequential, "2")

	_, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType: "expense", EntityID: "e1", RequesterID: "r1",
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidInput))
}

func TestSubmitRequestRejectsRoleApproverSteps(t *testing.T) {
	f := newApprovalFixture(t)
	wf := f.addWorkflow("role workflow", "expense", repository.ApprovalSequential, "2")
	wf.Steps = append(wf.Steps, &repository.WorkflowStep{
		StepOrder:    2,
		ApproverType: repository.ApproverRole,
		ApproverID:   "finance_manager",
	})

	_, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType: "expense", EntityID: "e1", RequesterID: "r1", Title: "t",
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeUnsupported))
}

// ── Sequential flow ──────────────────────────────────────────────────────────

func TestSequentialWorkflowWalksEveryStep(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2", "3")
	result := f.submit(t, "expense", 15000)
	ctx := context.Background()

	// Step 1 approved by approver "2": stays pending at step 2.
	decision, err := f.service.ApproveRequest(ctx, result.RequestID, "2", "ok")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, decision.Status)
	assert.Equal(t, 2, decision.CurrentStep)

	// Step 2 approved by approver "3": fully approved.
	decision, err = f.service.ApproveRequest(ctx, result.RequestID, "3", "ok")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, decision.Status)
	require.NotNil(t, decision.CompletedAt)

	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, req.Status)
	assert.NotNil(t, req.CompletedAt)

	// Requester heard about the completion.
	approved := f.notifier.byType(repository.NotifyRequestApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, "requester-1", approved[0].RecipientID)
}

func TestSequentialCurrentStepStrictlyIncreases(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("long chain", "expense", repository.ApprovalSequential, "a", "b", "c", "d")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	approvers := []string{"a", "b", "c", "d"}
	for i, approver := range approvers {
		req, err := f.service.GetRequest(ctx, result.RequestID)
		require.NoError(t, err)
		assert.Equal(t, i+1, req.CurrentStep)

		_, err = f.service.ApproveRequest(ctx, result.RequestID, approver, "")
		require.NoError(t, err)
	}

	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, req.Status)
}

func TestApproveByWrongUserIsUnauthorized(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2", "3")
	result := f.submit(t, "expense", 15000)

	// Approver "3" holds step 2, not step 1, and has no delegation.
	_, err := f.service.ApproveRequest(context.Background(), result.RequestID, "3", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))
}

func TestApproveTerminalRequestIsInvalidState(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("one step", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	_, err := f.service.ApproveRequest(ctx, result.RequestID, "2", "")
	require.NoError(t, err)

	_, err = f.service.ApproveRequest(ctx, result.RequestID, "2", "again")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestApproveUnknownRequestIsNotFound(t *testing.T) {
	f := newApprovalFixture(t)
	_, err := f.service.ApproveRequest(context.Background(), "missing", "2", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

// ── Quota semantics ──────────────────────────────────────────────────────────

func TestRequiredApprovalsPerType(t *testing.T) {
	cases := []struct {
		approvalType repository.ApprovalType
		total        int
		want         int
	}{
		{repository.ApprovalSequential, 1, 1},
		{repository.ApprovalSequential, 5, 1},
		{repository.ApprovalParallel, 1, 1},
		{repository.ApprovalParallel, 4, 4},
		{repository.ApprovalMajority, 1, 1},
		{repository.ApprovalMajority, 3, 2},
		{repository.ApprovalMajority, 4, 3},
		{repository.ApprovalMajority, 5, 3},
		{repository.ApprovalUnanimous, 1, 1},
		{repository.ApprovalUnanimous, 5, 5},
	}
	for _, tc := range cases {
		got := requiredApprovals(tc.approvalType, tc.total)
		assert.Equal(t, tc.want, got, "%s with %d approvers", tc.approvalType, tc.total)
	}
}

func TestParallelWorkflowClosesStepAtQuota(t *testing.T) {
	// Each user step resolves one approver, so parallel closes per step like
	// sequential; the quota path is what differs and is exercised here.
	f := newApprovalFixture(t)
	f.addWorkflow("parallel review", "incident", repository.ApprovalParallel, "7", "8")
	result := f.submit(t, "incident", 0)
	ctx := context.Background()

	decision, err := f.service.ApproveRequest(ctx, result.RequestID, "7", "")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, decision.Status)
	assert.Equal(t, 2, decision.CurrentStep)
	assert.Equal(t, 1, decision.RequiredCount)

	decision, err = f.service.ApproveRequest(ctx, result.RequestID, "8", "")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, decision.Status)
}

func TestMajorityWorkflowUsesHalfPlusOneQuota(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("majority review", "policy", repository.ApprovalMajority, "9")
	result := f.submit(t, "policy", 0)

	decision, err := f.service.ApproveRequest(context.Background(), result.RequestID, "9", "")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, decision.Status)
	assert.Equal(t, 1, decision.RequiredCount)
}

// ── Rejection ────────────────────────────────────────────────────────────────

func TestRejectShortCircuitsRemainingSteps(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("three steps", "expense", repository.ApprovalSequential, "a", "b", "c")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	// Walk to step 2, then reject there.
	_, err := f.service.ApproveRequest(ctx, result.RequestID, "a", "")
	require.NoError(t, err)

	decision, err := f.service.RejectRequest(ctx, result.RequestID, "b", "budget exceeded")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, decision.Status)
	require.NotNil(t, decision.CompletedAt)

	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, req.Status)

	rejected := f.notifier.byType(repository.NotifyRequestRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "requester-1", rejected[0].RecipientID)
	assert.Contains(t, rejected[0].Message, "budget exceeded")

	// Terminal: step-3 approver can no longer act.
	_, err = f.service.ApproveRequest(ctx, result.RequestID, "c", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("one step", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)

	_, err := f.service.RejectRequest(context.Background(), result.RequestID, "2", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidInput))
}

// ── Delegation ───────────────────────────────────────────────────────────────

func TestActiveDelegationGrantsApprovalRights(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	f.delegations.add(&repository.Delegation{
		DelegatorID: "2",
		DelegateID:  "deputy",
		StartsAt:    f.now.Add(-time.Hour),
		EndsAt:      f.now.Add(time.Hour),
		IsActive:    true,
	})
	result := f.submit(t, "expense", 100)

	decision, err := f.service.ApproveRequest(context.Background(), result.RequestID, "deputy", "covering")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, decision.Status)
}

func TestExpiredDelegationGrantsNothing(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	f.delegations.add(&repository.Delegation{
		DelegatorID: "2",
		DelegateID:  "deputy",
		StartsAt:    f.now.Add(-48 * time.Hour),
		EndsAt:      f.now.Add(-24 * time.Hour),
		IsActive:    true,
	})
	result := f.submit(t, "expense", 100)

	_, err := f.service.ApproveRequest(context.Background(), result.RequestID, "deputy", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))
}

func TestDelegationWindowIsHalfOpen(t *testing.T) {
	f := newApprovalFixture(t)
	d := &repository.Delegation{
		DelegatorID: "2",
		DelegateID:  "deputy",
		StartsAt:    f.now,
		EndsAt:      f.now.Add(time.Hour),
		IsActive:    true,
	}
	assert.True(t, d.ActiveAt(f.now))
	assert.True(t, d.ActiveAt(f.now.Add(59*time.Minute)))
	assert.False(t, d.ActiveAt(f.now.Add(time.Hour)))
	assert.False(t, d.ActiveAt(f.now.Add(-time.Second)))
}

func TestDelegateApprovalRecordsHistoryAndNotifies(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	err := f.service.DelegateApproval(ctx, result.RequestID, "2", "deputy", "on leave")
	require.NoError(t, err)

	history, err := f.service.GetHistory(ctx, result.RequestID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, repository.ActionDelegate, last.Action)
	assert.Equal(t, "deputy", last.ApproverID)
	assert.Equal(t, "2", last.DelegatedFrom)

	// The request itself stays pending.
	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, req.Status)

	delegated := f.notifier.byType(repository.NotifyApprovalDelegated)
	require.Len(t, delegated, 1)
	assert.Equal(t, "deputy", delegated[0].RecipientID)
}

func TestDelegateApprovalRequiresAuthority(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)

	err := f.service.DelegateApproval(context.Background(), result.RequestID, "stranger", "deputy", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))
}

// ── Pending queries ──────────────────────────────────────────────────────────

func TestGetPendingForUserSeesCurrentStepOnly(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2", "3")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	pending, err := f.service.GetPendingForUser(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// Step-2 approver has nothing yet.
	pending, err = f.service.GetPendingForUser(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.service.ApproveRequest(ctx, result.RequestID, "2", "")
	require.NoError(t, err)

	pending, err = f.service.GetPendingForUser(ctx, "3")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGetPendingForUserIncludesDelegatedWork(t *testing.T) {
	f := newApprovalFixture(t)
	expense := f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	f.addWorkflow("leave approval", "leave", repository.ApprovalSequential, "5")
	f.submit(t, "expense", 100)
	_, err := f.service.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType: "leave", EntityID: "e2", RequesterID: "r2", Title: "annual leave",
	})
	require.NoError(t, err)

	// Workflow-scoped delegation only surfaces that workflow's requests.
	f.delegations.add(&repository.Delegation{
		DelegatorID: "2",
		DelegateID:  "deputy",
		WorkflowID:  &expense.ID,
		StartsAt:    f.now.Add(-time.Hour),
		EndsAt:      f.now.Add(time.Hour),
		IsActive:    true,
	})
	pending, err := f.service.GetPendingForUser(context.Background(), "deputy")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "expense", pending[0].EntityType)

	// An unscoped delegation surfaces every pending request.
	f.delegations.add(&repository.Delegation{
		DelegatorID: "5",
		DelegateID:  "super-deputy",
		StartsAt:    f.now.Add(-time.Hour),
		EndsAt:      f.now.Add(time.Hour),
		IsActive:    true,
	})
	pending, err = f.service.GetPendingForUser(context.Background(), "super-deputy")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

// ── Cancellation ─────────────────────────────────────────────────────────────

func TestCancelRequestByRequester(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	err := f.service.CancelRequest(ctx, result.RequestID, "someone-else", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeUnauthorized))

	err = f.service.CancelRequest(ctx, result.RequestID, "requester-1", "no longer needed")
	require.NoError(t, err)

	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCancelled, req.Status)

	_, err = f.service.ApproveRequest(ctx, result.RequestID, "2", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

// ── Expiry sweep ─────────────────────────────────────────────────────────────

func TestProcessExpiredRequests(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2")
	result := f.submit(t, "expense", 100)
	ctx := context.Background()

	// Nothing due yet.
	count, err := f.service.ProcessExpiredRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Jump past the 72h deadline.
	f.now = f.now.Add(73 * time.Hour)
	count, err = f.service.ProcessExpiredRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	req, err := f.service.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusExpired, req.Status)

	history, err := f.service.GetHistory(ctx, result.RequestID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, repository.ActionExpire, last.Action)
	assert.Empty(t, last.ApproverID)

	expired := f.notifier.byType(repository.NotifyRequestExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "requester-1", expired[0].RecipientID)

	// Terminal: the sweep never touches it again, nor can approvers.
	count, err = f.service.ProcessExpiredRequests(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = f.service.ApproveRequest(ctx, result.RequestID, "2", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

// ── History ──────────────────────────────────────────────────────────────────

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	f := newApprovalFixture(t)
	f.addWorkflow("expense approval", "expense", repository.ApprovalSequential, "2", "3")
	result := f.submit(t, "expense", 15000)
	ctx := context.Background()

	f.now = f.now.Add(time.Minute)
	_, err := f.service.ApproveRequest(ctx, result.RequestID, "2", "first")
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.service.ApproveRequest(ctx, result.RequestID, "3", "second")
	require.NoError(t, err)

	history, err := f.service.GetHistory(ctx, result.RequestID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, repository.ActionSubmit, history[0].Action)
	assert.Equal(t, repository.ActionApprove, history[1].Action)
	assert.Equal(t, repository.ActionApprove, history[2].Action)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].PerformedAt.Before(history[i-1].PerformedAt))
	}
}

// flakyRequestStore fails the next finalize once, simulating a transaction
// that rolls back at the store layer.
type flakyRequestStore struct {
	*memRequestStore
	finalizeErr error
}

func (s *flakyRequestStore) FinalizeWithHistory(ctx context.Context, id string, status repository.RequestStatus, completedAt time.Time, entry *repository.HistoryEntry) error {
	if s.finalizeErr != nil {
		err := s.finalizeErr
		s.finalizeErr = nil
		return err
	}
	return s.memRequestStore.FinalizeWithHistory(ctx, id, status, completedAt, entry)
}

func TestFailedRejectLeavesNoHistoryBehind(t *testing.T) {
	workflows := &memWorkflowStore{}
	requests := &flakyRequestStore{memRequestStore: newMemRequestStore(workflows)}
	delegations := &memDelegationStore{}
	notifier := &recordingNotifier{}
	svc := NewApprovalService(workflows, requests, delegations, notifier, zerolog.Nop())

	wf := &repository.Workflow{
		Name:         "expense approval",
		EntityType:   "expense",
		ApprovalType: repository.ApprovalSequential,
		TimeoutHours: 72,
		IsActive:     true,
		Steps: []*repository.WorkflowStep{
			{StepOrder: 1, ApproverType: repository.ApproverUser, ApproverID: "2"},
		},
	}
	workflows.add(wf)

	amount := int64(100)
	result, err := svc.SubmitRequest(context.Background(), SubmitRequestInput{
		EntityType:  "expense",
		EntityID:    "entity-1",
		RequesterID: "requester-1",
		Title:       "Equipment purchase",
		Amount:      &amount,
	})
	require.NoError(t, err)
	ctx := context.Background()

	requests.finalizeErr = apperr.Wrap(assert.AnError, apperr.CodeInternal, "failed to finalize approval request")
	_, err = svc.RejectRequest(ctx, result.RequestID, "2", "budget exceeded")
	require.Error(t, err)

	// The failed transition must not leave a reject entry behind.
	req, err := svc.GetRequest(ctx, result.RequestID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, req.Status)

	history, err := svc.GetHistory(ctx, result.RequestID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, repository.ActionSubmit, history[0].Action)

	// Once the store recovers, the same rejection goes through cleanly.
	decision, err := svc.RejectRequest(ctx, result.RequestID, "2", "budget exceeded")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, decision.Status)

	history, err = svc.GetHistory(ctx, result.RequestID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, repository.ActionReject, history[1].Action)
}
