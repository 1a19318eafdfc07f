package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
)

// In-memory stores used by the service tests. Explicit injected objects, one
// per test, mirroring the conditional-update guarantees of the SQL
// repositories.

type memWorkflowStore struct {
	mu        sync.Mutex
	workflows []*repository.Workflow
}

func (s *memWorkflowStore) add(wf *repository.Workflow) *repository.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}
	for _, step := range wf.Steps {
		step.WorkflowID = wf.ID
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
	}
	s.workflows = append(s.workflows, wf)
	return wf
}

func (s *memWorkflowStore) Create(_ context.Context, wf *repository.Workflow) error {
	s.add(wf)
	return nil
}

func (s *memWorkflowStore) FindActiveByEntityType(_ context.Context, entityType string) ([]*repository.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.Workflow
	for _, wf := range s.workflows {
		if wf.IsActive && wf.EntityType == entityType {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (s *memWorkflowStore) GetByID(_ context.Context, id string) (*repository.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wf := range s.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return nil, apperr.NotFound("workflow", id)
}

type memRequestStore struct {
	mu        sync.Mutex
	workflows *memWorkflowStore
	requests  map[string]*repository.ApprovalRequest
	history   []*repository.HistoryEntry
}

func newMemRequestStore(workflows *memWorkflowStore) *memRequestStore {
	return &memRequestStore{
		workflows: workflows,
		requests:  make(map[string]*repository.ApprovalRequest),
	}
}

func (s *memRequestStore) Create(_ context.Context, req *repository.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.NewString()
	s.requests[req.ID] = req
	s.history = append(s.history, &repository.HistoryEntry{
		ID:          uuid.NewString(),
		RequestID:   req.ID,
		StepOrder:   1,
		Action:      repository.ActionSubmit,
		Status:      repository.StatusPending,
		ApproverID:  req.RequesterID,
		PerformedAt: req.SubmittedAt,
	})
	return nil
}

func (s *memRequestStore) Get(_ context.Context, id string) (*repository.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("approval_request", id)
	}
	return req, nil
}

func (s *memRequestStore) FinalizeWithHistory(_ context.Context, id string, status repository.RequestStatus, completedAt time.Time, entry *repository.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return apperr.NotFound("approval_request", id)
	}
	if req.Status != repository.StatusPending {
		return apperr.InvalidState("request is not pending")
	}
	req.Status = status
	req.CompletedAt = &completedAt
	entry.ID = uuid.NewString()
	s.history = append(s.history, entry)
	return nil
}

func (s *memRequestStore) AdvanceWithHistory(_ context.Context, id string, fromStep, toStep int, entry *repository.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return apperr.NotFound("approval_request", id)
	}
	if req.Status != repository.StatusPending || req.CurrentStep != fromStep {
		return apperr.InvalidState("request is not pending at the expected step")
	}
	req.CurrentStep = toStep
	entry.ID = uuid.NewString()
	s.history = append(s.history, entry)
	return nil
}

func (s *memRequestStore) AppendHistory(_ context.Context, entry *repository.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	s.history = append(s.history, entry)
	return nil
}

func (s *memRequestStore) ListHistory(_ context.Context, requestID string) ([]*repository.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.HistoryEntry
	for _, e := range s.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PerformedAt.Before(out[j].PerformedAt) })
	return out, nil
}

func (s *memRequestStore) CountStepApprovals(_ context.Context, requestID string, stepOrder int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	approvers := map[string]struct{}{}
	for _, e := range s.history {
		if e.RequestID == requestID && e.StepOrder == stepOrder && e.Action == repository.ActionApprove {
			approvers[e.ApproverID] = struct{}{}
		}
	}
	return len(approvers), nil
}

func (s *memRequestStore) ListPendingForApprover(ctx context.Context, userID string) ([]*repository.ApprovalRequest, error) {
	pending, _ := s.ListPending(ctx)
	var out []*repository.ApprovalRequest
	for _, req := range pending {
		wf, err := s.workflows.GetByID(ctx, req.WorkflowID)
		if err != nil {
			continue
		}
		step := wf.StepAt(req.CurrentStep)
		if step != nil && step.ApproverType == repository.ApproverUser && step.ApproverID == userID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *memRequestStore) ListPendingByWorkflow(_ context.Context, workflowID string) ([]*repository.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.ApprovalRequest
	for _, req := range s.requests {
		if req.Status == repository.StatusPending && req.WorkflowID == workflowID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *memRequestStore) ListPending(_ context.Context) ([]*repository.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.ApprovalRequest
	for _, req := range s.requests {
		if req.Status == repository.StatusPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *memRequestStore) ListExpired(_ context.Context, now time.Time) ([]*repository.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.ApprovalRequest
	for _, req := range s.requests {
		if req.Status == repository.StatusPending && req.ExpiresAt.Before(now) {
			out = append(out, req)
		}
	}
	return out, nil
}

type memDelegationStore struct {
	mu          sync.Mutex
	delegations []*repository.Delegation
}

func (s *memDelegationStore) add(d *repository.Delegation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	s.delegations = append(s.delegations, d)
}

func (s *memDelegationStore) Create(_ context.Context, d *repository.Delegation) error {
	s.add(d)
	return nil
}

func (s *memDelegationStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.delegations {
		if d.ID == id {
			d.IsActive = false
			return nil
		}
	}
	return apperr.NotFound("delegation", id)
}

func (s *memDelegationStore) FindActiveFor(_ context.Context, userID string, at time.Time) ([]*repository.Delegation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repository.Delegation
	for _, d := range s.delegations {
		if d.DelegateID == userID && d.ActiveAt(at) {
			out = append(out, d)
		}
	}
	return out, nil
}

// recordedNotification captures one Notify call.
type recordedNotification struct {
	RequestID   string
	Type        repository.NotificationType
	RecipientID string
	Title       string
	Message     string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (n *recordingNotifier) Notify(_ context.Context, req *repository.ApprovalRequest, ntype repository.NotificationType, recipientID, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{
		RequestID:   req.ID,
		Type:        ntype,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
	})
}

func (n *recordingNotifier) byType(ntype repository.NotificationType) []recordedNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedNotification
	for _, rec := range n.sent {
		if rec.Type == ntype {
			out = append(out, rec)
		}
	}
	return out
}
