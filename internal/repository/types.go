package repository

import "time"

// ── Approval workflow domain types ───────────────────────────────────────────

// ApprovalType is the aggregation rule applied when closing a workflow step.
type ApprovalType string

const (
	ApprovalSequential ApprovalType = "sequential"
	ApprovalParallel   ApprovalType = "parallel"
	ApprovalMajority   ApprovalType = "majority"
	ApprovalUnanimous  ApprovalType = "unanimous"
)

// RequestStatus is the lifecycle state of an approval request. Every status
// other than pending is terminal.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
	StatusExpired   RequestStatus = "expired"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool { return s != StatusPending }

// ApproverType identifies how a step's approver reference is resolved.
// Only ApproverUser is resolvable today; role and department steps are
// rejected at submission as an unsupported configuration.
type ApproverType string

const (
	ApproverUser       ApproverType = "user"
	ApproverRole       ApproverType = "role"
	ApproverDepartment ApproverType = "department"
)

// HistoryAction is the kind of event recorded in a request's audit trail.
type HistoryAction string

const (
	ActionSubmit   HistoryAction = "submit"
	ActionApprove  HistoryAction = "approve"
	ActionReject   HistoryAction = "reject"
	ActionDelegate HistoryAction = "delegate"
	ActionExpire   HistoryAction = "expire"
	ActionCancel   HistoryAction = "cancel"
)

// NotificationType classifies approval notifications.
type NotificationType string

const (
	NotifyApprovalRequired  NotificationType = "approval_required"
	NotifyRequestApproved   NotificationType = "request_approved"
	NotifyRequestRejected   NotificationType = "request_rejected"
	NotifyRequestExpired    NotificationType = "request_expired"
	NotifyApprovalDelegated NotificationType = "approval_delegated"
)

// WorkflowConditions gates workflow selection at submission. Amounts are in
// currency minor units; nil bounds are open. Metadata entries must match the
// submitted metadata exactly.
type WorkflowConditions struct {
	MinAmount *int64            `json:"min_amount,omitempty"`
	MaxAmount *int64            `json:"max_amount,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Matches reports whether a submission with the given amount and metadata
// satisfies the conditions.
func (c WorkflowConditions) Matches(amount *int64, metadata map[string]string) bool {
	if c.MinAmount != nil && (amount == nil || *amount < *c.MinAmount) {
		return false
	}
	if c.MaxAmount != nil && (amount == nil || *amount > *c.MaxAmount) {
		return false
	}
	for k, want := range c.Metadata {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// Workflow is a reusable approval routing template. Immutable once created;
// many requests reference one workflow.
type Workflow struct {
	ID               string
	Name             string
	EntityType       string
	ApprovalType     ApprovalType
	Conditions       WorkflowConditions
	Steps            []*WorkflowStep // ordered by StepOrder
	TimeoutHours     int
	EscalationEnable bool
	EscalationHours  int
	IsActive         bool
	CreatedAt        time.Time
}

// StepAt returns the step with the given 1-based order, or nil.
func (w *Workflow) StepAt(order int) *WorkflowStep {
	for _, s := range w.Steps {
		if s.StepOrder == order {
			return s
		}
	}
	return nil
}

// WorkflowStep is one approval gate within a workflow.
type WorkflowStep struct {
	ID               string
	WorkflowID       string
	StepOrder        int // 1-based, unique within the workflow
	ApproverType     ApproverType
	ApproverID       string
	MinAmount        *int64
	MaxAmount        *int64
	TimeoutHours     *int
	EscalationTarget *string
}

// ApprovalRequest is one business object routed through a workflow.
type ApprovalRequest struct {
	ID          string
	WorkflowID  string
	Title       string
	Description string
	EntityType  string
	EntityID    string
	Amount      *int64
	Metadata    map[string]string
	RequesterID string
	Status      RequestStatus
	CurrentStep int // valid step_order while Status == pending
	SubmittedAt time.Time
	ExpiresAt   time.Time
	CompletedAt *time.Time
}

// HistoryEntry is one immutable record in a request's audit trail. Entries
// are append-only and never mutated.
type HistoryEntry struct {
	ID            string
	RequestID     string
	StepOrder     int
	Action        HistoryAction
	Status        RequestStatus
	ApproverID    string // empty for system actions (expiry sweep)
	DelegatedFrom string
	Comments      string
	PerformedAt   time.Time
}

// Delegation is a time-bounded grant of one user's approval authority to
// another. Scoping fields are optional; nil means unscoped.
type Delegation struct {
	ID          string
	DelegatorID string
	DelegateID  string
	WorkflowID  *string
	EntityType  *string
	MaxAmount   *int64
	StartsAt    time.Time
	EndsAt      time.Time
	IsActive    bool
}

// ActiveAt reports whether the delegation is in force at the given instant.
// The validity window is [StartsAt, EndsAt).
func (d *Delegation) ActiveAt(at time.Time) bool {
	return d.IsActive && !at.Before(d.StartsAt) && at.Before(d.EndsAt)
}

// Notification is a per-recipient record written on every state transition.
// Delivery over the configured channels is the platform notification
// service's concern.
type Notification struct {
	ID          string
	RequestID   string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Channels    []string
	IsRead      bool
	IsSent      bool
	CreatedAt   time.Time
}

// ── Clinical assessment persistence types ────────────────────────────────────

// AssessmentRecord stores one computed Vanderbilt assessment. The report body
// is the scoring engine's output serialized as JSON; this package never
// interprets it.
type AssessmentRecord struct {
	ID         string
	PatientID  string
	AssessorID string
	Scale      string // e.g. "vanderbilt_parent"
	Responses  map[int]int
	Report     []byte // JSON AssessmentReport
	CreatedAt  time.Time
}
