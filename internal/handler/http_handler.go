package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/alawael/be-rehab-core/internal/apperr"
	"github.com/alawael/be-rehab-core/internal/repository"
	"github.com/alawael/be-rehab-core/internal/service"
)

// HTTPHandler exposes the approval, assessment, and notification services
// over JSON.
type HTTPHandler struct {
	approvals     *service.ApprovalService
	assessments   *service.AssessmentService
	notifications *service.NotificationService
	log           zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(approvals *service.ApprovalService, assessments *service.AssessmentService, notifications *service.NotificationService, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		approvals:     approvals,
		assessments:   assessments,
		notifications: notifications,
		log:           log,
	}
}

// ── Workflows ────────────────────────────────────────────────────────────────

// CreateWorkflow handles POST /api/v1/workflows.
func (h *HTTPHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var in service.CreateWorkflowInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	wf, err := h.approvals.CreateWorkflow(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"workflow_id": wf.ID})
}

// ── Delegation grants ────────────────────────────────────────────────────────

// GrantDelegation handles POST /api/v1/delegations.
func (h *HTTPHandler) GrantDelegation(w http.ResponseWriter, r *http.Request) {
	var in service.GrantDelegationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.approvals.GrantDelegation(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"delegation_id": d.ID})
}

// RevokeDelegation handles POST /api/v1/delegations/revoke.
func (h *HTTPHandler) RevokeDelegation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DelegationID string `json:"delegation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.approvals.RevokeDelegation(r.Context(), in.DelegationID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// ── Notifications ────────────────────────────────────────────────────────────

// ListNotifications handles GET /api/v1/notifications?user_id=&unread=.
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.notifications.ListNotifications(r.Context(), userID, unreadOnly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead handles POST /api/v1/notifications/read.
func (h *HTTPHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NotificationID string `json:"notification_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.notifications.MarkNotificationRead(r.Context(), in.NotificationID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

// ── Approvals ────────────────────────────────────────────────────────────────

// SubmitRequest handles POST /api/v1/approvals/submit.
func (h *HTTPHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var in service.SubmitRequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.SubmitRequest(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

type decisionRequest struct {
	RequestID  string `json:"request_id"`
	ApproverID string `json:"approver_id"`
	Comments   string `json:"comments"`
	Reason     string `json:"reason"`
}

// ApproveRequest handles POST /api/v1/approvals/approve.
func (h *HTTPHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.ApproveRequest(r.Context(), in.RequestID, in.ApproverID, in.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// RejectRequest handles POST /api/v1/approvals/reject.
func (h *HTTPHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var in decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.approvals.RejectRequest(r.Context(), in.RequestID, in.ApproverID, in.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type delegateRequest struct {
	RequestID   string `json:"request_id"`
	DelegatorID string `json:"delegator_id"`
	DelegateID  string `json:"delegate_id"`
	Reason      string `json:"reason"`
}

// DelegateApproval handles POST /api/v1/approvals/delegate.
func (h *HTTPHandler) DelegateApproval(w http.ResponseWriter, r *http.Request) {
	var in delegateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.approvals.DelegateApproval(r.Context(), in.RequestID, in.DelegatorID, in.DelegateID, in.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"delegated": true})
}

type cancelRequest struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	Reason      string `json:"reason"`
}

// CancelRequest handles POST /api/v1/approvals/cancel.
func (h *HTTPHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	var in cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.approvals.CancelRequest(r.Context(), in.RequestID, in.RequesterID, in.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// GetPending handles GET /api/v1/approvals/pending?user_id=.
func (h *HTTPHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	requests, err := h.approvals.GetPendingForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// GetRequest handles GET /api/v1/approvals/get?request_id=&user_id=. When
// user_id is supplied the response reports whether that user may act on the
// request's current step.
func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	req, err := h.approvals.GetRequest(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{"request": req}
	if userID := r.URL.Query().Get("user_id"); userID != "" && req.Status == repository.StatusPending {
		canApprove, err := h.approvals.CanApprove(r.Context(), requestID, userID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp["can_approve"] = canApprove
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetHistory handles GET /api/v1/approvals/history?request_id=.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	entries, err := h.approvals.GetHistory(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ── Assessments ──────────────────────────────────────────────────────────────

type scoreRequest struct {
	Responses map[int]int `json:"responses"`
}

// ScoreAssessment handles POST /api/v1/assessments/score: pure scoring,
// nothing persisted.
func (h *HTTPHandler) ScoreAssessment(w http.ResponseWriter, r *http.Request) {
	var in scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.assessments.ScoreOnly(in.Responses)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// CreateAssessment handles POST /api/v1/assessments: score and persist.
func (h *HTTPHandler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	var in service.ScoreAssessmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, report, err := h.assessments.ScoreAndStore(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"assessment_id": rec.ID,
		"report":        report,
	})
}

// GetAssessment handles GET /api/v1/assessments/get?id=.
func (h *HTTPHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.assessments.GetAssessment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListAssessments handles GET /api/v1/assessments?patient_id=.
func (h *HTTPHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	patientID := r.URL.Query().Get("patient_id")

	records, err := h.assessments.ListPatientAssessments(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// ── Response helpers ─────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}

func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidInput, apperr.CodeNoMatchingWorkflow:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusForbidden
	case apperr.CodeInvalidState, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
