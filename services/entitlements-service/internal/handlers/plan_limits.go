package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/slotwise/slotwise/libs/auth"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/evaluator"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
)

type Snapshots interface {
	Get(ctx context.Context, userID string) (model.PlanLimits, error)
	Refresh(ctx context.Context, userID string) (model.PlanLimits, error)
	Loading(userID string) bool
}

type Handler struct {
	snapshots Snapshots
	logger    *slog.Logger
}

func NewHandler(snapshots Snapshots, logger *slog.Logger) *Handler {
	return &Handler{snapshots: snapshots, logger: logger}
}

// Register mounts the plan limit routes behind token verification.
func (h *Handler) Register(mux *http.ServeMux, verifier *auth.Verifier) {
	mux.Handle("/api/v1/plan-limits", RequireAuth(http.HandlerFunc(h.Get), verifier))
	mux.Handle("/api/v1/plan-limits/refresh", RequireAuth(http.HandlerFunc(h.Refresh), verifier))
	mux.Handle("/api/v1/plan-limits/check", RequireAuth(http.HandlerFunc(h.Check), verifier))
	mux.Handle("/api/v1/admin/plan-limits", RequireAuth(RequireRole(http.HandlerFunc(h.AdminGet), "admin"), verifier))
}

type planLimitsResponse struct {
	PlanLimits model.PlanLimits `json:"plan_limits"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := ClaimsFromContext(r.Context()).Sub
	limits, err := h.snapshots.Get(r.Context(), userID)
	h.writeLimits(w, userID, limits, err)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := ClaimsFromContext(r.Context()).Sub
	limits, err := h.snapshots.Refresh(r.Context(), userID)
	h.writeLimits(w, userID, limits, err)
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if _, err := uuid.Parse(userID); err != nil {
		http.Error(w, "user_id must be a uuid", http.StatusBadRequest)
		return
	}
	limits, err := h.snapshots.Get(r.Context(), userID)
	h.writeLimits(w, userID, limits, err)
}

func (h *Handler) writeLimits(w http.ResponseWriter, userID string, limits model.PlanLimits, err error) {
	resp := planLimitsResponse{PlanLimits: limits, Loading: h.snapshots.Loading(userID)}
	if err != nil {
		var fe *evaluator.FetchError
		if errors.As(err, &fe) {
			h.logger.Error("plan limits unavailable", "user_id", userID, "stage", fe.Stage, "err", fe.Err)
		}
		resp.Error = "plan limits temporarily unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Actions a caller may ask about before mutating.
const (
	ActionCreateAppointment     = "create_appointment"
	ActionCreateBusiness        = "create_business"
	ActionAccessFinance         = "access_finance"
	ActionAccessAdvancedReports = "access_advanced_reports"
)

var errPaymentRequired = errors.New("plan limit reached (upgrade required)")

type checkRequest struct {
	Action string `json:"action"`
}

type checkResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	userID := ClaimsFromContext(r.Context()).Sub
	limits, err := h.snapshots.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("plan limit check failed", "user_id", userID, "action", req.Action, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, checkResponse{Reason: "plan limits temporarily unavailable"})
		return
	}

	allowed, known := Allows(limits, req.Action)
	if !known {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if !allowed {
		writeJSON(w, http.StatusPaymentRequired, checkResponse{Reason: denialReason(limits)})
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Allowed: true})
}

// Allows maps an action name to the matching permission on the snapshot.
func Allows(limits model.PlanLimits, action string) (allowed bool, known bool) {
	switch action {
	case ActionCreateAppointment:
		return limits.CanCreateAppointment, true
	case ActionCreateBusiness:
		return limits.CanCreateBusiness, true
	case ActionAccessFinance:
		return limits.CanAccessFinance, true
	case ActionAccessAdvancedReports:
		return limits.CanAccessAdvancedReports, true
	default:
		return false, false
	}
}

func denialReason(limits model.PlanLimits) string {
	switch {
	case limits.PlanExpired:
		return "plan expired (renewal required)"
	case !limits.Plan.Known():
		return "no active plan (upgrade required)"
	default:
		return errPaymentRequired.Error()
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
