package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartfriend/mortgage-advisor/internal/lead"
	"github.com/smartfriend/mortgage-advisor/internal/middleware"
	"github.com/smartfriend/mortgage-advisor/internal/model"
	"github.com/smartfriend/mortgage-advisor/internal/session"
	"github.com/smartfriend/mortgage-advisor/pkg/logger"
	"github.com/smartfriend/mortgage-advisor/pkg/metrics"
)

// LeadHandler captures contact details volunteered during a conversation and
// exposes the captured list to authorized operators.
type LeadHandler struct {
	leads    *lead.FileStore
	sessions session.Store
	logger   *logger.Logger
}

func NewLeadHandler(leads *lead.FileStore, sessions session.Store, log *logger.Logger) *LeadHandler {
	return &LeadHandler{
		leads:    leads,
		sessions: sessions,
		logger:   log,
	}
}

// Capture handles POST /api/v1/leads.
func (h *LeadHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req model.LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.sessions.Exists(req.SessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := middleware.ValidateLeadFields(req.Name, req.Email, req.Phone); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.leads.Save(req.SessionID, req.Name, req.Email, req.Phone); err != nil {
		h.logger.Error("failed to persist lead",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save contact details")
		return
	}

	metrics.LeadsCapturedTotal.Inc()
	h.logger.Info("lead captured", zap.String("session_id", req.SessionID))

	writeJSON(w, http.StatusOK, model.LeadResponse{
		Success: true,
		Message: "Thank you! Our mortgage specialist will contact you shortly.",
	})
}

// List handles GET /api/v1/admin/leads. Requires the leads:read scope,
// enforced by middleware on the route.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	leads, err := h.leads.List()
	if err != nil {
		h.logger.Error("failed to read leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read leads")
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}
