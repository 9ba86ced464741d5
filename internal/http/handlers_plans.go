package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"plata/internal/core"
	"plata/internal/log"
)

const listingCacheKey = "display_plans"

type planRequest struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CategoryID  string `json:"category_id,omitempty"`
	WalletID    string `json:"wallet_id,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Frequency   string `json:"frequency"`
}

type planResponse struct {
	ID                string  `json:"id"`
	Description       string  `json:"description"`
	Type              string  `json:"type"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	CategoryID        string  `json:"category_id,omitempty"`
	WalletID          string  `json:"wallet_id,omitempty"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date,omitempty"`
	Frequency         string  `json:"frequency"`
	LastExecutionDate string  `json:"last_execution_date,omitempty"`
	NextExecutionDate string  `json:"next_execution_date"`
	IsActive          bool    `json:"is_active"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type displayPlanResponse struct {
	planResponse
	GroupSize      int      `json:"group_size"`
	MemberIDs      []string `json:"member_ids"`
	ExecutedCount  int64    `json:"executed_count"`
	ExecutedTotal  float64  `json:"executed_total"`
	ExecutedLast   string   `json:"executed_last,omitempty"`
	Accrued        float64  `json:"accrued"`
	Projected      *float64 `json:"projected"`
	AccruedPercent float64  `json:"accrued_percent"`
	ElapsedCount   int      `json:"elapsed_count"`
	TotalCount     *int     `json:"total_count"`
}

func (req planRequest) toPlan() (core.Plan, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Plan{}, err
	}

	p := core.Plan{
		Description: sanitizeInput(req.Description),
		Type:        core.TransactionType(req.Type),
		Amount:      core.Money{Cents: cents},
		Currency:    sanitizeInput(req.Currency),
		CategoryID:  sanitizeInput(req.CategoryID),
		WalletID:    sanitizeInput(req.WalletID),
		Frequency:   core.Frequency(req.Frequency),
	}

	if p.StartDate, err = parseTimestamp(req.StartDate); err != nil {
		return core.Plan{}, errors.New("invalid start_date")
	}
	if req.EndDate != "" {
		if p.EndDate, err = parseTimestamp(req.EndDate); err != nil {
			return core.Plan{}, errors.New("invalid end_date")
		}
	}
	return p, nil
}

func toPlanResponse(p core.Plan) planResponse {
	resp := planResponse{
		ID:                p.ID,
		Description:       p.Description,
		Type:              string(p.Type),
		Amount:            p.Amount.Units(),
		Currency:          p.Currency,
		CategoryID:        p.CategoryID,
		WalletID:          p.WalletID,
		StartDate:         p.StartDate.Format(time.RFC3339),
		Frequency:         string(p.Frequency),
		NextExecutionDate: p.NextExecutionDate.Format(time.RFC3339),
		IsActive:          p.IsActive,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
	if !p.EndDate.IsZero() {
		resp.EndDate = p.EndDate.Format(time.RFC3339)
	}
	if !p.LastExecutionDate.IsZero() {
		resp.LastExecutionDate = p.LastExecutionDate.Format(time.RFC3339)
	}
	return resp
}

func toDisplayPlanResponse(d core.DisplayPlan) displayPlanResponse {
	resp := displayPlanResponse{
		planResponse:   toPlanResponse(d.Plan),
		GroupSize:      d.GroupSize,
		MemberIDs:      d.MemberIDs,
		ExecutedCount:  d.ExecutedCount,
		ExecutedTotal:  d.ExecutedTotal.Units(),
		Accrued:        d.Accrued.Units(),
		AccruedPercent: d.AccruedPercent,
		ElapsedCount:   d.ElapsedCount,
	}
	if !d.ExecutedLast.IsZero() {
		resp.ExecutedLast = d.ExecutedLast.Format(time.RFC3339)
	}
	if d.HasProjection {
		projected := d.Projected.Units()
		resp.Projected = &projected
	}
	if d.HasTotalCount {
		total := d.TotalCount
		resp.TotalCount = &total
	}
	return resp
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.listingCache.Get(listingCacheKey); ok {
		writeDisplayPlans(w, cached)
		return
	}

	display, err := s.plans.ListDisplayPlans(r.Context(), s.clock())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list plans", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load plans")
		return
	}

	s.listingCache.Set(listingCacheKey, display)
	writeDisplayPlans(w, display)
}

func writeDisplayPlans(w http.ResponseWriter, display []core.DisplayPlan) {
	out := make([]displayPlanResponse, len(display))
	for i, d := range display {
		out[i] = toDisplayPlanResponse(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := req.toPlan()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.plans.CreatePlan(r.Context(), p, s.clock())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to create plan", log.FieldError, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.listingCache.Purge()
	writeJSON(w, http.StatusCreated, toPlanResponse(created))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.plans.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := req.toPlan()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = r.PathValue("id")

	updated, err := s.plans.UpdatePlan(r.Context(), p, s.clock())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to update plan", log.FieldError, err, log.FieldPlanID, p.ID)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.listingCache.Purge()
	writeJSON(w, http.StatusOK, toPlanResponse(updated))
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.plans.DeletePlan(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to delete plan", log.FieldError, err, log.FieldPlanID, id)
		writeError(w, http.StatusInternalServerError, "failed to delete plan")
		return
	}

	s.listingCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePausePlan(w http.ResponseWriter, r *http.Request) {
	s.setPlanActive(w, r, false)
}

func (s *Server) handleResumePlan(w http.ResponseWriter, r *http.Request) {
	s.setPlanActive(w, r, true)
}

func (s *Server) setPlanActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := r.PathValue("id")
	if err := s.plans.SetActive(r.Context(), id, active, s.clock()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to change plan state", log.FieldError, err, log.FieldPlanID, id)
		writeError(w, http.StatusInternalServerError, "failed to change plan state")
		return
	}

	s.listingCache.Purge()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_active": active})
}
