package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/services"
	"github.com/sawanruparel/web-presence/access-api/v1/utils"
)

// AdminHandler serves the API-key protected /api/internal endpoints
type AdminHandler struct {
	rules *services.RuleService
	logs  *services.LogService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(rules *services.RuleService, logs *services.LogService) *AdminHandler {
	return &AdminHandler{rules: rules, logs: logs}
}

// CreateRule handles POST /api/internal/access-rules
func (h *AdminHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccessRuleRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithErrorDetails(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid request body", err)
		return
	}

	rule, err := h.rules.CreateRule(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, rule)
}

// ListRules handles GET /api/internal/access-rules?type=&mode=
func (h *AdminHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rules, err := h.rules.ListRules(r.Context(), q.Get("type"), q.Get("mode"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rules)
}

// GetRule handles GET /api/internal/access-rules/{type}/{slug}
func (h *AdminHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "slug"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/internal/access-rules/{type}/{slug}
func (h *AdminHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAccessRuleRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithErrorDetails(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid request body", err)
		return
	}

	rule, err := h.rules.UpdateRule(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "slug"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/internal/access-rules/{type}/{slug}
func (h *AdminHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "slug")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddEmail handles POST /api/internal/access-rules/{type}/{slug}/emails
func (h *AdminHandler) AddEmail(w http.ResponseWriter, r *http.Request) {
	var req models.AddEmailRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		utils.RespondWithErrorDetails(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid request body", err)
		return
	}

	rule, err := h.rules.AddEmail(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "slug"), req.Email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

// RemoveEmail handles DELETE /api/internal/access-rules/{type}/{slug}/emails/{email}
func (h *AdminHandler) RemoveEmail(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "invalid email parameter")
		return
	}

	rule, err := h.rules.RemoveEmail(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "slug"), email)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, rule)
}

// ListLogs handles GET /api/internal/logs
// Query: type, slug, failed=true|granted=true|false, start, end, page, limit
func (h *AdminHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parseIntParam(q, "page")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	limit, err := parseIntParam(q, "limit")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	granted, err := parseGranted(q)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}
	start, end, err := parseTimeRange(q)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	resp, err := h.logs.ListLogs(r.Context(), services.LogQuery{
		ContentType: q.Get("type"),
		Slug:        q.Get("slug"),
		Granted:     granted,
		Start:       start,
		End:         end,
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/internal/stats?start=&end=
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r.URL.Query())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, models.ErrorCodeBadRequest, err.Error())
		return
	}

	stats, err := h.logs.Stats(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

func parseIntParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s parameter: must be a non-negative integer", name)
	}
	return v, nil
}

func parseGranted(q url.Values) (*bool, error) {
	if raw := q.Get("failed"); raw != "" {
		failed, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid failed parameter")
		}
		if failed {
			granted := false
			return &granted, nil
		}
	}
	if raw := q.Get("granted"); raw != "" {
		granted, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid granted parameter")
		}
		return &granted, nil
	}
	return nil, nil
}

const dateLayout = "2006-01-02"

// parseTimeRange reads start and end as RFC3339 timestamps or dates.
// A date-only end covers the whole day.
func parseTimeRange(q url.Values) (*time.Time, *time.Time, error) {
	start, err := parseTimeParam(q.Get("start"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start parameter: %w", err)
	}
	end, err := parseTimeParam(q.Get("end"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end parameter: %w", err)
	}
	return start, end, nil
}

func parseTimeParam(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
