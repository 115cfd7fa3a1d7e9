// Package api exposes HTTP handlers for the volunteer activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/volunteer/internal/auth"
	"example.com/volunteer/internal/domain"
	"example.com/volunteer/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/upcoming", h.listUpcoming)
	mux.HandleFunc("/v1/activities/stats", h.stats)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/opportunities/", h.listByOpportunity)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listForUser(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// activityByID routes /v1/activities/{id} and its sub-resources.
func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.getActivity(w, r, id)
	case "register":
		switch r.Method {
		case http.MethodPost:
			h.register(w, r, id)
		case http.MethodDelete:
			h.unregister(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
	case "confirm":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.confirmAttendance(w, r, id)
	case "status":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.updateStatus(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Type            string            `json:"type"`
	StartsAt        time.Time         `json:"starts_at"`
	EndsAt          time.Time         `json:"ends_at"`
	Timezone        string            `json:"timezone"`
	Location        LocationView      `json:"location"`
	MaxParticipants *int32            `json:"max_participants"`
	IsRecurring     bool              `json:"is_recurring"`
	RecurrenceRule  string            `json:"recurrence_rule"`
	OpportunityID   string            `json:"opportunity_id"`
	Materials       []MaterialView    `json:"materials"`
	Requirements    []RequirementView `json:"requirements"`
	Draft           bool              `json:"draft"`
}

// Validate ensures request correctness before the workflow runs.
func (r CreateActivityRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if !domain.KnownActivityType(domain.ActivityType(r.Type)) {
		return errors.New("unknown activity type")
	}
	if r.StartsAt.IsZero() || r.EndsAt.IsZero() {
		return errors.New("starts_at and ends_at are required")
	}
	if !r.StartsAt.Before(r.EndsAt) {
		return errors.New("starts_at must be before ends_at")
	}
	if r.Location.IsOnline && strings.TrimSpace(r.Location.MeetingURL) == "" {
		return errors.New("meeting_url is required for online activities")
	}
	if r.MaxParticipants != nil && *r.MaxParticipants < 1 {
		return errors.New("max_participants must be >= 1")
	}
	for _, material := range r.Materials {
		if strings.TrimSpace(material.Name) == "" {
			return errors.New("material name is required")
		}
	}
	for _, requirement := range r.Requirements {
		if strings.TrimSpace(requirement.Title) == "" {
			return errors.New("requirement title is required")
		}
	}
	return nil
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	input := domain.CreateActivityInput{
		Title:           req.Title,
		Description:     req.Description,
		Type:            domain.ActivityType(req.Type),
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		Timezone:        req.Timezone,
		Location:        domain.Location(req.Location),
		MaxParticipants: req.MaxParticipants,
		IsRecurring:     req.IsRecurring,
		RecurrenceRule:  req.RecurrenceRule,
		OpportunityID:   req.OpportunityID,
		CreatedBy:       claims.Subject,
		Draft:           req.Draft,
	}
	for _, material := range req.Materials {
		input.Materials = append(input.Materials, domain.Material(material))
	}
	for _, requirement := range req.Requirements {
		input.Requirements = append(input.Requirements, domain.Requirement(requirement))
	}

	activity, err := h.service.CreateActivity(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activity, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = claims.Subject
	}

	filter := listFilterFromQuery(r)
	filter = filter.Normalize()

	activities, total, err := h.service.ListForUser(r.Context(), userID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePaginated(w, http.StatusOK, toActivityViews(activities), Pagination{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}

func (h *Handler) listUpcoming(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListUpcoming(r.Context(), cursor, limit, domain.ActivityType(r.URL.Query().Get("type")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, UpcomingView{
		Items:      toActivityViews(activities),
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) listByOpportunity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/opportunities/")
	opportunityID, suffix, _ := strings.Cut(rest, "/")
	if opportunityID == "" || suffix != "activities" {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}

	filter := listFilterFromQuery(r).Normalize()
	activities, total, err := h.service.ListByOpportunity(r.Context(), opportunityID, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePaginated(w, http.StatusOK, toActivityViews(activities), Pagination{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}

// RegisterRequest is the payload for POST /v1/activities/{id}/register.
type RegisterRequest struct {
	Role string `json:"role"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req RegisterRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	}
	if req.Role != "" && !domain.KnownParticipantRole(domain.ParticipantRole(req.Role)) {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown role")
		return
	}

	participant, err := h.service.Register(r.Context(), id, claims.Subject, domain.ParticipantRole(req.Role))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, ParticipantView{
		ActivityID: participant.ActivityID,
		UserID:     participant.UserID,
		Role:       string(participant.Role),
		JoinedAt:   participant.JoinedAt,
	})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	if err := h.service.Unregister(r.Context(), id, claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// ConfirmRequest is the payload for POST /v1/activities/{id}/confirm.
type ConfirmRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

const maxConfirmationNotesLength = 500

func (h *Handler) confirmAttendance(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if !domain.KnownConfirmationStatus(domain.ConfirmationStatus(req.Status)) {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown confirmation status")
		return
	}
	if len(req.Notes) > maxConfirmationNotesLength {
		writeError(w, http.StatusBadRequest, "validation_failed", "notes too long")
		return
	}

	confirmation, err := h.service.ConfirmAttendance(r.Context(), id, claims.Subject, domain.ConfirmationStatus(req.Status), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, ConfirmationView{
		ActivityID:  confirmation.ActivityID,
		UserID:      confirmation.UserID,
		Status:      string(confirmation.Status),
		ConfirmedAt: confirmation.ConfirmedAt,
		Notes:       confirmation.Notes,
	})
}

// StatusRequest is the payload for POST /v1/activities/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if !domain.KnownActivityStatus(domain.ActivityStatus(req.Status)) {
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown status")
		return
	}

	activity, err := h.service.UpdateStatus(r.Context(), id, domain.ActivityStatus(req.Status), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	// Callers may only inspect their own stats. An empty user_id scopes the
	// aggregate to the caller; "all" is reserved for the write scope.
	userID := r.URL.Query().Get("user_id")
	switch userID {
	case "", claims.Subject:
		userID = claims.Subject
	case "all":
		if !claims.HasScope(auth.ScopeActivitiesWrite) {
			writeError(w, http.StatusForbidden, "permission_denied", "scope activities:write required for global stats")
			return
		}
		userID = ""
	default:
		writeError(w, http.StatusForbidden, "permission_denied", "cannot read another user's stats")
		return
	}

	summary, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, toStatsView(*summary))
}

func listFilterFromQuery(r *http.Request) domain.ListFilter {
	query := r.URL.Query()

	filter := domain.ListFilter{
		Type:   domain.ActivityType(query.Get("type")),
		Status: domain.ActivityStatus(query.Get("status")),
		Role:   domain.ParticipantRole(query.Get("role")),
	}
	if raw := query.Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Page = parsed
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = parsed
		}
	}
	if raw := query.Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = parsed
		}
	}
	return filter
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "insufficient scope")
	return nil, false
}
