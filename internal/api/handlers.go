// Package api exposes HTTP handlers for the carbon service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/ecostep/internal/auth"
	"example.com/ecostep/internal/domain"
	"example.com/ecostep/internal/observability"
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
	mux.HandleFunc("/v1/summary/", h.summary)
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
		h.recordActivity(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCarbonWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope carbon:write required")
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	category, _ := domain.ParseCategory(req.Category)
	result, err := h.service.RecordActivity(r.Context(), domain.RecordActivityInput{
		UserID:       req.UserID,
		Category:     category,
		ActivityType: domain.ActivityType(req.ActivityType),
		Quantity:     req.Value,
		CarbonImpact: req.CarbonImpact,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := RecordActivityResponse{ActivityView: toActivityView(result.Activity)}
	if result.Profile != nil {
		view := toProfileView(*result.Profile)
		resp.Profile = &view
	}
	for _, achievement := range result.Unlocked {
		resp.Unlocked = append(resp.Unlocked, toAchievementView(achievement))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeCarbonRead) && !claims.HasScope(auth.ScopeCarbonWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope carbon:read required")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/v1/summary/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "invalid_input", "missing user id")
		return
	}

	summary, err := h.service.BuildSummary(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

// RecordActivityRequest is the payload for POST /v1/activities. CarbonImpact is
// optional; when absent the factor table supplies the reported impact.
type RecordActivityRequest struct {
	UserID       string   `json:"userId"`
	Category     string   `json:"category"`
	ActivityType string   `json:"activityType"`
	Value        float64  `json:"value"`
	CarbonImpact *float64 `json:"carbonImpact,omitempty"`
}

// Validate ensures request correctness before the domain sees it.
func (r RecordActivityRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("userId is required")
	}
	if _, ok := domain.ParseCategory(r.Category); !ok {
		return errors.New("category must be one of transport, waste, diet, energy")
	}
	if strings.TrimSpace(r.ActivityType) == "" {
		return errors.New("activityType is required")
	}
	if r.Value <= 0 {
		return errors.New("value must be > 0")
	}
	return nil
}

// ActivityView exposes a logged activity.
type ActivityView struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	Category     string    `json:"category"`
	ActivityType string    `json:"activity_type"`
	Value        float64   `json:"value"`
	CarbonImpact float64   `json:"carbon_impact"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileView exposes the accounting profile.
type ProfileView struct {
	UserID           string  `json:"user_id"`
	TotalCarbonSaved float64 `json:"total_carbon_saved"`
	Level            int     `json:"level"`
}

// AchievementView exposes achievement reference data.
type AchievementView struct {
	AchievementID  string  `json:"achievement_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	CarbonRequired float64 `json:"carbon_required"`
}

// RecordActivityResponse is the created activity plus the accounting outcome when
// the activity saved carbon.
type RecordActivityResponse struct {
	ActivityView
	Profile  *ProfileView      `json:"profile,omitempty"`
	Unlocked []AchievementView `json:"unlocked_achievements,omitempty"`
}

// SummaryStatsView aggregates the activity log for the dashboard.
type SummaryStatsView struct {
	TotalActivities  int                `json:"total_activities"`
	CarbonByCategory map[string]float64 `json:"carbon_by_category"`
	RecentActivities []ActivityView     `json:"recent_activities"`
}

// SummaryResponse is the dashboard view model.
type SummaryResponse struct {
	Profile           ProfileView      `json:"profile"`
	Stats             SummaryStatsView `json:"stats"`
	AchievementsCount int              `json:"achievements_count"`
	NextAchievement   *AchievementView `json:"next_achievement"`
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:   activity.ID,
		UserID:       activity.UserID,
		Category:     string(activity.Category),
		ActivityType: string(activity.ActivityType),
		Value:        activity.Quantity,
		CarbonImpact: activity.CarbonImpact,
		CreatedAt:    activity.CreatedAt,
	}
}

func toProfileView(profile domain.Profile) ProfileView {
	return ProfileView{
		UserID:           profile.UserID,
		TotalCarbonSaved: profile.TotalCarbonSaved,
		Level:            profile.Level,
	}
}

func toAchievementView(achievement domain.Achievement) AchievementView {
	return AchievementView{
		AchievementID:  achievement.ID,
		Name:           achievement.Name,
		Description:    achievement.Description,
		CarbonRequired: achievement.CarbonRequired,
	}
}

func toSummaryResponse(summary domain.Summary) SummaryResponse {
	byCategory := make(map[string]float64, len(summary.Stats.CarbonByCategory))
	for category, total := range summary.Stats.CarbonByCategory {
		byCategory[string(category)] = total
	}
	recent := make([]ActivityView, 0, len(summary.Stats.RecentActivities))
	for _, activity := range summary.Stats.RecentActivities {
		recent = append(recent, toActivityView(activity))
	}
	resp := SummaryResponse{
		Profile: toProfileView(summary.Profile),
		Stats: SummaryStatsView{
			TotalActivities:  summary.Stats.TotalActivities,
			CarbonByCategory: byCategory,
			RecentActivities: recent,
		},
		AchievementsCount: summary.AchievementsCount,
	}
	if summary.NextAchievement != nil {
		view := toAchievementView(*summary.NextAchievement)
		resp.NextAchievement = &view
	}
	return resp
}

// writeDomainError maps domain error kinds to HTTP statuses. Storage detail never
// reaches the response body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrUnknownType):
		writeError(w, http.StatusBadRequest, "unknown_type", err.Error())
	case errors.Is(err, domain.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "not_found", "profile not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "concurrent update conflict")
	default:
		observability.RecordAccountingFailure()
		writeError(w, http.StatusInternalServerError, "storage_failure", "storage failure")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
