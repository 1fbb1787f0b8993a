package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/ecostep/internal/auth"
	"example.com/ecostep/internal/domain"
	"example.com/ecostep/internal/persistence/memory"
)

func testHandler() (*Handler, *memory.Store) {
	store := memory.NewStoreWithAchievements([]domain.Achievement{
		{ID: "first-step", Name: "First Step", CarbonRequired: 0},
		{ID: "getting-started", Name: "Getting Started", CarbonRequired: 10},
	})
	service := domain.NewService(store, domain.WithLogger(log.New(io.Discard, "", 0)))
	return NewHandler(service), store
}

func testMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func withScopes(r *http.Request, scopes ...string) *http.Request {
	claims := &auth.Claims{
		Subject:   "tester",
		Scopes:    make(map[string]struct{}, len(scopes)),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, scope := range scopes {
		claims.Scopes[scope] = struct{}{}
	}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func postActivity(t *testing.T, mux *http.ServeMux, body string, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/activities", bytes.NewBufferString(body))
	if len(scopes) > 0 {
		req = withScopes(req, scopes...)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRecordActivityCreated(t *testing.T) {
	handler, store := testHandler()
	mux := testMux(handler)

	body := `{"userId":"user-1","category":"transport","activityType":"bike","value":10}`
	rec := postActivity(t, mux, body, auth.ScopeCarbonWrite)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RecordActivityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ActivityID == "" {
		t.Fatal("expected generated activity id")
	}
	if resp.CarbonImpact != -1.2 {
		t.Fatalf("expected computed impact -1.2, got %v", resp.CarbonImpact)
	}
	if resp.Profile == nil {
		t.Fatal("expected profile in response for a saving activity")
	}
	if resp.Profile.TotalCarbonSaved != 1.2 {
		t.Fatalf("expected total 1.2, got %v", resp.Profile.TotalCarbonSaved)
	}
	if len(resp.Unlocked) != 1 || resp.Unlocked[0].AchievementID != "first-step" {
		t.Fatalf("expected first-step unlock, got %+v", resp.Unlocked)
	}

	count, err := store.CountActivities(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("count activities: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stored activity, got %d", count)
	}
}

func TestRecordActivityEmitterOmitsProfile(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	body := `{"userId":"user-1","category":"diet","activityType":"meat","value":2}`
	rec := postActivity(t, mux, body, auth.ScopeCarbonWrite)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp RecordActivityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CarbonImpact != 6.0 {
		t.Fatalf("expected impact 6.0, got %v", resp.CarbonImpact)
	}
	if resp.Profile != nil {
		t.Fatalf("expected no profile for an emitting activity, got %+v", resp.Profile)
	}
	if len(resp.Unlocked) != 0 {
		t.Fatalf("expected no unlocks, got %+v", resp.Unlocked)
	}
}

func TestRecordActivityValidation(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing user", `{"category":"transport","activityType":"bike","value":1}`, "invalid_input"},
		{"bad category", `{"userId":"u","category":"mining","activityType":"bike","value":1}`, "invalid_input"},
		{"zero value", `{"userId":"u","category":"transport","activityType":"bike","value":0}`, "invalid_input"},
		{"negative value", `{"userId":"u","category":"transport","activityType":"bike","value":-3}`, "invalid_input"},
		{"malformed json", `{"userId":`, "invalid_input"},
		{"unknown type", `{"userId":"u","category":"transport","activityType":"rocket","value":1}`, "unknown_type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postActivity(t, mux, tc.body, auth.ScopeCarbonWrite)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var payload map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload["type"] != tc.want {
				t.Fatalf("expected error type %q, got %q", tc.want, payload["type"])
			}
		})
	}
}

func TestRecordActivityAuth(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)
	body := `{"userId":"u","category":"transport","activityType":"bike","value":1}`

	rec := postActivity(t, mux, body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}

	rec = postActivity(t, mux, body, auth.ScopeCarbonRead)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without write scope, got %d", rec.Code)
	}
}

func TestActivitiesMethodNotAllowed(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	req := withScopes(httptest.NewRequest(http.MethodGet, "/v1/activities", nil), auth.ScopeCarbonWrite)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSummaryZeroState(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	req := withScopes(httptest.NewRequest(http.MethodGet, "/v1/summary/nobody", nil), auth.ScopeCarbonRead)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile.UserID != "nobody" {
		t.Fatalf("expected profile user id nobody, got %q", resp.Profile.UserID)
	}
	if resp.Profile.Level != 1 || resp.Profile.TotalCarbonSaved != 0 {
		t.Fatalf("expected zero-value profile, got %+v", resp.Profile)
	}
	if resp.Stats.TotalActivities != 0 {
		t.Fatalf("expected zero activities, got %d", resp.Stats.TotalActivities)
	}
	if resp.Stats.RecentActivities == nil {
		t.Fatal("recent_activities must be an empty array, not null")
	}
	if resp.NextAchievement == nil || resp.NextAchievement.AchievementID != "getting-started" {
		t.Fatalf("expected next achievement getting-started, got %+v", resp.NextAchievement)
	}
}

func TestSummaryAfterActivity(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	body := `{"userId":"user-1","category":"energy","activityType":"saved","value":30}`
	rec := postActivity(t, mux, body, auth.ScopeCarbonWrite)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	req := withScopes(httptest.NewRequest(http.MethodGet, "/v1/summary/user-1", nil), auth.ScopeCarbonRead)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Profile.TotalCarbonSaved != 15 {
		t.Fatalf("expected total 15, got %v", resp.Profile.TotalCarbonSaved)
	}
	if resp.Stats.TotalActivities != 1 {
		t.Fatalf("expected 1 activity, got %d", resp.Stats.TotalActivities)
	}
	if resp.Stats.CarbonByCategory["energy"] != 15 {
		t.Fatalf("expected energy category 15, got %v", resp.Stats.CarbonByCategory["energy"])
	}
	if resp.AchievementsCount != 2 {
		t.Fatalf("expected 2 achievements, got %d", resp.AchievementsCount)
	}
	if resp.NextAchievement != nil {
		t.Fatalf("expected no next achievement past the ladder, got %+v", resp.NextAchievement)
	}
}

func TestSummaryPathValidation(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	for _, path := range []string{"/v1/summary/", "/v1/summary/a/b"} {
		req := withScopes(httptest.NewRequest(http.MethodGet, path, nil), auth.ScopeCarbonRead)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("path %q: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestSummaryAuth(t *testing.T) {
	handler, _ := testHandler()
	mux := testMux(handler)

	req := httptest.NewRequest(http.MethodGet, "/v1/summary/user-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", rec.Code)
	}

	req = withScopes(httptest.NewRequest(http.MethodGet, "/v1/summary/user-1", nil), "other:scope")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without read scope, got %d", rec.Code)
	}
}
