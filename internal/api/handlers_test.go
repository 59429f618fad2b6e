package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/moderation"
	"github.com/pattaya-pulse/video-pipeline/internal/scheduler"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/storagetest"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func newTestServer(t *testing.T, repo *storagetest.Fake) http.Handler {
	t.Helper()
	sched, err := scheduler.New(nil, repo, scheduler.Config{
		Timezone:      "UTC",
		DaytimeCron:   "*/30 * * * *",
		NighttimeCron: "0 */2 * * *",
		TrendingCron:  "*/5 * * * *",
		CleanupCron:   "45 4 * * *",
		StatsCron:     "10 */6 * * *",
		RetentionCap:  500,
	}, testLogger())
	if err != nil {
		t.Fatalf("scheduler.New(): %v", err)
	}
	mod := moderation.New(repo, testLogger())
	return New(mod, sched, testLogger()).Router()
}

func seedVideo(t *testing.T, repo *storagetest.Fake, videoID string, status models.VideoStatus, priority int) *models.Video {
	t.Helper()
	video := &models.Video{VideoID: videoID, Title: "t", Status: status, Priority: priority}
	if err := repo.CreateVideo(context.Background(), video); err != nil {
		t.Fatal(err)
	}
	return video
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t, storagetest.New())
	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}

func TestListActiveVideos(t *testing.T) {
	repo := storagetest.New()
	seedVideo(t, repo, "vid-low", models.VideoStatusActive, 1)
	seedVideo(t, repo, "vid-high", models.VideoStatusActive, 9)
	seedVideo(t, repo, "vid-pending", models.VideoStatusPending, 99)
	handler := newTestServer(t, repo)

	rec := doRequest(t, handler, http.MethodGet, "/api/videos/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/videos/ = %d, want 200", rec.Code)
	}

	var body struct {
		Data []models.Video `json:"data"`
		Meta struct {
			Pagination pagination `json:"pagination"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}

	if len(body.Data) != 2 {
		t.Fatalf("returned %d videos, want 2 active", len(body.Data))
	}
	if body.Data[0].VideoID != "vid-high" {
		t.Errorf("first video = %q, want highest priority first", body.Data[0].VideoID)
	}
	if body.Meta.Pagination.Total != 2 || body.Meta.Pagination.Page != 1 {
		t.Errorf("pagination = %+v, want total 2 page 1", body.Meta.Pagination)
	}
}

func TestListActiveVideosEmptyIsArray(t *testing.T) {
	handler := newTestServer(t, storagetest.New())
	rec := doRequest(t, handler, http.MethodGet, "/api/videos/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if string(body["data"]) == "null" {
		t.Error(`empty feed serialized as null, want []`)
	}
}

func TestVideoStats(t *testing.T) {
	repo := storagetest.New()
	seedVideo(t, repo, "vid-1", models.VideoStatusActive, 0)
	seedVideo(t, repo, "vid-2", models.VideoStatusPending, 0)
	handler := newTestServer(t, repo)

	rec := doRequest(t, handler, http.MethodGet, "/api/videos/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/videos/stats = %d, want 200", rec.Code)
	}

	var body struct {
		Data map[models.VideoStatus]int64 `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data[models.VideoStatusActive] != 1 || body.Data[models.VideoStatusPending] != 1 {
		t.Errorf("counts = %v", body.Data)
	}
	if _, ok := body.Data[models.VideoStatusRejected]; !ok {
		t.Error("stats missing zero-valued rejected bucket")
	}
}

func TestModerateVideo(t *testing.T) {
	repo := storagetest.New()
	video := seedVideo(t, repo, "vid-1", models.VideoStatusPending, 0)
	handler := newTestServer(t, repo)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"status":      "active",
			"moderatedBy": "editor@site",
			"reason":      "approved",
		},
	}
	rec := doRequest(t, handler, http.MethodPut, fmt.Sprintf("/api/videos/%d/moderation", video.ID), payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT moderation = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	stored, err := repo.GetVideoByID(context.Background(), video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.VideoStatusActive || stored.ModeratedBy != "editor@site" {
		t.Errorf("stored = %v/%q, want active/editor@site", stored.Status, stored.ModeratedBy)
	}
}

func TestModerateVideoErrors(t *testing.T) {
	repo := storagetest.New()
	video := seedVideo(t, repo, "vid-1", models.VideoStatusPending, 0)
	handler := newTestServer(t, repo)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{
			name: "non-numeric id",
			path: "/api/videos/abc/moderation",
			body: map[string]interface{}{"data": map[string]interface{}{"status": "active"}},
			want: http.StatusBadRequest,
		},
		{
			name: "invalid status",
			path: fmt.Sprintf("/api/videos/%d/moderation", video.ID),
			body: map[string]interface{}{"data": map[string]interface{}{"status": "deleted"}},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "missing video",
			path: "/api/videos/9999/moderation",
			body: map[string]interface{}{"data": map[string]interface{}{"status": "active"}},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodPut, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestModerateBulk(t *testing.T) {
	repo := storagetest.New()
	a := seedVideo(t, repo, "vid-a", models.VideoStatusPending, 0)
	b := seedVideo(t, repo, "vid-b", models.VideoStatusPending, 0)
	handler := newTestServer(t, repo)

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"ids":         []uint{a.ID, b.ID, 999},
			"status":      "rejected",
			"moderatedBy": "editor@site",
			"reason":      "spam",
		},
	}
	rec := doRequest(t, handler, http.MethodPost, "/api/videos/moderation/bulk", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk moderation = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Data moderation.BulkResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Updated != 2 || len(body.Data.Failed) != 1 {
		t.Errorf("bulk result = %+v, want 2 updated 1 failed", body.Data)
	}
}

func TestModerateBulkRequiresIDs(t *testing.T) {
	handler := newTestServer(t, storagetest.New())
	payload := map[string]interface{}{
		"data": map[string]interface{}{"status": "rejected"},
	}
	rec := doRequest(t, handler, http.MethodPost, "/api/videos/moderation/bulk", payload)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bulk without ids = %d, want 400", rec.Code)
	}
}

func TestSchedulerStatus(t *testing.T) {
	handler := newTestServer(t, storagetest.New())
	rec := doRequest(t, handler, http.MethodGet, "/api/scheduler/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/scheduler/status = %d, want 200", rec.Code)
	}

	var body struct {
		Data scheduler.Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", body.Data.Timezone)
	}
}
