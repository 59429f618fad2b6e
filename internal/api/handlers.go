package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// dataEnvelope is the JSON response convention: payload under "data",
// pagination under "meta".
type dataEnvelope struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

type paginationMeta struct {
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	PageCount int   `json:"pageCount"`
	Total     int64 `json:"total"`
}

type errorBody struct {
	Error string `json:"error"`
}

type moderationRequest struct {
	Data struct {
		Status      models.VideoStatus `json:"status"`
		ModeratedBy string             `json:"moderatedBy"`
		Reason      string             `json:"reason"`
	} `json:"data"`
}

type bulkModerationRequest struct {
	Data struct {
		IDs         []uint             `json:"ids"`
		Status      models.VideoStatus `json:"status"`
		ModeratedBy string             `json:"moderatedBy"`
		Reason      string             `json:"reason"`
	} `json:"data"`
}

// listActiveVideos serves the public widget feed
func (s *Server) listActiveVideos(w http.ResponseWriter, req *http.Request) {
	page := queryInt(req, "page", 1)
	pageSize := queryInt(req, "pageSize", 25)

	videos, total, err := s.mod.ActiveVideos(req.Context(), page, pageSize)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list active videos")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to list videos"})
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}

	pageCount := int((total + int64(pageSize) - 1) / int64(pageSize))
	writeJSON(w, http.StatusOK, dataEnvelope{
		Data: videos,
		Meta: paginationMeta{Pagination: pagination{
			Page:      page,
			PageSize:  pageSize,
			PageCount: pageCount,
			Total:     total,
		}},
	})
}

// videoStats serves aggregate counts by status for the dashboard
func (s *Server) videoStats(w http.ResponseWriter, req *http.Request) {
	counts, err := s.mod.StatusCounts(req.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to count videos by status")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to count videos"})
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: counts})
}

// moderateVideo updates a single video's moderation status
func (s *Server) moderateVideo(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(req, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid video id"})
		return
	}

	var body moderationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	video, err := s.mod.Moderate(req.Context(), uint(id), body.Data.Status, body.Data.ModeratedBy, body.Data.Reason)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: video})
}

// moderateBulk applies one moderation action to a list of videos
func (s *Server) moderateBulk(w http.ResponseWriter, req *http.Request) {
	var body bulkModerationRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if len(body.Data.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ids is required"})
		return
	}

	result, err := s.mod.ModerateBulk(req.Context(), body.Data.IDs, body.Data.Status, body.Data.ModeratedBy, body.Data.Reason)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Data: result})
}

// schedulerStatus serves the scheduler's job snapshot
func (s *Server) schedulerStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, dataEnvelope{Data: s.sched.Status()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func queryInt(req *http.Request, name string, fallback int) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
