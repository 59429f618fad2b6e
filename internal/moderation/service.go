package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// Service handles moderation writes and the public widget read queries
type Service struct {
	repo storage.Repository
	log  *logger.Logger
}

// New creates a moderation service
func New(repo storage.Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.WithComponent("moderation"),
	}
}

// BulkResult summarizes a bulk moderation write
type BulkResult struct {
	Updated int            `json:"updated"`
	Failed  map[uint]string `json:"failed,omitempty"`
}

// Moderate updates a stored video's moderation status and metadata
func (s *Service) Moderate(ctx context.Context, id uint, status models.VideoStatus, moderatedBy, reason string) (*models.Video, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	video, err := s.repo.GetVideoByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("video %d not found: %w", id, err)
	}

	now := time.Now()
	video.Status = status
	video.ModeratedAt = &now
	video.ModeratedBy = moderatedBy
	video.ModerationReason = reason

	if err := s.repo.UpdateVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("failed to update video %d: %w", id, err)
	}

	s.log.Info().
		Uint("id", id).
		Str("video_id", video.VideoID).
		Str("status", string(status)).
		Str("moderated_by", moderatedBy).
		Msg("Video moderated")

	return video, nil
}

// ModerateBulk applies the same moderation action to a list of videos.
// Per-video failures are collected, the batch is never aborted.
func (s *Service) ModerateBulk(ctx context.Context, ids []uint, status models.VideoStatus, moderatedBy, reason string) (*BulkResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	result := &BulkResult{}
	for _, id := range ids {
		if _, err := s.Moderate(ctx, id, status, moderatedBy, reason); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[uint]string)
			}
			result.Failed[id] = err.Error()
			continue
		}
		result.Updated++
	}

	s.log.Info().
		Int("requested", len(ids)).
		Int("updated", result.Updated).
		Int("failed", len(result.Failed)).
		Msg("Bulk moderation completed")

	return result, nil
}

// ActiveVideos returns the public widget feed: active records ordered by
// priority then view count, paginated. Also returns the total count for
// pagination metadata.
func (s *Service) ActiveVideos(ctx context.Context, page, pageSize int) ([]*models.Video, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}

	status := models.VideoStatusActive
	filter := storage.VideoFilter{
		Status:        &status,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
		OrderBy:       "priority",
		OrderDesc:     true,
		ThenOrderBy:   "view_count",
		ThenOrderDesc: true,
	}

	total, err := s.repo.CountVideos(ctx, storage.VideoFilter{Status: &status})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count active videos: %w", err)
	}

	videos, err := s.repo.ListVideos(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list active videos: %w", err)
	}
	return videos, total, nil
}

// StatusCounts returns aggregate counts by moderation status for the
// dashboard. Statuses with no records are reported as zero.
func (s *Service) StatusCounts(ctx context.Context) (map[models.VideoStatus]int64, error) {
	counts, err := s.repo.CountVideosByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count videos by status: %w", err)
	}

	for _, status := range []models.VideoStatus{
		models.VideoStatusPending,
		models.VideoStatusActive,
		models.VideoStatusRejected,
		models.VideoStatusArchived,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}
