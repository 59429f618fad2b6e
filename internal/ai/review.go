package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// stripMarkdownCodeBlock removes markdown code block delimiters from AI responses
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}

// VideoReview is the model's assessment of a pending video
type VideoReview struct {
	SpamScore float64 `json:"spam_score"` // 0-100, higher = more likely spam
	Reason    string  `json:"reason"`
}

// Reviewer scores pending videos for spam likelihood ahead of human
// moderation. Above the threshold it either annotates the record for
// the moderator or, when auto-reject is enabled, rejects it outright.
// It never approves anything.
type Reviewer struct {
	client     *Client
	repo       storage.Repository
	threshold  float64
	autoReject bool
	batchSize  int
	log        *logger.Logger
}

// NewReviewer creates a pending-video reviewer
func NewReviewer(client *Client, repo storage.Repository, cfg config.ReviewConfig, log *logger.Logger) *Reviewer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Reviewer{
		client:     client,
		repo:       repo,
		threshold:  cfg.SpamThreshold,
		autoReject: cfg.AutoReject,
		batchSize:  batchSize,
		log:        log.WithComponent("review"),
	}
}

// ReviewResult summarizes one review sweep
type ReviewResult struct {
	Reviewed int
	Flagged  int
	Rejected int
	Errors   []error
}

// Run reviews the oldest pending videos. A single video's review
// failure is logged and skipped.
func (r *Reviewer) Run(ctx context.Context) error {
	status := models.VideoStatusPending
	pending, err := r.repo.ListVideos(ctx, storage.VideoFilter{
		Status:  &status,
		Limit:   r.batchSize,
		OrderBy: "created_at",
	})
	if err != nil {
		return fmt.Errorf("failed to list pending videos: %w", err)
	}
	if len(pending) == 0 {
		r.log.Debug().Msg("No pending videos to review")
		return nil
	}

	result := &ReviewResult{}
	for _, video := range pending {
		review, err := r.ReviewVideo(ctx, video)
		if err != nil {
			r.log.Warn().Err(err).Str("video_id", video.VideoID).Msg("Review failed, skipping video")
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Reviewed++

		if review.SpamScore < r.threshold {
			continue
		}

		if r.applyVerdict(video, review) {
			result.Rejected++
		} else {
			result.Flagged++
		}

		if err := r.repo.UpdateVideo(ctx, video); err != nil {
			r.log.Warn().Err(err).Str("video_id", video.VideoID).Msg("Failed to save review verdict")
			result.Errors = append(result.Errors, err)
		}
	}

	r.log.Info().
		Int("reviewed", result.Reviewed).
		Int("flagged", result.Flagged).
		Int("rejected", result.Rejected).
		Int("errors", len(result.Errors)).
		Msg("Review sweep completed")
	return nil
}

// applyVerdict annotates a video that scored above the spam threshold.
// With auto-reject enabled it moderates the record outright, timestamped
// like a human moderation write. Reports whether the video was rejected.
func (r *Reviewer) applyVerdict(video *models.Video, review *VideoReview) bool {
	video.ModerationReason = fmt.Sprintf("spam score %.0f: %s", review.SpamScore, review.Reason)
	if !r.autoReject {
		return false
	}
	now := time.Now()
	video.Status = models.VideoStatusRejected
	video.ModeratedAt = &now
	video.ModeratedBy = "ai-review"
	return true
}

// ReviewVideo scores a single video
func (r *Reviewer) ReviewVideo(ctx context.Context, video *models.Video) (*VideoReview, error) {
	userPrompt := fmt.Sprintf(VideoReviewUserPrompt,
		video.Title,
		video.Description,
		video.ChannelName,
		strings.Join(video.Tags, ", "),
	)

	response, err := r.client.CompleteWithJSON(ctx, VideoReviewSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	var review VideoReview
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &review); err != nil {
		r.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse review response")
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}

	return &review, nil
}
