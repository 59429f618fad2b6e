package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

// Source implements source.VideoSource using the YouTube Data API v3
type Source struct {
	service *ytapi.Service
	cfg     config.YouTubeConfig
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
}

// New creates a new YouTube source using API-key authentication
func New(ctx context.Context, cfg config.YouTubeConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) (*Source, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube API key is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	service, err := ytapi.NewService(ctx,
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	return &Source{
		service: service,
		cfg:     cfg,
		limiter: limiter,
		log:     log.WithComponent("youtube"),
	}, nil
}

// Name returns the source name
func (s *Source) Name() string {
	return "youtube"
}

// Search retrieves candidate videos for a keyword. Each call costs one
// search request plus one videos.list request for statistics.
func (s *Source) Search(ctx context.Context, keyword string, opts source.SearchOptions) ([]*models.CandidateVideo, error) {
	if err := s.limiter.Wait(ctx, ratelimit.LimiterYouTube); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}
	order := opts.Order
	if order == "" {
		order = s.cfg.Order
	}
	region := opts.Region
	if region == "" {
		region = s.cfg.Region
	}

	s.log.Debug().
		Str("keyword", keyword).
		Int64("max_results", maxResults).
		Msg("Searching YouTube")

	searchCall := s.service.Search.List([]string{"snippet"}).
		Context(ctx).
		Q(keyword).
		Type("video").
		MaxResults(maxResults).
		Order(order).
		SafeSearch("moderate")
	if region != "" {
		searchCall = searchCall.RegionCode(region)
	}

	searchResp, err := searchCall.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search failed for %q: %w", keyword, err)
	}

	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Second call fills in statistics and duration, which search.list
	// does not return.
	videosResp, err := s.service.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
		Context(ctx).
		Id(ids...).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube videos lookup failed for %q: %w", keyword, err)
	}

	candidates := make([]*models.CandidateVideo, 0, len(videosResp.Items))
	for _, item := range videosResp.Items {
		candidates = append(candidates, toCandidate(item))
	}

	s.log.Info().
		Str("keyword", keyword).
		Int("count", len(candidates)).
		Msg("Fetched YouTube candidates")

	return candidates, nil
}

// HealthCheck verifies the API is reachable with the configured key
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.service.Videos.List([]string{"id"}).
		Context(ctx).
		Chart("mostPopular").
		MaxResults(1).
		Do()
	return err
}

// toCandidate maps an API video resource to a CandidateVideo
func toCandidate(item *ytapi.Video) *models.CandidateVideo {
	candidate := &models.CandidateVideo{
		VideoID: item.Id,
	}

	if item.Snippet != nil {
		candidate.Title = item.Snippet.Title
		candidate.Description = item.Snippet.Description
		candidate.Tags = item.Snippet.Tags
		candidate.ChannelID = item.Snippet.ChannelId
		candidate.ChannelName = item.Snippet.ChannelTitle
		candidate.Category = item.Snippet.CategoryId
		if published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			candidate.PublishedAt = published
		}
		if item.Snippet.Thumbnails != nil {
			if item.Snippet.Thumbnails.High != nil {
				candidate.ThumbnailURL = item.Snippet.Thumbnails.High.Url
			} else if item.Snippet.Thumbnails.Default != nil {
				candidate.ThumbnailURL = item.Snippet.Thumbnails.Default.Url
			}
		}
	}

	if item.Statistics != nil {
		candidate.ViewCount = int64(item.Statistics.ViewCount)
		candidate.LikeCount = int64(item.Statistics.LikeCount)
	}

	if item.ContentDetails != nil {
		candidate.Duration = parseISODuration(item.ContentDetails.Duration)
	}

	return candidate
}

// parseISODuration converts an ISO 8601 duration (PT#H#M#S) to seconds.
// Returns 0 for anything it cannot parse.
func parseISODuration(iso string) int64 {
	iso = strings.TrimPrefix(iso, "P")
	var days, seconds int64

	if idx := strings.Index(iso, "T"); idx >= 0 {
		datePart := iso[:idx]
		timePart := iso[idx+1:]
		days = parseDurationPart(datePart, 'D')
		seconds = parseDurationPart(timePart, 'H')*3600 +
			parseDurationPart(timePart, 'M')*60 +
			parseDurationPart(timePart, 'S')
	} else {
		days = parseDurationPart(iso, 'D')
	}

	return days*86400 + seconds
}

func parseDurationPart(s string, unit byte) int64 {
	idx := strings.IndexByte(s, unit)
	if idx < 0 {
		return 0
	}
	start := idx
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == idx {
		return 0
	}
	value, err := strconv.ParseInt(s[start:idx], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// Ensure Source implements source.VideoSource
var _ source.VideoSource = (*Source)(nil)
