package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// Runner executes the fetch pipeline for a batch of keywords:
// search -> content filter -> channel validation -> dedupe/rank -> persist.
type Runner struct {
	source source.VideoSource
	repo   storage.Repository
	log    *logger.Logger
	opts   source.SearchOptions
}

// NewRunner creates a pipeline runner
func NewRunner(videoSource source.VideoSource, repo storage.Repository, opts source.SearchOptions, log *logger.Logger) *Runner {
	return &Runner{
		source: videoSource,
		repo:   repo,
		log:    log.WithComponent("pipeline"),
		opts:   opts,
	}
}

// KeywordResult summarizes one keyword's pass through the pipeline
type KeywordResult struct {
	Keyword    string
	Found      int // candidates returned by the source
	Filtered   int // excluded by banned-keyword rules
	Banned     int // rejected by the banned channel registry
	Duplicates int // already in batch or store
	Stored     int
	Errors     []error
}

// CycleResult summarizes a full fetch cycle
type CycleResult struct {
	CycleID   string
	Keywords  int
	Found     int
	Stored    int
	Errors    int
	Degraded  bool // channel registries were unavailable
	Duration  time.Duration
	StartedAt time.Time
}

// Run executes one fetch cycle. Active keywords are processed in
// priority order; limit > 0 caps how many are processed this tick.
// A single keyword's failure is logged and skipped, it never aborts the
// remaining keywords.
func (r *Runner) Run(ctx context.Context, limit int) (*CycleResult, error) {
	startedAt := time.Now()
	result := &CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: startedAt,
	}
	log := r.log.WithCycle(result.CycleID)

	keywords, err := r.repo.ListKeywords(ctx, storage.ActiveKeywordFilter())
	if err != nil {
		// Nothing to fetch rather than a failed cycle.
		log.Warn().Err(err).Msg("Failed to list active keywords, skipping cycle")
		result.Duration = time.Since(startedAt)
		return result, nil
	}
	if len(keywords) == 0 {
		log.Debug().Msg("No active keywords, nothing to fetch")
		result.Duration = time.Since(startedAt)
		return result, nil
	}
	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	result.Keywords = len(keywords)

	rules, reg := r.loadFilters(ctx, log, result)

	for _, keyword := range keywords {
		kwResult := r.processKeyword(ctx, keyword, rules, reg, log)
		result.Found += kwResult.Found
		result.Stored += kwResult.Stored
		result.Errors += len(kwResult.Errors)
	}

	result.Duration = time.Since(startedAt)

	log.Info().
		Int("keywords", result.Keywords).
		Int("found", result.Found).
		Int("stored", result.Stored).
		Int("errors", result.Errors).
		Bool("degraded", result.Degraded).
		Dur("duration", result.Duration).
		Msg("Fetch cycle completed")

	return result, nil
}

// ProcessKeyword runs the pipeline for a single keyword. Exposed for
// one-shot CLI runs.
func (r *Runner) ProcessKeyword(ctx context.Context, keyword *models.Keyword) (*KeywordResult, error) {
	cycle := &CycleResult{CycleID: uuid.NewString()}
	log := r.log.WithCycle(cycle.CycleID)
	rules, reg := r.loadFilters(ctx, log, cycle)
	result := r.processKeyword(ctx, keyword, rules, reg, log)
	if len(result.Errors) > 0 {
		return result, result.Errors[0]
	}
	return result, nil
}

// loadFilters loads the banned-keyword rules and channel registries for
// a cycle. Registry unavailability degrades to fail-open classification:
// everything is kept as pending, which weakens moderation, so it is
// surfaced at warn level instead of silently accepted.
func (r *Runner) loadFilters(ctx context.Context, log *logger.Logger, cycle *CycleResult) ([]*models.BannedKeyword, *Registries) {
	rules, err := r.repo.ListBannedKeywords(ctx, true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load banned keyword rules, proceeding unfiltered")
		rules = nil
	}

	trusted, trustedErr := r.repo.ListTrustedChannels(ctx, true)
	banned, bannedErr := r.repo.ListBannedChannels(ctx, true)
	if trustedErr != nil || bannedErr != nil {
		log.Warn().
			AnErr("trusted_err", trustedErr).
			AnErr("banned_err", bannedErr).
			Bool("degraded", true).
			Msg("Channel registries unavailable, classifying all candidates as pending")
		cycle.Degraded = true
		return rules, DegradedRegistries()
	}

	return rules, NewRegistries(trusted, banned)
}

func (r *Runner) processKeyword(ctx context.Context, keyword *models.Keyword, rules []*models.BannedKeyword, reg *Registries, log *logger.Logger) *KeywordResult {
	result := &KeywordResult{Keyword: keyword.Name}
	kwLog := log.WithKeyword(keyword.Name)

	candidates, err := r.source.Search(ctx, keyword.Name, r.opts)
	if err != nil {
		// Upstream unavailable for this keyword: skip it, the cycle
		// continues with the rest.
		kwLog.Error().Err(err).Msg("Upstream search failed, skipping keyword")
		result.Errors = append(result.Errors, fmt.Errorf("search %q: %w", keyword.Name, err))
		r.updateKeywordStats(ctx, keyword, false, kwLog)
		return result
	}
	result.Found = len(candidates)

	accepted := make([]*models.Video, 0, len(candidates))
	for _, candidate := range candidates {
		if rule := MatchingRule(candidate, rules); rule != nil {
			kwLog.Debug().
				Str("video_id", candidate.VideoID).
				Str("rule", rule.Keyword).
				Msg("Candidate excluded by banned keyword rule")
			result.Filtered++
			continue
		}

		classification := Classify(candidate, reg)
		if !classification.Keep {
			kwLog.Debug().
				Str("video_id", candidate.VideoID).
				Str("channel_id", candidate.ChannelID).
				Msg("Candidate rejected, channel is banned")
			result.Banned++
			continue
		}

		accepted = append(accepted, buildVideo(candidate, classification, keyword.Name))
	}

	ranked := DedupeAndRank(accepted)
	result.Duplicates += len(accepted) - len(ranked)

	for _, video := range ranked {
		if existing, _ := r.repo.GetVideoByVideoID(ctx, video.VideoID); existing != nil {
			result.Duplicates++
			continue
		}
		if err := r.repo.CreateVideo(ctx, video); err != nil {
			kwLog.Warn().
				Err(err).
				Str("video_id", video.VideoID).
				Msg("Failed to store video")
			result.Errors = append(result.Errors, fmt.Errorf("store %q: %w", video.VideoID, err))
			continue
		}
		result.Stored++
	}

	r.updateKeywordStats(ctx, keyword, result.Stored > 0, kwLog)

	kwLog.Info().
		Int("found", result.Found).
		Int("filtered", result.Filtered).
		Int("banned", result.Banned).
		Int("duplicates", result.Duplicates).
		Int("stored", result.Stored).
		Msg("Keyword processed")

	return result
}

// updateKeywordStats bumps usage counters after a fetch. Plain
// read-modify-write: ticks are minutes apart, a lost update under
// overlapping cycles is tolerated.
func (r *Runner) updateKeywordStats(ctx context.Context, keyword *models.Keyword, success bool, log *logger.Logger) {
	now := time.Now()
	keyword.UsageCount++
	if success {
		keyword.SuccessCount++
	}
	keyword.LastUsedAt = &now

	if err := r.repo.UpdateKeyword(ctx, keyword); err != nil {
		log.Warn().Err(err).Msg("Failed to update keyword stats")
	}
}

func buildVideo(candidate *models.CandidateVideo, classification Classification, keyword string) *models.Video {
	return &models.Video{
		VideoID:      candidate.VideoID,
		Title:        candidate.Title,
		Description:  candidate.Description,
		Tags:         candidate.Tags,
		ChannelID:    candidate.ChannelID,
		ChannelName:  candidate.ChannelName,
		ViewCount:    candidate.ViewCount,
		LikeCount:    candidate.LikeCount,
		PublishedAt:  candidate.PublishedAt,
		ThumbnailURL: candidate.ThumbnailURL,
		Category:     candidate.Category,
		Duration:     candidate.Duration,
		Status:       classification.Status,
		TrustLevel:   classification.TrustLevel,
		Keyword:      keyword,
	}
}
