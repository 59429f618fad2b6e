package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pattaya-pulse/video-pipeline/internal/pipeline"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// StandaloneConfig holds the fallback fetcher settings
type StandaloneConfig struct {
	Interval     time.Duration
	KeywordLimit int
	RetentionCap int
}

// Standalone is a process-level fallback for deployments where the
// in-process cron ticks proved unreliable. It re-runs the fetch cycle on
// a plain fixed-delay timer and applies its own retention policy. The
// single loop implicitly guards against re-entrancy; a long cycle simply
// delays the next tick.
type Standalone struct {
	runner *pipeline.Runner
	repo   storage.Repository
	cfg    StandaloneConfig
	log    *logger.Logger

	mu                sync.Mutex
	isRunning         bool
	cycleCount        int64
	lastFetchTime     time.Time
	successfulFetches int64
	errorCount        int64
}

// StandaloneStatus is a snapshot of the fallback fetcher
type StandaloneStatus struct {
	IsRunning         bool       `json:"is_running"`
	CycleCount        int64      `json:"cycle_count"`
	LastFetchTime     *time.Time `json:"last_fetch_time"`
	SuccessfulFetches int64      `json:"successful_fetches"`
	ErrorCount        int64      `json:"error_count"`
}

// NewStandalone creates a fallback fetcher
func NewStandalone(runner *pipeline.Runner, repo storage.Repository, cfg StandaloneConfig, log *logger.Logger) *Standalone {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	if cfg.KeywordLimit <= 0 {
		cfg.KeywordLimit = 2
	}
	return &Standalone{
		runner: runner,
		repo:   repo,
		cfg:    cfg,
		log:    log.WithComponent("fallback-fetcher"),
	}
}

// Run executes fetch cycles until ctx is cancelled. The first cycle
// starts immediately. Cancellation stops further ticks; an in-flight
// cycle is allowed to finish.
func (s *Standalone) Run(ctx context.Context) error {
	s.mu.Lock()
	s.isRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	s.log.Info().
		Dur("interval", s.cfg.Interval).
		Int("keyword_limit", s.cfg.KeywordLimit).
		Int("retention_cap", s.cfg.RetentionCap).
		Msg("Fallback fetcher started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			s.log.Info().
				Int64("cycles", s.cycles()).
				Int64("successful", s.successes()).
				Int64("errors", s.errorTotal()).
				Msg("Fallback fetcher stopping")
			return nil
		}
	}
}

// runCycle executes one fetch + cleanup pass. Any panic or error is
// contained here; the next tick proceeds independently.
func (s *Standalone) runCycle(ctx context.Context) {
	s.mu.Lock()
	s.cycleCount++
	cycle := s.cycleCount
	s.mu.Unlock()

	log := &logger.Logger{Logger: s.log.With().Int64("cycle", cycle).Logger()}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.recordError()
			log.Error().Interface("panic", r).Msg("Cycle panicked")
		}
	}()

	before, err := s.repo.CountVideos(ctx, storage.VideoFilter{})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count videos before cycle")
	}

	result, err := s.runner.Run(ctx, s.cfg.KeywordLimit)
	if err != nil {
		s.recordError()
		log.Error().Err(err).Msg("Fetch cycle failed")
		return
	}

	deleted, failed := s.cleanup(ctx, log)

	after, err := s.repo.CountVideos(ctx, storage.VideoFilter{})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count videos after cycle")
	}

	s.mu.Lock()
	s.lastFetchTime = started
	if result.Errors == 0 {
		s.successfulFetches++
	} else {
		s.errorCount++
	}
	successes, errors := s.successfulFetches, s.errorCount
	s.mu.Unlock()

	log.Info().
		Int("keywords", result.Keywords).
		Int("stored", result.Stored).
		Int("deleted", deleted).
		Int("delete_failures", len(failed)).
		Int64("videos_before", before).
		Int64("videos_after", after).
		Int64("total_successful", successes).
		Int64("total_errors", errors).
		Dur("duration", time.Since(started)).
		Msg("Cycle completed")
}

// cleanup enforces the retention cap: when the store exceeds it, the
// oldest unpinned records are deleted until back under. Individual
// delete failures are collected per ID and logged, never aborting the
// batch.
func (s *Standalone) cleanup(ctx context.Context, log *logger.Logger) (int, []uint) {
	total, err := s.repo.CountVideos(ctx, storage.VideoFilter{})
	if err != nil {
		log.Warn().Err(err).Msg("Retention count failed, skipping cleanup")
		return 0, nil
	}
	retention := int64(s.cfg.RetentionCap)
	if retention <= 0 || total <= retention {
		return 0, nil
	}

	excess := int(total - retention)
	oldest, err := s.repo.ListVideos(ctx, storage.OldestVideosFilter(excess))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list cleanup candidates")
		return 0, nil
	}

	deleted := 0
	var failed []uint
	for _, video := range oldest {
		if err := s.repo.DeleteVideo(ctx, video.ID); err != nil {
			failed = append(failed, video.ID)
			continue
		}
		deleted++
	}

	if len(failed) > 0 {
		log.Warn().Uints("failed_ids", failed).Msg("Some retention deletes failed")
	}
	return deleted, failed
}

// Cleanup runs one retention pass outside the loop. Exposed for one-shot
// CLI maintenance.
func (s *Standalone) Cleanup(ctx context.Context) (int, error) {
	deleted, failed := s.cleanup(ctx, s.log)
	if len(failed) > 0 {
		return deleted, fmt.Errorf("%d deletes failed", len(failed))
	}
	return deleted, nil
}

// Status returns a snapshot of the fetcher's counters
func (s *Standalone) Status() StandaloneStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StandaloneStatus{
		IsRunning:         s.isRunning,
		CycleCount:        s.cycleCount,
		SuccessfulFetches: s.successfulFetches,
		ErrorCount:        s.errorCount,
	}
	if !s.lastFetchTime.IsZero() {
		lastFetch := s.lastFetchTime
		status.LastFetchTime = &lastFetch
	}
	return status
}

func (s *Standalone) cycles() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleCount
}

func (s *Standalone) successes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successfulFetches
}

func (s *Standalone) errorTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

func (s *Standalone) recordError() {
	s.mu.Lock()
	s.errorCount++
	s.mu.Unlock()
}
