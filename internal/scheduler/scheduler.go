package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pattaya-pulse/video-pipeline/internal/pipeline"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// Config holds the cron specs and retention settings for the primary
// scheduler. All specs are evaluated in Timezone.
type Config struct {
	Timezone      string
	DaytimeCron   string
	NighttimeCron string
	TrendingCron  string
	CleanupCron   string
	StatsCron     string
	RetentionCap  int
}

// Scheduler is the timing state machine driving the fetch pipeline.
// Each timer is an independent cron entry with its own in-progress
// guard: a tick of a timer that is still running is skipped, while
// overlap between distinct timers is tolerated because the pipeline
// dedupes by external video ID.
type Scheduler struct {
	runner *pipeline.Runner
	repo   storage.Repository
	cfg    Config
	loc    *time.Location
	log    *logger.Logger
	cron   *cron.Cron
	now    func() time.Time

	mu        sync.Mutex
	jobs      []*job
	startedAt time.Time
}

type job struct {
	name    string
	running atomic.Bool

	mu      sync.Mutex
	runs    int64
	skips   int64
	errors  int64
	lastRun time.Time
	lastErr string
}

// JobStatus is a snapshot of one timer's counters
type JobStatus struct {
	Name      string     `json:"name"`
	Running   bool       `json:"running"`
	Runs      int64      `json:"runs"`
	Skips     int64      `json:"skips"`
	Errors    int64      `json:"errors"`
	LastRunAt *time.Time `json:"last_run_at"`
	LastError string     `json:"last_error,omitempty"`
}

// Status is a snapshot of the scheduler
type Status struct {
	StartedAt time.Time   `json:"started_at"`
	Timezone  string      `json:"timezone"`
	Jobs      []JobStatus `json:"jobs"`
}

// New creates a scheduler. The pipeline runs are registered by Start;
// additional jobs (trending keyword refresh, AI review sweeps) can be
// attached with Register before Start is called.
func New(runner *pipeline.Runner, repo storage.Repository, cfg Config, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		runner: runner,
		repo:   repo,
		cfg:    cfg,
		loc:    loc,
		log:    log.WithComponent("scheduler"),
		now:    time.Now,
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{s.log}))
	return s, nil
}

// Daytime reports whether t falls in the daytime fetch window
// (06:00-23:59 local time)
func Daytime(t time.Time) bool {
	return t.Hour() >= 6
}

// Nighttime reports whether t falls in the nighttime fetch window
// (00:00-05:59 local time)
func Nighttime(t time.Time) bool {
	return t.Hour() < 6
}

// Register attaches an additional cron job with its own guard
func (s *Scheduler) Register(name, spec string, fn func(context.Context) error) error {
	j := s.newJob(name)
	_, err := s.cron.AddFunc(spec, func() {
		s.tick(j, nil, fn)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	s.log.Info().Str("job", name).Str("cron", spec).Msg("Job scheduled")
	return nil
}

// Start registers the built-in jobs and starts the cron loop
func (s *Scheduler) Start() error {
	type entry struct {
		name string
		spec string
		gate func(time.Time) bool
		fn   func(context.Context) error
	}

	entries := []entry{
		// Daytime fetch: every 30 minutes, 06:00-23:59 only.
		{"daytime_fetch", s.cfg.DaytimeCron, Daytime, s.runFetch},
		// Nighttime fetch: every 2 hours, 00:00-05:59 only.
		{"nighttime_fetch", s.cfg.NighttimeCron, Nighttime, s.runFetch},
		// Trending burst: every 5 minutes, a no-op when no keywords are
		// active.
		{"trending_burst", s.cfg.TrendingCron, nil, s.runFetch},
		{"daily_cleanup", s.cfg.CleanupCron, nil, s.runCleanup},
		{"stats_update", s.cfg.StatsCron, nil, s.runStats},
	}

	for _, e := range entries {
		j := s.newJob(e.name)
		gate := e.gate
		fn := e.fn
		_, err := s.cron.AddFunc(e.spec, func() {
			s.tick(j, gate, fn)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", e.name, err)
		}
		s.log.Info().Str("job", e.name).Str("cron", e.spec).Msg("Job scheduled")
	}

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info().Str("timezone", s.cfg.Timezone).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight ticks to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// Status returns a snapshot of all timers
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		StartedAt: s.startedAt,
		Timezone:  s.cfg.Timezone,
		Jobs:      make([]JobStatus, 0, len(s.jobs)),
	}
	for _, j := range s.jobs {
		j.mu.Lock()
		js := JobStatus{
			Name:      j.name,
			Running:   j.running.Load(),
			Runs:      j.runs,
			Skips:     j.skips,
			Errors:    j.errors,
			LastError: j.lastErr,
		}
		if !j.lastRun.IsZero() {
			lastRun := j.lastRun
			js.LastRunAt = &lastRun
		}
		j.mu.Unlock()
		status.Jobs = append(status.Jobs, js)
	}
	return status
}

func (s *Scheduler) newJob(name string) *job {
	j := &job{name: name}
	s.mu.Lock()
	s.jobs = append(s.jobs, j)
	s.mu.Unlock()
	return j
}

// tick runs one timer firing: the wall-clock gate is checked first, then
// the same-timer overlap guard. Panics are contained here so a broken
// tick never takes down the process or blocks the next firing.
func (s *Scheduler) tick(j *job, gate func(time.Time) bool, fn func(context.Context) error) {
	localNow := s.now().In(s.loc)
	if gate != nil && !gate(localNow) {
		s.log.Debug().Str("job", j.name).Int("hour", localNow.Hour()).Msg("Outside active window, tick ignored")
		return
	}

	if !j.running.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skips++
		j.mu.Unlock()
		s.log.Warn().Str("job", j.name).Msg("Previous tick still in progress, skipping")
		return
	}
	defer j.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			j.mu.Lock()
			j.errors++
			j.lastErr = fmt.Sprintf("panic: %v", r)
			j.mu.Unlock()
			s.log.Error().Str("job", j.name).Interface("panic", r).Msg("Tick panicked")
		}
	}()

	started := s.now()
	err := fn(context.Background())

	j.mu.Lock()
	j.runs++
	j.lastRun = started
	if err != nil {
		j.errors++
		j.lastErr = err.Error()
	} else {
		j.lastErr = ""
	}
	j.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", j.name).Msg("Tick failed")
	}
}

// runFetch executes a full pipeline cycle over all active keywords
func (s *Scheduler) runFetch(ctx context.Context) error {
	_, err := s.runner.Run(ctx, 0)
	return err
}

// runCleanup deletes the oldest stored videos beyond the retention cap.
// Featured and promoted records are preserved. Individual delete
// failures are collected and logged, not retried within the pass.
func (s *Scheduler) runCleanup(ctx context.Context) error {
	total, err := s.repo.CountVideos(ctx, storage.VideoFilter{})
	if err != nil {
		return fmt.Errorf("failed to count videos: %w", err)
	}
	retention := int64(s.cfg.RetentionCap)
	if retention <= 0 || total <= retention {
		s.log.Debug().Int64("total", total).Int64("cap", retention).Msg("Store under retention cap, nothing to clean")
		return nil
	}

	excess := int(total - retention)
	oldest, err := s.repo.ListVideos(ctx, storage.OldestVideosFilter(excess))
	if err != nil {
		return fmt.Errorf("failed to list cleanup candidates: %w", err)
	}

	deleted := 0
	var failed []uint
	for _, video := range oldest {
		if err := s.repo.DeleteVideo(ctx, video.ID); err != nil {
			s.log.Warn().Err(err).Uint("id", video.ID).Str("video_id", video.VideoID).Msg("Cleanup delete failed")
			failed = append(failed, video.ID)
			continue
		}
		deleted++
	}

	s.log.Info().
		Int64("total", total).
		Int64("cap", retention).
		Int("deleted", deleted).
		Int("failed", len(failed)).
		Uints("failed_ids", failed).
		Msg("Retention cleanup completed")
	return nil
}

// runStats recomputes each keyword's success rate from its counters
func (s *Scheduler) runStats(ctx context.Context) error {
	keywords, err := s.repo.ListKeywords(ctx, storage.KeywordFilter{OrderBy: "priority", OrderDesc: true})
	if err != nil {
		return fmt.Errorf("failed to list keywords: %w", err)
	}

	updated := 0
	for _, keyword := range keywords {
		rate := 0.0
		if keyword.UsageCount > 0 {
			rate = float64(keyword.SuccessCount) / float64(keyword.UsageCount) * 100
		}
		if keyword.SuccessRate == rate {
			continue
		}
		keyword.SuccessRate = rate
		if err := s.repo.UpdateKeyword(ctx, keyword); err != nil {
			s.log.Warn().Err(err).Str("keyword", keyword.Name).Msg("Failed to update keyword stats")
			continue
		}
		updated++
	}

	s.log.Info().Int("keywords", len(keywords)).Int("updated", updated).Msg("Keyword stats recomputed")
	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
