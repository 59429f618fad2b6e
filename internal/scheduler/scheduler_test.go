package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/storagetest"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func testConfig() Config {
	return Config{
		Timezone:      "UTC",
		DaytimeCron:   "*/30 * * * *",
		NighttimeCron: "0 */2 * * *",
		TrendingCron:  "*/5 * * * *",
		CleanupCron:   "45 4 * * *",
		StatsCron:     "10 */6 * * *",
		RetentionCap:  50,
	}
}

func newTestScheduler(t *testing.T, repo storage.Repository, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(nil, repo, cfg, testLogger())
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	return s
}

func TestNewRejectsInvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus_Mons"
	if _, err := New(nil, storagetest.New(), cfg, testLogger()); err == nil {
		t.Error("New() accepted an invalid timezone")
	}
}

func TestTimeWindows(t *testing.T) {
	tests := []struct {
		hour          string
		wantDaytime   bool
		wantNighttime bool
	}{
		{"00:00", false, true},
		{"02:30", false, true},
		{"05:59", false, true},
		{"06:00", true, false},
		{"10:00", true, false},
		{"23:59", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.hour, func(t *testing.T) {
			at, err := time.Parse("15:04", tt.hour)
			if err != nil {
				t.Fatal(err)
			}
			if got := Daytime(at); got != tt.wantDaytime {
				t.Errorf("Daytime(%s) = %v, want %v", tt.hour, got, tt.wantDaytime)
			}
			if got := Nighttime(at); got != tt.wantNighttime {
				t.Errorf("Nighttime(%s) = %v, want %v", tt.hour, got, tt.wantNighttime)
			}
		})
	}
}

func TestTickGateSkipsOutsideWindow(t *testing.T) {
	s := newTestScheduler(t, storagetest.New(), testConfig())
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC) // nighttime
	}

	ran := false
	j := s.newJob("daytime_fetch")
	s.tick(j, Daytime, func(ctx context.Context) error {
		ran = true
		return nil
	})

	if ran {
		t.Error("daytime job ran during the nighttime window")
	}
	if j.runs != 0 {
		t.Errorf("gated tick counted as a run: %d", j.runs)
	}
}

func TestTickOverlapGuard(t *testing.T) {
	s := newTestScheduler(t, storagetest.New(), testConfig())
	j := s.newJob("slow_job")

	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tick(j, nil, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	// Second firing while the first is still in flight.
	s.tick(j, nil, func(ctx context.Context) error {
		t.Error("overlapping tick of the same timer was executed")
		return nil
	})
	close(release)
	wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runs != 1 {
		t.Errorf("runs = %d, want 1", j.runs)
	}
	if j.skips != 1 {
		t.Errorf("skips = %d, want 1", j.skips)
	}
}

func TestTickRecordsErrorsAndRecoversPanics(t *testing.T) {
	s := newTestScheduler(t, storagetest.New(), testConfig())

	j := s.newJob("failing")
	s.tick(j, nil, func(ctx context.Context) error {
		return errors.New("upstream down")
	})
	if j.errors != 1 || j.lastErr != "upstream down" {
		t.Errorf("errors=%d lastErr=%q, want 1/%q", j.errors, j.lastErr, "upstream down")
	}

	p := s.newJob("panicking")
	s.tick(p, nil, func(ctx context.Context) error {
		panic("boom")
	})
	if p.errors != 1 {
		t.Errorf("panicking job errors = %d, want 1", p.errors)
	}
	if p.running.Load() {
		t.Error("job left marked running after panic")
	}
}

func TestRunCleanupDeletesOldestBeyondCap(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	cfg := testConfig()
	cfg.RetentionCap = 50
	s := newTestScheduler(t, repo, cfg)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		video := &models.Video{
			VideoID:   videoID(i),
			Title:     "t",
			Status:    models.VideoStatusActive,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		// The two oldest records are pinned and must survive.
		if i == 0 {
			video.Featured = true
		}
		if i == 1 {
			video.IsPromoted = true
		}
		if err := repo.CreateVideo(ctx, video); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.runCleanup(ctx); err != nil {
		t.Fatalf("runCleanup(): %v", err)
	}

	total, _ := repo.CountVideos(ctx, storage.VideoFilter{})
	if total != 50 {
		t.Errorf("store holds %d videos after cleanup, want 50", total)
	}

	for _, id := range []string{videoID(0), videoID(1)} {
		if _, err := repo.GetVideoByVideoID(ctx, id); err != nil {
			t.Errorf("pinned video %s was deleted", id)
		}
	}
	// Oldest unpinned records are gone, newest remain.
	if _, err := repo.GetVideoByVideoID(ctx, videoID(2)); err == nil {
		t.Error("oldest unpinned video survived cleanup")
	}
	if _, err := repo.GetVideoByVideoID(ctx, videoID(59)); err != nil {
		t.Error("newest video was deleted")
	}
}

func TestRunCleanupUnderCapIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	s := newTestScheduler(t, repo, testConfig())

	for i := 0; i < 10; i++ {
		if err := repo.CreateVideo(ctx, &models.Video{VideoID: videoID(i), Title: "t"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.runCleanup(ctx); err != nil {
		t.Fatalf("runCleanup(): %v", err)
	}
	total, _ := repo.CountVideos(ctx, storage.VideoFilter{})
	if total != 10 {
		t.Errorf("store holds %d videos, want 10 untouched", total)
	}
}

func TestRunStatsRecomputesSuccessRate(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	s := newTestScheduler(t, repo, testConfig())

	keyword := &models.Keyword{Name: "pattaya", Active: true, UsageCount: 4, SuccessCount: 3}
	if err := repo.CreateKeyword(ctx, keyword); err != nil {
		t.Fatal(err)
	}
	unused := &models.Keyword{Name: "fresh", Active: true}
	if err := repo.CreateKeyword(ctx, unused); err != nil {
		t.Fatal(err)
	}

	if err := s.runStats(ctx); err != nil {
		t.Fatalf("runStats(): %v", err)
	}

	got, err := repo.GetKeywordByID(ctx, keyword.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75", got.SuccessRate)
	}

	got, err = repo.GetKeywordByID(ctx, unused.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SuccessRate != 0 {
		t.Errorf("unused keyword rate = %v, want 0", got.SuccessRate)
	}
}

func TestStatusSnapshot(t *testing.T) {
	s := newTestScheduler(t, storagetest.New(), testConfig())

	j := s.newJob("fetch")
	s.tick(j, nil, func(ctx context.Context) error { return nil })

	status := s.Status()
	if status.Timezone != "UTC" {
		t.Errorf("timezone = %q, want UTC", status.Timezone)
	}
	if len(status.Jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(status.Jobs))
	}
	js := status.Jobs[0]
	if js.Name != "fetch" || js.Runs != 1 || js.LastRunAt == nil {
		t.Errorf("job snapshot = %+v, want fetch with 1 run and a last-run time", js)
	}
}

func videoID(i int) string {
	return "vid-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}
