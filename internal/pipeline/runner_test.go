package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/storagetest"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
)

// fakeSource serves canned candidates per keyword
type fakeSource struct {
	results map[string][]*models.CandidateVideo
	errs    map[string]error
	calls   []string
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Search(ctx context.Context, keyword string, opts source.SearchOptions) ([]*models.CandidateVideo, error) {
	f.calls = append(f.calls, keyword)
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.results[keyword], nil
}

func (f *fakeSource) HealthCheck(ctx context.Context) error { return nil }

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func candidate(videoID, title, channelID string, views int64) *models.CandidateVideo {
	return &models.CandidateVideo{
		VideoID:     videoID,
		Title:       title,
		ChannelID:   channelID,
		ChannelName: channelID,
		ViewCount:   views,
	}
}

func addKeyword(t *testing.T, repo *storagetest.Fake, name string, priority int) *models.Keyword {
	t.Helper()
	keyword := &models.Keyword{Name: name, Priority: priority, Active: true, Source: models.KeywordSourceEditor}
	if err := repo.CreateKeyword(context.Background(), keyword); err != nil {
		t.Fatalf("CreateKeyword(%q): %v", name, err)
	}
	return keyword
}

func TestRunnerRunStoresClassifiedVideos(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	addKeyword(t, repo, "pattaya beach", 10)

	if err := repo.CreateTrustedChannel(ctx, &models.TrustedChannel{
		ChannelID:   "ch-official",
		TrustLevel:  models.TrustLevelHigh,
		AutoApprove: true,
		Active:      true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBannedChannel(ctx, &models.BannedChannel{ChannelID: "ch-spam", Active: true}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBannedKeyword(ctx, &models.BannedKeyword{
		Keyword:   "scam",
		MatchType: models.MatchContains,
		AppliesTo: models.AppliesToTitle,
		Active:    true,
	}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{results: map[string][]*models.CandidateVideo{
		"pattaya beach": {
			candidate("vid-trusted", "Pattaya Beach Paradise", "ch-official", 100),
			candidate("vid-unknown", "Beach walk 4K", "ch-random", 50),
			candidate("vid-scam", "Pattaya SCAM warning", "ch-random", 999),
			candidate("vid-banned", "Nice title", "ch-spam", 10),
		},
	}}

	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())
	result, err := runner.Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if result.Keywords != 1 || result.Found != 4 || result.Stored != 2 {
		t.Fatalf("cycle = %+v, want 1 keyword, 4 found, 2 stored", result)
	}
	if result.Degraded {
		t.Error("cycle marked degraded with healthy registries")
	}

	trusted, err := repo.GetVideoByVideoID(ctx, "vid-trusted")
	if err != nil {
		t.Fatalf("trusted video not stored: %v", err)
	}
	if trusted.Status != models.VideoStatusActive {
		t.Errorf("trusted auto-approve status = %v, want active", trusted.Status)
	}
	if trusted.TrustLevel == nil || *trusted.TrustLevel != models.TrustLevelHigh {
		t.Errorf("trusted video trust = %v, want high", trusted.TrustLevel)
	}
	if trusted.Keyword != "pattaya beach" {
		t.Errorf("stored keyword = %q, want %q", trusted.Keyword, "pattaya beach")
	}

	unknown, err := repo.GetVideoByVideoID(ctx, "vid-unknown")
	if err != nil {
		t.Fatalf("unknown-channel video not stored: %v", err)
	}
	if unknown.Status != models.VideoStatusPending {
		t.Errorf("unknown channel status = %v, want pending", unknown.Status)
	}
	if unknown.TrustLevel != nil {
		t.Errorf("unknown channel trust = %v, want nil", unknown.TrustLevel)
	}

	if _, err := repo.GetVideoByVideoID(ctx, "vid-scam"); err == nil {
		t.Error("candidate matching banned keyword was stored")
	}
	if _, err := repo.GetVideoByVideoID(ctx, "vid-banned"); err == nil {
		t.Error("candidate from banned channel was stored")
	}
}

func TestRunnerRunSkipsStoredDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	addKeyword(t, repo, "pattaya", 1)

	src := &fakeSource{results: map[string][]*models.CandidateVideo{
		"pattaya": {candidate("vid-1", "First", "ch-1", 10)},
	}}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	if _, err := runner.Run(ctx, 0); err != nil {
		t.Fatal(err)
	}
	result, err := runner.Run(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}

	if result.Stored != 0 {
		t.Errorf("second cycle stored %d, want 0 (already in store)", result.Stored)
	}
	total, _ := repo.CountVideos(ctx, storage.VideoFilter{})
	if total != 1 {
		t.Errorf("store holds %d videos, want 1", total)
	}
}

func TestRunnerRunKeywordListFailure(t *testing.T) {
	repo := storagetest.New()
	repo.FailWith("ListKeywords", errors.New("db down"))

	src := &fakeSource{}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	result, err := runner.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run() = %v, keyword list failure must mean nothing to fetch, not a failed cycle", err)
	}
	if result.Keywords != 0 || result.Found != 0 {
		t.Errorf("cycle = %+v, want empty", result)
	}
	if len(src.calls) != 0 {
		t.Errorf("source was called %d times, want 0", len(src.calls))
	}
}

func TestRunnerRunDegradedRegistries(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	addKeyword(t, repo, "pattaya", 1)

	// A trusted auto-approve entry that will be invisible while degraded.
	if err := repo.CreateTrustedChannel(ctx, &models.TrustedChannel{
		ChannelID:   "ch-official",
		TrustLevel:  models.TrustLevelHigh,
		AutoApprove: true,
		Active:      true,
	}); err != nil {
		t.Fatal(err)
	}
	repo.FailWith("ListTrustedChannels", errors.New("registry down"))

	src := &fakeSource{results: map[string][]*models.CandidateVideo{
		"pattaya": {candidate("vid-1", "Official upload", "ch-official", 10)},
	}}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	result, err := runner.Run(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Degraded {
		t.Error("cycle not marked degraded")
	}

	stored, err := repo.GetVideoByVideoID(ctx, "vid-1")
	if err != nil {
		t.Fatalf("candidate dropped while degraded, want kept as pending: %v", err)
	}
	if stored.Status != models.VideoStatusPending {
		t.Errorf("degraded status = %v, want pending", stored.Status)
	}
	if stored.TrustLevel != nil {
		t.Errorf("degraded trust = %v, want nil", stored.TrustLevel)
	}
}

func TestRunnerRunSearchFailureSkipsKeyword(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	addKeyword(t, repo, "broken", 10)
	addKeyword(t, repo, "working", 5)

	src := &fakeSource{
		results: map[string][]*models.CandidateVideo{
			"working": {candidate("vid-ok", "Fine", "ch-1", 1)},
		},
		errs: map[string]error{"broken": errors.New("quota exceeded")},
	}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	result, err := runner.Run(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}

	if result.Errors != 1 {
		t.Errorf("cycle errors = %d, want 1", result.Errors)
	}
	if result.Stored != 1 {
		t.Errorf("cycle stored = %d, want 1 (failing keyword must not abort the rest)", result.Stored)
	}
	if len(src.calls) != 2 {
		t.Errorf("source called for %d keywords, want 2", len(src.calls))
	}
}

func TestRunnerRunKeywordLimitAndPriorityOrder(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	addKeyword(t, repo, "low", 1)
	addKeyword(t, repo, "high", 9)
	addKeyword(t, repo, "mid", 5)

	src := &fakeSource{}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	result, err := runner.Run(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Keywords != 2 {
		t.Fatalf("cycle keywords = %d, want 2", result.Keywords)
	}
	if len(src.calls) != 2 || src.calls[0] != "high" || src.calls[1] != "mid" {
		t.Errorf("processed %v, want [high mid] (priority order, capped)", src.calls)
	}
}

func TestRunnerUpdatesKeywordStats(t *testing.T) {
	ctx := context.Background()
	repo := storagetest.New()
	stored := addKeyword(t, repo, "hits", 2)
	empty := addKeyword(t, repo, "misses", 1)

	src := &fakeSource{results: map[string][]*models.CandidateVideo{
		"hits": {candidate("vid-1", "Found one", "ch-1", 1)},
	}}
	runner := NewRunner(src, repo, source.SearchOptions{}, testLogger())

	if _, err := runner.Run(ctx, 0); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetKeywordByID(ctx, stored.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 1 || got.SuccessCount != 1 {
		t.Errorf("stored keyword counters = %d/%d, want 1/1", got.UsageCount, got.SuccessCount)
	}
	if got.LastUsedAt == nil {
		t.Error("stored keyword LastUsedAt not set")
	}

	got, err = repo.GetKeywordByID(ctx, empty.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UsageCount != 1 || got.SuccessCount != 0 {
		t.Errorf("empty keyword counters = %d/%d, want 1/0", got.UsageCount, got.SuccessCount)
	}
}
