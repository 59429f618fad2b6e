package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pattaya-pulse/video-pipeline/internal/ai"
	"github.com/pattaya-pulse/video-pipeline/internal/api"
	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/moderation"
	"github.com/pattaya-pulse/video-pipeline/internal/pipeline"
	"github.com/pattaya-pulse/video-pipeline/internal/scheduler"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/internal/source/youtube"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/sqlite"
	"github.com/pattaya-pulse/video-pipeline/internal/trending"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "video-scheduler",
		Short: "Background scheduler for the video pipeline",
		Long: `Runs the cron-driven fetch, cleanup and stats jobs and serves the
moderation/widget API. This daemon should be run as a service.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting video pipeline scheduler")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	limiter := ratelimit.NewDefaultLimiter()

	ctx := context.Background()
	videoSource, err := youtube.New(ctx, cfg.YouTube, limiter, log)
	if err != nil {
		return fmt.Errorf("failed to create video source: %w", err)
	}

	runner := pipeline.NewRunner(videoSource, repo, source.SearchOptions{
		MaxResults: cfg.YouTube.MaxResults,
		Order:      cfg.YouTube.Order,
		Region:     cfg.YouTube.Region,
	}, log)

	sched, err := scheduler.New(runner, repo, scheduler.Config{
		Timezone:      cfg.Scheduler.Timezone,
		DaytimeCron:   cfg.Scheduler.DaytimeCron,
		NighttimeCron: cfg.Scheduler.NighttimeCron,
		TrendingCron:  cfg.Scheduler.TrendingCron,
		CleanupCron:   cfg.Scheduler.CleanupCron,
		StatsCron:     cfg.Scheduler.StatsCron,
		RetentionCap:  cfg.Scheduler.RetentionCap,
	}, log)
	if err != nil {
		return err
	}

	if cfg.Trending.Enabled && len(cfg.Trending.Feeds) > 0 {
		refresher := trending.New(cfg.Trending, repo, limiter, log)
		if err := sched.Register("trending_refresh", cfg.Scheduler.TrendingRefreshCron, refresher.Refresh); err != nil {
			return err
		}
	}

	if cfg.Review.Enabled {
		reviewer := ai.NewReviewer(ai.NewClient(cfg.Anthropic, limiter, log), repo, cfg.Review, log)
		if err := sched.Register("ai_review", cfg.Scheduler.ReviewCron, reviewer.Run); err != nil {
			return err
		}
	}

	if err := sched.Start(); err != nil {
		return err
	}

	mod := moderation.New(repo, log)
	server := &http.Server{
		Addr:    cfg.API.Addr,
		Handler: api.New(mod, sched, log).Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.API.Addr).Msg("API server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server failed")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown error")
	}
	sched.Stop()

	return nil
}
