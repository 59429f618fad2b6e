package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/pipeline"
	"github.com/pattaya-pulse/video-pipeline/internal/scheduler"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/internal/source/youtube"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/sqlite"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "video-fetcher",
		Short: "Standalone fallback fetcher for the video pipeline",
		Long: `Runs the fetch cycle on a plain fixed-delay timer, independent of the
scheduler daemon's cron subsystem. Intended for deployments where in-process
cron ticks are unreliable.`,
		RunE: runFetcher,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFetcher(cmd *cobra.Command, args []string) error {
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

	log.Info().Msg("Starting fallback fetcher")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	limiter := ratelimit.NewDefaultLimiter()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	videoSource, err := youtube.New(ctx, cfg.YouTube, limiter, log)
	if err != nil {
		return fmt.Errorf("failed to create video source: %w", err)
	}

	runner := pipeline.NewRunner(videoSource, repo, source.SearchOptions{
		MaxResults: cfg.YouTube.MaxResults,
		Order:      cfg.YouTube.Order,
		Region:     cfg.YouTube.Region,
	}, log)

	fetcher := scheduler.NewStandalone(runner, repo, scheduler.StandaloneConfig{
		Interval:     cfg.Fetcher.Interval,
		KeywordLimit: cfg.Fetcher.KeywordLimit,
		RetentionCap: cfg.Fetcher.RetentionCap,
	}, log)

	return fetcher.Run(ctx)
}
