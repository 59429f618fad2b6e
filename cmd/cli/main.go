package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pattaya-pulse/video-pipeline/internal/ai"
	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/moderation"
	"github.com/pattaya-pulse/video-pipeline/internal/pipeline"
	"github.com/pattaya-pulse/video-pipeline/internal/scheduler"
	"github.com/pattaya-pulse/video-pipeline/internal/source"
	"github.com/pattaya-pulse/video-pipeline/internal/source/youtube"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/sqlite"
	"github.com/pattaya-pulse/video-pipeline/internal/trending"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "video-pipeline",
		Short: "Video acquisition and moderation pipeline",
		Long: `Manages the keyword catalog, exclusion rules and channel registries,
and runs fetch, cleanup, trending and review sweeps on demand.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(channelsCmd())
	rootCmd.AddCommand(videosCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(trendingCmd())
	rootCmd.AddCommand(reviewCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func newRunner(ctx context.Context) (*pipeline.Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limiter := ratelimit.NewDefaultLimiter()
	videoSource, err := youtube.New(ctx, cfg.YouTube, limiter, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create video source: %w", err)
	}

	return pipeline.NewRunner(videoSource, repo, source.SearchOptions{
		MaxResults: cfg.YouTube.MaxResults,
		Order:      cfg.YouTube.Order,
		Region:     cfg.YouTube.Region,
	}, log), nil
}

// ============ KEYWORDS COMMANDS ============

func keywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage the search keyword catalog",
	}

	cmd.AddCommand(keywordsListCmd())
	cmd.AddCommand(keywordsAddCmd())
	cmd.AddCommand(keywordsToggleCmd())
	return cmd
}

func keywordsListCmd() *cobra.Command {
	var activeOnly bool
	var src string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.KeywordFilter{
				ActiveOnly: activeOnly,
				Limit:      limit,
				OrderBy:    "priority",
				OrderDesc:  true,
			}
			if src != "" {
				filter.Source = &src
			}

			keywords, err := repo.ListKeywords(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Keywords (%d) ===\n\n", len(keywords))
			for _, k := range keywords {
				state := "active"
				if !k.Active {
					state = "inactive"
				}
				fmt.Printf("[%d] %s | priority %d | %s | %s\n", k.ID, k.Name, k.Priority, k.Source, state)
				fmt.Printf("    Used: %d | Successful: %d | Success rate: %.0f%%\n", k.UsageCount, k.SuccessCount, k.SuccessRate)
				if k.LastUsedAt != nil {
					fmt.Printf("    Last used: %s\n", k.LastUsedAt.Format(time.RFC1123))
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show active keywords only")
	cmd.Flags().StringVar(&src, "source", "", "Filter by source (editor, trending)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum keywords to show")

	return cmd
}

func keywordsAddCmd() *cobra.Command {
	var category string
	var priority int

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add an editorial keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			keyword := &models.Keyword{
				Name:     args[0],
				Category: category,
				Priority: priority,
				Active:   true,
				Source:   models.KeywordSourceEditor,
			}
			if err := repo.CreateKeyword(ctx, keyword); err != nil {
				return fmt.Errorf("failed to create keyword: %w", err)
			}

			fmt.Printf("Keyword %d created: %s\n", keyword.ID, keyword.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Keyword category")
	cmd.Flags().IntVar(&priority, "priority", 5, "Fetch priority (higher runs first)")

	return cmd
}

func keywordsToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle [keyword-id]",
		Short: "Toggle a keyword active/inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid keyword ID: %w", err)
			}

			keyword, err := repo.GetKeywordByID(ctx, uint(id))
			if err != nil {
				return fmt.Errorf("keyword not found: %w", err)
			}

			keyword.Active = !keyword.Active
			if err := repo.UpdateKeyword(ctx, keyword); err != nil {
				return err
			}

			state := "active"
			if !keyword.Active {
				state = "inactive"
			}
			fmt.Printf("Keyword %d (%s) is now %s\n", keyword.ID, keyword.Name, state)
			return nil
		},
	}

	return cmd
}

// ============ RULES COMMANDS ============

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage banned keyword rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List banned keyword rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			rules, err := repo.ListBannedKeywords(ctx, activeOnly)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Banned Keywords (%d) ===\n\n", len(rules))
			for _, r := range rules {
				state := "active"
				if !r.Active {
					state = "inactive"
				}
				caseMode := "case-insensitive"
				if r.CaseSensitive {
					caseMode = "case-sensitive"
				}
				fmt.Printf("[%d] %q | %s on %s | %s | %s\n", r.ID, r.Keyword, r.MatchType, r.AppliesTo, caseMode, state)
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show active rules only")
	return cmd
}

func rulesAddCmd() *cobra.Command {
	var matchType string
	var appliesTo string
	var caseSensitive bool

	cmd := &cobra.Command{
		Use:   "add [pattern]",
		Short: "Add a banned keyword rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			rule := &models.BannedKeyword{
				Keyword:       args[0],
				MatchType:     models.MatchType(matchType),
				AppliesTo:     models.AppliesTo(appliesTo),
				CaseSensitive: caseSensitive,
				Active:        true,
			}
			if !rule.MatchType.Valid() {
				return fmt.Errorf("invalid match type: %s", matchType)
			}
			if !rule.AppliesTo.Valid() {
				return fmt.Errorf("invalid applies-to field: %s", appliesTo)
			}

			if err := repo.CreateBannedKeyword(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Printf("Rule %d created: %s %q on %s\n", rule.ID, rule.MatchType, rule.Keyword, rule.AppliesTo)
			return nil
		},
	}

	cmd.Flags().StringVar(&matchType, "match", "contains", "Match type: contains, exact, starts_with, ends_with, regex")
	cmd.Flags().StringVar(&appliesTo, "applies-to", "all", "Field to match: title, description, tags, channel, all")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "Match case sensitively")

	return cmd
}

// ============ CHANNELS COMMANDS ============

func channelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage channel trust and ban registries",
	}

	cmd.AddCommand(channelsListCmd())
	cmd.AddCommand(channelsTrustCmd())
	cmd.AddCommand(channelsBanCmd())
	return cmd
}

func channelsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trusted and banned channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			trusted, err := repo.ListTrustedChannels(ctx, false)
			if err != nil {
				return err
			}
			banned, err := repo.ListBannedChannels(ctx, false)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Trusted Channels (%d) ===\n\n", len(trusted))
			for _, c := range trusted {
				auto := ""
				if c.AutoApprove {
					auto = " | auto-approve"
				}
				fmt.Printf("[%d] %s (%s) | trust %s%s\n", c.ID, c.ChannelName, c.ChannelID, c.TrustLevel, auto)
			}

			fmt.Printf("\n=== Banned Channels (%d) ===\n\n", len(banned))
			for _, c := range banned {
				fmt.Printf("[%d] %s | %s\n", c.ID, c.ChannelID, c.Reason)
			}
			fmt.Println()

			return nil
		},
	}

	return cmd
}

func channelsTrustCmd() *cobra.Command {
	var name string
	var level string
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "trust [channel-id]",
		Short: "Add a channel to the trusted registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			trust := models.TrustLevel(level)
			if trust.Rank() == 0 {
				return fmt.Errorf("invalid trust level: %s", level)
			}

			entry := &models.TrustedChannel{
				ChannelID:   args[0],
				ChannelName: name,
				TrustLevel:  trust,
				AutoApprove: autoApprove,
				Active:      true,
				Platform:    "youtube",
			}
			if err := repo.CreateTrustedChannel(ctx, entry); err != nil {
				return fmt.Errorf("failed to create trusted channel: %w", err)
			}

			fmt.Printf("Channel %s trusted at level %s\n", entry.ChannelID, entry.TrustLevel)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Channel display name")
	cmd.Flags().StringVar(&level, "level", "medium", "Trust level: low, medium, high")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Publish this channel's videos without review")

	return cmd
}

func channelsBanCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ban [channel-id]",
		Short: "Add a channel to the banned registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			entry := &models.BannedChannel{
				ChannelID: args[0],
				Reason:    reason,
				Active:    true,
				Platform:  "youtube",
			}
			if err := repo.CreateBannedChannel(ctx, entry); err != nil {
				return fmt.Errorf("failed to create banned channel: %w", err)
			}

			fmt.Printf("Channel %s banned\n", entry.ChannelID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the channel is banned")

	return cmd
}

// ============ VIDEOS COMMANDS ============

func videosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List and moderate stored videos",
	}

	cmd.AddCommand(videosListCmd())
	cmd.AddCommand(videosModerateCmd())
	cmd.AddCommand(videosStatsCmd())
	return cmd
}

func videosListCmd() *cobra.Command {
	var status string
	var keyword string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.VideoFilter{
				Limit:     limit,
				OrderBy:   "created_at",
				OrderDesc: true,
			}
			if status != "" {
				s := models.VideoStatus(status)
				if !s.Valid() {
					return fmt.Errorf("invalid status: %s", status)
				}
				filter.Status = &s
			}
			if keyword != "" {
				filter.Keyword = &keyword
			}

			videos, err := repo.ListVideos(ctx, filter)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Videos (%d) ===\n\n", len(videos))
			for _, v := range videos {
				trust := "unknown"
				if v.TrustLevel != nil {
					trust = string(*v.TrustLevel)
				}
				fmt.Printf("[%d] %s | %s | trust %s\n", v.ID, v.VideoID, v.Status, trust)
				fmt.Printf("    %s\n", v.Title)
				fmt.Printf("    Channel: %s | Views: %d | Keyword: %s\n", v.ChannelName, v.ViewCount, v.Keyword)
				if v.ModerationReason != "" {
					fmt.Printf("    Reason: %s\n", v.ModerationReason)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, active, rejected, archived)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Filter by source keyword")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum videos to show")

	return cmd
}

func videosModerateCmd() *cobra.Command {
	var status string
	var reason string
	var by string

	cmd := &cobra.Command{
		Use:   "moderate [video-id]",
		Short: "Set a video's moderation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid video ID: %w", err)
			}

			mod := moderation.New(repo, log)
			video, err := mod.Moderate(ctx, uint(id), models.VideoStatus(status), by, reason)
			if err != nil {
				return err
			}

			fmt.Printf("Video %d (%s) is now %s\n", video.ID, video.VideoID, video.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status: pending, active, rejected, archived (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "Moderation reason")
	cmd.Flags().StringVar(&by, "by", "cli", "Moderator identity")
	cmd.MarkFlagRequired("status")

	return cmd
}

func videosStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show video counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			mod := moderation.New(repo, log)
			counts, err := mod.StatusCounts(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Video Stats ===\n")
			fmt.Printf("Pending:  %d\n", counts[models.VideoStatusPending])
			fmt.Printf("Active:   %d\n", counts[models.VideoStatusActive])
			fmt.Printf("Rejected: %d\n", counts[models.VideoStatusRejected])
			fmt.Printf("Archived: %d\n", counts[models.VideoStatusArchived])

			return nil
		},
	}

	return cmd
}

// ============ FETCH COMMANDS ============

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch cycle commands",
	}

	cmd.AddCommand(fetchRunCmd())
	return cmd
}

func fetchRunCmd() *cobra.Command {
	var keyword string
	var limit int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one fetch cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}

			if keyword != "" {
				k, err := repo.GetKeywordByName(ctx, keyword)
				if err != nil {
					return fmt.Errorf("keyword not found: %w", err)
				}

				result, err := runner.ProcessKeyword(ctx, k)
				if err != nil && result == nil {
					return err
				}
				fmt.Printf("\n=== Fetch Results: %s ===\n", result.Keyword)
				fmt.Printf("Found:      %d\n", result.Found)
				fmt.Printf("Filtered:   %d\n", result.Filtered)
				fmt.Printf("Banned:     %d\n", result.Banned)
				fmt.Printf("Duplicates: %d\n", result.Duplicates)
				fmt.Printf("Stored:     %d\n", result.Stored)
				printErrors(result.Errors)
				return nil
			}

			result, err := runner.Run(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("\n=== Fetch Cycle %s ===\n", result.CycleID)
			fmt.Printf("Keywords: %d\n", result.Keywords)
			fmt.Printf("Found:    %d\n", result.Found)
			fmt.Printf("Stored:   %d\n", result.Stored)
			fmt.Printf("Errors:   %d\n", result.Errors)
			fmt.Printf("Degraded: %v\n", result.Degraded)
			fmt.Printf("Duration: %s\n", result.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "Fetch a single keyword by name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum keywords to process (0 = all)")

	return cmd
}

// ============ CLEANUP COMMAND ============

func cleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Run one retention cleanup pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}

			fetcher := scheduler.NewStandalone(runner, repo, scheduler.StandaloneConfig{
				RetentionCap: cfg.Fetcher.RetentionCap,
			}, log)

			deleted, err := fetcher.Cleanup(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Cleanup complete, %d videos deleted\n", deleted)
			return nil
		},
	}

	return cmd
}

// ============ TRENDING COMMANDS ============

func trendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Trending keyword harvest commands",
	}

	cmd.AddCommand(trendingRefreshCmd())
	return cmd
}

func trendingRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Harvest trending keywords from configured feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if !cfg.Trending.Enabled || len(cfg.Trending.Feeds) == 0 {
				return fmt.Errorf("trending harvest is not enabled in config")
			}

			limiter := ratelimit.NewDefaultLimiter()
			refresher := trending.New(cfg.Trending, repo, limiter, log)

			if err := refresher.Refresh(ctx); err != nil {
				return err
			}

			fmt.Println("Trending refresh complete")
			return nil
		},
	}

	return cmd
}

// ============ REVIEW COMMANDS ============

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "AI review commands",
	}

	cmd.AddCommand(reviewRunCmd())
	return cmd
}

func reviewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one AI review sweep over pending videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if cfg.Anthropic.APIKey == "" {
				return fmt.Errorf("anthropic.api_key is required for review")
			}

			limiter := ratelimit.NewDefaultLimiter()
			reviewer := ai.NewReviewer(ai.NewClient(cfg.Anthropic, limiter, log), repo, cfg.Review, log)

			return reviewer.Run(ctx)
		},
	}

	return cmd
}

func printErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("\nErrors:\n")
	for _, e := range errs {
		fmt.Printf("  - %s\n", e)
	}
}
