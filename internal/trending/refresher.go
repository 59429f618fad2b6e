package trending

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

// maxFeedItemAge skips stale feed items during a refresh
const maxFeedItemAge = 48 * time.Hour

// Refresher harvests trending topics from local news feeds and turns
// them into search keywords. Harvested keywords get a modest default
// priority; editors' keywords are never touched and nothing is ever
// deleted here.
type Refresher struct {
	feeds    []config.Feed
	parser   *gofeed.Parser
	repo     storage.Repository
	limiter  *ratelimit.MultiLimiter
	maxNew   int
	priority int
	log      *logger.Logger
}

// New creates a trending keyword refresher
func New(cfg config.TrendingConfig, repo storage.Repository, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Refresher {
	return &Refresher{
		feeds:    cfg.Feeds,
		parser:   gofeed.NewParser(),
		repo:     repo,
		limiter:  limiter,
		maxNew:   cfg.MaxNewKeywords,
		priority: cfg.DefaultPriority,
		log:      log.WithComponent("trending"),
	}
}

// Refresh pulls all configured feeds and upserts new trending keywords.
// A single feed's failure is logged and skipped.
func (r *Refresher) Refresh(ctx context.Context) error {
	created := 0

	for _, feed := range r.feeds {
		if created >= r.maxNew {
			break
		}

		if err := r.limiter.Wait(ctx, ratelimit.LimiterRSS); err != nil {
			return err
		}

		parsed, err := r.parser.ParseURLWithContext(feed.URL, ctx)
		if err != nil {
			r.log.Warn().Err(err).Str("feed", feed.Name).Msg("Failed to parse feed, skipping")
			continue
		}

		for _, item := range parsed.Items {
			if created >= r.maxNew {
				break
			}
			if item.PublishedParsed != nil && time.Since(*item.PublishedParsed) > maxFeedItemAge {
				continue
			}

			name := normalizeTopic(item.Title)
			if name == "" {
				continue
			}

			if existing, _ := r.repo.GetKeywordByName(ctx, name); existing != nil {
				continue
			}

			keyword := &models.Keyword{
				Name:     name,
				Category: feed.Name,
				Priority: r.priority,
				Active:   true,
				Source:   models.KeywordSourceTrending,
			}
			if err := r.repo.CreateKeyword(ctx, keyword); err != nil {
				r.log.Warn().Err(err).Str("keyword", name).Msg("Failed to create trending keyword")
				continue
			}
			created++
			r.log.Debug().Str("keyword", name).Str("feed", feed.Name).Msg("Trending keyword created")
		}
	}

	r.log.Info().Int("created", created).Int("feeds", len(r.feeds)).Msg("Trending refresh completed")
	return nil
}

// normalizeTopic trims a headline into a usable search keyword. Long
// headlines are cut at the first separator; anything still too long or
// too short is discarded.
func normalizeTopic(title string) string {
	title = strings.TrimSpace(title)

	for _, sep := range []string{" - ", " | ", ": ", " – " /* en dash */} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}

	words := strings.Fields(title)
	if len(words) < 2 {
		return ""
	}
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}
