package trending

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pattaya-pulse/video-pipeline/internal/config"
	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
	"github.com/pattaya-pulse/video-pipeline/internal/storage/storagetest"
	"github.com/pattaya-pulse/video-pipeline/pkg/logger"
	"github.com/pattaya-pulse/video-pipeline/pkg/ratelimit"
)

func TestNormalizeTopic(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain headline", "Pattaya floating market reopens", "Pattaya floating market reopens"},
		{"cut at dash separator", "Songkran festival dates announced - Pattaya Mail", "Songkran festival dates announced"},
		{"cut at pipe separator", "New beach road plan | The Nation", "New beach road plan"},
		{"cut at colon separator", "Breaking: ferry service resumes next month", "Breaking"},
		{"single word discarded", "Pattaya", ""},
		{"empty discarded", "   ", ""},
		{"long headline capped at eight words", "one two three four five six seven eight nine ten", "one two three four five six seven eight"},
		{"whitespace trimmed", "  walking street parade  ", "walking street parade"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeTopic(tt.title); got != tt.want {
				t.Errorf("normalizeTopic(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func rssFeed(items ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test Feed</title>`
	for _, item := range items {
		body += item
	}
	return body + `</channel></rss>`
}

func rssItem(title string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><pubDate>%s</pubDate></item>`,
		title, published.Format(time.RFC1123Z))
}

func newRefresher(repo storage.Repository, feeds []config.Feed, maxNew int) *Refresher {
	return New(config.TrendingConfig{
		Enabled:         true,
		Feeds:           feeds,
		MaxNewKeywords:  maxNew,
		DefaultPriority: 3,
	}, repo, ratelimit.NewDefaultLimiter(), &logger.Logger{Logger: zerolog.Nop()})
}

func TestRefreshHarvestsKeywords(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			rssItem("Pattaya marathon returns - Pattaya Mail", now),
			rssItem("Songkran", now), // one word, discarded
			rssItem("Jomtien night market expands", now.Add(-72*time.Hour)), // stale
			rssItem("Koh Larn ferry upgrade planned", now),
		))
	}))
	defer server.Close()

	repo := storagetest.New()
	r := newRefresher(repo, []config.Feed{{Name: "local-news", URL: server.URL}}, 10)

	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh(): %v", err)
	}

	keywords, err := repo.ListKeywords(ctx, storage.KeywordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(keywords) != 2 {
		t.Fatalf("harvested %d keywords, want 2", len(keywords))
	}

	byName := map[string]*models.Keyword{}
	for _, k := range keywords {
		byName[k.Name] = k
	}
	for _, want := range []string{"Pattaya marathon returns", "Koh Larn ferry upgrade planned"} {
		k, ok := byName[want]
		if !ok {
			t.Errorf("keyword %q not harvested", want)
			continue
		}
		if k.Source != models.KeywordSourceTrending {
			t.Errorf("keyword %q source = %q, want trending", want, k.Source)
		}
		if k.Category != "local-news" {
			t.Errorf("keyword %q category = %q, want feed name", want, k.Category)
		}
		if k.Priority != 3 {
			t.Errorf("keyword %q priority = %d, want default 3", want, k.Priority)
		}
		if !k.Active {
			t.Errorf("keyword %q created inactive", want)
		}
	}
}

func TestRefreshSkipsExistingAndCapsNew(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			rssItem("already known topic", now),
			rssItem("fresh topic one", now),
			rssItem("fresh topic two", now),
			rssItem("fresh topic three", now),
		))
	}))
	defer server.Close()

	repo := storagetest.New()
	existing := &models.Keyword{Name: "already known topic", Active: true, Source: models.KeywordSourceEditor}
	if err := repo.CreateKeyword(ctx, existing); err != nil {
		t.Fatal(err)
	}

	r := newRefresher(repo, []config.Feed{{Name: "local-news", URL: server.URL}}, 2)
	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh(): %v", err)
	}

	keywords, err := repo.ListKeywords(ctx, storage.KeywordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(keywords) != 3 {
		t.Errorf("store holds %d keywords, want 3 (1 existing + 2 capped)", len(keywords))
	}

	// The existing editor keyword is untouched.
	got, err := repo.GetKeywordByName(ctx, "already known topic")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != models.KeywordSourceEditor {
		t.Errorf("existing keyword source changed to %q", got.Source)
	}
}

func TestRefreshSkipsBrokenFeed(t *testing.T) {
	ctx := context.Background()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(rssItem("storm warning issued", time.Now())))
	}))
	defer working.Close()

	repo := storagetest.New()
	r := newRefresher(repo, []config.Feed{
		{Name: "broken", URL: broken.URL},
		{Name: "working", URL: working.URL},
	}, 10)

	if err := r.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() = %v, a broken feed must not abort the sweep", err)
	}

	if _, err := repo.GetKeywordByName(ctx, "storm warning issued"); err != nil {
		t.Error("keyword from working feed not harvested after broken feed")
	}
}
