// Package storagetest provides an in-memory storage.Repository for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = fmt.Errorf("record not found")

// Fake is an in-memory Repository. Failures can be injected per method
// name via FailWith to exercise degraded paths.
type Fake struct {
	mu     sync.Mutex
	nextID uint

	keywords        map[uint]*models.Keyword
	videos          map[uint]*models.Video
	bannedKeywords  []*models.BannedKeyword
	trustedChannels []*models.TrustedChannel
	bannedChannels  []*models.BannedChannel

	errs map[string]error
}

// New creates an empty fake repository
func New() *Fake {
	return &Fake{
		keywords: make(map[uint]*models.Keyword),
		videos:   make(map[uint]*models.Video),
		errs:     make(map[string]error),
	}
}

// FailWith makes the named method return err on every call
func (f *Fake) FailWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *Fake) fail(method string) error {
	return f.errs[method]
}

func (f *Fake) id() uint {
	f.nextID++
	return f.nextID
}

// Keyword operations

func (f *Fake) CreateKeyword(ctx context.Context, keyword *models.Keyword) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateKeyword"); err != nil {
		return err
	}
	for _, existing := range f.keywords {
		if existing.Name == keyword.Name {
			return fmt.Errorf("keyword %q already exists", keyword.Name)
		}
	}
	keyword.ID = f.id()
	if keyword.CreatedAt.IsZero() {
		keyword.CreatedAt = time.Now()
	}
	copied := *keyword
	f.keywords[keyword.ID] = &copied
	return nil
}

func (f *Fake) GetKeywordByID(ctx context.Context, id uint) (*models.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetKeywordByID"); err != nil {
		return nil, err
	}
	keyword, ok := f.keywords[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *keyword
	return &copied, nil
}

func (f *Fake) GetKeywordByName(ctx context.Context, name string) (*models.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetKeywordByName"); err != nil {
		return nil, err
	}
	for _, keyword := range f.keywords {
		if keyword.Name == name {
			copied := *keyword
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *Fake) ListKeywords(ctx context.Context, filter storage.KeywordFilter) ([]*models.Keyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListKeywords"); err != nil {
		return nil, err
	}

	var result []*models.Keyword
	for _, keyword := range f.keywords {
		if filter.ActiveOnly && !keyword.Active {
			continue
		}
		if filter.Source != nil && keyword.Source != *filter.Source {
			continue
		}
		copied := *keyword
		result = append(result, &copied)
	}

	sort.SliceStable(result, func(i, j int) bool {
		switch filter.OrderBy {
		case "name":
			if filter.OrderDesc {
				return result[i].Name > result[j].Name
			}
			return result[i].Name < result[j].Name
		default: // priority
			if filter.OrderDesc {
				return result[i].Priority > result[j].Priority
			}
			return result[i].Priority < result[j].Priority
		}
	})

	return paginateKeywords(result, filter.Limit, filter.Offset), nil
}

func paginateKeywords(items []*models.Keyword, limit, offset int) []*models.Keyword {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (f *Fake) UpdateKeyword(ctx context.Context, keyword *models.Keyword) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateKeyword"); err != nil {
		return err
	}
	if _, ok := f.keywords[keyword.ID]; !ok {
		return ErrNotFound
	}
	copied := *keyword
	f.keywords[keyword.ID] = &copied
	return nil
}

// Video operations

func (f *Fake) CreateVideo(ctx context.Context, video *models.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateVideo"); err != nil {
		return err
	}
	for _, existing := range f.videos {
		if existing.VideoID == video.VideoID {
			return fmt.Errorf("video %q already exists", video.VideoID)
		}
	}
	video.ID = f.id()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now()
	}
	copied := *video
	f.videos[video.ID] = &copied
	return nil
}

func (f *Fake) GetVideoByID(ctx context.Context, id uint) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetVideoByID"); err != nil {
		return nil, err
	}
	video, ok := f.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *video
	return &copied, nil
}

func (f *Fake) GetVideoByVideoID(ctx context.Context, videoID string) (*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetVideoByVideoID"); err != nil {
		return nil, err
	}
	for _, video := range f.videos {
		if video.VideoID == videoID {
			copied := *video
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *Fake) ListVideos(ctx context.Context, filter storage.VideoFilter) ([]*models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListVideos"); err != nil {
		return nil, err
	}

	result := f.matchVideos(filter)

	sort.SliceStable(result, func(i, j int) bool {
		if c := compareVideos(result[i], result[j], filter.OrderBy, filter.OrderDesc); c != 0 {
			return c < 0
		}
		if filter.ThenOrderBy != "" {
			return compareVideos(result[i], result[j], filter.ThenOrderBy, filter.ThenOrderDesc) < 0
		}
		return false
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// compareVideos orders two videos by the named column, negated when
// descending. Zero means equal, which lets a tie-break column apply.
func compareVideos(a, b *models.Video, orderBy string, desc bool) int {
	var c int
	switch orderBy {
	case "view_count":
		c = compareInt64(a.ViewCount, b.ViewCount)
	case "priority":
		c = compareInt64(int64(a.Priority), int64(b.Priority))
	case "published_at":
		c = compareTime(a.PublishedAt, b.PublishedAt)
	default: // created_at
		c = compareTime(a.CreatedAt, b.CreatedAt)
	}
	if desc {
		return -c
	}
	return c
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (f *Fake) matchVideos(filter storage.VideoFilter) []*models.Video {
	var result []*models.Video
	for _, video := range f.videos {
		if filter.Status != nil && video.Status != *filter.Status {
			continue
		}
		if filter.Keyword != nil && video.Keyword != *filter.Keyword {
			continue
		}
		if filter.ChannelID != nil && video.ChannelID != *filter.ChannelID {
			continue
		}
		if filter.ExcludePinned && video.Pinned() {
			continue
		}
		copied := *video
		result = append(result, &copied)
	}
	return result
}

func (f *Fake) UpdateVideo(ctx context.Context, video *models.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateVideo"); err != nil {
		return err
	}
	if _, ok := f.videos[video.ID]; !ok {
		return ErrNotFound
	}
	copied := *video
	f.videos[video.ID] = &copied
	return nil
}

func (f *Fake) DeleteVideo(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteVideo"); err != nil {
		return err
	}
	if _, ok := f.videos[id]; !ok {
		return ErrNotFound
	}
	delete(f.videos, id)
	return nil
}

func (f *Fake) CountVideos(ctx context.Context, filter storage.VideoFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CountVideos"); err != nil {
		return 0, err
	}
	return int64(len(f.matchVideos(filter))), nil
}

func (f *Fake) CountVideosByStatus(ctx context.Context) (map[models.VideoStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CountVideosByStatus"); err != nil {
		return nil, err
	}
	counts := make(map[models.VideoStatus]int64)
	for _, video := range f.videos {
		counts[video.Status]++
	}
	return counts, nil
}

// Banned keyword rules

func (f *Fake) CreateBannedKeyword(ctx context.Context, rule *models.BannedKeyword) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBannedKeyword"); err != nil {
		return err
	}
	rule.ID = f.id()
	copied := *rule
	f.bannedKeywords = append(f.bannedKeywords, &copied)
	return nil
}

func (f *Fake) ListBannedKeywords(ctx context.Context, activeOnly bool) ([]*models.BannedKeyword, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListBannedKeywords"); err != nil {
		return nil, err
	}
	var result []*models.BannedKeyword
	for _, rule := range f.bannedKeywords {
		if activeOnly && !rule.Active {
			continue
		}
		copied := *rule
		result = append(result, &copied)
	}
	return result, nil
}

// Channel registries

func (f *Fake) CreateTrustedChannel(ctx context.Context, entry *models.TrustedChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateTrustedChannel"); err != nil {
		return err
	}
	entry.ID = f.id()
	copied := *entry
	f.trustedChannels = append(f.trustedChannels, &copied)
	return nil
}

func (f *Fake) ListTrustedChannels(ctx context.Context, activeOnly bool) ([]*models.TrustedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListTrustedChannels"); err != nil {
		return nil, err
	}
	var result []*models.TrustedChannel
	for _, entry := range f.trustedChannels {
		if activeOnly && !entry.Active {
			continue
		}
		copied := *entry
		result = append(result, &copied)
	}
	return result, nil
}

func (f *Fake) CreateBannedChannel(ctx context.Context, entry *models.BannedChannel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBannedChannel"); err != nil {
		return err
	}
	entry.ID = f.id()
	copied := *entry
	f.bannedChannels = append(f.bannedChannels, &copied)
	return nil
}

func (f *Fake) ListBannedChannels(ctx context.Context, activeOnly bool) ([]*models.BannedChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListBannedChannels"); err != nil {
		return nil, err
	}
	var result []*models.BannedChannel
	for _, entry := range f.bannedChannels {
		if activeOnly && !entry.Active {
			continue
		}
		copied := *entry
		result = append(result, &copied)
	}
	return result, nil
}

// Maintenance

func (f *Fake) Close() error   { return nil }
func (f *Fake) Migrate() error { return nil }

var _ storage.Repository = (*Fake)(nil)
