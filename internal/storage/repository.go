package storage

import (
	"context"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// Repository defines the interface for data persistence
type Repository interface {
	// Keyword operations
	CreateKeyword(ctx context.Context, keyword *models.Keyword) error
	GetKeywordByID(ctx context.Context, id uint) (*models.Keyword, error)
	GetKeywordByName(ctx context.Context, name string) (*models.Keyword, error)
	ListKeywords(ctx context.Context, filter KeywordFilter) ([]*models.Keyword, error)
	UpdateKeyword(ctx context.Context, keyword *models.Keyword) error

	// Video operations
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideoByID(ctx context.Context, id uint) (*models.Video, error)
	GetVideoByVideoID(ctx context.Context, videoID string) (*models.Video, error)
	ListVideos(ctx context.Context, filter VideoFilter) ([]*models.Video, error)
	UpdateVideo(ctx context.Context, video *models.Video) error
	DeleteVideo(ctx context.Context, id uint) error
	CountVideos(ctx context.Context, filter VideoFilter) (int64, error)
	CountVideosByStatus(ctx context.Context) (map[models.VideoStatus]int64, error)

	// Banned keyword rules
	CreateBannedKeyword(ctx context.Context, rule *models.BannedKeyword) error
	ListBannedKeywords(ctx context.Context, activeOnly bool) ([]*models.BannedKeyword, error)

	// Channel registries
	CreateTrustedChannel(ctx context.Context, entry *models.TrustedChannel) error
	ListTrustedChannels(ctx context.Context, activeOnly bool) ([]*models.TrustedChannel, error)
	CreateBannedChannel(ctx context.Context, entry *models.BannedChannel) error
	ListBannedChannels(ctx context.Context, activeOnly bool) ([]*models.BannedChannel, error)

	// Maintenance
	Close() error
	Migrate() error
}

// KeywordFilter defines filtering options for keywords
type KeywordFilter struct {
	ActiveOnly bool
	Source     *string
	Limit      int
	Offset     int
	OrderBy    string // "priority", "name", "last_used_at"
	OrderDesc  bool
}

// VideoFilter defines filtering options for stored videos
type VideoFilter struct {
	Status        *models.VideoStatus
	Keyword       *string
	ChannelID     *string
	ExcludePinned bool // skip featured/promoted records (retention cleanup)
	Limit         int
	Offset        int
	OrderBy       string // "created_at", "view_count", "priority", "published_at"
	OrderDesc     bool
	ThenOrderBy   string // optional tie-break column, same choices as OrderBy
	ThenOrderDesc bool
}

// ActiveKeywordFilter returns the filter used by fetch cycles: active
// keywords only, highest priority first.
func ActiveKeywordFilter() KeywordFilter {
	return KeywordFilter{
		ActiveOnly: true,
		OrderBy:    "priority",
		OrderDesc:  true,
	}
}

// OldestVideosFilter returns a filter selecting the oldest unpinned
// records, used by retention cleanup.
func OldestVideosFilter(limit int) VideoFilter {
	return VideoFilter{
		ExcludePinned: true,
		Limit:         limit,
		OrderBy:       "created_at",
		OrderDesc:     false,
	}
}
