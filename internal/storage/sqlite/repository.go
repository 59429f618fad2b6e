package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
	"github.com/pattaya-pulse/video-pipeline/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Keyword{},
		&models.Video{},
		&models.BannedKeyword{},
		&models.TrustedChannel{},
		&models.BannedChannel{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Keyword operations

func (r *Repository) CreateKeyword(ctx context.Context, keyword *models.Keyword) error {
	return r.db.WithContext(ctx).Create(keyword).Error
}

func (r *Repository) GetKeywordByID(ctx context.Context, id uint) (*models.Keyword, error) {
	var keyword models.Keyword
	if err := r.db.WithContext(ctx).First(&keyword, id).Error; err != nil {
		return nil, err
	}
	return &keyword, nil
}

func (r *Repository) GetKeywordByName(ctx context.Context, name string) (*models.Keyword, error) {
	var keyword models.Keyword
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&keyword).Error; err != nil {
		return nil, err
	}
	return &keyword, nil
}

func (r *Repository) ListKeywords(ctx context.Context, filter storage.KeywordFilter) ([]*models.Keyword, error) {
	var keywords []*models.Keyword
	query := r.db.WithContext(ctx).Model(&models.Keyword{})

	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}

	query = applyOrder(query, filter.OrderBy, "priority", filter.OrderDesc)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (r *Repository) UpdateKeyword(ctx context.Context, keyword *models.Keyword) error {
	return r.db.WithContext(ctx).Save(keyword).Error
}

// Video operations

func (r *Repository) CreateVideo(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

func (r *Repository) GetVideoByID(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).First(&video, id).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *Repository) GetVideoByVideoID(ctx context.Context, videoID string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("video_id = ?", videoID).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *Repository) ListVideos(ctx context.Context, filter storage.VideoFilter) ([]*models.Video, error) {
	var videos []*models.Video
	query := videoQuery(r.db.WithContext(ctx), filter)

	query = applyOrder(query, filter.OrderBy, "created_at", filter.OrderDesc)
	if filter.ThenOrderBy != "" {
		query = applyOrder(query, filter.ThenOrderBy, filter.ThenOrderBy, filter.ThenOrderDesc)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *Repository) UpdateVideo(ctx context.Context, video *models.Video) error {
	return r.db.WithContext(ctx).Save(video).Error
}

func (r *Repository) DeleteVideo(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Video{}, id).Error
}

func (r *Repository) CountVideos(ctx context.Context, filter storage.VideoFilter) (int64, error) {
	var count int64
	if err := videoQuery(r.db.WithContext(ctx), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *Repository) CountVideosByStatus(ctx context.Context) (map[models.VideoStatus]int64, error) {
	type row struct {
		Status models.VideoStatus
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Select("status, count(*) as total").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.VideoStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Banned keyword rules

func (r *Repository) CreateBannedKeyword(ctx context.Context, rule *models.BannedKeyword) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *Repository) ListBannedKeywords(ctx context.Context, activeOnly bool) ([]*models.BannedKeyword, error) {
	var rules []*models.BannedKeyword
	query := r.db.WithContext(ctx).Model(&models.BannedKeyword{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Channel registries

func (r *Repository) CreateTrustedChannel(ctx context.Context, entry *models.TrustedChannel) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListTrustedChannels(ctx context.Context, activeOnly bool) ([]*models.TrustedChannel, error) {
	var entries []*models.TrustedChannel
	query := r.db.WithContext(ctx).Model(&models.TrustedChannel{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) CreateBannedChannel(ctx context.Context, entry *models.BannedChannel) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) ListBannedChannels(ctx context.Context, activeOnly bool) ([]*models.BannedChannel, error) {
	var entries []*models.BannedChannel
	query := r.db.WithContext(ctx).Model(&models.BannedChannel{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// videoQuery applies VideoFilter predicates shared by List and Count
func videoQuery(db *gorm.DB, filter storage.VideoFilter) *gorm.DB {
	query := db.Model(&models.Video{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Keyword != nil {
		query = query.Where("keyword = ?", *filter.Keyword)
	}
	if filter.ChannelID != nil {
		query = query.Where("channel_id = ?", *filter.ChannelID)
	}
	if filter.ExcludePinned {
		query = query.Where("featured = ? AND is_promoted = ?", false, false)
	}
	return query
}

// applyOrder applies ordering with a fallback column
func applyOrder(query *gorm.DB, orderBy, fallback string, desc bool) *gorm.DB {
	col := fallback
	if orderBy != "" {
		col = orderBy
	}
	if desc {
		return query.Order(col + " DESC")
	}
	return query.Order(col + " ASC")
}
