package source

import (
	"context"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// SearchOptions bound a single keyword search
type SearchOptions struct {
	MaxResults int64
	Order      string // relevance, viewCount, date
	Region     string // ISO 3166-1 alpha-2 region code
}

// VideoSource defines the interface for upstream video search providers
type VideoSource interface {
	// Name returns the unique name of this source
	Name() string

	// Search retrieves candidate videos for a keyword
	Search(ctx context.Context, keyword string, opts SearchOptions) ([]*models.CandidateVideo, error)

	// HealthCheck verifies the source is accessible
	HealthCheck(ctx context.Context) error
}
