package models

import (
	"time"
)

// Keyword sources
const (
	KeywordSourceEditor   = "editor"   // created by content editors
	KeywordSourceTrending = "trending" // harvested from news feeds
)

// Keyword is a search term that drives fetch cycles. Higher priority
// keywords are searched first. Usage stats are maintained by the
// scheduler after each cycle; keywords are never auto-deleted.
type Keyword struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"uniqueIndex;not null" json:"name"`
	Category     string     `json:"category"`
	Priority     int        `gorm:"default:0;index" json:"priority"`
	Active       bool       `gorm:"default:true" json:"active"`
	Source       string     `gorm:"default:'editor'" json:"source"` // editor, trending
	UsageCount   int64      `gorm:"default:0" json:"usage_count"`
	SuccessCount int64      `gorm:"default:0" json:"success_count"`
	SuccessRate  float64    `gorm:"default:0" json:"success_rate"` // percent, recomputed by the stats job
	LastUsedAt   *time.Time `json:"last_used_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
