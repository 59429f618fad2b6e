package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// VideoStatus represents the moderation state of a stored video
type VideoStatus string

const (
	VideoStatusPending  VideoStatus = "pending"
	VideoStatusActive   VideoStatus = "active"
	VideoStatusRejected VideoStatus = "rejected"
	VideoStatusArchived VideoStatus = "archived"
)

// Valid reports whether the status is one of the known moderation states
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoStatusPending, VideoStatusActive, VideoStatusRejected, VideoStatusArchived:
		return true
	}
	return false
}

// TrustLevel is the trust tier inherited from a channel's registry entry
type TrustLevel string

const (
	TrustLevelLow    TrustLevel = "low"
	TrustLevelMedium TrustLevel = "medium"
	TrustLevelHigh   TrustLevel = "high"
)

// Rank maps a trust level to a sortable weight. Unknown levels rank lowest.
func (t TrustLevel) Rank() int {
	switch t {
	case TrustLevelHigh:
		return 3
	case TrustLevelMedium:
		return 2
	case TrustLevelLow:
		return 1
	}
	return 0
}

// StringSlice is a custom type for storing string arrays as JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}

// CandidateVideo is an unfiltered video returned by the upstream search
// for a keyword. It is transient: only candidates that survive filtering
// and channel validation become stored Video records.
type CandidateVideo struct {
	VideoID      string
	Title        string
	Description  string
	Tags         []string
	ChannelID    string
	ChannelName  string
	ViewCount    int64
	LikeCount    int64
	PublishedAt  time.Time
	ThumbnailURL string
	Category     string
	Duration     int64 // seconds
}

// Video represents a candidate that passed filtering and was persisted
// with a moderation status
type Video struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	VideoID      string      `gorm:"uniqueIndex;not null" json:"video_id"` // External (upstream) video ID
	Title        string      `gorm:"not null" json:"title"`
	Description  string      `gorm:"type:text" json:"description"`
	Tags         StringSlice `gorm:"type:json" json:"tags"`
	ChannelID    string      `gorm:"index" json:"channel_id"`
	ChannelName  string      `json:"channel_name"`
	ViewCount    int64       `json:"view_count"`
	LikeCount    int64       `json:"like_count"`
	PublishedAt  time.Time   `json:"published_at"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Category     string      `json:"category"`
	Duration     int64       `json:"duration"` // seconds

	Status     VideoStatus `gorm:"index;default:'pending'" json:"status"`
	TrustLevel *TrustLevel `json:"trust_level"` // nil for channels in neither registry
	Keyword    string      `gorm:"index" json:"keyword"`

	// Moderation metadata
	ModeratedAt      *time.Time `json:"moderated_at"`
	ModeratedBy      string     `json:"moderated_by"`
	ModerationReason string     `json:"moderation_reason"`

	// Promotion metadata
	IsPromoted    bool    `gorm:"default:false" json:"is_promoted"`
	PromotionCost float64 `json:"promotion_cost"`
	SponsorName   string  `json:"sponsor_name"`

	Priority int  `gorm:"default:0" json:"priority"`
	Featured bool `gorm:"default:false" json:"featured"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Pinned reports whether the record must survive retention cleanup
func (v *Video) Pinned() bool {
	return v.Featured || v.IsPromoted
}
