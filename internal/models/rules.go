package models

import (
	"time"
)

// MatchType determines how a banned keyword is compared against a
// candidate's text
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
)

// Valid reports whether the match type is one of the known comparison
// modes
func (m MatchType) Valid() bool {
	switch m {
	case MatchContains, MatchExact, MatchStartsWith, MatchEndsWith, MatchRegex:
		return true
	}
	return false
}

// AppliesTo is the candidate field scope a banned keyword rule evaluates
type AppliesTo string

const (
	AppliesToTitle       AppliesTo = "title"
	AppliesToDescription AppliesTo = "description"
	AppliesToTags        AppliesTo = "tags"
	AppliesToChannel     AppliesTo = "channel"
	AppliesToAll         AppliesTo = "all"
)

// Valid reports whether the scope names a known candidate field
func (a AppliesTo) Valid() bool {
	switch a {
	case AppliesToTitle, AppliesToDescription, AppliesToTags, AppliesToChannel, AppliesToAll:
		return true
	}
	return false
}

// BannedKeyword is a content filter rule. A candidate matching any
// active rule is excluded from the store. Disabled rules are never
// evaluated.
type BannedKeyword struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Keyword       string    `gorm:"not null" json:"keyword"`
	CaseSensitive bool      `gorm:"default:false" json:"case_sensitive"`
	MatchType     MatchType `gorm:"default:'contains'" json:"match_type"`
	AppliesTo     AppliesTo `gorm:"default:'all'" json:"applies_to"`
	Active        bool      `gorm:"default:true" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TrustedChannel is a registry entry for a channel whose uploads may be
// auto-approved and inherit its trust level
type TrustedChannel struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ChannelID   string     `gorm:"uniqueIndex;not null" json:"channel_id"`
	ChannelName string     `json:"channel_name"`
	TrustLevel  TrustLevel `gorm:"default:'medium'" json:"trust_level"`
	AutoApprove bool       `gorm:"default:false" json:"auto_approve"`
	Active      bool       `gorm:"default:true" json:"active"`
	Platform    string     `gorm:"default:'youtube'" json:"platform"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BannedChannel is a registry entry for a channel whose uploads are
// rejected outright. A channel active in both registries is treated as
// banned.
type BannedChannel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChannelID string    `gorm:"uniqueIndex;not null" json:"channel_id"`
	Reason    string    `json:"reason"`
	Active    bool      `gorm:"default:true" json:"active"`
	Platform  string    `gorm:"default:'youtube'" json:"platform"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
