package pipeline

import (
	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// Classification is the channel validator's verdict for a candidate
type Classification struct {
	Keep       bool
	Status     models.VideoStatus
	TrustLevel *models.TrustLevel
}

// Registries holds the channel lookup tables for one fetch cycle.
// Degraded is set when the registries could not be loaded; candidates
// are then kept with status pending (fail open for content, weaker
// moderation).
type Registries struct {
	Trusted  map[string]*models.TrustedChannel
	Banned   map[string]struct{}
	Degraded bool
}

// NewRegistries builds lookup tables from registry entries
func NewRegistries(trusted []*models.TrustedChannel, banned []*models.BannedChannel) *Registries {
	reg := &Registries{
		Trusted: make(map[string]*models.TrustedChannel, len(trusted)),
		Banned:  make(map[string]struct{}, len(banned)),
	}
	for _, entry := range trusted {
		reg.Trusted[entry.ChannelID] = entry
	}
	for _, entry := range banned {
		reg.Banned[entry.ChannelID] = struct{}{}
	}
	return reg
}

// DegradedRegistries returns empty lookup tables for the fail-open path
func DegradedRegistries() *Registries {
	return &Registries{
		Trusted:  make(map[string]*models.TrustedChannel),
		Banned:   make(map[string]struct{}),
		Degraded: true,
	}
}

// Classify checks a candidate's channel against the registries and
// assigns its initial moderation status. A banned channel rejects the
// candidate outright, overriding any trusted entry for the same channel.
func Classify(candidate *models.CandidateVideo, reg *Registries) Classification {
	if _, banned := reg.Banned[candidate.ChannelID]; banned {
		return Classification{Keep: false}
	}

	if entry, ok := reg.Trusted[candidate.ChannelID]; ok {
		status := models.VideoStatusPending
		if entry.AutoApprove {
			status = models.VideoStatusActive
		}
		trust := entry.TrustLevel
		return Classification{Keep: true, Status: status, TrustLevel: &trust}
	}

	return Classification{Keep: true, Status: models.VideoStatusPending}
}
