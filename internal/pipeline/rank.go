package pipeline

import (
	"sort"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// DedupeAndRank removes duplicate records by external video ID (first
// occurrence wins) and orders the batch: trusted channels before unknown
// ones, higher trust tiers first, ties broken by view count descending.
// The sort is stable otherwise.
func DedupeAndRank(videos []*models.Video) []*models.Video {
	seen := make(map[string]struct{}, len(videos))
	unique := make([]*models.Video, 0, len(videos))

	for _, video := range videos {
		if _, dup := seen[video.VideoID]; dup {
			continue
		}
		seen[video.VideoID] = struct{}{}
		unique = append(unique, video)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		ri, rj := trustRank(unique[i]), trustRank(unique[j])
		if ri != rj {
			return ri > rj
		}
		return unique[i].ViewCount > unique[j].ViewCount
	})

	return unique
}

func trustRank(video *models.Video) int {
	if video.TrustLevel == nil {
		return 0
	}
	return video.TrustLevel.Rank()
}
