package pipeline

import (
	"regexp"
	"strings"

	"github.com/pattaya-pulse/video-pipeline/internal/models"
)

// Allowed evaluates a candidate against banned-keyword rules. A candidate
// matching any active rule is excluded. An empty rule list passes
// everything. Disabled rules are skipped; a rule with a malformed regex
// is treated as non-matching rather than failing the whole filter.
func Allowed(candidate *models.CandidateVideo, rules []*models.BannedKeyword) bool {
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if ruleMatches(candidate, rule) {
			return false
		}
	}
	return true
}

// MatchingRule returns the first active rule the candidate violates, or
// nil when the candidate passes. Used for logging rejections.
func MatchingRule(candidate *models.CandidateVideo, rules []*models.BannedKeyword) *models.BannedKeyword {
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if ruleMatches(candidate, rule) {
			return rule
		}
	}
	return nil
}

func ruleMatches(candidate *models.CandidateVideo, rule *models.BannedKeyword) bool {
	text := searchText(candidate, rule.AppliesTo)
	keyword := rule.Keyword

	if rule.MatchType == models.MatchRegex {
		return regexMatches(keyword, text, rule.CaseSensitive)
	}

	if !rule.CaseSensitive {
		text = strings.ToLower(text)
		keyword = strings.ToLower(keyword)
	}

	switch rule.MatchType {
	case models.MatchContains:
		return strings.Contains(text, keyword)
	case models.MatchExact:
		return text == keyword
	case models.MatchStartsWith:
		return strings.HasPrefix(text, keyword)
	case models.MatchEndsWith:
		return strings.HasSuffix(text, keyword)
	}
	return false
}

// regexMatches compiles the rule keyword as a regular expression and
// tests it against the text. A malformed pattern never matches.
func regexMatches(pattern, text string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// searchText builds the text a rule is evaluated against from its field
// scope
func searchText(candidate *models.CandidateVideo, scope models.AppliesTo) string {
	switch scope {
	case models.AppliesToTitle:
		return candidate.Title
	case models.AppliesToDescription:
		return candidate.Description
	case models.AppliesToTags:
		return strings.Join(candidate.Tags, " ")
	case models.AppliesToChannel:
		return candidate.ChannelName
	default: // all
		return candidate.Title + " " + candidate.Description + " " + candidate.ChannelName
	}
}
