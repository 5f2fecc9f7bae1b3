package conversation

import (
	"regexp"
	"strings"
)

// FallbackExtractor answers the common case "the bot just asked for field X
// and the prospect gave a short unqualified reply" without an LLM round
// trip. It never overrides the LLM extractor; the controller consults it
// only when the LLM pass produced nothing for the asked field.
type FallbackExtractor struct{}

func NewFallbackExtractor() *FallbackExtractor {
	return &FallbackExtractor{}
}

// fallbackMaxWords bounds how long a reply can be and still count as a
// direct answer to the pending question.
const fallbackMaxWords = 8

var timelinePatternRe = regexp.MustCompile(`(?i)\b(\d+\s*(day|week|month|year)s?|next\s+(week|month|year|spring|summer|fall|autumn|winter)|asap|soon|immediately)\b`)

var volumePatternRe = regexp.MustCompile(`(?i)\b\d+([.,]\d+)?\s*(cups?|kg|kilos?|kilograms?|lbs?|pounds?|bags?|shots?|drinks?)\b`)

var cafeCountRe = regexp.MustCompile(`(?i)\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s*(cafes?|shops?|locations?|stores?|sites?)?\b`)

var coffeeStyleKeywords = []string{
	"bold", "strong", "dark", "medium", "light", "smooth", "mellow",
	"fruity", "bright", "acidic", "chocolatey", "nutty", "caramel",
	"espresso", "filter", "single origin", "blend", "decaf",
}

// Extract maps a short reply onto the field the bot just asked about.
// Returns the value and true when the reply looks like a direct answer.
func (f *FallbackExtractor) Extract(askedField, message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	if askedField == "" || trimmed == "" {
		return "", false
	}
	if strings.Contains(trimmed, "?") {
		return "", false
	}
	if len(strings.Fields(trimmed)) > fallbackMaxWords {
		return "", false
	}

	switch askedField {
	case FieldName:
		name, err := CleanName(trimmed)
		if err != nil {
			return "", false
		}
		return name, true
	case FieldPhone:
		if candidate := ExtractPhoneCandidate(trimmed); candidate != "" {
			return candidate, true
		}
		return "", false
	case FieldEmail:
		if candidate := ExtractEmailCandidate(trimmed); candidate != "" {
			return candidate, true
		}
		return "", false
	case FieldTimeline:
		if m := timelinePatternRe.FindString(trimmed); m != "" {
			return m, true
		}
		return "", false
	case FieldVolume:
		if m := volumePatternRe.FindString(trimmed); m != "" {
			return m, true
		}
		return "", false
	case FieldCafeCount:
		if m := cafeCountRe.FindString(trimmed); m != "" {
			return m, true
		}
		return "", false
	case FieldCoffeeStyle, FieldCurrentCoffeeStyle, FieldCoffeePreference:
		lower := strings.ToLower(trimmed)
		for _, kw := range coffeeStyleKeywords {
			if strings.Contains(lower, kw) {
				return trimmed, true
			}
		}
		return "", false
	case FieldEquipment, FieldSupportNeeds, FieldPainPoints:
		// Free-text fields: a short declarative reply to a direct question
		// is taken at face value unless it is vague.
		if IsVagueResponse(trimmed) {
			return "", false
		}
		return trimmed, true
	default:
		return "", false
	}
}
