package engine

import "strings"

// moodKeywords maps a mood to text features that agree with it and
// features that clash. Matching is a plain substring check over the
// candidate's title, artist and genre text.
var moodKeywords = map[string]struct {
	positive []string
	negative []string
}{
	"energetic": {
		positive: []string{"fast", "upbeat", "energetic", "intense", "pump", "workout", "dance", "party"},
		negative: []string{"slow", "calm", "soft", "gentle", "relaxing"},
	},
	"calm": {
		positive: []string{"calm", "peaceful", "relaxing", "soft", "gentle", "ambient", "zen"},
		negative: []string{"intense", "aggressive", "energetic", "fast", "loud"},
	},
	"sad": {
		positive: []string{"sad", "emotional", "melancholic", "slow", "ballad", "introspective"},
		negative: []string{"happy", "upbeat", "energetic", "party"},
	},
	"happy": {
		positive: []string{"happy", "upbeat", "cheerful", "joyful", "positive", "bright"},
		negative: []string{"sad", "melancholic", "dark", "depressing"},
	},
	"romantic": {
		positive: []string{"romantic", "love", "ballad", "tender", "emotional"},
		negative: []string{"aggressive", "intense", "party"},
	},
	"workout": {
		positive: []string{"high energy", "intense", "workout", "exercise", "fitness", "pump", "fast"},
		negative: []string{"slow", "calm", "ballad", "soft"},
	},
}

// moodBoost scores how well a candidate's text matches the requested
// mood: +0.1 per agreeing keyword, -0.1 per clashing keyword, clamped to
// [-0.5, 0.5]. An unknown or empty mood contributes nothing.
func moodBoost(mood, candidateText string) float64 {
	if mood == "" {
		return 0
	}
	features, ok := moodKeywords[strings.ToLower(mood)]
	if !ok {
		return 0
	}

	text := strings.ToLower(candidateText)
	boost := 0.0
	for _, kw := range features.positive {
		if strings.Contains(text, kw) {
			boost += 0.1
		}
	}
	for _, kw := range features.negative {
		if strings.Contains(text, kw) {
			boost -= 0.1
		}
	}

	if boost > 0.5 {
		boost = 0.5
	}
	if boost < -0.5 {
		boost = -0.5
	}
	return boost
}
