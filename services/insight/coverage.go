package insight

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/joaorjoaquim/video-insight-api/models"
)

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "because": {}, "being": {},
	"before": {}, "between": {}, "could": {}, "every": {}, "first": {},
	"going": {}, "really": {}, "should": {}, "something": {}, "their": {},
	"there": {}, "these": {}, "thing": {}, "things": {}, "think": {},
	"those": {}, "through": {}, "today": {}, "where": {}, "which": {},
	"while": {}, "would": {}, "actually": {}, "right": {}, "people": {},
}

// extractTopics picks the most frequent salient words from the transcript
// as a crude topic fingerprint for the coverage check.
func extractTopics(text string, max int) []string {
	counts := map[string]int{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) < 5 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}

// coverageRatio reports what fraction of the transcript's salient topics
// are reachable by substring match in the produced dashboard. A quality
// signal, not a correctness gate.
func coverageRatio(transcript string, dashboard *models.Dashboard) float64 {
	topics := extractTopics(transcript, 10)
	if len(topics) == 0 {
		return 1
	}

	encoded, err := json.Marshal(dashboard)
	if err != nil {
		return 0
	}
	haystack := strings.ToLower(string(encoded))

	covered := 0
	for _, topic := range topics {
		if strings.Contains(haystack, topic) {
			covered++
		}
	}
	return float64(covered) / float64(len(topics))
}
