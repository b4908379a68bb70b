package insight

import (
	"encoding/json"
	"strings"

	"github.com/joaorjoaquim/video-insight-api/models"
)

// chunkAnalysis is the canonical normalized form of one chunk's LLM output.
// Any accepted response shape is folded into this before consolidation.
type chunkAnalysis struct {
	Summary  string
	Topics   []string
	Metrics  []models.Metric
	Sections []models.InsightSection
	Branches []models.MindMapBranch
	Root     string

	// Full is set when the response already carried the complete
	// dashboard shape and is usable standalone.
	Full *models.Dashboard

	// Degraded marks a placeholder produced after parse and repair both
	// failed; the chunk contributed no real analysis.
	Degraded bool
}

// legacyShape is the older flat response some prompts still elicit.
type legacyShape struct {
	Summary  string          `json:"summary"`
	Topics   []string        `json:"topics"`
	Insights []legacyInsight `json:"insights"`
	MindMap  *legacyMindMap  `json:"mindMap"`
	Metrics  []models.Metric `json:"metrics"`
}

type legacyInsight struct {
	Text string
}

func (l *legacyInsight) UnmarshalJSON(data []byte) error {
	// Items arrive either as bare strings or as {"text": ...} objects.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		l.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	l.Text = obj.Text
	return nil
}

type legacyMindMap struct {
	Root     string                 `json:"root"`
	Branches []models.MindMapBranch `json:"branches"`
}

// stripCodeFences removes a surrounding markdown code fence if present.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// repairTruncatedJSON walks closing braces from the end, re-balances the
// prefix's open delimiters, and returns the longest candidate that parses
// as a JSON object, or "" when none does. Model output cut off
// mid-generation usually recovers this way.
func repairTruncatedJSON(text string) string {
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] != '}' {
			continue
		}
		candidate := balanceJSON(text[:i+1])
		if candidate == "" {
			continue
		}
		var probe map[string]json.RawMessage
		if json.Unmarshal([]byte(candidate), &probe) == nil {
			return candidate
		}
	}
	return ""
}

// balanceJSON appends the closing delimiters an object prefix is missing,
// or returns "" when the prefix is structurally broken (ends inside a
// string literal, or closes a delimiter it never opened).
func balanceJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return ""
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return ""
	}

	closers := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		closers = append(closers, stack[i])
	}
	return s + string(closers)
}

// parseChunkResponse normalizes a raw completion into a chunkAnalysis,
// attempting truncation repair before giving up. It never returns an
// error; an unusable response degrades into a placeholder so one bad
// chunk cannot abort the whole job.
func parseChunkResponse(raw, chunk string) chunkAnalysis {
	cleaned := stripCodeFences(raw)

	analysis, ok := parseShapes(cleaned)
	if ok {
		return analysis
	}

	if repaired := repairTruncatedJSON(cleaned); repaired != "" {
		if analysis, ok := parseShapes(repaired); ok {
			return analysis
		}
	}

	return placeholderAnalysis(chunk)
}

func parseShapes(text string) (chunkAnalysis, bool) {
	// Full dashboard shape first: summary/insights/mindMap all present
	// and well-formed means the chunk is usable standalone.
	var full models.Dashboard
	if err := json.Unmarshal([]byte(text), &full); err == nil && isFullDashboard(&full) {
		return chunkAnalysis{
			Summary:  full.Summary.Text,
			Topics:   full.Summary.Topics,
			Metrics:  full.Summary.Metrics,
			Sections: full.Insights,
			Branches: full.MindMap.Branches,
			Root:     full.MindMap.Root,
			Full:     &full,
		}, true
	}

	var legacy legacyShape
	if err := json.Unmarshal([]byte(text), &legacy); err == nil && legacy.Summary != "" {
		analysis := chunkAnalysis{
			Topics:  legacy.Topics,
			Metrics: legacy.Metrics,
		}
		analysis.Summary = legacy.Summary
		for _, item := range legacy.Insights {
			if item.Text == "" {
				continue
			}
			analysis.Sections = append(analysis.Sections, models.InsightSection{
				Items: []models.InsightItem{{Text: item.Text}},
			})
		}
		if legacy.MindMap != nil {
			analysis.Root = legacy.MindMap.Root
			analysis.Branches = legacy.MindMap.Branches
		}
		return analysis, true
	}

	return chunkAnalysis{}, false
}

func isFullDashboard(d *models.Dashboard) bool {
	return d.Summary.Text != "" && len(d.Insights) > 0 && len(d.MindMap.Branches) > 0
}

// placeholderAnalysis is the minimal degraded result for a chunk whose
// response never parsed. The job proceeds; the merge treats it as noise.
func placeholderAnalysis(chunk string) chunkAnalysis {
	summary := chunk
	if len(summary) > 200 {
		summary = summary[:200]
	}
	return chunkAnalysis{
		Summary:  "Partial analysis unavailable for this segment: " + summary,
		Topics:   []string{"transcript analysis"},
		Degraded: true,
	}
}
