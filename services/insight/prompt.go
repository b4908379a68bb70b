package insight

import (
	"fmt"
	"strings"
)

const analysisSystemPrompt = `You are an analyst that extracts structured insights from video transcripts.
Respond with a single JSON object and nothing else. No markdown, no prose outside the JSON.`

const analysisPromptTemplate = `Analyze the following transcript %s and return JSON with this shape:
{
  "summary": {"text": "...", "topics": ["..."], "metrics": [{"label": "...", "value": "..."}]},
  "insights": [{"title": "...", "icon": "...", "items": [{"text": "...", "score": 0.0, "flagged": false}]}],
  "mindMap": {"root": "...", "branches": [{"label": "...", "children": ["..."]}]}
}

Rules:
- summary.text: 3-5 sentences covering the main argument.
- summary.topics: 3-8 short topic labels.
- insights: group findings under descriptive section titles.
- mindMap: one root concept, branches for major themes, children for details.

Transcript:
%s`

const consolidationSystemPrompt = `You merge partial transcript analyses into one coherent insights dashboard.
Respond with a single JSON object and nothing else.`

const consolidationPromptTemplate = `Merge the following %d partial analyses of one video into a single JSON dashboard
with the same shape (summary, insights, mindMap). Combine overlapping topics, keep every
distinct mind-map branch, and write one unified summary.

Partial analyses:
%s`

func buildAnalysisPrompt(chunk string, index, total int) string {
	position := ""
	if total > 1 {
		position = fmt.Sprintf("(part %d of %d)", index+1, total)
	}
	return fmt.Sprintf(analysisPromptTemplate, position, chunk)
}

func buildConsolidationPrompt(partials []string) string {
	var b strings.Builder
	for i, p := range partials {
		fmt.Fprintf(&b, "--- Part %d ---\n%s\n", i+1, p)
	}
	return fmt.Sprintf(consolidationPromptTemplate, len(partials), b.String())
}
