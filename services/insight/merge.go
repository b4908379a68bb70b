package insight

import (
	"strings"

	"github.com/joaorjoaquim/video-insight-api/models"
)

// The fixed section taxonomy, in tie-break order. Items score against each
// category's keyword list; highest wins, ties resolve to the earlier
// category, zero scores land in Key Insights.
var taxonomy = []struct {
	title    string
	icon     string
	keywords []string
}{
	{"Key Insights", "💡", []string{"insight", "important", "key", "main", "core", "takeaway", "highlight"}},
	{"Technical Details", "🔧", []string{"technical", "code", "architecture", "implementation", "system", "software", "api", "infrastructure", "algorithm"}},
	{"Financial Analysis", "💰", []string{"financial", "revenue", "cost", "profit", "money", "price", "budget", "investment", "funding"}},
	{"Strategic Points", "🎯", []string{"strategy", "strategic", "plan", "roadmap", "goal", "vision", "direction", "priority"}},
	{"Challenges & Solutions", "⚠️", []string{"challenge", "problem", "issue", "solution", "solve", "obstacle", "difficulty", "workaround"}},
	{"Best Practices", "✅", []string{"best practice", "practice", "recommend", "guideline", "standard", "convention", "pattern"}},
	{"Market Insights", "📈", []string{"market", "industry", "competitor", "customer", "demand", "trend", "audience", "adoption"}},
	{"Expert Tips", "🎓", []string{"expert", "advice", "tip", "experience", "lesson", "learned"}},
	{"Innovation Ideas", "🚀", []string{"innovation", "innovative", "idea", "novel", "creative", "future", "emerging"}},
	{"Risk Factors", "🛑", []string{"risk", "threat", "danger", "warning", "failure", "downside", "uncertainty"}},
}

// KeywordCategorizer is the deterministic default Categorizer.
type KeywordCategorizer struct{}

func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{}
}

func (c *KeywordCategorizer) Categorize(text string) string {
	lower := strings.ToLower(text)

	bestTitle := taxonomy[0].title
	bestScore := 0
	for _, category := range taxonomy {
		score := 0
		for _, kw := range category.keywords {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			bestScore = score
			bestTitle = category.title
		}
	}
	return bestTitle
}

func sectionIcon(title string) string {
	for _, category := range taxonomy {
		if category.title == title {
			return category.icon
		}
	}
	return taxonomy[0].icon
}

// mergeAnalyses combines per-chunk results into one dashboard: summaries
// are joined, topics unioned, items re-categorized into the taxonomy, and
// mind-map branches concatenated in chunk order.
func mergeAnalyses(analyses []chunkAnalysis, categorizer Categorizer) *models.Dashboard {
	var (
		summaries []string
		topics    []string
		topicSeen = map[string]struct{}{}
		metrics   []models.Metric
		branches  []models.MindMapBranch
		root      string
		grouped   = map[string][]models.InsightItem{}
	)

	for _, analysis := range analyses {
		if analysis.Degraded {
			continue
		}
		if analysis.Summary != "" {
			summaries = append(summaries, analysis.Summary)
		}
		for _, topic := range analysis.Topics {
			key := strings.ToLower(strings.TrimSpace(topic))
			if key == "" {
				continue
			}
			if _, ok := topicSeen[key]; ok {
				continue
			}
			topicSeen[key] = struct{}{}
			topics = append(topics, topic)
		}
		metrics = append(metrics, analysis.Metrics...)
		branches = append(branches, analysis.Branches...)
		if root == "" {
			root = analysis.Root
		}
		for _, section := range analysis.Sections {
			for _, item := range section.Items {
				title := categorizer.Categorize(item.Text)
				grouped[title] = append(grouped[title], item)
			}
		}
	}

	if len(summaries) == 0 {
		// Every chunk degraded; surface the placeholders rather than an
		// empty dashboard.
		for _, analysis := range analyses {
			summaries = append(summaries, analysis.Summary)
			topics = append(topics, analysis.Topics...)
		}
	}

	sections := make([]models.InsightSection, 0, len(grouped))
	for _, category := range taxonomy {
		items, ok := grouped[category.title]
		if !ok {
			continue
		}
		sections = append(sections, models.InsightSection{
			Title: category.title,
			Icon:  category.icon,
			Items: items,
		})
	}

	if root == "" {
		root = "Video Insights"
	}

	return &models.Dashboard{
		Summary: models.Summary{
			Text:    strings.Join(summaries, " "),
			Topics:  topics,
			Metrics: metrics,
		},
		Insights: sections,
		MindMap: models.MindMap{
			Root:     root,
			Branches: branches,
		},
	}
}
