package insight

import (
	"context"

	"github.com/joaorjoaquim/video-insight-api/models"
)

// Service turns raw transcript text into a structured insights dashboard.
type Service interface {
	Generate(ctx context.Context, transcript string) (*Result, error)
}

// Result carries the synthesized dashboard plus the cumulative
// provider-reported token usage across every completion issued, which is
// the sole input to billing.
type Result struct {
	Dashboard  *models.Dashboard
	TokensUsed int
}

// Categorizer assigns an insight item to a section of the fixed taxonomy.
// Pluggable so the keyword default can be swapped for a learned classifier
// without touching the pipeline.
type Categorizer interface {
	Categorize(text string) string
}

type Config struct {
	// ChunkThresholdTokens is the estimated size above which the
	// transcript is split before prompting.
	ChunkThresholdTokens int

	// MaxTokensPerChunk is the per-chunk budget used when splitting.
	MaxTokensPerChunk int

	// ChunkRetries is the per-chunk completion retry cap.
	ChunkRetries int

	// BatchAttempts bounds how many times the whole chunk batch is
	// reprocessed with a reduced chunk size after retries are exhausted.
	BatchAttempts int

	// Temperature and MaxTokens are passed through to every completion.
	Temperature float64
	MaxTokens   int

	// ConsolidateWithLLM enables the optional consolidation completion;
	// the manual merge remains the guaranteed fallback.
	ConsolidateWithLLM bool

	// CoverageWarnThreshold is the topic-coverage fraction below which a
	// quality warning is logged. Never fatal.
	CoverageWarnThreshold float64
}

func DefaultConfig() Config {
	return Config{
		ChunkThresholdTokens:  1800,
		MaxTokensPerChunk:     1500,
		ChunkRetries:          3,
		BatchAttempts:         2,
		Temperature:           0.3,
		MaxTokens:             2048,
		ConsolidateWithLLM:    true,
		CoverageWarnThreshold: 0.3,
	}
}
