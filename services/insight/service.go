package insight

import (
	"context"
	"encoding/json"

	"github.com/joaorjoaquim/video-insight-api/clients/llm"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/textutil"
	"github.com/sirupsen/logrus"
)

type service struct {
	completer   llm.Completer
	categorizer Categorizer
	config      Config
	logger      *logrus.Logger
}

func NewService(completer llm.Completer, categorizer Categorizer, config Config) Service {
	if categorizer == nil {
		categorizer = NewKeywordCategorizer()
	}
	return &service{
		completer:   completer,
		categorizer: categorizer,
		config:      config,
		logger:      logrus.StandardLogger(),
	}
}

func (s *service) Generate(ctx context.Context, transcript string) (*Result, error) {
	const op = "InsightService.Generate"
	logger := s.logger.WithField("operation", op)

	deduped := textutil.DeduplicateSentences(transcript)
	if deduped == "" {
		return nil, errors.InvalidInput(op, nil, "Transcript is empty")
	}

	totalTokens := 0
	chunkSize := s.config.MaxTokensPerChunk

	var analyses []chunkAnalysis
	var err error
	for attempt := 0; attempt < s.config.BatchAttempts; attempt++ {
		var used int
		analyses, used, err = s.processBatch(ctx, deduped, chunkSize)
		// Tokens from a failed batch were still billed by the provider.
		totalTokens += used
		if err == nil {
			break
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"attempt":    attempt + 1,
			"chunk_size": chunkSize,
		}).Warn("Chunk batch failed, subdividing further")
		chunkSize /= 2
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Insight generation failed")
	}

	dashboard, used := s.consolidate(ctx, analyses)
	totalTokens += used

	if ratio := coverageRatio(deduped, dashboard); ratio < s.config.CoverageWarnThreshold {
		logger.WithField("coverage", ratio).Warn("Dashboard covers few transcript topics")
	}

	return &Result{Dashboard: dashboard, TokensUsed: totalTokens}, nil
}

func (s *service) processBatch(ctx context.Context, text string, chunkSize int) ([]chunkAnalysis, int, error) {
	var chunks []string
	if textutil.EstimateTokens(text) > s.config.ChunkThresholdTokens {
		chunks = textutil.SplitChunks(text, chunkSize)
	} else {
		chunks = []string{text}
	}

	s.logger.WithFields(logrus.Fields{
		"chunks":     len(chunks),
		"chunk_size": chunkSize,
	}).Debug("Processing transcript chunks")

	tokens := 0
	analyses := make([]chunkAnalysis, 0, len(chunks))
	for i, chunk := range chunks {
		raw, used, err := s.completeWithRetry(ctx, buildAnalysisPrompt(chunk, i, len(chunks)))
		tokens += used
		if err != nil {
			return nil, tokens, err
		}
		analyses = append(analyses, parseChunkResponse(raw, chunk))
	}
	return analyses, tokens, nil
}

func (s *service) completeWithRetry(ctx context.Context, prompt string) (string, int, error) {
	tokens := 0
	var lastErr error

	for attempt := 0; attempt < s.config.ChunkRetries; attempt++ {
		result, err := s.completer.Complete(ctx, llm.CompletionRequest{
			System:      analysisSystemPrompt,
			Prompt:      prompt,
			Temperature: s.config.Temperature,
			MaxTokens:   s.config.MaxTokens,
		})
		if err == nil {
			return result.Text, tokens + result.TokensUsed, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", tokens, ctx.Err()
		}
		s.logger.WithError(err).WithField("attempt", attempt+1).Warn("Completion failed")
	}
	return "", tokens, lastErr
}

// consolidate folds per-chunk analyses into the final dashboard. A single
// full-shape chunk is returned as-is, skipping any extra completion. With
// multiple chunks the optional consolidation call is attempted first; the
// manual taxonomy merge is the guaranteed fallback.
func (s *service) consolidate(ctx context.Context, analyses []chunkAnalysis) (*models.Dashboard, int) {
	if len(analyses) == 1 && analyses[0].Full != nil {
		return analyses[0].Full, 0
	}

	if s.config.ConsolidateWithLLM && len(analyses) > 1 {
		if dashboard, used := s.consolidateWithLLM(ctx, analyses); dashboard != nil {
			return dashboard, used
		} else if used > 0 {
			// Consolidation call was billed but unusable; fall through.
			return mergeAnalyses(analyses, s.categorizer), used
		}
	}

	return mergeAnalyses(analyses, s.categorizer), 0
}

func (s *service) consolidateWithLLM(ctx context.Context, analyses []chunkAnalysis) (*models.Dashboard, int) {
	partials := make([]string, 0, len(analyses))
	for _, analysis := range analyses {
		if analysis.Degraded {
			continue
		}
		partial := mergeAnalyses([]chunkAnalysis{analysis}, s.categorizer)
		encoded, err := json.Marshal(partial)
		if err != nil {
			continue
		}
		partials = append(partials, string(encoded))
	}
	if len(partials) < 2 {
		return nil, 0
	}

	result, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:      consolidationSystemPrompt,
		Prompt:      buildConsolidationPrompt(partials),
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Consolidation completion failed, using manual merge")
		return nil, 0
	}

	var dashboard models.Dashboard
	cleaned := stripCodeFences(result.Text)
	if err := json.Unmarshal([]byte(cleaned), &dashboard); err != nil || !isFullDashboard(&dashboard) {
		if repaired := repairTruncatedJSON(cleaned); repaired != "" {
			if json.Unmarshal([]byte(repaired), &dashboard) == nil && isFullDashboard(&dashboard) {
				return &dashboard, result.TokensUsed
			}
		}
		s.logger.Warn("Consolidation response unparseable, using manual merge")
		return nil, result.TokensUsed
	}
	return &dashboard, result.TokensUsed
}
