package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/joaorjoaquim/video-insight-api/clients/llm"
)

type fakeResponse struct {
	text   string
	tokens int
	err    error
}

type fakeCompleter struct {
	responses []fakeResponse
	calls     int
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	var resp fakeResponse
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	} else if len(f.responses) > 0 {
		resp = f.responses[len(f.responses)-1]
	}
	f.calls++
	if resp.err != nil {
		return nil, resp.err
	}
	return &llm.CompletionResult{Text: resp.text, TokensUsed: resp.tokens}, nil
}

func testInsightConfig() Config {
	cfg := DefaultConfig()
	cfg.ConsolidateWithLLM = false
	return cfg
}

func longTranscript() string {
	var parts []string
	for i := 0; i < 120; i++ {
		parts = append(parts, "Sentence number "+string(rune('a'+i%26))+" talks about product strategy at length")
	}
	return strings.Join(parts, ". ") + "."
}

func TestGenerateSingleChunkFullShape(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{text: fullShapeResponse, tokens: 1200},
	}}

	svc := NewService(completer, nil, testInsightConfig())
	result, err := svc.Generate(context.Background(), "A short transcript about distributed systems design.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// One chunk, full shape: returned directly, no consolidation call.
	if completer.calls != 1 {
		t.Errorf("completion calls = %d, want 1", completer.calls)
	}
	if result.TokensUsed != 1200 {
		t.Errorf("TokensUsed = %d, want 1200", result.TokensUsed)
	}
	if result.Dashboard.Summary.Text == "" {
		t.Error("expected summary text")
	}
	if len(result.Dashboard.MindMap.Branches) != 1 {
		t.Errorf("branches = %d, want 1", len(result.Dashboard.MindMap.Branches))
	}
}

func TestGenerateMultiChunkManualMerge(t *testing.T) {
	// Every chunk returns the legacy shape with one branch; the manual
	// merge must concatenate one branch per chunk.
	completer := &fakeCompleter{responses: []fakeResponse{
		{text: legacyShapeResponse, tokens: 100},
	}}

	cfg := testInsightConfig()
	cfg.ChunkThresholdTokens = 50
	cfg.MaxTokensPerChunk = 200

	svc := NewService(completer, nil, cfg)
	result, err := svc.Generate(context.Background(), longTranscript())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if completer.calls < 2 {
		t.Fatalf("expected multiple chunk completions, got %d", completer.calls)
	}
	if got, want := len(result.Dashboard.MindMap.Branches), completer.calls; got != want {
		t.Errorf("branches = %d, want %d (one per chunk)", got, want)
	}
	if result.TokensUsed != completer.calls*100 {
		t.Errorf("TokensUsed = %d, want %d", result.TokensUsed, completer.calls*100)
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{err: errors.New("upstream hiccup")},
		{text: fullShapeResponse, tokens: 500},
	}}

	svc := NewService(completer, nil, testInsightConfig())
	result, err := svc.Generate(context.Background(), "A short transcript about systems.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("completion calls = %d, want 2", completer.calls)
	}
	if result.TokensUsed != 500 {
		t.Errorf("TokensUsed = %d, want 500", result.TokensUsed)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{err: errors.New("provider down")},
	}}

	svc := NewService(completer, nil, testInsightConfig())
	_, err := svc.Generate(context.Background(), "A short transcript about systems.")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestGenerateUnparseableDegrades(t *testing.T) {
	completer := &fakeCompleter{responses: []fakeResponse{
		{text: "no json here, sorry", tokens: 50},
	}}

	svc := NewService(completer, nil, testInsightConfig())
	result, err := svc.Generate(context.Background(), "A short transcript about systems.")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Dashboard == nil {
		t.Fatal("expected a degraded dashboard, not an abort")
	}
	if !strings.Contains(result.Dashboard.Summary.Text, "Partial analysis unavailable") {
		t.Errorf("unexpected degraded summary: %q", result.Dashboard.Summary.Text)
	}
}

func TestGenerateConsolidationFallback(t *testing.T) {
	// Consolidation call returns garbage; the manual merge must still
	// produce a dashboard and the billed consolidation tokens must count.
	responses := []fakeResponse{
		{text: legacyShapeResponse, tokens: 100},
		{text: legacyShapeResponse, tokens: 100},
	}

	cfg := testInsightConfig()
	cfg.ConsolidateWithLLM = true
	cfg.ChunkThresholdTokens = 50
	cfg.MaxTokensPerChunk = 150

	completer := &fakeCompleter{responses: append(responses,
		fakeResponse{text: "not a dashboard", tokens: 40})}

	svc := NewService(completer, nil, cfg)
	result, err := svc.Generate(context.Background(), longTranscript())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Dashboard.Summary.Text == "" {
		t.Error("expected merged summary from fallback")
	}
}

func TestGenerateEmptyTranscript(t *testing.T) {
	svc := NewService(&fakeCompleter{}, nil, testInsightConfig())
	if _, err := svc.Generate(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}
