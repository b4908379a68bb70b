// Package textutil provides token estimation and sentence-level text
// preparation for transcripts headed into LLM prompts. Pure functions, no I/O.
package textutil

import (
	"strings"
)

// MinSentenceLength is the cutoff below which sentences are dropped during
// deduplication. ASR output is full of fragments shorter than this.
const MinSentenceLength = 8

// EstimateTokens returns a deterministic token-count heuristic,
// ceil(len/4). Used only for chunk-sizing decisions, never for billing;
// billing uses the provider-reported usage.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// SplitSentences splits text on sentence terminators, trimming whitespace
// and dropping empties. Order is preserved.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(strings.TrimRight(b.String(), ".!?")); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// DeduplicateSentences drops sentences shorter than MinSentenceLength and
// exact duplicates (first occurrence wins, case-sensitive), rejoining with
// ". ". ASR transcripts repeat phrases; dropping repeats shrinks prompt
// cost without materially changing meaning.
func DeduplicateSentences(text string) string {
	return DeduplicateSentencesMin(text, MinSentenceLength)
}

// DeduplicateSentencesMin is DeduplicateSentences with an explicit minimum
// sentence length.
func DeduplicateSentencesMin(text string, minLength int) string {
	sentences := SplitSentences(text)
	seen := make(map[string]struct{}, len(sentences))
	kept := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if len(s) < minLength {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		kept = append(kept, s)
	}
	return strings.Join(kept, ". ")
}

// SplitChunks packs sentences greedily into chunks that stay under
// maxTokens (estimated). A sentence is never split; every input sentence
// lands in exactly one chunk, in original order. A single sentence over
// budget becomes its own chunk.
func SplitChunks(text string, maxTokens int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for _, s := range sentences {
		tokens := EstimateTokens(s)
		if len(current) > 0 && currentTokens+tokens > maxTokens {
			chunks = append(chunks, strings.Join(current, ". "))
			current = current[:0]
			currentTokens = 0
		}
		current = append(current, s)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ". "))
	}
	return chunks
}
