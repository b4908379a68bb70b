package insight

import (
	"strings"
	"testing"
)

const fullShapeResponse = `{
  "summary": {"text": "A talk about distributed systems.", "topics": ["systems", "scaling"]},
  "insights": [{"title": "Key Insights", "icon": "💡", "items": [{"text": "Design for failure", "score": 0.9}]}],
  "mindMap": {"root": "Distributed Systems", "branches": [{"label": "Design", "children": ["replication"]}]}
}`

const legacyShapeResponse = `{
  "summary": "The speaker covers revenue growth.",
  "topics": ["revenue"],
  "insights": ["Revenue doubled while cost stayed flat"],
  "mindMap": {"root": "Growth", "branches": [{"label": "Revenue"}]}
}`

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "No fence",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "JSON fence",
			in:   "```json\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "Bare fence",
			in:   "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.in); got != tt.want {
				t.Errorf("stripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepairTruncatedJSON(t *testing.T) {
	t.Run("Truncated tail recovers valid prefix", func(t *testing.T) {
		truncated := `{"summary": {"text": "ok"}, "extra": {"a": 1}, "broken": {"x": `
		repaired := repairTruncatedJSON(truncated)
		if repaired == "" {
			t.Fatal("expected a repaired prefix")
		}
		if !strings.HasSuffix(repaired, "}") {
			t.Errorf("repaired prefix does not end at a brace: %q", repaired)
		}
	})

	t.Run("Hopeless input returns empty", func(t *testing.T) {
		if got := repairTruncatedJSON("not json at all"); got != "" {
			t.Errorf("repairTruncatedJSON() = %q, want empty", got)
		}
	})
}

func TestParseChunkResponse(t *testing.T) {
	t.Run("Full dashboard shape", func(t *testing.T) {
		analysis := parseChunkResponse(fullShapeResponse, "chunk text")
		if analysis.Full == nil {
			t.Fatal("expected full dashboard shape")
		}
		if analysis.Degraded {
			t.Error("full shape must not be degraded")
		}
		if len(analysis.Branches) != 1 {
			t.Errorf("branches = %d, want 1", len(analysis.Branches))
		}
	})

	t.Run("Legacy flat shape", func(t *testing.T) {
		analysis := parseChunkResponse(legacyShapeResponse, "chunk text")
		if analysis.Full != nil {
			t.Error("legacy shape must not be marked full")
		}
		if analysis.Summary == "" {
			t.Error("expected summary text")
		}
		if len(analysis.Sections) != 1 {
			t.Errorf("sections = %d, want 1", len(analysis.Sections))
		}
	})

	t.Run("Fenced full shape", func(t *testing.T) {
		analysis := parseChunkResponse("```json\n"+fullShapeResponse+"\n```", "chunk text")
		if analysis.Full == nil {
			t.Fatal("expected full dashboard shape after fence stripping")
		}
	})

	t.Run("Garbage degrades to placeholder", func(t *testing.T) {
		analysis := parseChunkResponse("the model rambled instead of emitting JSON", "chunk text")
		if !analysis.Degraded {
			t.Fatal("expected degraded placeholder")
		}
		if len(analysis.Topics) != 1 || analysis.Topics[0] != "transcript analysis" {
			t.Errorf("topics = %v, want [transcript analysis]", analysis.Topics)
		}
	})

	t.Run("Truncated full shape repairs", func(t *testing.T) {
		truncated := `{"summary": {"text": "A talk."}, "insights": [{"title": "Key Insights", "icon": "x", "items": [{"text": "core point"}]}], "mindMap": {"root": "Talk", "branches": [{"label": "One"}]}, "trailing": {"cut": `
		analysis := parseChunkResponse(truncated, "chunk text")
		if analysis.Degraded {
			t.Fatal("expected repair to succeed")
		}
		if analysis.Full == nil {
			t.Error("expected repaired response to carry the full shape")
		}
	})
}
