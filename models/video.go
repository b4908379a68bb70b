package models

import (
	"time"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusDownloaded   Status = "downloaded"
	StatusTranscribing Status = "transcribing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Video is one processing job per submitted URL. The status only advances
// forward, except into failed, which is reachable from any non-terminal
// state and is terminal.
type Video struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	URL             string     `json:"url"`
	ServiceVideoID  string     `json:"service_video_id,omitempty"`
	Title           string     `json:"title,omitempty"`
	Duration        int        `json:"duration,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"`
	DownloadURL     string     `json:"download_url,omitempty"`
	TranscriptionID string     `json:"transcription_id,omitempty"`
	Transcript      string     `json:"transcript,omitempty"`
	Dashboard       *Dashboard `json:"dashboard,omitempty"`
	TokensUsed      int        `json:"tokens_used,omitempty"`
	CreditsCharged  int        `json:"credits_charged,omitempty"`
	Status          Status     `json:"status"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (v *Video) IsPending() bool      { return v.Status == StatusPending }
func (v *Video) IsDownloaded() bool   { return v.Status == StatusDownloaded }
func (v *Video) IsTranscribing() bool { return v.Status == StatusTranscribing }
func (v *Video) IsCompleted() bool    { return v.Status == StatusCompleted }
func (v *Video) IsFailed() bool       { return v.Status == StatusFailed }

func (v *Video) IsTerminal() bool {
	return v.Status == StatusCompleted || v.Status == StatusFailed
}

// IsStale checks if the job has been stuck in a non-terminal state for too long.
func (v *Video) IsStale(timeout time.Duration) bool {
	if v.IsTerminal() {
		return false
	}
	return time.Since(v.UpdatedAt) > timeout
}

// Dashboard is the synthesized insight document for a completed video.
type Dashboard struct {
	Summary    Summary             `json:"summary"`
	Transcript []TranscriptSegment `json:"transcript,omitempty"`
	Insights   []InsightSection    `json:"insights"`
	MindMap    MindMap             `json:"mindMap"`
}

type Summary struct {
	Text    string   `json:"text"`
	Topics  []string `json:"topics,omitempty"`
	Metrics []Metric `json:"metrics,omitempty"`
}

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type InsightSection struct {
	Title string        `json:"title"`
	Icon  string        `json:"icon"`
	Items []InsightItem `json:"items"`
}

type InsightItem struct {
	Text    string  `json:"text"`
	Score   float64 `json:"score,omitempty"`
	Flagged bool    `json:"flagged,omitempty"`
}

type MindMap struct {
	Root     string          `json:"root"`
	Branches []MindMapBranch `json:"branches"`
}

type MindMapBranch struct {
	Label    string   `json:"label"`
	Children []string `json:"children,omitempty"`
}
