// Package media wraps the external download/transcription service. Each
// call is a fire-and-check HTTP round trip; a success=false payload and a
// transport error are equivalent failures to callers.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	PollAttempts   int
	ModelSize      string
	Device         string
	ComputeType    string
	Language       string
}

type Client struct {
	config Config
	http   *http.Client
	logger *logrus.Logger
}

func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logrus.StandardLogger(),
	}
}

// DownloadResult is the metadata returned once the service has fetched a
// video.
type DownloadResult struct {
	VideoID     string `json:"videoId"`
	Title       string `json:"title"`
	Duration    int    `json:"duration"`
	Thumbnail   string `json:"thumbnail"`
	DownloadURL string `json:"downloadUrl"`
}

// TranscriptionJob identifies an asynchronous transcription on the service.
type TranscriptionJob struct {
	TranscriptionID string `json:"transcriptionId"`
	Status          string `json:"status"`
}

// TranscriptionStatus is one status-poll observation.
type TranscriptionStatus struct {
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
}

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RequestDownload asks the service to fetch the video behind url and
// returns its metadata.
func (c *Client) RequestDownload(ctx context.Context, url string) (*DownloadResult, error) {
	const op = "media.RequestDownload"

	var result DownloadResult
	err := c.post(ctx, c.config.BaseURL+"/videos/download",
		map[string]string{"url": url}, &result)
	if err != nil {
		return nil, errors.Wrap(err, "download request failed")
	}

	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"video_id":  result.VideoID,
		"title":     result.Title,
	}).Debug("Download completed")

	return &result, nil
}

// RequestTranscription starts an asynchronous transcription of a
// previously downloaded video.
func (c *Client) RequestTranscription(ctx context.Context, serviceVideoID string) (*TranscriptionJob, error) {
	const op = "media.RequestTranscription"

	body := map[string]interface{}{
		"modelSize":   c.config.ModelSize,
		"device":      c.config.Device,
		"computeType": c.config.ComputeType,
		"language":    c.config.Language,
		"saveToFile":  false,
	}

	var job TranscriptionJob
	url := fmt.Sprintf("%s/videos/%s/transcribe", c.config.BaseURL, serviceVideoID)
	if err := c.post(ctx, url, body, &job); err != nil {
		return nil, errors.Wrap(err, "transcription request failed")
	}

	c.logger.WithFields(logrus.Fields{
		"operation":        op,
		"video_id":         serviceVideoID,
		"transcription_id": job.TranscriptionID,
	}).Debug("Transcription requested")

	return &job, nil
}

// GetTranscriptionStatus issues a single status check.
func (c *Client) GetTranscriptionStatus(ctx context.Context, transcriptionID string) (*TranscriptionStatus, error) {
	url := fmt.Sprintf("%s/transcriptions/%s/status", c.config.BaseURL, transcriptionID)

	var status TranscriptionStatus
	if err := c.get(ctx, url, &status); err != nil {
		return nil, errors.Wrap(err, "transcription status check failed")
	}
	return &status, nil
}

// PollTranscription checks the transcription at a fixed interval for a
// bounded number of attempts. It returns the transcript on completion and
// "" when the service reported failure or the attempts ran out; callers
// needing to tell those apart issue one more GetTranscriptionStatus.
func (c *Client) PollTranscription(ctx context.Context, transcriptionID string) (string, error) {
	const op = "media.PollTranscription"

	for attempt := 0; attempt < c.config.PollAttempts; attempt++ {
		status, err := c.GetTranscriptionStatus(ctx, transcriptionID)
		if err != nil {
			return "", err
		}

		switch status.Status {
		case StatusCompleted:
			return status.Text, nil
		case StatusFailed:
			c.logger.WithFields(logrus.Fields{
				"operation":        op,
				"transcription_id": transcriptionID,
				"attempt":          attempt + 1,
			}).Warn("Transcription reported failed")
			return "", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}

	c.logger.WithFields(logrus.Fields{
		"operation":        op,
		"transcription_id": transcriptionID,
		"attempts":         c.config.PollAttempts,
	}).Warn("Transcription polling exhausted")
	return "", nil
}

func (c *Client) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("service returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	if !env.Success {
		if env.Error != "" {
			return errors.Errorf("service error: %s", env.Error)
		}
		return errors.New("service reported failure")
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, "failed to decode response data")
		}
	}
	return nil
}
