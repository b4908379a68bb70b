package video

import (
	"context"

	"github.com/joaorjoaquim/video-insight-api/clients/media"
	"github.com/joaorjoaquim/video-insight-api/models"
)

// Service drives a submitted URL through the processing pipeline:
// pending -> downloaded -> transcribing -> completed, with failed reachable
// from any non-terminal state. Every failure path returns the reserved
// credits before the job goes terminal.
type Service interface {
	// Submit validates the URL, reserves the submission estimate and
	// creates the job in pending. When async processing is enabled the
	// pipeline starts in the background.
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.Video, error)

	Get(ctx context.Context, id string) (*models.Video, error)
	List(ctx context.Context, userID string, status models.Status, limit, offset int) ([]*models.Video, error)

	// ProcessDownload advances pending -> downloaded.
	ProcessDownload(ctx context.Context, id string) (*models.Video, error)

	// ProcessTranscription advances downloaded -> transcribing.
	ProcessTranscription(ctx context.Context, id string) (*models.Video, error)

	// CheckCompletion issues one status check for a transcribing job. A
	// still-processing job is returned unchanged; the call is safe to
	// repeat and a terminal job comes back as-is.
	CheckCompletion(ctx context.Context, id string) (*models.Video, error)

	// ProcessAll drives the job through every remaining stage, waiting on
	// the transcription with bounded polling.
	ProcessAll(ctx context.Context, id string) (*models.Video, error)
}

// MediaClient is the slice of the media service adapter the pipeline needs.
type MediaClient interface {
	RequestDownload(ctx context.Context, url string) (*media.DownloadResult, error)
	RequestTranscription(ctx context.Context, serviceVideoID string) (*media.TranscriptionJob, error)
	GetTranscriptionStatus(ctx context.Context, transcriptionID string) (*media.TranscriptionStatus, error)
	PollTranscription(ctx context.Context, transcriptionID string) (string, error)
}

// URLValidator guards submissions before any credit is touched.
type URLValidator interface {
	ValidateURL(url string) error
}
