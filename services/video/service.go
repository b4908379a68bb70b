package video

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joaorjoaquim/video-insight-api/clients/media"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/repository"
	"github.com/joaorjoaquim/video-insight-api/services/credits"
	"github.com/joaorjoaquim/video-insight-api/services/insight"
	"github.com/sirupsen/logrus"
)

type service struct {
	videos    repository.VideoRepository
	media     MediaClient
	insights  insight.Service
	credits   credits.Service
	validator URLValidator

	// async starts the pipeline in the background on Submit. Off, the
	// caller drives the job through the stage operations.
	async bool

	// processTimeout bounds one background pipeline run.
	processTimeout time.Duration

	logger *logrus.Logger
}

func NewService(
	videoRepo repository.VideoRepository,
	mediaClient MediaClient,
	insightService insight.Service,
	creditService credits.Service,
	validator URLValidator,
	async bool,
	processTimeout time.Duration,
) Service {
	if processTimeout <= 0 {
		processTimeout = 15 * time.Minute
	}
	return &service{
		videos:         videoRepo,
		media:          mediaClient,
		insights:       insightService,
		credits:        creditService,
		validator:      validator,
		async:          async,
		processTimeout: processTimeout,
		logger:         logrus.StandardLogger(),
	}
}

func (s *service) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Video, error) {
	const op = "VideoService.Submit"

	if req.UserID == "" {
		return nil, errors.InvalidInput(op, nil, "User ID is required")
	}
	if err := s.validator.ValidateURL(req.URL); err != nil {
		return nil, err
	}

	video := &models.Video{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		URL:    req.URL,
		Status: models.StatusPending,
	}

	// Reserve before persisting so a job never exists without its charge.
	if _, err := s.credits.ReserveEstimate(ctx, req.UserID, video.ID); err != nil {
		return nil, err
	}
	if err := s.videos.Save(ctx, video); err != nil {
		if refundErr := s.credits.RefundEstimate(ctx, req.UserID, video.ID, models.RefSubmissionEstimate); refundErr != nil {
			s.logger.WithError(refundErr).WithField("video_id", video.ID).
				Error("Failed to release estimate after save failure")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"user_id":  req.UserID,
	}).Info("Video submitted")

	if s.async {
		go s.processInBackground(video.ID)
	}
	return video, nil
}

func (s *service) processInBackground(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	if _, err := s.ProcessAll(ctx, id); err != nil {
		s.logger.WithError(err).WithField("video_id", id).Error("Background processing failed")
	}
}

func (s *service) Get(ctx context.Context, id string) (*models.Video, error) {
	return s.videos.Find(ctx, id)
}

func (s *service) List(ctx context.Context, userID string, status models.Status, limit, offset int) ([]*models.Video, error) {
	const op = "VideoService.List"

	if userID == "" {
		return nil, errors.InvalidInput(op, nil, "User ID is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.videos.FindByUser(ctx, userID, status, limit, offset)
}

func (s *service) ProcessDownload(ctx context.Context, id string) (*models.Video, error) {
	const op = "VideoService.ProcessDownload"

	video, err := s.videos.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.IsPending() {
		return nil, errors.InvalidInput(op, nil,
			fmt.Sprintf("Cannot download a video in status %s", video.Status))
	}

	result, err := s.media.RequestDownload(ctx, video.URL)
	if err != nil {
		return nil, s.failJob(ctx, video, op, err,
			"Video download failed", models.RefDownloadRefund)
	}

	video.ServiceVideoID = result.VideoID
	video.Title = result.Title
	video.Duration = result.Duration
	video.Thumbnail = result.Thumbnail
	video.DownloadURL = result.DownloadURL
	video.Status = models.StatusDownloaded
	if err := s.videos.Save(ctx, video); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"title":    video.Title,
	}).Info("Video downloaded")
	return video, nil
}

func (s *service) ProcessTranscription(ctx context.Context, id string) (*models.Video, error) {
	const op = "VideoService.ProcessTranscription"

	video, err := s.videos.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !video.IsDownloaded() {
		return nil, errors.InvalidInput(op, nil,
			fmt.Sprintf("Cannot transcribe a video in status %s", video.Status))
	}

	job, err := s.media.RequestTranscription(ctx, video.ServiceVideoID)
	if err != nil {
		return nil, s.failJob(ctx, video, op, err,
			"Transcription request failed", models.RefTranscriptionRefund)
	}

	video.TranscriptionID = job.TranscriptionID
	video.Status = models.StatusTranscribing
	if err := s.videos.Save(ctx, video); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id":         video.ID,
		"transcription_id": video.TranscriptionID,
	}).Info("Transcription started")
	return video, nil
}

func (s *service) CheckCompletion(ctx context.Context, id string) (*models.Video, error) {
	const op = "VideoService.CheckCompletion"

	video, err := s.videos.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if video.IsTerminal() {
		return video, nil
	}
	if !video.IsTranscribing() {
		return nil, errors.InvalidInput(op, nil,
			fmt.Sprintf("Cannot check completion of a video in status %s", video.Status))
	}

	status, err := s.media.GetTranscriptionStatus(ctx, video.TranscriptionID)
	if err != nil {
		return nil, s.failJob(ctx, video, op, err,
			"Transcription status check failed", models.RefTranscriptionRefund)
	}

	switch status.Status {
	case media.StatusCompleted:
		return s.complete(ctx, video, status.Text)
	case media.StatusFailed:
		return nil, s.failJob(ctx, video, op, nil,
			"Transcription failed on the media service", models.RefTranscriptionRefund)
	default:
		// Still processing; no state change, check again later.
		return video, nil
	}
}

// ProcessAll runs every remaining stage synchronously. Transcription is
// waited out with bounded polling; an exhausted poll is a terminal timeout
// for this driver, the one extra status check below only tells the two
// empty-transcript cases apart for the failure message.
func (s *service) ProcessAll(ctx context.Context, id string) (*models.Video, error) {
	const op = "VideoService.ProcessAll"

	video, err := s.videos.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if video.IsPending() {
		if video, err = s.ProcessDownload(ctx, video.ID); err != nil {
			return nil, err
		}
	}
	if video.IsDownloaded() {
		if video, err = s.ProcessTranscription(ctx, video.ID); err != nil {
			return nil, err
		}
	}
	if video.IsTranscribing() {
		transcript, err := s.media.PollTranscription(ctx, video.TranscriptionID)
		if err != nil {
			return nil, s.failJob(ctx, video, op, err,
				"Transcription polling failed", models.RefTranscriptionRefund)
		}
		if transcript == "" {
			message := "Transcription timed out"
			if status, err := s.media.GetTranscriptionStatus(ctx, video.TranscriptionID); err == nil {
				switch status.Status {
				case media.StatusCompleted:
					// Completed between the last poll and now.
					return s.complete(ctx, video, status.Text)
				case media.StatusFailed:
					message = "Transcription failed on the media service"
				}
			}
			return nil, s.failJob(ctx, video, op, nil, message, models.RefTranscriptionRefund)
		}
		return s.complete(ctx, video, transcript)
	}
	return video, nil
}

// complete takes a transcribing job with its finished transcript through
// insight synthesis, cost finalization and the terminal completed write.
func (s *service) complete(ctx context.Context, video *models.Video, transcript string) (*models.Video, error) {
	const op = "VideoService.complete"

	if transcript == "" {
		return nil, s.failJob(ctx, video, op, nil,
			"Transcription produced an empty transcript", models.RefTranscriptionRefund)
	}

	result, err := s.insights.Generate(ctx, transcript)
	if err != nil {
		return nil, s.failJob(ctx, video, op, err,
			"Insight generation failed", models.RefInsightRefund)
	}

	charged, err := s.credits.FinalizeEstimate(ctx, video.UserID, video.ID, result.TokensUsed)
	if err != nil {
		return nil, s.failJob(ctx, video, op, err,
			"Credit finalization failed", models.RefInsightRefund)
	}

	video.Transcript = transcript
	video.Dashboard = result.Dashboard
	video.TokensUsed = result.TokensUsed
	video.CreditsCharged = charged
	video.Status = models.StatusCompleted
	video.Error = ""
	if err := s.videos.Save(ctx, video); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"tokens":   video.TokensUsed,
		"credits":  video.CreditsCharged,
	}).Info("Video completed")
	return video, nil
}

// failJob drives a job into the terminal failed state, returns the
// reserved credits and reports the original cause as the operation error.
func (s *service) failJob(ctx context.Context, video *models.Video, op string, cause error, message, refundRef string) error {
	video.Status = models.StatusFailed
	video.Error = message
	if err := s.videos.Save(ctx, video); err != nil {
		s.logger.WithError(err).WithField("video_id", video.ID).
			Error("Failed to persist failure state")
	}

	if err := s.credits.RefundEstimate(ctx, video.UserID, video.ID, refundRef); err != nil {
		s.logger.WithError(err).WithField("video_id", video.ID).
			Error("Failed to refund estimate")
	}

	s.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"kind":     errors.ClassifyFailure(message),
		"refund":   refundRef,
	}).Warn("Video processing failed")

	return errors.Internal(op, cause, message)
}
