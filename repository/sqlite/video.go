package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
)

const (
	saveVideoQuery = `
        INSERT INTO videos (
            id, user_id, url, service_video_id, title, duration, thumbnail,
            download_url, transcription_id, transcript, dashboard,
            tokens_used, credits_charged, status, error, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            service_video_id = excluded.service_video_id,
            title = excluded.title,
            duration = excluded.duration,
            thumbnail = excluded.thumbnail,
            download_url = excluded.download_url,
            transcription_id = excluded.transcription_id,
            transcript = excluded.transcript,
            dashboard = excluded.dashboard,
            tokens_used = excluded.tokens_used,
            credits_charged = excluded.credits_charged,
            status = excluded.status,
            error = excluded.error,
            updated_at = excluded.updated_at
    `

	videoColumns = `
        id, user_id, url, service_video_id, title, duration, thumbnail,
        download_url, transcription_id, transcript, dashboard,
        tokens_used, credits_charged, status, error, created_at, updated_at
    `
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Save(ctx context.Context, video *models.Video) error {
	const op = "VideoRepository.Save"

	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now

	var dashboard sql.NullString
	if video.Dashboard != nil {
		data, err := json.Marshal(video.Dashboard)
		if err != nil {
			return errors.Internal(op, err, "Failed to encode dashboard")
		}
		dashboard = sql.NullString{String: string(data), Valid: true}
	}

	err := withLockRetry(op, func() error {
		_, err := r.db.ExecContext(ctx, saveVideoQuery,
			video.ID,
			video.UserID,
			video.URL,
			nullable(video.ServiceVideoID),
			video.Title,
			video.Duration,
			video.Thumbnail,
			video.DownloadURL,
			nullable(video.TranscriptionID),
			video.Transcript,
			dashboard,
			video.TokensUsed,
			video.CreditsCharged,
			string(video.Status),
			video.Error,
			video.CreatedAt,
			video.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return errors.Internal(op, err, "Failed to save video")
	}
	return nil
}

func (r *VideoRepository) Find(ctx context.Context, id string) (*models.Video, error) {
	const op = "VideoRepository.Find"

	row := r.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = ?", id)

	video, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Video not found")
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query video")
	}
	return video, nil
}

func (r *VideoRepository) FindByUser(
	ctx context.Context,
	userID string,
	status models.Status,
	limit, offset int,
) ([]*models.Video, error) {
	const op = "VideoRepository.FindByUser"

	query := "SELECT " + videoColumns + " FROM videos WHERE user_id = ?"
	args := []interface{}{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query videos")
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan video")
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate videos")
	}
	return videos, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row scannable) (*models.Video, error) {
	video := &models.Video{}
	var (
		serviceVideoID  sql.NullString
		transcriptionID sql.NullString
		dashboard       sql.NullString
		status          string
	)

	err := row.Scan(
		&video.ID,
		&video.UserID,
		&video.URL,
		&serviceVideoID,
		&video.Title,
		&video.Duration,
		&video.Thumbnail,
		&video.DownloadURL,
		&transcriptionID,
		&video.Transcript,
		&dashboard,
		&video.TokensUsed,
		&video.CreditsCharged,
		&status,
		&video.Error,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	video.Status = models.Status(status)
	video.ServiceVideoID = serviceVideoID.String
	video.TranscriptionID = transcriptionID.String

	if dashboard.Valid && dashboard.String != "" {
		var d models.Dashboard
		if err := json.Unmarshal([]byte(dashboard.String), &d); err != nil {
			return nil, err
		}
		video.Dashboard = &d
	}

	return video, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
