package models

// SubmitRequest is the incoming request for video processing.
type SubmitRequest struct {
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}

// VideoResponse represents the API response for a video job.
type VideoResponse struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	Status         Status     `json:"status"`
	Title          string     `json:"title,omitempty"`
	Thumbnail      string     `json:"thumbnail,omitempty"`
	Duration       int        `json:"duration,omitempty"`
	Dashboard      *Dashboard `json:"dashboard,omitempty"`
	TokensUsed     int        `json:"tokens_used,omitempty"`
	CreditsCharged int        `json:"credits_charged,omitempty"`
	Error          string     `json:"error,omitempty"`
}

func NewVideoResponse(v *Video) *VideoResponse {
	return &VideoResponse{
		ID:             v.ID,
		URL:            v.URL,
		Status:         v.Status,
		Title:          v.Title,
		Thumbnail:      v.Thumbnail,
		Duration:       v.Duration,
		Dashboard:      v.Dashboard,
		TokensUsed:     v.TokensUsed,
		CreditsCharged: v.CreditsCharged,
		Error:          v.Error,
	}
}

// BalanceResponse reports a user's current credit balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

// AdminCreditRequest is the payload for administrative grant/deduct.
type AdminCreditRequest struct {
	UserID      string `json:"user_id,omitempty"`
	AllUsers    bool   `json:"all_users,omitempty"`
	Amount      int    `json:"amount"`
	Description string `json:"description,omitempty"`
}
