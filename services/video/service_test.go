package video

import (
	"context"
	"testing"

	"github.com/joaorjoaquim/video-insight-api/clients/media"
	"github.com/joaorjoaquim/video-insight-api/errors"
	"github.com/joaorjoaquim/video-insight-api/models"
	"github.com/joaorjoaquim/video-insight-api/services/insight"
)

type fakeVideoRepo struct {
	videos map[string]*models.Video
	saves  int
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{videos: map[string]*models.Video{}}
}

func (r *fakeVideoRepo) Save(ctx context.Context, video *models.Video) error {
	copied := *video
	r.videos[video.ID] = &copied
	r.saves++
	return nil
}

func (r *fakeVideoRepo) Find(ctx context.Context, id string) (*models.Video, error) {
	video, ok := r.videos[id]
	if !ok {
		return nil, errors.NotFound("fakeVideoRepo.Find", nil, "Video not found")
	}
	copied := *video
	return &copied, nil
}

func (r *fakeVideoRepo) FindByUser(ctx context.Context, userID string, status models.Status, limit, offset int) ([]*models.Video, error) {
	var out []*models.Video
	for _, video := range r.videos {
		if video.UserID != userID {
			continue
		}
		if status != "" && video.Status != status {
			continue
		}
		copied := *video
		out = append(out, &copied)
	}
	return out, nil
}

type fakeMedia struct {
	downloadResult *media.DownloadResult
	downloadErr    error

	transcriptionJob *media.TranscriptionJob
	transcriptionErr error

	// statuses are consumed one per GetTranscriptionStatus call; the last
	// entry repeats once exhausted.
	statuses    []*media.TranscriptionStatus
	statusCalls int

	pollText string
	pollErr  error
}

func (m *fakeMedia) RequestDownload(ctx context.Context, url string) (*media.DownloadResult, error) {
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return m.downloadResult, nil
}

func (m *fakeMedia) RequestTranscription(ctx context.Context, serviceVideoID string) (*media.TranscriptionJob, error) {
	if m.transcriptionErr != nil {
		return nil, m.transcriptionErr
	}
	return m.transcriptionJob, nil
}

func (m *fakeMedia) GetTranscriptionStatus(ctx context.Context, transcriptionID string) (*media.TranscriptionStatus, error) {
	idx := m.statusCalls
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	m.statusCalls++
	return m.statuses[idx], nil
}

func (m *fakeMedia) PollTranscription(ctx context.Context, transcriptionID string) (string, error) {
	return m.pollText, m.pollErr
}

type fakeInsight struct {
	result *insight.Result
	err    error
	calls  int
}

func (f *fakeInsight) Generate(ctx context.Context, transcript string) (*insight.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeCredits records the estimate lifecycle instead of keeping balances;
// the ledger arithmetic has its own tests.
type fakeCredits struct {
	reserveErr  error
	finalizeErr error

	reserved  map[string]bool
	refunds   []string
	finalized map[string]int
	charge    int
}

func newFakeCredits() *fakeCredits {
	return &fakeCredits{
		reserved:  map[string]bool{},
		finalized: map[string]int{},
		charge:    5,
	}
}

func (f *fakeCredits) GetBalance(ctx context.Context, userID string) (*models.BalanceResponse, error) {
	return &models.BalanceResponse{UserID: userID}, nil
}

func (f *fakeCredits) GetHistory(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	return nil, nil
}

func (f *fakeCredits) Spend(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error) {
	return &models.CreditTransaction{}, nil
}

func (f *fakeCredits) Refund(ctx context.Context, userID string, amount int, description, referenceID, referenceType string) (*models.CreditTransaction, error) {
	return &models.CreditTransaction{}, nil
}

func (f *fakeCredits) ReserveEstimate(ctx context.Context, userID, videoID string) (*models.CreditTransaction, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.reserved[videoID] = true
	return &models.CreditTransaction{VideoID: videoID}, nil
}

func (f *fakeCredits) FinalizeEstimate(ctx context.Context, userID, videoID string, tokensUsed int) (int, error) {
	if f.finalizeErr != nil {
		return 0, f.finalizeErr
	}
	delete(f.reserved, videoID)
	f.finalized[videoID] = tokensUsed
	return f.charge, nil
}

func (f *fakeCredits) RefundEstimate(ctx context.Context, userID, videoID, referenceType string) error {
	if !f.reserved[videoID] {
		// Nothing outstanding; mirrors the double-refund guard.
		return nil
	}
	delete(f.reserved, videoID)
	f.refunds = append(f.refunds, referenceType)
	return nil
}

func (f *fakeCredits) CostForTokens(tokensUsed int) int { return f.charge }

func (f *fakeCredits) Grant(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error) {
	return &models.CreditTransaction{}, nil
}

func (f *fakeCredits) Deduct(ctx context.Context, userID string, amount int, description string) (*models.CreditTransaction, error) {
	return &models.CreditTransaction{}, nil
}

func (f *fakeCredits) DeductAll(ctx context.Context, amount int, description string) (int, error) {
	return 0, nil
}

type allowAllValidator struct{}

func (allowAllValidator) ValidateURL(url string) error {
	if url == "" {
		return errors.InvalidInput("test", nil, "URL is required")
	}
	return nil
}

func testDashboard() *models.Dashboard {
	return &models.Dashboard{
		Summary: models.Summary{Text: "A talk."},
		Insights: []models.InsightSection{
			{Title: "Key Insights", Icon: "x", Items: []models.InsightItem{{Text: "point"}}},
		},
		MindMap: models.MindMap{Root: "Talk", Branches: []models.MindMapBranch{{Label: "One"}}},
	}
}

type fixture struct {
	svc     Service
	videos  *fakeVideoRepo
	media   *fakeMedia
	insight *fakeInsight
	credits *fakeCredits
}

func newFixture() *fixture {
	f := &fixture{
		videos: newFakeVideoRepo(),
		media: &fakeMedia{
			downloadResult: &media.DownloadResult{
				VideoID:  "svc-1",
				Title:    "A talk",
				Duration: 300,
			},
			transcriptionJob: &media.TranscriptionJob{TranscriptionID: "tr-1", Status: media.StatusProcessing},
			statuses:         []*media.TranscriptionStatus{{Status: media.StatusProcessing}},
			pollText:         "hello transcript",
		},
		insight: &fakeInsight{result: &insight.Result{Dashboard: testDashboard(), TokensUsed: 1200}},
		credits: newFakeCredits(),
	}
	f.svc = NewService(f.videos, f.media, f.insight, f.credits, allowAllValidator{}, false, 0)
	return f
}

func (f *fixture) submit(t *testing.T) *models.Video {
	t.Helper()
	video, err := f.svc.Submit(context.Background(), &models.SubmitRequest{
		URL:    "https://example.com/watch?v=1",
		UserID: "u1",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return video
}

func TestSubmitReservesEstimate(t *testing.T) {
	f := newFixture()
	video := f.submit(t)

	if video.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", video.Status)
	}
	if !f.credits.reserved[video.ID] {
		t.Error("expected estimate reservation")
	}
	if _, err := f.videos.Find(context.Background(), video.ID); err != nil {
		t.Errorf("job not persisted: %v", err)
	}
}

func TestSubmitInsufficientCredits(t *testing.T) {
	f := newFixture()
	f.credits.reserveErr = errors.PaymentRequired("test", nil, "Insufficient credits")

	_, err := f.svc.Submit(context.Background(), &models.SubmitRequest{
		URL:    "https://example.com/v",
		UserID: "u1",
	})
	if err == nil {
		t.Fatal("expected payment-required error")
	}
	if len(f.videos.videos) != 0 {
		t.Error("no job should be persisted when the reservation fails")
	}
}

func TestSubmitInvalidURL(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Submit(context.Background(), &models.SubmitRequest{UserID: "u1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(f.credits.reserved) != 0 {
		t.Error("no credits should be touched for an invalid submission")
	}
}

func TestDownloadFailureRefunds(t *testing.T) {
	f := newFixture()
	f.media.downloadErr = errors.Internal("test", nil, "service unavailable")
	video := f.submit(t)

	if _, err := f.svc.ProcessDownload(context.Background(), video.ID); err == nil {
		t.Fatal("expected download error")
	}

	stored, _ := f.videos.Find(context.Background(), video.ID)
	if stored.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if stored.Error == "" {
		t.Error("expected an error message on the failed job")
	}
	if len(f.credits.refunds) != 1 || f.credits.refunds[0] != models.RefDownloadRefund {
		t.Errorf("refunds = %v, want [%s]", f.credits.refunds, models.RefDownloadRefund)
	}
}

func TestPipelineHappyPath(t *testing.T) {
	f := newFixture()
	video := f.submit(t)

	done, err := f.svc.ProcessAll(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}

	if done.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if done.Transcript != "hello transcript" {
		t.Errorf("transcript = %q", done.Transcript)
	}
	if done.Dashboard == nil {
		t.Error("expected a dashboard")
	}
	if done.TokensUsed != 1200 || done.CreditsCharged != 5 {
		t.Errorf("tokens/credits = %d/%d, want 1200/5", done.TokensUsed, done.CreditsCharged)
	}
	if f.credits.finalized[video.ID] != 1200 {
		t.Error("expected estimate finalization with the token count")
	}
	if len(f.credits.refunds) != 0 {
		t.Errorf("unexpected refunds: %v", f.credits.refunds)
	}
}

func TestStageTransitionsEnforced(t *testing.T) {
	f := newFixture()
	video := f.submit(t)

	// Transcription before download is an invalid transition.
	if _, err := f.svc.ProcessTranscription(context.Background(), video.ID); err == nil {
		t.Fatal("expected invalid transition error")
	}

	stored, _ := f.videos.Find(context.Background(), video.ID)
	if stored.Status != models.StatusPending {
		t.Errorf("status = %s, want pending (transition rejected without side effects)", stored.Status)
	}
}

func TestCheckCompletionStillProcessing(t *testing.T) {
	f := newFixture()
	video := f.submit(t)

	if _, err := f.svc.ProcessDownload(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ProcessTranscription(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}

	checked, err := f.svc.CheckCompletion(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("CheckCompletion() error = %v", err)
	}
	if checked.Status != models.StatusTranscribing {
		t.Errorf("status = %s, want transcribing (no mutation while processing)", checked.Status)
	}
}

func TestCheckCompletionIdempotent(t *testing.T) {
	f := newFixture()
	f.media.statuses = []*media.TranscriptionStatus{
		{Status: media.StatusCompleted, Text: "hello transcript"},
	}
	video := f.submit(t)

	if _, err := f.svc.ProcessDownload(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ProcessTranscription(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}

	first, err := f.svc.CheckCompletion(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("CheckCompletion() error = %v", err)
	}
	if first.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", first.Status)
	}

	// A repeated check returns the terminal job without touching the
	// insight engine or the ledger again.
	insightCalls := f.insight.calls
	second, err := f.svc.CheckCompletion(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("second CheckCompletion() error = %v", err)
	}
	if second.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", second.Status)
	}
	if f.insight.calls != insightCalls {
		t.Error("repeated check must not regenerate insights")
	}
}

func TestTranscriptionFailureRefunds(t *testing.T) {
	f := newFixture()
	f.media.statuses = []*media.TranscriptionStatus{{Status: media.StatusFailed}}
	video := f.submit(t)

	if _, err := f.svc.ProcessDownload(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ProcessTranscription(context.Background(), video.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CheckCompletion(context.Background(), video.ID); err == nil {
		t.Fatal("expected failure error")
	}

	stored, _ := f.videos.Find(context.Background(), video.ID)
	if stored.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if len(f.credits.refunds) != 1 || f.credits.refunds[0] != models.RefTranscriptionRefund {
		t.Errorf("refunds = %v, want [%s]", f.credits.refunds, models.RefTranscriptionRefund)
	}
}

func TestPollExhaustionFailsWithSingleRefund(t *testing.T) {
	f := newFixture()
	f.media.pollText = ""
	f.media.statuses = []*media.TranscriptionStatus{{Status: media.StatusProcessing}}
	video := f.submit(t)

	if _, err := f.svc.ProcessAll(context.Background(), video.ID); err == nil {
		t.Fatal("expected timeout failure")
	}

	stored, _ := f.videos.Find(context.Background(), video.ID)
	if stored.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if len(f.credits.refunds) != 1 {
		t.Errorf("refunds = %v, want exactly one", f.credits.refunds)
	}
}

func TestPollExhaustionRaceRecovers(t *testing.T) {
	// The poll gave up but the extra status check finds the transcription
	// finished; the job completes instead of failing.
	f := newFixture()
	f.media.pollText = ""
	f.media.statuses = []*media.TranscriptionStatus{
		{Status: media.StatusCompleted, Text: "late transcript"},
	}
	video := f.submit(t)

	done, err := f.svc.ProcessAll(context.Background(), video.ID)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if done.Transcript != "late transcript" {
		t.Errorf("transcript = %q", done.Transcript)
	}
}

func TestInsightFailureRefunds(t *testing.T) {
	f := newFixture()
	f.insight.err = errors.Internal("test", nil, "provider down")
	video := f.submit(t)

	if _, err := f.svc.ProcessAll(context.Background(), video.ID); err == nil {
		t.Fatal("expected insight failure")
	}

	stored, _ := f.videos.Find(context.Background(), video.ID)
	if stored.Status != models.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if len(f.credits.refunds) != 1 || f.credits.refunds[0] != models.RefInsightRefund {
		t.Errorf("refunds = %v, want [%s]", f.credits.refunds, models.RefInsightRefund)
	}
}

func TestListRequiresUser(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.List(context.Background(), "", "", 10, 0); err == nil {
		t.Fatal("expected error for missing user")
	}
}
