package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animequotestudio/studio/internal/compose"
	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/internal/database"
	"github.com/animequotestudio/studio/internal/ingest"
	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/middleware"
	"github.com/animequotestudio/studio/internal/plan"
	"github.com/animequotestudio/studio/pkg/models"
)

type fakeRepo struct {
	quote       *models.Quote
	quoteErr    error
	profile     *models.UserProfile
	searchLimit int
}

func (f *fakeRepo) Health(ctx context.Context) error { return nil }

func (f *fakeRepo) GetQuote(ctx context.Context, id int64) (*models.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeRepo) SearchQuotes(ctx context.Context, q string, limit int) ([]*models.Quote, error) {
	f.searchLimit = limit
	return nil, nil
}

func (f *fakeRepo) RandomQuote(ctx context.Context) (*models.Quote, error) {
	return f.GetQuote(ctx, 0)
}

func (f *fakeRepo) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if f.profile == nil {
		return nil, database.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeRepo) GetAppStats(ctx context.Context) (*models.AppStats, error) {
	return &models.AppStats{}, nil
}

type fakeLedger struct {
	reserveUsed  int
	reserveOK    bool
	reserveCalls int
	releaseCalls int
	downloads    int
}

func (f *fakeLedger) RecordView(ctx context.Context, quoteID int64, userID, referrer string) {}

func (f *fakeLedger) ReserveDownload(ctx context.Context, userID string, limit int) (int, bool) {
	f.reserveCalls++
	return f.reserveUsed, f.reserveOK
}

func (f *fakeLedger) ReleaseDownload(ctx context.Context, userID string) { f.releaseCalls++ }

func (f *fakeLedger) RecordDownload(ctx context.Context, userID string, quoteID int64, backgroundName, fontName string) {
	f.downloads++
}

func (f *fakeLedger) DownloadsToday(ctx context.Context, userID string) (int, error) {
	return f.reserveUsed, nil
}

func (f *fakeLedger) ToggleFavorite(ctx context.Context, userID string, quoteID int64, want bool) error {
	return nil
}

func (f *fakeLedger) Favorites(ctx context.Context, userID string) ([]int64, error) {
	return nil, nil
}

type fakeStore struct {
	uploads int
}

func (f *fakeStore) UploadExport(ctx context.Context, userID string, quoteID int64, data []byte) (string, error) {
	f.uploads++
	return "exports/test.png", nil
}

type fakeIngestor struct {
	staged int
	err    error
}

func (f *fakeIngestor) Run(ctx context.Context) (int, error) { return f.staged, f.err }

type fakeClassifier struct {
	report *models.ClassifyReport
	err    error
}

func (f *fakeClassifier) ClassifyBatch(ctx context.Context, limit int) (*models.ClassifyReport, error) {
	return f.report, f.err
}

func testStudioConfig() config.StudioConfig {
	return config.StudioConfig{
		CanvasWidth:   1200,
		CanvasHeight:  630,
		MarginX:       120,
		MaxFontSize:   56,
		MinFontSize:   26,
		FontSizeStep:  2,
		MaxLines:      4,
		LineSpacing:   14,
		WatermarkText: "AnimeQuoteStudio.com",
	}
}

func newTestAPI(t *testing.T, repo *fakeRepo, led *fakeLedger) (*API, *fakeStore) {
	t.Helper()

	logger, err := logging.NewConsoleLogger()
	require.NoError(t, err)

	composer, err := compose.NewComposer(testStudioConfig())
	require.NoError(t, err)

	store := &fakeStore{}
	api := &API{
		cfg:      &config.Config{},
		repo:     repo,
		storage:  store,
		ledger:   led,
		composer: composer,
		log:      logger,
	}
	api.cfg.Classifier.APIKey = "test-key"
	return api, store
}

func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AuthContextKey, userID)
		c.Next()
	}
}

func exportRequest(t *testing.T, api *API, quoteID, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v1/quotes/:id/export", asUser("user-1"), api.exportQuote)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/"+quoteID+"/export", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExportQuoteLockedSelection(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"background beyond free tier", `{"background_id": 5, "font_id": 1}`, "background_locked"},
		{"font beyond free tier", `{"background_id": 1, "font_id": 2}`, "font_locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := &fakeLedger{reserveOK: true}
			api, _ := newTestAPI(t, &fakeRepo{quote: &models.Quote{ID: 7, QuoteText: "text"}}, led)

			w := exportRequest(t, api, "7", tt.body)

			assert.Equal(t, http.StatusPaymentRequired, w.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Upgrade required", resp["error"])
			assert.Equal(t, tt.reason, resp["reason"])
			assert.Equal(t, 0, led.reserveCalls, "locked selections must not touch the quota")
		})
	}
}

func TestExportQuoteQuotaExhausted(t *testing.T) {
	led := &fakeLedger{reserveUsed: 3, reserveOK: false}
	api, _ := newTestAPI(t, &fakeRepo{quote: &models.Quote{ID: 7, QuoteText: "text"}}, led)

	w := exportRequest(t, api, "7", `{"background_id": 1, "font_id": 1}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dailyLimitMessage(plan.ForKey(models.PlanFree)), resp["error"])
	assert.Equal(t, float64(3), resp["downloads_today"])
	assert.Equal(t, float64(3), resp["daily_limit"])
	assert.Equal(t, 0, led.releaseCalls, "nothing was reserved, nothing to roll back")
}

func TestExportQuoteReleasesSlotWhenQuoteMissing(t *testing.T) {
	led := &fakeLedger{reserveOK: true}
	api, _ := newTestAPI(t, &fakeRepo{quoteErr: database.ErrNotFound}, led)

	w := exportRequest(t, api, "7", `{"background_id": 1, "font_id": 1}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, led.reserveCalls)
	assert.Equal(t, 1, led.releaseCalls, "the reserved slot must be rolled back")
}

func TestExportQuoteSuccess(t *testing.T) {
	led := &fakeLedger{reserveOK: true}
	repo := &fakeRepo{
		quote:   &models.Quote{ID: 7, QuoteText: "Believe in yourself.", CharacterName: "Kamina", AnimeTitle: "Gurren Lagann"},
		profile: &models.UserProfile{ID: "user-1", SubscriptionTier: models.PlanBasic},
	}
	api, store := newTestAPI(t, repo, led)

	w := exportRequest(t, api, "7", `{"background_id": 3, "font_id": 2}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=quote-7.png", w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, 1, led.downloads)
	assert.Equal(t, 0, led.releaseCalls)
}

func adminRequest(t *testing.T, api *API, path string, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST(path, handler)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunIngestUpstreamFailure(t *testing.T) {
	api, _ := newTestAPI(t, &fakeRepo{}, &fakeLedger{})
	api.ingestor = &fakeIngestor{err: &ingest.UpstreamError{Status: 503}}

	w := adminRequest(t, api, "/api/v1/admin/ingest", api.runIngest)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Upstream fetch failed", resp["error"])
	assert.Equal(t, float64(503), resp["upstream_status"])
}

func TestRunIngestSuccess(t *testing.T) {
	api, _ := newTestAPI(t, &fakeRepo{}, &fakeLedger{})
	api.ingestor = &fakeIngestor{staged: 120}

	w := adminRequest(t, api, "/api/v1/admin/ingest", api.runIngest)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, float64(120), resp["staged"])
}

func TestRunClassifyNoUntagged(t *testing.T) {
	api, _ := newTestAPI(t, &fakeRepo{}, &fakeLedger{})
	api.classifier = &fakeClassifier{report: &models.ClassifyReport{Threshold: 0.55}}

	w := adminRequest(t, api, "/api/v1/admin/classify", api.runClassify)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "No untagged quotes.", resp["message"])
}

func TestRunClassifyReport(t *testing.T) {
	api, _ := newTestAPI(t, &fakeRepo{}, &fakeLedger{})
	api.classifier = &fakeClassifier{report: &models.ClassifyReport{
		Requested:        10,
		LabeledTotal:     9,
		LabeledConfident: 7,
		Threshold:        0.55,
	}}

	w := adminRequest(t, api, "/api/v1/admin/classify", api.runClassify)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.ClassifyReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Requested)
	assert.Equal(t, 7, resp.LabeledConfident)
}

func TestRunClassifyUnconfigured(t *testing.T) {
	api, _ := newTestAPI(t, &fakeRepo{}, &fakeLedger{})
	api.cfg.Classifier.APIKey = ""
	api.classifier = &fakeClassifier{report: &models.ClassifyReport{}}

	w := adminRequest(t, api, "/api/v1/admin/classify", api.runClassify)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Classifier not configured", resp["error"])
}

func TestSearchQuotesLimitClamping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRepo{}
	api, _ := newTestAPI(t, repo, &fakeLedger{})

	router := gin.New()
	router.GET("/api/v1/quotes/search", api.searchQuotes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes/search?q=hope&limit=500", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, repo.searchLimit)
}

func TestDailyLimitMessage(t *testing.T) {
	free := dailyLimitMessage(plan.ForKey(models.PlanFree))
	assert.Equal(t, "Daily limit reached (3/day). Upgrade to Basic/Pro!", free)

	basic := dailyLimitMessage(plan.ForKey(models.PlanBasic))
	assert.Equal(t, "Daily limit reached (20/day). Upgrade to Pro for unlimited!", basic)
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 20, parseIntDefault("", 20))
	assert.Equal(t, 20, parseIntDefault("abc", 20))
	assert.Equal(t, 50, parseIntDefault("50", 20))
	assert.Equal(t, -1, parseIntDefault("-1", 20))
}
