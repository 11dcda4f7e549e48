package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/animequotestudio/studio/internal/catalog"
	"github.com/animequotestudio/studio/internal/compose"
	"github.com/animequotestudio/studio/internal/database"
	"github.com/animequotestudio/studio/internal/ingest"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/internal/middleware"
	"github.com/animequotestudio/studio/internal/plan"
	"github.com/animequotestudio/studio/internal/tracing"
	"github.com/animequotestudio/studio/pkg/models"
)

const (
	quoteCacheTTL = 10 * time.Minute
	statsCacheTTL = time.Minute
	adminLockTTL  = 10 * time.Minute
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Search quotes endpoint
func (api *API) searchQuotes(c *gin.Context) {
	q := c.Query("q")
	limit := parseIntDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	quotes, err := api.repo.SearchQuotes(c.Request.Context(), q, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.QuoteSearchesTotal.Inc()
	c.JSON(http.StatusOK, gin.H{
		"quotes": quotes,
		"count":  len(quotes),
	})
}

// Random quote endpoint
func (api *API) randomQuote(c *gin.Context) {
	quote, err := api.repo.RandomQuote(c.Request.Context())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No quotes available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Get quote endpoint
func (api *API) getQuote(c *gin.Context) {
	quoteID, err := parseQuoteID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote id"})
		return
	}

	quote, err := api.loadQuote(c.Request.Context(), quoteID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Record view endpoint
func (api *API) recordView(c *gin.Context) {
	quoteID, err := parseQuoteID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote id"})
		return
	}

	if _, err := api.loadQuote(c.Request.Context(), quoteID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	userID, _ := middleware.GetUserID(c)
	api.ledger.RecordView(c.Request.Context(), quoteID, userID, c.Request.Referer())

	// Counter moved, cached copy is stale
	if api.cache != nil {
		api.cache.DeleteQuote(c.Request.Context(), quoteID)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// App stats endpoint
func (api *API) getStats(c *gin.Context) {
	ctx := c.Request.Context()

	if api.cache != nil {
		if stats, err := api.cache.GetStats(ctx); err == nil && stats != nil {
			c.JSON(http.StatusOK, stats)
			return
		}
	}

	stats, err := api.repo.GetAppStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if api.cache != nil {
		api.cache.SetStats(ctx, stats, statsCacheTTL)
	}

	c.JSON(http.StatusOK, stats)
}

// List plans endpoint
func (api *API) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plans":       plan.All(),
		"backgrounds": catalog.Backgrounds(),
		"fonts":       catalog.Fonts(),
	})
}

// Current user's plan endpoint
func (api *API) getMyPlan(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	profile, err := api.repo.GetUserProfile(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Missing profile resolves to the free tier
	p := plan.Resolve(profile)
	used, _ := api.ledger.DownloadsToday(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{
		"plan":            p,
		"downloads_today": used,
	})
}

// List favorites endpoint
func (api *API) listFavorites(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	ids, err := api.ledger.Favorites(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote_ids": ids})
}

// Add favorite endpoint
func (api *API) addFavorite(c *gin.Context) {
	api.toggleFavorite(c, true)
}

// Remove favorite endpoint
func (api *API) removeFavorite(c *gin.Context) {
	api.toggleFavorite(c, false)
}

func (api *API) toggleFavorite(c *gin.Context, want bool) {
	quoteID, err := parseQuoteID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote id"})
		return
	}

	userID, _ := middleware.GetUserID(c)
	if err := api.ledger.ToggleFavorite(c.Request.Context(), userID, quoteID, want); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote_id": quoteID, "favorited": want})
}

// Downloads today endpoint
func (api *API) getDownloadsToday(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	used, err := api.ledger.DownloadsToday(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads_today": used})
}

// Export quote endpoint
func (api *API) exportQuote(c *gin.Context) {
	start := time.Now()

	quoteID, err := parseQuoteID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quote id"})
		return
	}

	var req struct {
		BackgroundID int `json:"background_id"`
		FontID       int `json:"font_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.BackgroundID == 0 {
		req.BackgroundID = 1
	}
	if req.FontID == 0 {
		req.FontID = 1
	}

	userID, _ := middleware.GetUserID(c)
	ctx := c.Request.Context()

	profile, err := api.repo.GetUserProfile(ctx, userID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	p := plan.Resolve(profile)

	// Locked selections fail before any quota is consumed
	if !catalog.IsUnlocked(req.BackgroundID, catalog.KindBackground, p) {
		metrics.ExportsBlockedTotal.WithLabelValues("locked").Inc()
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":         "Upgrade required",
			"reason":        "background_locked",
			"background_id": req.BackgroundID,
			"plan":          p.Key,
		})
		return
	}
	if !catalog.IsUnlocked(req.FontID, catalog.KindFont, p) {
		metrics.ExportsBlockedTotal.WithLabelValues("locked").Inc()
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "Upgrade required",
			"reason":  "font_locked",
			"font_id": req.FontID,
			"plan":    p.Key,
		})
		return
	}

	used, ok := api.ledger.ReserveDownload(ctx, userID, p.DailyLimit)
	if !ok {
		metrics.ExportsBlockedTotal.WithLabelValues("quota").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":           dailyLimitMessage(p),
			"downloads_today": used,
			"daily_limit":     p.DailyLimit,
		})
		return
	}

	quote, err := api.loadQuote(ctx, quoteID)
	if err != nil {
		api.ledger.ReleaseDownload(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	bg := catalog.BackgroundByID(req.BackgroundID)
	fnt := catalog.FontByID(req.FontID)

	img, err := api.composer.Compose(quote, bg, fnt, p)
	if err != nil {
		api.ledger.ReleaseDownload(ctx, userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to render image: %v", err)})
		return
	}

	data, err := api.composer.EncodePNG(img)
	if err != nil {
		api.ledger.ReleaseDownload(ctx, userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to encode image: %v", err)})
		return
	}

	// Archive and counters are best-effort; the user already has the bytes
	if _, err := api.storage.UploadExport(ctx, userID, quoteID, data); err != nil {
		api.log.WithQuoteID(quoteID).ErrorWithErr("Failed to archive export", err)
	}
	api.ledger.RecordDownload(ctx, userID, quoteID, bg.Name, fnt.Name)
	if api.cache != nil {
		api.cache.DeleteQuote(ctx, quoteID)
	}

	metrics.ExportsTotal.WithLabelValues(string(p.Key)).Inc()
	metrics.ExportDuration.Observe(time.Since(start).Seconds())

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", compose.Filename(quoteID)))
	c.Data(http.StatusOK, "image/png", data)
}

// Admin ingest endpoint
func (api *API) runIngest(c *gin.Context) {
	ctx := c.Request.Context()

	if api.cache != nil {
		acquired, err := api.cache.AcquireLock(ctx, "ingest", adminLockTTL)
		if err == nil && !acquired {
			c.JSON(http.StatusConflict, gin.H{"error": "Ingest already running"})
			return
		}
		if err == nil {
			defer api.cache.ReleaseLock(ctx, "ingest")
		}
	}

	span, ctx := tracing.StartSpan(ctx, "ingest.run")
	defer tracing.FinishSpan(span)

	staged, err := api.ingestor.Run(ctx)
	if err != nil {
		tracing.LogError(span, err)
		var upstreamErr *ingest.UpstreamError
		if errors.As(err, &upstreamErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           "Upstream fetch failed",
				"upstream_status": upstreamErr.Status,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "staged": staged})
		return
	}

	tracing.SetTag(span, "staged", staged)
	c.JSON(http.StatusOK, gin.H{"ok": true, "staged": staged})
}

// Admin classify endpoint
func (api *API) runClassify(c *gin.Context) {
	ctx := c.Request.Context()

	if api.cfg.Classifier.APIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Classifier not configured"})
		return
	}

	if api.cache != nil {
		acquired, err := api.cache.AcquireLock(ctx, "classify", adminLockTTL)
		if err == nil && !acquired {
			c.JSON(http.StatusConflict, gin.H{"error": "Classification already running"})
			return
		}
		if err == nil {
			defer api.cache.ReleaseLock(ctx, "classify")
		}
	}

	span, ctx := tracing.StartSpan(ctx, "classify.run")
	defer tracing.FinishSpan(span)

	limit := parseIntDefault(c.Query("limit"), 0)
	report, err := api.classifier.ClassifyBatch(ctx, limit)
	if err != nil {
		tracing.LogError(span, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if report.Requested == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No untagged quotes."})
		return
	}

	tracing.SetTag(span, "labeled_total", report.LabeledTotal)
	c.JSON(http.StatusOK, report)
}

// loadQuote reads through the cache when one is configured
func (api *API) loadQuote(ctx context.Context, quoteID int64) (*models.Quote, error) {
	if api.cache != nil {
		if quote, err := api.cache.GetQuote(ctx, quoteID); err == nil && quote != nil {
			return quote, nil
		}
	}

	quote, err := api.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	if api.cache != nil {
		api.cache.SetQuote(ctx, quote, quoteCacheTTL)
	}
	return quote, nil
}

func dailyLimitMessage(p models.PlanDescriptor) string {
	switch p.Key {
	case models.PlanBasic:
		return fmt.Sprintf("Daily limit reached (%d/day). Upgrade to Pro for unlimited!", p.DailyLimit)
	default:
		return fmt.Sprintf("Daily limit reached (%d/day). Upgrade to Basic/Pro!", p.DailyLimit)
	}
}

func parseQuoteID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
