package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animequotestudio/studio/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	host, portStr, found := strings.Cut(mr.Addr(), ":")
	require.True(t, found)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := NewCache(host, port, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestQuoteCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	quote := &models.Quote{ID: 7, QuoteText: "People die when they are killed.", CharacterName: "Shirou Emiya"}
	require.NoError(t, c.SetQuote(ctx, quote, time.Minute))

	got, err := c.GetQuote(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, quote.QuoteText, got.QuoteText)
}

func TestQuoteCacheMiss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetQuote(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteQuote(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetQuote(ctx, &models.Quote{ID: 9}, time.Minute))
	require.NoError(t, c.DeleteQuote(ctx, 9))

	got, err := c.GetQuote(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStatsCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	stats := &models.AppStats{TotalQuotes: 100, TotalViews: 5000, TotalDownloads: 250}
	require.NoError(t, c.SetStats(ctx, stats, time.Minute))

	got, err := c.GetStats(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5000), got.TotalViews)

	require.NoError(t, c.DeleteStats(ctx))
	got, err = c.GetStats(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReserveDownloadWithinLimit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		used, ok, err := c.ReserveDownload(ctx, "user-1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, used)
	}
}

func TestReserveDownloadOverLimitRollsBack(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok, err := c.ReserveDownload(ctx, "user-1", 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	used, ok, err := c.ReserveDownload(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, used)

	// A rejected reservation must not consume the counter
	count, err := c.DownloadsToday(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestReserveDownloadUnlimited(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, ok, err := c.ReserveDownload(ctx, "pro-user", models.Unlimited)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestReleaseDownload(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, _, err := c.ReserveDownload(ctx, "user-1", 3)
	require.NoError(t, err)
	require.NoError(t, c.ReleaseDownload(ctx, "user-1"))

	count, err := c.DownloadsToday(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDownloadCounterExpiresAtMidnight(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	fixed := time.Date(2025, 6, 15, 23, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	mr.SetTime(fixed)

	_, _, err := c.ReserveDownload(ctx, "user-1", 3)
	require.NoError(t, err)

	key := "downloads:user-1:2025-06-15"
	assert.True(t, mr.Exists(key))

	// One hour past midnight the counter is gone
	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(key))
}

func TestDownloadCounterIsPerDay(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	day1 := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return day1 }

	for i := 0; i < 3; i++ {
		_, ok, err := c.ReserveDownload(ctx, "user-1", 3)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Next day keys a fresh counter even if the old one lingers
	c.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	used, ok, err := c.ReserveDownload(ctx, "user-1", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, used)
}

func TestDownloadsTodayEmpty(t *testing.T) {
	c, _ := newTestCache(t)

	count, err := c.DownloadsToday(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAcquireLock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	acquired, err := c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, c.ReleaseLock(ctx, "ingest"))
	acquired, err = c.AcquireLock(ctx, "ingest", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
