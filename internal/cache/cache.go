package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/animequotestudio/studio/pkg/models"
)

const statsKey = "stats:app"

// Cache provides caching and daily quota counters using Redis
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, now: time.Now}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Quote Cache Operations

// SetQuote caches a quote
func (c *Cache) SetQuote(ctx context.Context, quote *models.Quote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	key := fmt.Sprintf("quote:%d", quote.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetQuote retrieves a quote from cache
func (c *Cache) GetQuote(ctx context.Context, quoteID int64) (*models.Quote, error) {
	key := fmt.Sprintf("quote:%d", quoteID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get quote from cache: %w", err)
	}

	var quote models.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}

	return &quote, nil
}

// DeleteQuote removes a quote from cache
func (c *Cache) DeleteQuote(ctx context.Context, quoteID int64) error {
	key := fmt.Sprintf("quote:%d", quoteID)
	return c.client.Del(ctx, key).Err()
}

// Stats Cache Operations

// SetStats caches the aggregate stats row
func (c *Cache) SetStats(ctx context.Context, stats *models.AppStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	return c.client.Set(ctx, statsKey, data, ttl).Err()
}

// GetStats retrieves the aggregate stats row from cache
func (c *Cache) GetStats(ctx context.Context) (*models.AppStats, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get stats from cache: %w", err)
	}

	var stats models.AppStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	return &stats, nil
}

// DeleteStats invalidates the cached stats row
func (c *Cache) DeleteStats(ctx context.Context) error {
	return c.client.Del(ctx, statsKey).Err()
}

// Daily Download Counters
//
// The daily cap is enforced with an atomic INCR-based reservation keyed
// by user and UTC day, so two concurrent downloads cannot both pass a
// read-then-act check. The counter expires at the next UTC midnight.

// ReserveDownload atomically reserves one download slot. It returns the
// count used today after the reservation and whether it fit the limit;
// a reservation over the limit is rolled back. A negative limit means
// unbounded.
func (c *Cache) ReserveDownload(ctx context.Context, userID string, limit int) (int, bool, error) {
	key := c.downloadKey(userID)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve download: %w", err)
	}

	// Set expiry on first reservation of the day
	if count == 1 {
		if err := c.client.ExpireAt(ctx, key, c.nextMidnightUTC()).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}

	if limit >= 0 && int(count) > limit {
		if err := c.client.Decr(ctx, key).Err(); err != nil {
			return 0, false, fmt.Errorf("failed to roll back reservation: %w", err)
		}
		return limit, false, nil
	}

	return int(count), true, nil
}

// ReleaseDownload returns a reserved slot, used when composition fails
// after the reservation succeeded.
func (c *Cache) ReleaseDownload(ctx context.Context, userID string) error {
	return c.client.Decr(ctx, c.downloadKey(userID)).Err()
}

// DownloadsToday reads the counter without reserving
func (c *Cache) DownloadsToday(ctx context.Context, userID string) (int, error) {
	count, err := c.client.Get(ctx, c.downloadKey(userID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read download counter: %w", err)
	}
	return count, nil
}

func (c *Cache) downloadKey(userID string) string {
	return fmt.Sprintf("downloads:%s:%s", userID, c.now().UTC().Format("2006-01-02"))
}

func (c *Cache) nextMidnightUTC() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Locking Operations

// AcquireLock attempts to acquire a lock so overlapping admin runs of
// ingestion or classification do not interleave.
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
