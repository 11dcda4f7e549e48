// Package stats folds view and download events from the queue into the
// aggregate counters served by the API.
package stats

import (
	"context"
	"fmt"

	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/pkg/models"
)

// EventRepository applies a single stats event to the aggregate row.
type EventRepository interface {
	ApplyStatsEvent(ctx context.Context, event *models.StatsEvent) error
}

// StatsCache invalidates the cached aggregate after a write.
type StatsCache interface {
	DeleteStats(ctx context.Context) error
}

// Aggregator is the worker-side event handler. Each event is applied
// to the database and the cached stats snapshot is dropped so the next
// read recomputes it.
type Aggregator struct {
	repo  EventRepository
	cache StatsCache
	log   *logging.Logger
}

func NewAggregator(repo EventRepository, cache StatsCache, log *logging.Logger) *Aggregator {
	return &Aggregator{repo: repo, cache: cache, log: log}
}

// Handle processes one event. A returned error sends the delivery to
// the dead letter queue.
func (a *Aggregator) Handle(event *models.StatsEvent) error {
	ctx := context.Background()

	if event.Type != models.EventTypeView && event.Type != models.EventTypeDownload {
		metrics.EventsConsumedTotal.WithLabelValues(event.Type, "rejected").Inc()
		return fmt.Errorf("unknown stats event type: %s", event.Type)
	}

	if err := a.repo.ApplyStatsEvent(ctx, event); err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(event.Type, "error").Inc()
		a.log.WithQuoteID(event.QuoteID).ErrorWithErr("Failed to apply stats event", err)
		return fmt.Errorf("failed to apply stats event %s: %w", event.ID, err)
	}

	if a.cache != nil {
		if err := a.cache.DeleteStats(ctx); err != nil {
			// Stale cache heals on its own TTL; not worth a redelivery.
			a.log.WithError(err).Warn("Failed to invalidate stats cache")
		}
	}

	metrics.EventsConsumedTotal.WithLabelValues(event.Type, "ok").Inc()
	return nil
}
