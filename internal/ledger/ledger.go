// Package ledger tracks usage: view and download counters, the daily
// download cap, and favorites. Counter writes are best-effort telemetry;
// only the cap reservation can block a download.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/pkg/models"
)

// Repository is the persistence surface the ledger needs
type Repository interface {
	RecordView(ctx context.Context, quoteID int64, userID, referrer string) error
	RecordDownload(ctx context.Context, userID string, quoteID int64, backgroundName, fontName string) error
	DownloadsToday(ctx context.Context, userID string) (int, error)
	AddFavorite(ctx context.Context, userID string, quoteID int64) error
	RemoveFavorite(ctx context.Context, userID string, quoteID int64) error
	ListFavoriteIDs(ctx context.Context, userID string) ([]int64, error)
}

// Counters is the atomic daily-counter surface, backed by Redis
type Counters interface {
	ReserveDownload(ctx context.Context, userID string, limit int) (int, bool, error)
	ReleaseDownload(ctx context.Context, userID string) error
	DownloadsToday(ctx context.Context, userID string) (int, error)
}

// EventPublisher publishes usage events for the stats aggregator
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.StatsEvent) error
}

// Ledger coordinates counters, quota and favorites
type Ledger struct {
	repo     Repository
	counters Counters
	events   EventPublisher
	log      *logging.Logger
}

// New creates a ledger. counters and events may be nil; the ledger then
// degrades to advisory DB counts and skips event publishing.
func New(repo Repository, counters Counters, events EventPublisher, log *logging.Logger) *Ledger {
	return &Ledger{repo: repo, counters: counters, events: events, log: log}
}

// RecordView bumps a quote's view counter. Failures are logged, never
// surfaced: views are best-effort telemetry.
func (l *Ledger) RecordView(ctx context.Context, quoteID int64, userID, referrer string) {
	if err := l.repo.RecordView(ctx, quoteID, userID, referrer); err != nil {
		l.log.WithQuoteID(quoteID).ErrorWithErr("failed to record view", err)
		return
	}
	metrics.QuoteViewsTotal.Inc()

	l.publish(ctx, &models.StatsEvent{
		ID:        uuid.New().String(),
		Type:      models.EventTypeView,
		QuoteID:   quoteID,
		UserID:    userID,
		Referrer:  referrer,
		Timestamp: time.Now().UTC(),
	})
}

// ReserveDownload atomically claims one download slot against the daily
// cap. When the counter backend is unavailable it degrades to the
// advisory read-then-act check against the database.
func (l *Ledger) ReserveDownload(ctx context.Context, userID string, limit int) (used int, ok bool) {
	if limit == models.Unlimited {
		limit = -1
	}

	if l.counters != nil {
		used, ok, err := l.counters.ReserveDownload(ctx, userID, limit)
		if err == nil {
			return used, ok
		}
		l.log.WithUserID(userID).ErrorWithErr("counter backend unavailable, falling back to advisory check", err)
	}

	used, err := l.repo.DownloadsToday(ctx, userID)
	if err != nil {
		l.log.WithUserID(userID).ErrorWithErr("failed to count downloads today", err)
		// Quota is advisory; do not block the download on a read failure
		return 0, true
	}
	if limit >= 0 && used >= limit {
		return used, false
	}
	return used, true
}

// ReleaseDownload returns a reserved slot after a failed composition
func (l *Ledger) ReleaseDownload(ctx context.Context, userID string) {
	if l.counters == nil {
		return
	}
	if err := l.counters.ReleaseDownload(ctx, userID); err != nil {
		l.log.WithUserID(userID).ErrorWithErr("failed to release download slot", err)
	}
}

// RecordDownload persists a successful download with the chosen styles.
// Called only after compose succeeds; failures are logged, not surfaced.
func (l *Ledger) RecordDownload(ctx context.Context, userID string, quoteID int64, backgroundName, fontName string) {
	if err := l.repo.RecordDownload(ctx, userID, quoteID, backgroundName, fontName); err != nil {
		l.log.WithUserID(userID).WithQuoteID(quoteID).ErrorWithErr("failed to record download", err)
		return
	}

	l.publish(ctx, &models.StatsEvent{
		ID:         uuid.New().String(),
		Type:       models.EventTypeDownload,
		QuoteID:    quoteID,
		UserID:     userID,
		Background: backgroundName,
		Font:       fontName,
		Timestamp:  time.Now().UTC(),
	})
}

// DownloadsToday reports how many downloads the user has made today,
// preferring the atomic counter over the database count.
func (l *Ledger) DownloadsToday(ctx context.Context, userID string) (int, error) {
	if l.counters != nil {
		if count, err := l.counters.DownloadsToday(ctx, userID); err == nil {
			return count, nil
		}
	}
	return l.repo.DownloadsToday(ctx, userID)
}

// ToggleFavorite sets the favorite state by presence or absence of the
// (user, quote) pair.
func (l *Ledger) ToggleFavorite(ctx context.Context, userID string, quoteID int64, want bool) error {
	if want {
		return l.repo.AddFavorite(ctx, userID, quoteID)
	}
	return l.repo.RemoveFavorite(ctx, userID, quoteID)
}

// Favorites lists the quote ids the user has favorited
func (l *Ledger) Favorites(ctx context.Context, userID string) ([]int64, error) {
	return l.repo.ListFavoriteIDs(ctx, userID)
}

func (l *Ledger) publish(ctx context.Context, event *models.StatsEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishEvent(ctx, event); err != nil {
		l.log.ErrorWithErr("failed to publish stats event", err)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(event.Type).Inc()
}
