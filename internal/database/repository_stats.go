package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/animequotestudio/studio/pkg/models"
)

// GetAppStats reads the aggregate stats row, falling back to counting
// the quotes table when the row has not been seeded yet.
func (r *Repository) GetAppStats(ctx context.Context) (*models.AppStats, error) {
	var s models.AppStats

	err := r.db.Pool.QueryRow(ctx, `
		SELECT total_quotes, total_views, total_downloads, updated_at
		FROM app_stats
		WHERE id = 1
	`).Scan(&s.TotalQuotes, &s.TotalViews, &s.TotalDownloads, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return r.computeAppStats(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app stats: %w", err)
	}

	return &s, nil
}

func (r *Repository) computeAppStats(ctx context.Context) (*models.AppStats, error) {
	var s models.AppStats

	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(view_count), 0), COALESCE(SUM(download_count), 0), now()
		FROM quotes
		WHERE status = $1
	`, models.QuoteStatusApproved).Scan(&s.TotalQuotes, &s.TotalViews, &s.TotalDownloads, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to compute app stats: %w", err)
	}

	return &s, nil
}

// ApplyStatsEvent folds one usage event into the aggregate stats row
func (r *Repository) ApplyStatsEvent(ctx context.Context, event *models.StatsEvent) error {
	var views, downloads int
	switch event.Type {
	case models.EventTypeView:
		views = 1
	case models.EventTypeDownload:
		downloads = 1
	default:
		return fmt.Errorf("unknown stats event type %q", event.Type)
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO app_stats (id, total_quotes, total_views, total_downloads, updated_at)
		VALUES (1, (SELECT COUNT(*) FROM quotes WHERE status = 'approved'), $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET total_views = app_stats.total_views + $1,
		    total_downloads = app_stats.total_downloads + $2,
		    updated_at = now()
	`, views, downloads)
	if err != nil {
		return fmt.Errorf("failed to apply stats event: %w", err)
	}

	return nil
}

// RefreshQuoteCount re-derives the aggregate quote count after a merge
func (r *Repository) RefreshQuoteCount(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE app_stats
		SET total_quotes = (SELECT COUNT(*) FROM quotes WHERE status = 'approved'),
		    updated_at = now()
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("failed to refresh quote count: %w", err)
	}

	return nil
}
