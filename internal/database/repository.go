package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/animequotestudio/studio/pkg/models"
)

// ErrNotFound marks lookups for rows that do not exist
var ErrNotFound = errors.New("not found")

const quoteColumns = `id, quote_text, character_name, anime_title, episode_number,
       emotion, emotion_confidence, emotion_model, view_count, download_count,
       status, created_at, updated_at`

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying pool
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Quotes

// GetQuote retrieves an approved quote by ID
func (r *Repository) GetQuote(ctx context.Context, id int64) (*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotes
		WHERE id = $1 AND status = $2
	`, quoteColumns)

	quote, err := scanQuote(r.db.Pool.QueryRow(ctx, query, id, models.QuoteStatusApproved))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("quote %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	return quote, nil
}

// SearchQuotes searches approved quotes by text, character, or anime
// title. An empty query lists the most viewed quotes.
func (r *Repository) SearchQuotes(ctx context.Context, q string, limit int) ([]*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotes
		WHERE status = $1
		  AND ($2 = '' OR quote_text ILIKE '%%' || $2 || '%%'
		       OR character_name ILIKE '%%' || $2 || '%%'
		       OR anime_title ILIKE '%%' || $2 || '%%')
		ORDER BY view_count DESC, id ASC
		LIMIT $3
	`, quoteColumns)

	rows, err := r.db.Pool.Query(ctx, query, models.QuoteStatusApproved, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search quotes: %w", err)
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// RandomQuote retrieves one random approved quote
func (r *Repository) RandomQuote(ctx context.Context) (*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotes
		WHERE status = $1
		ORDER BY random()
		LIMIT 1
	`, quoteColumns)

	quote, err := scanQuote(r.db.Pool.QueryRow(ctx, query, models.QuoteStatusApproved))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("random quote: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get random quote: %w", err)
	}

	return quote, nil
}

// Counters

// RecordView increments a quote's view counter and logs the view event
func (r *Repository) RecordView(ctx context.Context, quoteID int64, userID, referrer string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin view tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE quotes SET view_count = view_count + 1 WHERE id = $1`, quoteID)
	if err != nil {
		return fmt.Errorf("failed to bump view count: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO quote_views (quote_id, user_id, referrer, viewed_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), now())
	`, quoteID, userID, referrer)
	if err != nil {
		return fmt.Errorf("failed to insert view event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit view: %w", err)
	}

	return nil
}

// RecordDownload increments counters and logs the download with the
// chosen background and font styles.
func (r *Repository) RecordDownload(ctx context.Context, userID string, quoteID int64, backgroundName, fontName string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin download tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `UPDATE quotes SET download_count = download_count + 1 WHERE id = $1`, quoteID)
	if err != nil {
		return fmt.Errorf("failed to bump download count: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_downloads (user_id, quote_id, background_style, font_style, downloaded_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), now())
	`, userID, quoteID, backgroundName, fontName)
	if err != nil {
		return fmt.Errorf("failed to insert download event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_profiles SET downloads_today = downloads_today + 1, updated_at = now()
		WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to bump downloads today: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit download: %w", err)
	}

	return nil
}

// DownloadsToday counts a user's downloads since UTC midnight
func (r *Repository) DownloadsToday(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM user_downloads
		WHERE user_id = $1 AND downloaded_at >= date_trunc('day', now() AT TIME ZONE 'utc')
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads today: %w", err)
	}

	return count, nil
}

// Profiles and favorites

// GetUserProfile retrieves a user profile by ID
func (r *Repository) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile

	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, email, subscription_tier, downloads_today, is_active, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`, userID).Scan(
		&p.ID, &p.Email, &p.SubscriptionTier, &p.DownloadsToday,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// ListFavoriteIDs retrieves the quote ids a user has favorited
func (r *Repository) ListFavoriteIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT quote_id FROM user_favorites WHERE user_id = $1 ORDER BY quote_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// AddFavorite marks a quote as favorited; re-adding is a no-op
func (r *Repository) AddFavorite(ctx context.Context, userID string, quoteID int64) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO user_favorites (user_id, quote_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, quote_id) DO NOTHING
	`, userID, quoteID)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

// RemoveFavorite removes a favorite; removing a non-favorite is a no-op
func (r *Repository) RemoveFavorite(ctx context.Context, userID string, quoteID int64) error {
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM user_favorites WHERE user_id = $1 AND quote_id = $2
	`, userID, quoteID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	return nil
}

func scanQuote(row pgx.Row) (*models.Quote, error) {
	var q models.Quote
	err := row.Scan(
		&q.ID, &q.QuoteText, &q.CharacterName, &q.AnimeTitle, &q.EpisodeNumber,
		&q.Emotion, &q.EmotionConfidence, &q.EmotionModel, &q.ViewCount, &q.DownloadCount,
		&q.Status, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func collectQuotes(rows pgx.Rows) ([]*models.Quote, error) {
	var quotes []*models.Quote
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}
