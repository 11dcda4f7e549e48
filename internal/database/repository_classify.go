package database

import (
	"context"
	"fmt"

	"github.com/animequotestudio/studio/pkg/models"
)

// UntaggedQuotes retrieves up to limit approved quotes with no emotion
// label, ordered by id ascending so repeated runs page deterministically.
func (r *Repository) UntaggedQuotes(ctx context.Context, limit int) ([]*models.Quote, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM quotes
		WHERE emotion IS NULL AND status = $1
		ORDER BY id ASC
		LIMIT $2
	`, quoteColumns)

	rows, err := r.db.Pool.Query(ctx, query, models.QuoteStatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch untagged quotes: %w", err)
	}
	defer rows.Close()

	return collectQuotes(rows)
}

// BulkUpdateEmotions persists confident classification results, keyed by
// quote id. The whole batch commits or none of it does.
func (r *Repository) BulkUpdateEmotions(ctx context.Context, updates []models.EmotionUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin emotion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, u := range updates {
		_, err := tx.Exec(ctx, `
			UPDATE quotes
			SET emotion = $2, emotion_confidence = $3, emotion_model = $4, updated_at = now()
			WHERE id = $1
		`, u.ID, u.Emotion, u.Confidence, u.Model)
		if err != nil {
			return fmt.Errorf("failed to update emotion for quote %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit emotion updates: %w", err)
	}

	return nil
}
