package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/animequotestudio/studio/pkg/models"
)

// ErrDuplicate marks inserts rejected by a uniqueness constraint. The
// staging table carries a unique index on (quote_text, character, anime)
// to guard cross-run duplicates; callers tolerate this error.
var ErrDuplicate = errors.New("duplicate key")

// IsDuplicate reports whether an error is a uniqueness violation
func IsDuplicate(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// InsertStagingChunk inserts one chunk of staged quotes. A uniqueness
// violation anywhere in the chunk surfaces as ErrDuplicate.
func (r *Repository) InsertStagingChunk(ctx context.Context, chunk []models.StagingQuote) error {
	if len(chunk) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin staging tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range chunk {
		_, err := tx.Exec(ctx, `
			INSERT INTO staging_quotes (quote_text, character, anime, source, source_id, source_url)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row.QuoteText, row.Character, row.Anime, row.Source, row.SourceID, row.SourceURL)
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("staging insert: %w", ErrDuplicate)
			}
			return fmt.Errorf("failed to insert staging row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit staging chunk: %w", err)
	}

	return nil
}

// MergeStagingQuotes promotes staged rows into the canonical quote store
// and clears the staging table. Already-merged quotes are skipped by the
// conflict clause, so re-running after a partial failure is safe.
func (r *Repository) MergeStagingQuotes(ctx context.Context) (int, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO quotes (quote_text, character_name, anime_title, status, source, source_id, source_url)
		SELECT quote_text, character, anime, $1, source, source_id, source_url
		FROM staging_quotes
		ON CONFLICT (quote_text, character_name, anime_title) DO NOTHING
	`, models.QuoteStatusApproved)
	if err != nil {
		return 0, fmt.Errorf("failed to merge staging quotes: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM staging_quotes`); err != nil {
		return 0, fmt.Errorf("failed to clear staging quotes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit merge: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
