// Package ingest pulls quotes from the upstream public feed, normalizes
// and deduplicates them, and stages them for merge into the canonical
// quote store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/internal/database"
	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/pkg/models"
)

// StagingRepository is the persistence surface the ingestor needs
type StagingRepository interface {
	InsertStagingChunk(ctx context.Context, chunk []models.StagingQuote) error
	MergeStagingQuotes(ctx context.Context) (int, error)
}

// UpstreamError reports a non-2xx upstream response so the handler can
// surface the upstream status in a 502.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.Status)
}

// upstreamItem is one record of the upstream feed
type upstreamItem struct {
	ID        string `json:"_id"`
	Character string `json:"character"`
	Show      string `json:"show"`
	Quote     string `json:"quote"`
}

// Ingestor fetches, cleans and stages upstream quotes
type Ingestor struct {
	cfg    config.IngestConfig
	repo   StagingRepository
	client *http.Client
	log    *logging.Logger
}

// New creates an ingestor
func New(cfg config.IngestConfig, repo StagingRepository, log *logging.Logger) *Ingestor {
	return &Ingestor{
		cfg:  cfg,
		repo: repo,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// Run performs one ingestion: fetch, normalize, dedupe, stage in chunks,
// then merge. It returns the number of rows successfully staged even
// when a later step fails.
func (i *Ingestor) Run(ctx context.Context) (int, error) {
	start := time.Now()

	items, err := i.fetch(ctx)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("fetch_error").Inc()
		return 0, err
	}

	batch := i.normalize(items)
	deduped := dedupe(batch)

	staged, err := i.stage(ctx, deduped)
	metrics.IngestStagedTotal.Add(float64(staged))
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("stage_error").Inc()
		i.log.LogIngestRun(i.cfg.UpstreamURL, len(items), len(deduped), staged, time.Since(start), err)
		return staged, err
	}

	// Merge errors do not retroactively un-stage inserted rows; the
	// merge is idempotent and can be re-run.
	merged, err := i.repo.MergeStagingQuotes(ctx)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues("merge_error").Inc()
		i.log.LogIngestRun(i.cfg.UpstreamURL, len(items), len(deduped), staged, time.Since(start), err)
		return staged, fmt.Errorf("failed to merge staged quotes: %w", err)
	}

	metrics.IngestRunsTotal.WithLabelValues("ok").Inc()
	i.log.WithField("merged", merged).LogIngestRun(i.cfg.UpstreamURL, len(items), len(deduped), staged, time.Since(start), nil)
	return staged, nil
}

func (i *Ingestor) fetch(ctx context.Context) ([]upstreamItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.cfg.UpstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	var items []upstreamItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("unexpected upstream payload: %w", err)
	}

	return items, nil
}

// normalize cleans the free-text fields and drops incomplete records
func (i *Ingestor) normalize(items []upstreamItem) []models.StagingQuote {
	rows := make([]models.StagingQuote, 0, len(items))
	for _, it := range items {
		row := models.StagingQuote{
			QuoteText: Clean(it.Quote),
			Character: Clean(it.Character),
			Anime:     Clean(it.Show),
			Source:    i.cfg.Source,
			SourceID:  it.ID,
			SourceURL: i.cfg.UpstreamURL,
		}
		if row.QuoteText == "" || row.Character == "" || row.Anime == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// dedupe drops in-batch duplicates on the composite key; first wins
func dedupe(rows []models.StagingQuote) []models.StagingQuote {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := r.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// stage inserts the batch in fixed-size chunks. A duplicate-key error on
// a chunk is tolerated (the staging uniqueness index guards cross-run
// duplicates); any other error aborts, reporting the rows staged so far.
func (i *Ingestor) stage(ctx context.Context, rows []models.StagingQuote) (int, error) {
	staged := 0
	for start := 0; start < len(rows); start += i.cfg.ChunkSize {
		end := start + i.cfg.ChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		if err := i.repo.InsertStagingChunk(ctx, chunk); err != nil {
			if database.IsDuplicate(err) {
				i.log.WithError(err).Warn("staging chunk hit uniqueness constraint, continuing")
				continue
			}
			return staged, fmt.Errorf("failed to stage chunk: %w", err)
		}
		staged += len(chunk)
	}
	return staged, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	quoteCleaner = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Clean collapses whitespace runs, normalizes curly quotes to straight
// quotes, and trims.
func Clean(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = quoteCleaner.Replace(s)
	return strings.TrimSpace(s)
}
