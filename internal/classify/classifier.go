// Package classify assigns a single primary emotion label to approved
// quotes that have not been tagged yet, using a chat model forced into
// strict JSON output.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/animequotestudio/studio/internal/config"
	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/internal/metrics"
	"github.com/animequotestudio/studio/pkg/models"
)

// EmotionLabels is the closed label set. Anything the model emits
// outside this set is discarded.
var EmotionLabels = []string{
	"hope",
	"courage",
	"determination",
	"love",
	"friendship",
	"wisdom",
	"sorrow",
	"anger",
	"fear",
}

var labelSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EmotionLabels))
	for _, l := range EmotionLabels {
		m[l] = struct{}{}
	}
	return m
}()

// TaggingRepository is the persistence surface the classifier needs.
type TaggingRepository interface {
	UntaggedQuotes(ctx context.Context, limit int) ([]*models.Quote, error)
	BulkUpdateEmotions(ctx context.Context, updates []models.EmotionUpdate) error
}

// Completer produces a JSON content string for a system+user prompt.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// Classifier pulls untagged quotes, labels them in sub-batches and
// persists only the confident results.
type Classifier struct {
	cfg  config.ClassifierConfig
	repo TaggingRepository
	chat Completer
	log  *logging.Logger
}

func NewClassifier(cfg config.ClassifierConfig, repo TaggingRepository, chat Completer, log *logging.Logger) *Classifier {
	return &Classifier{cfg: cfg, repo: repo, chat: chat, log: log}
}

type promptItem struct {
	I    int    `json:"i"`
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type modelItem struct {
	I          int         `json:"i"`
	Emotion    string      `json:"emotion"`
	Confidence interface{} `json:"confidence"`
}

type modelOutput struct {
	Items []modelItem `json:"items"`
}

// ClassifyBatch labels up to limit untagged quotes. A zero limit means
// the configured default; anything else clamps to [1, MaxLimit]. The
// returned report counts every valid label the model produced and the
// subset that cleared the confidence threshold.
func (c *Classifier) ClassifyBatch(ctx context.Context, limit int) (*models.ClassifyReport, error) {
	if limit == 0 {
		limit = c.cfg.DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > c.cfg.MaxLimit {
		limit = c.cfg.MaxLimit
	}

	start := time.Now()
	rows, err := c.repo.UntaggedQuotes(ctx, limit)
	if err != nil {
		metrics.ClassifyRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load untagged quotes: %w", err)
	}

	report := &models.ClassifyReport{Threshold: c.cfg.Threshold}
	if len(rows) == 0 {
		metrics.ClassifyRunsTotal.WithLabelValues("empty").Inc()
		return report, nil
	}
	report.Requested = len(rows)

	var updates []models.EmotionUpdate
	for off := 0; off < len(rows); off += c.cfg.SubBatchSize {
		end := off + c.cfg.SubBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[off:end]

		labeled, err := c.classifySubBatch(ctx, batch)
		if err != nil {
			metrics.ClassifyRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		updates = append(updates, labeled...)
	}
	report.LabeledTotal = len(updates)

	confident := updates[:0:0]
	for _, u := range updates {
		if u.Confidence >= c.cfg.Threshold {
			confident = append(confident, u)
		}
	}
	report.LabeledConfident = len(confident)

	if len(confident) > 0 {
		if err := c.repo.BulkUpdateEmotions(ctx, confident); err != nil {
			metrics.ClassifyRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to persist emotion updates: %w", err)
		}
	}

	metrics.ClassifyRunsTotal.WithLabelValues("ok").Inc()
	metrics.ClassifyLabeledTotal.WithLabelValues("all").Add(float64(report.LabeledTotal))
	metrics.ClassifyLabeledTotal.WithLabelValues("confident").Add(float64(report.LabeledConfident))
	c.log.LogClassifyRun(report.Requested, report.LabeledTotal, report.LabeledConfident, c.cfg.Threshold, time.Since(start), nil)
	return report, nil
}

func (c *Classifier) classifySubBatch(ctx context.Context, batch []*models.Quote) ([]models.EmotionUpdate, error) {
	items := make([]promptItem, len(batch))
	for i, q := range batch {
		items[i] = promptItem{I: i, ID: q.ID, Text: q.QuoteText}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classify payload: %w", err)
	}

	system := fmt.Sprintf(`You are an emotion classifier for short anime-style quotes.
Return STRICT JSON in this exact schema:
{ "items": [ { "i": number, "emotion": "<one of %s>", "confidence": number between 0 and 1 } ] }
Use ONLY these labels: %s.
Pick exactly ONE primary label per quote.`,
		strings.Join(EmotionLabels, "|"), strings.Join(EmotionLabels, ", "))
	user := fmt.Sprintf("Classify these %d quotes:\n%s", len(items), payload)

	content, err := c.chat.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("failed to classify sub-batch: %w", err)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil || len(out.Items) == 0 {
		// A malformed sub-batch is skipped rather than failing the
		// whole run; those quotes stay untagged for the next pass.
		sample := content
		if len(sample) > 200 {
			sample = sample[:200]
		}
		c.log.Warnf("Classifier returned empty or invalid JSON, skipping sub-batch: %s", sample)
		return nil, nil
	}

	var updates []models.EmotionUpdate
	for _, item := range out.Items {
		if item.I < 0 || item.I >= len(batch) {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(item.Emotion))
		if _, ok := labelSet[label]; !ok {
			continue
		}
		updates = append(updates, models.EmotionUpdate{
			ID:         batch[item.I].ID,
			Emotion:    label,
			Confidence: clamp01(item.Confidence),
			Model:      c.cfg.Model,
		})
	}
	return updates, nil
}

// clamp01 coerces whatever the model put in the confidence field to a
// float in [0, 1]. Non-numeric values count as zero confidence.
func clamp01(v interface{}) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
