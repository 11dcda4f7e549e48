package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animequotestudio/studio/internal/logging"
	"github.com/animequotestudio/studio/pkg/models"
)

type fakeEventRepo struct {
	applied []*models.StatsEvent
	err     error
}

func (f *fakeEventRepo) ApplyStatsEvent(ctx context.Context, event *models.StatsEvent) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, event)
	return nil
}

type fakeStatsCache struct {
	invalidated int
	err         error
}

func (f *fakeStatsCache) DeleteStats(ctx context.Context) error {
	f.invalidated++
	return f.err
}

func newTestAggregator(repo EventRepository, cache StatsCache) *Aggregator {
	log, _ := logging.NewConsoleLogger()
	return NewAggregator(repo, cache, log)
}

func TestHandleAppliesAndInvalidates(t *testing.T) {
	repo := &fakeEventRepo{}
	cache := &fakeStatsCache{}
	agg := newTestAggregator(repo, cache)

	event := &models.StatsEvent{ID: "e1", Type: models.EventTypeDownload, QuoteID: 5}
	require.NoError(t, agg.Handle(event))

	require.Len(t, repo.applied, 1)
	assert.Equal(t, "e1", repo.applied[0].ID)
	assert.Equal(t, 1, cache.invalidated)
}

func TestHandleUnknownTypeRejected(t *testing.T) {
	repo := &fakeEventRepo{}
	agg := newTestAggregator(repo, &fakeStatsCache{})

	err := agg.Handle(&models.StatsEvent{ID: "e1", Type: "signup"})
	require.Error(t, err)
	assert.Empty(t, repo.applied)
}

func TestHandleRepoErrorSurfaces(t *testing.T) {
	repo := &fakeEventRepo{err: errors.New("db down")}
	cache := &fakeStatsCache{}
	agg := newTestAggregator(repo, cache)

	err := agg.Handle(&models.StatsEvent{ID: "e1", Type: models.EventTypeView})
	require.Error(t, err)
	assert.Equal(t, 0, cache.invalidated)
}

func TestHandleCacheErrorIgnored(t *testing.T) {
	repo := &fakeEventRepo{}
	cache := &fakeStatsCache{err: errors.New("redis down")}
	agg := newTestAggregator(repo, cache)

	require.NoError(t, agg.Handle(&models.StatsEvent{ID: "e1", Type: models.EventTypeView}))
}

func TestHandleNilCache(t *testing.T) {
	repo := &fakeEventRepo{}
	agg := newTestAggregator(repo, nil)

	require.NoError(t, agg.Handle(&models.StatsEvent{ID: "e1", Type: models.EventTypeView}))
}
