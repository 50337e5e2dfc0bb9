package patternstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStatisticsEmpty(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.GetStatistics(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.TotalPatterns)
	assert.Zero(t, stats.TotalSuccesses)
	assert.Zero(t, stats.TotalFailures)
	assert.Zero(t, stats.AverageConfidence)
	assert.Nil(t, stats.MostSuccessful)
	assert.Empty(t, stats.RecentlyUsed)
	assert.Empty(t, stats.ByProblemType)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	best := saveRanked(t, store, "frequent winner", 8, 2, 0.8, now)
	saveRanked(t, store, "occasional", 2, 2, 0.5, now.Add(-time.Hour))

	other := testPattern(t, "odd one out")
	other.ProblemType = ProblemProtocol
	other.FailureCount = 1
	require.NoError(t, store.Save(ctx, other))

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalPatterns)
	assert.Equal(t, int64(10), stats.TotalSuccesses)
	assert.Equal(t, int64(5), stats.TotalFailures)
	assert.InDelta(t, (0.8+0.5+0)/3, stats.AverageConfidence, 1e-9)

	require.NotNil(t, stats.MostSuccessful)
	assert.Equal(t, best.ID, stats.MostSuccessful.ID)

	require.Len(t, stats.RecentlyUsed, 3)
	assert.False(t, stats.RecentlyUsed[0].LastUsed.Before(stats.RecentlyUsed[1].LastUsed))

	assert.Equal(t, int64(2), stats.ByProblemType[string(ProblemConnection)])
	assert.Equal(t, int64(1), stats.ByProblemType[string(ProblemProtocol)])
}

func TestGetStatisticsRecentlyUsedCap(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now().UTC()

	for i := 0; i < recentlyUsedLimit+3; i++ {
		saveRanked(t, store, "signature", 1, 0, 1.0, now.Add(-time.Duration(i)*time.Minute))
	}

	stats, err := store.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.RecentlyUsed, recentlyUsedLimit)
}
