package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jscraik/cortexdx/internal/patternstore"
)

// fakeStore is a minimal Capability used to check the server depends only
// on the interface, not the SQLite implementation.
type fakeStore struct {
	patterns map[string]*patternstore.ResolutionPattern
}

func newFakeStore() *fakeStore {
	return &fakeStore{patterns: make(map[string]*patternstore.ResolutionPattern)}
}

func (f *fakeStore) Save(_ context.Context, p *patternstore.ResolutionPattern) error {
	f.patterns[p.ID] = p
	return nil
}

func (f *fakeStore) Load(_ context.Context, id string) (*patternstore.ResolutionPattern, error) {
	p, ok := f.patterns[id]
	if !ok {
		return nil, patternstore.ErrPatternNotFound
	}
	return p, nil
}

func (f *fakeStore) LoadAll(context.Context) ([]patternstore.ResolutionPattern, error) {
	out := make([]patternstore.ResolutionPattern, 0, len(f.patterns))
	for _, p := range f.patterns {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) UpdateSuccess(_ context.Context, id string, _ time.Duration) error {
	if _, ok := f.patterns[id]; !ok {
		return patternstore.ErrPatternNotFound
	}
	return nil
}

func (f *fakeStore) UpdateFailure(_ context.Context, id string) error {
	if _, ok := f.patterns[id]; !ok {
		return patternstore.ErrPatternNotFound
	}
	return nil
}

func (f *fakeStore) AddFeedback(_ context.Context, id string, _ patternstore.FeedbackEntry) error {
	if _, ok := f.patterns[id]; !ok {
		return patternstore.ErrPatternNotFound
	}
	return nil
}

func (f *fakeStore) SaveCommonIssue(context.Context, *patternstore.CommonIssuePattern) error {
	return nil
}

func (f *fakeStore) UpdateCommonIssue(context.Context, string, string) error {
	return nil
}

func (f *fakeStore) LoadCommonIssues(context.Context) ([]patternstore.CommonIssuePattern, error) {
	return nil, nil
}

func (f *fakeStore) RetrieveByRank(context.Context, patternstore.RankOptions) ([]patternstore.ResolutionPattern, error) {
	return f.LoadAll(context.Background())
}

func (f *fakeStore) GetStatistics(context.Context) (*patternstore.Statistics, error) {
	return &patternstore.Statistics{TotalPatterns: int64(len(f.patterns))}, nil
}

func (f *fakeStore) FindSimilar(context.Context, string, float64) ([]patternstore.ScoredPattern, error) {
	return nil, nil
}

func (f *fakeStore) PruneOlderThan(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

var _ patternstore.Capability = (*fakeStore)(nil)

func TestNewServerAcceptsAnyCapability(t *testing.T) {
	srv, err := NewServer(&Config{
		Name:    "cortexdx-test",
		Version: "0.0.1",
		Logger:  zaptest.NewLogger(t),
	}, newFakeStore())
	require.NoError(t, err)
	assert.NotNil(t, srv.mcp)
}

func TestTrack(t *testing.T) {
	srv, err := NewServer(&Config{Logger: zaptest.NewLogger(t)}, newFakeStore())
	require.NoError(t, err)

	ctx := context.Background()

	// Neither path may panic against the default no-op meter.
	done := srv.track(ctx, "pattern_get")
	done(nil)

	done = srv.track(ctx, "pattern_get")
	done(errors.New("boom"))
}
