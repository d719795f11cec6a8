package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"scrapp.io/client/internal/category"
)

type fetchResult struct {
	coll PostCollection
	err  error
}

// gatedFetcher blocks every FetchAll until the test releases that filter.
type gatedFetcher struct {
	started chan category.Slug

	mu    sync.Mutex
	gates map[category.Slug]chan fetchResult
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		started: make(chan category.Slug, 8),
		gates:   make(map[category.Slug]chan fetchResult),
	}
}

func (g *gatedFetcher) gate(filter category.Slug) chan fetchResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[filter]
	if !ok {
		ch = make(chan fetchResult, 1)
		g.gates[filter] = ch
	}
	return ch
}

func (g *gatedFetcher) FetchAll(ctx context.Context, _ string, filter category.Slug) (PostCollection, error) {
	gate := g.gate(filter)
	g.started <- filter
	select {
	case res := <-gate:
		return res.coll, res.err
	case <-ctx.Done():
		return PostCollection{}, ctx.Err()
	}
}

func (g *gatedFetcher) release(filter category.Slug, posts ...Post) {
	g.gate(filter) <- fetchResult{coll: PostCollection{Filter: filter, Posts: posts}}
}

func TestFeedAdoptsOnlyNewestFilter(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetcher := newGatedFetcher()
	feed := NewFeed(fetcher, PostsPath, nil)

	var mu sync.Mutex
	var seen []FeedState
	cancel := feed.Subscribe(func(s FeedState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer cancel()

	ctx := context.Background()
	type outcome struct {
		state   FeedState
		adopted bool
	}
	allDone := make(chan outcome, 1)
	go func() {
		s, ok := feed.SetFilter(ctx, category.All)
		allDone <- outcome{s, ok}
	}()
	require.Equal(t, category.All, <-fetcher.started)

	wasteDone := make(chan outcome, 1)
	go func() {
		s, ok := feed.SetFilter(ctx, category.WasteRecycling)
		wasteDone <- outcome{s, ok}
	}()
	require.Equal(t, category.WasteRecycling, <-fetcher.started)

	fetcher.release(category.WasteRecycling, Post{ID: 2, Title: "bottles", Category: category.WasteRecycling})
	waste := <-wasteDone
	require.True(t, waste.adopted)

	// The slower "all" response lands last and must not overwrite the view.
	fetcher.release(category.All, Post{ID: 1, Title: "everything"}, Post{ID: 2, Title: "bottles"})
	all := <-allDone
	assert.False(t, all.adopted)

	final := feed.State()
	assert.Equal(t, category.WasteRecycling, final.Filter)
	assert.Equal(t, []string{"bottles"}, titles(final.Posts))
	assert.False(t, final.Loading)
	assert.NoError(t, final.Err)

	mu.Lock()
	defer mu.Unlock()
	last := seen[len(seen)-1]
	assert.Equal(t, category.WasteRecycling, last.Filter)
	assert.False(t, last.Loading)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Generation, seen[i-1].Generation)
	}
	for _, s := range seen {
		if !s.Loading {
			assert.NotEqual(t, category.All, s.Filter, "stale result was published")
		}
	}
}

func TestFeedErrorDegradesToEmpty(t *testing.T) {
	fetcher := newGatedFetcher()
	feed := NewFeed(fetcher, PostsPath, nil)
	boom := errors.New("boom")

	fetcher.gate(category.GreenTech) <- fetchResult{err: boom}
	state, ok := feed.SetFilter(context.Background(), category.GreenTech)
	require.True(t, ok)
	assert.ErrorIs(t, state.Err, boom)
	assert.NotNil(t, state.Posts)
	assert.Empty(t, state.Posts)
	<-fetcher.started
}

func TestFeedActivateRefetchesCurrentFilter(t *testing.T) {
	fetcher := newGatedFetcher()
	feed := NewFeed(fetcher, PostsPath, nil)
	ctx := context.Background()

	fetcher.release(category.UpcyclingDIY, Post{Title: "jar lamp"})
	_, ok := feed.SetFilter(ctx, category.UpcyclingDIY)
	require.True(t, ok)
	<-fetcher.started

	fetcher.release(category.UpcyclingDIY, Post{Title: "jar lamp"}, Post{Title: "tire planter"})
	state, ok := feed.Activate(ctx)
	require.True(t, ok)
	assert.Equal(t, category.UpcyclingDIY, state.Filter)
	assert.Len(t, state.Posts, 2)
	assert.Equal(t, uint64(2), state.Generation)
}

func TestFeedEmptyFilterMeansAll(t *testing.T) {
	fetcher := newGatedFetcher()
	feed := NewFeed(fetcher, PostsPath, nil)

	fetcher.release(category.All)
	state, ok := feed.SetFilter(context.Background(), "")
	require.True(t, ok)
	assert.Equal(t, category.All, state.Filter)
	assert.Equal(t, category.All, <-fetcher.started)
}
