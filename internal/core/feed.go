package core

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"scrapp.io/client/internal/category"
)

// Fetcher drains a paginated post resource. *PostService satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, resourcePath string, filter category.Slug) (PostCollection, error)
}

// FeedState is what a post list view renders. A failed fetch shows up as an
// empty Posts with Err set.
type FeedState struct {
	Generation uint64
	Filter     category.Slug
	Posts      []Post
	Err        error
	Loading    bool
}

// Feed keeps the observable post collection for the currently selected
// filter. Every trigger takes a new generation number and only the result of
// the newest generation is adopted; older in-flight fetches still run to
// completion but their results are dropped.
type Feed struct {
	fetcher  Fetcher
	resource string
	logger   *zap.Logger

	mu          sync.Mutex
	latest      uint64
	filter      category.Slug
	state       FeedState
	subscribers map[int]func(FeedState)
	nextSubID   int

	notifyMu     sync.Mutex
	lastNotified uint64
}

func NewFeed(fetcher Fetcher, resourcePath string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		fetcher:     fetcher,
		resource:    resourcePath,
		logger:      logger,
		filter:      category.All,
		state:       FeedState{Filter: category.All, Posts: []Post{}},
		subscribers: make(map[int]func(FeedState)),
	}
}

// SetFilter selects filter and fetches it. The returned bool is false when a
// newer request superseded this one before it finished.
func (f *Feed) SetFilter(ctx context.Context, filter category.Slug) (FeedState, bool) {
	if filter == "" {
		filter = category.All
	}
	return f.refresh(ctx, filter)
}

// Activate re-fetches the current filter, e.g. when the list view is shown again.
func (f *Feed) Activate(ctx context.Context) (FeedState, bool) {
	f.mu.Lock()
	filter := f.filter
	f.mu.Unlock()
	return f.refresh(ctx, filter)
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Feed) Subscribe(fn func(FeedState)) (cancel func()) {
	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subscribers[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}
}

func (f *Feed) refresh(ctx context.Context, filter category.Slug) (FeedState, bool) {
	f.mu.Lock()
	f.latest++
	gen := f.latest
	f.filter = filter
	loading := FeedState{Generation: gen, Filter: filter, Posts: []Post{}, Loading: true}
	f.state = loading
	f.mu.Unlock()
	f.publish(loading)

	coll, err := f.fetcher.FetchAll(ctx, f.resource, filter)

	f.mu.Lock()
	if gen != f.latest {
		current := f.latest
		f.mu.Unlock()
		f.logger.Debug("Discarding stale feed result",
			zap.String("filter", filter.String()),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", current))
		return FeedState{}, false
	}

	next := FeedState{Generation: gen, Filter: filter, Posts: coll.Posts}
	if err != nil {
		f.logger.Warn("Fetching posts failed", zap.String("filter", filter.String()), zap.Error(err))
		next.Posts = []Post{}
		next.Err = err
	}
	if next.Posts == nil {
		next.Posts = []Post{}
	}
	f.state = next
	f.mu.Unlock()

	f.publish(next)
	return next, true
}

// publish delivers state unless a newer generation has already been delivered.
func (f *Feed) publish(state FeedState) {
	f.notifyMu.Lock()
	defer f.notifyMu.Unlock()

	if state.Generation < f.lastNotified {
		return
	}
	f.lastNotified = state.Generation

	f.mu.Lock()
	subs := make([]func(FeedState), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
