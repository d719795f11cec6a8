package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"scrapp.io/client/internal/api"
	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/category"
)

// PostsPath is the community posts resource under the API base endpoint.
const PostsPath = "posts/"

// DefaultMaxPages bounds a drain so a self-referencing "next" chain cannot
// spin forever.
const DefaultMaxPages = 1000

var (
	// ErrLoginRequired is returned before any request when an operation needs a credential.
	ErrLoginRequired = errors.New("login required")
	// ErrPageLimit is returned when a drain exceeds its page bound.
	ErrPageLimit = errors.New("pagination page limit exceeded")
)

type PostService struct {
	gw       *api.Client
	tokens   api.TokenSource
	maxPages int
	logger   *zap.Logger
}

func NewPostService(gw *api.Client, tokens api.TokenSource, maxPages int, logger *zap.Logger) *PostService {
	if maxPages < 1 {
		maxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{gw: gw, tokens: tokens, maxPages: maxPages, logger: logger}
}

type postPage struct {
	Results []Post  `json:"results"`
	Next    *string `json:"next"`
}

// FetchAll drains resourcePath for filter into one collection. The filter is
// only applied to the first request; "next" links are followed verbatim.
// Pages are fetched strictly one after another. Any failure fails the whole
// drain and no partial collection is returned.
func (s *PostService) FetchAll(ctx context.Context, resourcePath string, filter category.Slug) (PostCollection, error) {
	if filter == "" {
		filter = category.All
	}

	posts := make([]Post, 0)
	target := resourcePath
	query := filter.Query()

	for page := 1; ; page++ {
		if page > s.maxPages {
			return PostCollection{}, fmt.Errorf("fetch %s: %w (%d)", resourcePath, ErrPageLimit, s.maxPages)
		}

		var raw json.RawMessage
		if err := s.gw.Get(ctx, target, query, &raw); err != nil {
			return PostCollection{}, fmt.Errorf("fetch %s page %d: %w", resourcePath, page, err)
		}

		results, next, err := decodePostPage(raw)
		if err != nil {
			return PostCollection{}, &apperr.Error{
				Kind: apperr.ErrTransport,
				Op:   fmt.Sprintf("fetch %s page %d", resourcePath, page),
				Body: string(raw),
				Err:  err,
			}
		}
		posts = append(posts, results...)

		s.logger.Debug("Fetched posts page",
			zap.String("filter", filter.String()),
			zap.Int("page", page),
			zap.Int("size", len(results)),
			zap.Bool("has_next", next != ""))

		if next == "" {
			break
		}
		target, query = next, nil
	}

	return PostCollection{Filter: filter, Posts: posts}, nil
}

// decodePostPage accepts either a bare array (complete result) or a
// {results, next} envelope.
func decodePostPage(raw json.RawMessage) ([]Post, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, "", errors.New("empty response body")
	}

	switch trimmed[0] {
	case '[':
		var posts []Post
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return nil, "", fmt.Errorf("decode post list: %w", err)
		}
		return posts, "", nil
	case '{':
		var page postPage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, "", fmt.Errorf("decode post page: %w", err)
		}
		next := ""
		if page.Next != nil {
			next = strings.TrimSpace(*page.Next)
		}
		return page.Results, next, nil
	default:
		return nil, "", errors.New("unexpected response shape")
	}
}

// Create submits a new post. Input is validated and the credential checked
// before anything is sent.
func (s *PostService) Create(ctx context.Context, in NewPost) (Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)

	switch {
	case in.Title == "":
		return Post{}, apperr.Validation("create post", "title is required")
	case in.Content == "":
		return Post{}, apperr.Validation("create post", "content is required")
	case !in.Category.Concrete():
		return Post{}, apperr.Validation("create post", "select a category")
	}

	if s.tokens != nil {
		if _, ok := s.tokens.Token(); !ok {
			return Post{}, ErrLoginRequired
		}
	}

	var created Post
	if err := s.gw.Post(ctx, PostsPath, in, &created); err != nil {
		return Post{}, fmt.Errorf("create post: %w", err)
	}
	s.logger.Info("Post created", zap.Int64("id", created.ID), zap.String("category", created.Category.String()))
	return created, nil
}

// IsUnauthorized reports whether err came from a 401 or 403 response. What to
// do about it (for example logging out) is up to the caller.
func IsUnauthorized(err error) bool {
	code := apperr.StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
