package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapp.io/client/internal/api"
)

type tokenBox struct {
	mu    sync.Mutex
	token string
}

func (b *tokenBox) Token() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token, b.token != ""
}

func (b *tokenBox) set(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

func newGateway(t *testing.T, baseURL string, tokens api.TokenSource, opts ...api.Option) *api.Client {
	t.Helper()
	gw, err := api.NewClient(baseURL, tokens, opts...)
	require.NoError(t, err)
	return gw
}

func strPtr(s string) *string { return &s }
