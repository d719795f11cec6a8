package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapp.io/client/internal/store"
)

type memoryStorage struct {
	mu       sync.Mutex
	token    string
	present  bool
	loadErr  error
	saveErr  error
	clearErr error
	loads    int
}

func (m *memoryStorage) LoadCredential(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return "", false, m.loadErr
	}
	return m.token, m.present, nil
}

func (m *memoryStorage) SaveCredential(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token, m.present = token, true
	return nil
}

func (m *memoryStorage) ClearCredential(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.token, m.present = "", false
	return nil
}

func TestNewStoreStartsLoading(t *testing.T) {
	s := NewStore(&memoryStorage{}, nil)
	snap := s.Snapshot()
	assert.True(t, snap.Loading)
	assert.False(t, snap.Authenticated())
}

func TestInitializeReadsPersistedCredentialOnce(t *testing.T) {
	storage := &memoryStorage{token: "persisted", present: true}
	s := NewStore(storage, nil)

	s.Initialize(context.Background())
	s.Initialize(context.Background())

	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
	assert.False(t, s.Snapshot().Loading)
	assert.Equal(t, 1, storage.loads)
}

func TestInitializeTreatsUnreadableStorageAsLoggedOut(t *testing.T) {
	s := NewStore(&memoryStorage{loadErr: errors.New("disk on fire")}, nil)

	s.Initialize(context.Background())

	_, ok := s.Token()
	assert.False(t, ok)
	assert.False(t, s.Snapshot().Loading)
}

func TestLoginThenLogoutClearsMemoryAndStorage(t *testing.T) {
	ctx := context.Background()
	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer kv.Close()
	creds := store.NewCredentialStore(kv, "authToken")

	for _, token := range []string{"a", "token-with-dashes", "0123456789abcdef"} {
		s := NewStore(creds, nil)
		s.Initialize(ctx)

		require.NoError(t, s.Login(ctx, token))
		persisted, ok, err := creds.LoadCredential(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, token, persisted)

		require.NoError(t, s.Logout(ctx))
		_, ok = s.Token()
		assert.False(t, ok)
		_, ok, err = creds.LoadCredential(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestLoginFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	storage := &memoryStorage{}
	s := NewStore(storage, nil)
	s.Initialize(ctx)

	storage.saveErr = errors.New("read-only")
	err := s.Login(ctx, "abc")
	require.Error(t, err)

	_, ok := s.Token()
	assert.False(t, ok)
}

func TestLogoutFailureKeepsCredential(t *testing.T) {
	ctx := context.Background()
	storage := &memoryStorage{}
	s := NewStore(storage, nil)
	s.Initialize(ctx)
	require.NoError(t, s.Login(ctx, "abc"))

	storage.clearErr = errors.New("locked")
	require.Error(t, s.Logout(ctx))

	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	s := NewStore(&memoryStorage{}, nil)
	assert.ErrorIs(t, s.Login(context.Background(), "  "), ErrEmptyToken)
}

func TestSubscribersSeeEveryTransitionInOrder(t *testing.T) {
	ctx := context.Background()
	storage := &memoryStorage{}
	s := NewStore(storage, nil)

	var seen []Session
	cancel := s.Subscribe(func(sess Session) {
		// Observers may read the store while being notified.
		token, _ := s.Token()
		assert.Equal(t, sess.Token, token)
		p, _, _ := storage.LoadCredential(ctx)
		assert.Equal(t, sess.Token, p)
		seen = append(seen, sess)
	})

	s.Initialize(ctx)
	require.NoError(t, s.Login(ctx, "t1"))
	require.NoError(t, s.Logout(ctx))
	cancel()
	require.NoError(t, s.Login(ctx, "t2"))

	require.Len(t, seen, 3)
	assert.Equal(t, Session{Loading: false}, seen[0])
	assert.Equal(t, Session{Token: "t1"}, seen[1])
	assert.Equal(t, Session{}, seen[2])
}

func TestHeaderValue(t *testing.T) {
	assert.Equal(t, "Token abc", HeaderValue(SchemeToken, "abc"))
	assert.Equal(t, "Bearer abc", HeaderValue(SchemeBearer, "abc"))
	assert.Equal(t, "Token abc", HeaderValue("", "abc"))
}
