package core

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapp.io/client/internal/api/apitest"
	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/auth"
	"scrapp.io/client/internal/category"
	"scrapp.io/client/internal/store"
)

type authFixture struct {
	backend *apitest.Backend
	session *auth.Store
	auth    *AuthService
	posts   *PostService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	backend := apitest.New()
	root := backend.Start(t)

	kv, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	session := auth.NewStore(store.NewCredentialStore(kv, "authToken"), nil)
	session.Initialize(context.Background())

	gw := newGateway(t, root+"/api/", session)
	return &authFixture{
		backend: backend,
		session: session,
		auth:    NewAuthService(gw, session, nil),
		posts:   NewPostService(gw, session, 0, nil),
	}
}

func TestLoginStoresTokenUsedByLaterRequests(t *testing.T) {
	f := newAuthFixture(t)
	token := f.backend.AddUser("ana", "ana@example.com", "s3cret")
	ctx := context.Background()

	require.NoError(t, f.auth.Login(ctx, "ana", "s3cret"))
	got, ok := f.session.Token()
	require.True(t, ok)
	assert.Equal(t, token, got)

	_, err := f.posts.FetchAll(ctx, PostsPath, category.All)
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx))
	_, ok = f.session.Token()
	assert.False(t, ok)

	_, err = f.posts.FetchAll(ctx, PostsPath, category.All)
	require.NoError(t, err)

	reqs := f.backend.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Authorization)
	assert.Equal(t, "Token "+token, reqs[1].Authorization)
	assert.Empty(t, reqs[2].Authorization)
}

func TestLoginWrongPasswordIsAuthError(t *testing.T) {
	f := newAuthFixture(t)
	f.backend.AddUser("ana", "ana@example.com", "s3cret")

	err := f.auth.Login(context.Background(), "ana", "nope")
	require.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, http.StatusBadRequest, apperr.StatusCode(err))
	assert.Equal(t, "Unable to log in with provided credentials.", apperr.UserMessage(err))
	assert.False(t, f.session.Snapshot().Authenticated())
}

func TestLoginValidatesInput(t *testing.T) {
	f := newAuthFixture(t)
	err := f.auth.Login(context.Background(), " ", "pw")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.backend.Requests())
}

func TestRegisterLogsIn(t *testing.T) {
	f := newAuthFixture(t)

	loggedIn, err := f.auth.Register(context.Background(), "bo", "bo@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, loggedIn)
	assert.True(t, f.session.Snapshot().Authenticated())
}

func TestRegisterWithoutTokenStaysLoggedOut(t *testing.T) {
	f := newAuthFixture(t)
	f.backend.RegisterWithoutToken = true

	loggedIn, err := f.auth.Register(context.Background(), "bo", "bo@example.com", "pw")
	require.NoError(t, err)
	assert.False(t, loggedIn)
	assert.False(t, f.session.Snapshot().Authenticated())

	require.NoError(t, f.auth.Login(context.Background(), "bo", "pw"))
	assert.True(t, f.session.Snapshot().Authenticated())
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newAuthFixture(t)
	f.backend.AddUser("bo", "bo@example.com", "pw")

	_, err := f.auth.Register(context.Background(), "bo", "other@example.com", "pw")
	require.ErrorIs(t, err, apperr.ErrAuth)
	assert.Equal(t, "username: A user with that username already exists.", apperr.UserMessage(err))
}
