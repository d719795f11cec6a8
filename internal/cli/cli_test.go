package cli

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapp.io/client/internal/api/apitest"
	"scrapp.io/client/internal/core"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func setupBackend(t *testing.T) *apitest.Backend {
	t.Helper()
	backend := apitest.New()
	root := backend.Start(t)

	t.Setenv("SCRAPP_CONFIG", "")
	t.Setenv("SCRAPP_API_BASE_URL", root+"/api/")
	t.Setenv("SCRAPP_SERVICE_BASE_URL", root)
	t.Setenv("SCRAPP_DATABASE_URL", filepath.Join(t.TempDir(), "client.db"))
	t.Setenv("SCRAPP_CHAT_BACKEND", "http")
	t.Setenv("LOG_LEVEL", "ERROR")
	return backend
}

func TestCategoriesNeedsNoConfig(t *testing.T) {
	t.Setenv("SCRAPP_API_BASE_URL", "not a url")
	res := run(t, "", "categories")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "waste_recycling")
	assert.Contains(t, res.stdout, "Green Tech & Innovation")
}

func TestLoginPostAndList(t *testing.T) {
	backend := setupBackend(t)
	backend.AddUser("ana", "ana@example.com", "s3cret")

	res := run(t, "", "whoami")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "Not logged in.\n", res.stdout)

	res = run(t, "s3cret\n", "login", "-u", "ana")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged in.")

	// The credential survives into the next invocation.
	res = run(t, "", "whoami")
	assert.Equal(t, "Logged in.\n", res.stdout)

	res = run(t, "", "post", "--title", "Jar lamps", "--content", "Old jars make lamps.", "--category", "upcycling_diy")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Upcycling & DIY")

	res = run(t, "", "posts", "--category", "upcycling_diy")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Jar lamps")

	res = run(t, "", "posts", "--category", "green_tech")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "No posts found.")

	res = run(t, "", "logout")
	require.Equal(t, 0, res.code, res.stderr)

	res = run(t, "", "post", "--title", "x", "--content", "y", "--category", "green_tech")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "scrapp login")
}

func TestLoginFailureExitsNonZero(t *testing.T) {
	backend := setupBackend(t)
	backend.AddUser("ana", "ana@example.com", "s3cret")

	res := run(t, "", "login", "-u", "ana", "-p", "wrong")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Unable to log in with provided credentials.")
}

func TestPostsDegradeToEmptyOnFailure(t *testing.T) {
	setupBackend(t)
	t.Setenv("SCRAPP_API_BASE_URL", "http://127.0.0.1:1/api/")

	res := run(t, "", "posts")
	assert.Equal(t, 0, res.code)
	assert.Contains(t, res.stdout, "No posts found.")
}

func TestClassifyAndChat(t *testing.T) {
	backend := setupBackend(t)
	backend.ClassifyFunc = func(string, []byte) (int, any) {
		return http.StatusOK, map[string]any{
			"label":        "plastic",
			"confidence":   0.92,
			"probs":        map[string]float64{"plastic": 0.92, "glass": 0.05, "metal": 0.03},
			"instructions": "Rinse and recycle.",
		}
	}
	var gotLabel string
	backend.ChatFunc = func(req apitest.ChatRequest) (int, any) {
		if req.Label != nil {
			gotLabel = *req.Label
		}
		return http.StatusOK, map[string]string{"reply": "Yellow bin."}
	}

	img := filepath.Join(t.TempDir(), "bottle.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	res := run(t, "which bin?\n/quit\n", "classify", img, "--chat")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Prediction: plastic")
	assert.Contains(t, res.stdout, "92.0%")
	assert.Contains(t, res.stdout, "glass")
	assert.Contains(t, res.stdout, "Rinse and recycle.")
	assert.Contains(t, res.stdout, "Ask me anything about disposing plastic responsibly.")
	assert.Contains(t, res.stdout, "Yellow bin.")
	assert.Equal(t, "plastic", gotLabel)
}

func TestClassifyFailureShowsBanner(t *testing.T) {
	backend := setupBackend(t)
	backend.ClassifyFunc = func(string, []byte) (int, any) {
		return http.StatusInternalServerError, map[string]string{"error": "model crashed"}
	}
	img := filepath.Join(t.TempDir(), "bottle.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	res := run(t, "", "classify", img)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, "Classification failed: model crashed")
	assert.NotContains(t, res.stderr, "Error:")
}

func TestChatReportsBackendErrorsInline(t *testing.T) {
	backend := setupBackend(t)
	backend.ChatFunc = func(apitest.ChatRequest) (int, any) {
		return http.StatusBadGateway, map[string]string{"error": "Gemini call failed"}
	}

	res := run(t, "hello\n", "chat", "--label", "glass")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Sorry, error: Gemini call failed")
}

func TestRenderTranscript(t *testing.T) {
	out := renderTranscript([]core.ChatTurn{
		{Role: core.RoleAssistant, Content: "Hi"},
		{Role: core.RoleUser, Content: "Where?"},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Assistant:")
	assert.Contains(t, lines[0], "Hi")
	assert.Contains(t, lines[1], "You:")
}

func TestRenderResultWithoutOptionalFields(t *testing.T) {
	out := renderResult(&core.ClassificationResult{Label: "cardboard"})
	assert.Contains(t, out, "Prediction: cardboard")
	assert.NotContains(t, out, "%")
	assert.NotContains(t, out, "How to dispose")
}
