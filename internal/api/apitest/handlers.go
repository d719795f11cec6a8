package apitest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scrapp.io/client/internal/category"
)

type ctxKey struct{}

// Post is the wire shape of a community post.
type Post struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	CategoryLabel string    `json:"category_label"`
	Author        int64     `json:"author"`
	CreatedAt     time.Time `json:"created_at"`
}

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message      string  `json:"message"`
	Label        *string `json:"label"`
	Instructions *string `json:"instructions"`
	History      []Turn  `json:"history"`
}

// Request is what the backend saw of one inbound call.
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	ContentType   string
}

type user struct {
	id       int64
	username string
	email    string
	password string
	token    string
}

// Backend is the fake server state. Exported fields configure behavior and
// may be set before Start.
type Backend struct {
	// PageSize > 0 wraps the post list in {count,next,previous,results}; 0
	// returns a raw JSON array.
	PageSize int
	// RegisterWithoutToken makes registration succeed without issuing a token.
	RegisterWithoutToken bool
	// ClassifyFunc answers /api/classify/ with a status and JSON body.
	ClassifyFunc func(filename string, data []byte) (int, any)
	// ChatFunc answers /api/disposal-chat/.
	ChatFunc func(req ChatRequest) (int, any)

	mu       sync.Mutex
	users    map[string]*user
	tokens   map[string]*user
	posts    []Post // newest first
	nextID   int64
	requests []Request
}

func New() *Backend {
	return &Backend{
		users:  make(map[string]*user),
		tokens: make(map[string]*user),
		nextID: 1,
		ClassifyFunc: func(string, []byte) (int, any) {
			return http.StatusOK, map[string]any{"label": "trash", "confidence": 1.0}
		},
		ChatFunc: func(ChatRequest) (int, any) {
			return http.StatusOK, map[string]string{"reply": "ok"}
		},
	}
}

// AddUser registers an account and returns its token.
func (b *Backend) AddUser(username, email, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(username, email, password).token
}

func (b *Backend) addUserLocked(username, email, password string) *user {
	u := &user{
		id:       int64(len(b.users) + 1),
		username: username,
		email:    email,
		password: password,
		token:    strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	b.users[username] = u
	b.tokens[u.token] = u
	return u
}

// SeedPosts stores posts as if created in the given order (the last one is newest).
func (b *Backend) SeedPosts(posts ...Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range posts {
		if p.ID == 0 {
			p.ID = b.nextID
		}
		if p.ID >= b.nextID {
			b.nextID = p.ID + 1
		}
		if p.CategoryLabel == "" {
			p.CategoryLabel = category.Slug(p.Category).Label()
		}
		b.posts = append([]Post{p}, b.posts...)
	}
}

func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

func (b *Backend) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// tokenAuthMiddleware resolves "Token <key>" to a user. Anonymous requests
// pass through; a present but unknown token is rejected like DRF does.
func (b *Backend) tokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := strings.CutPrefix(authHeader, "Token ")
		b.mu.Lock()
		u := b.tokens[key]
		b.mu.Unlock()
		if !ok || u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b *Backend) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid request body: " + err.Error()})
		return
	}

	b.mu.Lock()
	u := b.users[req.Username]
	b.mu.Unlock()

	if u == nil || u.password != req.Password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Unable to log in with provided credentials."}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": u.token})
}

func (b *Backend) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid request body: " + err.Error()})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
		return
	}
	u := b.addUserLocked(req.Username, req.Email, req.Password)

	if b.RegisterWithoutToken {
		writeJSON(w, http.StatusCreated, map[string]string{"username": u.username})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": u.token})
}

func (b *Backend) listPostsHandler(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get(category.QueryParam)

	b.mu.Lock()
	var matched []Post
	for _, p := range b.posts {
		if filter == "" || p.Category == filter {
			matched = append(matched, p)
		}
	}
	pageSize := b.PageSize
	b.mu.Unlock()

	if matched == nil {
		matched = []Post{}
	}
	if pageSize <= 0 {
		writeJSON(w, http.StatusOK, matched)
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Invalid page."})
			return
		}
		page = n
	}

	start := (page - 1) * pageSize
	if start > len(matched) || (start == len(matched) && page > 1) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Invalid page."})
		return
	}
	end := min(start+pageSize, len(matched))

	var next *string
	if end < len(matched) {
		link := pageLink(r, page+1)
		next = &link
	}
	var previous *string
	if page > 1 {
		link := pageLink(r, page-1)
		previous = &link
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(matched),
		"next":     next,
		"previous": previous,
		"results":  matched[start:end],
	})
}

func pageLink(r *http.Request, page int) string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func (b *Backend) createPostHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := r.Context().Value(ctxKey{}).(*user)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
		return
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid request body: " + err.Error()})
		return
	}
	if !category.Slug(req.Category).Concrete() {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"category": {`"` + req.Category + `" is not a valid choice.`}})
		return
	}

	b.mu.Lock()
	p := Post{
		ID:            b.nextID,
		Title:         req.Title,
		Content:       req.Content,
		Category:      req.Category,
		CategoryLabel: category.Slug(req.Category).Label(),
		Author:        u.id,
		CreatedAt:     time.Now().UTC(),
	}
	b.nextID++
	b.posts = append([]Post{p}, b.posts...)
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (b *Backend) classifyHandler(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing 'image' file (multipart/form-data)."})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unreadable upload."})
		return
	}

	status, body := b.ClassifyFunc(header.Filename, data)
	writeJSON(w, status, body)
}

func (b *Backend) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body."})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Field 'message' is required."})
		return
	}

	status, body := b.ChatFunc(req)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
