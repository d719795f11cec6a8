// Package auth owns the client's credential lifecycle. Store is the single
// source of truth for whether outbound requests are authenticated; other
// components read a snapshot per request through Token and never cache it.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrEmptyToken is returned by Login when the backend handed out an empty credential.
var ErrEmptyToken = errors.New("empty credential")

// CredentialStorage persists the opaque credential. A missing credential is
// ok=false with a nil error.
type CredentialStorage interface {
	LoadCredential(ctx context.Context) (token string, ok bool, err error)
	SaveCredential(ctx context.Context, token string) error
	ClearCredential(ctx context.Context) error
}

// Session is an immutable snapshot of the authentication state.
type Session struct {
	Token   string
	Loading bool
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Store holds the current Session and keeps it in step with CredentialStorage.
type Store struct {
	storage CredentialStorage
	logger  *zap.Logger

	initOnce sync.Once

	// writeMu serializes persist+publish so observers see transitions in order.
	writeMu sync.Mutex

	mu          sync.RWMutex
	session     Session
	subscribers map[int]func(Session)
	nextSubID   int
}

func NewStore(storage CredentialStorage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage:     storage,
		logger:      logger,
		session:     Session{Loading: true},
		subscribers: make(map[int]func(Session)),
	}
}

// Initialize reads the persisted credential. Only the first call does any
// work. Unreadable storage is treated the same as "not logged in".
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		token, ok, err := s.storage.LoadCredential(ctx)
		if err != nil {
			s.logger.Warn("Credential storage unreadable, starting logged out", zap.Error(err))
			token, ok = "", false
		}
		if !ok {
			token = ""
		}

		s.publish(Session{Token: token, Loading: false})
		s.logger.Debug("Session initialized", zap.Bool("authenticated", token != ""))
	})
}

// Login persists token and then publishes it. If persisting fails the
// in-memory session is left untouched.
func (s *Store) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.storage.SaveCredential(ctx, token); err != nil {
		return err
	}
	s.publish(Session{Token: token, Loading: false})
	s.logger.Info("Logged in")
	return nil
}

// Logout clears the persisted credential and then the in-memory one.
func (s *Store) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.storage.ClearCredential(ctx); err != nil {
		return err
	}
	s.publish(Session{Loading: false})
	s.logger.Info("Logged out")
	return nil
}

// Token returns the current credential, if any.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token, s.session.Token != ""
}

func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe registers fn for every subsequent state change. fn runs on the
// goroutine performing the change and must not call Login or Logout.
func (s *Store) Subscribe(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// publish must be called with writeMu held.
func (s *Store) publish(next Session) {
	s.mu.Lock()
	s.session = next
	subs := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}
