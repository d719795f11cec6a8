package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"scrapp.io/client/internal/api"
	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/auth"
)

const (
	LoginPath    = "users/login/"
	RegisterPath = "users/register/"
)

type AuthService struct {
	gw      *api.Client
	session *auth.Store
	logger  *zap.Logger
}

func NewAuthService(gw *api.Client, session *auth.Store, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{gw: gw, session: session, logger: logger}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges username and password for a credential and stores it.
func (s *AuthService) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperr.Validation("login", "username and password are required")
	}

	var resp tokenResponse
	err := s.gw.Post(ctx, LoginPath, map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	if err != nil {
		return authFailure("login", err)
	}
	if strings.TrimSpace(resp.Token) == "" {
		return &apperr.Error{Kind: apperr.ErrAuth, Op: "login", Detail: "no token in response"}
	}

	if err := s.session.Login(ctx, resp.Token); err != nil {
		return fmt.Errorf("login: persist credential: %w", err)
	}
	s.logger.Info("User logged in", zap.String("username", username))
	return nil
}

// Register creates an account. Some deployments do not issue a token on
// registration; loggedIn is false then and the user has to log in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (loggedIn bool, err error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return false, apperr.Validation("register", "username, email and password are required")
	}

	var resp tokenResponse
	err = s.gw.Post(ctx, RegisterPath, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return false, authFailure("register", err)
	}

	if strings.TrimSpace(resp.Token) == "" {
		s.logger.Info("Registered without token", zap.String("username", username))
		return false, nil
	}
	if err := s.session.Login(ctx, resp.Token); err != nil {
		return false, fmt.Errorf("register: persist credential: %w", err)
	}
	s.logger.Info("User registered", zap.String("username", username))
	return true, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.session.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// authFailure re-labels a rejected login/registration as ErrAuth while keeping
// the status code and body. Network failures stay transport failures.
func authFailure(op string, err error) error {
	var gwErr *apperr.Error
	if !errors.As(err, &gwErr) || gwErr.StatusCode == 0 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &apperr.Error{
		Kind:       apperr.ErrAuth,
		Op:         op,
		StatusCode: gwErr.StatusCode,
		Body:       gwErr.Body,
		Detail:     gwErr.Detail,
		Err:        gwErr,
	}
}
