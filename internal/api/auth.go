package api

import (
	"context"
	"net/http"

	"jobtracker/client/internal/errors"
	"jobtracker/client/internal/models"
	"jobtracker/client/internal/telemetry"

	"go.uber.org/zap"
)

// SessionManager is the writable side of the session store.
type SessionManager interface {
	Set(ctx context.Context, token string, user models.User) error
	Clear(ctx context.Context) error
	User() *models.User
	IsAuthenticated() bool
}

type AuthService struct {
	requester Requester
	sessions  SessionManager
	logger    *zap.Logger
}

func NewAuthService(logger *zap.Logger, requester Requester, sessions SessionManager) *AuthService {
	return &AuthService{
		requester: requester,
		sessions:  sessions,
		logger:    logger,
	}
}

// Login authenticates and, when the server hands back a token, starts a new
// session with it. Token and profile are stored in one step.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()
	span.SetAttributes(telemetry.String("auth.username", username))

	var resp models.AuthResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := s.requester.Do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	resp.Normalize()

	if resp.Token == "" {
		return &resp, nil
	}
	if resp.User == nil {
		return nil, errors.Internal("login response carries a token but no user profile", nil)
	}
	if err := s.sessions.Set(ctx, resp.Token, *resp.User); err != nil {
		span.RecordError(err)
		return nil, errors.Internal("storing session", err)
	}

	s.logger.Info("logged in", zap.String("username", resp.User.Username))
	return &resp, nil
}

// Signup registers an account. It does not sign the user in.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*models.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Signup")
	defer span.End()
	span.SetAttributes(telemetry.String("auth.username", username))

	var resp models.AuthResponse
	req := models.SignupRequest{Username: username, Email: email, Password: password}
	if err := s.requester.Do(ctx, http.MethodPost, "/auth/signup", nil, req, &resp); err != nil {
		return nil, err
	}
	resp.Normalize()

	s.logger.Info("signed up", zap.String("username", username))
	return &resp, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.sessions.Clear(ctx); err != nil {
		return errors.Internal("clearing session", err)
	}
	s.logger.Info("logged out")
	return nil
}

func (s *AuthService) CurrentUser() *models.User {
	return s.sessions.User()
}

func (s *AuthService) IsAuthenticated() bool {
	return s.sessions.IsAuthenticated()
}
