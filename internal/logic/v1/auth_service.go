package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

// AuthProvider is the hosted auth provider. *middleware.AuthClient implements it.
type AuthProvider interface {
	SignUp(ctx context.Context, email, password string, data map[string]any, redirectTo string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	Recover(ctx context.Context, email, redirectTo string) error
	SignOut(ctx context.Context, token string) error
}

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// AuthService wraps the auth provider and mirrors the session into the local store.
type AuthService struct {
	provider     AuthProvider
	local        domain.LocalStore
	profiles     *ProfileSync
	redirectBase string
	logger       *zap.Logger
	now          func() time.Time
}

// NewAuthService creates the auth service. redirectBase is the site origin
// confirmation and reset emails link back to.
func NewAuthService(provider AuthProvider, local domain.LocalStore, profiles *ProfileSync, redirectBase string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		provider:     provider,
		local:        local,
		profiles:     profiles,
		redirectBase: strings.TrimRight(redirectBase, "/"),
		logger:       logger,
		now:          time.Now,
	}
}

// SignUp registers a new account. The session has no access token while
// the email is unconfirmed.
func (s *AuthService) SignUp(ctx context.Context, req domain.SignUpRequest) (*domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.signup", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)
	if fullName == "" {
		return nil, fmt.Errorf("full name: %w", domain.ErrMissingField)
	}
	if !validEmail(email) {
		return nil, fmt.Errorf("sign up %q: %w", email, domain.ErrInvalidEmail)
	}
	if len(req.Password) < domain.MinPasswordLength {
		return nil, fmt.Errorf("sign up %q: %w", email, domain.ErrWeakPassword)
	}

	session, err := s.provider.SignUp(ctx, email, req.Password,
		map[string]any{"full_name": fullName},
		s.redirectBase+"/dashboard.html",
	)
	if err != nil {
		span.RecordError(err)
		return nil, mapProviderError("sign up", err)
	}

	span.SetAttributes(
		attribute.String("user.id", session.User.ID),
		attribute.Bool("auth.confirmation_required", session.AccessToken == ""),
	)
	return session, nil
}

// SignIn authenticates with email and password and records the current user locally.
func (s *AuthService) SignIn(ctx context.Context, req domain.SignInRequest) (*domain.Session, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.signin", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("sign in: %w", domain.ErrMissingField)
	}

	session, err := s.provider.SignIn(ctx, email, req.Password)
	if err != nil {
		span.RecordError(err)
		return nil, mapProviderError("sign in", err)
	}

	current := domain.CurrentUser{
		ID:       session.User.ID,
		Email:    session.User.Email,
		FullName: session.User.FullName(),
		SignedIn: s.now().UTC(),
		Remember: req.Remember,
	}
	if err := s.putJSON(ctx, current.ID, domain.KeyCurrentUser, current); err != nil {
		s.logger.Error("Failed to record current user locally", zap.String("user_id", current.ID), zap.Error(err))
	}
	if err := s.putJSON(ctx, current.ID, domain.KeyRememberMe, req.Remember); err != nil {
		s.logger.Error("Failed to record remember-me locally", zap.String("user_id", current.ID), zap.Error(err))
	}

	span.SetAttributes(attribute.String("user.id", current.ID))
	return session, nil
}

// ResetPassword asks the provider to email a reset link.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.reset", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return fmt.Errorf("reset password %q: %w", email, domain.ErrInvalidEmail)
	}
	if err := s.provider.Recover(ctx, email, s.redirectBase+"/reset-password.html"); err != nil {
		span.RecordError(err)
		return mapProviderError("reset password", err)
	}
	return nil
}

// SignOut revokes the token (best-effort) and removes the local session and
// profile copies. The remote profile is kept.
func (s *AuthService) SignOut(ctx context.Context, userID, token string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.signout", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			s.logger.Warn("Provider sign-out failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	if err := s.local.Delete(ctx, userID, domain.KeyCurrentUser, domain.KeyRememberMe); err != nil {
		span.RecordError(err)
		s.logger.Error("Failed to clear local session", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("clear local session: %w", err)
	}
	if s.profiles != nil {
		if err := s.profiles.Clear(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// CurrentUser returns the locally recorded signed-in user.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.CurrentUser, error) {
	entry, err := s.local.Get(ctx, userID, domain.KeyCurrentUser)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return nil, fmt.Errorf("current user %q: %w", userID, domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("read current user: %w", err)
	}
	var current domain.CurrentUser
	if err := json.Unmarshal(entry.Data, &current); err != nil {
		return nil, fmt.Errorf("decode current user: %w", err)
	}
	return &current, nil
}

func (s *AuthService) putJSON(ctx context.Context, namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.local.Put(ctx, namespace, key, domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          data,
		Synced:        true,
		UpdatedAt:     s.now(),
	})
}

// mapProviderError turns provider answers into domain errors by their message.
func mapProviderError(op string, err error) error {
	if errors.Is(err, middleware.ErrAuthNotConfigured) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrAuthProvider)
	}
	var perr *middleware.ProviderError
	if !errors.As(err, &perr) {
		return fmt.Errorf("%s: %v: %w", op, err, domain.ErrAuthProvider)
	}

	msg := strings.ToLower(perr.Message)
	switch {
	case strings.Contains(msg, "invalid login credentials"):
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidCredentials)
	case strings.Contains(msg, "email not confirmed"):
		return fmt.Errorf("%s: %w", op, domain.ErrEmailNotConfirmed)
	case strings.Contains(msg, "password should be"), strings.Contains(msg, "weak password"):
		return fmt.Errorf("%s: %w", op, domain.ErrWeakPassword)
	case strings.Contains(msg, "invalid email"), strings.Contains(msg, "unable to validate email"):
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidEmail)
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrAuthProvider)
}
