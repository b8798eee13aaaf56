package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

type fakeProvider struct {
	err        error
	session    *domain.Session
	redirectTo string
	data       map[string]any
	signedOut  []string
}

func (p *fakeProvider) SignUp(_ context.Context, _, _ string, data map[string]any, redirectTo string) (*domain.Session, error) {
	p.data, p.redirectTo = data, redirectTo
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *fakeProvider) SignIn(context.Context, string, string) (*domain.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *fakeProvider) Recover(_ context.Context, _, redirectTo string) error {
	p.redirectTo = redirectTo
	return p.err
}

func (p *fakeProvider) SignOut(_ context.Context, token string) error {
	p.signedOut = append(p.signedOut, token)
	return p.err
}

func TestAuthService_SignUpValidation(t *testing.T) {
	provider := &fakeProvider{session: &domain.Session{User: domain.AuthUser{ID: "u1"}}}
	svc := NewAuthService(provider, newLocalStore(t), nil, "https://site.test/", nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.SignUpRequest
		want error
	}{
		{"missing name", domain.SignUpRequest{Email: "a@b.co", Password: "longenough"}, domain.ErrMissingField},
		{"bad email", domain.SignUpRequest{FullName: "Ana", Email: "ana@nowhere", Password: "longenough"}, domain.ErrInvalidEmail},
		{"empty email", domain.SignUpRequest{FullName: "Ana", Password: "longenough"}, domain.ErrInvalidEmail},
		{"display name", domain.SignUpRequest{FullName: "Ana", Email: "Ana <a@b.co>", Password: "longenough"}, domain.ErrInvalidEmail},
		{"short password", domain.SignUpRequest{FullName: "Ana", Email: "a@b.co", Password: "short"}, domain.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	session, err := svc.SignUp(ctx, domain.SignUpRequest{FullName: " Ana ", Email: "a@b.co", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "https://site.test/dashboard.html", provider.redirectTo)
	assert.Equal(t, "Ana", provider.data["full_name"])
}

func TestAuthService_ProviderErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		msg  string
		want error
	}{
		{"Invalid login credentials", domain.ErrInvalidCredentials},
		{"Email not confirmed", domain.ErrEmailNotConfirmed},
		{"Password should be at least 6 characters", domain.ErrWeakPassword},
		{"Unable to validate email address: invalid format", domain.ErrInvalidEmail},
		{"Database error saving new user", domain.ErrAuthProvider},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			provider := &fakeProvider{err: &middleware.ProviderError{Status: http.StatusBadRequest, Message: tt.msg}}
			svc := NewAuthService(provider, newLocalStore(t), nil, "", nil)

			_, err := svc.SignIn(ctx, domain.SignInRequest{Email: "a@b.co", Password: "x"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	svc := NewAuthService(&fakeProvider{err: middleware.ErrAuthNotConfigured}, newLocalStore(t), nil, "", nil)
	_, err := svc.SignIn(ctx, domain.SignInRequest{Email: "a@b.co", Password: "x"})
	assert.True(t, errors.Is(err, domain.ErrAuthProvider))
}

func TestAuthService_SessionLifecycle(t *testing.T) {
	store := newLocalStore(t)
	profiles := NewProfileSync(store, nil, nil, nil)
	provider := &fakeProvider{session: &domain.Session{
		AccessToken: "tok",
		User: domain.AuthUser{
			ID:           "u1",
			Email:        "ana@example.com",
			UserMetadata: map[string]any{"full_name": "Ana Silva"},
		},
	}}
	svc := NewAuthService(provider, store, profiles, "https://site.test", nil)
	ctx := context.Background()

	_, err := svc.CurrentUser(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	_, err = svc.SignIn(ctx, domain.SignInRequest{Email: "ana@example.com", Password: "pw", Remember: true})
	require.NoError(t, err)

	current, err := svc.CurrentUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Silva", current.FullName)
	assert.True(t, current.Remember)

	remember, err := store.Get(ctx, "u1", domain.KeyRememberMe)
	require.NoError(t, err)
	var flag bool
	require.NoError(t, json.Unmarshal(remember.Data, &flag))
	assert.True(t, flag)

	_, err = profiles.Save(ctx, "u1", domain.SectionBasic, json.RawMessage(`{"bio":"hi"}`))
	require.NoError(t, err)

	// a failing provider logout still clears the local session
	provider.err = errors.New("network down")
	require.NoError(t, svc.SignOut(ctx, "u1", "tok"))
	assert.Equal(t, []string{"tok"}, provider.signedOut)

	_, err = svc.CurrentUser(ctx, "u1")
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	_, err = profiles.Load(ctx, "u1", domain.SectionBasic)
	assert.True(t, errors.Is(err, domain.ErrProfileNotFound))
}

func TestAuthService_ResetPassword(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewAuthService(provider, newLocalStore(t), nil, "https://site.test", nil)

	require.NoError(t, svc.ResetPassword(context.Background(), "ana@example.com"))
	assert.Equal(t, "https://site.test/reset-password.html", provider.redirectTo)

	err := svc.ResetPassword(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrInvalidEmail))
}
