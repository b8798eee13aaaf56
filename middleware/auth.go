package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// DemoUserID is used when the unauthenticated fallback is enabled.
const DemoUserID = "demo-user"

// ErrAuthNotConfigured is returned when no auth provider URL is set.
var ErrAuthNotConfigured = errors.New("auth provider not configured")

// ProviderError is a non-2xx answer from the auth provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("auth provider error: %d - %s", e.Status, e.Message)
}

// AuthClient talks to the hosted auth provider's REST API (GoTrue).
type AuthClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAuthClient creates a new auth client. baseURL is the project URL
// without the /auth/v1 suffix; an empty baseURL yields ErrAuthNotConfigured
// from every call.
func NewAuthClient(baseURL, apiKey string) *AuthClient {
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SignUp registers a user. When email confirmation is required the
// returned session has no access token.
func (c *AuthClient) SignUp(ctx context.Context, email, password string, data map[string]any, redirectTo string) (*domain.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     data,
	}
	var resp struct {
		domain.Session
		domain.AuthUser
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", redirectQuery(redirectTo), body, "", &resp); err != nil {
		return nil, err
	}
	if resp.Session.AccessToken != "" {
		return &resp.Session, nil
	}
	return &domain.Session{User: resp.AuthUser}, nil
}

// SignIn exchanges email and password for a session.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	body := map[string]string{"email": email, "password": password}
	q := url.Values{"grant_type": {"password"}}
	var session domain.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, body, "", &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Recover sends a password reset email.
func (c *AuthClient) Recover(ctx context.Context, email, redirectTo string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", redirectQuery(redirectTo), map[string]string{"email": email}, "", nil)
}

// SignOut revokes the session behind token.
func (c *AuthClient) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, token, nil)
}

// GetUser retrieves the user behind an access token.
func (c *AuthClient) GetUser(ctx context.Context, token string) (*domain.AuthUser, error) {
	var user domain.AuthUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Verify implements TokenVerifier by asking the provider.
func (c *AuthClient) Verify(ctx context.Context, token string) (*domain.AuthUser, error) {
	return c.GetUser(ctx, token)
}

func redirectQuery(redirectTo string) url.Values {
	if redirectTo == "" {
		return nil
	}
	return url.Values{"redirect_to": {redirectTo}}
}

func (c *AuthClient) do(ctx context.Context, method, path string, query url.Values, body any, token string, out any) error {
	if c.baseURL == "" {
		return ErrAuthNotConfigured
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request auth provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &ProviderError{Status: resp.StatusCode, Message: providerMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// providerMessage extracts the human message from a GoTrue error body,
// which uses either error_description, msg or message.
func providerMessage(raw []byte) string {
	var body struct {
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, m := range []string{body.ErrorDescription, body.Msg, body.Message, body.Error} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// TokenVerifier resolves a bearer token to a user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.AuthUser, error)
}

// supabaseClaims are the claims of a provider-issued access token.
type supabaseClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens locally with the project's JWT secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a local verifier.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*domain.AuthUser, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("verify token: missing subject")
	}
	return &domain.AuthUser{
		ID:           claims.Subject,
		Email:        claims.Email,
		UserMetadata: claims.UserMetadata,
	}, nil
}

// NewTokenVerifier verifies locally when a JWT secret is set, otherwise through the provider.
func NewTokenVerifier(client *AuthClient, jwtSecret string) TokenVerifier {
	if jwtSecret != "" {
		return NewJWTVerifier(jwtSecret)
	}
	return client
}

// AuthMiddleware creates a middleware that validates bearer tokens.
// It sets "user_id", "email", "auth_user" and "access_token" in the gin context if authentication succeeds.
// When allowUnauthenticatedFallback is true (demo mode), missing/invalid tokens fall back to user_id=DemoUserID.
// When false (default), returns 401 for missing or invalid tokens.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger, allowUnauthenticatedFallback bool) gin.HandlerFunc {
	fallback := func(c *gin.Context) {
		c.Set("user_id", DemoUserID)
		c.Set("auth_user", &domain.AuthUser{ID: DemoUserID})
		c.Next()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if allowUnauthenticatedFallback {
				fallback(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		const bearerPrefix = "Bearer "
		if len(authHeader) <= len(bearerPrefix) || authHeader[:len(bearerPrefix)] != bearerPrefix {
			if allowUnauthenticatedFallback {
				fallback(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}
		token := authHeader[len(bearerPrefix):]

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if logger != nil {
				logger.Debug("Auth validation failed", zap.Error(err))
			}
			if allowUnauthenticatedFallback {
				fallback(c)
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", user.ID)
		c.Set("email", user.Email)
		c.Set("auth_user", user)
		c.Set("access_token", token)
		c.Next()
	}
}

// AuthUserFromContext returns the user set by AuthMiddleware.
func AuthUserFromContext(c *gin.Context) *domain.AuthUser {
	if v, ok := c.Get("auth_user"); ok {
		if u, ok := v.(*domain.AuthUser); ok {
			return u
		}
	}
	return nil
}
