package domain

import "time"

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 8

// AuthUser is the user record returned by the hosted auth provider.
type AuthUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time     `json:"last_sign_in_at,omitempty"`
}

// FullName returns user_metadata.full_name when present.
func (u AuthUser) FullName() string {
	name, _ := u.UserMetadata["full_name"].(string)
	return name
}

// Session is a signed-in session issued by the auth provider.
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	User         AuthUser `json:"user"`
}

// CurrentUser is the signed-in user mirrored into the local store.
type CurrentUser struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	SignedIn time.Time `json:"signed_in"`
	Remember bool      `json:"remember"`
}

type SignUpRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}
