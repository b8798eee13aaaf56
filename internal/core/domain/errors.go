package domain

import "errors"

// Sentinel errors for profile, auth, pricing and inquiry operations.
var (
	// ErrProfileNotFound indicates no copy of the requested profile or section exists.
	// HTTP Status: 404 Not Found
	ErrProfileNotFound = errors.New("profile not found")

	// ErrUnknownSection indicates the section name is not one of the profile sections.
	// HTTP Status: 400 Bad Request
	ErrUnknownSection = errors.New("unknown profile section")

	// ErrInvalidSectionData indicates the section payload does not match its shape.
	// HTTP Status: 400 Bad Request
	ErrInvalidSectionData = errors.New("invalid section data")

	// ErrEntryNotFound indicates the local store has no entry under the key.
	ErrEntryNotFound = errors.New("local entry not found")

	// ErrSchemaVersion indicates a local entry was written by a newer schema.
	ErrSchemaVersion = errors.New("unsupported local schema version")

	// ErrNoRemote indicates no remote client handle is configured.
	// HTTP Status: 503 Service Unavailable
	ErrNoRemote = errors.New("remote store not configured")

	// ErrUnauthorized indicates the caller is not authenticated.
	// HTTP Status: 401 Unauthorized
	ErrUnauthorized = errors.New("unauthorized access")

	// ErrInvalidCredentials indicates the auth provider rejected email/password.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailNotConfirmed indicates sign-in before the confirmation link was used.
	// HTTP Status: 403 Forbidden
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrInvalidEmail indicates the provided email address is invalid.
	// HTTP Status: 400 Bad Request
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrWeakPassword indicates the password is shorter than MinPasswordLength.
	// HTTP Status: 400 Bad Request
	ErrWeakPassword = errors.New("password must be at least 8 characters long")

	// ErrMissingField indicates a required request field is empty.
	// HTTP Status: 400 Bad Request
	ErrMissingField = errors.New("required field missing")

	// ErrAuthProvider indicates the hosted auth provider failed or is not configured.
	// HTTP Status: 502 Bad Gateway
	ErrAuthProvider = errors.New("auth provider error")

	// ErrInvalidPlan indicates the plan key is not in the catalog.
	// HTTP Status: 404 Not Found
	ErrInvalidPlan = errors.New("plan not found")

	// ErrInvalidPeriod indicates the billing period is not in the catalog.
	// HTTP Status: 400 Bad Request
	ErrInvalidPeriod = errors.New("invalid billing period")

	// ErrInvalidDiscountCode indicates the discount code is unknown.
	// HTTP Status: 400 Bad Request
	ErrInvalidDiscountCode = errors.New("invalid discount code")

	// ErrRateLimited indicates the client submitted a form too recently.
	// HTTP Status: 429 Too Many Requests
	ErrRateLimited = errors.New("too many submissions")
)
