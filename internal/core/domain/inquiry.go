package domain

import "time"

// ContactInquiry is a contact form submission.
type ContactInquiry struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	PreferredContact string    `json:"preferred_contact,omitempty"`
	PrimaryGoal      string    `json:"primary_goal,omitempty"`
	Timeline         string    `json:"timeline,omitempty"`
	Experience       string    `json:"experience,omitempty"`
	Budget           string    `json:"budget,omitempty"`
	Message          string    `json:"message"`
	PagePath         string    `json:"page_path"`
	UserAgent        string    `json:"user_agent"`
	CreatedAt        time.Time `json:"created_at"`
}

// Lead is a marketing lead captured from any page.
type Lead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Source    string    `json:"source"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewsletterSubscriber is unique by email.
type NewsletterSubscriber struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactRequest is the POST body of the contact endpoint. Presence of
// email and message is checked by the service, not by binding tags, so the
// error text matches what the site expects.
type ContactRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	PreferredContact string `json:"preferred_contact"`
	PrimaryGoal      string `json:"primary_goal"`
	Timeline         string `json:"timeline"`
	Experience       string `json:"experience"`
	Budget           string `json:"budget"`
	Message          string `json:"message"`
	PagePath         string `json:"page_path"`
	UserAgent        string `json:"user_agent"`
	Locale           string `json:"locale"` // language of the confirmation email
}

// RequestMeta carries header fallbacks for inquiry fields.
type RequestMeta struct {
	ClientIP  string
	Referer   string
	UserAgent string
	// OriginalURL and DeploymentURL are proxy-provided page addresses, when present.
	OriginalURL   string
	DeploymentURL string
}
