package domain

// Email is one outgoing message with plain-text and HTML bodies.
type Email struct {
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// OnboardingRequest describes the welcome email sent after a purchase.
type OnboardingRequest struct {
	Email     string
	Name      string
	PlanKey   string
	PlanName  string // overrides the catalog name of PlanKey
	InviteURL string // overrides the configured coaching app invite
	Locale    string
}
