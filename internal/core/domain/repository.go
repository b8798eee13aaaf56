package domain

import (
	"context"
	"encoding/json"
)

// RemoteProfileStore is the hosted copy of profiles. Upserts are blind
// overwrites keyed by user id.
type RemoteProfileStore interface {
	UpsertSection(ctx context.Context, userID string, section Section, profile *Profile) error
	// LoadSections returns the sections stored remotely, or ErrProfileNotFound.
	LoadSections(ctx context.Context, userID string) (map[Section]json.RawMessage, error)
	Ping(ctx context.Context) error
}

// InquiryRepository persists contact form submissions, leads and subscribers.
type InquiryRepository interface {
	InsertContact(ctx context.Context, inquiry *ContactInquiry) error
	InsertLead(ctx context.Context, lead *Lead) error
	UpsertSubscriber(ctx context.Context, sub *NewsletterSubscriber) error
}
