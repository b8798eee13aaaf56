package psql

import (
	"context"
	"fmt"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Ensure InquiryRepository implements domain.InquiryRepository
var _ domain.InquiryRepository = (*InquiryRepository)(nil)

// InquiryRepository stores contact inquiries, leads and newsletter subscribers
type InquiryRepository struct {
	db DBTX
}

// NewInquiryRepository creates a new PostgreSQL inquiry repository
func NewInquiryRepository(db DBTX) *InquiryRepository {
	return &InquiryRepository{db: db}
}

// InsertContact inserts a contact_inquiries row.
func (r *InquiryRepository) InsertContact(ctx context.Context, q *domain.ContactInquiry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO contact_inquiries
			(id, name, email, phone, preferred_contact, primary_goal, timeline,
			 experience, budget, message, page_path, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		q.ID, nullIfEmpty(q.Name), q.Email, nullIfEmpty(q.Phone), nullIfEmpty(q.PreferredContact),
		nullIfEmpty(q.PrimaryGoal), nullIfEmpty(q.Timeline), nullIfEmpty(q.Experience),
		nullIfEmpty(q.Budget), q.Message, q.PagePath, q.UserAgent, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact inquiry: %w", err)
	}
	return nil
}

// InsertLead inserts a leads row.
func (r *InquiryRepository) InsertLead(ctx context.Context, l *domain.Lead) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leads (id, email, name, source, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.Email, nullIfEmpty(l.Name), l.Source, nullIfEmpty(l.Notes), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// UpsertSubscriber inserts or refreshes a newsletter subscriber, unique by email.
func (r *InquiryRepository) UpsertSubscriber(ctx context.Context, s *domain.NewsletterSubscriber) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO newsletter_subscribers (email, name, source, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			source = EXCLUDED.source`,
		s.Email, nullIfEmpty(s.Name), s.Source, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert newsletter subscriber: %w", err)
	}
	return nil
}
