package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

// Field validation messages returned to the site's forms.
const (
	MessageContactRequired = "Email and message are required"
	MessageEmailRequired   = "Email required"
)

// confirmationTimeout bounds the visitor receipt so a slow relay cannot stall the form.
const confirmationTimeout = 10 * time.Second

// defaultSource is the lead/subscriber source when neither body nor Referer has one.
const defaultSource = "website"

// InquiryService stores contact form submissions, leads and newsletter sign-ups.
type InquiryService struct {
	repo      domain.InquiryRepository // nil: no remote handle
	local     domain.LocalStore
	notifier  Notifier // optional
	confirm   Mailer   // optional visitor receipt
	policy    *bluemonday.Policy
	rateLimit time.Duration
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewInquiryService creates the inquiry service. repo and notifier may be nil.
func NewInquiryService(repo domain.InquiryRepository, local domain.LocalStore, notifier Notifier, rateLimit time.Duration, logger *zap.Logger) *InquiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InquiryService{
		repo:      repo,
		local:     local,
		notifier:  notifier,
		policy:    bluemonday.StrictPolicy(),
		rateLimit: rateLimit,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// WithConfirmation makes SubmitContact email a receipt to the visitor.
func (s *InquiryService) WithConfirmation(m Mailer) *InquiryService {
	s.confirm = m
	return s
}

// clean strips markup and surrounding space from free text.
func (s *InquiryService) clean(v string) string {
	return strings.TrimSpace(s.policy.Sanitize(strings.TrimSpace(v)))
}

// SubmitContact validates, throttles and stores a contact inquiry, then
// relays it by email when a relay is configured.
func (s *InquiryService) SubmitContact(ctx context.Context, req domain.ContactRequest, meta domain.RequestMeta) (*domain.ContactInquiry, error) {
	ctx, span := middleware.StartSpan(ctx, "inquiry.contact", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	email := strings.TrimSpace(req.Email)
	message := s.clean(req.Message)
	if email == "" || message == "" {
		inquiriesTotal.WithLabelValues("contact", "invalid").Inc()
		return nil, fmt.Errorf("%s: %w", MessageContactRequired, domain.ErrMissingField)
	}
	if s.repo == nil {
		return nil, fmt.Errorf("store contact inquiry: %w", domain.ErrNoRemote)
	}

	ns := domain.ClientNamespace(meta.ClientIP)
	if err := s.checkRateLimit(ctx, ns); err != nil {
		inquiriesTotal.WithLabelValues("contact", "rate_limited").Inc()
		return nil, err
	}

	inquiry := &domain.ContactInquiry{
		ID:               s.newID(),
		Name:             s.clean(req.Name),
		Email:            email,
		Phone:            s.clean(req.Phone),
		PreferredContact: s.clean(req.PreferredContact),
		PrimaryGoal:      s.clean(req.PrimaryGoal),
		Timeline:         s.clean(req.Timeline),
		Experience:       s.clean(req.Experience),
		Budget:           s.clean(req.Budget),
		Message:          message,
		PagePath:         firstNonEmpty(req.PagePath, meta.DeploymentURL, meta.Referer),
		UserAgent:        firstNonEmpty(req.UserAgent, meta.UserAgent),
		CreatedAt:        s.now().UTC(),
	}

	if err := s.repo.InsertContact(ctx, inquiry); err != nil {
		span.RecordError(err)
		inquiriesTotal.WithLabelValues("contact", "error").Inc()
		return nil, err
	}
	inquiriesTotal.WithLabelValues("contact", "stored").Inc()

	s.markSubmitted(ctx, ns)

	if s.notifier != nil {
		if err := s.notifier.NotifyContact(ctx, inquiry); err != nil {
			s.logger.Warn("Contact relay failed, inquiry is stored", zap.String("inquiry_id", inquiry.ID), zap.Error(err))
		}
	}
	s.sendConfirmation(ctx, inquiry, req.Locale)

	span.SetAttributes(attribute.String("inquiry.id", inquiry.ID))
	return inquiry, nil
}

// sendConfirmation emails the visitor a receipt. Failures are logged only.
func (s *InquiryService) sendConfirmation(ctx context.Context, inquiry *domain.ContactInquiry, locale string) {
	if s.confirm == nil {
		return
	}
	email := BuildContactConfirmationEmail(ContactConfirmationData{Name: inquiry.Name, Locale: locale})
	email.To = inquiry.Email

	mctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()
	if err := s.confirm.Send(mctx, email); err != nil {
		mailsTotal.WithLabelValues("contact_confirmation", "error").Inc()
		s.logger.Warn("Contact confirmation email failed", zap.String("inquiry_id", inquiry.ID), zap.Error(err))
		return
	}
	mailsTotal.WithLabelValues("contact_confirmation", "sent").Inc()
}

// checkRateLimit rejects a submission within rateLimit of the previous one.
func (s *InquiryService) checkRateLimit(ctx context.Context, ns string) error {
	if s.rateLimit <= 0 {
		return nil
	}
	entry, err := s.local.Get(ctx, ns, domain.KeyLastSubmit)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		// the throttle is advisory; a broken local read must not block the form
		s.logger.Warn("Rate limit check failed", zap.String("namespace", ns), zap.Error(err))
		return nil
	}
	var lastMillis int64
	if err := json.Unmarshal(entry.Data, &lastMillis); err != nil {
		return nil
	}
	if since := s.now().Sub(time.UnixMilli(lastMillis)); since < s.rateLimit {
		return fmt.Errorf("retry in %s: %w", (s.rateLimit - since).Round(time.Second), domain.ErrRateLimited)
	}
	return nil
}

func (s *InquiryService) markSubmitted(ctx context.Context, ns string) {
	now := s.now()
	data, _ := json.Marshal(now.UnixMilli())
	if err := s.local.Put(ctx, ns, domain.KeyLastSubmit, domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          data,
		Synced:        true,
		UpdatedAt:     now,
	}); err != nil {
		s.logger.Error("Failed to record submission time", zap.String("namespace", ns), zap.Error(err))
	}
}

// CaptureLead stores a lead. Fields other than email, name, source and notes
// are metadata; without explicit notes a non-empty metadata set is stored
// as JSON notes.
func (s *InquiryService) CaptureLead(ctx context.Context, body map[string]any, meta domain.RequestMeta) (*domain.Lead, error) {
	ctx, span := middleware.StartSpan(ctx, "inquiry.lead", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	email := strings.TrimSpace(stringField(body, "email"))
	if email == "" {
		inquiriesTotal.WithLabelValues("lead", "invalid").Inc()
		return nil, fmt.Errorf("%s: %w", MessageEmailRequired, domain.ErrMissingField)
	}
	if s.repo == nil {
		return nil, fmt.Errorf("store lead: %w", domain.ErrNoRemote)
	}

	metadata := make(map[string]any, len(body)+2)
	for k, v := range body {
		switch k {
		case "email", "name", "source", "notes":
			continue
		}
		metadata[k] = v
	}
	metadata["page_path"] = nilIfEmpty(firstNonEmpty(meta.OriginalURL, meta.Referer))
	metadata["user_agent"] = nilIfEmpty(meta.UserAgent)

	notes := s.clean(stringField(body, "notes"))
	if notes == "" && hasValue(metadata) {
		if data, err := json.Marshal(metadata); err == nil {
			notes = string(data)
		}
	}

	lead := &domain.Lead{
		ID:        s.newID(),
		Email:     email,
		Name:      s.clean(stringField(body, "name")),
		Source:    firstNonEmpty(s.clean(stringField(body, "source")), meta.Referer, defaultSource),
		Notes:     notes,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertLead(ctx, lead); err != nil {
		span.RecordError(err)
		inquiriesTotal.WithLabelValues("lead", "error").Inc()
		return nil, err
	}
	inquiriesTotal.WithLabelValues("lead", "stored").Inc()
	return lead, nil
}

// Subscribe adds or refreshes a newsletter subscriber.
func (s *InquiryService) Subscribe(ctx context.Context, email, name, source string, meta domain.RequestMeta) (*domain.NewsletterSubscriber, error) {
	ctx, span := middleware.StartSpan(ctx, "inquiry.newsletter", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		inquiriesTotal.WithLabelValues("newsletter", "invalid").Inc()
		return nil, fmt.Errorf("%s: %w", MessageEmailRequired, domain.ErrMissingField)
	}
	if s.repo == nil {
		return nil, fmt.Errorf("store subscriber: %w", domain.ErrNoRemote)
	}

	sub := &domain.NewsletterSubscriber{
		Email:     email,
		Name:      s.clean(name),
		Source:    firstNonEmpty(s.clean(source), meta.Referer, defaultSource),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.UpsertSubscriber(ctx, sub); err != nil {
		span.RecordError(err)
		inquiriesTotal.WithLabelValues("newsletter", "error").Inc()
		return nil, err
	}
	inquiriesTotal.WithLabelValues("newsletter", "stored").Inc()
	return sub, nil
}

func stringField(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func hasValue(m map[string]any) bool {
	for _, v := range m {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		return true
	}
	return false
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
