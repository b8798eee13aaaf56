package v1

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/garciabuilder/site-service/internal/core/domain"
	"github.com/garciabuilder/site-service/middleware"
)

// OnboardingService sends the welcome email that follows a purchase.
type OnboardingService struct {
	mailer    Mailer // nil: mail is skipped
	pricing   *PricingService
	inviteURL string
	logger    *zap.Logger
}

// NewOnboardingService creates the onboarding mailer. inviteURL is the
// default coaching app invite; requests may override it.
func NewOnboardingService(mailer Mailer, pricing *PricingService, inviteURL string, logger *zap.Logger) *OnboardingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingService{mailer: mailer, pricing: pricing, inviteURL: inviteURL, logger: logger}
}

// Enabled reports whether a mailer is configured.
func (s *OnboardingService) Enabled() bool {
	return s.mailer != nil
}

// SendWelcome emails the plan name and invite link to a new client. It
// reports false without error when no mailer is configured.
func (s *OnboardingService) SendWelcome(ctx context.Context, req domain.OnboardingRequest) (bool, error) {
	ctx, span := middleware.StartSpan(ctx, "onboarding.welcome", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("plan.key", req.PlanKey),
	))
	defer span.End()

	to := strings.TrimSpace(req.Email)
	if !validEmail(to) {
		return false, fmt.Errorf("onboarding %q: %w", to, domain.ErrInvalidEmail)
	}
	invite := firstNonEmpty(req.InviteURL, s.inviteURL)
	if invite == "" {
		return false, fmt.Errorf("trainerize invite link: %w", domain.ErrMissingField)
	}
	if s.mailer == nil {
		s.logger.Info("SMTP not configured, onboarding email skipped", zap.String("plan", req.PlanKey))
		mailsTotal.WithLabelValues("onboarding", "skipped").Inc()
		return false, nil
	}

	email := BuildOnboardingEmail(OnboardingEmailData{
		Name:      strings.TrimSpace(req.Name),
		PlanName:  s.planName(req),
		InviteURL: invite,
		Locale:    req.Locale,
	})
	email.To = to

	if err := s.mailer.Send(ctx, email); err != nil {
		middleware.RecordError(span, err)
		mailsTotal.WithLabelValues("onboarding", "error").Inc()
		s.logger.Error("Failed to send onboarding email", zap.String("plan", req.PlanKey), zap.Error(err))
		return false, err
	}
	mailsTotal.WithLabelValues("onboarding", "sent").Inc()
	s.logger.Info("Onboarding email sent", zap.String("plan", req.PlanKey))
	return true, nil
}

func (s *OnboardingService) planName(req domain.OnboardingRequest) string {
	if name := strings.TrimSpace(req.PlanName); name != "" {
		return name
	}
	if s.pricing != nil {
		if p, ok := s.pricing.Plan(req.PlanKey); ok && p.Name != "" {
			return p.Name
		}
	}
	return firstNonEmpty(req.PlanKey, defaultPlanName)
}
