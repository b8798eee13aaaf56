package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// DefaultPeriod is used when no billing period is given.
const DefaultPeriod = "monthly"

// maxSuggestions caps "did you mean" codes.
const maxSuggestions = 2

// LoadCatalog decodes and checks a YAML pricing catalog.
func LoadCatalog(data []byte) (*domain.Catalog, error) {
	var catalog domain.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode pricing catalog: %w", err)
	}

	var problems []string
	if len(catalog.Plans) == 0 {
		problems = append(problems, "no plans")
	}
	seen := map[string]bool{}
	for _, p := range catalog.Plans {
		switch {
		case p.Key == "":
			problems = append(problems, "plan without key")
		case seen[p.Key]:
			problems = append(problems, fmt.Sprintf("duplicate plan %q", p.Key))
		case p.MonthlyPrice <= 0:
			problems = append(problems, fmt.Sprintf("plan %q has no monthly price", p.Key))
		}
		seen[p.Key] = true
	}
	hasDefault := false
	for _, p := range catalog.Periods {
		if p.Months < 1 {
			problems = append(problems, fmt.Sprintf("period %q must be at least one month", p.Key))
		}
		if p.Discount < 0 || p.Discount > 100 {
			problems = append(problems, fmt.Sprintf("period %q discount must be 0-100", p.Key))
		}
		if p.Key == DefaultPeriod {
			hasDefault = true
		}
	}
	if !hasDefault {
		problems = append(problems, fmt.Sprintf("missing %q period", DefaultPeriod))
	}
	for _, c := range catalog.DiscountCodes {
		if c.Type != domain.DiscountPercentage && c.Type != domain.DiscountFixed {
			problems = append(problems, fmt.Sprintf("code %q has unknown type %q", c.Code, c.Type))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid pricing catalog: %s", strings.Join(problems, "; "))
	}
	if catalog.Currency == "" {
		catalog.Currency = "£"
	}
	return &catalog, nil
}

// PricingService computes period and code discounts and builds payment links.
type PricingService struct {
	catalog domain.Catalog
	plans   map[string]domain.Plan
	periods map[string]domain.Period
	codes   map[string]domain.DiscountCode
	local   domain.LocalStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewPricingService indexes catalog. local keeps each visitor's applied code.
func NewPricingService(catalog *domain.Catalog, local domain.LocalStore, logger *zap.Logger) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PricingService{
		catalog: *catalog,
		plans:   make(map[string]domain.Plan, len(catalog.Plans)),
		periods: make(map[string]domain.Period, len(catalog.Periods)),
		codes:   make(map[string]domain.DiscountCode, len(catalog.DiscountCodes)),
		local:   local,
		logger:  logger,
		now:     time.Now,
	}
	for _, p := range catalog.Plans {
		s.plans[p.Key] = p
	}
	for _, p := range catalog.Periods {
		s.periods[p.Key] = p
	}
	for _, c := range catalog.DiscountCodes {
		s.codes[strings.ToUpper(c.Code)] = c
	}
	return s
}

// Catalog returns the plans and periods. Discount codes are not listed.
func (s *PricingService) Catalog() domain.Catalog {
	return s.catalog
}

// Plan returns the catalog plan with key.
func (s *PricingService) Plan(key string) (domain.Plan, bool) {
	p, ok := s.plans[key]
	return p, ok
}

// LookupCode returns the code, case-insensitively.
func (s *PricingService) LookupCode(code string) (domain.DiscountCode, error) {
	c, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.DiscountCode{}, fmt.Errorf("code %q: %w", code, domain.ErrInvalidDiscountCode)
	}
	return c, nil
}

// periodDiscounted is round(base * (1 - discount/100)).
func periodDiscounted(base, discount int) int {
	return int(math.Round(float64(base) * (1 - float64(discount)/100)))
}

// applyCode reduces an already period-discounted monthly price.
func applyCode(price int, code domain.DiscountCode) int {
	if code.Type == domain.DiscountFixed {
		return max(0, price-code.Value)
	}
	return int(math.Round(float64(price) * (1 - float64(code.Value)/100)))
}

// Quote prices planKey for period, with an optional discount code.
func (s *PricingService) Quote(planKey, period, code string) (*domain.Quote, error) {
	plan, ok := s.plans[planKey]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", planKey, domain.ErrInvalidPlan)
	}
	if period == "" {
		period = DefaultPeriod
	}
	p, ok := s.periods[period]
	if !ok {
		return nil, fmt.Errorf("period %q: %w", period, domain.ErrInvalidPeriod)
	}

	monthly := periodDiscounted(plan.MonthlyPrice, p.Discount)
	q := &domain.Quote{
		PlanKey:              plan.Key,
		Period:               p.Key,
		Months:               p.Months,
		DiscountPercentage:   p.Discount,
		OriginalMonthlyPrice: plan.MonthlyPrice,
		Currency:             s.catalog.Currency,
	}
	if code != "" {
		dc, err := s.LookupCode(code)
		if err != nil {
			return nil, err
		}
		monthly = applyCode(monthly, dc)
		q.DiscountCode = dc.Code
	}

	q.DiscountedMonthlyPrice = monthly
	q.TotalPrice = monthly * p.Months
	q.OriginalTotalPrice = plan.MonthlyPrice * p.Months
	q.TotalSavings = q.OriginalTotalPrice - q.TotalPrice
	q.MonthlySavings = plan.MonthlyPrice - monthly
	return q, nil
}

// Quotes prices every plan in catalog order.
func (s *PricingService) Quotes(period, code string) ([]domain.Quote, error) {
	quotes := make([]domain.Quote, 0, len(s.catalog.Plans))
	for _, plan := range s.catalog.Plans {
		q, err := s.Quote(plan.Key, period, code)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, nil
}

// PaymentLink returns the hosted checkout URL for a plan. Monthly without a
// code is the plain link; otherwise the pricing is appended as metadata for
// the payments dashboard.
func (s *PricingService) PaymentLink(planKey, period, code string, now time.Time) (string, error) {
	q, err := s.Quote(planKey, period, code)
	if err != nil {
		return "", err
	}
	link := s.plans[planKey].PaymentLink
	if q.Period == DefaultPeriod && q.DiscountCode == "" {
		return link, nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse payment link for %q: %w", planKey, err)
	}
	v := u.Query()
	v.Set("period", q.Period)
	v.Set("discount", strconv.Itoa(q.DiscountPercentage))
	if q.DiscountCode != "" {
		v.Set("discount_code", q.DiscountCode)
	}
	v.Set("client_reference_id", fmt.Sprintf("%s_%s_%d", q.PlanKey, q.Period, now.UnixMilli()))
	v.Set("custom_plan_period", q.Period)
	v.Set("custom_months", strconv.Itoa(q.Months))
	v.Set("custom_discount", strconv.Itoa(q.DiscountPercentage))
	v.Set("custom_original_price", strconv.Itoa(q.OriginalMonthlyPrice))
	v.Set("custom_discounted_price", strconv.Itoa(q.DiscountedMonthlyPrice))
	v.Set("custom_total_price", strconv.Itoa(q.TotalPrice))
	v.Set("custom_savings", strconv.Itoa(q.TotalSavings))
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// ApplyDiscount validates code and records it as the active discount of namespace.
func (s *PricingService) ApplyDiscount(ctx context.Context, namespace, code string) (*domain.ActiveDiscount, error) {
	dc, err := s.LookupCode(code)
	if err != nil {
		return nil, err
	}
	active := &domain.ActiveDiscount{Code: dc.Code, Type: dc.Type, Value: dc.Value, Description: dc.Description}
	data, err := json.Marshal(active)
	if err != nil {
		return nil, fmt.Errorf("encode active discount: %w", err)
	}
	if err := s.local.Put(ctx, namespace, domain.KeyActiveDiscount, domain.LocalEntry{
		SchemaVersion: domain.SchemaVersion,
		Data:          data,
		Synced:        true,
		UpdatedAt:     s.now(),
	}); err != nil {
		s.logger.Error("Failed to store active discount", zap.String("namespace", namespace), zap.Error(err))
		return nil, fmt.Errorf("store active discount: %w", err)
	}
	return active, nil
}

// ActiveDiscount returns the applied code of namespace, or nil when none is.
// A code since removed from the catalog is dropped.
func (s *PricingService) ActiveDiscount(ctx context.Context, namespace string) (*domain.ActiveDiscount, error) {
	entry, err := s.local.Get(ctx, namespace, domain.KeyActiveDiscount)
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active discount: %w", err)
	}
	var active domain.ActiveDiscount
	if err := json.Unmarshal(entry.Data, &active); err != nil {
		s.logger.Warn("Ignoring unreadable active discount", zap.String("namespace", namespace), zap.Error(err))
		return nil, nil
	}
	if _, err := s.LookupCode(active.Code); err != nil {
		return nil, nil
	}
	return &active, nil
}

// RemoveDiscount clears the applied code of namespace.
func (s *PricingService) RemoveDiscount(ctx context.Context, namespace string) error {
	return s.local.Delete(ctx, namespace, domain.KeyActiveDiscount)
}

// SuggestCodes returns up to two codes sharing a three-letter prefix with input.
func (s *PricingService) SuggestCodes(input string) []string {
	input = strings.ToUpper(strings.TrimSpace(input))
	if input == "" {
		return nil
	}
	var out []string
	for _, c := range s.catalog.DiscountCodes {
		code := strings.ToUpper(c.Code)
		if strings.Contains(code, prefix3(input)) || strings.Contains(input, prefix3(code)) {
			out = append(out, c.Code)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}

func prefix3(s string) string {
	if r := []rune(s); len(r) > 3 {
		return string(r[:3])
	}
	return s
}

// ValidateLinks returns the plans whose payment link is missing or still a placeholder.
func (s *PricingService) ValidateLinks() []string {
	var bad []string
	for _, p := range s.catalog.Plans {
		if p.PaymentLink == "" || strings.Contains(p.PaymentLink, "YOUR_") || strings.Contains(p.PaymentLink, "_HERE") {
			bad = append(bad, p.Key)
		}
	}
	return bad
}
