package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Notifier forwards a stored contact inquiry by email.
type Notifier interface {
	NotifyContact(ctx context.Context, inquiry *domain.ContactInquiry) error
}

// FormspreeNotifier posts inquiries to a Formspree form endpoint.
type FormspreeNotifier struct {
	endpoint   string
	httpClient *http.Client
}

// NewFormspreeNotifier returns nil when endpoint is empty.
func NewFormspreeNotifier(endpoint string) *FormspreeNotifier {
	if endpoint == "" {
		return nil
	}
	return &FormspreeNotifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyContact sends the inquiry; the reply address is the visitor's email.
func (n *FormspreeNotifier) NotifyContact(ctx context.Context, q *domain.ContactInquiry) error {
	payload, err := json.Marshal(map[string]string{
		"name":              q.Name,
		"email":             q.Email,
		"_replyto":          q.Email,
		"_subject":          "New contact inquiry from " + q.Email,
		"phone":             q.Phone,
		"preferred_contact": q.PreferredContact,
		"primary_goal":      q.PrimaryGoal,
		"timeline":          q.Timeline,
		"experience":        q.Experience,
		"budget":            q.Budget,
		"message":           q.Message,
		"page_path":         q.PagePath,
	})
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay contact inquiry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("relay error: %d - %s", resp.StatusCode, string(body))
	}
	return nil
}
