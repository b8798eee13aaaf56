package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/garciabuilder/site-service/config"
	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Mailer sends one email. *SMTPMailer implements it.
type Mailer interface {
	Send(ctx context.Context, email domain.Email) error
}

// implicitTLSPort is the SMTPS port; other ports upgrade with STARTTLS.
const implicitTLSPort = 465

// SMTPMailer delivers mail through an authenticated SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer returns nil when SMTP is not fully configured.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(10 * time.Second),
	}
	if cfg.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

// Send dials the relay and delivers email.
func (m *SMTPMailer) Send(ctx context.Context, email domain.Email) error {
	msg, err := buildMessage(m.from, email)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", email.To, err)
	}
	return nil
}

// buildMessage renders email as multipart/alternative, text first.
func buildMessage(from string, email domain.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail sender %q: %w", from, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("mail recipient %q: %w", email.To, err)
	}
	if email.ReplyTo != "" {
		if err := msg.ReplyTo(email.ReplyTo); err != nil {
			return nil, fmt.Errorf("mail reply-to %q: %w", email.ReplyTo, err)
		}
	}
	msg.Subject(email.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, email.TextBody)
	if email.HTMLBody != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTMLBody)
	}
	return msg, nil
}
