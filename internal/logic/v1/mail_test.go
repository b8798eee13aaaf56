package v1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garciabuilder/site-service/config"
	"github.com/garciabuilder/site-service/internal/core/domain"
)

const testInvite = "https://garciabuilder.trainerize.com/app/invite?code=abc"

func TestBuildOnboardingEmail(t *testing.T) {
	email := BuildOnboardingEmail(OnboardingEmailData{
		Name:      "Ana",
		PlanName:  "Elite Plan",
		InviteURL: testInvite,
	})

	assert.Equal(t, "Welcome to Garcia Builder", email.Subject)
	assert.Contains(t, email.TextBody, "Hi Ana,")
	assert.Contains(t, email.TextBody, "Plan: Elite Plan")
	assert.Contains(t, email.TextBody, testInvite)
	assert.Contains(t, email.TextBody, "3. Expect your personalized plan")
	assert.Contains(t, email.HTMLBody, "<strong>Elite Plan</strong>")
	assert.Contains(t, email.HTMLBody, "Open Trainerize Invite")
	assert.Contains(t, email.HTMLBody, `href="https://garciabuilder.trainerize.com/app/invite?code=abc"`)
}

func TestBuildOnboardingEmail_Portuguese(t *testing.T) {
	email := BuildOnboardingEmail(OnboardingEmailData{InviteURL: testInvite, Locale: "pt-BR"})

	assert.Equal(t, "Bem-vindo ao Garcia Builder", email.Subject)
	assert.Contains(t, email.TextBody, "Olá,")
	assert.Contains(t, email.TextBody, "Plano: Coaching Plan")
	assert.Contains(t, email.HTMLBody, "Próximos Passos")
	assert.Contains(t, email.HTMLBody, `lang="pt"`)
}

func TestBuildOnboardingEmail_EscapesName(t *testing.T) {
	email := BuildOnboardingEmail(OnboardingEmailData{Name: "<script>x</script>", InviteURL: testInvite})
	assert.NotContains(t, email.HTMLBody, "<script>")
	assert.Contains(t, email.HTMLBody, "&lt;script&gt;")
}

func TestBuildContactConfirmationEmail(t *testing.T) {
	email := BuildContactConfirmationEmail(ContactConfirmationData{Name: "Ana"})
	assert.Equal(t, "Recebemos sua mensagem!", email.Subject)
	assert.Contains(t, email.TextBody, "Olá Ana,")
	assert.Contains(t, email.HTMLBody, "Em breve entraremos em contato.")

	email = BuildContactConfirmationEmail(ContactConfirmationData{Locale: "en"})
	assert.Equal(t, "We received your message!", email.Subject)
	assert.Contains(t, email.TextBody, "Hi,")
}

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, LocalePortuguese, normalizeLocale("PT_br", LocaleEnglish))
	assert.Equal(t, LocaleEnglish, normalizeLocale("en-GB", LocalePortuguese))
	assert.Equal(t, LocaleEnglish, normalizeLocale("es", LocaleEnglish))
	assert.Equal(t, LocalePortuguese, normalizeLocale("", LocalePortuguese))
}

func TestNewSMTPMailer_SkippedWithoutCredentials(t *testing.T) {
	m, err := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = NewSMTPMailer(config.MailConfig{
		Host: "smtp.example.com", Port: 465, User: "coach", Password: "secret",
		From: "no-reply@garciabuilder.fitness",
	})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestBuildMessage(t *testing.T) {
	email := BuildOnboardingEmail(OnboardingEmailData{Name: "Ana", PlanName: "Full Plan", InviteURL: testInvite})
	email.To = "ana@example.com"
	email.ReplyTo = "coach@garciabuilder.fitness"

	msg, err := buildMessage("no-reply@garciabuilder.fitness", email)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Welcome to Garcia Builder")
	assert.Contains(t, raw, "<ana@example.com>")
	assert.Contains(t, raw, "<coach@garciabuilder.fitness>")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/html")

	_, err = buildMessage("no-reply@garciabuilder.fitness", domain.Email{To: "not an address"})
	assert.Error(t, err)
}
