package v1

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Supported email locales.
const (
	LocaleEnglish    = "en"
	LocalePortuguese = "pt"
)

// defaultPlanName is used when neither the request nor the catalog names the plan.
const defaultPlanName = "Coaching Plan"

// normalizeLocale maps "pt", "pt-BR" and the like to LocalePortuguese, "en*"
// to LocaleEnglish, and anything else to fallback.
func normalizeLocale(locale, fallback string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	switch {
	case strings.HasPrefix(l, LocalePortuguese):
		return LocalePortuguese
	case strings.HasPrefix(l, LocaleEnglish):
		return LocaleEnglish
	}
	return fallback
}

// OnboardingEmailData holds data for the post-purchase welcome email.
type OnboardingEmailData struct {
	Name      string
	PlanName  string
	InviteURL string
	Locale    string
}

type onboardingCopy struct {
	Subject, Heading, Greeting, PlanLabel, Button, SignOff string
	Steps                                                  []string
}

var onboardingText = map[string]onboardingCopy{
	LocaleEnglish: {
		Subject:   "Welcome to Garcia Builder",
		Heading:   "Welcome to Garcia Builder: Your Next Steps",
		Greeting:  "Hi",
		PlanLabel: "Plan",
		Button:    "Open Trainerize Invite",
		SignOff:   "Garcia Builder",
		Steps: []string{
			"Download the Trainerize app and create your account using this invite link.",
			"Fill your profile and availability inside the app.",
			"Expect your personalized plan within 24-48h or reply to this email for any questions.",
		},
	},
	LocalePortuguese: {
		Subject:   "Bem-vindo ao Garcia Builder",
		Heading:   "Bem-vindo ao Garcia Builder: Próximos Passos",
		Greeting:  "Olá",
		PlanLabel: "Plano",
		Button:    "Abrir convite do Trainerize",
		SignOff:   "Garcia Builder",
		Steps: []string{
			"Baixe o aplicativo Trainerize e crie sua conta usando este link de convite.",
			"Preencha seu perfil e disponibilidade no app.",
			"Seu plano personalizado chega em 24-48h. Responda este email em caso de dúvidas.",
		},
	},
}

// BuildOnboardingEmail creates the welcome email with both HTML and text bodies.
func BuildOnboardingEmail(data OnboardingEmailData) domain.Email {
	data.Locale = normalizeLocale(data.Locale, LocaleEnglish)
	if data.PlanName == "" {
		data.PlanName = defaultPlanName
	}
	text := onboardingText[data.Locale]
	return domain.Email{
		Subject:  text.Subject,
		TextBody: buildOnboardingText(data, text),
		HTMLBody: render(onboardingHTML, onboardingView{OnboardingEmailData: data, Copy: text}),
	}
}

func buildOnboardingText(data OnboardingEmailData, text onboardingCopy) string {
	var buf bytes.Buffer
	buf.WriteString(greeting(text.Greeting, data.Name) + "\n\n")
	buf.WriteString(fmt.Sprintf("%s: %s\n\n", text.PlanLabel, data.PlanName))
	buf.WriteString(fmt.Sprintf("%s: %s\n\n", text.Button, data.InviteURL))
	for i, step := range text.Steps {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, step))
	}
	buf.WriteString("\n" + text.SignOff + "\n")
	return buf.String()
}

type onboardingView struct {
	OnboardingEmailData
	Copy onboardingCopy
}

var onboardingHTML = template.Must(template.New("onboarding").Parse(`<!DOCTYPE html>
<html lang="{{.Locale}}">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Copy.Subject}}</title>
</head>
<body style="margin: 0; padding: 24px; font-family: Inter, Arial, sans-serif; color: #0b1220;">
  <h2>{{.Copy.Heading}}</h2>
  <p>{{.Copy.Greeting}}{{if .Name}} {{.Name}}{{end}},</p>
  <p>{{.Copy.PlanLabel}}: <strong>{{.PlanName}}</strong></p>
  <p>
    <a href="{{.InviteURL}}" style="display: inline-block; background: #f6c84e; color: #0b1220; padding: 10px 14px; border-radius: 10px; text-decoration: none; font-weight: 700;">
      {{.Copy.Button}}
    </a>
  </p>
  <ol>
    {{range .Copy.Steps}}<li>{{.}}</li>
    {{end}}
  </ol>
  <p>{{.Copy.SignOff}}</p>
</body>
</html>`))

// ContactConfirmationData holds data for the contact form receipt.
type ContactConfirmationData struct {
	Name   string
	Locale string
}

type confirmationCopy struct {
	Subject, Greeting, Body, Thanks string
}

var confirmationText = map[string]confirmationCopy{
	LocalePortuguese: {
		Subject:  "Recebemos sua mensagem!",
		Greeting: "Olá",
		Body:     "Sua mensagem foi recebida com sucesso! Em breve entraremos em contato.",
		Thanks:   "Obrigado!",
	},
	LocaleEnglish: {
		Subject:  "We received your message!",
		Greeting: "Hi",
		Body:     "Your message was received successfully! We will be in touch soon.",
		Thanks:   "Thank you!",
	},
}

// BuildContactConfirmationEmail creates the receipt sent to a contact form
// visitor. Portuguese unless the locale says otherwise.
func BuildContactConfirmationEmail(data ContactConfirmationData) domain.Email {
	data.Locale = normalizeLocale(data.Locale, LocalePortuguese)
	text := confirmationText[data.Locale]

	var buf bytes.Buffer
	buf.WriteString(greeting(text.Greeting, data.Name) + "\n\n")
	buf.WriteString(text.Body + "\n\n")
	buf.WriteString(text.Thanks + "\n")

	return domain.Email{
		Subject:  text.Subject,
		TextBody: buf.String(),
		HTMLBody: render(confirmationHTML, struct {
			ContactConfirmationData
			Copy confirmationCopy
		}{data, text}),
	}
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(
	`<p>{{.Copy.Greeting}}{{if .Name}} {{.Name}}{{end}},<br><br>{{.Copy.Body}}<br><br>{{.Copy.Thanks}}</p>`))

func greeting(word, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return word + " " + name + ","
	}
	return word + ","
}

func render(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
