package limits

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	msgDeniedLifetime = "limits.denied.lifetime"
	msgDeniedMonthly  = "limits.denied.monthly"
)

type translation struct {
	tag     language.Tag
	entries map[string]string
}

var builtinTranslations = []translation{
	{
		tag: language.English,
		entries: map[string]string{
			msgDeniedLifetime: "You have reached the limit of %[1]d %[2]s. Please upgrade to a Pro or Enterprise plan to add unlimited %[2]s.",
			msgDeniedMonthly:  "You have reached the monthly limit of %[1]d %[2]s. Please upgrade to a Pro or Enterprise plan for unlimited %[2]s.",

			"limits.resource.customers":      "customers",
			"limits.resource.qr_codes":       "QR codes",
			"limits.resource.documents":      "documents",
			"limits.resource.api_calls":      "API calls",
			"limits.resource.storage":        "MB of storage",
			"limits.resource.team_members":   "team members",
			"limits.resource.webhooks":       "webhooks",
			"limits.resource.custom_domains": "custom domains",
			"limits.resource.email_sends":    "emails",
		},
	},
	{
		tag: language.German,
		entries: map[string]string{
			msgDeniedLifetime: "Sie haben das Limit von %[1]d %[2]s erreicht. Bitte upgraden Sie auf einen Pro- oder Enterprise-Plan, um unbegrenzt %[2]s anzulegen.",
			msgDeniedMonthly:  "Sie haben das monatliche Limit von %[1]d %[2]s erreicht. Bitte upgraden Sie auf einen Pro- oder Enterprise-Plan für unbegrenzte %[2]s.",

			"limits.resource.customers":      "Kunden",
			"limits.resource.qr_codes":       "QR-Codes",
			"limits.resource.documents":      "Dokumente",
			"limits.resource.api_calls":      "API-Aufrufe",
			"limits.resource.storage":        "MB Speicher",
			"limits.resource.team_members":   "Teammitglieder",
			"limits.resource.webhooks":       "Webhooks",
			"limits.resource.custom_domains": "eigene Domains",
			"limits.resource.email_sends":    "E-Mails",
		},
	},
}

// Messages renders localized denial messages. English is the fallback
// language.
type Messages struct {
	catalog  *catalog.Builder
	fallback language.Tag
}

// NewMessages builds the catalog with the built-in English and German texts.
func NewMessages() *Messages {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, tr := range builtinTranslations {
		for key, msg := range tr.entries {
			if err := b.SetString(tr.tag, key, msg); err != nil {
				panic("limits: invalid built-in message " + key + ": " + err.Error())
			}
		}
	}
	return &Messages{catalog: b, fallback: language.English}
}

// Set overrides or adds one message for a language.
func (m *Messages) Set(tag language.Tag, key, msg string) error {
	return m.catalog.SetString(tag, key, msg)
}

// Denied renders the denial message for res naming the numeric limit.
func (m *Messages) Denied(tag language.Tag, res Resource, p Period, limit Limit) string {
	if tag == language.Und {
		tag = m.fallback
	}
	printer := message.NewPrinter(tag, message.Catalog(m.catalog))
	label := printer.Sprintf("limits.resource." + string(res))

	key := msgDeniedLifetime
	if p == PeriodMonthly {
		key = msgDeniedMonthly
	}
	return printer.Sprintf(key, int64(limit), label)
}

type languageKey struct{}

// WithLanguage stores the caller's preferred language for denial messages.
func WithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, languageKey{}, tag)
}

// LanguageFromContext returns the stored language or language.Und.
func LanguageFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(languageKey{}).(language.Tag); ok {
		return tag
	}
	return language.Und
}
