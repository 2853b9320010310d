// Package i18n provides localized user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from the errors package
// to avoid an import cycle).
type Code = string

// BaseLocale is the canonical source locale for catalogs.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var catalogs = map[string]*Catalog{
	"en-US": enUSCatalog,
	"pt-BR": ptBRCatalog,
}

// supportedLocales fixes the matcher order; the base locale comes first so it
// wins ties and is the ultimate fallback.
var supportedLocales = []string{"en-US", "pt-BR"}

var matcher = newMatcher()

func newMatcher() language.Matcher {
	tags := make([]language.Tag, 0, len(supportedLocales))
	for _, locale := range supportedLocales {
		tags = append(tags, language.MustParse(locale))
	}
	return language.NewMatcher(tags)
}

// GetCatalog returns the catalog best matching the requested locale.
// Unknown or empty locales resolve to the base locale.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		return catalogs[BaseLocale]
	}
	if c, ok := catalogs[requested]; ok {
		return c
	}

	tag, err := language.Parse(requested)
	if err != nil {
		return catalogs[BaseLocale]
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return catalogs[BaseLocale]
	}
	if c, ok := catalogs[supportedLocales[index]]; ok {
		return c
	}
	return catalogs[BaseLocale]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found. Templates are
// always executed even with nil metadata so variables render as empty rather
// than leaking template syntax.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}

	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// NewCatalog creates a catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}
