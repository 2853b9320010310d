package i18n

import "testing"

func TestGetCatalog_FallsBackToBaseLocale(t *testing.T) {
	cases := []struct {
		requested string
		want      string
	}{
		{"", "en-US"},
		{"en-US", "en-US"},
		{"pt-BR", "pt-BR"},
		{"pt", "pt-BR"},
		{"fr-FR", "en-US"},
		{"not a locale", "en-US"},
	}
	for _, tc := range cases {
		got := GetCatalog(tc.requested)
		if got == nil {
			t.Fatalf("GetCatalog(%q) returned nil", tc.requested)
		}
		if got.Locale() != tc.want {
			t.Fatalf("GetCatalog(%q) = %q, want %q", tc.requested, got.Locale(), tc.want)
		}
	}
}

func TestFormat_TemplatesMetadata(t *testing.T) {
	cat := GetCatalog("en-US")
	msg := cat.Format(CodeEmailInUse, map[string]string{"Email": "coach@x.com"})
	if msg != "An account already exists for coach@x.com" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestFormat_NilMetadataRendersEmptyVariables(t *testing.T) {
	cat := GetCatalog("en-US")
	msg := cat.Format(CodeEmailInUse, nil)
	if msg != "An account already exists for " {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestFormat_UnknownCodeEchoesCode(t *testing.T) {
	cat := GetCatalog("en-US")
	if msg := cat.Format("NO_SUCH_CODE", nil); msg != "NO_SUCH_CODE" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCatalogs_CoverSameCodes(t *testing.T) {
	base := enUSCatalog
	for locale, cat := range catalogs {
		if locale == BaseLocale {
			continue
		}
		for code := range base.messages {
			if _, ok := cat.messages[code]; !ok {
				t.Errorf("locale %s missing message for %s", locale, code)
			}
		}
		for code := range cat.messages {
			if _, ok := base.messages[code]; !ok {
				t.Errorf("locale %s has extra message for %s", locale, code)
			}
		}
	}
}
