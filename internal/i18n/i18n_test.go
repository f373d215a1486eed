package i18n

import (
	"testing"
	"testing/fstest"
)

func testLocalizer(t *testing.T) *Localizer {
	t.Helper()
	fsys := fstest.MapFS{
		"en_us.yaml": {Data: []byte("greeting: \"Hello {name}, yes {name}\"\nonly_default: \"default text\"\n")},
		"pt_br.yaml": {Data: []byte("greeting: \"Olá {name}\"\n")},
	}
	loc, err := loadFS(fsys, ".")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return loc
}

func TestResolveExactBundle(t *testing.T) {
	loc := testLocalizer(t)
	got := loc.Resolve("pt_br", "greeting", map[string]string{"name": "Ana"})
	if got != "Olá Ana" {
		t.Fatalf("unexpected resolution: %q", got)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	loc := testLocalizer(t)
	if got := loc.Resolve("pt_br", "only_default", nil); got != "default text" {
		t.Fatalf("expected default bundle fallback, got %q", got)
	}
	missing := loc.Resolve("de_de", "greeting", map[string]string{"name": "Ana"})
	want := loc.Resolve("en_us", "greeting", map[string]string{"name": "Ana"})
	if missing != want {
		t.Fatalf("unloaded language must resolve like en_us: %q vs %q", missing, want)
	}
}

func TestResolveUnknownKeyReturnsKey(t *testing.T) {
	loc := testLocalizer(t)
	if got := loc.Resolve("en_us", "nonexistent_key", nil); got != "nonexistent_key" {
		t.Fatalf("expected raw key, got %q", got)
	}
}

func TestResolveReplacesAllOccurrences(t *testing.T) {
	loc := testLocalizer(t)
	got := loc.Resolve("en_us", "greeting", map[string]string{"name": "Bob"})
	if got != "Hello Bob, yes Bob" {
		t.Fatalf("expected all placeholder occurrences replaced, got %q", got)
	}
}

func TestLoadMalformedBundle(t *testing.T) {
	fsys := fstest.MapFS{
		"en_us.yaml": {Data: []byte("greeting: \"hi\"\n")},
		"pt_br.yaml": {Data: []byte(":\n\t- broken")},
	}
	if _, err := loadFS(fsys, "."); err == nil {
		t.Fatalf("expected error for malformed bundle")
	}
}

func TestLoadMissingDefaultBundle(t *testing.T) {
	fsys := fstest.MapFS{
		"pt_br.yaml": {Data: []byte("greeting: \"hi\"\n")},
	}
	if _, err := loadFS(fsys, "."); err == nil {
		t.Fatalf("expected error when en_us is missing")
	}
}

func TestNormalize(t *testing.T) {
	loc := testLocalizer(t)
	cases := map[string]string{
		"pt-BR": "pt_br",
		"pt_br": "pt_br",
		"en-US": "en_us",
		"en-GB": "en_us",
		"de":    "en_us",
		"":      "en_us",
	}
	for locale, want := range cases {
		if got := loc.Normalize(locale); got != want {
			t.Fatalf("normalize %q: expected %q, got %q", locale, want, got)
		}
	}
}

func TestEmbeddedBundlesLoad(t *testing.T) {
	loc, err := Load()
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	if !loc.Has(DefaultLanguage) {
		t.Fatalf("expected %s bundle", DefaultLanguage)
	}
	for _, lang := range loc.Languages() {
		if got := loc.Resolve(lang, "error_not_configured", nil); got == "error_not_configured" {
			t.Fatalf("bundle %s missing error_not_configured", lang)
		}
	}
}
