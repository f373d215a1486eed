// Package i18n loads message bundles (one YAML file per language code) and
// resolves localized templates with {placeholder} substitution.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed bundles/*.yaml
var embedded embed.FS

const DefaultLanguage = "en_us"

type Localizer struct {
	bundles map[string]map[string]string
}

// Load builds a Localizer from the bundles compiled into the binary.
func Load() (*Localizer, error) {
	return loadFS(embedded, "bundles")
}

// LoadDir builds a Localizer from an on-disk bundle directory.
func LoadDir(dir string) (*Localizer, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (*Localizer, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	bundles := make(map[string]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return nil, err
		}
		bundle := make(map[string]string)
		if err := yaml.Unmarshal(data, &bundle); err != nil {
			return nil, fmt.Errorf("bundle %s malformed: %w", name, err)
		}
		code := strings.TrimSuffix(name, ".yaml")
		bundles[code] = bundle
	}

	if _, ok := bundles[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default bundle %s missing", DefaultLanguage)
	}
	return &Localizer{bundles: bundles}, nil
}

// Resolve looks up a key in the bundle for lang, falling back to the default
// bundle and finally to the raw key. It never fails; a missing translation
// degrades to a visible key. Every occurrence of each {name} token in the
// template is replaced.
func (l *Localizer) Resolve(lang, key string, vars map[string]string) string {
	template, ok := l.lookup(lang, key)
	if !ok {
		template, ok = l.lookup(DefaultLanguage, key)
	}
	if !ok {
		template = key
	}
	for name, value := range vars {
		template = strings.ReplaceAll(template, "{"+name+"}", value)
	}
	return template
}

func (l *Localizer) lookup(lang, key string) (string, bool) {
	bundle, ok := l.bundles[lang]
	if !ok {
		return "", false
	}
	template, ok := bundle[key]
	return template, ok
}

func (l *Localizer) Has(lang string) bool {
	_, ok := l.bundles[lang]
	return ok
}

func (l *Localizer) Languages() []string {
	codes := make([]string, 0, len(l.bundles))
	for code := range l.bundles {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Normalize maps a platform locale tag like "pt-BR" to a loaded bundle code,
// returning the default language when no bundle matches.
func (l *Localizer) Normalize(locale string) string {
	code := strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	if l.Has(code) {
		return code
	}
	if idx := strings.Index(code, "_"); idx > 0 {
		prefix := code[:idx]
		for loaded := range l.bundles {
			if strings.HasPrefix(loaded, prefix+"_") || loaded == prefix {
				return loaded
			}
		}
	}
	return DefaultLanguage
}
