// Package i18n provides the static UI text catalog for scholarpage.
package i18n

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Params holds named values for {placeholder} substitution.
type Params map[string]any

// Catalog maps language -> key -> text.
//
// Lookups never fail: a missing key resolves to the key itself so the page
// never renders a blank label.
type Catalog struct {
	texts  map[string]map[string]string // lang -> key -> value
	logger logging.Logger
	mu     sync.RWMutex
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithLogger sets the logger used to report missing keys.
func WithLogger(l logging.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logging.OrNop(l)
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{
		texts:  make(map[string]map[string]string),
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a catalog preloaded with the built-in en and zh texts.
func Default(opts ...CatalogOption) *Catalog {
	c := NewCatalog(opts...)
	for lang, texts := range builtin {
		c.Load(lang, texts)
	}
	return c
}

// Load merges texts for a language, overriding existing keys.
func (c *Catalog) Load(lang string, texts map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.texts[lang] == nil {
		c.texts[lang] = make(map[string]string, len(texts))
	}
	for key, value := range texts {
		c.texts[lang][key] = value
	}
}

// LoadDir merges override files from fsys. Each file is named after its
// language (en.yaml, zh.json, ...). JSON files go through the YAML decoder.
func (c *Catalog) LoadDir(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("i18n: read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := path.Ext(entry.Name())
		switch ext {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}

		var texts map[string]string
		if err := yaml.Unmarshal(data, &texts); err != nil {
			return fmt.Errorf("i18n: decode %s: %w", entry.Name(), err)
		}
		c.Load(strings.TrimSuffix(entry.Name(), ext), texts)
	}
	return nil
}

// Has reports whether lang has key.
func (c *Catalog) Has(key, lang string) bool {
	_, ok := c.lookup(lang, key)
	return ok
}

// GetText resolves key for lang and substitutes {name} placeholders from
// params. Substitution happens once; values containing placeholders are not
// expanded again.
func (c *Catalog) GetText(key string, params Params, lang string) string {
	value, ok := c.lookup(lang, key)
	if !ok {
		c.logger.Debug("missing text", logging.Lang(lang), logging.String("key", key))
		return key
	}
	return interpolate(value, params)
}

// Text is GetText without parameters.
func (c *Catalog) Text(key, lang string) string {
	return c.GetText(key, nil, lang)
}

// Languages returns the languages with at least one text, sorted.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	langs := make([]string, 0, len(c.texts))
	for lang := range c.texts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	texts, ok := c.texts[lang]
	if !ok {
		return "", false
	}
	value, ok := texts[key]
	return value, ok
}

func interpolate(template string, params Params) string {
	if len(params) == 0 || !strings.Contains(template, "{") {
		return template
	}

	// strings.Replacer scans the template once, so replaced values are never
	// rescanned for further placeholders.
	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(value))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Context helpers

type catalogContextKey struct{}

// WithCatalog adds a catalog to context.
func WithCatalog(ctx context.Context, c *Catalog) context.Context {
	return context.WithValue(ctx, catalogContextKey{}, c)
}

// CatalogFromContext retrieves a catalog from context.
func CatalogFromContext(ctx context.Context) *Catalog {
	c, _ := ctx.Value(catalogContextKey{}).(*Catalog)
	return c
}
