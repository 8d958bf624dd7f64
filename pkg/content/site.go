package content

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// SiteConfigFile is the name of the site config at the content root.
const SiteConfigFile = "config.json"

// SiteConfig lists the languages a site is published in.
type SiteConfig struct {
	AvailableLanguages []string `yaml:"availableLanguages" json:"availableLanguages"`
	DefaultLanguage    string   `yaml:"defaultLanguage" json:"defaultLanguage"`
}

// DefaultSiteConfig is the bilingual layout used when no config exists.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		AvailableLanguages: []string{"en", "zh"},
		DefaultLanguage:    "en",
	}
}

// LoadSiteConfig reads config.json through f. A missing file yields the
// default config; missing fields are filled from it. JSON is parsed with the
// YAML decoder, so config.yaml-style content is accepted as well.
func LoadSiteConfig(ctx context.Context, f Fetcher) (SiteConfig, error) {
	def := DefaultSiteConfig()

	data, err := f.Fetch(ctx, SiteConfigFile)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return SiteConfig{}, fmt.Errorf("content: site config: %w", err)
	}

	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("content: decode site config: %w", err)
	}
	if len(cfg.AvailableLanguages) == 0 {
		cfg.AvailableLanguages = def.AvailableLanguages
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = cfg.AvailableLanguages[0]
	}
	return cfg, nil
}
