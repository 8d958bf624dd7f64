package language

import (
	"fmt"
	"slices"

	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
)

// Config is the set of languages a page offers.
type Config struct {
	Available []string
	Default   string
}

// Validate checks that Available is a non-empty set of valid codes that
// contains Default.
func (c Config) Validate() error {
	if len(c.Available) == 0 {
		return fmt.Errorf("%w: no available languages", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Available))
	for _, code := range c.Available {
		if !i18n.Valid(code) {
			return fmt.Errorf("%w: invalid language code %q", ErrInvalidConfig, code)
		}
		if seen[code] {
			return fmt.Errorf("%w: duplicate language %q", ErrInvalidConfig, code)
		}
		seen[code] = true
	}
	if !seen[c.Default] {
		return fmt.Errorf("%w: default %q is not available", ErrInvalidConfig, c.Default)
	}
	return nil
}

// Supports reports whether code is available.
func (c Config) Supports(code string) bool {
	return slices.Contains(c.Available, code)
}

// Multi reports whether there is more than one language to switch between.
func (c Config) Multi() bool {
	return len(c.Available) > 1
}

// Next returns the language after current in Available, wrapping around.
func (c Config) Next(current string) string {
	if len(c.Available) == 0 {
		return current
	}
	i := slices.Index(c.Available, current)
	return c.Available[(i+1)%len(c.Available)]
}
