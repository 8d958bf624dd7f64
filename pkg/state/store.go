// Package state persists visitor preferences (language, theme) behind a
// pluggable key-value store.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidData = errors.New("invalid data format")
)

// Preference keys.
const (
	KeyLanguage = "language"
	KeyTheme    = "theme"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Store is the interface for state storage backends.
type Store interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with optional TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all keys matching a pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close closes the store.
	Close() error
}

// TypedStore provides type-safe access to the store.
type TypedStore[T any] struct {
	store      Store
	serializer Serializer[T]
}

// NewTypedStore creates a new typed store wrapper.
func NewTypedStore[T any](store Store, serializer Serializer[T]) *TypedStore[T] {
	return &TypedStore[T]{
		store:      store,
		serializer: serializer,
	}
}

// Get retrieves and deserializes a value.
func (ts *TypedStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	data, err := ts.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	return ts.serializer.Deserialize(data)
}

// Set serializes and stores a value.
func (ts *TypedStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := ts.serializer.Serialize(value)
	if err != nil {
		return err
	}

	return ts.store.Set(ctx, key, data, ttl)
}

// Delete removes a key.
func (ts *TypedStore[T]) Delete(ctx context.Context, key string) error {
	return ts.store.Delete(ctx, key)
}

// Serializer handles serialization/deserialization.
type Serializer[T any] interface {
	Serialize(value T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

// Preferences reads and writes one visitor's settings.
type Preferences struct {
	values    *TypedStore[string]
	keyPrefix string
	ttl       time.Duration
}

// PreferencesOption configures Preferences.
type PreferencesOption func(*Preferences)

// WithKeyPrefix sets the key prefix. The visitor id is appended to it.
func WithKeyPrefix(prefix string) PreferencesOption {
	return func(p *Preferences) {
		p.keyPrefix = prefix
	}
}

// WithTTL sets how long preferences are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) PreferencesOption {
	return func(p *Preferences) {
		p.ttl = ttl
	}
}

// NewPreferences scopes store to visitor.
func NewPreferences(store Store, visitor string, opts ...PreferencesOption) *Preferences {
	p := &Preferences{
		values:    NewTypedStore[string](store, NewMsgPackCodec[string]()),
		keyPrefix: "scholarpage:pref:",
		ttl:       365 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.keyPrefix += visitor + ":"
	return p
}

// Get returns the stored value for key. ok is false when nothing is stored.
func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := p.values.Get(ctx, p.keyPrefix+key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state: get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	if err := p.values.Set(ctx, p.keyPrefix+key, value, p.ttl); err != nil {
		return fmt.Errorf("state: set %s: %w", key, err)
	}
	return nil
}

// Delete forgets key.
func (p *Preferences) Delete(ctx context.Context, key string) error {
	return p.values.Delete(ctx, p.keyPrefix+key)
}

// All returns every stored preference of the visitor.
func (p *Preferences) All(ctx context.Context) (map[string]string, error) {
	keys, err := p.values.store.Keys(ctx, p.keyPrefix+"*")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := p.values.Get(ctx, k)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(k, p.keyPrefix)] = v
	}
	return out, nil
}

// DefaultTheme applies when nothing valid is stored.
const DefaultTheme = ThemeDark

// NormalizeTheme maps unknown values to DefaultTheme.
func NormalizeTheme(theme string) string {
	switch theme {
	case ThemeLight, ThemeDark:
		return theme
	default:
		return DefaultTheme
	}
}
