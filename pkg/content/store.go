package content

import (
	"fmt"
	"sort"
	"sync"
)

// Reader is the read side of the store that renderers borrow.
type Reader interface {
	Get(lang string, t Type) (Payload, bool)
}

// Store holds payloads keyed by language and type.
//
// Per language a type is either present (possibly empty) or absent. Absent
// types may carry the error that made them absent. Readers may observe the
// store at any point of an incremental load.
type Store struct {
	mu      sync.RWMutex
	data    map[string]map[Type]Payload
	missing map[string]map[Type]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:    make(map[string]map[Type]Payload),
		missing: make(map[string]map[Type]error),
	}
}

// Get returns the payload for lang and t.
func (s *Store) Get(lang string, t Type) (Payload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[lang][t]
	return p, ok
}

// SetAll replaces everything known about lang with payloads. Types not in
// payloads become absent.
func (s *Store) SetAll(lang string, payloads map[Type]Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[Type]Payload, len(payloads))
	for t, p := range payloads {
		if p != nil {
			m[t] = p
		}
	}
	s.data[lang] = m
	delete(s.missing, lang)
}

// Set stores one payload, clearing any earlier failure for it.
func (s *Store) Set(lang string, t Type, p Payload) {
	if p == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[lang] == nil {
		s.data[lang] = make(map[Type]Payload)
	}
	s.data[lang][t] = p
	delete(s.missing[lang], t)
}

// MarkUnavailable records that t could not be loaded for lang. Any payload
// previously stored for it is dropped.
func (s *Store) MarkUnavailable(lang string, t Type, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.missing[lang] == nil {
		s.missing[lang] = make(map[Type]error)
	}
	s.missing[lang][t] = cause
	delete(s.data[lang], t)
}

// Unavailable returns nil when t is present for lang and an error wrapping
// ErrUnavailable otherwise.
func (s *Store) Unavailable(lang string, t Type) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data[lang][t]; ok {
		return nil
	}
	if cause, ok := s.missing[lang][t]; ok && cause != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrUnavailable, lang, t, cause)
	}
	return fmt.Errorf("%w: %s/%s", ErrUnavailable, lang, t)
}

// Missing lists the types recorded as unavailable for lang, in type order.
func (s *Store) Missing(lang string) []Type {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Type, 0, len(s.missing[lang]))
	for t := range s.missing[lang] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Languages returns the languages with any payload or failure, sorted.
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.data)+len(s.missing))
	for lang := range s.data {
		seen[lang] = struct{}{}
	}
	for lang := range s.missing {
		seen[lang] = struct{}{}
	}

	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// HasItems reports whether t is a non-empty sequence for lang.
func (s *Store) HasItems(lang string, t Type) bool {
	return HasItems(s, lang, t)
}

// HasItems reports whether r holds a non-empty sequence for lang and t.
// Absent, empty and non-sequence payloads all report false.
func HasItems(r Reader, lang string, t Type) bool {
	p, ok := r.Get(lang, t)
	if !ok {
		return false
	}
	seq, ok := p.(Sequence)
	return ok && seq.Len() > 0
}

// Lookup returns the payload for lang and t as a T.
func Lookup[T Payload](r Reader, lang string, t Type) (T, bool) {
	var zero T
	p, ok := r.Get(lang, t)
	if !ok {
		return zero, false
	}
	v, ok := p.(T)
	return v, ok
}
