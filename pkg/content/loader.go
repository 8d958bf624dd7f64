package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/sync/errgroup"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Loader fetches and decodes content files into a Store.
type Loader struct {
	fetcher     Fetcher
	logger      logging.Logger
	types       []Type
	markdown    goldmark.Markdown
	concurrency int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger for degraded content.
func WithLoaderLogger(l logging.Logger) LoaderOption {
	return func(ld *Loader) {
		ld.logger = logging.OrNop(l)
	}
}

// WithTypes restricts the loader to the given types.
func WithTypes(types ...Type) LoaderOption {
	return func(ld *Loader) {
		ld.types = types
	}
}

// WithConcurrency bounds the number of in-flight fetches per language.
func WithConcurrency(n int) LoaderOption {
	return func(ld *Loader) {
		ld.concurrency = n
	}
}

// NewLoader creates a loader that reads through f.
func NewLoader(f Fetcher, opts ...LoaderOption) *Loader {
	ld := &Loader{
		fetcher:     f,
		logger:      logging.NopLogger{},
		types:       Types(),
		markdown:    goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// LoadLanguage fetches every type for lang concurrently and fills store as
// each fetch resolves. A failed type is marked unavailable and the rest keep
// loading; the returned error joins all failures.
func (ld *Loader) LoadLanguage(ctx context.Context, lang string, store *Store) error {
	return ld.each(ctx, lang, func(t Type, p Payload, err error) {
		if err != nil {
			store.MarkUnavailable(lang, t, err)
			return
		}
		store.Set(lang, t, p)
	})
}

// Reload fetches every type for lang and swaps the whole language into
// store at once.
func (ld *Loader) Reload(ctx context.Context, lang string, store *Store) error {
	var mu sync.Mutex
	payloads := make(map[Type]Payload, len(ld.types))
	failed := make(map[Type]error)

	err := ld.each(ctx, lang, func(t Type, p Payload, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed[t] = err
			return
		}
		payloads[t] = p
	})

	store.SetAll(lang, payloads)
	for t, cause := range failed {
		store.MarkUnavailable(lang, t, cause)
	}
	return err
}

// LoadAll loads every language in langs.
func (ld *Loader) LoadAll(ctx context.Context, langs []string, store *Store) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, lang := range langs {
		g.Go(func() error {
			if err := ld.LoadLanguage(gctx, lang, store); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// FetchInfo fetches the info block for lang directly, bypassing any store.
func (ld *Loader) FetchInfo(ctx context.Context, lang string) (Info, error) {
	p, err := ld.fetchType(ctx, lang, TypeInfo)
	if err != nil {
		return Info{}, err
	}
	info, _ := p.(Info)
	return info, nil
}

func (ld *Loader) each(ctx context.Context, lang string, sink func(Type, Payload, error)) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if ld.concurrency > 0 {
		g.SetLimit(ld.concurrency)
	}

	for _, t := range ld.types {
		g.Go(func() error {
			p, err := ld.fetchType(gctx, lang, t)
			if err != nil {
				ld.logger.Warn("content unavailable",
					logging.Lang(lang), logging.ContentType(t.String()), logging.Err(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			sink(t, p, err)
			// Failures are recorded, never returned: one missing file must
			// not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (ld *Loader) fetchType(ctx context.Context, lang string, t Type) (Payload, error) {
	if t == TypeIntro {
		return ld.fetchIntro(ctx, lang)
	}

	name := path.Join(lang, t.FileName(lang))
	data, err := ld.fetcher.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p, err := Decode(t, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

// fetchIntro prefers a Markdown intro and falls back to plain text.
func (ld *Loader) fetchIntro(ctx context.Context, lang string) (Payload, error) {
	mdName := path.Join(lang, "intro_"+lang+".md")
	data, err := ld.fetcher.Fetch(ctx, mdName)
	switch {
	case err == nil:
		var buf bytes.Buffer
		if err := ld.markdown.Convert(data, &buf); err != nil {
			return nil, fmt.Errorf("%s: %w", mdName, err)
		}
		return Intro{Text: string(data), HTML: strings.TrimSpace(buf.String())}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("%s: %w", mdName, err)
	}

	txtName := path.Join(lang, TypeIntro.FileName(lang))
	data, err = ld.fetcher.Fetch(ctx, txtName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", txtName, err)
	}
	return Decode(TypeIntro, data)
}
