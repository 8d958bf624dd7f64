// Package site assembles a scholarpage server from its configuration: the
// content loader and store, the text catalog, visitor preferences, the
// notification bus, health checks and the live router.
package site

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabrielmiguelok/scholarpage/client"
	"github.com/gabrielmiguelok/scholarpage/internal/config"
	"github.com/gabrielmiguelok/scholarpage/internal/devserver"
	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/health"
	"github.com/gabrielmiguelok/scholarpage/pkg/i18n"
	"github.com/gabrielmiguelok/scholarpage/pkg/language"
	"github.com/gabrielmiguelok/scholarpage/pkg/live"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
	"github.com/gabrielmiguelok/scholarpage/pkg/metrics"
	"github.com/gabrielmiguelok/scholarpage/pkg/page"
	"github.com/gabrielmiguelok/scholarpage/pkg/pubsub"
	"github.com/gabrielmiguelok/scholarpage/pkg/router"
	"github.com/gabrielmiguelok/scholarpage/pkg/sections"
	"github.com/gabrielmiguelok/scholarpage/pkg/shutdown"
	"github.com/gabrielmiguelok/scholarpage/pkg/state"
)

// ErrUnknownSection is returned by Render for a section it cannot show.
var ErrUnknownSection = errors.New("site: unknown section")

// Option configures a Site.
type Option func(*Site)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Site) { s.logger = logging.OrNop(l) }
}

// WithVersion is reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Site) { s.version = v }
}

// WithFetcher replaces the fetcher derived from the content config.
func WithFetcher(f content.Fetcher) Option {
	return func(s *Site) { s.fetcher = f }
}

// WithNow fixes the clock used by the pages.
func WithNow(now func() time.Time) Option {
	return func(s *Site) { s.now = now }
}

// Site is one assembled server.
type Site struct {
	cfg     *config.Config
	logger  logging.Logger
	version string
	now     func() time.Time

	fetcher content.Fetcher
	loader  *content.Loader
	store   *content.Store
	lang    language.Config
	catalog *i18n.Catalog
	prefs   *state.MemoryStore
	bus     *pubsub.MemoryPubSub
	health  *health.Checker
	metrics *metrics.Metrics
	router  *router.Router
}

// New builds a site and loads its content. Types that fail to load are
// recorded in the store and reported by Missing; they never fail New. Only
// an unreadable site config or catalog does.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Site, error) {
	s := &Site{
		cfg:     cfg,
		logger:  logging.NopLogger{},
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetcherFor(cfg.Content)
	}

	siteCfg, err := content.LoadSiteConfig(ctx, s.fetcher)
	if err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}
	s.lang = language.Config{Available: siteCfg.AvailableLanguages, Default: siteCfg.DefaultLanguage}
	if err := s.lang.Validate(); err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}

	s.catalog = i18n.Default(i18n.WithLogger(s.logger))
	if dir := cfg.Content.CatalogDir; dir != "" {
		if err := s.catalog.LoadDir(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("site: %w", err)
		}
	}

	lopts := []content.LoaderOption{content.WithLoaderLogger(s.logger)}
	if cfg.Content.Concurrency > 0 {
		lopts = append(lopts, content.WithConcurrency(cfg.Content.Concurrency))
	}
	s.loader = content.NewLoader(s.fetcher, lopts...)
	s.store = content.NewStore()
	if err := s.loader.LoadAll(ctx, s.lang.Available, s.store); err != nil {
		s.logger.Warn("content partially loaded", logging.Err(err))
	}

	s.metrics = metrics.NewMetrics("scholarpage")
	s.prefs = state.NewMemoryStore()
	s.bus = pubsub.NewMemoryPubSub(pubsub.WithLogger(s.logger))
	s.router = s.newRouter()
	return s, nil
}

func fetcherFor(c config.ContentConfig) content.Fetcher {
	if c.BaseURL != "" {
		return content.NewHTTPFetcher(c.BaseURL)
	}
	return content.NewFSFetcher(os.DirFS(c.Dir), ".")
}

func (s *Site) newRouter() *router.Router {
	deps := &live.Deps{
		Store:             s.store,
		Site:              s.lang,
		Catalog:           s.catalog,
		Loader:            s.loader,
		Logger:            s.logger,
		Title:             s.cfg.Server.Title,
		Now:               s.now,
		Prefs:             s.prefs,
		PrefTTL:           s.cfg.Preferences.TTL,
		PubSub:            s.bus,
		NegotiateLanguage: s.cfg.Live.NegotiateLanguage,
	}

	s.health = health.NewChecker(s.version)
	s.health.AddCriticalCheck("content", health.ContentCheck(s.store, s.lang.Available), 2*time.Second)
	s.health.AddCheck("content types", health.ContentTypesCheck(s.store, s.lang.Available), 2*time.Second)

	opts := []router.Option{
		router.WithLogger(s.logger),
		router.WithHealth(s.health.Handler()),
		router.WithClientScript(client.Script()),
		router.WithWebSocketConfig(s.cfg.WebSocket()),
		router.WithTimeouts(s.cfg.Timeouts()),
		router.WithMaxSessions(s.cfg.Live.MaxSessions),
		router.WithVisitorCookie(router.DefaultVisitorCookie, s.cfg.Server.CookieSecure),
		router.WithLiveRateLimit(s.cfg.Live.RateLimit),
		router.WithMetrics(s.metrics),
	}
	if dir := s.imagesDir(); dir != "" {
		opts = append(opts, router.WithImages(os.DirFS(dir)))
	}
	r := router.New(live.Factory(deps), opts...)

	s.health.AddCheck("sessions", health.SessionsCheck(r.Sessions().Count, s.cfg.Live.MaxSessions), time.Second)
	return r
}

func (s *Site) imagesDir() string {
	dir := s.cfg.Server.ImagesDir
	if dir == "" {
		return ""
	}
	if !filepath.IsAbs(dir) && s.cfg.Content.BaseURL == "" && s.cfg.Content.Dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = filepath.Join(s.cfg.Content.Dir, dir)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		s.logger.Debug("no images directory", logging.String("dir", dir))
		return ""
	}
	return dir
}

// Handler serves the site.
func (s *Site) Handler() http.Handler {
	return s.router
}

// Languages returns the configured languages.
func (s *Site) Languages() language.Config {
	return s.lang
}

// Store exposes the content store.
func (s *Site) Store() *content.Store {
	return s.store
}

// Missing lists, per language, the content types that could not be loaded.
func (s *Site) Missing() map[string][]content.Type {
	out := make(map[string][]content.Type)
	for _, lang := range s.lang.Available {
		if m := s.store.Missing(lang); len(m) > 0 {
			out[lang] = m
		}
	}
	return out
}

// Reload re-reads every language and tells mounted pages to re-render. As
// in New, files that fail to load are recorded in the store and logged; only
// a failed announcement is returned.
func (s *Site) Reload(ctx context.Context) error {
	var errs []error
	for _, lang := range s.lang.Available {
		if err := s.loader.Reload(ctx, lang, s.store); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("content partially reloaded", logging.Err(err))
	}
	if err := pubsub.NewBroadcaster(s.bus).ContentReloaded(s.lang.Available); err != nil {
		return fmt.Errorf("site: announce reload: %w", err)
	}
	s.metrics.ContentReloads.Inc()
	s.logger.Info("content reloaded", logging.Int("languages", len(s.lang.Available)))
	return nil
}

// RenderOptions selects what Render shows.
type RenderOptions struct {
	Lang    string
	Section string
	Tab     string
}

// Render writes one standalone document without any visitor state.
func (s *Site) Render(ctx context.Context, w io.Writer, opts RenderOptions) error {
	popts := []page.Option{
		page.WithCatalog(s.catalog),
		page.WithLoader(s.loader),
		page.WithLogger(s.logger),
	}
	if s.cfg.Server.Title != "" {
		popts = append(popts, page.WithTitle(s.cfg.Server.Title))
	}
	if s.now != nil {
		popts = append(popts, page.WithNow(s.now))
	}

	cfg := s.lang
	if opts.Lang != "" {
		if !cfg.Supports(opts.Lang) {
			return fmt.Errorf("site: render: %w: %q", language.ErrUnsupportedLanguage, opts.Lang)
		}
		cfg.Default = opts.Lang
	}

	p := page.New(s.store, popts...)
	if err := p.Bootstrap(ctx, cfg); err != nil {
		return fmt.Errorf("site: render: %w", err)
	}

	if opts.Section != "" {
		name, id, ok := section(opts.Section)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSection, opts.Section)
		}
		if err := p.HandleEvent(ctx, page.EventShowSection, map[string]any{"section": id}); err != nil {
			return fmt.Errorf("site: render: %w", err)
		}
		if opts.Tab != "" && name != sections.HomeName {
			payload := map[string]any{"section": name, "tab": opts.Tab}
			if err := p.HandleEvent(ctx, page.EventSelectTab, payload); err != nil {
				return fmt.Errorf("site: render: %w", err)
			}
		}
	}
	return p.Render(w)
}

// section accepts a section name (experiences) or element id
// (experiences-section).
func section(s string) (name, id string, ok bool) {
	name = strings.TrimSuffix(s, "-section")
	switch name {
	case sections.HomeName, sections.ExperiencesName, sections.PublicationsName:
		return name, name + "-section", true
	}
	return "", "", false
}

// Serve runs the HTTP server until a stop signal arrives or ctx ends. SIGHUP
// reloads content.
func (s *Site) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sd := shutdown.DefaultConfig()
	sd.Timeout = s.cfg.Server.ShutdownTimeout
	sd.Logger = s.logger
	handler := shutdown.NewHandler(sd)
	handler.RegisterFunc("http", shutdown.PriorityHTTP, srv.Shutdown)
	handler.RegisterFunc("live sessions", shutdown.PrioritySessions, s.router.Shutdown)
	handler.RegisterFunc("background", shutdown.PrioritySessions, func(context.Context) error {
		cancel()
		return nil
	})
	handler.RegisterCloser("pubsub", shutdown.PriorityBus, s.bus)
	handler.RegisterCloser("preferences", shutdown.PriorityStore, s.prefs)
	handler.OnReload("content", s.Reload)

	go s.router.Janitor(runCtx)
	if s.cfg.Dev.Watch {
		w := devserver.New(&devserver.Config{
			Dir:      s.cfg.Content.Dir,
			Debounce: s.cfg.Dev.Debounce,
			Reload:   s.Reload,
			Logger:   s.logger,
		})
		go func() {
			if err := w.Run(runCtx); err != nil {
				s.logger.Warn("content watcher stopped", logging.Err(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- handler.Wait(runCtx) }()

	select {
	case err, ok := <-serveErr:
		if ok {
			_ = handler.Shutdown()
			<-waitErr
			return fmt.Errorf("site: serve: %w", err)
		}
		return <-waitErr
	case err := <-waitErr:
		return err
	}
}

// Close releases the resources of a site that never served.
func (s *Site) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(s.router.Shutdown(ctx), s.bus.Close(), s.prefs.Close())
}
