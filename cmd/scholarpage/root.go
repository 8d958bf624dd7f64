package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/scholarpage/internal/config"
	"github.com/gabrielmiguelok/scholarpage/internal/site"
	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

type rootOptions struct {
	configFile string
	contentDir string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "scholarpage",
		Short: "Bilingual academic homepage server",
		Long: `scholarpage renders a personal academic homepage from per-language
content files and keeps every open browser in sync over a live websocket:
switching language, tabs or sections re-renders only what changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", config.DefaultPath, "config file path")
	cmd.PersistentFlags().StringVar(&opts.contentDir, "content", "", "content directory (overrides content.dir)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newRenderCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads and validates the config with flag overrides applied.
func (o *rootOptions) load() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.contentDir != "" {
		cfg.Content.Dir = o.contentDir
		cfg.Content.BaseURL = ""
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// open assembles the site. The caller closes it.
func (o *rootOptions) open(ctx context.Context) (*config.Config, *site.Site, logging.Logger, error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := newSite(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, s, logger, nil
}

func newSite(ctx context.Context, cfg *config.Config, logger logging.Logger) (*site.Site, error) {
	return site.New(ctx, cfg, site.WithLogger(logger), site.WithVersion(Version))
}
