package main

import (
	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/scholarpage/pkg/logging"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the homepage",
		Long: `Serves the homepage and its live endpoint until SIGINT or SIGTERM.
SIGHUP re-reads the content and refreshes every open page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if watch {
				cfg.Dev.Watch = true
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			s, err := newSite(ctx, cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("starting scholarpage",
				logging.String("version", Version),
				logging.String("addr", cfg.Server.Addr),
				logging.Bool("watch", cfg.Dev.Watch))
			return s.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload content when files change")
	return cmd
}
