package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/scholarpage/internal/site"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		opts   site.RenderOptions
		output string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one document to a file or stdout",
		Example: `  scholarpage render --lang zh
  scholarpage render --section publications --tab patent -o patents.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			bw := bufio.NewWriter(w)
			if err := s.Render(cmd.Context(), bw, opts); err != nil {
				return err
			}
			return bw.Flush()
		},
	}
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "language (default from site config)")
	cmd.Flags().StringVar(&opts.Section, "section", "", "section to show: home, experiences or publications")
	cmd.Flags().StringVar(&opts.Tab, "tab", "", "tab to select within the section")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
