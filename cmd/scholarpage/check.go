package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
)

// errNoContent makes check exit non-zero.
var errNoContent = errors.New("a language has no content")

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load all content and report unavailable types",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, _, err := root.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			missing := s.Missing()
			langs := s.Languages()
			var failed bool
			for _, lang := range langs.Available {
				m := missing[lang]
				switch {
				case len(m) == 0:
					fmt.Fprintf(out, "%s: ok\n", lang)
				case len(m) == len(content.Types()):
					failed = true
					fmt.Fprintf(out, "%s: no content\n", lang)
				default:
					fmt.Fprintf(out, "%s: %d unavailable\n", lang, len(m))
					for _, t := range m {
						fmt.Fprintf(out, "  - %s (%s)\n", t, t.FileName(lang))
					}
				}
			}
			if failed {
				return errNoContent
			}
			return nil
		},
	}
}
