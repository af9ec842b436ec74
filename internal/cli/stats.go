package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hajj-assistant/internal/core/composer"
	"hajj-assistant/internal/models"
)

func StatsCmd(opts *rootOptions) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print agency registry statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), a.Composer, models.ParseLanguage(lang), stats)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "Summary language: ar, ur or en")
	return cmd
}

func printStats(w io.Writer, c *composer.Composer, lang models.Language, stats models.RegistryStats) error {
	rows := [][]string{
		{"agencies", fmt.Sprint(stats.Total)},
		{"authorized", fmt.Sprint(stats.Authorized)},
		{"countries", fmt.Sprint(stats.Countries)},
		{"cities", fmt.Sprint(stats.Cities)},
	}
	if err := writeTable(w, nil, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, c.Stats(lang, stats).Text)
	return err
}
