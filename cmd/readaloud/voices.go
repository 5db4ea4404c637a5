package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edgewire/readaloud/internal/config"
	"github.com/edgewire/readaloud/internal/voices"
)

func newVoicesCommand(settings *config.Settings) *cobra.Command {
	var filter voices.Filter
	var proxy string

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available voices",
		Long:  "Fetch the voice catalog and print the voices matching the given filters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []voices.Option
			if settings.VoiceListURL != "" {
				opts = append(opts, voices.WithEndpoint(settings.VoiceListURL))
			}
			if proxy != "" {
				opts = append(opts, voices.WithProxy(proxy))
			}

			manager, err := voices.LoadManager(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			matched := manager.Find(filter)
			sort.Slice(matched, func(i, j int) bool {
				return matched[i].ShortName < matched[j].ShortName
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tGENDER\tLOCALE\tCATEGORIES")
			for _, v := range matched {
				categories := ""
				if len(v.VoiceTag.ContentCategories) > 0 {
					categories = v.VoiceTag.ContentCategories[0]
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ShortName, v.Gender, v.Locale, categories)
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&filter.Gender, "gender", "", "filter by gender")
	f.StringVar(&filter.Locale, "locale", "", "filter by locale, e.g. en-US")
	f.StringVar(&filter.Language, "language", "", "filter by language, e.g. en")
	f.StringVar(&proxy, "proxy", settings.Proxy, "HTTP proxy URL")

	return cmd
}
