package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edgewire/readaloud/internal/config"
	"github.com/edgewire/readaloud/internal/logging"
	"github.com/edgewire/readaloud/internal/tts"
)

func newBatchCommand(settings *config.Settings) *cobra.Command {
	var (
		voice       string
		rate        string
		volume      string
		pitch       string
		proxy       string
		outputDir   string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Synthesize several text files concurrently",
		Long: "Run one synthesis per input file, writing <name>.mp3 and <name>.json\n" +
			"(word timings) next to each other in the output directory. Files are\n" +
			"independent requests and run concurrently up to the configured limit.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}

			// One token provider for the whole batch so a clock-skew
			// correction learned by one request helps the others.
			drm := tts.NewTokenProvider()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)
			for _, path := range args {
				path := path
				g.Go(func() error {
					input, err := os.ReadFile(path)
					if err != nil {
						return err
					}

					session, err := tts.New(string(input), tts.Config{
						Voice:           voice,
						Rate:            rate,
						Volume:          volume,
						Pitch:           pitch,
						Proxy:           proxy,
						ConnectTimeout:  settings.ConnectTimeout,
						ReceiveTimeout:  settings.ReceiveTimeout,
						Endpoint:        settings.Endpoint,
						TrailingPadding: settings.TrailingPadding,
						TokenProvider:   drm,
					})
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}

					base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
					audioPath := filepath.Join(outputDir, base+".mp3")
					metaPath := filepath.Join(outputDir, base+".json")
					if err := session.Save(ctx, audioPath, metaPath); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					logging.Infof("synthesized %s to %s", path, audioPath)
					return nil
				})
			}
			return g.Wait()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&voice, "voice", "v", tts.DefaultVoice, "voice to use")
	f.StringVar(&rate, "rate", "+0%", "speech rate, e.g. -50%")
	f.StringVar(&volume, "volume", "+0%", "speech volume, e.g. +20%")
	f.StringVar(&pitch, "pitch", "+0Hz", "voice pitch, e.g. -10Hz")
	f.StringVar(&proxy, "proxy", settings.Proxy, "HTTP proxy URL")
	f.StringVarP(&outputDir, "output-dir", "o", ".", "directory for generated files")
	f.IntVar(&concurrency, "concurrency", settings.BatchConcurrency, "maximum concurrent requests")

	return cmd
}
