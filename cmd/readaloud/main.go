package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgewire/readaloud/internal/config"
	"github.com/edgewire/readaloud/internal/logging"
	"github.com/edgewire/readaloud/internal/submaker"
	"github.com/edgewire/readaloud/internal/tts"
)

type rootOptions struct {
	text           string
	file           string
	voice          string
	rate           string
	volume         string
	pitch          string
	boundary       string
	writeMedia     string
	writeSubtitles string
	subtitleFormat string
	wordsInCue     int
	proxy          string
	play           bool
}

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "readaloud: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "readaloud: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCommand(settings)
	root.AddCommand(newVoicesCommand(settings))
	root.AddCommand(newBatchCommand(settings))

	if err := root.ExecuteContext(ctx); err != nil {
		logging.Sync()
		fmt.Fprintf(os.Stderr, "readaloud: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(settings *config.Settings) *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "readaloud",
		Short: "Synthesize speech from text",
		Long: "readaloud converts text to speech using the Edge read-aloud service\n" +
			"and can write the audio, play it through an external player, and\n" +
			"generate subtitles from the reported word timings.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesis(cmd.Context(), settings, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.text, "text", "t", "", "text to synthesize")
	f.StringVarP(&opts.file, "file", "f", "", "read the text from this file, '-' for stdin")
	f.StringVarP(&opts.voice, "voice", "v", tts.DefaultVoice, "voice to use")
	f.StringVar(&opts.rate, "rate", "+0%", "speech rate, e.g. -50%")
	f.StringVar(&opts.volume, "volume", "+0%", "speech volume, e.g. +20%")
	f.StringVar(&opts.pitch, "pitch", "+0Hz", "voice pitch, e.g. -10Hz")
	f.StringVar(&opts.boundary, "boundary", "word", "timing granularity: word or sentence")
	f.StringVar(&opts.writeMedia, "write-media", "", "write the audio to this file instead of stdout")
	f.StringVar(&opts.writeSubtitles, "write-subtitles", "", "write subtitles to this file")
	f.StringVar(&opts.subtitleFormat, "subtitle-format", "srt", "subtitle format: srt or vtt")
	f.IntVar(&opts.wordsInCue, "words-in-cue", 10, "number of words per subtitle cue")
	f.StringVar(&opts.proxy, "proxy", settings.Proxy, "HTTP proxy URL")
	f.BoolVar(&opts.play, "play", false, "play the audio through the configured player")

	return cmd
}

func runSynthesis(ctx context.Context, settings *config.Settings, opts *rootOptions) error {
	input, err := readInput(opts)
	if err != nil {
		return err
	}

	session, err := tts.New(input, tts.Config{
		Voice:           opts.voice,
		Rate:            opts.rate,
		Volume:          opts.volume,
		Pitch:           opts.pitch,
		Boundary:        tts.Boundary(opts.boundary),
		Proxy:           opts.proxy,
		ConnectTimeout:  settings.ConnectTimeout,
		ReceiveTimeout:  settings.ReceiveTimeout,
		Endpoint:        settings.Endpoint,
		TrailingPadding: settings.TrailingPadding,
	})
	if err != nil {
		return err
	}

	sink, closeSink, err := audioSink(ctx, settings, opts)
	if err != nil {
		return err
	}

	sm := submaker.New()
	events, err := session.Stream(ctx)
	if err != nil {
		closeSink()
		return err
	}
	for ev := range events {
		switch ev := ev.(type) {
		case tts.AudioChunk:
			if _, err := sink.Write(ev.Data); err != nil {
				closeSink()
				return err
			}
		default:
			if err := sm.Feed(ev); err != nil {
				closeSink()
				return err
			}
		}
	}
	if err := closeSink(); err != nil {
		return err
	}
	if err := session.Err(); err != nil {
		return err
	}

	if opts.writeSubtitles != "" {
		return writeSubtitles(sm, opts)
	}
	return nil
}

func readInput(opts *rootOptions) (string, error) {
	switch {
	case opts.text != "" && opts.file != "":
		return "", errors.New("--text and --file are mutually exclusive")
	case opts.text != "":
		return opts.text, nil
	case opts.file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", errors.New("either --text or --file is required")
	}
}

// audioSink picks where the audio bytes go: a file, an external player, or
// stdout. The returned close function must be called on every path; it
// reports playback errors.
func audioSink(ctx context.Context, settings *config.Settings, opts *rootOptions) (io.Writer, func() error, error) {
	switch {
	case opts.play:
		return startPlayer(ctx, settings.Player)
	case opts.writeMedia != "":
		f, err := os.Create(opts.writeMedia)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	default:
		// Dumping encoded audio into an interactive terminal garbles it, so
		// ask first when both ends are attached to one.
		if isTerminal(os.Stdout) && isTerminal(os.Stdin) {
			if err := confirmTerminalOutput(os.Stdin, os.Stderr); err != nil {
				return nil, nil, err
			}
		}
		return os.Stdout, func() error { return nil }, nil
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func confirmTerminalOutput(in io.Reader, errOut io.Writer) error {
	fmt.Fprintln(errOut, "Warning: audio will be written to the terminal. Use --write-media to write to a file.")
	fmt.Fprintln(errOut, "Press Ctrl+C to cancel the operation. Press Enter to continue.")
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeSubtitles(sm *submaker.SubMaker, opts *rootOptions) error {
	if opts.wordsInCue > 1 {
		if err := sm.MergeCues(opts.wordsInCue); err != nil {
			return err
		}
	}

	var doc string
	switch strings.ToLower(opts.subtitleFormat) {
	case "srt":
		doc = sm.SRT()
	case "vtt":
		doc = sm.WebVTT()
	default:
		return fmt.Errorf("unknown subtitle format %q", opts.subtitleFormat)
	}
	return os.WriteFile(opts.writeSubtitles, []byte(doc), 0o644)
}
